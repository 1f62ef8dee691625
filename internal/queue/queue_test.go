package queue

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinMax(t *testing.T) {
	dists := []float32{5, 1, 4, 2, 3}

	min := NewMin(len(dists))
	max := NewMax(len(dists))
	for i, d := range dists {
		min.Push(Item{ID: uint32(i), Distance: d})
		max.Push(Item{ID: uint32(i), Distance: d})
	}

	top, ok := min.Top()
	assert.True(t, ok)
	assert.Equal(t, float32(1), top.Distance)

	top, ok = max.Top()
	assert.True(t, ok)
	assert.Equal(t, float32(5), top.Distance)

	var popped []float32
	for min.Len() > 0 {
		it, _ := min.Pop()
		popped = append(popped, it.Distance)
	}
	assert.True(t, sort.SliceIsSorted(popped, func(i, j int) bool { return popped[i] < popped[j] }))

	_, ok = min.Pop()
	assert.False(t, ok)
}

func TestPushBounded(t *testing.T) {
	q := NewMax(3)
	for i, d := range []float32{9, 7, 8, 1, 3, 10} {
		q.PushBounded(Item{ID: uint32(i), Distance: d}, 3)
	}

	got := q.DrainAscending()
	assert.Equal(t, []Item{{ID: 3, Distance: 1}, {ID: 4, Distance: 3}, {ID: 1, Distance: 7}}, got)
	assert.Equal(t, 0, q.Len())
}

func TestDrainAscendingMin(t *testing.T) {
	q := NewMin(4)
	q.Push(Item{ID: 1, Distance: 3})
	q.Push(Item{ID: 2, Distance: 1})
	q.Push(Item{ID: 3, Distance: 2})

	got := q.DrainAscending()
	assert.Equal(t, []uint32{2, 3, 1}, []uint32{got[0].ID, got[1].ID, got[2].ID})
}
