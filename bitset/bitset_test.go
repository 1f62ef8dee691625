package bitset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitset(t *testing.T) {
	b := New(130)
	b.Set(0)
	b.Set(64)
	b.Set(129)

	assert.True(t, b.IsExcluded(0))
	assert.True(t, b.IsExcluded(64))
	assert.True(t, b.IsExcluded(129))
	assert.False(t, b.IsExcluded(1))
	assert.False(t, b.IsExcluded(130))
	assert.False(t, b.IsExcluded(-1))
	assert.Equal(t, 3, b.Count())

	b.Clear(64)
	assert.False(t, b.IsExcluded(64))
	assert.Equal(t, 2, b.Count())
}

func TestFromBytes(t *testing.T) {
	v := FromBytes([]byte{0b0000_0101, 0b1000_0000})

	assert.True(t, v.IsExcluded(0))
	assert.False(t, v.IsExcluded(1))
	assert.True(t, v.IsExcluded(2))
	assert.True(t, v.IsExcluded(15))
	assert.False(t, v.IsExcluded(16))
	assert.Equal(t, 3, v.Count())
}

func TestRoaring(t *testing.T) {
	r := NewRoaring(3, 1<<40, -5)

	assert.True(t, r.IsExcluded(3))
	assert.True(t, r.IsExcluded(1<<40))
	assert.False(t, r.IsExcluded(-5))
	assert.Equal(t, 2, r.Count())

	r.Remove(3)
	assert.False(t, r.IsExcluded(3))
}

func TestExcludedNil(t *testing.T) {
	assert.False(t, Excluded(nil, 7))
	assert.True(t, Excluded(NewRoaring(7), 7))
}
