package annkit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEachQuery(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var calls atomic.Int32
		require.NoError(t, forEachQuery(context.Background(), 16, func(int) error {
			calls.Add(1)
			return nil
		}))
		assert.Equal(t, int32(16), calls.Load())
	})

	t.Run("Empty", func(t *testing.T) {
		assert.NoError(t, forEachQuery(context.Background(), 0, func(int) error { return nil }))
	})

	t.Run("Failure", func(t *testing.T) {
		boom := errors.New("boom")
		err := forEachQuery(context.Background(), 8, func(i int) error {
			if i == 3 {
				return boom
			}
			return nil
		})
		assert.ErrorIs(t, err, boom)
		assert.ErrorContains(t, err, "query 3")
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := forEachQuery(ctx, 4, func(int) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBuildThenSearchSucceeds(t *testing.T) {
	ctx := context.Background()
	ix, err := New[float32]("FLAT")
	require.NoError(t, err)
	require.NoError(t, ix.Build(ctx, Dataset[float32]{Vectors: [][]float32{{1, 2}, {3, 4}}}, doc(`{}`)))
	assert.Equal(t, 2, ix.Count())

	res, err := ix.Search(ctx, [][]float32{{1, 2}}, doc(`{"k": 1}`), nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, res.Labels)
}
