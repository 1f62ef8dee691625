package flat

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annkit/bitset"
	"github.com/hupe1980/annkit/feder"
	"github.com/hupe1980/annkit/index"
	"github.com/hupe1980/annkit/persistence"
	"github.com/hupe1980/annkit/space"
	"github.com/hupe1980/annkit/testutil"
)

func newFlat(t *testing.T, m space.Metric, dim int) *Flat[float32] {
	t.Helper()
	f, err := New[float32](func(o *Options) {
		o.Dim = dim
		o.Metric = m
	})
	require.NoError(t, err)
	return f
}

func TestFlat(t *testing.T) {
	t.Run("AddPoint", func(t *testing.T) {
		f := newFlat(t, space.L2, 3)

		require.NoError(t, f.AddPoint([]float32{1, 2, 3}, 7))
		assert.Equal(t, 1, f.Count())

		err := f.AddPoint([]float32{1, 2}, 8)
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)
		assert.ErrorIs(t, err, index.ErrInvalidQuery)
		assert.Equal(t, 1, f.Count())
	})

	t.Run("SearchKNN", func(t *testing.T) {
		f := newFlat(t, space.L2, 3)
		require.NoError(t, f.AddPoint([]float32{1, 2, 3}, 0))
		require.NoError(t, f.AddPoint([]float32{4, 5, 6}, 1))
		require.NoError(t, f.AddPoint([]float32{7, 8, 9}, 2))

		res, err := f.SearchKNN([]float32{9, 9, 9}, 2, nil, nil, nil)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, int64(2), res[0].Label)
		assert.Equal(t, int64(1), res[1].Label)

		_, err = f.SearchKNN([]float32{9, 9, 9}, 0, nil, nil, nil)
		assert.ErrorIs(t, err, index.ErrInvalidQuery)
		_, err = f.SearchKNN(nil, 1, nil, nil, nil)
		assert.ErrorIs(t, err, index.ErrInvalidQuery)
	})

	t.Run("DuplicateLabels", func(t *testing.T) {
		f := newFlat(t, space.L2, 1)
		require.NoError(t, f.AddPoint([]float32{1}, 5))
		require.NoError(t, f.AddPoint([]float32{2}, 5))

		res, err := f.SearchKNNBF([]float32{0}, 5, nil)
		require.NoError(t, err)
		assert.Equal(t, []index.Result{{Distance: 1, Label: 5}, {Distance: 4, Label: 5}}, res)
	})

	t.Run("Filter", func(t *testing.T) {
		f := newFlat(t, space.L2, 1)
		for i := range 10 {
			require.NoError(t, f.AddPoint([]float32{float32(i)}, int64(i)))
		}
		excluded := bitset.New(10)
		excluded.Set(0)
		excluded.Set(1)

		res, err := f.SearchKNNBF([]float32{0}, 2, excluded)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 3}, []int64{res[0].Label, res[1].Label})
	})

	t.Run("Empty", func(t *testing.T) {
		f := newFlat(t, space.L2, 2)
		res, err := f.SearchKNN([]float32{0, 0}, 3, nil, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, res)
	})
}

func TestFlat_SearchRange(t *testing.T) {
	f := newFlat(t, space.L2, 1)
	for i := range 10 {
		require.NoError(t, f.AddPoint([]float32{float32(i)}, int64(i)))
	}

	tr := feder.NewResult()
	res, err := f.SearchRange([]float32{0}, 4, nil, nil, tr)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2}, labelsOf(res))
	assert.Equal(t, 10, len(tr.Visits()))

	_, err = f.SearchRange([]float32{0}, -1, nil, nil, nil)
	assert.ErrorIs(t, err, index.ErrInvalidQuery)
}

func TestFlat_Cosine(t *testing.T) {
	f := newFlat(t, space.Cosine, 2)
	require.NoError(t, f.AddPoint([]float32{10, 0}, 1))
	require.NoError(t, f.AddPoint([]float32{0, 3}, 2))

	res, err := f.SearchKNNBF([]float32{2, 0}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res[0].Label)
	assert.InDelta(t, 0, res[0].Distance, 1e-6)

	assert.ErrorIs(t, f.AddPoint([]float32{0, 0}, 3), index.ErrInvalidQuery)
}

func TestFlat_Hamming(t *testing.T) {
	f, err := New[uint8](func(o *Options) {
		o.Dim = 2
		o.Metric = space.Hamming
	})
	require.NoError(t, err)
	require.NoError(t, f.AddPoint([]uint8{0xff, 0x00}, 1))
	require.NoError(t, f.AddPoint([]uint8{0x0f, 0x00}, 2))

	res, err := f.SearchKNNBF([]uint8{0x07, 0x00}, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, labelsOf(res))
	assert.Equal(t, float32(1), res[0].Distance)
}

func TestFlat_ConcurrentReadWrite(t *testing.T) {
	f := newFlat(t, space.L2, 8)
	data := testutil.NewRNG(1).UniformVectors(400, 8)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i, v := range data {
			assert.NoError(t, f.AddPoint(v, int64(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			_, err := f.SearchKNN(data[0], 5, nil, nil, nil)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()
	assert.Equal(t, 400, f.Count())
}

func TestFlat_SaveLoad(t *testing.T) {
	for _, c := range []persistence.CompressionType{persistence.CompressionNone, persistence.CompressionLZ4, persistence.CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			f := newFlat(t, space.IP, 16)
			rng := testutil.NewRNG(7)
			data := rng.UniformVectors(200, 16)
			for i, v := range data {
				require.NoError(t, f.AddPoint(v, int64(i*3)))
			}
			f.SetCompression(c)

			var buf bytes.Buffer
			require.NoError(t, f.SaveIndex(&buf))

			loaded, err := Load[float32](bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, f.Count(), loaded.Count())
			assert.Equal(t, space.IP, loaded.Space().Metric())

			generic, err := index.Load[float32](bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)

			for _, q := range rng.UniformVectors(5, 16) {
				want, err := f.SearchKNNBF(q, 10, nil)
				require.NoError(t, err)
				got, err := loaded.SearchKNNBF(q, 10, nil)
				require.NoError(t, err)
				assert.Equal(t, want, got)
				got, err = generic.SearchKNNBF(q, 10, nil)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestFlat_LoadMmap(t *testing.T) {
	f := newFlat(t, space.L2, 4)
	data := testutil.NewRNG(3).UniformVectors(50, 4)
	for i, v := range data {
		require.NoError(t, f.AddPoint(v, int64(i)))
	}

	path := filepath.Join(t.TempDir(), "flat.ank")
	require.NoError(t, persistence.SaveToFile(path, f.SaveIndex))

	m, err := persistence.MmapFile(path)
	require.NoError(t, err)
	defer m.Close()

	mapped, err := LoadMmap[float32](m.Bytes())
	require.NoError(t, err)
	assert.True(t, mapped.ReadOnly())
	assert.ErrorIs(t, mapped.AddPoint(data[0], 99), index.ErrReadOnly)

	want, _ := f.SearchKNNBF(data[10], 5, nil)
	got, err := mapped.SearchKNNBF(data[10], 5, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	generic, err := index.LoadMapped[float32](m.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 50, generic.Count())
}

func TestFlat_LoadCorrupt(t *testing.T) {
	f := newFlat(t, space.L2, 2)
	require.NoError(t, f.AddPoint([]float32{1, 2}, 1))

	var buf bytes.Buffer
	require.NoError(t, f.SaveIndex(&buf))
	data := buf.Bytes()

	bad := bytes.Clone(data)
	bad[persistence.HeaderSize] ^= 0x40
	_, err := Load[float32](bytes.NewReader(bad))
	assert.ErrorIs(t, err, index.ErrCorruptPersistedState)

	_, err = Load[float32](bytes.NewReader(data[:len(data)-2]))
	assert.ErrorIs(t, err, index.ErrCorruptPersistedState)

	_, err = Load[uint8](bytes.NewReader(data))
	assert.ErrorIs(t, err, index.ErrIncompatibleIndex)

	path := filepath.Join(t.TempDir(), "flat.ank")
	require.NoError(t, os.WriteFile(path, bad, 0o644))
	m, err := persistence.MmapFile(path)
	require.NoError(t, err)
	defer m.Close()
	_, err = LoadMmap[float32](m.Bytes())
	assert.ErrorIs(t, err, index.ErrCorruptPersistedState)
}

func TestConfig(t *testing.T) {
	c := NewConfig()
	assert.Contains(t, c.Schema().Names(), "metric_type")
	assert.Contains(t, c.Schema().Names(), "k")
}

func labelsOf(res []index.Result) []int64 {
	out := make([]int64, len(res))
	for i, r := range res {
		out[i] = r.Label
	}
	return out
}

func TestAddPointFull(t *testing.T) {
	old := maxRows
	maxRows = 3
	t.Cleanup(func() { maxRows = old })

	f := newFlat(t, space.L2, 2)
	for i := range 3 {
		require.NoError(t, f.AddPoint([]float32{float32(i), 0}, int64(i)))
	}
	assert.ErrorIs(t, f.AddPoint([]float32{9, 9}, 9), ErrFull)
	assert.Equal(t, 3, f.Count())
}
