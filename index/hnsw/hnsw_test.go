package hnsw

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annkit/bitset"
	"github.com/hupe1980/annkit/config"
	"github.com/hupe1980/annkit/feder"
	"github.com/hupe1980/annkit/index"
	"github.com/hupe1980/annkit/persistence"
	"github.com/hupe1980/annkit/space"
	"github.com/hupe1980/annkit/testutil"
)

type TestCases struct {
	VectorSize int
	VectorDim  int

	M         int
	EF        int
	Heuristic bool
	K         int

	Precision float64
}

func newGraph(t testing.TB, dim int, optFns ...func(o *Options)) *HNSW[float32] {
	t.Helper()
	h, err := New[float32](append([]func(o *Options){func(o *Options) {
		o.Dim = dim
		o.M = 8
		o.EFConstruction = 100
	}}, optFns...)...)
	require.NoError(t, err)
	return h
}

func fill(t testing.TB, h *HNSW[float32], data [][]float32) {
	t.Helper()
	for i, v := range data {
		require.NoError(t, h.AddPoint(v, int64(i)))
	}
}

func TestNew(t *testing.T) {
	h := newGraph(t, 16)

	assert.Equal(t, 8, h.opts.M)
	assert.Equal(t, 8, h.maxConnectionsPerLayer)
	assert.Equal(t, 16, h.maxConnectionsLayer0)
	assert.Equal(t, 100, h.opts.EFConstruction)

	_, err := New[float32](func(o *Options) {
		o.Dim = 4
		o.M = 1
	})
	assert.ErrorIs(t, err, ErrInvalidM)

	_, err = New[float32](func(o *Options) { o.Dim = 0 })
	assert.Error(t, err)
}

func TestValidateInsertSearch(t *testing.T) {
	tests := []TestCases{
		{
			VectorSize: 1000,
			VectorDim:  16,
			M:          8,
			EF:         200,
			Heuristic:  true,
			Precision:  0.95,
			K:          10,
		},
		// Simple selection has lower accuracy than the heuristic.
		{
			VectorSize: 1000,
			VectorDim:  16,
			M:          8,
			EF:         200,
			Heuristic:  false,
			Precision:  0.9,
			K:          10,
		},
		{
			VectorSize: 2000,
			VectorDim:  32,
			M:          16,
			EF:         128,
			Heuristic:  true,
			Precision:  0.9,
			K:          10,
		},
	}

	for _, tc := range tests {
		name := fmt.Sprintf("Vec=%d,Dim=%d,M=%d,EF=%d,Heuristic=%t", tc.VectorSize, tc.VectorDim, tc.M, tc.EF, tc.Heuristic)
		t.Run(name, func(t *testing.T) {
			rng := testutil.NewRNG(4711)
			data := rng.UniformVectors(tc.VectorSize, tc.VectorDim)

			h := newGraph(t, tc.VectorDim, func(o *Options) {
				o.M = tc.M
				o.EFConstruction = tc.EF
				o.Heuristic = tc.Heuristic
			})
			fill(t, h, data)
			assert.Equal(t, tc.VectorSize, h.Count())

			queries := rng.UniformVectors(50, tc.VectorDim)
			truth := make([][]int64, len(queries))
			approx := make([][]int64, len(queries))
			for i, q := range queries {
				truth[i] = testutil.ExactTopK(h.Space(), data, q, tc.K)
				res, err := h.SearchKNN(q, tc.K, nil, &index.SearchParam{EF: tc.EF}, nil)
				require.NoError(t, err)
				require.Len(t, res, tc.K)
				approx[i] = labelsOf(res)
			}
			assert.GreaterOrEqual(t, testutil.MeanRecall(truth, approx), tc.Precision)
		})
	}
}

func TestSearchKNN(t *testing.T) {
	t.Run("FartherFirst", func(t *testing.T) {
		h := newGraph(t, 1)
		for i := range 20 {
			require.NoError(t, h.AddPoint([]float32{float32(i)}, int64(i)))
		}

		res, err := h.SearchKNN([]float32{0}, 3, nil, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 1, 0}, labelsOf(res))

		closer, err := h.SearchKNNCloserFirst([]float32{0}, 3, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1, 2}, labelsOf(closer))

		generic, err := index.SearchKNNCloserFirst[float32](h, []float32{0}, 3, nil)
		require.NoError(t, err)
		assert.Equal(t, closer, generic)
	})

	t.Run("Empty", func(t *testing.T) {
		h := newGraph(t, 2)
		res, err := h.SearchKNN([]float32{0, 0}, 3, nil, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, res)

		res, err = h.SearchRange([]float32{0, 0}, 1, nil, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("InvalidQuery", func(t *testing.T) {
		h := newGraph(t, 2)
		_, err := h.SearchKNN([]float32{0, 0}, 0, nil, nil, nil)
		assert.ErrorIs(t, err, index.ErrInvalidQuery)

		err = h.AddPoint([]float32{1}, 1)
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)
		assert.Equal(t, 0, h.Count())
	})

	t.Run("ForTuning", func(t *testing.T) {
		h := newGraph(t, 4)
		fill(t, h, testutil.NewRNG(1).UniformVectors(200, 4))
		q := []float32{0.5, 0.5, 0.5, 0.5}

		res, err := h.SearchKNN(q, 10, nil, &index.SearchParam{EF: 4}, nil)
		require.NoError(t, err)
		assert.Len(t, res, 10)

		res, err = h.SearchKNN(q, 10, nil, &index.SearchParam{EF: 4, ForTuning: true}, nil)
		require.NoError(t, err)
		assert.Len(t, res, 4)
	})

	t.Run("DuplicateLabels", func(t *testing.T) {
		h := newGraph(t, 1)
		require.NoError(t, h.AddPoint([]float32{1}, 5))
		require.NoError(t, h.AddPoint([]float32{2}, 5))

		res, err := h.SearchKNNCloserFirst([]float32{0}, 5, nil)
		require.NoError(t, err)
		assert.Equal(t, []index.Result{{Distance: 1, Label: 5}, {Distance: 4, Label: 5}}, res)
	})
}

func TestSearchKNN_Filter(t *testing.T) {
	rng := testutil.NewRNG(11)
	data := rng.UniformVectors(500, 8)
	h := newGraph(t, 8)
	fill(t, h, data)

	excluded := bitset.New(len(data))
	for i := 0; i < len(data); i += 2 {
		excluded.Set(i)
	}

	for _, q := range rng.UniformVectors(10, 8) {
		res, err := h.SearchKNN(q, 10, excluded, &index.SearchParam{EF: 64}, nil)
		require.NoError(t, err)
		require.Len(t, res, 10)
		for _, r := range res {
			assert.Equal(t, int64(1), r.Label%2)
		}

		bf, err := h.SearchKNNBF(q, 10, excluded)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, testutil.Recall(labelsOf(bf), labelsOf(res)), 0.8)
	}

	all := bitset.NewRoaring(testutil.Sequence(len(data))...)
	res, err := h.SearchKNN(data[0], 5, all, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearchKNN_Trace(t *testing.T) {
	h := newGraph(t, 4)
	fill(t, h, testutil.NewRNG(2).UniformVectors(300, 4))

	tr := feder.NewResult()
	_, err := h.SearchKNN([]float32{0.1, 0.2, 0.3, 0.4}, 5, nil, nil, tr)
	require.NoError(t, err)

	seeds := tr.Seeds()
	require.NotEmpty(t, seeds)
	assert.Equal(t, 0, seeds[len(seeds)-1].Level)
	assert.NotEmpty(t, tr.Visits())
}

func TestSearchRange(t *testing.T) {
	rng := testutil.NewRNG(5)
	data := rng.UniformVectors(800, 4)
	h := newGraph(t, 4)
	fill(t, h, data)

	q := []float32{0.5, 0.5, 0.5, 0.5}
	const radius = 0.05

	want, err := h.SearchRangeBF(q, radius, nil)
	require.NoError(t, err)
	require.NotEmpty(t, want)

	got, err := h.SearchRange(q, radius, nil, &index.SearchParam{EF: 4}, nil)
	require.NoError(t, err)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
	}
	for _, r := range got {
		assert.LessOrEqual(t, r.Distance, float32(radius))
	}
	assert.GreaterOrEqual(t, testutil.Recall(labelsOf(want), labelsOf(got)), 0.9)

	_, err = h.SearchRange(q, -1, nil, nil, nil)
	assert.ErrorIs(t, err, index.ErrInvalidQuery)
}

func TestConcurrentSearchAndInsert(t *testing.T) {
	data := testutil.NewRNG(9).UniformVectors(600, 8)
	h := newGraph(t, 8)
	fill(t, h, data[:100])

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i, v := range data[100:] {
			assert.NoError(t, h.AddPoint(v, int64(100+i)))
		}
	}()
	for range 2 {
		go func() {
			defer wg.Done()
			for i := range 200 {
				_, err := h.SearchKNN(data[i%100], 5, nil, nil, nil)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 600, h.Count())
}

func TestSaveLoad(t *testing.T) {
	for _, c := range []persistence.CompressionType{persistence.CompressionNone, persistence.CompressionLZ4, persistence.CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			rng := testutil.NewRNG(21)
			data := rng.UniformVectors(300, 8)
			h := newGraph(t, 8, func(o *Options) { o.Metric = space.IP })
			fill(t, h, data)
			h.SetCompression(c)

			var buf bytes.Buffer
			require.NoError(t, h.SaveIndex(&buf))

			loaded, err := Load[float32](bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, h.Count(), loaded.Count())
			assert.Equal(t, h.Options().M, loaded.Options().M)
			assert.Equal(t, h.Stats().NodesPerLevel, loaded.Stats().NodesPerLevel)

			generic, err := index.Load[float32](bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)

			for _, q := range rng.UniformVectors(5, 8) {
				want, err := h.SearchKNN(q, 10, nil, nil, nil)
				require.NoError(t, err)
				got, err := loaded.SearchKNN(q, 10, nil, nil, nil)
				require.NoError(t, err)
				assert.Equal(t, want, got)
				got, err = generic.SearchKNN(q, 10, nil, nil, nil)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}

			// A stream-loaded graph stays writable.
			require.NoError(t, loaded.AddPoint(data[0], 1000))
			assert.Equal(t, 301, loaded.Count())
		})
	}
}

func TestLoadMmap(t *testing.T) {
	data := testutil.NewRNG(8).UniformVectors(200, 4)
	h := newGraph(t, 4)
	fill(t, h, data)

	path := filepath.Join(t.TempDir(), "hnsw.ank")
	require.NoError(t, persistence.SaveToFile(path, h.SaveIndex))

	m, err := persistence.MmapFile(path)
	require.NoError(t, err)
	defer m.Close()

	mapped, err := LoadMmap[float32](m.Bytes())
	require.NoError(t, err)
	assert.True(t, mapped.ReadOnly())
	assert.ErrorIs(t, mapped.AddPoint(data[0], 99), index.ErrReadOnly)

	want, _ := h.SearchKNN(data[10], 5, nil, nil, nil)
	got, err := mapped.SearchKNN(data[10], 5, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	generic, err := index.LoadMapped[float32](m.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 200, generic.Count())
}

func TestLoadCorrupt(t *testing.T) {
	h := newGraph(t, 2)
	fill(t, h, testutil.NewRNG(3).UniformVectors(20, 2))

	var buf bytes.Buffer
	require.NoError(t, h.SaveIndex(&buf))
	data := buf.Bytes()

	bad := bytes.Clone(data)
	bad[len(bad)-10] ^= 0x01
	_, err := Load[float32](bytes.NewReader(bad))
	assert.ErrorIs(t, err, index.ErrCorruptPersistedState)

	_, err = Load[float32](bytes.NewReader(data[:len(data)/2]))
	assert.ErrorIs(t, err, index.ErrCorruptPersistedState)

	_, err = Load[uint8](bytes.NewReader(data))
	assert.ErrorIs(t, err, index.ErrIncompatibleIndex)
}

func TestSaveLoadEmpty(t *testing.T) {
	h := newGraph(t, 3)
	var buf bytes.Buffer
	require.NoError(t, h.SaveIndex(&buf))

	loaded, err := Load[float32](&buf)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Count())
	require.NoError(t, loaded.AddPoint([]float32{1, 2, 3}, 1))
}

func TestHamming(t *testing.T) {
	h, err := New[uint8](func(o *Options) {
		o.Dim = 4
		o.Metric = space.Hamming
		o.M = 4
	})
	require.NoError(t, err)

	data := testutil.NewRNG(6).BinaryVectors(200, 32)
	for i, v := range data {
		require.NoError(t, h.AddPoint(v, int64(i)))
	}

	res, err := h.SearchKNNCloserFirst(data[17], 1, nil)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, float32(0), res[0].Distance)
}

func TestMeta(t *testing.T) {
	h := newGraph(t, 4, func(o *Options) { o.M = 4 })
	empty := h.Meta(3)
	assert.Equal(t, int64(-1), empty.EntryPoint)
	assert.Empty(t, empty.Levels)

	fill(t, h, testutil.NewRNG(12).UniformVectors(500, 4))

	m := h.Meta(2)
	assert.Equal(t, 500, m.NumElem)
	assert.Equal(t, 4, m.M)
	require.NotEmpty(t, m.Levels)
	assert.LessOrEqual(t, len(m.Levels), 2)
	assert.Equal(t, m.MaxLevel, m.Levels[0].Level)

	top := m.Levels[0].Nodes
	require.NotEmpty(t, top)
	ids := make([]int64, len(top))
	for i, n := range top {
		ids[i] = n.ID
	}
	assert.Contains(t, ids, m.EntryPoint)

	b, err := m.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(b), `"overview"`)
}

func TestStats(t *testing.T) {
	h := newGraph(t, 4)
	fill(t, h, testutil.NewRNG(13).UniformVectors(100, 4))

	s := h.Stats()
	assert.Equal(t, 100, s.Count)
	require.NotEmpty(t, s.NodesPerLevel)
	assert.Equal(t, 100, s.NodesPerLevel[0])
	assert.Greater(t, s.AvgConnections[0], 0.0)
	assert.Contains(t, s.String(), "level 0: 100 nodes")
}

func TestConfig(t *testing.T) {
	t.Run("TrainDefaults", func(t *testing.T) {
		c := NewConfig()
		require.NoError(t, config.Prepare(c, config.MustParseDocument(`{"dim": 8}`), config.PhaseTrain))
		assert.Equal(t, int32(DefaultM), c.M.Value())
		assert.Equal(t, int32(DefaultEFConstruction), c.EFConstruction.Value())
		assert.Equal(t, int32(DefaultSeed), c.Seed.Value())

		var o Options
		c.Options(&o)
		assert.Equal(t, DefaultM, o.M)
	})

	t.Run("EFConstructionAlias", func(t *testing.T) {
		c := NewConfig()
		require.NoError(t, config.Prepare(c, config.MustParseDocument(`{"ef_construction": "64"}`), config.PhaseTrain))
		assert.Equal(t, int32(64), c.EFConstruction.Value())
	})

	t.Run("MOutOfRange", func(t *testing.T) {
		c := NewConfig()
		err := config.Prepare(c, config.MustParseDocument(`{"M": 1}`), config.PhaseTrain)
		assert.ErrorIs(t, err, config.ErrOutOfRange)
	})

	t.Run("SearchEFDefault", func(t *testing.T) {
		c := NewConfig()
		require.NoError(t, config.Prepare(c, config.MustParseDocument(`{"k": 5}`), config.PhaseSearch))
		assert.Equal(t, int32(16), c.EF.Value())

		c = NewConfig()
		require.NoError(t, config.Prepare(c, config.MustParseDocument(`{"k": 40}`), config.PhaseSearch))
		assert.Equal(t, int32(40), c.EF.Value())
	})

	t.Run("SearchEFBelowK", func(t *testing.T) {
		c := NewConfig()
		err := config.Prepare(c, config.MustParseDocument(`{"k": 20, "ef": 10}`), config.PhaseSearch)
		assert.ErrorIs(t, err, config.ErrOutOfRange)
		assert.EqualError(t, err, "ef(10) should be larger than k(20)")
	})

	t.Run("RangeSearchEFDefault", func(t *testing.T) {
		c := NewConfig()
		require.NoError(t, config.Prepare(c, config.MustParseDocument(`{"radius": 1.5}`), config.PhaseRangeSearch))
		assert.Equal(t, int32(16), c.EF.Value())
	})

	t.Run("OverviewLevels", func(t *testing.T) {
		c := NewConfig()
		err := config.Prepare(c, config.MustParseDocument(`{"overview_levels": 9}`), config.PhaseFeder)
		assert.ErrorIs(t, err, config.ErrOutOfRange)
	})
}

func labelsOf(res []index.Result) []int64 {
	out := make([]int64, len(res))
	for i, r := range res {
		out[i] = r.Label
	}
	return out
}
