package config

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseConfig
	M        Int
	Ratio    Float
	Name     String
	Levels   List
	Verbose  Bool
	Required Int
}

func newTestConfig() *testConfig {
	c := &testConfig{}
	s := NewSchema()
	c.Init(s)
	s.IntVar("M", &c.M).SetDefault(16).SetRange(2, 2048).ForTrain()
	s.FloatVar("ratio", &c.Ratio).SetDefault(0.5).SetRange(0, 1).ForSearch()
	s.StringVar("name", &c.Name).SetDefault("idx").ForTrainAndSearch()
	s.ListVar("levels", &c.Levels).SetDefault([]int{1, 2}).ForFeder()
	s.BoolVar("verbose", &c.Verbose).AllowEmptyWithoutDefault().ForSearch()
	s.IntVar("required", &c.Required).ForDeserialize()
	return c
}

func TestSetDefaultWritesSlot(t *testing.T) {
	c := newTestConfig()

	assert.Equal(t, int32(16), c.M.Value())
	assert.Equal(t, int32(10), c.K.Value())
	assert.Equal(t, "L2", c.MetricType.Value())
	assert.True(t, math.IsInf(float64(c.RangeFilter.Value()), 1))
	assert.Equal(t, []int{1, 2}, c.Levels.Value())
	assert.False(t, c.NumBuildThread.IsSet())
	assert.False(t, c.Verbose.IsSet())
}

func TestLoadK(t *testing.T) {
	c := newTestConfig()
	s := c.Schema()

	err := s.Load(MustParseDocument(`{"k": 0}`), PhaseSearch)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Contains(t, err.Error(), "out of range")
	assert.Equal(t, "param k out of range [ 1,2147483647 ]", err.Error())

	require.NoError(t, s.Load(MustParseDocument(`{}`), PhaseSearch))
	assert.Equal(t, int32(10), c.K.Value())

	err = s.Load(MustParseDocument(`{"k": "5"}`), PhaseSearch)
	assert.ErrorIs(t, err, ErrTypeConflict)
	assert.Equal(t, "param k should be integer", err.Error())
}

func TestLoadRangeBounds(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		phase   Phase
		wantErr error
		check   func(t *testing.T, c *testConfig)
	}{
		{name: "int lower bound", doc: `{"M": 2}`, phase: PhaseTrain, check: func(t *testing.T, c *testConfig) {
			assert.Equal(t, int32(2), c.M.Value())
		}},
		{name: "int upper bound", doc: `{"M": 2048}`, phase: PhaseTrain, check: func(t *testing.T, c *testConfig) {
			assert.Equal(t, int32(2048), c.M.Value())
		}},
		{name: "int below", doc: `{"M": 1}`, phase: PhaseTrain, wantErr: ErrOutOfRange},
		{name: "int above", doc: `{"M": 2049}`, phase: PhaseTrain, wantErr: ErrOutOfRange},
		{name: "int overflow", doc: `{"M": 2147483648}`, phase: PhaseTrain, wantErr: ErrArithmeticOverflow},
		{name: "int negative overflow", doc: `{"M": -2147483649}`, phase: PhaseTrain, wantErr: ErrArithmeticOverflow},
		{name: "int64 overflow", doc: `{"M": 99999999999999999999}`, phase: PhaseTrain, wantErr: ErrArithmeticOverflow},
		{name: "int fraction", doc: `{"M": 2.5}`, phase: PhaseTrain, wantErr: ErrTypeConflict},
		{name: "float in range", doc: `{"ratio": 1}`, phase: PhaseSearch, check: func(t *testing.T, c *testConfig) {
			assert.Equal(t, float32(1), c.Ratio.Value())
		}},
		{name: "float above", doc: `{"ratio": 1.5}`, phase: PhaseSearch, wantErr: ErrOutOfRange},
		{name: "float overflow", doc: `{"ratio": 1e39}`, phase: PhaseSearch, wantErr: ErrArithmeticOverflow},
		{name: "float from string", doc: `{"ratio": "x"}`, phase: PhaseSearch, wantErr: ErrTypeConflict},
		{name: "list copied", doc: `{"levels": [3, 1, 2]}`, phase: PhaseFeder, check: func(t *testing.T, c *testConfig) {
			assert.Equal(t, []int{3, 1, 2}, c.Levels.Value())
		}},
		{name: "list wrong kind", doc: `{"levels": 3}`, phase: PhaseFeder, wantErr: ErrTypeConflict},
		{name: "list wrong element", doc: `{"levels": [1, "a"]}`, phase: PhaseFeder, wantErr: ErrTypeConflict},
		{name: "bool", doc: `{"verbose": true}`, phase: PhaseSearch, check: func(t *testing.T, c *testConfig) {
			assert.True(t, c.Verbose.Value())
		}},
		{name: "bool wrong kind", doc: `{"verbose": 1}`, phase: PhaseSearch, wantErr: ErrTypeConflict},
		{name: "string wrong kind", doc: `{"name": 1}`, phase: PhaseSearch, wantErr: ErrTypeConflict},
		{name: "missing required", doc: `{}`, phase: PhaseDeserialize, wantErr: ErrMissingRequiredParam},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestConfig()
			err := c.Schema().Load(MustParseDocument(tc.doc), tc.phase)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.wantErr)
				assert.True(t, IsValidationError(err))
				return
			}
			require.NoError(t, err)
			if tc.check != nil {
				tc.check(t, c)
			}
		})
	}
}

func TestLoadMessages(t *testing.T) {
	c := newTestConfig()
	s := c.Schema()

	err := s.Load(MustParseDocument(`{}`), PhaseDeserialize)
	assert.Equal(t, "invalid param required", err.Error())

	err = s.Load(MustParseDocument(`{"M": 2147483648}`), PhaseTrain)
	assert.Equal(t, "param M should be at most 2147483647", err.Error())

	err = s.Load(MustParseDocument(`{"ratio": 2}`), PhaseSearch)
	assert.Equal(t, "param ratio out of range [ 0.000000,1.000000 ]", err.Error())

	err = s.Load(MustParseDocument(`{"ratio": 1e39}`), PhaseSearch)
	assert.Equal(t, "param ratio should be at most 3.402823e+38", err.Error())

	var pe *ParamError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "ratio", pe.Param)
}

func TestLoadPhaseFiltering(t *testing.T) {
	c := newTestConfig()

	// M is TRAIN only: an invalid value is ignored at SEARCH.
	require.NoError(t, c.Schema().Load(MustParseDocument(`{"M": 1, "k": 3}`), PhaseSearch))
	assert.Equal(t, int32(16), c.M.Value())
	assert.Equal(t, int32(3), c.K.Value())

	// The required DESERIALIZE param is not checked at TRAIN.
	require.NoError(t, c.Schema().Load(MustParseDocument(`{"M": 4}`), PhaseTrain))
	assert.Equal(t, int32(4), c.M.Value())
	assert.False(t, c.Required.IsSet())
}

func TestLoadAllowEmptyStaysUnset(t *testing.T) {
	c := newTestConfig()
	require.NoError(t, c.Schema().Load(MustParseDocument(`{}`), PhaseTrain))
	assert.False(t, c.NumBuildThread.IsSet())
	assert.False(t, c.Dim.IsSet())
}

func TestLoadFailureLeavesConfigUnchanged(t *testing.T) {
	c := newTestConfig()
	require.NoError(t, c.Schema().Load(MustParseDocument(`{"k": 7, "ratio": 0.25}`), PhaseSearch))

	// "k" sorts before "ratio"; the failure on ratio must roll k back.
	err := c.Schema().Load(MustParseDocument(`{"k": 9, "ratio": 3}`), PhaseSearch)
	require.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, int32(7), c.K.Value())
	assert.Equal(t, float32(0.25), c.Ratio.Value())
}

func TestLoadTypeConflictKeepsValue(t *testing.T) {
	c := newTestConfig()
	err := c.Schema().Load(MustParseDocument(`{"M": "eight"}`), PhaseTrain)
	require.ErrorIs(t, err, ErrTypeConflict)
	assert.Equal(t, int32(16), c.M.Value())
}

func TestLoadListIsCopied(t *testing.T) {
	c := newTestConfig()
	require.NoError(t, c.Schema().Load(MustParseDocument(`{"levels": [1, 2, 3]}`), PhaseFeder))

	got := c.Levels.Value()
	got[0] = 99
	assert.Equal(t, 1, c.Levels.Value()[0])
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	s := NewSchema()
	var a, b Int
	s.IntVar("x", &a)
	assert.Panics(t, func() { s.IntVar("x", &b) })
}

func TestConcurrentLoadIsRejected(t *testing.T) {
	c := newTestConfig()
	s := c.Schema()

	s.loading.Store(true)
	assert.ErrorIs(t, s.Load(Document{}, PhaseSearch), ErrConcurrentLoad)
	s.loading.Store(false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Load(MustParseDocument(`{"k": 5}`), PhaseSearch)
			if err != nil {
				assert.ErrorIs(t, err, ErrConcurrentLoad)
			}
		}()
	}
	wg.Wait()
}

func TestEntries(t *testing.T) {
	c := newTestConfig()
	info, ok := c.Schema().Lookup("k")
	require.True(t, ok)
	assert.Equal(t, KindInt, info.Kind)
	assert.Equal(t, PhaseSearch, info.Phases)
	assert.Equal(t, int32(10), info.Default)
	assert.Equal(t, int32(1), info.Min)

	info, ok = c.Schema().Lookup("metric_type")
	require.True(t, ok)
	assert.Equal(t, PhaseTrainAndSearch, info.Phases)
	assert.Nil(t, info.Min)

	names := c.Schema().Names()
	assert.IsIncreasing(t, names)
	assert.Len(t, c.Schema().Entries(), len(names))
}

func TestFormatAndCheck(t *testing.T) {
	c := newTestConfig()
	s := c.Schema()

	in := MustParseDocument(`{"k": "5", "ratio": "0.75", "verbose": "TRUE", "name": "7", "unknown": "x"}`)
	out, err := s.FormatAndCheck(in)
	require.NoError(t, err)

	r, _ := out.Lookup("k")
	assert.Equal(t, int64(5), r.Int())
	assert.Equal(t, `{"k": "5", "ratio": "0.75", "verbose": "TRUE", "name": "7", "unknown": "x"}`, in.String())
	assert.True(t, out.Has("unknown"))

	require.NoError(t, s.Load(out, PhaseSearch))
	assert.Equal(t, int32(5), c.K.Value())
	assert.Equal(t, float32(0.75), c.Ratio.Value())
	assert.True(t, c.Verbose.Value())
	assert.Equal(t, "7", c.Name.Value())

	_, err = s.FormatAndCheck(MustParseDocument(`{"k": "five"}`))
	assert.ErrorIs(t, err, ErrTypeConflict)

	_, err = s.FormatAndCheck(MustParseDocument(`{"k": "4294967296"}`))
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = s.FormatAndCheck(MustParseDocument(`{"verbose": "yes"}`))
	assert.ErrorIs(t, err, ErrTypeConflict)
}

func TestBaseCheckAndAdjust(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		phase   Phase
		wantErr error
	}{
		{name: "l2 defaults", doc: `{}`, phase: PhaseRangeSearch},
		{name: "l2 band", doc: `{"radius": 2, "range_filter": 1}`, phase: PhaseRangeSearch},
		{name: "l2 inverted band", doc: `{"radius": 1, "range_filter": 2}`, phase: PhaseRangeSearch, wantErr: ErrOutOfRange},
		{name: "l2 negative radius", doc: `{"radius": -1}`, phase: PhaseRangeSearch, wantErr: ErrOutOfRange},
		{name: "ip band", doc: `{"metric_type": "IP", "radius": 0.2, "range_filter": 0.8}`, phase: PhaseRangeSearch},
		{name: "ip inverted band", doc: `{"metric_type": "IP", "radius": 0.8, "range_filter": 0.2}`, phase: PhaseRangeSearch, wantErr: ErrOutOfRange},
		{name: "ip negative radius", doc: `{"metric_type": "IP", "radius": -0.5}`, phase: PhaseRangeSearch},
		{name: "unknown metric", doc: `{"metric_type": "MANHATTAN"}`, phase: PhaseTrain, wantErr: ErrOutOfRange},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewBaseConfig()
			err := Prepare(c, MustParseDocument(tc.doc), tc.phase)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPrepareCanonicalizesMetric(t *testing.T) {
	c := NewBaseConfig()
	require.NoError(t, Prepare(c, MustParseDocument(`{"metric_type": "cosine"}`), PhaseTrain))
	assert.Equal(t, "COSINE", c.MetricType.Value())
}
