package config

import (
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/hupe1980/annkit/space"
)

// Config is implemented by every index kind's parameter set.
type Config interface {
	// Schema returns the registry bound to this config's fields.
	Schema() *Schema
	// Base returns the baseline parameters shared by all kinds.
	Base() *BaseConfig
	// CheckAndAdjustForBuild runs after a successful TRAIN load.
	CheckAndAdjustForBuild() error
	// CheckAndAdjustForSearch runs after a successful SEARCH load.
	CheckAndAdjustForSearch() error
	// CheckAndAdjustForRangeSearch runs after a successful RANGE_SEARCH load.
	CheckAndAdjustForRangeSearch() error
}

// MaxDim is the largest accepted vector dimension.
const MaxDim = 32768

// BaseConfig holds the parameters every index kind exposes.
type BaseConfig struct {
	schema *Schema

	MetricType     String
	K              Int
	NumBuildThread Int
	Dim            Int
	Radius         Float
	RangeFilter    Float
	TraceVisit     Bool
	EnableMmap     Bool
	ForTuning      Bool
}

// NewBaseConfig returns a BaseConfig with its own schema.
func NewBaseConfig() *BaseConfig {
	b := &BaseConfig{}
	b.Init(NewSchema())
	return b
}

// Init binds the baseline parameters into s. Kind configs call it before
// registering their own parameters on the same schema.
func (b *BaseConfig) Init(s *Schema) {
	b.schema = s

	s.StringVar("metric_type", &b.MetricType).
		SetDefault("L2").
		Description("distance metric: L2, IP, COSINE, HAMMING or JACCARD").
		ForTrainAndSearch()
	s.IntVar("k", &b.K).
		SetDefault(10).
		SetRange(1, math.MaxInt32).
		Description("number of nearest neighbors to return").
		ForSearch()
	s.IntVar("num_build_thread", &b.NumBuildThread).
		AllowEmptyWithoutDefault().
		SetRange(1, int32(runtime.NumCPU())).
		Description("number of goroutines used to build the index").
		ForTrain()
	s.IntVar("dim", &b.Dim).
		AllowEmptyWithoutDefault().
		SetRange(1, MaxDim).
		Description("vector dimension; defaults to the dataset's").
		ForTrain()
	s.FloatVar("radius", &b.Radius).
		SetDefault(0).
		Description("outer bound of a range search").
		ForRangeSearch()
	s.FloatVar("range_filter", &b.RangeFilter).
		SetDefault(float32(math.Inf(1))).
		Description("inner bound of a range search").
		ForRangeSearch()
	s.BoolVar("trace_visit", &b.TraceVisit).
		SetDefault(false).
		Description("record visited nodes for visualization").
		ForSearch().
		ForRangeSearch()
	s.BoolVar("enable_mmap", &b.EnableMmap).
		SetDefault(false).
		Description("memory-map the index file instead of reading it").
		ForDeserializeFromFile()
	s.BoolVar("for_tuning", &b.ForTuning).
		SetDefault(false).
		Description("search exactly as configured, without adjusting ef").
		ForSearch()
}

// Schema implements Config.
func (b *BaseConfig) Schema() *Schema { return b.schema }

// Base implements Config.
func (b *BaseConfig) Base() *BaseConfig { return b }

// Metric parses MetricType.
func (b *BaseConfig) Metric() (space.Metric, error) {
	m, err := space.ParseMetric(b.MetricType.Value())
	if err != nil {
		return 0, paramErrorf(ErrOutOfRange, "metric_type", "metric_type %s is not supported", b.MetricType.Value())
	}
	return m, nil
}

// CheckAndAdjustForBuild validates and canonicalizes the metric name.
func (b *BaseConfig) CheckAndAdjustForBuild() error {
	if _, err := b.Metric(); err != nil {
		return err
	}
	b.MetricType.Set(strings.ToUpper(b.MetricType.Value()))
	return nil
}

// CheckAndAdjustForSearch is a no-op for the baseline parameters.
func (b *BaseConfig) CheckAndAdjustForSearch() error { return nil }

// CheckAndAdjustForRangeSearch checks radius and range_filter against the
// metric. Distance metrics keep range_filter <= d <= radius and require a
// non-negative radius. Similarity metrics keep radius <= s <= range_filter.
// A range_filter of +Inf disables the inner bound.
func (b *BaseConfig) CheckAndAdjustForRangeSearch() error {
	m, err := b.Metric()
	if err != nil {
		return err
	}
	radius := b.Radius.Value()
	rf := b.RangeFilter.Value()
	unbounded := math.IsInf(float64(rf), 1)

	if m.IsSimilarity() {
		if !unbounded && rf < radius {
			return paramErrorf(ErrOutOfRange, "range_filter",
				"range_filter(%s) should be no less than radius(%s) for metric %s", formatFloat(rf), formatFloat(radius), m)
		}
		return nil
	}

	if radius < 0 {
		return paramErrorf(ErrOutOfRange, "radius",
			"radius(%s) should be non-negative for metric %s", formatFloat(radius), m)
	}
	if !unbounded && rf > radius {
		return paramErrorf(ErrOutOfRange, "range_filter",
			"range_filter(%s) should be no greater than radius(%s) for metric %s", formatFloat(rf), formatFloat(radius), m)
	}
	return nil
}

// Prepare runs the full validation pipeline for phase: any kind-specific
// Formatter, FormatAndCheck, Load, and the CheckAndAdjust hooks for
// every phase bit set in phase.
func Prepare(c Config, doc Document, phase Phase) error {
	s := c.Schema()
	if s == nil {
		return fmt.Errorf("config: %T has no schema", c)
	}

	formatted := doc
	if f, ok := c.(Formatter); ok {
		var err error
		formatted, err = f.FormatDocument(formatted)
		if err != nil {
			return err
		}
	}
	formatted, err := s.FormatAndCheck(formatted)
	if err != nil {
		return err
	}

	if err := s.Load(formatted, phase); err != nil {
		return err
	}

	if phase.Has(PhaseTrain) {
		if err := c.CheckAndAdjustForBuild(); err != nil {
			return err
		}
	}
	if phase.Has(PhaseSearch) {
		if err := c.CheckAndAdjustForSearch(); err != nil {
			return err
		}
	}
	if phase.Has(PhaseRangeSearch) {
		if err := c.CheckAndAdjustForRangeSearch(); err != nil {
			return err
		}
	}
	return nil
}
