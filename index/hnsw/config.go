package hnsw

import (
	"fmt"
	"math"

	"github.com/hupe1980/annkit/config"
)

// Config is the parameter set of the HNSW index kind.
type Config struct {
	config.BaseConfig

	M              config.Int
	EFConstruction config.Int
	EF             config.Int
	Seed           config.Int
	OverviewLevels config.Int
}

var _ config.Formatter = (*Config)(nil)

// NewConfig returns a Config bound to a fresh schema.
func NewConfig() *Config {
	c := &Config{}
	s := config.NewSchema()
	c.Init(s)

	s.IntVar("M", &c.M).
		SetDefault(DefaultM).
		SetRange(minimumM, 2048).
		Description("number of bidirectional links per node").
		ForTrain()
	s.IntVar("efConstruction", &c.EFConstruction).
		SetDefault(DefaultEFConstruction).
		SetRange(1, math.MaxInt32).
		Description("candidate list size during insertion").
		ForTrain()
	s.IntVar("ef", &c.EF).
		AllowEmptyWithoutDefault().
		SetRange(1, math.MaxInt32).
		Description("candidate list size during search").
		ForSearch().
		ForRangeSearch()
	s.IntVar("seed", &c.Seed).
		SetDefault(DefaultSeed).
		Description("seed for level assignment").
		ForTrain()
	s.IntVar("overview_levels", &c.OverviewLevels).
		SetDefault(3).
		SetRange(1, 5).
		Description("number of top levels reported by index meta").
		ForFeder()
	return c
}

// FormatDocument accepts ef_construction as an alias of efConstruction.
func (c *Config) FormatDocument(doc config.Document) (config.Document, error) {
	r, ok := doc.Lookup("ef_construction")
	if !ok {
		return doc, nil
	}
	out := doc.Without("ef_construction")
	if out.Has("efConstruction") {
		return out, nil
	}
	return out.WithRaw("efConstruction", r.Raw)
}

// CheckAndAdjustForSearch defaults ef to max(k, 16) and rejects ef < k.
func (c *Config) CheckAndAdjustForSearch() error {
	k := c.K.Value()
	if !c.EF.IsSet() {
		c.EF.Set(max(k, DefaultEF))
		return c.BaseConfig.CheckAndAdjustForSearch()
	}
	if ef := c.EF.Value(); k > ef {
		return &config.ParamError{
			Param: "ef",
			Code:  config.ErrOutOfRange,
			Msg:   fmt.Sprintf("ef(%d) should be larger than k(%d)", ef, k),
		}
	}
	return c.BaseConfig.CheckAndAdjustForSearch()
}

// CheckAndAdjustForRangeSearch defaults ef to 16.
func (c *Config) CheckAndAdjustForRangeSearch() error {
	if !c.EF.IsSet() {
		c.EF.Set(DefaultEF)
	}
	return c.BaseConfig.CheckAndAdjustForRangeSearch()
}

// Options converts the TRAIN parameters into construction options.
func (c *Config) Options(o *Options) {
	o.M = int(c.M.Value())
	o.EFConstruction = int(c.EFConstruction.Value())
	o.Seed = int64(c.Seed.Value())
}
