package flat

import "github.com/hupe1980/annkit/config"

// Config is the parameter set of the FLAT index kind. It has no
// parameters beyond the baseline.
type Config struct {
	config.BaseConfig
}

// NewConfig returns a Config bound to a fresh schema.
func NewConfig() *Config {
	c := &Config{}
	c.Init(config.NewSchema())
	return c
}
