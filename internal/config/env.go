package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds the environment overrides of a run. Unset numeric values are
// negative so that an explicit zero still applies.
type Env struct {
	Rank        int    `env:"MESHFLOW_RANK" envDefault:"-1"`
	Ranks       int    `env:"MESHFLOW_RANKS" envDefault:"-1"`
	Reducer     string `env:"MESHFLOW_REDUCER"`
	ReducerAddr string `env:"MESHFLOW_REDUCER_ADDR"`
	SummaryPath string `env:"MESHFLOW_SUMMARY_PATH"`
}

// ParseEnv reads overrides from the process environment, or from environ
// when it is non-nil.
func ParseEnv(environ map[string]string) (Env, error) {
	var e Env
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// Apply writes every set override into m.
func (e Env) Apply(m *Model) {
	if m.Parallel == nil {
		m.Parallel = Defaults().Parallel
	}
	if m.Driver == nil {
		m.Driver = Defaults().Driver
	}
	if e.Rank >= 0 {
		m.Parallel.Rank = e.Rank
	}
	if e.Ranks >= 0 {
		m.Parallel.Ranks = e.Ranks
	}
	if e.Reducer != "" {
		m.Parallel.Mode = e.Reducer
	}
	if e.ReducerAddr != "" {
		m.Parallel.Addr = e.ReducerAddr
	}
	if e.SummaryPath != "" {
		m.Driver.SummaryPath = e.SummaryPath
	}
}
