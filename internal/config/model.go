package config

import (
	"context"
	"time"

	"github.com/zclconf/go-cty/cty"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given files and directories and
	// translates it into the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// Model is the unified, format-agnostic representation of one run.
type Model struct {
	Mesh     *Mesh
	Driver   *Driver
	Parallel *Parallel
	// Packages are kept in declaration order, which is also the order the
	// resolver visits them in.
	Packages []*Package
}

// Mesh describes the global mesh and its block decomposition.
type Mesh struct {
	NX1, NX2     int
	X1Min, X1Max float64
	X2Min, X2Max float64
	MBNX1, MBNX2 int
}

// Driver holds the execution settings of the driver.
type Driver struct {
	// UseMeshPack selects one whole-domain computation instead of the
	// per-block task graph.
	UseMeshPack bool
	SummaryPath string
	Workers     int
	Async       bool
	StreamDepth int
}

// Parallel places this process among the ranks of a run.
type Parallel struct {
	// Mode is one of "serial", "local" or "socketio".
	Mode    string
	Rank    int
	Ranks   int
	Addr    string
	Timeout time.Duration
}

// Package is the declaration of one package: its parameters and the
// variables it owns or needs.
type Package struct {
	Name   string
	Params map[string]cty.Value
	Fields []*Variable
	Sparse []*Variable
	Swarms []*Swarm
}

// Variable is one declared field, sparse variant or swarm value.
type Variable struct {
	Name string
	// Role and Flags are kept as written; they are parsed when the
	// package schema is built.
	Role       string
	Flags      []string
	Shape      []int
	SparseID   int
	Attributes map[string]cty.Value
}

// Swarm is a declared particle swarm with its per-particle values.
type Swarm struct {
	Name   string
	Role   string
	Flags  []string
	Values []*Variable
}

// Package returns the declaration named name, or nil.
func (m *Model) Package(name string) *Package {
	for _, p := range m.Packages {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Defaults returns a model holding the values used for settings a
// configuration leaves out.
func Defaults() *Model {
	return &Model{
		Mesh: &Mesh{
			NX1: 64, NX2: 64,
			X1Min: 0, X1Max: 1,
			X2Min: 0, X2Max: 1,
			MBNX1: 16, MBNX2: 16,
		},
		Driver: &Driver{
			SummaryPath: "summary.txt",
			Workers:     4,
			StreamDepth: 16,
		},
		Parallel: &Parallel{
			Mode:    "serial",
			Rank:    0,
			Ranks:   1,
			Addr:    "127.0.0.1:7070",
			Timeout: time.Minute,
		},
	}
}
