// Package calculatepi estimates pi by measuring the area of a circle of a
// configurable radius on the mesh.
//
// Every cell inside the circle counts its area. The block total is stored in
// element 0 of the in_or_out field and divided by radius² when the driver
// sums the blocks.
package calculatepi

import (
	"context"
	"fmt"
	"math"

	"github.com/vk/meshflow/internal/driver"
	"github.com/vk/meshflow/internal/mesh"
	"github.com/vk/meshflow/internal/metadata"
	"github.com/vk/meshflow/internal/state"
	"github.com/vk/meshflow/internal/tasks"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

const (
	Name        = "calculate_pi"
	Field       = "in_or_out"
	ParamRadius = "radius"
)

// Module implements registry.Module for this package.
type Module struct{}

func (Module) Name() string { return Name }

// Initialize declares the in_or_out field and the radius param, which
// defaults to 1.
func (Module) Initialize(params map[string]cty.Value) (*state.Schema, error) {
	s := state.New(Name)

	radius := cty.NumberFloatVal(1.0)
	for name, v := range params {
		if name != ParamRadius {
			return nil, state.Errorf(state.ErrUnknownParam, Name, name, "package '%s' does not accept param '%s'", Name, name)
		}
		radius = v
	}
	var r float64
	if err := gocty.FromCtyValue(radius, &r); err != nil {
		return nil, fmt.Errorf("package '%s' param '%s': %w", Name, ParamRadius, err)
	}
	if r <= 0 {
		return nil, fmt.Errorf("package '%s' param '%s' must be positive, got %g", Name, ParamRadius, r)
	}
	if err := s.AddParam(ParamRadius, radius); err != nil {
		return nil, err
	}

	flags := metadata.NewFlagSet(metadata.Cell, metadata.Derived, metadata.OneCopy)
	if _, err := s.AddField(Field, metadata.New(metadata.Provides, flags)); err != nil {
		return nil, err
	}
	return s, nil
}

// Problem builds the driver problem from the package schema.
func (Module) Problem(s *state.Schema) (driver.Problem, error) {
	r, err := state.Param[float64](s, ParamRadius)
	if err != nil {
		return nil, err
	}
	return &Problem{Radius: r}, nil
}

// Problem measures the area of a circle centred on the origin.
type Problem struct {
	Radius float64
}

var _ driver.Problem = (*Problem)(nil)

func (p *Problem) Package() string     { return Name }
func (p *Problem) ResultField() string { return Field }
func (p *Problem) Reference() float64  { return math.Pi }
func (p *Problem) Label() string       { return "PI" }

// Normalize divides a block area by radius².
func (p *Problem) Normalize(_ *mesh.Block, v float64) float64 {
	return v / (p.Radius * p.Radius)
}

// MakeTasks builds one region with an independent list per block.
func (p *Problem) MakeTasks(blocks []*mesh.Block) *tasks.Collection {
	var tc tasks.Collection
	region := tc.AddRegion(len(blocks))
	for i, b := range blocks {
		region.List(i).AddTask(tasks.None, "compute_area", func(context.Context) error {
			return p.ComputeArea(b)
		})
	}
	return &tc
}

// ComputeArea launches the area kernel on the block's execution space. The
// result is visible once the space has been fenced.
func (p *Problem) ComputeArea(b *mesh.Block) error {
	v, err := b.Container.Field(Field)
	if err != nil {
		return err
	}
	b.Space.Launch(func() error {
		p.areaKernel(b, v)
		return nil
	})
	return nil
}

// ComputeOnMesh computes every local block and returns the normalized sum.
func (p *Problem) ComputeOnMesh(_ context.Context, m *mesh.Mesh) (float64, error) {
	var sum float64
	for _, b := range m.Blocks() {
		v, err := b.Container.Field(Field)
		if err != nil {
			return 0, fmt.Errorf("block %d: %w", b.GID, err)
		}
		p.areaKernel(b, v)
		sum += p.Normalize(b, v[0])
	}
	return sum, nil
}

// areaKernel marks each cell inside the circle and stores the block area
// in v[0].
func (p *Problem) areaKernel(b *mesh.Block, v []float64) {
	r2 := p.Radius * p.Radius
	cellArea := b.DX1 * b.DX2
	var area float64
	for j := range b.NX2 {
		for i := range b.NX1 {
			x1, x2 := b.CellCenter(i, j)
			k := j*b.NX1 + i
			if x1*x1+x2*x2 < r2 {
				v[k] = 1
				area += cellArea
			} else {
				v[k] = 0
			}
		}
	}
	v[0] = area
}
