package mesh

import (
	"fmt"

	"github.com/vk/meshflow/internal/metadata"
	"github.com/vk/meshflow/internal/state"
)

// Container is the variable storage of one block, laid out from the
// resolved schema. The schema's structure is fixed; only the values held
// here change during a run.
type Container struct {
	fields map[string][]float64
	sparse map[string]map[int][]float64
	swarms map[string]map[string][]float64
}

// newContainer allocates storage for every dense field, sparse variant and
// swarm value of resolved. Swarms start with no particles.
func newContainer(resolved *state.Schema, nx1, nx2 int) *Container {
	c := &Container{
		fields: make(map[string][]float64),
		sparse: make(map[string]map[int][]float64),
		swarms: make(map[string]map[string][]float64),
	}
	for _, name := range resolved.FieldNames() {
		d, _ := resolved.Field(name)
		c.fields[name] = make([]float64, points(d, nx1, nx2)*d.Size())
	}
	for _, name := range resolved.SparseNames() {
		ids := make(map[int][]float64)
		for _, id := range resolved.SparseIDs(name) {
			d, _ := resolved.Sparse(name, id)
			ids[id] = make([]float64, points(d, nx1, nx2)*d.Size())
		}
		c.sparse[name] = ids
	}
	for _, name := range resolved.SwarmNames() {
		values := make(map[string][]float64)
		for _, v := range resolved.SwarmValueNames(name) {
			values[v] = []float64{}
		}
		c.swarms[name] = values
	}
	return c
}

// points is the number of mesh locations a variable lives on.
func points(d metadata.Descriptor, nx1, nx2 int) int {
	switch {
	case d.Flags.Has(metadata.Face), d.Flags.Has(metadata.Edge):
		return (nx1+1)*nx2 + nx1*(nx2+1)
	case d.Flags.Has(metadata.Node):
		return (nx1 + 1) * (nx2 + 1)
	default:
		return nx1 * nx2
	}
}

// Field returns the storage of a dense field.
func (c *Container) Field(name string) ([]float64, error) {
	v, ok := c.fields[name]
	if !ok {
		return nil, fmt.Errorf("field '%s' is not part of the resolved state", name)
	}
	return v, nil
}

// Sparse returns the storage of one sparse variant.
func (c *Container) Sparse(name string, id int) ([]float64, error) {
	v, ok := c.sparse[name][id]
	if !ok {
		return nil, fmt.Errorf("sparse field '%s' has no variant %d in the resolved state", name, id)
	}
	return v, nil
}

// SwarmValue returns the per-particle storage of a swarm value.
func (c *Container) SwarmValue(swarm, value string) ([]float64, error) {
	v, ok := c.swarms[swarm][value]
	if !ok {
		return nil, fmt.Errorf("swarm '%s' has no value '%s' in the resolved state", swarm, value)
	}
	return v, nil
}

// NumFields counts dense fields and sparse variants.
func (c *Container) NumFields() int {
	n := len(c.fields)
	for _, ids := range c.sparse {
		n += len(ids)
	}
	return n
}
