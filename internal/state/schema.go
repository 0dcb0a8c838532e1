package state

import (
	"maps"
	"slices"

	"github.com/vk/meshflow/internal/metadata"
	"github.com/zclconf/go-cty/cty"
)

// ResolvedLabel is the label carried by schemas produced by the resolver.
const ResolvedLabel = "meshflow::resolved_state"

// Schema holds the variables, sparse variants, swarms and params declared by
// one package. The resolver produces a Schema of the same shape holding the
// merged global namespace.
//
// A Schema is not safe for concurrent mutation. Once resolution hands it to
// the mesh it is only read.
type Schema struct {
	label    string
	resolved bool

	fields map[string]metadata.Descriptor
	sparse map[string]*sparsePool
	swarms map[string]*swarm
	params map[string]cty.Value
}

// sparsePool keeps every variant of one sparse name, keyed by sparse id, and
// the first-registered variant all later ones must agree with.
type sparsePool struct {
	canonical metadata.Descriptor
	variants  map[int]metadata.Descriptor
}

type swarm struct {
	meta   metadata.Descriptor
	values map[string]metadata.Descriptor
}

// New returns an empty schema owned by the named package.
func New(label string) *Schema {
	return &Schema{
		label:  label,
		fields: make(map[string]metadata.Descriptor),
		sparse: make(map[string]*sparsePool),
		swarms: make(map[string]*swarm),
		params: make(map[string]cty.Value),
	}
}

// NewResolved returns an empty schema for the merged namespace. Descriptors
// added to it carry no owning package.
func NewResolved() *Schema {
	s := New(ResolvedLabel)
	s.resolved = true
	return s
}

// Label is the owning package name.
func (s *Schema) Label() string { return s.label }

func (s *Schema) owner() string {
	if s.resolved {
		return ""
	}
	return s.label
}

// AddField registers a dense field or one sparse variant.
//
// Dense fields are first-wins: re-adding a known name returns false and
// leaves the schema unchanged. Sparse variants are keyed by (name, sparse
// id); re-adding a known id returns false, and a variant whose role, flags
// or shape disagree with the first variant of that name fails with
// ErrSparseShapeMismatch.
func (s *Schema) AddField(name string, d metadata.Descriptor) (bool, error) {
	if !d.IsSparse() {
		if _, ok := s.fields[name]; ok {
			return false, nil
		}
		s.fields[name] = d.Clone(s.owner())
		return true, nil
	}

	pool, ok := s.sparse[name]
	if !ok {
		c := d.Clone(s.owner())
		s.sparse[name] = &sparsePool{
			canonical: c,
			variants:  map[int]metadata.Descriptor{d.SparseID: c},
		}
		return true, nil
	}
	if !pool.canonical.SparseEqual(d) {
		return false, Errorf(ErrSparseShapeMismatch, s.label, name,
			"sparse variable '%s' id %d declares '%s', but earlier variants declare '%s'; all variants must share role, flags and shape",
			name, d.SparseID, d, pool.canonical)
	}
	if _, ok := pool.variants[d.SparseID]; ok {
		return false, nil
	}
	pool.variants[d.SparseID] = d.Clone(s.owner())
	return true, nil
}

// AddSwarm registers a swarm. It returns false if the swarm already exists.
func (s *Schema) AddSwarm(name string, d metadata.Descriptor) bool {
	if _, ok := s.swarms[name]; ok {
		return false
	}
	s.swarms[name] = &swarm{
		meta:   d.Clone(s.owner()),
		values: make(map[string]metadata.Descriptor),
	}
	return true
}

// AddSwarmValue registers a per-particle value on an existing swarm.
func (s *Schema) AddSwarmValue(value, swarmName string, d metadata.Descriptor) (bool, error) {
	sw, ok := s.swarms[swarmName]
	if !ok {
		return false, Errorf(ErrInvalidSwarmReference, s.label, swarmName,
			"swarm '%s' does not exist, cannot add value '%s'", swarmName, value)
	}
	if _, ok := sw.values[value]; ok {
		return false, Errorf(ErrDuplicateSwarmValue, s.label, value,
			"swarm value '%s' already exists on swarm '%s'", value, swarmName)
	}
	sw.values[value] = d.Clone(s.owner())
	return true, nil
}

// FlagsPresent reports whether any dense field or sparse variant has any
// (matchAny) or all of the given flags.
func (s *Schema) FlagsPresent(flags []metadata.Flag, matchAny bool) bool {
	for _, d := range s.fields {
		if d.FlagsSet(flags, matchAny) {
			return true
		}
	}
	for _, pool := range s.sparse {
		for _, d := range pool.variants {
			if d.FlagsSet(flags, matchAny) {
				return true
			}
		}
	}
	return false
}

// ValidateMetadata promotes every declaration without a role to Provides.
// It must run before the schema takes part in resolution.
func (s *Schema) ValidateMetadata() {
	promote := func(d metadata.Descriptor) metadata.Descriptor {
		if d.Role == metadata.None {
			d.Role = metadata.Provides
		}
		return d
	}
	for name, d := range s.fields {
		s.fields[name] = promote(d)
	}
	for _, pool := range s.sparse {
		pool.canonical = promote(pool.canonical)
		for id, d := range pool.variants {
			pool.variants[id] = promote(d)
		}
	}
	for _, sw := range s.swarms {
		sw.meta = promote(sw.meta)
	}
}

// HasField reports whether a dense field or any sparse variant uses name.
func (s *Schema) HasField(name string) bool {
	if _, ok := s.fields[name]; ok {
		return true
	}
	_, ok := s.sparse[name]
	return ok
}

// Field returns a copy of the descriptor of a dense field.
func (s *Schema) Field(name string) (metadata.Descriptor, bool) {
	d, ok := s.fields[name]
	if !ok {
		return metadata.Descriptor{}, false
	}
	return d.Clone(d.Package), true
}

// AllFields returns a deep copy of the dense field map.
func (s *Schema) AllFields() map[string]metadata.Descriptor {
	out := make(map[string]metadata.Descriptor, len(s.fields))
	for name, d := range s.fields {
		out[name] = d.Clone(d.Package)
	}
	return out
}

// AllSwarms returns a copy of the swarm descriptors, keyed by swarm name.
func (s *Schema) AllSwarms() map[string]metadata.Descriptor {
	out := make(map[string]metadata.Descriptor, len(s.swarms))
	for name, sw := range s.swarms {
		out[name] = sw.meta.Clone(sw.meta.Package)
	}
	return out
}

// FieldNames lists dense field names in sorted order.
func (s *Schema) FieldNames() []string {
	return slices.Sorted(maps.Keys(s.fields))
}

// SparseNames lists sparse variable names in sorted order.
func (s *Schema) SparseNames() []string {
	return slices.Sorted(maps.Keys(s.sparse))
}

// SparseIDs lists the ids registered for a sparse name in ascending order.
func (s *Schema) SparseIDs(name string) []int {
	pool, ok := s.sparse[name]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(pool.variants))
}

// Sparse returns the descriptor of one sparse variant.
func (s *Schema) Sparse(name string, id int) (metadata.Descriptor, bool) {
	pool, ok := s.sparse[name]
	if !ok {
		return metadata.Descriptor{}, false
	}
	d, ok := pool.variants[id]
	if !ok {
		return metadata.Descriptor{}, false
	}
	return d.Clone(d.Package), true
}

// HasSwarm reports whether the swarm exists.
func (s *Schema) HasSwarm(name string) bool {
	_, ok := s.swarms[name]
	return ok
}

// Swarm returns the descriptor of a swarm.
func (s *Schema) Swarm(name string) (metadata.Descriptor, bool) {
	sw, ok := s.swarms[name]
	if !ok {
		return metadata.Descriptor{}, false
	}
	return sw.meta.Clone(sw.meta.Package), true
}

// SwarmNames lists swarm names in sorted order.
func (s *Schema) SwarmNames() []string {
	return slices.Sorted(maps.Keys(s.swarms))
}

// SwarmValueNames lists the values of a swarm in sorted order.
func (s *Schema) SwarmValueNames(swarmName string) []string {
	sw, ok := s.swarms[swarmName]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(sw.values))
}

// SwarmValue returns the descriptor of one swarm value.
func (s *Schema) SwarmValue(swarmName, value string) (metadata.Descriptor, bool) {
	sw, ok := s.swarms[swarmName]
	if !ok {
		return metadata.Descriptor{}, false
	}
	d, ok := sw.values[value]
	if !ok {
		return metadata.Descriptor{}, false
	}
	return d.Clone(d.Package), true
}

// Len is the number of dense fields, sparse variants and swarms.
func (s *Schema) Len() int {
	n := len(s.fields) + len(s.swarms)
	for _, pool := range s.sparse {
		n += len(pool.variants)
	}
	return n
}
