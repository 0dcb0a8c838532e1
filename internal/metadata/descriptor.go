package metadata

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// InvalidSparseID marks a dense (non-sparse) descriptor.
const InvalidSparseID = math.MinInt32

// Descriptor is a single variable's declared role and attributes.
type Descriptor struct {
	// Package is the declaring package. It is empty on resolved descriptors.
	Package  string
	Role     Role
	SparseID int
	Flags    FlagSet
	// Shape is the per-cell component shape; nil means scalar.
	Shape []int
	// Attributes is an opaque payload carried through resolution untouched.
	Attributes map[string]cty.Value
}

// New returns a dense descriptor.
func New(role Role, flags FlagSet, shape ...int) Descriptor {
	return Descriptor{
		Role:     role,
		SparseID: InvalidSparseID,
		Flags:    flags.Without(Sparse),
		Shape:    shape,
	}
}

// NewSparse returns a descriptor for one sparse variant.
func NewSparse(id int, role Role, flags FlagSet, shape ...int) Descriptor {
	return Descriptor{
		Role:     role,
		SparseID: id,
		Flags:    flags.With(Sparse),
		Shape:    shape,
	}
}

// IsSparse reports whether d is a sparse variant.
func (d Descriptor) IsSparse() bool {
	return d.Flags.Has(Sparse)
}

// Size is the number of components per cell.
func (d Descriptor) Size() int {
	n := 1
	for _, s := range d.Shape {
		n *= s
	}
	return n
}

// FlagsSet reports whether any (matchAny) or all of flags are set on d.
// An empty flag list never matches.
func (d Descriptor) FlagsSet(flags []Flag, matchAny bool) bool {
	if len(flags) == 0 {
		return false
	}
	for _, f := range flags {
		has := d.Flags.Has(f)
		if matchAny && has {
			return true
		}
		if !matchAny && !has {
			return false
		}
	}
	return !matchAny
}

// SparseEqual reports whether two sparse variants agree on everything except
// their sparse id.
func (d Descriptor) SparseEqual(o Descriptor) bool {
	return d.Role == o.Role && d.Flags == o.Flags && slices.Equal(d.Shape, o.Shape)
}

// Clone returns a deep copy of d with the given owning package.
func (d Descriptor) Clone(pkg string) Descriptor {
	out := d
	out.Package = pkg
	out.Shape = slices.Clone(d.Shape)
	if d.Attributes != nil {
		out.Attributes = make(map[string]cty.Value, len(d.Attributes))
		for k, v := range d.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

func (d Descriptor) String() string {
	var b strings.Builder
	b.WriteString(d.Role.String())
	if flags := d.Flags.String(); flags != "" {
		b.WriteString(",")
		b.WriteString(flags)
	}
	if len(d.Shape) > 0 {
		fmt.Fprintf(&b, " shape=%v", d.Shape)
	}
	return b.String()
}
