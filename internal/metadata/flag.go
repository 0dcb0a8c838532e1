package metadata

import (
	"fmt"
	"sort"
	"strings"
)

// Flag is a single boolean property of a variable.
type Flag uint8

const (
	Cell Flag = iota
	Face
	Edge
	Node
	Independent
	Derived
	OneCopy
	FillGhost
	Vector
	Tensor
	Restart
	Sparse
	Particle
)

var flagNames = []string{
	Cell:        "cell",
	Face:        "face",
	Edge:        "edge",
	Node:        "node",
	Independent: "independent",
	Derived:     "derived",
	OneCopy:     "one_copy",
	FillGhost:   "fill_ghost",
	Vector:      "vector",
	Tensor:      "tensor",
	Restart:     "restart",
	Sparse:      "sparse",
	Particle:    "particle",
}

func (f Flag) String() string {
	if int(f) < len(flagNames) {
		return flagNames[f]
	}
	return fmt.Sprintf("flag(%d)", uint8(f))
}

// ParseFlag converts a configuration string into a Flag.
func ParseFlag(s string) (Flag, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range flagNames {
		if name == s {
			return Flag(i), nil
		}
	}
	return 0, fmt.Errorf("unknown metadata flag '%s'", s)
}

// ParseFlags converts a list of configuration strings into a FlagSet.
func ParseFlags(names []string) (FlagSet, error) {
	var set FlagSet
	for _, name := range names {
		f, err := ParseFlag(name)
		if err != nil {
			return 0, err
		}
		set = set.With(f)
	}
	return set, nil
}

// FlagSet is a bit set of flags.
type FlagSet uint32

// NewFlagSet builds a set from the given flags.
func NewFlagSet(flags ...Flag) FlagSet {
	var s FlagSet
	for _, f := range flags {
		s = s.With(f)
	}
	return s
}

func (s FlagSet) With(f Flag) FlagSet    { return s | 1<<f }
func (s FlagSet) Without(f Flag) FlagSet { return s &^ (1 << f) }
func (s FlagSet) Has(f Flag) bool        { return s&(1<<f) != 0 }

// Flags lists the set members in declaration order.
func (s FlagSet) Flags() []Flag {
	var out []Flag
	for i := range flagNames {
		if s.Has(Flag(i)) {
			out = append(out, Flag(i))
		}
	}
	return out
}

func (s FlagSet) String() string {
	names := make([]string, 0, len(flagNames))
	for _, f := range s.Flags() {
		names = append(names, f.String())
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
