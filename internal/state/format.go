package state

import (
	"fmt"
	"strings"
)

const rule = "# ---------------------------------------------------\n"

// String renders the schema as a human-readable listing.
func (s *Schema) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Package: %s\n", s.label)
	b.WriteString(rule + "# Variables:\n# Name\tMetadata flags\n" + rule)
	for _, name := range s.FieldNames() {
		fmt.Fprintf(&b, "%s\t%s\n", name, s.fields[name])
	}
	b.WriteString(rule + "# Sparse Variables:\n# Name\tsparse id\tMetadata flags\n" + rule)
	for _, name := range s.SparseNames() {
		fmt.Fprintf(&b, "%s\n", name)
		for _, id := range s.SparseIDs(name) {
			fmt.Fprintf(&b, "    \t%d\t%s\n", id, s.sparse[name].variants[id])
		}
	}
	b.WriteString(rule + "# Swarms:\n# Swarm\tValue\tmetadata\n" + rule)
	for _, name := range s.SwarmNames() {
		fmt.Fprintf(&b, "%s\t%s\n", name, s.swarms[name].meta)
		for _, value := range s.SwarmValueNames(name) {
			fmt.Fprintf(&b, "     \t%s\t%s\n", value, s.swarms[name].values[value])
		}
	}
	return b.String()
}
