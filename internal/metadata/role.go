package metadata

import (
	"fmt"
	"strings"
)

// Role governs how a declaration takes part in cross-package resolution.
type Role uint8

const (
	None Role = iota
	Private
	Provides
	Requires
	Overridable
)

var roleNames = map[Role]string{
	None:        "none",
	Private:     "private",
	Provides:    "provides",
	Requires:    "requires",
	Overridable: "overridable",
}

// String returns the lower-case name used in configuration files.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole converts a configuration string into a Role. The empty string
// maps to None.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return None, nil
	}
	for role, name := range roleNames {
		if name == s {
			return role, nil
		}
	}
	return None, fmt.Errorf("unknown dependency role '%s': must be 'private', 'provides', 'requires' or 'overridable'", s)
}
