package resolve

import (
	"fmt"

	"github.com/vk/meshflow/internal/metadata"
)

// Placement decides under which name a sorted declaration lands in the
// resolved schema.
type Placement uint8

const (
	// MangleAndInsert namespaces the declaration as "<package>::<name>".
	MangleAndInsert Placement = iota
	// InsertBare inserts the declaration under its own name.
	InsertBare
)

// Key returns the resolved name for a declaration of pkg.
func (p Placement) Key(pkg, name string) string {
	if p == MangleAndInsert {
		return Mangle(pkg, name)
	}
	return name
}

func (p Placement) String() string {
	switch p {
	case MangleAndInsert:
		return "mangle"
	case InsertBare:
		return "bare"
	default:
		return fmt.Sprintf("placement(%d)", uint8(p))
	}
}

// Mangle returns the package-private name of a variable.
func Mangle(pkg, name string) string {
	return pkg + "::" + name
}

// Sink receives the declarations a Tracker lets through.
type Sink interface {
	Insert(p Placement, pkg, name string, d metadata.Descriptor) error
}
