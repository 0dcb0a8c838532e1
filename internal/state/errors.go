package state

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package and by the resolver
// unwraps to exactly one of them.
var (
	ErrSchemaConflict        = errors.New("schema conflict")
	ErrMissingProvider       = errors.New("missing provider")
	ErrInvalidSwarmReference = errors.New("invalid swarm reference")
	ErrDuplicateSwarmValue   = errors.New("duplicate swarm value")
	ErrSparseShapeMismatch   = errors.New("sparse shape mismatch")
	ErrUnknownDependency     = errors.New("unknown dependency kind")
	ErrDuplicatePackage      = errors.New("duplicate package")
	ErrDuplicateParam        = errors.New("duplicate param")
	ErrUnknownParam          = errors.New("unknown param")
)

// Error is a schema failure tied to one variable name.
type Error struct {
	Kind    error
	Package string
	Name    string
	Msg     string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// Errorf builds an *Error of the given kind.
func Errorf(kind error, pkg, name, format string, args ...any) error {
	return &Error{Kind: kind, Package: pkg, Name: name, Msg: fmt.Sprintf(format, args...)}
}
