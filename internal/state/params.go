package state

import (
	"fmt"
	"maps"
	"slices"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// AddParam stores a package-level parameter. Params are write-once.
func (s *Schema) AddParam(name string, v cty.Value) error {
	if _, ok := s.params[name]; ok {
		return Errorf(ErrDuplicateParam, s.label, name, "param '%s' already set on package '%s'", name, s.label)
	}
	s.params[name] = v
	return nil
}

// ParamValue returns the raw value of a param.
func (s *Schema) ParamValue(name string) (cty.Value, bool) {
	v, ok := s.params[name]
	return v, ok
}

// ParamNames lists param names in sorted order.
func (s *Schema) ParamNames() []string {
	return slices.Sorted(maps.Keys(s.params))
}

// Param decodes a param into a Go value of type T.
func Param[T any](s *Schema, name string) (T, error) {
	var out T
	v, ok := s.params[name]
	if !ok {
		return out, Errorf(ErrUnknownParam, s.label, name, "package '%s' has no param '%s'", s.label, name)
	}
	if err := gocty.FromCtyValue(v, &out); err != nil {
		return out, fmt.Errorf("package '%s' param '%s': %w", s.label, name, err)
	}
	return out, nil
}

// ParamOr decodes a param, falling back to def when it is not set.
func ParamOr[T any](s *Schema, name string, def T) (T, error) {
	if _, ok := s.params[name]; !ok {
		return def, nil
	}
	return Param[T](s, name)
}
