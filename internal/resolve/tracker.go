package resolve

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/vk/meshflow/internal/metadata"
	"github.com/vk/meshflow/internal/state"
)

// candidate is a cached Overridable declaration.
type candidate struct {
	pkg  string
	desc metadata.Descriptor
}

type candidateKey struct {
	name     string
	sparseID int
}

// Tracker classifies declarations by role during one resolution pass and
// enforces the cross-package rules. A Tracker is discarded once the pass is
// over; it is not safe for concurrent use.
type Tracker struct {
	kind string

	provided map[string]string // name -> providing package

	required      map[string][]string // name -> requiring packages
	requiredOrder []string

	overridable   map[string]int
	overrideOrder []string
	candidates    map[string][]candidate
	cached        map[candidateKey]bool
}

// NewTracker returns an empty tracker. kind names what is tracked
// ("variable", "swarm") in error messages.
func NewTracker(kind string) *Tracker {
	return &Tracker{
		kind:        kind,
		provided:    make(map[string]string),
		required:    make(map[string][]string),
		overridable: make(map[string]int),
		candidates:  make(map[string][]candidate),
		cached:      make(map[candidateKey]bool),
	}
}

// Sort classifies one declaration of pkg.
//
// Private declarations go straight to the sink under a mangled name.
// Provides declarations are first-claim-wins: a second package providing the
// same name fails with state.ErrSchemaConflict. Requires declarations are
// recorded for CheckRequires. Overridable declarations are cached, first
// registrant per (name, sparse id), for CheckOverridable.
func (t *Tracker) Sort(pkg, name string, d metadata.Descriptor, sink Sink) error {
	switch d.Role {
	case metadata.Private:
		return sink.Insert(MangleAndInsert, pkg, name, d)

	case metadata.Provides:
		if owner, ok := t.provided[name]; ok && owner != pkg {
			return state.Errorf(state.ErrSchemaConflict, pkg, name,
				"%s '%s' provided by multiple packages: '%s' and '%s'", t.kind, name, owner, pkg)
		}
		t.provided[name] = pkg
		return sink.Insert(InsertBare, pkg, name, d)

	case metadata.Requires:
		if _, ok := t.required[name]; !ok {
			t.requiredOrder = append(t.requiredOrder, name)
		}
		t.required[name] = append(t.required[name], pkg)
		return nil

	case metadata.Overridable:
		key := candidateKey{name: name, sparseID: d.SparseID}
		if !t.cached[key] {
			t.cached[key] = true
			t.candidates[name] = append(t.candidates[name], candidate{pkg: pkg, desc: d})
		}
		if t.overridable[name] == 0 {
			t.overrideOrder = append(t.overrideOrder, name)
		}
		// Counts every declaration, including further sparse ids of a name
		// already cached.
		t.overridable[name]++
		return nil

	default:
		return state.Errorf(state.ErrUnknownDependency, pkg, name,
			"%s '%s' in package '%s' has unknown dependency role '%s'", t.kind, name, pkg, d.Role)
	}
}

// SortCollection sorts every declaration of a collection in name order.
func (t *Tracker) SortCollection(pkg string, c map[string]metadata.Descriptor, sink Sink) error {
	for _, name := range slices.Sorted(maps.Keys(c)) {
		if err := t.Sort(pkg, name, c[name], sink); err != nil {
			return err
		}
	}
	return nil
}

// Provided reports whether some package provides name.
func (t *Tracker) Provided(name string) bool {
	_, ok := t.provided[name]
	return ok
}

// CheckRequires fails with state.ErrMissingProvider for the first required
// name no package provides. It must run after every package is sorted.
func (t *Tracker) CheckRequires() error {
	for _, name := range t.requiredOrder {
		if t.Provided(name) {
			continue
		}
		pkgs := t.required[name]
		return state.Errorf(state.ErrMissingProvider, pkgs[0], name,
			"%s '%s' registered as required by %s, but not provided by any package",
			t.kind, name, strings.Join(quote(pkgs), ", "))
	}
	return nil
}

// CheckOverridable settles Overridable declarations. Candidates for a
// provided name are dropped. Otherwise the first registrant of each
// (name, sparse id) goes to the sink, and a name declared Overridable more
// than once yields an AmbiguousOverride warning.
func (t *Tracker) CheckOverridable(sink Sink) ([]Warning, error) {
	var warnings []Warning
	for _, name := range t.overrideOrder {
		if t.Provided(name) {
			continue
		}
		cands := t.candidates[name]
		if count := t.overridable[name]; count > 1 {
			warnings = append(warnings, Warning{
				Kind:   AmbiguousOverride,
				Name:   name,
				Count:  count,
				Winner: cands[0].pkg,
				Msg: fmt.Sprintf("%s '%s' registered as overridable %d times, but never provided; using the declaration of '%s'",
					t.kind, name, count, cands[0].pkg),
			})
		}
		for _, c := range cands {
			if err := sink.Insert(InsertBare, c.pkg, name, c.desc); err != nil {
				return nil, err
			}
		}
	}
	return warnings, nil
}

func quote(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = "'" + s + "'"
	}
	return out
}
