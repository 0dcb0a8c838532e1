package resolve

import (
	"context"
	"fmt"

	"github.com/vk/meshflow/internal/ctxlog"
	"github.com/vk/meshflow/internal/metadata"
	"github.com/vk/meshflow/internal/state"
)

// WarningKind classifies non-fatal resolution findings.
type WarningKind string

// AmbiguousOverride: a name declared Overridable more than once and never
// provided. The first registrant wins.
const AmbiguousOverride WarningKind = "ambiguous override"

// Warning is a non-fatal resolution finding.
type Warning struct {
	Kind   WarningKind
	Name   string
	Count  int
	Winner string
	Msg    string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Msg)
}

// Result is the outcome of a successful resolution.
type Result struct {
	Schema   *state.Schema
	Warnings []Warning
}

// fieldSink inserts dense fields and sparse variants.
type fieldSink struct {
	out *state.Schema
}

func (s *fieldSink) Insert(p Placement, pkg, name string, d metadata.Descriptor) error {
	_, err := s.out.AddField(p.Key(pkg, name), d)
	return err
}

// swarmSink inserts a swarm together with the values its declaring package
// attached to it.
type swarmSink struct {
	out      *state.Schema
	packages *state.Packages
}

func (s *swarmSink) Insert(p Placement, pkg, name string, d metadata.Descriptor) error {
	key := p.Key(pkg, name)
	if !s.out.AddSwarm(key, d) {
		return state.Errorf(state.ErrSchemaConflict, pkg, name, "swarm '%s' resolved twice", key)
	}
	src, ok := s.packages.Get(pkg)
	if !ok {
		return fmt.Errorf("swarm '%s': package '%s' is not registered", name, pkg)
	}
	for _, value := range src.SwarmValueNames(name) {
		vd, _ := src.SwarmValue(name, value)
		if _, err := s.out.AddSwarmValue(value, key, vd); err != nil {
			return err
		}
	}
	return nil
}

// Resolve merges the schemas of all packages into one conflict-free schema.
//
// Every package is validated and sorted in registration order. Required
// names are then checked against the provided ones, and Overridable
// fallbacks fill the names nobody provides. The first error aborts the pass
// and no schema is returned.
func Resolve(ctx context.Context, packages *state.Packages) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Resolving package schemas.", "packages", packages.Names())

	out := state.NewResolved()
	fields := &fieldSink{out: out}
	swarms := &swarmSink{out: out, packages: packages}
	varTracker := NewTracker("variable")
	swarmTracker := NewTracker("swarm")

	err := packages.Each(func(pkg *state.Schema) error {
		pkg.ValidateMetadata()
		label := pkg.Label()

		if err := varTracker.SortCollection(label, pkg.AllFields(), fields); err != nil {
			return err
		}
		for _, name := range pkg.SparseNames() {
			for _, id := range pkg.SparseIDs(name) {
				d, _ := pkg.Sparse(name, id)
				if err := varTracker.Sort(label, name, d, fields); err != nil {
					return err
				}
			}
		}
		if err := swarmTracker.SortCollection(label, pkg.AllSwarms(), swarms); err != nil {
			return err
		}
		logger.Debug("Package sorted.", "package", label)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve packages: %w", err)
	}

	if err := varTracker.CheckRequires(); err != nil {
		return nil, fmt.Errorf("failed to resolve packages: %w", err)
	}
	if err := swarmTracker.CheckRequires(); err != nil {
		return nil, fmt.Errorf("failed to resolve packages: %w", err)
	}

	varWarnings, err := varTracker.CheckOverridable(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve packages: %w", err)
	}
	swarmWarnings, err := swarmTracker.CheckOverridable(swarms)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve packages: %w", err)
	}

	warnings := append(varWarnings, swarmWarnings...)
	for _, w := range warnings {
		logger.Warn("Ambiguous overridable declaration.", "name", w.Name, "count", w.Count, "winner", w.Winner)
	}
	logger.Debug("Package schemas resolved.", "entries", out.Len(), "warnings", len(warnings))

	return &Result{Schema: out, Warnings: warnings}, nil
}
