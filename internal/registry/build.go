package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/meshflow/internal/config"
	"github.com/vk/meshflow/internal/ctxlog"
	"github.com/vk/meshflow/internal/metadata"
	"github.com/vk/meshflow/internal/state"
)

// Build assembles the package set of a run. Configured packages come first
// in declaration order, followed by registered modules the configuration
// does not mention. A configured package backed by a module starts from the
// module's schema; its declarations are added on top.
func (r *Registry) Build(ctx context.Context, decls []*config.Package) (*state.Packages, error) {
	logger := ctxlog.FromContext(ctx)
	packages := state.NewPackages()
	configured := make(map[string]bool, len(decls))

	for _, decl := range decls {
		configured[decl.Name] = true

		var s *state.Schema
		if m, ok := r.byName[decl.Name]; ok {
			var err error
			if s, err = m.Initialize(decl.Params); err != nil {
				return nil, fmt.Errorf("failed to initialize package '%s': %w", decl.Name, err)
			}
		} else {
			logger.Debug("Package has no compiled module; using its declarations only.", "package", decl.Name)
			s = state.New(decl.Name)
			for name, v := range decl.Params {
				if err := s.AddParam(name, v); err != nil {
					return nil, err
				}
			}
		}
		if err := Declare(ctx, s, decl); err != nil {
			return nil, err
		}
		if err := packages.Add(s); err != nil {
			return nil, err
		}
	}

	for _, m := range r.modules {
		if configured[m.Name()] {
			continue
		}
		s, err := m.Initialize(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize package '%s': %w", m.Name(), err)
		}
		if err := packages.Add(s); err != nil {
			return nil, err
		}
	}

	logger.Debug("Packages built.", "count", packages.Len(), "order", packages.Names())
	return packages, nil
}

// Declare adds the field, sparse and swarm declarations of decl to s. All
// malformed declarations are reported together.
func Declare(ctx context.Context, s *state.Schema, decl *config.Package) error {
	logger := ctxlog.FromContext(ctx).With("package", decl.Name)
	var errs []string

	for _, v := range decl.Fields {
		d, err := descriptor(v, false)
		if err != nil {
			errs = append(errs, fmt.Sprintf("field '%s': %v", v.Name, err))
			continue
		}
		added, err := s.AddField(v.Name, d)
		if err != nil {
			errs = append(errs, err.Error())
		} else if !added {
			logger.Warn("Ignoring repeated field declaration.", "field", v.Name)
		}
	}

	for _, v := range decl.Sparse {
		d, err := descriptor(v, true)
		if err != nil {
			errs = append(errs, fmt.Sprintf("sparse '%s' id %d: %v", v.Name, v.SparseID, err))
			continue
		}
		added, err := s.AddField(v.Name, d)
		if err != nil {
			errs = append(errs, err.Error())
		} else if !added {
			logger.Warn("Ignoring repeated sparse declaration.", "field", v.Name, "sparseID", v.SparseID)
		}
	}

	for _, sw := range decl.Swarms {
		meta, err := descriptor(&config.Variable{Name: sw.Name, Role: sw.Role, Flags: sw.Flags}, false)
		if err != nil {
			errs = append(errs, fmt.Sprintf("swarm '%s': %v", sw.Name, err))
			continue
		}
		if !s.AddSwarm(sw.Name, meta) {
			logger.Warn("Swarm already declared; adding values to the existing swarm.", "swarm", sw.Name)
		}
		for _, v := range sw.Values {
			d, err := descriptor(v, false)
			if err != nil {
				errs = append(errs, fmt.Sprintf("swarm '%s' value '%s': %v", sw.Name, v.Name, err))
				continue
			}
			if _, err := s.AddSwarmValue(v.Name, sw.Name, d); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid declarations in package '%s':\n- %s", decl.Name, strings.Join(errs, "\n- "))
	}
	return nil
}

func descriptor(v *config.Variable, sparse bool) (metadata.Descriptor, error) {
	role, err := metadata.ParseRole(v.Role)
	if err != nil {
		return metadata.Descriptor{}, err
	}
	flags, err := metadata.ParseFlags(v.Flags)
	if err != nil {
		return metadata.Descriptor{}, err
	}
	var d metadata.Descriptor
	if sparse {
		d = metadata.NewSparse(v.SparseID, role, flags, v.Shape...)
	} else {
		d = metadata.New(role, flags, v.Shape...)
	}
	d.Attributes = v.Attributes
	return d, nil
}
