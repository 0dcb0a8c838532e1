// Package hclconfig loads run configuration from HCL files into the
// format-agnostic config.Model.
package hclconfig

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/meshflow/internal/config"
	"github.com/vk/meshflow/internal/ctxlog"
	"github.com/vk/meshflow/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// origins remembers the file each singleton block was first declared in.
type origins map[string]string

func (o origins) claim(kind, file string) error {
	if first, ok := o[kind]; ok {
		return fmt.Errorf("duplicate '%s' block in %s: first defined in %s", kind, file, first)
	}
	o[kind] = file
	return nil
}

// Load parses every .hcl file under paths and merges their blocks over
// config.Defaults. Packages keep the order in which they are encountered.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := config.Defaults()

	files, err := fsutil.FindFiles(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	singletons := origins{}
	packages := make(map[string]string)

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, b := range root.Mesh {
			if err := singletons.claim("mesh", file); err != nil {
				return nil, err
			}
			applyMesh(model.Mesh, b)
		}
		for _, b := range root.Driver {
			if err := singletons.claim("driver", file); err != nil {
				return nil, err
			}
			applyDriver(model.Driver, b)
		}
		for _, b := range root.Parallel {
			if err := singletons.claim("parallel", file); err != nil {
				return nil, err
			}
			if err := applyParallel(model.Parallel, b); err != nil {
				return nil, err
			}
		}
		for _, b := range root.Packages {
			if first, ok := packages[b.Name]; ok {
				return nil, fmt.Errorf("package '%s' declared more than once: in %s and %s", b.Name, first, file)
			}
			packages[b.Name] = file
			pkg, err := translatePackage(b)
			if err != nil {
				return nil, err
			}
			model.Packages = append(model.Packages, pkg)
		}
	}

	logger.Debug("HCL loading complete.", "files", len(files), "packages", len(model.Packages))
	return model, nil
}

func applyMesh(m *config.Mesh, b *meshBlock) {
	set(&m.NX1, b.NX1)
	set(&m.NX2, b.NX2)
	set(&m.X1Min, b.X1Min)
	set(&m.X1Max, b.X1Max)
	set(&m.X2Min, b.X2Min)
	set(&m.X2Max, b.X2Max)
	set(&m.MBNX1, b.MBNX1)
	set(&m.MBNX2, b.MBNX2)
}

func applyDriver(d *config.Driver, b *driverBlock) {
	set(&d.UseMeshPack, b.UseMeshPack)
	set(&d.SummaryPath, b.SummaryPath)
	set(&d.Workers, b.Workers)
	set(&d.Async, b.Async)
	set(&d.StreamDepth, b.StreamDepth)
}

func applyParallel(p *config.Parallel, b *parallelBlock) error {
	set(&p.Mode, b.Mode)
	set(&p.Rank, b.Rank)
	set(&p.Ranks, b.Ranks)
	set(&p.Addr, b.Addr)
	if b.Timeout != nil {
		d, err := time.ParseDuration(*b.Timeout)
		if err != nil {
			return fmt.Errorf("invalid parallel timeout '%s': %w", *b.Timeout, err)
		}
		p.Timeout = d
	}
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func translatePackage(b *packageBlock) (*config.Package, error) {
	pkg := &config.Package{Name: b.Name, Params: make(map[string]cty.Value)}

	if b.Params != nil && b.Params.Body != nil {
		attrs, diags := b.Params.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid params in package '%s': %w", b.Name, diags)
		}
		for name, attr := range attrs {
			v, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("invalid value for param '%s' in package '%s': %w", name, b.Name, diags)
			}
			pkg.Params[name] = v
		}
	}

	for _, f := range b.Fields {
		v, err := translateVariable(b.Name, "field", f.Name, f.Role, f.Flags, f.Shape, f.Attributes)
		if err != nil {
			return nil, err
		}
		pkg.Fields = append(pkg.Fields, v)
	}
	for _, s := range b.Sparse {
		v, err := translateVariable(b.Name, "sparse", s.Name, s.Role, s.Flags, s.Shape, s.Attributes)
		if err != nil {
			return nil, err
		}
		v.SparseID = s.ID
		pkg.Sparse = append(pkg.Sparse, v)
	}
	for _, sw := range b.Swarms {
		swarm := &config.Swarm{Name: sw.Name, Role: deref(sw.Role), Flags: sw.Flags}
		for _, val := range sw.Values {
			v, err := translateVariable(b.Name, "swarm value", val.Name, val.Role, val.Flags, val.Shape, val.Attributes)
			if err != nil {
				return nil, err
			}
			swarm.Values = append(swarm.Values, v)
		}
		pkg.Swarms = append(pkg.Swarms, swarm)
	}
	return pkg, nil
}

func translateVariable(pkg, kind, name string, role *string, flags []string, shape []int, attrs hcl.Expression) (*config.Variable, error) {
	v := &config.Variable{Name: name, Role: deref(role), Flags: flags, Shape: shape}
	if !isExprDefined(attrs) {
		return v, nil
	}
	val, diags := attrs.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid attributes for %s '%s' in package '%s': %w", kind, name, pkg, diags)
	}
	if val.IsNull() {
		return v, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("attributes for %s '%s' in package '%s' must be an object, got %s", kind, name, pkg, val.Type().FriendlyName())
	}
	v.Attributes = val.AsValueMap()
	return v, nil
}

// isExprDefined reports whether expr was written in the source. Omitted
// optional attributes decode to zero-width placeholder expressions.
func isExprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
