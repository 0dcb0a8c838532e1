package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vk/meshflow/internal/comm"
	"github.com/vk/meshflow/internal/ctxlog"
	"github.com/vk/meshflow/internal/device"
	"github.com/vk/meshflow/internal/mesh"
	"github.com/vk/meshflow/internal/tasks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vk/meshflow/internal/driver"

// ErrAlreadyExecuted is returned by a second call to Execute.
var ErrAlreadyExecuted = errors.New("driver already executed")

// Phase is the progress of a driver through its single cycle.
type Phase int32

const (
	Setup Phase = iota
	GraphBuilt
	GraphExecuted
	Reduced
	Reported
)

func (p Phase) String() string {
	switch p {
	case Setup:
		return "setup"
	case GraphBuilt:
		return "graph_built"
	case GraphExecuted:
		return "graph_executed"
	case Reduced:
		return "reduced"
	case Reported:
		return "reported"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Status is the outcome of Execute.
type Status int

const (
	Complete Status = iota
	Failed
)

func (s Status) String() string {
	if s == Complete {
		return "complete"
	}
	return "failed"
}

// Problem is the computation a package contributes to a driver cycle.
type Problem interface {
	// Package names the package owning the problem's parameters.
	Package() string
	// ResultField is the dense field whose element 0 holds a block's result.
	ResultField() string
	// MakeTasks builds the task collection covering blocks.
	MakeTasks(blocks []*mesh.Block) *tasks.Collection
	// ComputeOnMesh computes the normalized local result over every local
	// block in one pass.
	ComputeOnMesh(ctx context.Context, m *mesh.Mesh) (float64, error)
	// Normalize turns a raw block result into its contribution to the sum.
	Normalize(b *mesh.Block, v float64) float64
	// Reference is the exact value the result approximates.
	Reference() float64
	// Label prefixes the reported value.
	Label() string
}

// Outputs writes state before the computation starts.
type Outputs interface {
	MakeOutputs(ctx context.Context, m *mesh.Mesh) error
}

// LogOutputs logs the resolved schema at debug level.
type LogOutputs struct{}

func (LogOutputs) MakeOutputs(ctx context.Context, m *mesh.Mesh) error {
	ctxlog.FromContext(ctx).Debug("Resolved state.", "schema", m.Resolved().String())
	return nil
}

// Options configures a Driver.
type Options struct {
	// UseMeshPack runs Problem.ComputeOnMesh instead of the task graph.
	UseMeshPack bool
	// SummaryPath is where the root writes its summary. Empty disables the
	// file.
	SummaryPath string
	Workers     int
	// Stdout receives the root's report. Defaults to os.Stdout.
	Stdout   io.Writer
	Outputs  Outputs
	Teardown func(ctx context.Context) error
}

// Result is what one cycle produced on this rank.
type Result struct {
	LocalSum float64
	// Value and RelError are only meaningful on the root.
	Value    float64
	RelError float64
}

// Driver runs exactly one execution cycle over the local blocks of a mesh.
type Driver struct {
	mesh    *mesh.Mesh
	problem Problem
	reducer comm.Reducer
	opts    Options
	tracer  trace.Tracer

	mu      sync.Mutex
	started bool
	phase   Phase
	result  Result
}

// New returns a driver in the Setup phase.
func New(m *mesh.Mesh, p Problem, r comm.Reducer, opts Options) *Driver {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Outputs == nil {
		opts.Outputs = LogOutputs{}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Driver{
		mesh:    m,
		problem: p,
		reducer: r,
		opts:    opts,
		tracer:  otel.Tracer(tracerName),
	}
}

// Phase reports how far the cycle has progressed.
func (d *Driver) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

// Result returns the outcome of the last completed cycle.
func (d *Driver) Result() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result
}

func (d *Driver) advance(p Phase) {
	d.mu.Lock()
	d.phase = p
	d.mu.Unlock()
}

// Execute runs the cycle: pre-state outputs, the computation, per-block
// extraction, one global reduction and PostExecute. Any failure is fatal
// for the run. Only the first call runs; later calls fail, whether the
// first one succeeded, failed or is still running.
func (d *Driver) Execute(ctx context.Context) (Status, error) {
	d.mu.Lock()
	if d.started {
		phase := d.phase
		d.mu.Unlock()
		return Failed, fmt.Errorf("%w: phase is %s", ErrAlreadyExecuted, phase)
	}
	d.started = true
	d.mu.Unlock()

	ctx, span := d.tracer.Start(ctx, "driver.Execute", trace.WithAttributes(
		attribute.Int("rank", d.reducer.Rank()),
		attribute.Int("blocks", len(d.mesh.Blocks())),
		attribute.Bool("use_mesh_pack", d.opts.UseMeshPack),
	))
	defer span.End()

	if err := d.execute(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ctxlog.FromContext(ctx).Error("Driver cycle failed.", "phase", d.Phase(), "error", err)
		return Failed, err
	}
	return Complete, nil
}

func (d *Driver) execute(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	if err := d.opts.Outputs.MakeOutputs(ctx, d.mesh); err != nil {
		return fmt.Errorf("pre-state outputs: %w", err)
	}

	var local float64
	var err error
	if d.opts.UseMeshPack {
		local, err = d.computeOnMesh(ctx)
	} else {
		local, err = d.runTasks(ctx)
	}
	if err != nil {
		return err
	}
	logger.Debug("Local sum computed.", "value", local, "blocks", len(d.mesh.Blocks()))

	value, err := d.reduce(ctx, local)
	if err != nil {
		return err
	}
	d.mesh.AddProcessed(d.mesh.NBTotal())

	return d.PostExecute(ctx, local, value)
}

func (d *Driver) computeOnMesh(ctx context.Context) (float64, error) {
	ctx, span := d.tracer.Start(ctx, "driver.ComputeOnMesh")
	defer span.End()

	d.advance(GraphBuilt)
	local, err := d.problem.ComputeOnMesh(ctx, d.mesh)
	if err != nil {
		return 0, fmt.Errorf("whole-domain computation: %w", err)
	}
	d.advance(GraphExecuted)
	return local, nil
}

func (d *Driver) runTasks(ctx context.Context) (float64, error) {
	ctx, span := d.tracer.Start(ctx, "driver.Tasks")
	defer span.End()

	blocks := d.mesh.Blocks()
	tc := d.problem.MakeTasks(blocks)
	d.advance(GraphBuilt)
	span.SetAttributes(attribute.Int("tasks", tc.Len()))

	if err := tc.Execute(ctx, d.opts.Workers); err != nil {
		return 0, fmt.Errorf("task execution: %w", err)
	}
	d.advance(GraphExecuted)

	var local float64
	for _, b := range blocks {
		storage, err := b.Container.Field(d.problem.ResultField())
		if err != nil {
			return 0, fmt.Errorf("block %d: %w", b.GID, err)
		}
		if len(storage) == 0 {
			return 0, fmt.Errorf("block %d: field '%s' has no storage", b.GID, d.problem.ResultField())
		}
		v, err := device.CopyScalar(b.Space, func() float64 { return storage[0] })
		if err != nil {
			return 0, fmt.Errorf("block %d: %w", b.GID, err)
		}
		local += d.problem.Normalize(b, v)
	}
	return local, nil
}

func (d *Driver) reduce(ctx context.Context, local float64) (float64, error) {
	ctx, span := d.tracer.Start(ctx, "driver.Reduce", trace.WithAttributes(
		attribute.Int("ranks", d.reducer.Size()),
	))
	defer span.End()

	value, err := d.reducer.SumToRoot(ctx, local)
	if err != nil {
		return 0, fmt.Errorf("global reduction: %w", err)
	}
	d.advance(Reduced)
	return value, nil
}
