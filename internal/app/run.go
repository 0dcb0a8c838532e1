package app

import (
	"context"
	"fmt"

	"github.com/vk/meshflow/internal/comm"
	"github.com/vk/meshflow/internal/ctxlog"
	"github.com/vk/meshflow/internal/driver"
	"github.com/vk/meshflow/internal/mesh"
	"github.com/vk/meshflow/internal/resolve"
	"github.com/vk/meshflow/internal/state"
	"github.com/vk/meshflow/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// run holds what every local rank shares.
type run struct {
	packages *state.Packages
	resolved *state.Schema
	problem  driver.Problem
}

// Run executes one cycle. Resolution runs first; a resolution error aborts
// the run before any mesh is built.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	shutdown, err := telemetry.Setup(ctx, "meshflow")
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			a.logger.Warn("Tracing shutdown failed.", "error", err)
		}
	}()

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx, a.config.HealthcheckPort)
		defer a.closeHealthcheckServer(ctx)
	}

	packages, err := a.registry.Build(ctx, a.model.Packages)
	if err != nil {
		return fmt.Errorf("failed to build packages: %w", err)
	}
	res, err := resolve.Resolve(ctx, packages)
	if err != nil {
		return err
	}
	a.logger.Info("Packages resolved.", "packages", packages.Names(), "variables", res.Schema.Len(), "warnings", len(res.Warnings))

	problem, err := a.registry.Problem(packages)
	if err != nil {
		return err
	}
	r := &run{packages: packages, resolved: res.Schema, problem: problem}

	par := a.model.Parallel
	switch par.Mode {
	case "", "serial", string(comm.KindIdentity):
		if par.Ranks > 1 {
			return fmt.Errorf("parallel mode '%s' cannot run %d ranks", par.Mode, par.Ranks)
		}
		return a.runRank(ctx, r, comm.Identity{})
	case string(comm.KindLocal):
		return a.runLocal(ctx, r, par.Ranks)
	case string(comm.KindSocketIO):
		reducer, err := comm.New(ctx, comm.Config{
			Kind:    comm.KindSocketIO,
			Rank:    par.Rank,
			Size:    par.Ranks,
			Addr:    par.Addr,
			Timeout: par.Timeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create reducer: %w", err)
		}
		defer reducer.Close()
		return a.runRank(ctx, r, reducer)
	default:
		return fmt.Errorf("unknown parallel mode '%s'", par.Mode)
	}
}

// runLocal simulates n ranks in this process.
func (a *App) runLocal(ctx context.Context, r *run, n int) error {
	group, err := comm.NewLocalGroup(n)
	if err != nil {
		return fmt.Errorf("failed to create reducer: %w", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, reducer := range group {
		g.Go(func() error {
			if err := a.runRank(gctx, r, reducer); err != nil {
				return fmt.Errorf("rank %d: %w", reducer.Rank(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (a *App) runRank(ctx context.Context, r *run, reducer comm.Reducer) error {
	ctx, logger := ctxlog.Scope(ctx, "rank", reducer.Rank())

	mc, dc := a.model.Mesh, a.model.Driver
	m, err := mesh.New(ctx, mesh.Config{
		NX1: mc.NX1, NX2: mc.NX2,
		X1Min: mc.X1Min, X1Max: mc.X1Max,
		X2Min: mc.X2Min, X2Max: mc.X2Max,
		MBNX1: mc.MBNX1, MBNX2: mc.MBNX2,
	}, mesh.Layout{
		Rank:        reducer.Rank(),
		Ranks:       reducer.Size(),
		Async:       dc.Async,
		StreamDepth: dc.StreamDepth,
	}, r.packages, r.resolved)
	if err != nil {
		return fmt.Errorf("failed to build mesh: %w", err)
	}
	defer m.Close()

	d := driver.New(m, r.problem, reducer, driver.Options{
		UseMeshPack: dc.UseMeshPack,
		SummaryPath: dc.SummaryPath,
		Workers:     dc.Workers,
		Stdout:      a.outW,
		Teardown: func(ctx context.Context) error {
			ctxlog.FromContext(ctx).Debug("Driver teardown.", "mbcnt", m.MBCount())
			return nil
		},
	})
	a.addDriver(d)

	logger.Info("Starting driver cycle.", "blocks", len(m.Blocks()), "nbtotal", m.NBTotal())
	status, err := d.Execute(ctx)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	logger.Info("Driver cycle finished.", "status", status)
	return nil
}
