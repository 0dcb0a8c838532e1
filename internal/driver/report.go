package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/meshflow/internal/comm"
	"github.com/vk/meshflow/internal/ctxlog"
)

// RelError is the signed error of v relative to ref.
func RelError(v, ref float64) float64 {
	return (v - ref) / ref
}

// FormatSummary renders the two-line summary persisted by the root.
func FormatSummary(label string, v, relErr float64) string {
	return fmt.Sprintf("%s = %.6g\nrel error = %.6g\n", label, v, relErr)
}

// PostExecute reports the reduced value. Only the root prints it and writes
// the summary file; every rank then runs the teardown hook.
func (d *Driver) PostExecute(ctx context.Context, local, value float64) error {
	logger := ctxlog.FromContext(ctx)
	ctx, span := d.tracer.Start(ctx, "driver.PostExecute")
	defer span.End()

	res := Result{LocalSum: local}
	if d.reducer.Rank() == comm.Root {
		label := d.problem.Label()
		res.Value = value
		res.RelError = RelError(value, d.problem.Reference())

		fmt.Fprintf(d.opts.Stdout, "\n\n%s = %.6g    rel error = %.6g\n\n\n", label, res.Value, res.RelError)
		if d.opts.SummaryPath != "" {
			if err := writeSummary(d.opts.SummaryPath, FormatSummary(label, res.Value, res.RelError)); err != nil {
				return err
			}
		}
		logger.Info("Run summary.", "label", label, "value", res.Value, "relError", res.RelError, "mbcnt", d.mesh.MBCount())
	}

	d.mu.Lock()
	d.result = res
	d.phase = Reported
	d.mu.Unlock()

	if d.opts.Teardown != nil {
		if err := d.opts.Teardown(ctx); err != nil {
			return fmt.Errorf("teardown: %w", err)
		}
	}
	return nil
}

func writeSummary(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create summary directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
