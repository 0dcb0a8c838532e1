// Package testutil runs input decks end to end for integration tests.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/meshflow/internal/app"
	"github.com/vk/meshflow/internal/hclconfig"
	"github.com/vk/meshflow/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	Dir       string
	Output    string
	LogOutput string
	Err       error
	App       *app.App
}

// SummaryPath is where decks run by the harness write their summary.
func (r *HarnessResult) SummaryPath() string {
	return filepath.Join(r.Dir, "summary.txt")
}

// RunDeck writes files under a temporary root and runs the app with
// "input.hcl" as the deck and "packages" as the manifests directory. The
// summary path is pinned inside the root. With no modules the core modules
// are registered.
func RunDeck(t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()
	return RunDeckWithContext(context.Background(), t, files, modules...)
}

// RunDeckWithContext is RunDeck with a caller-provided context.
func RunDeckWithContext(ctx context.Context, t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	t.Setenv("MESHFLOW_SUMMARY_PATH", filepath.Join(dir, "summary.txt"))

	out, logs := &SafeBuffer{}, &SafeBuffer{}
	res := &HarnessResult{Dir: dir}
	defer func() {
		res.Output = out.String()
		res.LogOutput = logs.String()
		if os.Getenv("MESHFLOW_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), res.LogOutput)
		}
	}()

	cfg := &app.Config{
		InputPath:     filepath.Join(dir, "input.hcl"),
		ManifestsPath: filepath.Join(dir, "packages"),
		LogLevel:      "debug",
		LogFormat:     "text",
	}
	a, err := app.NewApp(out, logs, cfg, hclconfig.NewLoader(), modules...)
	if err != nil {
		res.Err = err
		return res
	}
	res.App = a
	res.Err = a.Run(ctx)
	return res
}
