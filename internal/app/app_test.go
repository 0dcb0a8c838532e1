package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/meshflow/internal/config"
	"github.com/vk/meshflow/internal/driver"
	"github.com/vk/meshflow/internal/state"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// staticLoader hands out a prepared model.
type staticLoader struct {
	model *config.Model
	err   error
	paths []string
}

func (l *staticLoader) Load(_ context.Context, paths ...string) (*config.Model, error) {
	l.paths = paths
	return l.model, l.err
}

func piModel(t *testing.T) *config.Model {
	t.Helper()
	m := config.Defaults()
	m.Mesh = &config.Mesh{NX1: 32, NX2: 32, X1Min: -1, X1Max: 1, X2Min: -1, X2Max: 1, MBNX1: 8, MBNX2: 8}
	m.Driver.SummaryPath = filepath.Join(t.TempDir(), "summary.txt")
	return m
}

func setupApp(t *testing.T, model *config.Model) (*App, *SafeBuffer, *SafeBuffer) {
	t.Helper()
	out, logs := &SafeBuffer{}, &SafeBuffer{}
	a, err := NewApp(out, logs, &Config{InputPath: "input.hcl", LogLevel: "debug", LogFormat: "text"}, &staticLoader{model: model})
	require.NoError(t, err)
	t.Cleanup(func() {
		if os.Getenv("MESHFLOW_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})
	return a, out, logs
}

func TestNewApp_LoadsAllPaths(t *testing.T) {
	loader := &staticLoader{model: config.Defaults()}
	a, err := NewApp(&SafeBuffer{}, &SafeBuffer{}, &Config{InputPath: "deck.hcl", ManifestsPath: "packages", WorkerCount: 7}, loader)
	require.NoError(t, err)
	assert.Equal(t, []string{"deck.hcl", "packages"}, loader.paths)
	assert.Equal(t, 7, a.Model().Driver.Workers)
	assert.Equal(t, []string{"calculate_pi"}, a.Registry().Names())
}

func TestNewApp_LoadFailure(t *testing.T) {
	_, err := NewApp(&SafeBuffer{}, &SafeBuffer{}, &Config{InputPath: "x"}, &staticLoader{err: errors.New("bad file")})
	assert.ErrorContains(t, err, "failed to load configuration: bad file")
}

func TestNewApp_EnvOverrides(t *testing.T) {
	t.Setenv("MESHFLOW_SUMMARY_PATH", "/tmp/elsewhere.txt")
	t.Setenv("MESHFLOW_RANKS", "3")
	a, err := NewApp(&SafeBuffer{}, &SafeBuffer{}, &Config{InputPath: "x"}, &staticLoader{model: config.Defaults()})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/elsewhere.txt", a.Model().Driver.SummaryPath)
	assert.Equal(t, 3, a.Model().Parallel.Ranks)
}

func TestRun_Serial(t *testing.T) {
	model := piModel(t)
	a, out, _ := setupApp(t, model)

	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, out.String(), "PI = ")

	drivers := a.Drivers()
	require.Len(t, drivers, 1)
	assert.Equal(t, driver.Reported, drivers[0].Phase())
	assert.InDelta(t, 3.14, drivers[0].Result().Value, 0.2)

	_, err := os.Stat(model.Driver.SummaryPath)
	assert.NoError(t, err)
}

func TestRun_LocalRanksMatchSerial(t *testing.T) {
	serial, _, _ := setupApp(t, piModel(t))
	require.NoError(t, serial.Run(context.Background()))
	want := serial.Drivers()[0].Result().Value

	model := piModel(t)
	model.Parallel.Mode = "local"
	model.Parallel.Ranks = 4
	a, out, _ := setupApp(t, model)
	require.NoError(t, a.Run(context.Background()))

	drivers := a.Drivers()
	require.Len(t, drivers, 4)
	var root *driver.Driver
	for _, d := range drivers {
		assert.Equal(t, driver.Reported, d.Phase())
		if d.Result().Value != 0 {
			root = d
		}
	}
	require.NotNil(t, root)
	assert.InDelta(t, want, root.Result().Value, 1e-12)
	assert.Equal(t, 1, bytes.Count([]byte(out.String()), []byte("PI = ")), "only the root reports")
}

func TestRun_ResolutionErrorAbortsBeforeComputation(t *testing.T) {
	model := piModel(t)
	model.Packages = []*config.Package{
		{Name: "rival", Fields: []*config.Variable{{Name: "in_or_out", Role: "provides"}}},
	}
	a, out, _ := setupApp(t, model)

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, state.ErrSchemaConflict)
	assert.Empty(t, a.Drivers())
	assert.Empty(t, out.String())
}

func TestRun_MissingProviderIsFatal(t *testing.T) {
	model := piModel(t)
	model.Packages = []*config.Package{
		{Name: "consumer", Fields: []*config.Variable{{Name: "density", Role: "requires"}}},
	}
	a, _, _ := setupApp(t, model)
	err := a.Run(context.Background())
	assert.ErrorIs(t, err, state.ErrMissingProvider)
}

func TestRun_TooFewBlocks(t *testing.T) {
	model := piModel(t)
	model.Parallel.Mode = "local"
	model.Parallel.Ranks = 32
	a, _, _ := setupApp(t, model)
	err := a.Run(context.Background())
	assert.ErrorContains(t, err, "too few mesh blocks")
}

func TestRun_InvalidParallelMode(t *testing.T) {
	model := piModel(t)
	model.Parallel.Mode = "mpi"
	a, _, _ := setupApp(t, model)
	assert.ErrorContains(t, a.Run(context.Background()), "unknown parallel mode 'mpi'")

	model = piModel(t)
	model.Parallel.Ranks = 2
	a, _, _ = setupApp(t, model)
	assert.ErrorContains(t, a.Run(context.Background()), "cannot run 2 ranks")
}

func TestHealthHandler(t *testing.T) {
	a, _, _ := setupApp(t, piModel(t))
	require.NoError(t, a.Run(context.Background()))

	rec := httptest.NewRecorder()
	a.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "OK")
	assert.Contains(t, rec.Body.String(), "driver 0: reported")
}

func TestNewConfig(t *testing.T) {
	_, err := NewConfig(Config{})
	assert.ErrorContains(t, err, "InputPath is a required")

	cfg, err := NewConfig(Config{InputPath: "deck.hcl"})
	require.NoError(t, err)
	assert.Equal(t, "deck.hcl", cfg.InputPath)
}
