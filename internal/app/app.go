package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vk/meshflow/internal/config"
	"github.com/vk/meshflow/internal/ctxlog"
	"github.com/vk/meshflow/internal/driver"
	"github.com/vk/meshflow/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	model    *config.Model
	config   *Config

	httpServer *http.Server

	mu      sync.Mutex
	drivers []*driver.Driver
}

// NewApp is the constructor for the main application. It builds an isolated
// logger writing to logW, loads configuration through loader, applies
// environment overrides and registers modules (the core modules when none
// are given). Reports go to outW.
func NewApp(outW, logW io.Writer, appConfig *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	var configPaths []string
	if appConfig.InputPath != "" {
		configPaths = append(configPaths, appConfig.InputPath)
	}
	if appConfig.ManifestsPath != "" {
		configPaths = append(configPaths, appConfig.ManifestsPath)
	}

	model, err := loader.Load(ctx, configPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Configuration loaded and translated into unified model.")

	env, err := config.ParseEnv(nil)
	if err != nil {
		return nil, err
	}
	env.Apply(model)
	if appConfig.WorkerCount > 0 {
		model.Driver.Workers = appConfig.WorkerCount
	}

	if len(modules) == 0 {
		modules = coreModules
	}
	reg, err := registry.New(modules...)
	if err != nil {
		return nil, err
	}
	logger.Debug("All Go modules registered.", "count", len(modules), "modules", reg.Names())

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		model:    model,
		config:   appConfig,
	}, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the loaded configuration.
func (a *App) Model() *config.Model {
	return a.model
}

// Drivers returns the drivers of the current or last run, one per local
// rank.
func (a *App) Drivers() []*driver.Driver {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*driver.Driver, len(a.drivers))
	copy(out, a.drivers)
	return out
}

func (a *App) addDriver(d *driver.Driver) {
	a.mu.Lock()
	a.drivers = append(a.drivers, d)
	a.mu.Unlock()
}
