package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	configpkg "github.com/visionflow/visionflow/internal/config"
	"github.com/visionflow/visionflow/internal/ctxlog"
	"github.com/visionflow/visionflow/internal/hcl"
	"github.com/visionflow/visionflow/internal/manager"
	"github.com/visionflow/visionflow/internal/metrics"
	"github.com/visionflow/visionflow/internal/nodes"
	"github.com/visionflow/visionflow/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle: the node registry, the pipeline manager, and the loaded
// definitions.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	registry  *registry.Registry
	manager   *manager.Manager
	metrics   *metrics.Metrics
	pipelines []*configpkg.Pipeline
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// A failure to load or validate the pipeline definitions is a fatal startup
// error and panics; the entrypoint recovers it into a clean exit.
func NewApp(outW io.Writer, appConfig *Config, modules ...registry.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.With(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	pipelines, err := hcl.LoadDir(ctx, appConfig.PipelinesPath)
	if err != nil {
		panic(fmt.Errorf("failed to load pipeline definitions: %w", err))
	}
	logger.Debug("Pipeline definitions loaded.", "count", len(pipelines))

	reg := registry.New()
	if len(modules) == 0 {
		modules = []registry.Module{&nodes.Catalog{Logger: logger}}
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All node modules registered.", "types", len(reg.AvailableTypes()))

	mgr := manager.New(reg, logger)
	mts := metrics.New()
	mgr.Subscribe(mts)

	for _, p := range pipelines {
		if err := mgr.Create(p); err != nil {
			panic(fmt.Errorf("failed to create pipeline '%s': %w", p.Name, err))
		}
	}
	logger.Debug("Pipelines created.", "count", len(pipelines))

	return &App{
		outW:      outW,
		logger:    logger,
		registry:  reg,
		manager:   mgr,
		metrics:   mts,
		pipelines: pipelines,
	}
}

// Registry returns the application's node registry. This is primarily for
// testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Manager returns the application's pipeline manager. This is primarily for
// testing.
func (a *App) Manager() *manager.Manager {
	return a.manager
}
