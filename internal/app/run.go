package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/visionflow/visionflow/internal/ctxlog"
)

// shutdownTimeout bounds the teardown of all pipelines after the run
// context is cancelled.
const shutdownTimeout = 30 * time.Second

// Run starts every loaded pipeline and blocks until the context is
// cancelled, then stops and removes them all.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.With(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if appConfig.MetricsPort > 0 {
		go a.startMetricsServer(appConfig.MetricsPort)
	}

	if len(a.pipelines) == 0 {
		a.logger.Warn("No pipelines found, nothing to run.")
		return nil
	}

	var startErrs []error
	for _, p := range a.pipelines {
		if err := a.manager.Start(ctx, p.Name); err != nil {
			a.logger.Error("Pipeline failed to start.", "pipeline", p.Name, "error", err)
			startErrs = append(startErrs, err)
			continue
		}
		a.logger.Info("Pipeline started.", "pipeline", p.Name)
	}
	if len(startErrs) == len(a.pipelines) {
		return fmt.Errorf("no pipeline could be started: %w", errors.Join(startErrs...))
	}

	<-ctx.Done()
	a.logger.Info("Shutting down pipelines...")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.manager.CleanupAll(stopCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	a.logger.Info("All pipelines stopped.")
	return nil
}

// startMetricsServer exposes the Prometheus scrape endpoint. Serve errors
// are logged, not fatal; the pipelines keep running without metrics.
func (a *App) startMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	addr := fmt.Sprintf(":%d", port)
	a.logger.Info("Metrics server listening.", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		a.logger.Error("Metrics server failed.", "error", err)
	}
}
