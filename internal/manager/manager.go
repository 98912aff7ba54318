// Package manager owns the set of pipelines in one application instance
// and fans pipeline callbacks out to system-wide subscribers.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/visionflow/visionflow/internal/config"
	"github.com/visionflow/visionflow/internal/executor"
	"github.com/visionflow/visionflow/internal/registry"
)

var (
	// ErrNotFound is returned for operations on unknown pipeline names.
	ErrNotFound = errors.New("pipeline not found")
	// ErrExists is returned when creating a pipeline whose name is taken.
	ErrExists = errors.New("pipeline already exists")
)

// SystemStats aggregates counters across every managed pipeline.
type SystemStats struct {
	Pipelines       int
	Running         int
	FramesProcessed uint64
	DetectionsTotal uint64
	ErrorsCount     uint64
}

// Manager is the locked registry of pipeline executors. The lock covers
// lookup, insert, and remove only; pipeline operations run outside it so a
// slow Stop on one pipeline never blocks the others.
type Manager struct {
	reg    *registry.Registry
	logger *slog.Logger

	mu        sync.Mutex
	pipelines map[string]*executor.Executor
	subs      []executor.Subscriber
}

// New builds an empty manager over the given node registry.
func New(reg *registry.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		reg:       reg,
		logger:    logger,
		pipelines: make(map[string]*executor.Executor),
	}
}

// Subscribe registers a system-wide callback receiver for every current and
// future pipeline.
func (m *Manager) Subscribe(sub executor.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, sub)
	for _, e := range m.pipelines {
		e.Subscribe(sub)
	}
}

// Create validates the definition and registers a stopped pipeline under
// its name.
func (m *Manager) Create(cfg *config.Pipeline) error {
	e, err := executor.New(cfg, m.reg, m.logger)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if _, taken := m.pipelines[cfg.Name]; taken {
		m.mu.Unlock()
		e.Close()
		return fmt.Errorf("%w: '%s'", ErrExists, cfg.Name)
	}
	m.pipelines[cfg.Name] = e
	subs := make([]executor.Subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, sub := range subs {
		e.Subscribe(sub)
	}
	m.logger.Info("Pipeline created.", "pipeline", cfg.Name)
	return nil
}

// UpdateConfig replaces a pipeline's definition. A running or paused
// pipeline is stopped, torn down, rebuilt from the new definition, and
// started again; a stopped one is only rebuilt. The pipeline keeps its
// subscribers. A failed restart leaves the rebuilt pipeline in place, not
// running, and returns the error.
func (m *Manager) UpdateConfig(ctx context.Context, cfg *config.Pipeline) error {
	current, err := m.get(cfg.Name)
	if err != nil {
		return err
	}

	replacement, err := executor.New(cfg, m.reg, m.logger)
	if err != nil {
		return err
	}

	state := current.State()
	wasRunning := state == executor.StateRunning || state == executor.StatePaused
	if err := current.Stop(ctx); err != nil {
		replacement.Close()
		return err
	}

	m.mu.Lock()
	if m.pipelines[cfg.Name] != current {
		m.mu.Unlock()
		replacement.Close()
		return fmt.Errorf("%w: '%s'", ErrNotFound, cfg.Name)
	}
	m.pipelines[cfg.Name] = replacement
	subs := make([]executor.Subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, sub := range subs {
		replacement.Subscribe(sub)
	}
	current.Close()
	m.logger.Info("Pipeline definition replaced.", "pipeline", cfg.Name)

	if wasRunning {
		if err := replacement.Start(ctx); err != nil {
			return fmt.Errorf("pipeline '%s' replaced but restart failed: %w", cfg.Name, err)
		}
	}
	return nil
}

// Start starts the named pipeline.
func (m *Manager) Start(ctx context.Context, name string) error {
	e, err := m.get(name)
	if err != nil {
		return err
	}
	return e.Start(ctx)
}

// Stop stops the named pipeline.
func (m *Manager) Stop(ctx context.Context, name string) error {
	e, err := m.get(name)
	if err != nil {
		return err
	}
	return e.Stop(ctx)
}

// Pause pauses the named pipeline.
func (m *Manager) Pause(name string) error {
	e, err := m.get(name)
	if err != nil {
		return err
	}
	return e.Pause()
}

// Resume resumes the named pipeline.
func (m *Manager) Resume(name string) error {
	e, err := m.get(name)
	if err != nil {
		return err
	}
	return e.Resume()
}

// Delete stops the named pipeline and removes it.
func (m *Manager) Delete(ctx context.Context, name string) error {
	e, err := m.get(name)
	if err != nil {
		return err
	}
	if err := e.Stop(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.pipelines, name)
	m.mu.Unlock()

	e.Close()
	m.logger.Info("Pipeline deleted.", "pipeline", name)
	return nil
}

// GetStatus returns the status snapshot of the named pipeline.
func (m *Manager) GetStatus(name string) (executor.Status, error) {
	e, err := m.get(name)
	if err != nil {
		return executor.Status{}, err
	}
	return e.Status(), nil
}

// GetConfig returns the definition of the named pipeline.
func (m *Manager) GetConfig(name string) (*config.Pipeline, error) {
	e, err := m.get(name)
	if err != nil {
		return nil, err
	}
	return e.Config(), nil
}

// List returns the managed pipeline names, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.pipelines))
	for name := range m.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllStatuses returns a status snapshot for every pipeline, keyed by name.
func (m *Manager) AllStatuses() map[string]executor.Status {
	out := make(map[string]executor.Status)
	for _, e := range m.snapshot() {
		out[e.Name()] = e.Status()
	}
	return out
}

// SystemStats aggregates counters across all pipelines.
func (m *Manager) SystemStats() SystemStats {
	var stats SystemStats
	for _, e := range m.snapshot() {
		status := e.Status()
		stats.Pipelines++
		if status.State == executor.StateRunning {
			stats.Running++
		}
		stats.FramesProcessed += status.Stats.FramesProcessed
		stats.DetectionsTotal += status.Stats.DetectionsTotal
		stats.ErrorsCount += status.Stats.ErrorsCount
	}
	return stats
}

// CleanupAll stops and removes every pipeline. The first stop error is
// returned after all pipelines have been handled.
func (m *Manager) CleanupAll(ctx context.Context) error {
	var firstErr error
	for _, e := range m.snapshot() {
		if err := m.Delete(ctx, e.Name()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Manager) get(name string) (*executor.Executor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrNotFound, name)
	}
	return e, nil
}

func (m *Manager) snapshot() []*executor.Executor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*executor.Executor, 0, len(m.pipelines))
	for _, e := range m.pipelines {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
