package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionflow/visionflow/internal/config"
	"github.com/visionflow/visionflow/internal/executor"
	"github.com/visionflow/visionflow/internal/nodes"
	"github.com/visionflow/visionflow/internal/registry"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	r := registry.New()
	(&nodes.Catalog{}).Register(r)
	return New(r, nil)
}

func syntheticPipeline(name string) *config.Pipeline {
	return &config.Pipeline{
		Name: name,
		FPS:  200,
		Nodes: []config.NodeConfig{
			{ID: "src", Type: "synthetic_input", Parameters: map[string]any{
				"width": 32.0, "height": 32.0, "fps": 200.0,
				"objects": []any{
					map[string]any{"class": "person", "x": 10.0, "y": 10.0, "w": 20.0, "h": 40.0, "confidence": 0.9},
				},
			}},
			{ID: "det", Type: "object_detection"},
			{ID: "count", Type: "people_counting"},
			{ID: "log", Type: "log_output"},
		},
		Edges: []config.EdgeConfig{
			{ID: "e1", Source: "src", Target: "det"},
			{ID: "e2", Source: "det", Target: "count"},
			{ID: "e3", Source: "count", Target: "log"},
		},
	}
}

func TestManagerCreateAndDuplicate(t *testing.T) {
	m := testManager(t)
	require.NoError(t, m.Create(syntheticPipeline("lobby")))
	assert.ErrorIs(t, m.Create(syntheticPipeline("lobby")), ErrExists)
	assert.Equal(t, []string{"lobby"}, m.List())
}

func TestManagerUnknownPipeline(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	assert.ErrorIs(t, m.Start(ctx, "ghost"), ErrNotFound)
	assert.ErrorIs(t, m.Stop(ctx, "ghost"), ErrNotFound)
	assert.ErrorIs(t, m.Pause("ghost"), ErrNotFound)
	assert.ErrorIs(t, m.Resume("ghost"), ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "ghost"), ErrNotFound)
	_, err := m.GetStatus("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerLifecycleEndToEnd(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	require.NoError(t, m.Create(syntheticPipeline("lobby")))

	require.NoError(t, m.Start(ctx, "lobby"))
	require.Eventually(t, func() bool {
		status, err := m.GetStatus("lobby")
		require.NoError(t, err)
		return status.Stats.FramesProcessed >= 3
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Pause("lobby"))
	status, err := m.GetStatus("lobby")
	require.NoError(t, err)
	assert.Equal(t, executor.StatePaused, status.State)

	require.NoError(t, m.Resume("lobby"))
	require.NoError(t, m.Stop(ctx, "lobby"))

	status, err = m.GetStatus("lobby")
	require.NoError(t, err)
	assert.Equal(t, executor.StateStopped, status.State)
	assert.Equal(t, uint64(0), status.Stats.ErrorsCount)
}

func TestManagerSystemStats(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	require.NoError(t, m.Create(syntheticPipeline("a")))
	require.NoError(t, m.Create(syntheticPipeline("b")))

	require.NoError(t, m.Start(ctx, "a"))
	require.Eventually(t, func() bool {
		return m.SystemStats().FramesProcessed > 0
	}, 5*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return m.SystemStats().DetectionsTotal > 0
	}, 5*time.Second, 5*time.Millisecond)

	stats := m.SystemStats()
	assert.Equal(t, 2, stats.Pipelines)
	assert.Equal(t, 1, stats.Running)

	// A paused pipeline is not running.
	require.NoError(t, m.Pause("a"))
	assert.Equal(t, 0, m.SystemStats().Running)

	require.NoError(t, m.CleanupAll(ctx))
	assert.Empty(t, m.List())
}

func TestManagerUpdateConfig(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()
	require.NoError(t, m.Create(syntheticPipeline("lobby")))

	// Redefining a running pipeline restarts it on the new definition.
	require.NoError(t, m.Start(ctx, "lobby"))
	updated := syntheticPipeline("lobby")
	updated.FPS = 100
	require.NoError(t, m.UpdateConfig(ctx, updated))

	status, err := m.GetStatus("lobby")
	require.NoError(t, err)
	assert.Equal(t, executor.StateRunning, status.State)
	cfg, err := m.GetConfig("lobby")
	require.NoError(t, err)
	assert.Equal(t, 100.0, cfg.FPS)
	require.Eventually(t, func() bool {
		status, err := m.GetStatus("lobby")
		require.NoError(t, err)
		return status.Stats.FramesProcessed > 0
	}, 5*time.Second, 5*time.Millisecond)

	// A stopped pipeline stays stopped after the swap.
	require.NoError(t, m.Stop(ctx, "lobby"))
	updated = syntheticPipeline("lobby")
	updated.FPS = 5
	require.NoError(t, m.UpdateConfig(ctx, updated))

	status, err = m.GetStatus("lobby")
	require.NoError(t, err)
	assert.Equal(t, executor.StateStopped, status.State)
	cfg, err = m.GetConfig("lobby")
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.FPS)

	// Unknown names are rejected.
	assert.ErrorIs(t, m.UpdateConfig(ctx, syntheticPipeline("ghost")), ErrNotFound)

	require.NoError(t, m.CleanupAll(ctx))
}

func TestManagerSubscriberFanOut(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	var mu sync.Mutex
	seen := make(map[string]int)
	m.Subscribe(&executor.SubscriberFuncs{
		Analytics: func(pipeline, nodeID string, report map[string]any) {
			mu.Lock()
			defer mu.Unlock()
			seen[pipeline]++
		},
	})

	require.NoError(t, m.Create(syntheticPipeline("a")))
	require.NoError(t, m.Create(syntheticPipeline("b")))
	require.NoError(t, m.Start(ctx, "a"))
	require.NoError(t, m.Start(ctx, "b"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["a"] > 0 && seen["b"] > 0
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, m.CleanupAll(ctx))
}
