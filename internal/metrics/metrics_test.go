package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionflow/visionflow/internal/executor"
)

func TestMetricsSubscriber(t *testing.T) {
	m := New()

	m.OnStateChange("lobby", executor.StateStarting, executor.StateRunning)
	m.OnFrameProcessed("lobby", nil)
	m.OnFrameProcessed("lobby", nil)
	m.OnAnalytics("lobby", "count", map[string]any{"type": "people_counting"})
	m.OnError("lobby", "det", errors.New("boom"))
	m.OnStateChange("lobby", executor.StateRunning, executor.StateStopped)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `visionflow_frames_processed_total{pipeline="lobby"} 2`)
	assert.Contains(t, body, `visionflow_node_errors_total{node="det",pipeline="lobby"} 1`)
	assert.Contains(t, body, `visionflow_analytics_reports_total{node="count",pipeline="lobby"} 1`)
	assert.Contains(t, body, `visionflow_pipeline_running{pipeline="lobby"} 0`)
	assert.Contains(t, body, `visionflow_pipeline_state_changes_total{pipeline="lobby",state="running"} 1`)
}
