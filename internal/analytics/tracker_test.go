package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionflow/visionflow/internal/frame"
)

func det(class string, cx, cy float64) frame.Detection {
	return frame.Detection{
		ClassName:  class,
		Confidence: 0.9,
		Box:        frame.Box{X1: cx - 5, Y1: cy - 5, X2: cx + 5, Y2: cy + 5},
	}
}

func TestTrackerKeepsIdentityAcrossFrames(t *testing.T) {
	tr := NewTracker(TrackerConfig{MaxDistance: 50})
	now := time.Now()

	first := tr.Observe(now, []frame.Detection{det("person", 100, 100)})
	require.Len(t, first, 1)
	id := first[0].ID
	assert.False(t, first[0].HasPrev)

	second := tr.Observe(now.Add(100*time.Millisecond), []frame.Detection{det("person", 110, 100)})
	require.Len(t, second, 1)
	assert.Equal(t, id, second[0].ID)
	assert.True(t, second[0].HasPrev)
	assert.Equal(t, frame.Point{X: 100, Y: 100}, second[0].Prev)
	assert.Equal(t, frame.Point{X: 110, Y: 100}, second[0].Center)
}

func TestTrackerSpawnsBeyondGate(t *testing.T) {
	tr := NewTracker(TrackerConfig{MaxDistance: 20})
	now := time.Now()

	first := tr.Observe(now, []frame.Detection{det("person", 0, 0)})
	second := tr.Observe(now.Add(time.Millisecond), []frame.Detection{det("person", 500, 500)})
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)
	assert.Equal(t, 2, tr.Live())
}

func TestTrackerGreedyAssociation(t *testing.T) {
	tr := NewTracker(TrackerConfig{MaxDistance: 100})
	now := time.Now()

	tr.Observe(now, []frame.Detection{det("person", 0, 0), det("person", 60, 0)})
	tracks := tr.Observe(now.Add(time.Millisecond), []frame.Detection{det("person", 5, 0), det("person", 55, 0)})
	require.Len(t, tracks, 2)
	// Each detection claims its closest track; no track is claimed twice.
	assert.NotEqual(t, tracks[0].ID, tracks[1].ID)
	assert.Equal(t, 2, tr.Live())
}

func TestTrackerTimeout(t *testing.T) {
	tr := NewTracker(TrackerConfig{MaxDistance: 50, Timeout: time.Second})
	now := time.Now()

	tr.Observe(now, []frame.Detection{det("person", 0, 0)})
	assert.Equal(t, 1, tr.Live())

	// Nothing seen for longer than the timeout drops the track.
	tr.Observe(now.Add(2*time.Second), nil)
	assert.Equal(t, 0, tr.Live())
}
