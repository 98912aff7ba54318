package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/visionflow/visionflow/internal/frame"
)

// TrackerConfig controls the nearest-neighbour associator.
type TrackerConfig struct {
	// MaxDistance is the association gate in pixels; a detection further
	// than this from every live track spawns a new track.
	MaxDistance float64
	// Timeout drops tracks that have not been matched for this long.
	Timeout time.Duration
}

// DefaultTrackerConfig mirrors the engine's built-in defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{MaxDistance: 100, Timeout: 5 * time.Second}
}

// Track is a hypothesized identity carried across frames. This is
// single-frame associative tracking, not a Kalman tracker: each Observe call
// greedily matches detections to the closest unclaimed live track.
type Track struct {
	ID         int
	ClassName  string
	Confidence float64
	Box        frame.Box
	Center     frame.Point
	// Prev is the center at the previous match; valid once the track has
	// been matched at least twice.
	Prev      frame.Point
	HasPrev   bool
	FirstSeen time.Time
	LastSeen  time.Time
}

// Tracker associates detections to tracks across calls.
type Tracker struct {
	cfg    TrackerConfig
	tracks map[int]*Track
	nextID int
}

// NewTracker creates a tracker; zero config fields take defaults.
func NewTracker(cfg TrackerConfig) *Tracker {
	def := DefaultTrackerConfig()
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = def.MaxDistance
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Tracker{cfg: cfg, tracks: make(map[int]*Track), nextID: 1}
}

// Observe associates the detections captured at now and returns the tracks
// matched in this frame, ordered by track id. Unmatched detections spawn new
// tracks; tracks unseen for longer than the timeout are dropped.
func (t *Tracker) Observe(now time.Time, detections []frame.Detection) []*Track {
	claimed := make(map[int]bool, len(detections))
	matched := make([]*Track, 0, len(detections))

	for _, det := range detections {
		center := det.Box.Center()

		bestID := 0
		bestDist := math.Inf(1)
		for id, tr := range t.tracks {
			if claimed[id] {
				continue
			}
			d := math.Hypot(center.X-tr.Center.X, center.Y-tr.Center.Y)
			if d <= t.cfg.MaxDistance && d < bestDist {
				bestDist = d
				bestID = id
			}
		}

		var tr *Track
		if bestID != 0 {
			tr = t.tracks[bestID]
			tr.Prev = tr.Center
			tr.HasPrev = true
		} else {
			tr = &Track{ID: t.nextID, FirstSeen: now}
			t.nextID++
			t.tracks[tr.ID] = tr
		}
		tr.ClassName = det.ClassName
		tr.Confidence = det.Confidence
		tr.Box = det.Box
		tr.Center = center
		tr.LastSeen = now
		claimed[tr.ID] = true
		matched = append(matched, tr)
	}

	for id, tr := range t.tracks {
		if now.Sub(tr.LastSeen) > t.cfg.Timeout {
			delete(t.tracks, id)
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched
}

// Live returns the number of tracks currently retained.
func (t *Tracker) Live() int { return len(t.tracks) }

// Reset drops all track state.
func (t *Tracker) Reset() {
	t.tracks = make(map[int]*Track)
}
