package analytics

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/visionflow/visionflow/internal/frame"
)

// Direction identifies the side of a line a movement crossed toward, or the
// filter applied to a configured line.
type Direction string

const (
	DirectionBoth     Direction = "both"
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionNone     Direction = "none"
)

// ErrNoLines is returned when a line-crossing detector is built without any
// configured lines.
var ErrNoLines = errors.New("analytics: no lines configured")

// Line is one monitored segment. Direction filters which crossings fire:
// DirectionBoth accepts either side.
type Line struct {
	ID        string
	Name      string
	Start     frame.Point
	End       frame.Point
	Direction Direction
}

// Crossing is an edge-triggered crossing event: it fires once per detected
// intersection between a track's movement and a line.
type Crossing struct {
	EventID   string
	TrackID   int
	LineID    string
	LineName  string
	Direction Direction
	Position  frame.Point
	At        time.Time
}

// LineCrossingConfig controls the detector.
type LineCrossingConfig struct {
	Lines   []Line
	Tracker TrackerConfig
}

// LineCrossing detects track movements that intersect configured lines.
type LineCrossing struct {
	lines       []Line
	tracker     *Tracker
	total       uint64
	byLine      map[string]uint64
	byDirection map[Direction]uint64
}

// NewLineCrossing validates the configuration and builds a detector.
func NewLineCrossing(cfg LineCrossingConfig) (*LineCrossing, error) {
	if len(cfg.Lines) == 0 {
		return nil, ErrNoLines
	}
	lines := make([]Line, len(cfg.Lines))
	copy(lines, cfg.Lines)
	for i := range lines {
		if lines[i].Direction == "" {
			lines[i].Direction = DirectionBoth
		}
	}
	return &LineCrossing{
		lines:       lines,
		tracker:     NewTracker(cfg.Tracker),
		byLine:      make(map[string]uint64),
		byDirection: make(map[Direction]uint64),
	}, nil
}

// Observe ingests one frame's detections and returns the crossings detected
// between each track's previous and current center.
func (lc *LineCrossing) Observe(now time.Time, detections []frame.Detection) []Crossing {
	var events []Crossing
	for _, tr := range lc.tracker.Observe(now, detections) {
		if !tr.HasPrev || tr.Prev == tr.Center {
			continue
		}
		for _, line := range lc.lines {
			if !SegmentsIntersect(tr.Prev, tr.Center, line.Start, line.End) {
				continue
			}
			dir := CrossingDirection(line.Start, line.End, tr.Prev, tr.Center)
			if dir == DirectionNone {
				continue
			}
			if line.Direction != DirectionBoth && line.Direction != dir {
				continue
			}
			ev := Crossing{
				EventID:   uuid.NewString(),
				TrackID:   tr.ID,
				LineID:    line.ID,
				LineName:  line.Name,
				Direction: dir,
				Position:  tr.Center,
				At:        now,
			}
			events = append(events, ev)
			lc.total++
			lc.byLine[line.ID]++
			lc.byDirection[dir]++
		}
	}
	return events
}

// Total returns the number of crossings observed since construction.
func (lc *LineCrossing) Total() uint64 { return lc.total }

// TotalsByLine returns per-line crossing counts.
func (lc *LineCrossing) TotalsByLine() map[string]uint64 {
	out := make(map[string]uint64, len(lc.byLine))
	for k, v := range lc.byLine {
		out[k] = v
	}
	return out
}

// TotalsByDirection returns per-direction crossing counts.
func (lc *LineCrossing) TotalsByDirection() map[Direction]uint64 {
	out := make(map[Direction]uint64, len(lc.byDirection))
	for k, v := range lc.byDirection {
		out[k] = v
	}
	return out
}

// Lines returns the configured lines.
func (lc *LineCrossing) Lines() []Line { return lc.lines }

// Reset drops track state and counters.
func (lc *LineCrossing) Reset() {
	lc.tracker.Reset()
	lc.total = 0
	lc.byLine = make(map[string]uint64)
	lc.byDirection = make(map[Direction]uint64)
}
