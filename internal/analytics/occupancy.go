package analytics

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/visionflow/visionflow/internal/frame"
)

// Trend labels for occupancy classification.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// OccupancyConfig controls the occupancy counter.
type OccupancyConfig struct {
	// Classes restricts counting to these class names. Empty counts every
	// detection.
	Classes []string
	// Tracker gates the underlying nearest-neighbour association.
	Tracker TrackerConfig
	// TrendWindow is the number of recent samples averaged on each side of
	// the trend comparison.
	TrendWindow int
	// TrendDelta is the minimum difference between the two window means
	// before the trend leaves "stable".
	TrendDelta float64
	// HistorySize bounds the retained count history.
	HistorySize int
}

// OccupiedPosition describes one currently tracked instance.
type OccupiedPosition struct {
	TrackID    int
	Box        frame.Box
	Center     frame.Point
	Confidence float64
}

// OccupancyReport is the per-frame output of the counter.
type OccupancyReport struct {
	Count        int
	Positions    []OccupiedPosition
	Trend        string
	AverageCount float64
	MaxCount     int
	HistoryLen   int
}

// Occupancy counts tracked instances of the configured classes and
// classifies the count trend over a bounded history.
type Occupancy struct {
	cfg     OccupancyConfig
	classes map[string]bool
	tracker *Tracker
	history []float64
}

// NewOccupancy builds an occupancy counter; zero config fields take defaults.
func NewOccupancy(cfg OccupancyConfig) *Occupancy {
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = 5
	}
	if cfg.TrendDelta <= 0 {
		cfg.TrendDelta = 1.0
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	classes := make(map[string]bool, len(cfg.Classes))
	for _, c := range cfg.Classes {
		classes[c] = true
	}
	return &Occupancy{
		cfg:     cfg,
		classes: classes,
		tracker: NewTracker(cfg.Tracker),
	}
}

// Observe ingests one frame's detections and returns the updated report.
func (o *Occupancy) Observe(now time.Time, detections []frame.Detection) OccupancyReport {
	counted := detections
	if len(o.classes) > 0 {
		counted = counted[:0:0]
		for _, det := range detections {
			if o.classes[det.ClassName] {
				counted = append(counted, det)
			}
		}
	}

	tracks := o.tracker.Observe(now, counted)
	positions := make([]OccupiedPosition, 0, len(tracks))
	for _, tr := range tracks {
		positions = append(positions, OccupiedPosition{
			TrackID:    tr.ID,
			Box:        tr.Box,
			Center:     tr.Center,
			Confidence: tr.Confidence,
		})
	}

	o.history = append(o.history, float64(len(tracks)))
	if len(o.history) > o.cfg.HistorySize {
		o.history = o.history[len(o.history)-o.cfg.HistorySize:]
	}

	maxCount := 0
	for _, c := range o.history {
		if int(c) > maxCount {
			maxCount = int(c)
		}
	}

	return OccupancyReport{
		Count:        len(tracks),
		Positions:    positions,
		Trend:        o.trend(),
		AverageCount: stat.Mean(o.history, nil),
		MaxCount:     maxCount,
		HistoryLen:   len(o.history),
	}
}

// trend compares the mean of the most recent K samples against the mean of
// the preceding K samples with the configured delta threshold.
func (o *Occupancy) trend() string {
	k := o.cfg.TrendWindow
	if len(o.history) < k {
		return TrendStable
	}
	recent := o.history[len(o.history)-k:]
	previous := recent
	if len(o.history) >= 2*k {
		previous = o.history[len(o.history)-2*k : len(o.history)-k]
	}

	recentMean := stat.Mean(recent, nil)
	previousMean := stat.Mean(previous, nil)
	switch {
	case recentMean > previousMean+o.cfg.TrendDelta:
		return TrendIncreasing
	case recentMean < previousMean-o.cfg.TrendDelta:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// Reset drops tracking state and count history.
func (o *Occupancy) Reset() {
	o.tracker.Reset()
	o.history = nil
}
