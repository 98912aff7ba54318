package executor

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// statsWindow is the number of recent ticks sampled for rolling averages.
const statsWindow = 100

// StatsSnapshot is a point-in-time copy of a pipeline's counters.
type StatsSnapshot struct {
	FramesProcessed uint64
	DetectionsTotal uint64
	ErrorsCount     uint64
	DroppedFrames   uint64
	FPS             float64
	AvgProcessingMS float64
	UptimeSeconds   float64
}

// stats accumulates pipeline counters with a bounded sample window.
type stats struct {
	mu         sync.Mutex
	startedAt  time.Time
	frames     uint64
	detections uint64
	errors     uint64
	dropped    uint64
	durations  []float64
	tickTimes  []time.Time
}

func newStats() *stats {
	return &stats{startedAt: time.Now()}
}

func (s *stats) recordTick(duration time.Duration, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.durations = append(s.durations, duration.Seconds())
	if len(s.durations) > statsWindow {
		s.durations = s.durations[len(s.durations)-statsWindow:]
	}
	s.tickTimes = append(s.tickTimes, at)
	if len(s.tickTimes) > statsWindow {
		s.tickTimes = s.tickTimes[len(s.tickTimes)-statsWindow:]
	}
}

func (s *stats) recordDetections(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detections += uint64(n)
}

func (s *stats) recordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}

func (s *stats) setDropped(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped = n
}

func (s *stats) snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		FramesProcessed: s.frames,
		DetectionsTotal: s.detections,
		ErrorsCount:     s.errors,
		DroppedFrames:   s.dropped,
		UptimeSeconds:   time.Since(s.startedAt).Seconds(),
	}
	if len(s.durations) > 0 {
		snap.AvgProcessingMS = stat.Mean(s.durations, nil) * 1000
	}
	// Measured rate over the sample window, not the configured target.
	if len(s.tickTimes) >= 2 {
		span := s.tickTimes[len(s.tickTimes)-1].Sub(s.tickTimes[0]).Seconds()
		if span > 0 {
			snap.FPS = float64(len(s.tickTimes)-1) / span
		}
	}
	return snap
}
