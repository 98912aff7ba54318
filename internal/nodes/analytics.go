package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/visionflow/visionflow/internal/analytics"
	"github.com/visionflow/visionflow/internal/frame"
	"github.com/visionflow/visionflow/internal/node"
)

// KeyAnalytics is the payload key analytics nodes publish their report
// under.
const KeyAnalytics = "analytics"

// KeyEvents is the payload key analytics nodes publish new events under.
const KeyEvents = "events"

// PeopleCountingNode wraps the occupancy counter.
type PeopleCountingNode struct {
	node.Base
	occupancy *analytics.Occupancy
}

// NewPeopleCountingNode builds a counting node; empty classes default to
// the person labels.
func NewPeopleCountingNode(id string, cfg analytics.OccupancyConfig) *PeopleCountingNode {
	if len(cfg.Classes) == 0 {
		cfg.Classes = []string{"person", "people"}
	}
	return &PeopleCountingNode{
		Base:      node.NewBase(id),
		occupancy: analytics.NewOccupancy(cfg),
	}
}

func (n *PeopleCountingNode) Initialize(ctx context.Context) error {
	n.occupancy.Reset()
	n.MarkInitialized()
	return nil
}

func (n *PeopleCountingNode) Process(ctx context.Context, input map[string]any) frame.Result {
	if !n.Ready() {
		return frame.Fail(fmt.Sprintf("node '%s' is not initialized", n.ID()))
	}
	detections := frame.Detections(input)
	report := n.occupancy.Observe(processTime(input), detections)

	n.Touch()
	return frame.OK(map[string]any{
		KeyAnalytics: map[string]any{
			"type":          "people_counting",
			"count":         report.Count,
			"trend":         report.Trend,
			"average_count": report.AverageCount,
			"max_count":     report.MaxCount,
			"positions":     report.Positions,
		},
		frame.KeyDetections: detections,
	}, nil)
}

func (n *PeopleCountingNode) Cleanup() error {
	n.occupancy.Reset()
	n.MarkUninitialized()
	return nil
}

func (n *PeopleCountingNode) InputKinds() []string  { return []string{node.KindDetections} }
func (n *PeopleCountingNode) OutputKinds() []string { return []string{node.KindAnalytic} }

// LineCrossingNode wraps the line-crossing detector.
type LineCrossingNode struct {
	node.Base
	detector *analytics.LineCrossing
}

// NewLineCrossingNode builds a line-crossing node. At least one line is
// required.
func NewLineCrossingNode(id string, cfg analytics.LineCrossingConfig) (*LineCrossingNode, error) {
	detector, err := analytics.NewLineCrossing(cfg)
	if err != nil {
		return nil, err
	}
	return &LineCrossingNode{Base: node.NewBase(id), detector: detector}, nil
}

func (n *LineCrossingNode) Initialize(ctx context.Context) error {
	n.detector.Reset()
	n.MarkInitialized()
	return nil
}

func (n *LineCrossingNode) Process(ctx context.Context, input map[string]any) frame.Result {
	if !n.Ready() {
		return frame.Fail(fmt.Sprintf("node '%s' is not initialized", n.ID()))
	}
	detections := frame.Detections(input)
	crossings := n.detector.Observe(processTime(input), detections)

	n.Touch()
	return frame.OK(map[string]any{
		KeyAnalytics: map[string]any{
			"type":          "line_crossing",
			"total":         n.detector.Total(),
			"by_line":       n.detector.TotalsByLine(),
			"by_direction":  n.detector.TotalsByDirection(),
			"new_crossings": len(crossings),
		},
		KeyEvents:           crossings,
		frame.KeyDetections: detections,
	}, nil)
}

func (n *LineCrossingNode) Cleanup() error {
	n.detector.Reset()
	n.MarkUninitialized()
	return nil
}

func (n *LineCrossingNode) InputKinds() []string  { return []string{node.KindDetections} }
func (n *LineCrossingNode) OutputKinds() []string { return []string{node.KindAnalytic} }

// AreaIntrusionNode wraps the zone monitor.
type AreaIntrusionNode struct {
	node.Base
	monitor *analytics.ZoneMonitor
}

// NewAreaIntrusionNode builds a zone monitoring node. At least one zone is
// required.
func NewAreaIntrusionNode(id string, zones []analytics.Zone) (*AreaIntrusionNode, error) {
	monitor, err := analytics.NewZoneMonitor(zones)
	if err != nil {
		return nil, err
	}
	return &AreaIntrusionNode{Base: node.NewBase(id), monitor: monitor}, nil
}

func (n *AreaIntrusionNode) Initialize(ctx context.Context) error {
	n.monitor.Reset()
	n.MarkInitialized()
	return nil
}

func (n *AreaIntrusionNode) Process(ctx context.Context, input map[string]any) frame.Result {
	if !n.Ready() {
		return frame.Fail(fmt.Sprintf("node '%s' is not initialized", n.ID()))
	}
	detections := frame.Detections(input)
	intrusions, statuses := n.monitor.Observe(processTime(input), detections)

	n.Touch()
	return frame.OK(map[string]any{
		KeyAnalytics: map[string]any{
			"type":              "area_intrusion",
			"total":             n.monitor.Total(),
			"active_violations": n.monitor.ActiveViolations(),
			"zones":             statuses,
		},
		KeyEvents:           intrusions,
		frame.KeyDetections: detections,
	}, nil)
}

func (n *AreaIntrusionNode) Cleanup() error {
	n.monitor.Reset()
	n.MarkUninitialized()
	return nil
}

func (n *AreaIntrusionNode) InputKinds() []string  { return []string{node.KindDetections} }
func (n *AreaIntrusionNode) OutputKinds() []string { return []string{node.KindAnalytic} }

// processTime is the event timestamp for one Process call: the capture time
// of the frame in the payload when present, else the wall clock.
func processTime(input map[string]any) time.Time {
	if f, ok := input[frame.KeyFrame].(frame.Frame); ok && !f.CapturedAt.IsZero() {
		return f.CapturedAt
	}
	return time.Now()
}
