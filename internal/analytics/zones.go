package analytics

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/visionflow/visionflow/internal/frame"
)

// Sensitivity scales how quickly an intrusion escalates to higher severity.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Severity labels for intrusion events.
const (
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// ErrNoZones is returned when a zone monitor is built without any zones.
var ErrNoZones = errors.New("analytics: no zones configured")

// Zone is one monitored polygon. Objects whose class appears in
// AllowedClasses are exempt from counting.
type Zone struct {
	ID             string
	Name           string
	Polygon        []frame.Point
	AllowedClasses []string
	AlertThreshold int
	Sensitivity    Sensitivity
}

// ZoneStatus is the per-frame occupancy state of one zone.
type ZoneStatus struct {
	ZoneID   string
	Name     string
	Count    int
	Violated bool
	Classes  []string
}

// Intrusion is an edge-triggered violation event: it fires on the transition
// into violation and again only after the count has dropped below threshold.
type Intrusion struct {
	EventID  string
	ZoneID   string
	ZoneName string
	Count    int
	Classes  []string
	Severity string
	At       time.Time
}

// ZoneMonitor evaluates polygon zones against detection centers.
type ZoneMonitor struct {
	zones  []Zone
	active map[string]bool
	total  uint64
}

// NewZoneMonitor validates the configuration and builds a monitor.
func NewZoneMonitor(zones []Zone) (*ZoneMonitor, error) {
	if len(zones) == 0 {
		return nil, ErrNoZones
	}
	zs := make([]Zone, len(zones))
	copy(zs, zones)
	for i := range zs {
		if zs[i].AlertThreshold <= 0 {
			zs[i].AlertThreshold = 1
		}
		if zs[i].Sensitivity == "" {
			zs[i].Sensitivity = SensitivityMedium
		}
	}
	return &ZoneMonitor{zones: zs, active: make(map[string]bool)}, nil
}

// Observe evaluates every zone against one frame's detections. It returns
// the new intrusion events plus the current status of every zone.
func (m *ZoneMonitor) Observe(now time.Time, detections []frame.Detection) ([]Intrusion, []ZoneStatus) {
	var events []Intrusion
	statuses := make([]ZoneStatus, 0, len(m.zones))

	for _, zone := range m.zones {
		allowed := make(map[string]bool, len(zone.AllowedClasses))
		for _, c := range zone.AllowedClasses {
			allowed[c] = true
		}

		var classes []string
		for _, det := range detections {
			if !PointInPolygon(det.Box.Center(), zone.Polygon) {
				continue
			}
			if allowed[det.ClassName] {
				continue
			}
			classes = append(classes, det.ClassName)
		}
		count := len(classes)
		violated := count >= zone.AlertThreshold

		statuses = append(statuses, ZoneStatus{
			ZoneID:   zone.ID,
			Name:     zone.Name,
			Count:    count,
			Violated: violated,
			Classes:  classes,
		})

		if violated {
			if !m.active[zone.ID] {
				m.active[zone.ID] = true
				m.total++
				events = append(events, Intrusion{
					EventID:  uuid.NewString(),
					ZoneID:   zone.ID,
					ZoneName: zone.Name,
					Count:    count,
					Classes:  classes,
					Severity: severityFor(count, zone.AlertThreshold, zone.Sensitivity),
					At:       now,
				})
			}
		} else {
			delete(m.active, zone.ID)
		}
	}
	return events, statuses
}

// ActiveViolations returns the number of zones currently in violation.
func (m *ZoneMonitor) ActiveViolations() int { return len(m.active) }

// Total returns the number of intrusion events since construction.
func (m *ZoneMonitor) Total() uint64 { return m.total }

// Zones returns the configured zones.
func (m *ZoneMonitor) Zones() []Zone { return m.zones }

// Reset drops violation state and counters.
func (m *ZoneMonitor) Reset() {
	m.active = make(map[string]bool)
	m.total = 0
}

// severityFor scales severity with how far the count exceeds the threshold,
// modulated by the zone's sensitivity multiplier.
func severityFor(count, threshold int, s Sensitivity) string {
	var multiplier float64
	switch s {
	case SensitivityHigh:
		multiplier = 1.5
	case SensitivityLow:
		multiplier = 3.0
	default:
		multiplier = 2.0
	}
	switch {
	case float64(count) >= float64(threshold)*multiplier:
		return SeverityCritical
	case float64(count) >= float64(threshold)*1.5:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}
