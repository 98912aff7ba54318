package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionflow/visionflow/internal/frame"
)

func squareZone(threshold int, sensitivity Sensitivity) Zone {
	return Zone{
		ID:   "dock",
		Name: "Loading Dock",
		Polygon: []frame.Point{
			{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100},
		},
		AlertThreshold: threshold,
		Sensitivity:    sensitivity,
	}
}

func TestZoneMonitorRequiresZones(t *testing.T) {
	_, err := NewZoneMonitor(nil)
	assert.ErrorIs(t, err, ErrNoZones)
}

func TestZoneMonitorEdgeTrigger(t *testing.T) {
	m, err := NewZoneMonitor([]Zone{squareZone(1, "")})
	require.NoError(t, err)
	now := time.Now()

	inside := []frame.Detection{det("person", 50, 50)}

	events, statuses := m.Observe(now, inside)
	require.Len(t, events, 1)
	assert.Equal(t, "dock", events[0].ZoneID)
	assert.Equal(t, "Loading Dock", events[0].ZoneName)
	assert.Equal(t, []string{"person"}, events[0].Classes)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Violated)
	assert.Equal(t, 1, m.ActiveViolations())

	// Still violated: no second event while the zone stays occupied.
	events, _ = m.Observe(now.Add(time.Second), inside)
	assert.Empty(t, events)
	assert.Equal(t, uint64(1), m.Total())

	// Dropping below threshold rearms the zone.
	events, statuses = m.Observe(now.Add(2*time.Second), nil)
	assert.Empty(t, events)
	assert.False(t, statuses[0].Violated)
	assert.Equal(t, 0, m.ActiveViolations())

	events, _ = m.Observe(now.Add(3*time.Second), inside)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(2), m.Total())
}

func TestZoneMonitorAllowedClassesExempt(t *testing.T) {
	zone := squareZone(1, "")
	zone.AllowedClasses = []string{"forklift"}
	m, err := NewZoneMonitor([]Zone{zone})
	require.NoError(t, err)

	events, statuses := m.Observe(time.Now(), []frame.Detection{det("forklift", 50, 50)})
	assert.Empty(t, events)
	assert.Equal(t, 0, statuses[0].Count)
	assert.False(t, statuses[0].Violated)
}

func TestZoneMonitorOutsideIgnored(t *testing.T) {
	m, err := NewZoneMonitor([]Zone{squareZone(1, "")})
	require.NoError(t, err)

	events, statuses := m.Observe(time.Now(), []frame.Detection{det("person", 500, 500)})
	assert.Empty(t, events)
	assert.Equal(t, 0, statuses[0].Count)
}

func TestZoneMonitorSeverity(t *testing.T) {
	cases := []struct {
		name        string
		sensitivity Sensitivity
		threshold   int
		count       int
		want        string
	}{
		{"at threshold medium", SensitivityMedium, 2, 2, SeverityMedium},
		{"1.5x threshold high", SensitivityMedium, 2, 3, SeverityHigh},
		{"2x threshold critical", SensitivityMedium, 2, 4, SeverityCritical},
		{"high sensitivity escalates sooner", SensitivityHigh, 2, 3, SeverityCritical},
		{"low sensitivity escalates later", SensitivityLow, 2, 4, SeverityHigh},
		{"low sensitivity critical", SensitivityLow, 2, 6, SeverityCritical},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, severityFor(tc.count, tc.threshold, tc.sensitivity))
		})
	}
}

func TestZoneMonitorSeverityOnEvent(t *testing.T) {
	m, err := NewZoneMonitor([]Zone{squareZone(2, SensitivityHigh)})
	require.NoError(t, err)

	crowd := []frame.Detection{
		det("person", 20, 20),
		det("person", 50, 50),
		det("person", 80, 80),
	}
	events, _ := m.Observe(time.Now(), crowd)
	require.Len(t, events, 1)
	assert.Equal(t, SeverityCritical, events[0].Severity)
	assert.Equal(t, 3, events[0].Count)
}
