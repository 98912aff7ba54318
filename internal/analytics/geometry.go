// Package analytics implements the signal-deriving algorithms that consume
// detection lists: occupancy tracking, line-crossing detection, and polygon
// zone intrusion. Everything here is pure computation over points and boxes;
// node plumbing lives in internal/nodes.
package analytics

import "github.com/visionflow/visionflow/internal/frame"

// cross returns the z component of (b-a) x (d-c).
func cross(a, b, c, d frame.Point) float64 {
	return (b.X-a.X)*(d.Y-c.Y) - (b.Y-a.Y)*(d.X-c.X)
}

// SegmentsIntersect reports whether the segments p1-p2 and q1-q2 properly
// intersect. Parallel and collinear segments do not count as a crossing.
func SegmentsIntersect(p1, p2, q1, q2 frame.Point) bool {
	denom := (p1.X-p2.X)*(q1.Y-q2.Y) - (p1.Y-p2.Y)*(q1.X-q2.X)
	if denom == 0 {
		return false
	}
	t := ((p1.X-q1.X)*(q1.Y-q2.Y) - (p1.Y-q1.Y)*(q1.X-q2.X)) / denom
	u := -((p1.X-p2.X)*(p1.Y-q1.Y) - (p1.Y-p2.Y)*(p1.X-q1.X)) / denom
	return t >= 0 && t <= 1 && u >= 0 && u <= 1
}

// CrossingDirection classifies a movement from -> to relative to the
// directed line start -> end, using the sign of the 2D cross product of the
// movement vector and the line vector. Forward means the movement crosses
// with positive sign; collinear movement yields DirectionNone.
func CrossingDirection(start, end, from, to frame.Point) Direction {
	z := cross(from, to, start, end)
	switch {
	case z > 0:
		return DirectionForward
	case z < 0:
		return DirectionBackward
	default:
		return DirectionNone
	}
}

// PointInPolygon tests p against the polygon using ray casting (odd-crossing
// rule). Polygons with fewer than three vertices contain nothing.
func PointInPolygon(p frame.Point, polygon []frame.Point) bool {
	if len(polygon) < 3 {
		return false
	}
	inside := false
	j := len(polygon) - 1
	for i := 0; i < len(polygon); i++ {
		a, b := polygon[i], polygon[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			xCross := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}
