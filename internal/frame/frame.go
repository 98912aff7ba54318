// Package frame defines the data types that flow through a pipeline: captured
// frames, detections produced from them, and the per-invocation result
// envelope every node returns. Frames and detections are transient; nothing
// in the engine retains them beyond one pass through the node chain.
package frame

import "time"

// Well-known payload keys. The executor never assumes anything else about
// the shape of a node's payload.
const (
	KeyFrame       = "frame"
	KeyDetections  = "detections"
	KeyImageBuffer = "image_buffer"
)

// Point is a 2D position in pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// Box is an axis-aligned bounding box (x1,y1 top-left, x2,y2 bottom-right).
type Box struct {
	X1, Y1, X2, Y2 float64
}

// Center returns the geometric center of the box.
func (b Box) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Frame is a single captured image with its metadata. A Frame is owned
// exclusively by the capture goroutine until it is handed to the executor;
// downstream nodes receive the value and must not share mutable state on it.
type Frame struct {
	// Image holds raw pixel data. The engine treats it as opaque bytes;
	// interpretation (RGB24, grayscale, ...) is between the capture device
	// and the detector consuming it.
	Image  []byte
	Width  int
	Height int

	CapturedAt time.Time
	// Sequence increases monotonically per source.
	Sequence uint64
	SourceID string

	Attributes map[string]any
}

// Detection is one detected object within a frame.
type Detection struct {
	ClassID    int
	ClassName  string
	Confidence float64
	Box        Box
	Mask       []byte
	Keypoints  []Point
	Attributes map[string]any
}

// Result is the envelope returned by every node invocation.
type Result struct {
	Success    bool
	Payload    map[string]any
	Err        string
	ProducedAt time.Time
	Meta       map[string]any
}

// OK builds a successful Result with the given payload and metadata.
func OK(payload, meta map[string]any) Result {
	return Result{
		Success:    true,
		Payload:    payload,
		ProducedAt: time.Now(),
		Meta:       meta,
	}
}

// Fail builds a failed Result carrying the given error message.
func Fail(msg string) Result {
	return Result{
		Success:    false,
		Err:        msg,
		ProducedAt: time.Now(),
	}
}

// Detections extracts the detection list from a payload, tolerating both
// typed slices and absent keys.
func Detections(payload map[string]any) []Detection {
	if payload == nil {
		return nil
	}
	dets, _ := payload[KeyDetections].([]Detection)
	return dets
}
