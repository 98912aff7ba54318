package nodes

import (
	"context"
	"fmt"

	"github.com/visionflow/visionflow/internal/frame"
	"github.com/visionflow/visionflow/internal/node"
)

// Detector abstracts the inference backend of a detection node.
type Detector interface {
	Detect(ctx context.Context, f frame.Frame) ([]frame.Detection, error)
}

// AttributeDetector reads pre-labelled objects out of frame attributes. It
// is the backend for sources that carry their own ground truth, such as
// synthetic inputs and replayed recordings.
type AttributeDetector struct{}

func (AttributeDetector) Detect(ctx context.Context, f frame.Frame) ([]frame.Detection, error) {
	raw, ok := f.Attributes["objects"]
	if !ok {
		return nil, nil
	}
	switch objects := raw.(type) {
	case []frame.Detection:
		out := make([]frame.Detection, len(objects))
		copy(out, objects)
		return out, nil
	case []any:
		var out []frame.Detection
		for _, item := range objects {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, detectionFromMap(m))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported objects attribute type %T", raw)
	}
}

func detectionFromMap(m map[string]any) frame.Detection {
	det := frame.Detection{Confidence: 1.0}
	if class, ok := m["class"].(string); ok {
		det.ClassName = class
	}
	if conf, ok := m["confidence"].(float64); ok {
		det.Confidence = conf
	}
	x, _ := m["x"].(float64)
	y, _ := m["y"].(float64)
	w, _ := m["w"].(float64)
	h, _ := m["h"].(float64)
	det.Box = frame.Box{X1: x, Y1: y, X2: x + w, Y2: y + h}
	return det
}

// DetectionNode runs a Detector over incoming frames and filters the
// results by confidence and class list.
type DetectionNode struct {
	node.Base
	detector   Detector
	model      string
	confidence float64
	classes    map[string]bool
}

// DetectionConfig controls a detection node.
type DetectionConfig struct {
	Model      string
	Confidence float64
	Classes    []string
}

// NewDetectionNode builds a detection node over the given backend.
func NewDetectionNode(id string, detector Detector, cfg DetectionConfig) *DetectionNode {
	classes := make(map[string]bool, len(cfg.Classes))
	for _, c := range cfg.Classes {
		classes[c] = true
	}
	if cfg.Confidence <= 0 {
		cfg.Confidence = 0.5
	}
	return &DetectionNode{
		Base:       node.NewBase(id),
		detector:   detector,
		model:      cfg.Model,
		confidence: cfg.Confidence,
		classes:    classes,
	}
}

func (n *DetectionNode) Initialize(ctx context.Context) error {
	if n.detector == nil {
		n.SetError("no detector backend")
		return fmt.Errorf("detection node '%s' has no detector backend", n.ID())
	}
	n.MarkInitialized()
	return nil
}

func (n *DetectionNode) Process(ctx context.Context, input map[string]any) frame.Result {
	if !n.Ready() {
		return frame.Fail(fmt.Sprintf("node '%s' is not initialized", n.ID()))
	}
	f, ok := input[frame.KeyFrame].(frame.Frame)
	if !ok {
		return frame.Fail("input has no frame")
	}
	detections, err := n.detector.Detect(ctx, f)
	if err != nil {
		n.SetError(err.Error())
		return frame.Fail(err.Error())
	}

	kept := make([]frame.Detection, 0, len(detections))
	for _, det := range detections {
		if det.Confidence < n.confidence {
			continue
		}
		if len(n.classes) > 0 && !n.classes[det.ClassName] {
			continue
		}
		kept = append(kept, det)
	}

	n.Touch()
	return frame.OK(map[string]any{
		frame.KeyFrame:      f,
		frame.KeyDetections: kept,
	}, map[string]any{"model": n.model, "total": len(detections), "kept": len(kept)})
}

func (n *DetectionNode) Cleanup() error {
	n.MarkUninitialized()
	return nil
}

func (n *DetectionNode) InputKinds() []string  { return []string{node.KindVideo, node.KindImage} }
func (n *DetectionNode) OutputKinds() []string { return []string{node.KindDetections} }

// MotionNode detects motion by frame differencing: it compares each frame's
// image bytes against the previous frame and reports a single full-frame
// detection when the changed fraction exceeds the threshold.
type MotionNode struct {
	node.Base
	threshold float64
	prev      []byte
}

// NewMotionNode builds a motion detector; threshold is the minimum changed
// byte fraction, defaulting to 0.05.
func NewMotionNode(id string, threshold float64) *MotionNode {
	if threshold <= 0 {
		threshold = 0.05
	}
	return &MotionNode{Base: node.NewBase(id), threshold: threshold}
}

func (n *MotionNode) Initialize(ctx context.Context) error {
	n.prev = nil
	n.MarkInitialized()
	return nil
}

func (n *MotionNode) Process(ctx context.Context, input map[string]any) frame.Result {
	if !n.Ready() {
		return frame.Fail(fmt.Sprintf("node '%s' is not initialized", n.ID()))
	}
	f, ok := input[frame.KeyFrame].(frame.Frame)
	if !ok {
		return frame.Fail("input has no frame")
	}

	var detections []frame.Detection
	changed := 0.0
	if n.prev != nil {
		changed = changedFraction(n.prev, f.Image)
		if changed >= n.threshold {
			detections = append(detections, frame.Detection{
				ClassName:  "motion",
				Confidence: changed,
				Box:        frame.Box{X2: float64(f.Width), Y2: float64(f.Height)},
			})
		}
	}
	n.prev = append(n.prev[:0], f.Image...)

	n.Touch()
	return frame.OK(map[string]any{
		frame.KeyFrame:      f,
		frame.KeyDetections: detections,
	}, map[string]any{"changed_fraction": changed})
}

func (n *MotionNode) Cleanup() error {
	n.prev = nil
	n.MarkUninitialized()
	return nil
}

func (n *MotionNode) InputKinds() []string  { return []string{node.KindVideo, node.KindImage} }
func (n *MotionNode) OutputKinds() []string { return []string{node.KindDetections} }

// changedFraction returns the fraction of byte positions that differ
// between two images, measured over the longer of the two.
func changedFraction(a, b []byte) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	diff := 0
	for i := 0; i < longest; i++ {
		var av, bv byte
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			diff++
		}
	}
	return float64(diff) / float64(longest)
}
