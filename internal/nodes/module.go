// Package nodes is the built-in node catalog. Its Catalog implements
// registry.Module and contributes every node type the engine ships with.
package nodes

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/visionflow/visionflow/internal/analytics"
	"github.com/visionflow/visionflow/internal/frame"
	"github.com/visionflow/visionflow/internal/node"
	"github.com/visionflow/visionflow/internal/registry"
)

// DeviceFactory builds the capture backend for a video input from its
// source string.
type DeviceFactory func(source string, width, height int) CaptureDevice

// DetectorFactory builds the inference backend for a detection node from
// its model name.
type DetectorFactory func(model string) Detector

// Catalog registers the built-in node types. Zero-value fields take the
// default backends: synthetic capture devices and attribute-based
// detection.
type Catalog struct {
	Logger    *slog.Logger
	Devices   DeviceFactory
	Detectors DetectorFactory
}

// Register contributes every built-in node type to the registry.
func (c *Catalog) Register(r *registry.Registry) {
	devices := c.Devices
	if devices == nil {
		devices = func(source string, width, height int) CaptureDevice {
			return NewSyntheticDevice(source, width, height)
		}
	}
	detectors := c.Detectors
	if detectors == nil {
		detectors = func(model string) Detector { return AttributeDetector{} }
	}

	r.RegisterType(&registry.TypeSpec{
		Type:        "camera_input",
		Aliases:     []string{"webcam_input"},
		Category:    node.KindInput,
		Description: "Streams frames from a camera source.",
		OutputKinds: []string{node.KindVideo},
		Params: []registry.ParamSpec{
			{Name: "source", Type: cty.String, Required: true, Description: "Camera source, e.g. an RTSP URL or device index."},
			{Name: "width", Type: cty.Number, Default: 640.0},
			{Name: "height", Type: cty.Number, Default: 480.0},
			{Name: "fps", Type: cty.Number, Description: "Capture pacing; unset reads at device speed."},
			{Name: "buffer_size", Type: cty.Number, Default: 10.0},
		},
		New: func(id string, params map[string]any) (node.Node, error) {
			device := devices(
				registry.StringParam(params, "source", ""),
				registry.IntParam(params, "width", 640),
				registry.IntParam(params, "height", 480),
			)
			return NewVideoInput(id, device, VideoInputConfig{
				BufferSize: registry.IntParam(params, "buffer_size", 10),
				FPS:        registry.FloatParam(params, "fps", 0),
			}), nil
		},
	})

	r.RegisterType(&registry.TypeSpec{
		Type:        "video_file_input",
		Aliases:     []string{"image_input"},
		Category:    node.KindInput,
		Description: "Replays frames from a file on disk.",
		OutputKinds: []string{node.KindVideo, node.KindImage},
		Params: []registry.ParamSpec{
			{Name: "path", Type: cty.String, Required: true},
			{Name: "loop", Type: cty.Bool, Default: true},
			{Name: "fps", Type: cty.Number},
			{Name: "buffer_size", Type: cty.Number, Default: 10.0},
		},
		New: func(id string, params map[string]any) (node.Node, error) {
			device := &FileDevice{
				Path: registry.StringParam(params, "path", ""),
				Loop: registry.BoolParam(params, "loop", true),
			}
			return NewVideoInput(id, device, VideoInputConfig{
				BufferSize: registry.IntParam(params, "buffer_size", 10),
				FPS:        registry.FloatParam(params, "fps", 0),
			}), nil
		},
	})

	r.RegisterType(&registry.TypeSpec{
		Type:        "synthetic_input",
		Category:    node.KindInput,
		Description: "Generates deterministic frames, optionally with labelled objects.",
		OutputKinds: []string{node.KindVideo},
		Params: []registry.ParamSpec{
			{Name: "width", Type: cty.Number, Default: 640.0},
			{Name: "height", Type: cty.Number, Default: 480.0},
			{Name: "fps", Type: cty.Number},
			{Name: "buffer_size", Type: cty.Number, Default: 10.0},
			{Name: "objects", Type: cty.DynamicPseudoType, Description: "Labelled objects stamped onto every frame.", Item: []registry.ParamSpec{
				{Name: "class", Type: cty.String},
				{Name: "confidence", Type: cty.Number},
				{Name: "x", Type: cty.Number},
				{Name: "y", Type: cty.Number},
				{Name: "w", Type: cty.Number},
				{Name: "h", Type: cty.Number},
			}},
		},
		New: func(id string, params map[string]any) (node.Node, error) {
			device := NewSyntheticDevice(id,
				registry.IntParam(params, "width", 640),
				registry.IntParam(params, "height", 480),
			)
			objects, err := decodeObjects(registry.SliceParam(params, "objects"))
			if err != nil {
				return nil, err
			}
			device.Objects = objects
			return NewVideoInput(id, device, VideoInputConfig{
				BufferSize: registry.IntParam(params, "buffer_size", 10),
				FPS:        registry.FloatParam(params, "fps", 0),
			}), nil
		},
	})

	r.RegisterType(&registry.TypeSpec{
		Type:        "object_detection",
		Aliases:     []string{"yolo_detection"},
		Category:    node.KindProcessing,
		Description: "Runs object detection over incoming frames.",
		InputKinds:  []string{node.KindVideo, node.KindImage},
		OutputKinds: []string{node.KindDetections},
		Params: []registry.ParamSpec{
			{Name: "model", Type: cty.String, Default: "yolov8n"},
			{Name: "confidence", Type: cty.Number, Default: 0.5},
			{Name: "classes", Type: cty.List(cty.String)},
		},
		New: func(id string, params map[string]any) (node.Node, error) {
			model := registry.StringParam(params, "model", "yolov8n")
			return NewDetectionNode(id, detectors(model), DetectionConfig{
				Model:      model,
				Confidence: registry.FloatParam(params, "confidence", 0.5),
				Classes:    registry.StringSliceParam(params, "classes"),
			}), nil
		},
	})

	r.RegisterType(&registry.TypeSpec{
		Type:        "face_detection",
		Category:    node.KindProcessing,
		Description: "Detects faces in incoming frames.",
		InputKinds:  []string{node.KindVideo, node.KindImage},
		OutputKinds: []string{node.KindDetections},
		Params: []registry.ParamSpec{
			{Name: "model", Type: cty.String, Default: "face"},
			{Name: "confidence", Type: cty.Number, Default: 0.5},
		},
		New: func(id string, params map[string]any) (node.Node, error) {
			model := registry.StringParam(params, "model", "face")
			return NewDetectionNode(id, detectors(model), DetectionConfig{
				Model:      model,
				Confidence: registry.FloatParam(params, "confidence", 0.5),
				Classes:    []string{"face"},
			}), nil
		},
	})

	r.RegisterType(&registry.TypeSpec{
		Type:        "motion_detection",
		Category:    node.KindProcessing,
		Description: "Detects motion by frame differencing.",
		InputKinds:  []string{node.KindVideo, node.KindImage},
		OutputKinds: []string{node.KindDetections},
		Params: []registry.ParamSpec{
			{Name: "threshold", Type: cty.Number, Default: 0.05},
		},
		New: func(id string, params map[string]any) (node.Node, error) {
			return NewMotionNode(id, registry.FloatParam(params, "threshold", 0.05)), nil
		},
	})

	r.RegisterType(&registry.TypeSpec{
		Type:        "people_counting",
		Category:    node.KindAnalytics,
		Description: "Counts tracked people and classifies the occupancy trend.",
		InputKinds:  []string{node.KindDetections},
		OutputKinds: []string{node.KindAnalytic},
		Params: []registry.ParamSpec{
			{Name: "classes", Type: cty.List(cty.String)},
			{Name: "max_distance", Type: cty.Number, Default: 100.0},
			{Name: "track_timeout_seconds", Type: cty.Number, Default: 5.0},
			{Name: "trend_window", Type: cty.Number, Default: 5.0},
			{Name: "trend_delta", Type: cty.Number, Default: 1.0},
		},
		New: func(id string, params map[string]any) (node.Node, error) {
			return NewPeopleCountingNode(id, analytics.OccupancyConfig{
				Classes:     registry.StringSliceParam(params, "classes"),
				Tracker:     trackerFromParams(params),
				TrendWindow: registry.IntParam(params, "trend_window", 5),
				TrendDelta:  registry.FloatParam(params, "trend_delta", 1.0),
			}), nil
		},
	})

	r.RegisterType(&registry.TypeSpec{
		Type:        "line_crossing",
		Category:    node.KindAnalytics,
		Description: "Detects tracked objects crossing configured lines.",
		InputKinds:  []string{node.KindDetections},
		OutputKinds: []string{node.KindAnalytic},
		Params: []registry.ParamSpec{
			{Name: "lines", Type: cty.DynamicPseudoType, Required: true, Item: []registry.ParamSpec{
				{Name: "id", Type: cty.String},
				{Name: "name", Type: cty.String},
				{Name: "start", Type: cty.DynamicPseudoType, Required: true, Description: "{x, y} object or [x, y] pair."},
				{Name: "end", Type: cty.DynamicPseudoType, Required: true, Description: "{x, y} object or [x, y] pair."},
				{Name: "direction", Type: cty.String, Description: "both, forward, or backward."},
			}},
			{Name: "max_distance", Type: cty.Number, Default: 100.0},
			{Name: "track_timeout_seconds", Type: cty.Number, Default: 5.0},
		},
		New: func(id string, params map[string]any) (node.Node, error) {
			lines, err := decodeLines(registry.SliceParam(params, "lines"))
			if err != nil {
				return nil, err
			}
			return NewLineCrossingNode(id, analytics.LineCrossingConfig{
				Lines:   lines,
				Tracker: trackerFromParams(params),
			})
		},
	})

	r.RegisterType(&registry.TypeSpec{
		Type:        "area_intrusion",
		Aliases:     []string{"zone_monitoring"},
		Category:    node.KindAnalytics,
		Description: "Raises intrusion events for objects inside configured zones.",
		InputKinds:  []string{node.KindDetections},
		OutputKinds: []string{node.KindAnalytic},
		Params: []registry.ParamSpec{
			{Name: "zones", Type: cty.DynamicPseudoType, Required: true, Item: []registry.ParamSpec{
				{Name: "id", Type: cty.String},
				{Name: "name", Type: cty.String},
				{Name: "polygon", Type: cty.DynamicPseudoType, Required: true, Description: "At least three {x, y} or [x, y] points."},
				{Name: "allowed_classes", Type: cty.List(cty.String)},
				{Name: "alert_threshold", Type: cty.Number},
				{Name: "sensitivity", Type: cty.String, Description: "low, medium, or high."},
			}},
		},
		New: func(id string, params map[string]any) (node.Node, error) {
			zones, err := decodeZones(registry.SliceParam(params, "zones"))
			if err != nil {
				return nil, err
			}
			return NewAreaIntrusionNode(id, zones)
		},
	})

	r.RegisterType(&registry.TypeSpec{
		Type:        "log_output",
		Category:    node.KindOutput,
		Description: "Writes payload summaries to the structured log.",
		InputKinds:  []string{node.KindVideo, node.KindImage, node.KindDetections, node.KindAnalytic, node.KindData},
		Params: []registry.ParamSpec{
			{Name: "level", Type: cty.String, Default: "info"},
		},
		New: func(id string, params map[string]any) (node.Node, error) {
			level, err := parseLevel(registry.StringParam(params, "level", "info"))
			if err != nil {
				return nil, err
			}
			return NewLogOutput(id, c.Logger, level), nil
		},
	})

	r.RegisterType(&registry.TypeSpec{
		Type:        "socketio_output",
		Category:    node.KindOutput,
		Description: "Emits payloads to a socket.io server.",
		InputKinds:  []string{node.KindDetections, node.KindAnalytic, node.KindData},
		Params: []registry.ParamSpec{
			{Name: "url", Type: cty.String, Required: true},
			{Name: "namespace", Type: cty.String},
			{Name: "event", Type: cty.String, Default: "pipeline_event"},
			{Name: "insecure_skip_verify", Type: cty.Bool, Default: false},
		},
		New: func(id string, params map[string]any) (node.Node, error) {
			return NewSocketIOOutput(id, SocketIOConfig{
				URL:                registry.StringParam(params, "url", ""),
				Namespace:          registry.StringParam(params, "namespace", ""),
				Event:              registry.StringParam(params, "event", "pipeline_event"),
				InsecureSkipVerify: registry.BoolParam(params, "insecure_skip_verify", false),
			})
		},
	})
}

func trackerFromParams(params map[string]any) analytics.TrackerConfig {
	return analytics.TrackerConfig{
		MaxDistance: registry.FloatParam(params, "max_distance", 100),
		Timeout:     time.Duration(registry.FloatParam(params, "track_timeout_seconds", 5) * float64(time.Second)),
	}
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("unknown log level '%s'", name)
	}
	return level, nil
}

// decodeObjects lowers an objects parameter into detections.
func decodeObjects(raw []any) ([]frame.Detection, error) {
	if raw == nil {
		return nil, nil
	}
	out := make([]frame.Detection, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("objects[%d]: expected an object, got %T", i, item)
		}
		out = append(out, detectionFromMap(m))
	}
	return out, nil
}

// decodeLines lowers a lines parameter into counting lines. Each entry is
// an object with id, start, end, and optional name and direction; points
// are {x, y} objects or [x, y] pairs.
func decodeLines(raw []any) ([]analytics.Line, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("lines must be a non-empty list")
	}
	out := make([]analytics.Line, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("lines[%d]: expected an object, got %T", i, item)
		}
		line := analytics.Line{
			ID:        registry.StringParam(m, "id", fmt.Sprintf("line-%d", i+1)),
			Name:      registry.StringParam(m, "name", ""),
			Direction: analytics.Direction(registry.StringParam(m, "direction", "")),
		}
		start, err := decodePoint(m["start"])
		if err != nil {
			return nil, fmt.Errorf("lines[%d].start: %w", i, err)
		}
		end, err := decodePoint(m["end"])
		if err != nil {
			return nil, fmt.Errorf("lines[%d].end: %w", i, err)
		}
		line.Start, line.End = start, end
		out = append(out, line)
	}
	return out, nil
}

// decodeZones lowers a zones parameter into monitored zones. Each entry is
// an object with id, polygon, and optional name, allowed_classes,
// alert_threshold, and sensitivity.
func decodeZones(raw []any) ([]analytics.Zone, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("zones must be a non-empty list")
	}
	out := make([]analytics.Zone, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("zones[%d]: expected an object, got %T", i, item)
		}
		zone := analytics.Zone{
			ID:             registry.StringParam(m, "id", fmt.Sprintf("zone-%d", i+1)),
			Name:           registry.StringParam(m, "name", ""),
			AllowedClasses: registry.StringSliceParam(m, "allowed_classes"),
			AlertThreshold: registry.IntParam(m, "alert_threshold", 0),
			Sensitivity:    analytics.Sensitivity(registry.StringParam(m, "sensitivity", "")),
		}
		rawPolygon := registry.SliceParam(m, "polygon")
		if len(rawPolygon) < 3 {
			return nil, fmt.Errorf("zones[%d]: polygon needs at least 3 points", i)
		}
		for j, p := range rawPolygon {
			point, err := decodePoint(p)
			if err != nil {
				return nil, fmt.Errorf("zones[%d].polygon[%d]: %w", i, j, err)
			}
			zone.Polygon = append(zone.Polygon, point)
		}
		out = append(out, zone)
	}
	return out, nil
}

// decodePoint accepts {x, y} objects and [x, y] pairs.
func decodePoint(raw any) (frame.Point, error) {
	switch v := raw.(type) {
	case map[string]any:
		x, okX := v["x"].(float64)
		y, okY := v["y"].(float64)
		if !okX || !okY {
			return frame.Point{}, fmt.Errorf("point object needs numeric x and y")
		}
		return frame.Point{X: x, Y: y}, nil
	case []any:
		if len(v) != 2 {
			return frame.Point{}, fmt.Errorf("point pair needs exactly 2 elements")
		}
		x, okX := v[0].(float64)
		y, okY := v[1].(float64)
		if !okX || !okY {
			return frame.Point{}, fmt.Errorf("point pair needs numeric elements")
		}
		return frame.Point{X: x, Y: y}, nil
	default:
		return frame.Point{}, fmt.Errorf("expected a point, got %T", raw)
	}
}
