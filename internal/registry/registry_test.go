package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/visionflow/visionflow/internal/frame"
	"github.com/visionflow/visionflow/internal/node"
)

type stubNode struct {
	node.Base
	params map[string]any
}

func (n *stubNode) Initialize(ctx context.Context) error { return nil }
func (n *stubNode) Process(ctx context.Context, input map[string]any) frame.Result {
	return frame.OK(input, nil)
}
func (n *stubNode) Cleanup() error        { return nil }
func (n *stubNode) InputKinds() []string  { return []string{node.KindVideo} }
func (n *stubNode) OutputKinds() []string { return []string{node.KindDetections} }

func stubSpec(name string, aliases ...string) *TypeSpec {
	return &TypeSpec{
		Type:        name,
		Aliases:     aliases,
		Category:    node.KindProcessing,
		InputKinds:  []string{node.KindVideo},
		OutputKinds: []string{node.KindDetections},
		Params: []ParamSpec{
			{Name: "confidence", Type: cty.Number, Default: 0.5},
			{Name: "model", Type: cty.String, Required: true},
			{Name: "classes", Type: cty.List(cty.String)},
		},
		New: func(id string, params map[string]any) (node.Node, error) {
			n := &stubNode{Base: node.NewBase(id), params: params}
			return n, nil
		},
	}
}

func TestRegisterAndResolve(t *testing.T) {
	r := New()
	r.RegisterType(stubSpec("object_detection", "yolo_detection"))

	spec, err := r.Resolve("object_detection")
	require.NoError(t, err)
	assert.Equal(t, "object_detection", spec.Type)

	// Alias resolves to the canonical spec.
	viaAlias, err := r.Resolve("yolo_detection")
	require.NoError(t, err)
	assert.Same(t, spec, viaAlias)

	_, err = r.Resolve("nonexistent")
	assert.Error(t, err)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := New()
	r.RegisterType(stubSpec("object_detection"))
	assert.Panics(t, func() { r.RegisterType(stubSpec("object_detection")) })
	assert.Panics(t, func() { r.RegisterType(stubSpec("other", "object_detection")) })
}

func TestCreateNodeValidatesParams(t *testing.T) {
	r := New()
	r.RegisterType(stubSpec("object_detection"))

	n, err := r.CreateNode("object_detection", "det-1", map[string]any{
		"model":      "yolov8n",
		"confidence": 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "det-1", n.ID())
	stub := n.(*stubNode)
	assert.Equal(t, "yolov8n", stub.params["model"])
	assert.InDelta(t, 0.7, stub.params["confidence"], 1e-9)

	// Missing required parameter.
	_, err = r.CreateNode("object_detection", "det-2", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model")

	// Unknown parameter is rejected.
	_, err = r.CreateNode("object_detection", "det-3", map[string]any{
		"model":  "yolov8n",
		"bogus":  true,
		"classs": []any{"person"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestCreateNodeAppliesDefaults(t *testing.T) {
	r := New()
	r.RegisterType(stubSpec("object_detection"))

	n, err := r.CreateNode("object_detection", "det-1", map[string]any{"model": "yolov8n"})
	require.NoError(t, err)
	stub := n.(*stubNode)
	assert.Equal(t, 0.5, stub.params["confidence"])
	_, present := stub.params["classes"]
	assert.False(t, present)
}

func TestValidateParamsNormalizes(t *testing.T) {
	spec := stubSpec("object_detection")

	resolved, err := ValidateParams(spec, map[string]any{
		"model":      "yolov8n",
		"confidence": 1, // int converts to number
		"classes":    []any{"person", "car"},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(1), resolved["confidence"])
	assert.Equal(t, []any{"person", "car"}, resolved["classes"])

	// Type mismatch fails conversion.
	_, err = ValidateParams(spec, map[string]any{
		"model":      "yolov8n",
		"confidence": "very",
	})
	assert.Error(t, err)
}

func TestValidateParamsItemSchema(t *testing.T) {
	spec := stubSpec("line_crossing")
	spec.Params = []ParamSpec{
		{Name: "lines", Type: cty.DynamicPseudoType, Required: true, Item: []ParamSpec{
			{Name: "id", Type: cty.String},
			{Name: "start", Type: cty.DynamicPseudoType, Required: true},
			{Name: "end", Type: cty.DynamicPseudoType, Required: true},
			{Name: "direction", Type: cty.String},
		}},
	}

	resolved, err := ValidateParams(spec, map[string]any{
		"lines": []any{
			map[string]any{
				"id":    "door",
				"start": map[string]any{"x": 0.0, "y": 0.0},
				"end":   []any{100.0, 0.0},
			},
		},
	})
	require.NoError(t, err)
	assert.Len(t, resolved["lines"], 1)

	// Unknown element fields are rejected.
	_, err = ValidateParams(spec, map[string]any{
		"lines": []any{
			map[string]any{"start": []any{0.0, 0.0}, "end": []any{1.0, 1.0}, "colour": "red"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lines[0]: unknown field 'colour'")

	// Missing required element fields are rejected.
	_, err = ValidateParams(spec, map[string]any{
		"lines": []any{map[string]any{"id": "door", "start": []any{0.0, 0.0}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required field 'end'")

	// Element field values are type checked.
	_, err = ValidateParams(spec, map[string]any{
		"lines": []any{
			map[string]any{"start": []any{0.0, 0.0}, "end": []any{1.0, 1.0}, "direction": []any{"forward"}},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lines[0].direction")

	// Non-list values are rejected outright.
	_, err = ValidateParams(spec, map[string]any{"lines": "door"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a list of objects")
}

func TestAvailableTypesAndCategories(t *testing.T) {
	r := New()
	r.RegisterType(stubSpec("object_detection", "yolo_detection"))
	r.RegisterType(stubSpec("motion_detection"))

	assert.Equal(t, []string{"motion_detection", "object_detection"}, r.AvailableTypes())

	byCat := r.TypesByCategory()
	assert.Equal(t, []string{"motion_detection", "object_detection"}, byCat[node.KindProcessing])

	cat, err := r.Category("yolo_detection")
	require.NoError(t, err)
	assert.Equal(t, node.KindProcessing, cat)
}
