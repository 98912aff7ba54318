package config

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKinds(typeName string) (string, error) {
	kinds := map[string]string{
		"synthetic_input":  "input",
		"object_detection": "processing",
		"log_output":       "output",
	}
	if kind, ok := kinds[typeName]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("unknown node type '%s'", typeName)
}

func validPipeline() *Pipeline {
	return &Pipeline{
		Name: "demo",
		FPS:  10,
		Nodes: []NodeConfig{
			{ID: "cam", Type: "synthetic_input"},
			{ID: "det", Type: "object_detection"},
			{ID: "log", Type: "log_output"},
		},
		Edges: []EdgeConfig{
			{ID: "e1", Source: "cam", Target: "det"},
			{ID: "e2", Source: "det", Target: "log"},
		},
	}
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	assert.NoError(t, Validate(validPipeline(), testKinds))
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(p *Pipeline)
		message string
	}{
		{"empty name", func(p *Pipeline) { p.Name = "" }, "name is empty"},
		{"negative fps", func(p *Pipeline) { p.FPS = -1 }, "fps"},
		{"no nodes", func(p *Pipeline) { p.Nodes = nil; p.Edges = nil }, "no nodes"},
		{"duplicate node id", func(p *Pipeline) {
			p.Nodes = append(p.Nodes, NodeConfig{ID: "cam", Type: "synthetic_input"})
		}, "duplicate node id 'cam'"},
		{"unknown type", func(p *Pipeline) { p.Nodes[1].Type = "teleporter" }, "unknown node type"},
		{"no input node", func(p *Pipeline) {
			p.Nodes[0].Type = "object_detection"
		}, "no input node"},
		{"dangling edge source", func(p *Pipeline) { p.Edges[0].Source = "ghost" }, "unknown source node 'ghost'"},
		{"dangling edge target", func(p *Pipeline) { p.Edges[1].Target = "ghost" }, "unknown target node 'ghost'"},
		{"self loop", func(p *Pipeline) { p.Edges[0].Target = "cam" }, "self-loop"},
		{"duplicate edge id", func(p *Pipeline) { p.Edges[1].ID = "e1" }, "duplicate edge id 'e1'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPipeline()
			tc.mutate(p)
			err := Validate(p, testKinds)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPipeline)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestPipelineNodeLookup(t *testing.T) {
	p := validPipeline()
	require.NotNil(t, p.Node("det"))
	assert.Equal(t, "object_detection", p.Node("det").Type)
	assert.Nil(t, p.Node("ghost"))
}
