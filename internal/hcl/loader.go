// Package hcl loads pipeline definitions from .hcl files into the
// format-agnostic config model.
//
// A definition file looks like:
//
//	pipeline "lobby" {
//	  fps = 10
//
//	  node "cam" {
//	    type       = "camera_input"
//	    parameters = { source = "rtsp://..." }
//	  }
//
//	  node "log" {
//	    type = "log_output"
//	  }
//
//	  edge "e1" {
//	    source = "cam"
//	    target = "log"
//	  }
//	}
package hcl

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/visionflow/visionflow/internal/config"
	"github.com/visionflow/visionflow/internal/ctxlog"
)

type hclFile struct {
	Pipelines []*hclPipeline `hcl:"pipeline,block"`
}

type hclPipeline struct {
	Name  string     `hcl:"name,label"`
	FPS   *float64   `hcl:"fps,optional"`
	Nodes []*hclNode `hcl:"node,block"`
	Edges []*hclEdge `hcl:"edge,block"`
}

type hclNode struct {
	ID         string     `hcl:"id,label"`
	Type       string     `hcl:"type"`
	Parameters *cty.Value `hcl:"parameters,optional"`
	Position   *cty.Value `hcl:"position,optional"`
}

type hclEdge struct {
	ID         string  `hcl:"id,label"`
	Source     string  `hcl:"source"`
	Target     string  `hcl:"target"`
	SourcePort *string `hcl:"source_port,optional"`
	TargetPort *string `hcl:"target_port,optional"`
}

// LoadFile parses a single HCL file and returns the pipelines defined in it.
func LoadFile(path string, parser *hclparse.Parser) ([]*config.Pipeline, error) {
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	pipelines := make([]*config.Pipeline, 0, len(parsed.Pipelines))
	for _, p := range parsed.Pipelines {
		pipeline, err := newPipeline(p)
		if err != nil {
			return nil, fmt.Errorf("pipeline '%s' in file %s: %w", p.Name, path, err)
		}
		pipelines = append(pipelines, pipeline)
	}
	return pipelines, nil
}

// LoadDir finds every .hcl file below path and consolidates the pipelines
// they define. Pipeline names must be unique across the whole tree.
func LoadDir(ctx context.Context, path string) ([]*config.Pipeline, error) {
	logger := ctxlog.From(ctx)
	logger.Debug("Loading pipeline definitions from path.", "path", path)

	files, err := findHCLFiles(path)
	if err != nil {
		return nil, fmt.Errorf("failed to find pipeline files in %s: %w", path, err)
	}
	if len(files) == 0 {
		logger.Warn("No .hcl pipeline files found in path.", "path", path)
		return nil, nil
	}

	parser := hclparse.NewParser()
	var pipelines []*config.Pipeline
	seen := make(map[string]string)
	for _, file := range files {
		loaded, err := LoadFile(file, parser)
		if err != nil {
			return nil, err
		}
		for _, p := range loaded {
			if prev, ok := seen[p.Name]; ok {
				return nil, fmt.Errorf("pipeline '%s' defined in both %s and %s", p.Name, prev, file)
			}
			seen[p.Name] = file
			pipelines = append(pipelines, p)
		}
	}
	return pipelines, nil
}

func newPipeline(p *hclPipeline) (*config.Pipeline, error) {
	out := &config.Pipeline{Name: p.Name}
	if p.FPS != nil {
		out.FPS = *p.FPS
	}

	for _, n := range p.Nodes {
		nodeCfg := config.NodeConfig{ID: n.ID, Type: n.Type}
		if n.Parameters != nil && !n.Parameters.IsNull() {
			native, err := ctyToNative(*n.Parameters)
			if err != nil {
				return nil, fmt.Errorf("node '%s' parameters: %w", n.ID, err)
			}
			params, ok := native.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("node '%s': parameters must be an object", n.ID)
			}
			nodeCfg.Parameters = params
		}
		if n.Position != nil && !n.Position.IsNull() {
			pos, err := decodePosition(*n.Position)
			if err != nil {
				return nil, fmt.Errorf("node '%s' position: %w", n.ID, err)
			}
			nodeCfg.Position = pos
		}
		out.Nodes = append(out.Nodes, nodeCfg)
	}

	for _, e := range p.Edges {
		edgeCfg := config.EdgeConfig{ID: e.ID, Source: e.Source, Target: e.Target}
		if e.SourcePort != nil {
			edgeCfg.SourcePort = *e.SourcePort
		}
		if e.TargetPort != nil {
			edgeCfg.TargetPort = *e.TargetPort
		}
		out.Edges = append(out.Edges, edgeCfg)
	}
	return out, nil
}

func decodePosition(v cty.Value) (*config.Position, error) {
	native, err := ctyToNative(v)
	if err != nil {
		return nil, err
	}
	m, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("position must be an object with x and y")
	}
	pos := &config.Position{}
	if x, ok := m["x"].(float64); ok {
		pos.X = x
	}
	if y, ok := m["y"].(float64); ok {
		pos.Y = y
	}
	return pos, nil
}

func findHCLFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".hcl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
