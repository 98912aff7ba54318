package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPipeline wraps every structural validation failure.
var ErrInvalidPipeline = errors.New("invalid pipeline")

// KindLookup resolves a node type name to its category ("input",
// "processing", "analytics", "output"). It returns an error for unknown
// types.
type KindLookup func(typeName string) (string, error)

// Validate performs a structural check of the pipeline definition: node ids
// and edge ids must be unique, every edge must reference declared nodes, no
// self-loops, every node type must be known, and at least one node must be
// an input.
func Validate(p *Pipeline, kindOf KindLookup) error {
	var errs []string

	if p.Name == "" {
		errs = append(errs, "pipeline name is empty")
	}
	if p.FPS < 0 {
		errs = append(errs, fmt.Sprintf("fps must not be negative, got %v", p.FPS))
	}
	if len(p.Nodes) == 0 {
		errs = append(errs, "pipeline declares no nodes")
	}

	nodeIDs := make(map[string]bool, len(p.Nodes))
	inputs := 0
	for _, n := range p.Nodes {
		if n.ID == "" {
			errs = append(errs, "node with empty id")
			continue
		}
		if nodeIDs[n.ID] {
			errs = append(errs, fmt.Sprintf("duplicate node id '%s'", n.ID))
			continue
		}
		nodeIDs[n.ID] = true
		kind, err := kindOf(n.Type)
		if err != nil {
			errs = append(errs, fmt.Sprintf("node '%s': %v", n.ID, err))
			continue
		}
		if kind == "input" {
			inputs++
		}
	}
	if len(p.Nodes) > 0 && inputs == 0 {
		errs = append(errs, "pipeline has no input node")
	}

	edgeIDs := make(map[string]bool, len(p.Edges))
	for _, e := range p.Edges {
		if e.ID != "" {
			if edgeIDs[e.ID] {
				errs = append(errs, fmt.Sprintf("duplicate edge id '%s'", e.ID))
			}
			edgeIDs[e.ID] = true
		}
		if !nodeIDs[e.Source] {
			errs = append(errs, fmt.Sprintf("edge '%s': unknown source node '%s'", e.ID, e.Source))
		}
		if !nodeIDs[e.Target] {
			errs = append(errs, fmt.Sprintf("edge '%s': unknown target node '%s'", e.ID, e.Target))
		}
		if e.Source != "" && e.Source == e.Target {
			errs = append(errs, fmt.Sprintf("edge '%s': self-loop on node '%s'", e.ID, e.Source))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w '%s':\n- %s", ErrInvalidPipeline, p.Name, strings.Join(errs, "\n- "))
	}
	return nil
}
