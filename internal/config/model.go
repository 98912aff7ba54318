// Package config holds the format-agnostic pipeline definition model.
// Loaders (HCL today) produce this model; validation and execution consume
// it without knowing where it came from.
package config

// Position is an optional editor hint carried through the model untouched.
type Position struct {
	X float64
	Y float64
}

// NodeConfig declares one node instance in a pipeline.
type NodeConfig struct {
	ID         string
	Type       string
	Parameters map[string]any
	Position   *Position
}

// EdgeConfig declares one directed connection between two node instances.
// SourcePort and TargetPort are free-form labels; empty means the default
// port.
type EdgeConfig struct {
	ID         string
	Source     string
	Target     string
	SourcePort string
	TargetPort string
}

// Pipeline is a complete pipeline definition.
type Pipeline struct {
	Name  string
	FPS   float64
	Nodes []NodeConfig
	Edges []EdgeConfig
}

// Node returns the node config with the given id, or nil.
func (p *Pipeline) Node(id string) *NodeConfig {
	for i := range p.Nodes {
		if p.Nodes[i].ID == id {
			return &p.Nodes[i]
		}
	}
	return nil
}
