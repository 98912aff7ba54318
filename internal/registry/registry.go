package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/visionflow/visionflow/internal/node"
)

// Module is the interface a node catalog implements to contribute its node
// types to a registry.
type Module interface {
	Register(r *Registry)
}

// Constructor builds a node instance from its id and validated parameters.
type Constructor func(id string, params map[string]any) (node.Node, error)

// ParamSpec declares one configurable parameter of a node type. Collection
// parameters whose elements are structured objects declare the per-element
// fields in Item.
type ParamSpec struct {
	Name        string
	Type        cty.Type
	Required    bool
	Default     any
	Description string
	Item        []ParamSpec
}

// TypeSpec describes one registered node type: its category, the data kinds
// it consumes and produces, its parameter schema, and its constructor.
type TypeSpec struct {
	Type        string
	Aliases     []string
	Category    node.Kind
	Description string
	InputKinds  []string
	OutputKinds []string
	Params      []ParamSpec
	New         Constructor
}

// Registry holds the node types available to pipelines in a single
// application instance.
type Registry struct {
	types   map[string]*TypeSpec
	aliases map[string]string
}

// New creates and initializes an empty Registry instance.
func New() *Registry {
	return &Registry{
		types:   make(map[string]*TypeSpec),
		aliases: make(map[string]string),
	}
}

// RegisterType registers a node type and its aliases. It panics when a type
// or alias name collides with one already registered.
func (r *Registry) RegisterType(spec *TypeSpec) {
	if spec.New == nil {
		panic(fmt.Sprintf("node type '%s' registered without a constructor", spec.Type))
	}
	if _, exists := r.types[spec.Type]; exists {
		panic(fmt.Sprintf("node type with name '%s' already registered", spec.Type))
	}
	if canonical, exists := r.aliases[spec.Type]; exists {
		panic(fmt.Sprintf("node type name '%s' already in use as alias of '%s'", spec.Type, canonical))
	}
	slog.Debug("Registering node type.", "type", spec.Type, "category", spec.Category)
	r.types[spec.Type] = spec
	for _, alias := range spec.Aliases {
		if _, exists := r.types[alias]; exists {
			panic(fmt.Sprintf("alias '%s' collides with registered node type", alias))
		}
		if _, exists := r.aliases[alias]; exists {
			panic(fmt.Sprintf("alias '%s' already registered", alias))
		}
		r.aliases[alias] = spec.Type
	}
}

// Resolve maps a type name or alias to its canonical spec.
func (r *Registry) Resolve(name string) (*TypeSpec, error) {
	if spec, ok := r.types[name]; ok {
		return spec, nil
	}
	if canonical, ok := r.aliases[name]; ok {
		return r.types[canonical], nil
	}
	return nil, fmt.Errorf("unknown node type '%s'", name)
}

// CreateNode validates the parameters against the type's schema, applies
// defaults, and invokes the constructor.
func (r *Registry) CreateNode(typeName, id string, params map[string]any) (node.Node, error) {
	spec, err := r.Resolve(typeName)
	if err != nil {
		return nil, err
	}
	resolved, err := ValidateParams(spec, params)
	if err != nil {
		return nil, fmt.Errorf("node '%s' (%s): %w", id, spec.Type, err)
	}
	n, err := spec.New(id, resolved)
	if err != nil {
		return nil, fmt.Errorf("node '%s' (%s): %w", id, spec.Type, err)
	}
	return n, nil
}

// Category returns the category of a type name or alias.
func (r *Registry) Category(name string) (node.Kind, error) {
	spec, err := r.Resolve(name)
	if err != nil {
		return "", err
	}
	return spec.Category, nil
}

// AvailableTypes returns the canonical type names, sorted.
func (r *Registry) AvailableTypes() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TypesByCategory groups the canonical type names by node category.
func (r *Registry) TypesByCategory() map[node.Kind][]string {
	out := make(map[node.Kind][]string)
	for name, spec := range r.types {
		out[spec.Category] = append(out[spec.Category], name)
	}
	for _, names := range out {
		sort.Strings(names)
	}
	return out
}

// ConfigSchema returns the full spec for a type name or alias, for clients
// that render configuration forms.
func (r *Registry) ConfigSchema(name string) (*TypeSpec, error) {
	return r.Resolve(name)
}
