package tools

import (
	"context"
	"fmt"
)

// Registry resolves tool calls by name. The order of definitions is kept
// for providers that send tool lists verbatim.
type Registry struct {
	defs    []ToolDefinition
	defsMap map[string]ToolDefinition
}

func NewRegistry(defs []ToolDefinition) (*Registry, error) {
	m := make(map[string]ToolDefinition, len(defs))
	for _, d := range defs {
		if _, ok := m[d.Name()]; ok {
			return nil, fmt.Errorf("duplicated tool name %s", d.Name())
		}
		m[d.Name()] = d
	}
	return &Registry{defs: defs, defsMap: m}, nil
}

func (r *Registry) Defs() []ToolDefinition {
	return r.defs
}

func (r *Registry) Has(name string) bool {
	_, ok := r.defsMap[name]
	return ok
}

func (r *Registry) Run(ctx context.Context, name string, in map[string]any) (any, error) {
	p, ok := r.defsMap[name]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownTool, name)
	}
	if in == nil {
		in = map[string]any{}
	}
	return p.process(ctx, in)
}
