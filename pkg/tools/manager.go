package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jmuk/sleek/pkg/config"
)

type Manager interface {
	ToolDefs(ctx context.Context) ([]ToolDefinition, error)
	Close() error
}

// NewMCPManagers returns one manager per configured MCP server, sorted by
// name.
func NewMCPManagers(configs []config.MCPConfig) []Manager {
	mcpManagers := map[string]Manager{}
	for _, mcpc := range configs {
		if m := NewMCP(mcpc); m != nil {
			mcpManagers[mcpc.Name] = m
		}
	}
	keys := make([]string, 0, len(mcpManagers))
	for k := range mcpManagers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	mgrs := make([]Manager, 0, len(keys))
	for _, k := range keys {
		mgrs = append(mgrs, mcpManagers[k])
	}
	return mgrs
}

// Collect gathers the tools of all managers into a registry. Earlier
// managers win name conflicts, so the design tools should come first.
func Collect(ctx context.Context, mgrs []Manager) (*Registry, error) {
	logger := getLogger(ctx)
	var defs []ToolDefinition
	seen := map[string]bool{}
	for _, m := range mgrs {
		mdefs, err := m.ToolDefs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tools: %w", err)
		}
		for _, d := range mdefs {
			if seen[d.Name()] {
				logger.Warn("Skipping conflicting tool", "name", d.Name())
				continue
			}
			seen[d.Name()] = true
			defs = append(defs, d)
		}
	}
	return NewRegistry(defs)
}

func CloseAll(mgrs []Manager) error {
	var allerr error
	for _, m := range mgrs {
		allerr = errors.Join(allerr, m.Close())
	}
	return allerr
}

// Static serves a fixed list of tools, such as the tools already listed from
// long-lived MCP sessions.
type Static []ToolDefinition

func (s Static) ToolDefs(context.Context) ([]ToolDefinition, error) {
	return s, nil
}

func (s Static) Close() error {
	return nil
}
