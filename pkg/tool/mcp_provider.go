package tool

import (
	"context"

	"github.com/driftloop/agentcore/pkg/mcpconn"
)

// MCPProvider adapts one or more mcpconn Managers into a single Provider.
// Each manager's tools are surfaced as-is, without namespacing (MCP servers are
// expected to already use globally-unique tool names; collisions are
// resolved by the Registry's first-wins dedup, same as any other
// provider pair).
type MCPProvider struct {
	name     string
	managers []*mcpconn.Manager
}

// NewMCPProvider builds a Provider fronting the given connection managers.
func NewMCPProvider(name string, managers ...*mcpconn.Manager) *MCPProvider {
	return &MCPProvider{name: name, managers: managers}
}

func (p *MCPProvider) ProviderName() string { return p.name }

func (p *MCPProvider) GetToolDefinitions(ctx context.Context) ([]ToolDefinition, error) {
	var out []ToolDefinition
	for _, m := range p.managers {
		if m.State() != mcpconn.StateConnected {
			continue
		}
		defs, err := m.ListTools(ctx)
		if err != nil {
			continue
		}
		for _, d := range defs {
			out = append(out, ToolDefinition{
				Name:        d.Name,
				Description: d.Description,
				InputSchema: d.InputSchema,
			})
		}
	}
	return out, nil
}

func (p *MCPProvider) ExecuteTool(ctx context.Context, name string, args map[string]any) (string, error) {
	var lastErr error
	for _, m := range p.managers {
		if m.State() != mcpconn.StateConnected {
			continue
		}
		result, err := m.CallTool(ctx, name, args)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", UnknownTool(name)
}
