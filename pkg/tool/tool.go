package tool

import "context"

// ToolDefinition is the wire-shape of a tool schema surfaced to the LLM,
// matching the JSON the Anthropic SDK's tool_use content blocks expect.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema []byte         `json:"input_schema"`
	CacheControl map[string]any `json:"cache_control,omitempty"`
}

// Provider is a named capability source: an MCP connection manager wrapped
// as a provider, or a direct in-process callable set (spec.md §4.2).
type Provider interface {
	ProviderName() string
	GetToolDefinitions(ctx context.Context) ([]ToolDefinition, error)
	ExecuteTool(ctx context.Context, name string, args map[string]any) (string, error)
}
