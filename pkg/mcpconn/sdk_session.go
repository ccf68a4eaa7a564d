package mcpconn

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// sdkSession adapts an *mcp.ClientSession from the official Go SDK to
// this package's narrow Session contract, isolating the SDK's richer
// surface (notifications, roots, sampling) from the connection
// manager, which only needs the five operations spec.md §6 names.
type sdkSession struct {
	session *mcp.ClientSession
}

// NewSDKConnectFunc builds a ConnectFunc that speaks the MCP protocol
// over the given client transport, using the official SDK for framing
// and JSON-RPC dispatch.
func NewSDKConnectFunc(clientName, clientVersion string, transport mcp.Transport) ConnectFunc {
	return func(ctx context.Context) (Session, error) {
		client := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: clientVersion}, nil)
		session, err := client.Connect(ctx, transport, nil)
		if err != nil {
			return nil, fmt.Errorf("mcpconn: connect: %w", err)
		}
		return &sdkSession{session: session}, nil
	}
}

func (s *sdkSession) Initialize(ctx context.Context) error {
	// The SDK performs the initialize handshake inside Connect; nothing
	// further is required here, but the explicit call keeps this
	// adapter's shape aligned with spec.md §6's five-operation contract.
	return nil
}

func (s *sdkSession) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	result, err := s.session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("mcpconn: list_tools: %w", err)
	}
	defs := make([]ToolDefinition, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("mcpconn: marshal schema for tool %q: %w", t.Name, err)
		}
		defs = append(defs, ToolDefinition{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	return defs, nil
}

func (s *sdkSession) ListPrompts(ctx context.Context) ([]Prompt, error) {
	result, err := s.session.ListPrompts(ctx, &mcp.ListPromptsParams{})
	if err != nil {
		return nil, fmt.Errorf("mcpconn: list_prompts: %w", err)
	}
	prompts := make([]Prompt, 0, len(result.Prompts))
	for _, p := range result.Prompts {
		prompts = append(prompts, Prompt{Name: p.Name, Description: p.Description})
	}
	return prompts, nil
}

func (s *sdkSession) ListResources(ctx context.Context) ([]Resource, error) {
	result, err := s.session.ListResources(ctx, &mcp.ListResourcesParams{})
	if err != nil {
		return nil, fmt.Errorf("mcpconn: list_resources: %w", err)
	}
	resources := make([]Resource, 0, len(result.Resources))
	for _, r := range result.Resources {
		resources = append(resources, Resource{URI: r.URI, Name: r.Name, Description: r.Description})
	}
	return resources, nil
}

func (s *sdkSession) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	result, err := s.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("mcpconn: call_tool %q: %w", name, err)
	}
	if result.IsError {
		return "", fmt.Errorf("mcpconn: tool %q reported an error", name)
	}

	var out []byte
	for _, block := range result.Content {
		if text, ok := block.(*mcp.TextContent); ok {
			out = append(out, []byte(text.Text)...)
		}
	}
	return string(out), nil
}

func (s *sdkSession) Close() error {
	return s.session.Close()
}
