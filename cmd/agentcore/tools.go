package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/driftloop/agentcore/pkg/statesvc"
	"github.com/driftloop/agentcore/pkg/tool"
)

// registerBuiltinTools wires the process's own capabilities in as a
// DirectProvider, grounded on the teacher's in-process tool idiom
// (agentloop.newTestRegistry / tool.DirectProvider) rather than routing
// everything through MCP.
func registerBuiltinTools(registry *tool.Registry, svc *statesvc.Service) error {
	direct := tool.NewDirectProvider("builtin")

	direct.Register(tool.ToolDefinition{
		Name:        "current_time",
		Description: "Returns the current UTC time in RFC3339 format.",
		InputSchema: []byte(`{"type":"object","properties":{}}`),
	}, func(ctx context.Context, args map[string]any) (string, error) {
		return time.Now().UTC().Format(time.RFC3339), nil
	})

	direct.Register(tool.ToolDefinition{
		Name:        "recall_session_state",
		Description: "Returns what this runtime currently remembers about the user and the conversation: profile fields, known facts, and interaction metadata.",
		InputSchema: []byte(`{"type":"object","properties":{}}`),
	}, func(ctx context.Context, args map[string]any) (string, error) {
		state := svc.State()
		snapshot := struct {
			Profile      statesvc.UserProfile `json:"profile"`
			Facts        []statesvc.Fact      `json:"facts"`
			MessageCount int                  `json:"message_count"`
		}{
			Profile:      state.UserProfile,
			Facts:        state.KnowledgeBase.Facts,
			MessageCount: state.StateMetadata.MessageCount,
		}
		data, err := json.Marshal(snapshot)
		if err != nil {
			return "", fmt.Errorf("recall_session_state: marshal: %w", err)
		}
		return string(data), nil
	})

	return registry.RegisterProvider(direct)
}
