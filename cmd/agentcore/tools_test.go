package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftloop/agentcore/pkg/bus"
	"github.com/driftloop/agentcore/pkg/statesvc"
	"github.com/driftloop/agentcore/pkg/stateprovider"
	"github.com/driftloop/agentcore/pkg/tool"
)

type noopExtractor struct{}

func (noopExtractor) ExtractUserInfo(ctx context.Context, userMsg, assistantMsg string) (map[string]any, error) {
	return nil, nil
}
func (noopExtractor) ExtractFacts(ctx context.Context, userMsg, assistantMsg string) ([]string, error) {
	return nil, nil
}
func (noopExtractor) ClassifyIntent(ctx context.Context, userMsg string) (statesvc.IntentClassification, error) {
	return statesvc.IntentClassification{}, nil
}

func newTestService(t *testing.T) *statesvc.Service {
	t.Helper()
	b := bus.NewInProc(zerolog.Nop())
	provider := stateprovider.NewInMemory()
	return statesvc.New(b, provider, "test-session", noopExtractor{}, zerolog.Nop())
}

func TestRegisterBuiltinToolsRegistersBoth(t *testing.T) {
	registry := tool.NewRegistry(false, zerolog.Nop())
	svc := newTestService(t)

	require.NoError(t, registerBuiltinTools(registry, svc))

	assert.Equal(t, 2, registry.GetToolCount())
	assert.ElementsMatch(t, []string{"current_time", "recall_session_state"}, registry.GetToolNames())
}

func TestCurrentTimeToolReturnsRFC3339(t *testing.T) {
	registry := tool.NewRegistry(false, zerolog.Nop())
	svc := newTestService(t)
	require.NoError(t, registerBuiltinTools(registry, svc))

	result, err := registry.ExecuteTool(context.Background(), "current_time", map[string]any{})
	require.NoError(t, err)

	_, err = time.Parse(time.RFC3339, result)
	assert.NoError(t, err)
}

func TestRecallSessionStateToolReflectsServiceState(t *testing.T) {
	registry := tool.NewRegistry(false, zerolog.Nop())
	svc := newTestService(t)
	require.NoError(t, registerBuiltinTools(registry, svc))

	svc.State().UserProfile.Name = "Alice"
	svc.State().StateMetadata.MessageCount = 3

	result, err := registry.ExecuteTool(context.Background(), "recall_session_state", map[string]any{})
	require.NoError(t, err)

	var snapshot struct {
		Profile      statesvc.UserProfile `json:"profile"`
		Facts        []statesvc.Fact      `json:"facts"`
		MessageCount int                  `json:"message_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(result), &snapshot))
	assert.Equal(t, "Alice", snapshot.Profile.Name)
	assert.Equal(t, 3, snapshot.MessageCount)
}
