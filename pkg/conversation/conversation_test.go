package conversation

import (
	"testing"

	"github.com/driftloop/agentcore/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolUseReply(id, name string, input map[string]any) []model.ContentBlock {
	return []model.ContentBlock{model.ToolUse(id, name, input)}
}

func TestToolUseResultPairing(t *testing.T) {
	c := New("", Config{})
	c.AddUserMessage("run echo")
	c.AddAssistantMessage(toolUseReply("call-1", "echo", map[string]any{"msg": "x"}))
	c.AddToolResults([]model.ContentBlock{model.ToolResult("call-1", "x", false)})
	c.AddAssistantMessage([]model.ContentBlock{model.Text("done")})

	_, msgs := c.View()
	require.Len(t, msgs, 4)

	assistant := msgs[1]
	require.Len(t, assistant.Content, 1)
	require.Equal(t, model.BlockToolUse, assistant.Content[0].Kind)

	toolResultMsg := msgs[2]
	require.Equal(t, model.RoleUser, toolResultMsg.Role)
	require.Len(t, toolResultMsg.Content, 1)
	assert.Equal(t, "call-1", toolResultMsg.Content[0].ToolResultID)
	assert.Equal(t, assistant.Content[0].ToolUseID, toolResultMsg.Content[0].ToolResultID)
}

func TestTruncationNeverOrphansToolResult(t *testing.T) {
	c := New("sys", Config{})
	c.AddUserMessage("q1")
	c.AddAssistantMessage(toolUseReply("c1", "echo", map[string]any{"a": 1}))
	c.AddToolResults([]model.ContentBlock{model.ToolResult("c1", "r1", false)})
	c.AddAssistantMessage([]model.ContentBlock{model.Text("a1")})
	c.AddUserMessage("q2")
	c.AddAssistantMessage([]model.ContentBlock{model.Text("a2")})

	limit := 4
	c.Config.MaxHistoryMessages = &limit

	_, msgs := c.View()
	// Naive front-drop to the last 4 would leave [tool_result(c1), assistant(a1),
	// user(q2), assistant(a2)] with an orphaned tool_result; the repair step
	// must drop it too.
	for _, m := range msgs {
		for _, b := range m.Content {
			assert.NotEqual(t, model.BlockToolResult, b.Kind, "tool_result leaked into truncated view without its tool_use")
		}
	}
}

func TestMaxHistoryZeroYieldsEmptyViewButKeepsSystem(t *testing.T) {
	c := New("system prompt", Config{})
	c.AddUserMessage("hi")
	zero := 0
	c.Config.MaxHistoryMessages = &zero

	sys, msgs := c.View()
	assert.Empty(t, msgs)
	require.Len(t, sys, 1)
	assert.Equal(t, "system prompt", sys[0].Text)
}

func TestClearPreservesSystemPrompt(t *testing.T) {
	c := New("keep me", Config{})
	c.AddUserMessage("hi")
	c.Clear()

	assert.Empty(t, c.Messages)
	assert.Equal(t, "keep me", c.System)
}

func TestCacheControlAppliedToLastUserBlockOnly(t *testing.T) {
	c := New("sys", Config{CachingEnabled: true})
	c.AddUserMessage("first")
	c.AddAssistantMessage([]model.ContentBlock{model.Text("reply")})
	c.AddUserMessage("second")

	sys, msgs := c.View()
	require.NotNil(t, sys[0].CacheControl)

	require.Nil(t, msgs[0].Content[0].CacheControl)
	require.NotNil(t, msgs[2].Content[0].CacheControl)
}

func TestCacheControlViewIsNonDestructive(t *testing.T) {
	c := New("sys", Config{CachingEnabled: true})
	c.AddUserMessage("hi")

	_, _ = c.View()
	_, _ = c.View()

	assert.Nil(t, c.Messages[0].Content[0].CacheControl, "internal log must never be mutated by View")
}

func TestToDictFromDictRoundTrip(t *testing.T) {
	c := New("sys", Config{CachingEnabled: true})
	c.AddUserMessage("hi")
	c.AddAssistantMessage([]model.ContentBlock{model.Text("hello")})

	data, err := c.ToDict()
	require.NoError(t, err)

	restored, err := FromDict(data)
	require.NoError(t, err)

	assert.Equal(t, c.System, restored.System)
	assert.Equal(t, c.Messages, restored.Messages)
	assert.Equal(t, c.Config.CachingEnabled, restored.Config.CachingEnabled)
}

func TestEstimateTokensIgnoresNonTextBlocks(t *testing.T) {
	c := New("", Config{})
	c.AddAssistantMessage(toolUseReply("c1", "echo", map[string]any{"a": "b"}))
	assert.Equal(t, 0, c.EstimateTokens())

	c2 := New("abcd", Config{})
	assert.Equal(t, 1, c2.EstimateTokens())
}
