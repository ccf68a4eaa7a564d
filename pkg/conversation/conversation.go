// Package conversation implements the Conversation Store (C4): an
// in-memory ordered message log with cache-control placement, history
// truncation, and round-trip serialization.
package conversation

import (
	"time"

	"github.com/driftloop/agentcore/pkg/model"
)

// Config holds the per-conversation options from spec.md §6.
type Config struct {
	MaxHistoryMessages *int
	CachingEnabled     bool
	CreatedAt          time.Time
	LastModifiedAt     time.Time
}

// Conversation is the append-only message log plus optional system
// prompt. Messages alternate user -> assistant -> (tool_result-user ->
// assistant)* (spec.md §3 invariant i).
type Conversation struct {
	System   string
	Messages []model.Message
	Config   Config
}

// New creates an empty conversation with the given system prompt.
func New(system string, cfg Config) *Conversation {
	now := time.Now()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.LastModifiedAt = now
	return &Conversation{System: system, Config: cfg}
}

func (c *Conversation) touch() { c.Config.LastModifiedAt = time.Now() }

// AddUserMessage appends a plain-text user message.
func (c *Conversation) AddUserMessage(text string) {
	c.Messages = append(c.Messages, model.NewTextMessage(model.RoleUser, text))
	c.touch()
}

// AddAssistantMessage appends an assistant message (may carry tool_use
// blocks alongside or instead of text).
func (c *Conversation) AddAssistantMessage(content []model.ContentBlock) {
	c.Messages = append(c.Messages, model.Message{Role: model.RoleAssistant, Content: content})
	c.touch()
}

// AddToolResults appends a single user-role message containing all
// tool_result blocks for one batch, preserving the order of the
// corresponding tool_use blocks (spec.md §4.6 S4, §5 ordering guarantee).
func (c *Conversation) AddToolResults(results []model.ContentBlock) {
	c.Messages = append(c.Messages, model.Message{Role: model.RoleUser, Content: results})
	c.touch()
}

// Clear empties the log but preserves the system prompt (spec.md §3).
func (c *Conversation) Clear() {
	c.Messages = nil
	c.touch()
}

// View returns the truncated, cache-control-applied message log for an
// API call, plus the (possibly cache-marked) system prompt. It is
// non-destructive: the internal list is never mutated (spec.md §4.4).
func (c *Conversation) View() (system []model.ContentBlock, messages []model.Message) {
	truncated := c.truncatedMessages()

	if !c.Config.CachingEnabled {
		return textSystemBlock(c.System), truncated
	}

	req := model.CompletionRequest{Messages: truncated}
	cached := model.ApplyCacheControl(req)

	sys := model.CacheSystemPrompt(c.System)
	return sys, cached.Messages
}

func textSystemBlock(system string) []model.ContentBlock {
	if system == "" {
		return nil
	}
	return []model.ContentBlock{model.Text(system)}
}

// truncatedMessages applies max_history_messages, dropping from the
// front and repairing any orphaned tool_result left at the new head
// (spec.md §4.4 Truncation, §8 boundary: max_history_messages=0 yields
// an empty view).
func (c *Conversation) truncatedMessages() []model.Message {
	if c.Config.MaxHistoryMessages == nil {
		return append([]model.Message(nil), c.Messages...)
	}

	limit := *c.Config.MaxHistoryMessages
	if limit <= 0 {
		return []model.Message{}
	}
	if len(c.Messages) <= limit {
		return append([]model.Message(nil), c.Messages...)
	}

	start := len(c.Messages) - limit
	// Never drop a tool_result without also dropping its tool_use: if the
	// new first message carries only tool_result blocks, it is itself the
	// orphan (its tool_use lives in the message we just cut), so drop it too.
	if start < len(c.Messages) && messageIsToolResultOnly(c.Messages[start]) {
		start++
	}
	if start >= len(c.Messages) {
		return []model.Message{}
	}
	return append([]model.Message(nil), c.Messages[start:]...)
}

func messageIsToolResultOnly(m model.Message) bool {
	if m.Role != model.RoleUser || len(m.Content) == 0 {
		return false
	}
	for _, b := range m.Content {
		if b.Kind != model.BlockToolResult {
			return false
		}
	}
	return true
}

// EstimateTokens applies the spec's 4-characters/token heuristic over the
// system prompt plus all text-block contents. Non-text blocks contribute
// zero (spec.md §4.4).
func (c *Conversation) EstimateTokens() int {
	total := estimateTokens(c.System)
	for _, m := range c.Messages {
		for _, b := range m.Content {
			if b.Kind == model.BlockText {
				total += estimateTokens(b.Text)
			}
		}
	}
	return total
}

func estimateTokens(s string) int {
	return len(s) / 4
}
