// Package model implements the LLM Client facade (C1): a stateless
// request/response and token-streaming surface over a chat-completion
// service, with cache-control-aware parameter construction.
package model

import (
	"encoding/json"
	"fmt"
)

// BlockKind tags the variant of a ContentBlock. The source SDK exposes
// duck-typed content via a runtime "type" field on opaque objects; here
// it survives only as this discriminator.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockImage      BlockKind = "image"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
)

// CacheControl is the protocol token instructing the LLM service to
// retain a prefix across calls. Only "ephemeral" is defined today.
type CacheControl struct {
	Type string `json:"type"`
}

var ephemeralCacheControl = &CacheControl{Type: "ephemeral"}

// ContentBlock is the tagged sum type {Text | Image | ToolUse | ToolResult}.
// Kind is the wire discriminator; only the fields matching Kind are set.
type ContentBlock struct {
	Kind BlockKind `json:"type"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockImage
	ImageSource string `json:"source,omitempty"`

	// BlockToolUse
	ToolUseID   string         `json:"id,omitempty"`
	ToolName    string         `json:"name,omitempty"`
	ToolInput   map[string]any `json:"input,omitempty"`

	// BlockToolResult
	ToolResultID      string `json:"tool_use_id,omitempty"`
	ToolResultContent string `json:"content,omitempty"`
	ToolResultError   bool   `json:"is_error,omitempty"`

	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// Text constructs a text content block.
func Text(s string) ContentBlock { return ContentBlock{Kind: BlockText, Text: s} }

// ToolUse constructs a tool_use content block with a canonical
// map-of-JSON-values input (the type-erasure boundary per design note).
func ToolUse(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Kind: BlockToolUse, ToolUseID: id, ToolName: name, ToolInput: input}
}

// ToolResult constructs a tool_result content block.
func ToolResult(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Kind: BlockToolResult, ToolResultID: toolUseID, ToolResultContent: content, ToolResultError: isError}
}

// WithCacheControl returns a copy of the block marked as an ephemeral
// cache breakpoint.
func (b ContentBlock) WithCacheControl() ContentBlock {
	b.CacheControl = ephemeralCacheControl
	return b
}

// Role enumerates message roles in the conversation data model.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleToolResult Role = "tool_result" // wire role for a tool_result-carrying user turn, see spec.md §3
)

// Message is one entry in the append-only conversation log. Content is
// an ordered list of typed blocks; a single text block is the common case.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// NewTextMessage builds a single-block text message.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{Text(text)}}
}

// StopReason enumerates why the model stopped generating.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
)

// Usage carries input/output token counts for one completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ThinkingConfig enables extended reasoning on models that support it.
type ThinkingConfig struct {
	Enabled      bool `json:"enabled"`
	BudgetTokens int  `json:"budget_tokens,omitempty"`
}

// ToolDefinition is the wire shape of one registered tool's schema.
type ToolDefinition struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema"`
	CacheControl *CacheControl   `json:"cache_control,omitempty"`
}

// CompletionRequest is the C1 request contract (spec.md §6).
type CompletionRequest struct {
	Model         string
	Messages      []Message
	System        string
	Tools         []ToolDefinition
	Temperature   float64
	MaxTokens     int
	StopSequences []string
	Thinking      *ThinkingConfig
}

// CompletionResponse is the assembled result of complete()/stream().
type CompletionResponse struct {
	Message    Message
	StopReason StopReason
	Usage      Usage
}

// StreamEventKind tags a StreamEvent variant (spec.md §4.1).
type StreamEventKind string

const (
	EventMessageStart      StreamEventKind = "message_start"
	EventContentBlockStart StreamEventKind = "content_block_start"
	EventContentBlockDelta StreamEventKind = "content_block_delta"
	EventContentBlockStop  StreamEventKind = "content_block_stop"
	EventMessageDelta      StreamEventKind = "message_delta"
	EventMessageStop       StreamEventKind = "message_stop"
)

// StreamEvent is one element of the lazy, finite, non-restartable
// sequence returned by Stream. The terminal message_stop event carries
// the final assembled Message via Final.
type StreamEvent struct {
	Kind StreamEventKind

	BlockIndex   int
	TextDelta    string
	ToolInputPartial string

	StopReason *StopReason
	Usage      *Usage
	Final      *CompletionResponse
}

// TransportError wraps a retryable network/transport failure. Retry
// policy is not decided here — it lives at the Agent Loop/Scheduler.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport error: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitedError indicates the upstream asked the caller to back off.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfterSeconds > 0 {
		return fmt.Sprintf("rate limited: retry after %ds", e.RetryAfterSeconds)
	}
	return "rate limited"
}

// InvalidRequestError indicates a malformed request rejected by the
// upstream before any generation occurred.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string { return fmt.Sprintf("invalid request: %s", e.Reason) }

// UpstreamError wraps any other non-2xx response from the provider.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (%d): %s", e.StatusCode, e.Message)
}
