// Package agentloop implements the Agent Loop (C6, spec.md §4.6): the
// single-conversation S0-S5 state machine that drives one LLM turn chain
// to completion, executing tool_use blocks as they come back and feeding
// tool_result blocks back in until the model stops on end_turn.
//
// Grounded on the teacher's pkg/toolrunner.Runner (streaming
// accumulation, tool-call batching, error-as-string tool failure
// semantics), generalized from the teacher's OpenAI-style ToolCall/
// function-name dispatch to this runtime's Anthropic-style tool_use
// content blocks and multi-provider Registry.
package agentloop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftloop/agentcore/pkg/agentcore/errs"
	"github.com/driftloop/agentcore/pkg/approval"
	"github.com/driftloop/agentcore/pkg/callback"
	"github.com/driftloop/agentcore/pkg/conversation"
	"github.com/driftloop/agentcore/pkg/model"
	"github.com/driftloop/agentcore/pkg/tool"
	"github.com/driftloop/agentcore/pkg/tracker"
)

// ApprovalConfig supplies everything the loop needs to gate a tool_use
// batch at S4c. Classify maps a tool name to the Operation tier the
// approval Mode checks against; a nil Classify treats every tool as
// OpExternalEffect, the most conservative default.
type ApprovalConfig struct {
	Mode      approval.Mode
	Context   approval.Context
	Requester approval.Requester
	Classify  func(toolName string) approval.Operation
}

func (c ApprovalConfig) classify(toolName string) approval.Operation {
	if c.Classify == nil {
		return approval.OpExternalEffect
	}
	return c.Classify(toolName)
}

// RequestDefaults carries the per-completion-request knobs that are not
// themselves part of the conversation state (spec.md §6 CompletionRequest).
type RequestDefaults struct {
	MaxTokens     int
	Temperature   float64
	StopSequences []string
	Thinking      *model.ThinkingConfig
}

// Dependencies wires the Agent Loop to its collaborating components.
type Dependencies struct {
	Client   model.Client
	Registry *tool.Registry
	Tracker  *tracker.Tracker
	Approval ApprovalConfig
	Log      zerolog.Logger
}

// Loop drives one conversation's S0-S5 state machine to completion.
type Loop struct {
	deps    Dependencies
	reqDflt RequestDefaults
}

// New builds an Agent Loop over the given dependencies and per-request
// defaults (max tokens/temperature/stop sequences/thinking are supplied
// here since they rarely vary call to call; ModelID is given per Run since a scheduler may want
// to route different strategies to different models).
func New(deps Dependencies, reqDefaults RequestDefaults) *Loop {
	return &Loop{deps: deps, reqDflt: reqDefaults}
}

// Run executes the S0-S5 state machine against conv: S0 appends query (if
// non-empty) to the conversation, then alternates S1 (build request) / S2
// (call LLM) / S3 (append response) / S4 (execute any tool_use blocks and
// loop) until S5 (the model stops without requesting a tool), returning
// the model's final text.
func (l *Loop) Run(ctx context.Context, conv *conversation.Conversation, modelID, query string, hooks *callback.LoopHooks) (string, error) {
	if strings.TrimSpace(query) != "" {
		conv.AddUserMessage(query)
	}
	hooks.Start()

	for {
		resp, err := l.turn(ctx, conv, modelID, hooks)
		if err != nil {
			return "", err
		}

		conv.AddAssistantMessage(resp.Message.Content)

		if resp.StopReason != model.StopToolUse {
			hooks.StreamComplete()
			return extractText(resp.Message.Content), nil
		}

		results, err := l.runToolBatch(ctx, resp.Message.Content, hooks)
		if err != nil {
			return "", err
		}
		conv.AddToolResults(results)
	}
}

// turn performs S1 (build request) and S2 (call the LLM, streamed or
// buffered per whether hooks wants token-level chunks).
func (l *Loop) turn(ctx context.Context, conv *conversation.Conversation, modelID string, hooks *callback.LoopHooks) (*model.CompletionResponse, error) {
	system, messages := conv.View()

	toolDefs, err := l.deps.Registry.GetToolDefinitionsForAPI(ctx)
	if err != nil {
		return nil, err
	}

	req := model.CompletionRequest{
		Model:         modelID,
		Messages:      messages,
		System:        joinSystemText(system),
		Tools:         toModelTools(toolDefs),
		Temperature:   l.reqDflt.Temperature,
		MaxTokens:     l.reqDflt.MaxTokens,
		StopSequences: l.reqDflt.StopSequences,
		Thinking:      l.reqDflt.Thinking,
	}

	var resp *model.CompletionResponse
	if hooks.WantsStreaming() {
		resp, err = l.streamTurn(ctx, req, hooks)
	} else {
		resp, err = l.deps.Client.Complete(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	hooks.Usage(callback.Usage{Tokens: resp.Usage})
	return resp, nil
}

// streamTurn drains the Client's Stream, forwarding text deltas to
// hooks.StreamChunk as they arrive and returning the terminal assembled
// response (spec.md §4.1 Stream contract).
func (l *Loop) streamTurn(ctx context.Context, req model.CompletionRequest, hooks *callback.LoopHooks) (*model.CompletionResponse, error) {
	evCh, errCh := l.deps.Client.Stream(ctx, req)

	for {
		select {
		case ev, ok := <-evCh:
			if !ok {
				continue
			}
			if ev.Kind == model.EventContentBlockDelta && ev.TextDelta != "" {
				hooks.StreamChunk(ev.TextDelta)
			}
			if ev.Kind == model.EventMessageStop && ev.Final != nil {
				return ev.Final, nil
			}
		case err, ok := <-errCh:
			if !ok {
				continue
			}
			if err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// runToolBatch executes S4a-S4f for every tool_use block in order,
// constructing a fresh approval.Channel so approve_all/deny_all applies
// only within this one batch (spec.md §4.6 S4c).
func (l *Loop) runToolBatch(ctx context.Context, content []model.ContentBlock, hooks *callback.LoopHooks) ([]model.ContentBlock, error) {
	channel := approval.NewChannel(l.deps.Approval.Mode, l.deps.Approval.Context, l.deps.Approval.Requester)

	results := make([]model.ContentBlock, 0, len(content))
	for _, block := range content {
		if block.Kind != model.BlockToolUse {
			continue
		}
		results = append(results, l.runOneTool(ctx, block, channel, hooks))
	}
	if len(results) == 0 {
		return nil, errNoToolUseBlocks
	}
	return results, nil
}

// runOneTool is S4a-S4f for a single tool_use block. It never returns an
// error: tool and approval failures become a tool_result with
// ToolResultError set, per spec.md §4.6's "loop never aborts on tool
// errors" guarantee.
func (l *Loop) runOneTool(ctx context.Context, block model.ContentBlock, channel *approval.Channel, hooks *callback.LoopHooks) model.ContentBlock {
	name, args := block.ToolName, block.ToolInput

	// S4a: tracker cache consult.
	if execute, cached := l.deps.Tracker.ShouldExecuteTool(name, args); !execute {
		l.deps.Log.Debug().Str("tool", name).Msg("tool cache hit, reusing result")
		l.deps.Tracker.LogToolExecution(name, args, true, cached, "", 0)
		hooks.ToolResult(name, cached, true)
		return model.ToolResult(block.ToolUseID, cached, false)
	}

	// S4b
	hooks.ToolCall(name, args)

	// S4c: approval gate.
	req := approval.Request{Tool: name, Operation: l.deps.Approval.classify(name), Input: args}
	decision, err := channel.Evaluate(ctx, req, true)
	if err != nil {
		msg := fmt.Sprintf("approval request failed for tool %q: %v", name, err)
		l.deps.Tracker.LogToolExecution(name, args, false, "", msg, 0)
		hooks.ToolResult(name, msg, false)
		return model.ToolResult(block.ToolUseID, msg, true)
	}
	if decision.Decision == approval.DecisionDeny {
		msg := fmt.Sprintf("tool call denied: %s", decision.Reason)
		l.deps.Tracker.LogToolExecution(name, args, false, "", msg, 0)
		hooks.ToolResult(name, msg, false)
		return model.ToolResult(block.ToolUseID, msg, true)
	}

	// S4d: execute with wall-clock timing.
	start := time.Now()
	result, execErr := l.deps.Registry.ExecuteTool(ctx, name, args)
	elapsedMS := float64(time.Since(start).Microseconds()) / 1000.0

	success := execErr == nil
	resultText := result
	errMsg := ""
	if execErr != nil {
		errMsg = execErr.Error()
		resultText = fmt.Sprintf("Error executing tool '%s': %s", name, errMsg)
	}

	// S4e
	hooks.ToolResult(name, resultText, success)

	// S4f
	l.deps.Tracker.LogToolExecution(name, args, success, result, errMsg, elapsedMS)

	return model.ToolResult(block.ToolUseID, resultText, !success)
}

func extractText(content []model.ContentBlock) string {
	var b strings.Builder
	for _, block := range content {
		if block.Kind == model.BlockText {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

func joinSystemText(blocks []model.ContentBlock) string {
	var b strings.Builder
	for _, block := range blocks {
		if block.Kind == model.BlockText {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

func toModelTools(defs []tool.ToolDefinition) []model.ToolDefinition {
	if len(defs) == 0 {
		return nil
	}
	out := make([]model.ToolDefinition, len(defs))
	for i, def := range defs {
		mt := model.ToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}
		if def.CacheControl != nil {
			mt.CacheControl = &model.CacheControl{Type: "ephemeral"}
		}
		out[i] = mt
	}
	return out
}

// errNoToolUseBlocks guards the degenerate case spec.md §4.6 treats as an
// invariant violation: a stop_reason of tool_use with no actual
// tool_use content blocks in the message.
var errNoToolUseBlocks = errs.New(errs.KindInvariantViolation, "stop_reason tool_use but no tool_use blocks present")
