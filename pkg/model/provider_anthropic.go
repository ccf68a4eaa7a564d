package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
)

// AnthropicClient is the Client implementation backed by
// anthropics/anthropic-sdk-go. It is stateless: every call builds its
// request fresh from the supplied CompletionRequest.
type AnthropicClient struct {
	sdk *anthropic.Client
	log zerolog.Logger
}

// NewAnthropicClient builds a Client against the hosted Anthropic API.
// baseURL may be empty to use the SDK default, useful for pointing at a
// proxy or test double.
func NewAnthropicClient(apiKey, baseURL string, log zerolog.Logger) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicClient{sdk: &client, log: log.With().Str("component", "model.anthropic").Logger()}
}

func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	params, err := toAnthropicParams(req)
	if err != nil {
		return nil, &InvalidRequestError{Reason: err.Error()}
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, translateAnthropicError(err)
	}

	return fromAnthropicMessage(msg), nil
}

func (c *AnthropicClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, <-chan error) {
	evCh := make(chan StreamEvent, 16)
	errCh := make(chan error, 1)

	params, err := toAnthropicParams(req)
	if err != nil {
		go func() {
			errCh <- &InvalidRequestError{Reason: err.Error()}
			close(evCh)
			close(errCh)
		}()
		return evCh, errCh
	}

	go func() {
		defer close(evCh)
		defer close(errCh)

		stream := c.sdk.Messages.NewStreaming(ctx, params)
		acc := newStreamAccumulator()

		for stream.Next() {
			raw := stream.Current()
			for _, ev := range acc.ingest(raw) {
				evCh <- ev
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- translateAnthropicError(err)
			return
		}

		final := acc.finalize()
		evCh <- StreamEvent{Kind: EventMessageStop, Final: final}
	}()

	return evCh, errCh
}

func toAnthropicParams(req CompletionRequest) (anthropic.MessageNewParams, error) {
	if req.Model == "" {
		return anthropic.MessageNewParams{}, errors.New("model is required")
	}

	cached := ApplyCacheControl(req)

	msgs := make([]anthropic.MessageParam, 0, len(cached.Messages))
	for _, m := range cached.Messages {
		blocks, err := toAnthropicBlocks(m.Content)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		role := anthropic.MessageParamRoleUser
		if m.Role == RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		msgs = append(msgs, anthropic.MessageParam{Role: role, Content: blocks})
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(cached.Model),
		Messages:    msgs,
		MaxTokens:   int64(cached.MaxTokens),
		Temperature: anthropic.Float(cached.Temperature),
	}

	if cached.System != "" {
		params.System = []anthropic.TextBlockParam{{
			Text:         cached.System,
			CacheControl: anthropic.CacheControlEphemeralParam{Type: "ephemeral"},
		}}
	}

	if len(cached.StopSequences) > 0 {
		params.StopSequences = cached.StopSequences
	}

	if len(cached.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(cached.Tools))
		for _, t := range cached.Tools {
			var schema any
			if len(t.InputSchema) > 0 {
				if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
					return anthropic.MessageNewParams{}, fmt.Errorf("tool %q: invalid input_schema: %w", t.Name, err)
				}
			}
			tool := anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
			}
			if t.CacheControl != nil {
				tool.CacheControl = anthropic.CacheControlEphemeralParam{Type: "ephemeral"}
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &tool})
		}
		params.Tools = tools
	}

	if cached.Thinking != nil && cached.Thinking.Enabled {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(cached.Thinking.BudgetTokens))
	}

	return params, nil
}

func toAnthropicBlocks(blocks []ContentBlock) ([]anthropic.ContentBlockParamUnion, error) {
	out := make([]anthropic.ContentBlockParamUnion, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case BlockText:
			tb := anthropic.NewTextBlock(b.Text)
			if b.CacheControl != nil {
				tb.OfText.CacheControl = anthropic.CacheControlEphemeralParam{Type: "ephemeral"}
			}
			out = append(out, tb)
		case BlockToolUse:
			out = append(out, anthropic.NewToolUseBlock(b.ToolUseID, b.ToolInput, b.ToolName))
		case BlockToolResult:
			out = append(out, anthropic.NewToolResultBlock(b.ToolResultID, b.ToolResultContent, b.ToolResultError))
		default:
			return nil, fmt.Errorf("unsupported content block kind %q for request", b.Kind)
		}
	}
	return out, nil
}

func fromAnthropicMessage(msg *anthropic.Message) *CompletionResponse {
	blocks := make([]ContentBlock, 0, len(msg.Content))
	for _, c := range msg.Content {
		switch variant := c.AsAny().(type) {
		case anthropic.TextBlock:
			blocks = append(blocks, Text(variant.Text))
		case anthropic.ToolUseBlock:
			input := map[string]any{}
			_ = json.Unmarshal(variant.Input, &input)
			blocks = append(blocks, ToolUse(variant.ID, variant.Name, input))
		}
	}

	return &CompletionResponse{
		Message:    Message{Role: RoleAssistant, Content: blocks},
		StopReason: translateStopReason(string(msg.StopReason)),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
}

func translateStopReason(s string) StopReason {
	switch s {
	case "tool_use":
		return StopToolUse
	case "max_tokens":
		return StopMaxTokens
	case "stop_sequence":
		return StopStopSequence
	default:
		return StopEndTurn
	}
}

func translateAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return &RateLimitedError{}
		case 400, 422:
			return &InvalidRequestError{Reason: apiErr.Error()}
		default:
			return &UpstreamError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
		}
	}
	return &TransportError{Err: err}
}
