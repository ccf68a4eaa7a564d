package model

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
)

// streamAccumulator assembles raw Anthropic streaming events into the
// spec's StreamEvent variants while building the final CompletionResponse
// (spec.md §4.1 invariant: stream's terminal message is block-by-block
// equivalent to what complete() would return for the same input).
type streamAccumulator struct {
	message    anthropic.Message
	partialJSON map[int]string
}

func newStreamAccumulator() *streamAccumulator {
	return &streamAccumulator{partialJSON: make(map[int]string)}
}

// ingest folds one raw SDK event into the accumulator and returns zero or
// more StreamEvents to forward to the caller.
func (a *streamAccumulator) ingest(raw anthropic.MessageStreamEventUnion) []StreamEvent {
	if err := a.message.Accumulate(raw); err != nil {
		// Malformed delta from the wire: skip it, the final assembled
		// message remains whatever was validly accumulated so far.
		return nil
	}

	switch variant := raw.AsAny().(type) {
	case anthropic.MessageStartEvent:
		return []StreamEvent{{Kind: EventMessageStart}}
	case anthropic.ContentBlockStartEvent:
		return []StreamEvent{{Kind: EventContentBlockStart, BlockIndex: int(variant.Index)}}
	case anthropic.ContentBlockDeltaEvent:
		return a.deltaEvents(variant)
	case anthropic.ContentBlockStopEvent:
		return []StreamEvent{{Kind: EventContentBlockStop, BlockIndex: int(variant.Index)}}
	case anthropic.MessageDeltaEvent:
		reason := translateStopReason(string(variant.Delta.StopReason))
		return []StreamEvent{{Kind: EventMessageDelta, StopReason: &reason}}
	default:
		return nil
	}
}

func (a *streamAccumulator) deltaEvents(ev anthropic.ContentBlockDeltaEvent) []StreamEvent {
	idx := int(ev.Index)
	switch delta := ev.Delta.AsAny().(type) {
	case anthropic.TextDelta:
		return []StreamEvent{{Kind: EventContentBlockDelta, BlockIndex: idx, TextDelta: delta.Text}}
	case anthropic.InputJSONDelta:
		a.partialJSON[idx] += delta.PartialJSON
		return []StreamEvent{{Kind: EventContentBlockDelta, BlockIndex: idx, ToolInputPartial: a.partialJSON[idx]}}
	default:
		return nil
	}
}

// finalize converts the fully-accumulated SDK message into the spec's
// CompletionResponse.
func (a *streamAccumulator) finalize() *CompletionResponse {
	blocks := make([]ContentBlock, 0, len(a.message.Content))
	for _, c := range a.message.Content {
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
		StopReason: translateStopReason(string(a.message.StopReason)),
		Usage: Usage{
			InputTokens:  int(a.message.Usage.InputTokens),
			OutputTokens: int(a.message.Usage.OutputTokens),
		},
	}
}
