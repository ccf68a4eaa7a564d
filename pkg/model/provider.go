package model

import "context"

// Client is the C1 LLM Client contract: a stateless request/response and
// token-streaming facade. Implementations must not retain conversational
// state across calls — callers own the Conversation.
type Client interface {
	// Complete performs one-shot completion.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Stream returns a finite, non-restartable sequence of StreamEvents.
	// The channel is closed after the terminal message_stop event (or on
	// error, in which case errCh carries the failure). The final event's
	// Final field is block-by-block equivalent to what Complete would
	// have produced for the same inputs.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, <-chan error)
}

// CompleteAsync is semantically identical to Complete in a goroutine-based
// runtime: Go has no separate suspension-point concept to model, so
// callers that want asynchrony simply invoke Complete from their own
// goroutine. No additional method is needed on Client.
