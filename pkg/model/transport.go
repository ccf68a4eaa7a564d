package model

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps a Client with a caller-configured token-bucket
// limiter. The LLM Client itself never retries (spec.md §4.1); this is a
// caller-discretion policy a C6/C7 caller may opt into at construction.
type RateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps inner with a limiter of the given rate
// (requests per second) and burst size.
func NewRateLimitedClient(inner Client, requestsPerSecond rate.Limit, burst int) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, limiter: rate.NewLimiter(requestsPerSecond, burst)}
}

func (c *RateLimitedClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Err: err}
	}
	return c.inner.Complete(ctx, req)
}

func (c *RateLimitedClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, <-chan error) {
	if err := c.limiter.Wait(ctx); err != nil {
		errCh := make(chan error, 1)
		evCh := make(chan StreamEvent)
		errCh <- &TransportError{Err: err}
		close(evCh)
		close(errCh)
		return evCh, errCh
	}
	return c.inner.Stream(ctx, req)
}
