package mcpconn

import (
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff computes the spec.md §4.3 exponential-backoff delay sequence:
// delay(n) = min(base * 2^(n-1) * jitter, ceiling), jitter uniform in
// [JitterMin, JitterMax]. ShouldRetry(n) = n <= MaxAttempts.
type Backoff struct {
	Base        time.Duration
	Ceiling     time.Duration
	JitterMin   float64
	JitterMax   float64
	MaxAttempts int
}

// DefaultBackoff returns spec.md §6's connection defaults.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        1 * time.Second,
		Ceiling:     60 * time.Second,
		JitterMin:   0.8,
		JitterMax:   1.2,
		MaxAttempts: 10,
	}
}

// Delay returns the wait before reconnection attempt n (1-indexed).
func (b Backoff) Delay(attempt int) time.Duration {
	raw := float64(b.Base) * math.Pow(2, float64(attempt-1))
	jitter := b.JitterMin + rand.Float64()*(b.JitterMax-b.JitterMin)
	d := time.Duration(raw * jitter)
	if d > b.Ceiling {
		d = b.Ceiling
	}
	return d
}

// ShouldRetry reports whether attempt is still within the retry budget.
func (b Backoff) ShouldRetry(attempt int) bool {
	return attempt <= b.MaxAttempts
}

// specBackOff adapts Backoff to cenkalti/backoff/v4's BackOff interface.
// Manager.reconnect drives it from its own loop, calling NextBackOff
// once per attempt and stopping when it returns backoff.Stop.
type specBackOff struct {
	cfg     Backoff
	attempt int
}

func newSpecBackOff(cfg Backoff) *specBackOff {
	return &specBackOff{cfg: cfg}
}

func (s *specBackOff) NextBackOff() time.Duration {
	s.attempt++
	if !s.cfg.ShouldRetry(s.attempt) {
		return backoff.Stop
	}
	return s.cfg.Delay(s.attempt)
}

func (s *specBackOff) Reset() {
	s.attempt = 0
}

// Attempt returns the 1-indexed attempt number the backoff is currently on.
func (s *specBackOff) Attempt() int {
	return s.attempt
}
