// Package errs implements the typed error kinds from spec.md §7: six
// failure categories with distinct propagation policies, each owned by
// the component that recovers from it (or, for fatal/invariant kinds,
// propagated to abort the run). Ported from the teacher's pkg/errors
// (ErrorCode + *Error + Wrap/New/WithContext), generalized from a flat
// string-code taxonomy to the spec's six Kinds.
package errs

import (
	"fmt"
)

// Kind is one of the six error-handling categories from spec.md §7.
type Kind string

const (
	// KindTransientExternal covers timeouts, rate limits, MCP
	// disconnects — retried by the closest policy owner.
	KindTransientExternal Kind = "transient_external"
	// KindSchemaFormat covers malformed extraction JSON or bad
	// serialized state — logged and treated as empty, never propagated.
	KindSchemaFormat Kind = "schema_format"
	// KindPolicyDenial covers a refused approval request.
	KindPolicyDenial Kind = "policy_denial"
	// KindToolExecution covers a provider-raised tool error, captured
	// and stringified into the tool_result.
	KindToolExecution Kind = "tool_execution"
	// KindInvariantViolation covers programming errors (mismatched
	// tool_use/result count, duplicate provider, unknown tool) — abort
	// the current run with a descriptive failure.
	KindInvariantViolation Kind = "invariant_violation"
	// KindFatalStartup covers an unusable state provider or missing LLM
	// credentials — propagate, caller decides.
	KindFatalStartup Kind = "fatal_startup"
)

// Error is the structured error type threaded through every component.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
	Context    map[string]any
	Retryable  bool
}

// New creates a fresh structured error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Context: make(map[string]any)}
}

// Wrap attaches a Kind and message to an existing error. Returns nil if
// err is nil, so call sites can Wrap(err, ...) without a preceding check.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Underlying: err, Context: make(map[string]any)}
}

// WithContext attaches a key-value pair for diagnostics.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithRetryable marks the error as retryable by its policy owner.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Underlying }

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
	} else {
		return false
	}
	return e.Kind == kind
}

// KindOf extracts the Kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	e, ok := err.(*Error)
	if !ok {
		return ""
	}
	return e.Kind
}
