// Package logging configures the structured, leveled logger threaded
// through every component (SPEC_FULL.md §3 Ambient Stack). Built on
// github.com/rs/zerolog, replacing the teacher's hand-rolled JSONL
// logger; the teacher's Category taxonomy survives as a reusable set of
// structured field names rather than a parallel log sink.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Category names the subsystem emitting a log line. Attach with
// WithCategory rather than setting the field by hand.
type Category string

const (
	CategoryConversation Category = "conversation"
	CategoryModel        Category = "model"
	CategoryTool         Category = "tool"
	CategoryMCP          Category = "mcp"
	CategoryTracker      Category = "tracker"
	CategoryScheduler    Category = "scheduler"
	CategoryCost         Category = "cost"
	CategorySession      Category = "session"
	CategoryBus          Category = "bus"
)

// Options configures the root logger.
type Options struct {
	Level  zerolog.Level
	Pretty bool
	Output io.Writer
}

// New builds the root zerolog.Logger for the process. Every component
// should derive a child logger from it via WithCategory rather than
// constructing its own.
func New(opts Options) zerolog.Logger {
	var out io.Writer = opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339

	return zerolog.New(out).
		Level(opts.Level).
		With().
		Timestamp().
		Logger()
}

// WithCategory derives a child logger tagged with the given subsystem
// category and, when non-empty, a session ID field.
func WithCategory(base zerolog.Logger, category Category, sessionID string) zerolog.Logger {
	ctx := base.With().Str("category", string(category))
	if sessionID != "" {
		ctx = ctx.Str("session_id", sessionID)
	}
	return ctx.Logger()
}
