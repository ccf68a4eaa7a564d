// Package bus implements the synchronous Event Bus from spec.md §4.8
// (part of C8 Session & State Services). Ported from the teacher's
// pkg/bus, which modeled an async NATS-backed pub/sub/request/queue
// hub; that surface doesn't fit here, since spec.md requires
// subscribers to run on the publisher's own goroutine, in registration
// order, with one subscriber's error never blocking the rest. The
// teacher's error-variable shape and its in-memory/remote
// implementation split both survive; the subject-string+[]byte payload
// is replaced with a closed set of typed Event values.
package bus

// Kind identifies one of the bus's fixed event types.
type Kind string

const (
	KindConnectionStatusChanged Kind = "connection_status_changed"
	KindReconnectProgress       Kind = "reconnect_progress"
	KindArtifactsFetched        Kind = "artifacts_fetched"
	KindStateChanged            Kind = "state_changed"
)

// Event is implemented by every payload the bus carries. Payloads are
// immutable once published; subscribers must not mutate them.
type Event interface {
	Kind() Kind
}

// ConnectionStatusChanged reports an MCP connection's state transition (C3).
type ConnectionStatusChanged struct {
	Server string
	Status string
}

func (ConnectionStatusChanged) Kind() Kind { return KindConnectionStatusChanged }

// ReconnectProgress reports one reconnection wait (C3).
type ReconnectProgress struct {
	Server          string
	Attempts        int
	MaxAttempts     int
	NextRetryDelaySeconds float64
}

func (ReconnectProgress) Kind() Kind { return KindReconnectProgress }

// ArtifactsFetched reports a successful MCP resource refresh (C3).
type ArtifactsFetched struct {
	Server  string
	Changed bool
}

func (ArtifactsFetched) Kind() Kind { return KindArtifactsFetched }

// StateChanged reports a Session sub-aggregate mutation (C8 State
// Update Service).
type StateChanged struct {
	SessionID  string
	Component  string
	ChangeType string
	Details    map[string]any
}

func (StateChanged) Kind() Kind { return KindStateChanged }
