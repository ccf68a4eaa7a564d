package mcpconn

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/driftloop/agentcore/pkg/bus"
	"github.com/rs/zerolog"
)

// Manager owns one remote MCP server's connection lifecycle: the state
// machine, the background health checker, and exponential-backoff
// reconnection (spec.md §4.3). One Manager exists per server; the
// process-wide MCP host exposes managers by name (spec.md §3
// "Ownership").
type Manager struct {
	name          string
	connect       ConnectFunc
	backoffCfg    Backoff
	checkInterval time.Duration
	healthTimeout time.Duration
	bus           bus.Bus
	log           zerolog.Logger

	mu      sync.Mutex
	state   State
	session Session

	stopCh  chan struct{}
	stopped bool
}

// NewManager builds a Manager in the DISCONNECTED state.
func NewManager(name string, connect ConnectFunc, backoffCfg Backoff, checkInterval, healthTimeout time.Duration, eventBus bus.Bus, log zerolog.Logger) *Manager {
	return &Manager{
		name:          name,
		connect:       connect,
		backoffCfg:    backoffCfg,
		checkInterval: checkInterval,
		healthTimeout: healthTimeout,
		bus:           eventBus,
		log:           log.With().Str("mcp_server", name).Logger(),
		state:         StateDisconnected,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect starts the connection-maintenance loop: CONNECTING, then
// CONNECTED on success or RECONNECTING on failure. It is a no-op if
// already connecting, connected, or reconnecting.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.stopCh = make(chan struct{})
	m.stopped = false
	m.mu.Unlock()

	go m.run(ctx)
}

// Disconnect cancels any background tasks and transitions to
// DISCONNECTED from any state, without firing further reconnections.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	stopCh := m.stopCh
	session := m.session
	m.session = nil
	m.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}
	if session != nil {
		_ = session.Close()
	}
	m.setState(StateDisconnected)
}

// RetryConnection is permitted only from ERROR; it restarts the
// connection-maintenance loop from scratch. Called from any other
// state, it is a no-op and logs a warning.
func (m *Manager) RetryConnection(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateError {
		m.mu.Unlock()
		m.log.Warn().Str("state", string(m.state)).Msg("retry_connection ignored outside ERROR state")
		return
	}
	m.state = StateDisconnected
	m.mu.Unlock()

	m.Connect(ctx)
}

func (m *Manager) run(ctx context.Context) {
	m.setState(StateConnecting)
	session, ok := m.connectOnce(ctx)
	if !ok {
		m.setState(StateReconnecting)
		session, ok = m.reconnect(ctx)
		if !ok {
			return // reconnect already set the terminal state
		}
	}

	for {
		m.mu.Lock()
		m.session = session
		m.mu.Unlock()
		m.setState(StateConnected)

		if !m.monitorHealth(ctx, session) {
			return // stop requested; state already DISCONNECTED
		}

		_ = session.Close()
		m.setState(StateReconnecting)

		var ok bool
		session, ok = m.reconnect(ctx)
		if !ok {
			return
		}
	}
}

func (m *Manager) connectOnce(ctx context.Context) (Session, bool) {
	session, err := m.connect(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("mcp connect attempt failed")
		return nil, false
	}
	if err := session.Initialize(ctx); err != nil {
		m.log.Warn().Err(err).Msg("mcp session initialize failed")
		return nil, false
	}
	return session, true
}

// reconnect runs the spec.md §4.3 backoff sequence via cenkalti's
// BackOff state machine: for attempt n, publish ReconnectProgress,
// wait NextBackOff(), then try to connect again. Returns (session,
// true) on success, or (nil, false) after the retry budget is
// exhausted (state becomes ERROR, NextBackOff returns backoff.Stop) or
// a stop was requested (state becomes DISCONNECTED).
func (m *Manager) reconnect(ctx context.Context) (Session, bool) {
	sb := newSpecBackOff(m.backoffCfg)
	for {
		delay := sb.NextBackOff()
		if delay == backoff.Stop {
			m.setState(StateError)
			return nil, false
		}

		m.publish(bus.ReconnectProgress{
			Server:                m.name,
			Attempts:              sb.Attempt(),
			MaxAttempts:           m.backoffCfg.MaxAttempts,
			NextRetryDelaySeconds: delay.Seconds(),
		})

		if m.stoppedDuring(ctx, delay) {
			m.setState(StateDisconnected)
			return nil, false
		}

		m.setState(StateConnecting)
		if session, ok := m.connectOnce(ctx); ok {
			return session, true
		}
		m.setState(StateReconnecting)
	}
}

// stoppedDuring blocks for delay (or until ctx/stop fires) and reports
// whether a stop was observed.
func (m *Manager) stoppedDuring(ctx context.Context, delay time.Duration) bool {
	m.mu.Lock()
	stopCh := m.stopCh
	m.mu.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return false
	case <-stopCh:
		return true
	case <-ctx.Done():
		return true
	}
}

// monitorHealth probes the session every checkInterval until a probe
// fails (returns true, connection lost) or a stop is requested
// (returns false).
func (m *Manager) monitorHealth(ctx context.Context, session Session) bool {
	m.mu.Lock()
	stopCh := m.stopCh
	m.mu.Unlock()

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			m.setState(StateDisconnected)
			return false
		case <-ctx.Done():
			m.setState(StateDisconnected)
			return false
		case <-ticker.C:
			if !m.probe(ctx, session) {
				return true
			}
		}
	}
}

func (m *Manager) probe(ctx context.Context, session Session) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.healthTimeout)
	defer cancel()

	if _, err := session.ListTools(probeCtx); err != nil {
		m.log.Warn().Err(err).Msg("mcp health check failed")
		return false
	}
	return true
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	m.publish(bus.ConnectionStatusChanged{Server: m.name, Status: string(state)})
}

func (m *Manager) publish(event bus.Event) {
	if m.bus != nil {
		m.bus.Publish(event)
	}
}

// ListTools and CallTool delegate to the current session. Callers must check State() == StateConnected first;
// a call while disconnected returns ErrNotConnected.
func (m *Manager) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	session, err := m.currentSession()
	if err != nil {
		return nil, err
	}
	return session.ListTools(ctx)
}

func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	session, err := m.currentSession()
	if err != nil {
		return "", err
	}
	return session.CallTool(ctx, name, args)
}

func (m *Manager) currentSession() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, ErrNotConnected
	}
	return m.session, nil
}
