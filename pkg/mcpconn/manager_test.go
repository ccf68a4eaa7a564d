package mcpconn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	agentbus "github.com/driftloop/agentcore/pkg/bus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu        sync.Mutex
	healthy   bool
	closed    bool
	listCalls int
}

func (s *fakeSession) Initialize(ctx context.Context) error { return nil }

func (s *fakeSession) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if !s.healthy {
		return nil, errors.New("probe failed")
	}
	return nil, nil
}

func (s *fakeSession) ListPrompts(ctx context.Context) ([]Prompt, error)     { return nil, nil }
func (s *fakeSession) ListResources(ctx context.Context) ([]Resource, error) { return nil, nil }
func (s *fakeSession) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	return "", nil
}
func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) setHealthy(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = v
}

func collectEvents(b *agentbus.InProc) *[]agentbus.Event {
	events := &[]agentbus.Event{}
	b.Subscribe(agentbus.KindConnectionStatusChanged, func(e agentbus.Event) error {
		*events = append(*events, e)
		return nil
	})
	b.Subscribe(agentbus.KindReconnectProgress, func(e agentbus.Event) error {
		*events = append(*events, e)
		return nil
	})
	return events
}

func waitForState(t *testing.T, m *Manager, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, last state %s", want, m.State())
}

func TestConnectTransitionsToConnected(t *testing.T) {
	session := &fakeSession{healthy: true}
	connectFn := func(ctx context.Context) (Session, error) { return session, nil }

	b := agentbus.NewInProc(zerolog.Nop())
	m := NewManager("test-server", connectFn, DefaultBackoff(), time.Hour, 5*time.Second, b, zerolog.Nop())

	m.Connect(context.Background())
	waitForState(t, m, StateConnected, time.Second)

	m.Disconnect()
	waitForState(t, m, StateDisconnected, time.Second)
	assert.True(t, session.closed)
}

func TestHealthCheckFailureTriggersReconnection(t *testing.T) {
	session := &fakeSession{healthy: true}
	attempts := 0
	connectFn := func(ctx context.Context) (Session, error) {
		attempts++
		return session, nil
	}

	b := agentbus.NewInProc(zerolog.Nop())
	events := collectEvents(b)

	cfg := Backoff{Base: 5 * time.Millisecond, Ceiling: 20 * time.Millisecond, JitterMin: 1, JitterMax: 1, MaxAttempts: 5}
	m := NewManager("flaky-server", connectFn, cfg, 10*time.Millisecond, 50*time.Millisecond, b, zerolog.Nop())

	m.Connect(context.Background())
	waitForState(t, m, StateConnected, time.Second)

	session.setHealthy(false)
	waitForState(t, m, StateReconnecting, time.Second)

	session.setHealthy(true)
	waitForState(t, m, StateConnected, time.Second)

	m.Disconnect()
	assert.GreaterOrEqual(t, attempts, 2)
	assert.NotEmpty(t, *events)
}

func TestRetryConnectionIgnoredOutsideErrorState(t *testing.T) {
	session := &fakeSession{healthy: true}
	connectFn := func(ctx context.Context) (Session, error) { return session, nil }

	b := agentbus.NewInProc(zerolog.Nop())
	m := NewManager("test-server", connectFn, DefaultBackoff(), time.Hour, 5*time.Second, b, zerolog.Nop())

	m.Connect(context.Background())
	waitForState(t, m, StateConnected, time.Second)

	m.RetryConnection(context.Background())
	// still connected; retry_connection from non-ERROR state is a no-op
	assert.Equal(t, StateConnected, m.State())

	m.Disconnect()
}

func TestReconnectReachesErrorAfterMaxAttempts(t *testing.T) {
	connectFn := func(ctx context.Context) (Session, error) {
		return nil, errors.New("always fails")
	}

	b := agentbus.NewInProc(zerolog.Nop())
	cfg := Backoff{Base: time.Millisecond, Ceiling: 2 * time.Millisecond, JitterMin: 1, JitterMax: 1, MaxAttempts: 2}
	m := NewManager("dead-server", connectFn, cfg, time.Hour, 5*time.Second, b, zerolog.Nop())

	m.Connect(context.Background())
	waitForState(t, m, StateError, time.Second)

	require.Equal(t, StateError, m.State())
}
