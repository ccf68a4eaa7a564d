package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftloop/agentcore/pkg/conversation"
	"github.com/driftloop/agentcore/pkg/stateprovider"
)

const legacySessionFileName = "session.json"

func sessionKey(id string) string { return "session:" + id }

// Manager owns a map of sessions with exactly one active at a time,
// grounded on original_source's session_manager.py SessionManager:
// creation/restore/switch/delete, auto-save on switch, legacy single-
// session-file migration, and a per-session summarization lock so two
// concurrent summarize calls for the same session never overlap.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	activeID string

	provider       stateprovider.Provider
	systemMessage  string
	model          string
	cachingEnabled bool
	summarizer     Summarizer

	reconcatGuardRatio float64

	summaryLocksMu sync.Mutex
	summaryLocks   map[string]*sync.Mutex

	log zerolog.Logger
}

// New builds a Manager. systemMessage/model/cachingEnabled seed every
// newly created session's Conversation. The duplicate-concatenation
// guard ratio defaults to reconcatGuardRatioDefault; override with
// SetReconcatGuardRatio to match config.SummarizationConfig.
func New(provider stateprovider.Provider, systemMessage, model string, cachingEnabled bool, summarizer Summarizer, log zerolog.Logger) *Manager {
	return &Manager{
		sessions:           make(map[string]*Session),
		provider:           provider,
		systemMessage:      systemMessage,
		model:              model,
		cachingEnabled:     cachingEnabled,
		summarizer:         summarizer,
		reconcatGuardRatio: reconcatGuardRatioDefault,
		summaryLocks:       make(map[string]*sync.Mutex),
		log:                log,
	}
}

// SetReconcatGuardRatio overrides the degenerate-summary duplicate-
// concatenation threshold (see reconcatGuardRatioDefault).
func (m *Manager) SetReconcatGuardRatio(ratio float64) {
	if ratio <= 1.0 {
		return
	}
	m.reconcatGuardRatio = ratio
}

// MigrateLegacySessionFile migrates a pre-multi-session "session.json"
// to the "default" session's canonical key, a no-op for any provider
// other than the file-backed one (matching original_source, which only
// performs this for its FileStateProvider).
func (m *Manager) MigrateLegacySessionFile(ctx context.Context) error {
	fp, ok := m.provider.(*stateprovider.File)
	if !ok {
		return nil
	}
	return fp.MigrateLegacyFile(ctx, legacySessionFileName, sessionKey(DefaultSessionID))
}

func (m *Manager) newConversation() *conversation.Conversation {
	return conversation.New(m.systemMessage, conversation.Config{CachingEnabled: m.cachingEnabled})
}

func (m *Manager) createSessionLocked(id, title string) *Session {
	s := NewSession(id, title, m.model, m.newConversation())
	m.sessions[id] = s
	if m.activeID == "" {
		m.activeID = id
	}
	return s
}

// CreateSession creates and registers a new session. Returns an error
// if id is already in use.
func (m *Manager) CreateSession(id, title string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return nil, fmt.Errorf("session: %q already exists", id)
	}
	s := m.createSessionLocked(id, title)
	m.log.Info().Str("session_id", id).Msg("created session")
	return s, nil
}

// GetOrCreateDefaultSession returns the in-memory default session,
// restoring it from storage if present, else creating it fresh.
func (m *Manager) GetOrCreateDefaultSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[DefaultSessionID]; ok {
		m.activeID = DefaultSessionID
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	key := sessionKey(DefaultSessionID)
	exists, err := m.provider.Exists(ctx, key)
	if err != nil {
		m.log.Error().Err(err).Msg("failed to check default session existence")
	} else if exists {
		s, err := m.loadSession(ctx, key)
		if err != nil {
			m.log.Error().Err(err).Msg("failed to restore default session, creating new one instead")
		} else {
			m.mu.Lock()
			m.sessions[DefaultSessionID] = s
			m.activeID = DefaultSessionID
			m.mu.Unlock()
			return s, nil
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createSessionLocked(DefaultSessionID, "Default Session"), nil
}

func (m *Manager) loadSession(ctx context.Context, key string) (*Session, error) {
	data, err := m.provider.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("session: load %q: %w", key, err)
	}
	if data == nil {
		return nil, fmt.Errorf("session: not found: %q", key)
	}
	return FromDict(data)
}

// SaveSession persists one session. Errors are logged, not propagated,
// matching spec.md §4.8's fire-and-forget persistence policy; callers
// that need to know the outcome should use SaveSessionSync.
func (m *Manager) SaveSession(ctx context.Context, s *Session) {
	go func() {
		if err := m.SaveSessionSync(ctx, s); err != nil {
			m.log.Error().Err(err).Str("session_id", s.ID).Msg("failed to save session")
		}
	}()
}

// SaveSessionSync persists one session and returns any error.
func (m *Manager) SaveSessionSync(ctx context.Context, s *Session) error {
	data, err := s.ToDict()
	if err != nil {
		return fmt.Errorf("session: marshal %q: %w", s.ID, err)
	}
	if err := m.provider.Save(ctx, sessionKey(s.ID), data); err != nil {
		return fmt.Errorf("session: save %q: %w", s.ID, err)
	}
	return nil
}

// SaveActiveSession saves the currently active session, a no-op if
// there is none.
func (m *Manager) SaveActiveSession(ctx context.Context) {
	s := m.GetActiveSession()
	if s == nil {
		return
	}
	m.SaveSession(ctx, s)
}

// GetActiveSession returns the active session, or nil.
func (m *Manager) GetActiveSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeID == "" {
		return nil
	}
	return m.sessions[m.activeID]
}

// SwitchSession auto-saves the current active session, then makes
// sessionID active.
func (m *Manager) SwitchSession(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	target, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("session: %q does not exist", sessionID)
	}

	current := m.activeID
	var currentSession *Session
	if current != "" {
		currentSession = m.sessions[current]
	}
	m.activeID = sessionID
	m.mu.Unlock()

	if currentSession != nil {
		m.SaveSession(ctx, currentSession)
	}
	return target, nil
}

// DeleteSession removes a session from memory and storage. If it was
// active, another session (preferring none in particular) becomes
// active if any remain.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	if _, ok := m.sessions[sessionID]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("session: %q does not exist", sessionID)
	}
	delete(m.sessions, sessionID)
	wasActive := m.activeID == sessionID
	if wasActive {
		m.activeID = ""
		for id := range m.sessions {
			m.activeID = id
			break
		}
	}
	m.mu.Unlock()

	if err := m.provider.Delete(ctx, sessionKey(sessionID)); err != nil {
		m.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to delete session from storage")
	}
	return nil
}

// ListSessions returns every in-memory session's Info.
func (m *Manager) ListSessions() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].LastActiveAt.After(infos[j].LastActiveAt) })
	return infos
}

// SaveAllSessions saves every in-memory session, pruning trackers older
// than 30 days first (matching original_source's save_all_sessions).
func (m *Manager) SaveAllSessions(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		if n := s.CleanupOldTrackers(30 * 24 * time.Hour); n > 0 {
			m.log.Info().Str("session_id", s.ID).Int("count", n).Msg("cleaned up old trackers")
		}
	}
	for _, s := range sessions {
		m.SaveSession(ctx, s)
	}
}

// RestoreAllSessions loads every session found in storage, preferring
// the default session as active if present.
func (m *Manager) RestoreAllSessions(ctx context.Context) error {
	keys, err := m.provider.ListKeys(ctx, "session:")
	if err != nil {
		return fmt.Errorf("session: list_keys: %w", err)
	}

	for _, key := range keys {
		s, err := m.loadSession(ctx, key)
		if err != nil {
			m.log.Error().Err(err).Str("key", key).Msg("failed to restore session")
			continue
		}
		m.mu.Lock()
		m.sessions[s.ID] = s
		m.mu.Unlock()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[DefaultSessionID]; ok {
		m.activeID = DefaultSessionID
	} else {
		for id := range m.sessions {
			m.activeID = id
			break
		}
	}
	return nil
}

func (m *Manager) summaryLock(sessionID string) *sync.Mutex {
	m.summaryLocksMu.Lock()
	defer m.summaryLocksMu.Unlock()
	lock, ok := m.summaryLocks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.summaryLocks[sessionID] = lock
	}
	return lock
}

// reconcatGuardRatioDefault is the degenerate-output threshold from
// spec.md §9: a freshly computed summary that starts with the existing
// summary and is at least this much longer is treated as a duplicate
// concatenation and rejected. Exactly 1.5x rejects (inclusive, per
// SPEC_FULL.md's Open Question decision). Matches
// config.SummarizationConfig.ReconcatGuardRatio's default.
const reconcatGuardRatioDefault = 1.5

// UpdateSessionSummary generates an incremental summary for s and
// persists it to the session if it actually changed or covers more
// messages than before. Idempotent and safe to call concurrently for
// different sessions; calls for the same session serialize on a
// per-session lock.
func (m *Manager) UpdateSessionSummary(ctx context.Context, s *Session, force bool) (SummaryResult, error) {
	lock := m.summaryLock(s.ID)
	lock.Lock()
	defer lock.Unlock()

	startIndex := s.SummaryLastMessageIndex
	if force {
		startIndex = 0
	}
	if startIndex < 0 {
		startIndex = 0
	}

	result, err := m.summarizer.Summarize(ctx, SummarizeRequest{
		Messages:        s.Conversation.Messages,
		ExistingSummary: s.ConversationSummary,
		StartIndex:      startIndex,
		Force:           force,
		Accum:           s.Costs,
	})
	if err != nil {
		return SummaryResult{}, err
	}

	if result.Skipped || result.Summary == "" {
		if result.MessagesSummarized > s.SummaryLastMessageIndex {
			s.UpdateConversationSummary(s.ConversationSummary, result.MessagesSummarized)
		}
		return result, nil
	}

	existing := strings.TrimSpace(s.ConversationSummary)
	fresh := strings.TrimSpace(result.Summary)

	if fresh == existing && result.MessagesSummarized <= s.SummaryLastMessageIndex {
		return result, nil
	}

	if existing != "" && strings.HasPrefix(fresh, existing) {
		if float64(len(fresh)) >= float64(len(existing))*m.reconcatGuardRatio {
			m.log.Warn().Str("session_id", s.ID).Msg("rejected summary: duplicate concatenation detected")
			return result, nil
		}
	}

	s.UpdateConversationSummary(result.Summary, result.MessagesSummarized)
	return result, nil
}

// UpdateActiveSessionSummary updates the summary of the currently
// active session, if any.
func (m *Manager) UpdateActiveSessionSummary(ctx context.Context, force bool) (SummaryResult, error) {
	s := m.GetActiveSession()
	if s == nil {
		return SummaryResult{Skipped: true}, nil
	}
	return m.UpdateSessionSummary(ctx, s, force)
}
