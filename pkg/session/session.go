// Package session implements the Session aggregate and Session Manager
// from spec.md §3/§4.8 (C8): a session owns exactly one Conversation and
// a map of Progress Trackers keyed by query id, tracks the three cost
// buckets, and carries an incremental conversation summary.
//
// Grounded on the teacher's now-removed pkg/session/identifier.go (the
// ulid-suffixed ID idiom, reused in GenerateSessionID) and pkg/checkpoint
// (the save/restore/prune shape), with the multi-session map, active-id
// tracking, legacy single-session-file migration, and per-session
// summarization lock ported from original_source's session_manager.py
// (SessionManager.__init__ / get_or_create_default_session /
// switch_session / update_session_summary).
package session

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/driftloop/agentcore/pkg/conversation"
	"github.com/driftloop/agentcore/pkg/cost"
	"github.com/driftloop/agentcore/pkg/tracker"
)

// DefaultSessionID is the session id used for single-session (legacy)
// usage and as the migration target for a pre-multi-session store.
const DefaultSessionID = "default"

var idEntropy = ulid.Monotonic(rand.Reader, 0)

// GenerateSessionID returns a unique, ulid-suffixed id for a new
// session, grounded on the teacher's session.GenerateSessionID idiom.
func GenerateSessionID(base string) string {
	base = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(base), " ", "-"))
	if base == "" {
		base = "session"
	}
	return fmt.Sprintf("%s-%s", base, strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), idEntropy).String()))
}

// Session is spec.md §3's Session aggregate. A Session exclusively owns
// its Conversation and its Trackers; the Reasoning Scheduler only
// borrows references to them during a single run (spec.md §3
// "Ownership").
type Session struct {
	mu sync.Mutex

	ID    string
	Title string
	Model string

	Conversation *conversation.Conversation
	Trackers     map[string]*tracker.Tracker

	Costs *cost.Accumulator

	ConversationSummary     string
	SummaryLastMessageIndex int

	CreatedAt    time.Time
	LastActiveAt time.Time
}

// NewSession creates a fresh session around an existing Conversation
// (the Manager is responsible for constructing the Conversation with
// the right system prompt/config before calling NewSession).
func NewSession(id, title, model string, conv *conversation.Conversation) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Title:        title,
		Model:        model,
		Conversation: conv,
		Trackers:     make(map[string]*tracker.Tracker),
		Costs:        &cost.Accumulator{},
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Touch updates LastActiveAt, called on every interaction.
func (s *Session) Touch() {
	s.mu.Lock()
	s.LastActiveAt = time.Now()
	s.mu.Unlock()
}

// AttachTracker attaches a Tracker under queryID. Per spec.md §3
// "Lifecycle", a tracker is created at the start of each run and
// attached to the session only at run completion.
func (s *Session) AttachTracker(queryID string, tr *tracker.Tracker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Trackers[queryID] = tr
	s.LastActiveAt = time.Now()
}

// MessageCount returns the number of messages in the session's
// conversation.
func (s *Session) MessageCount() int {
	return len(s.Conversation.Messages)
}

// ClearHistory empties the conversation log, preserving the system
// prompt (spec.md §3 "clear_history").
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Conversation.Clear()
}

// UpdateConversationSummary records a freshly computed summary and the
// high-water mark of messages it covers.
func (s *Session) UpdateConversationSummary(summary string, lastMessageIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ConversationSummary = summary
	s.SummaryLastMessageIndex = lastMessageIndex
}

// CleanupOldTrackers removes trackers whose most recent attempt started
// more than maxAge ago, returning the count removed. Grounded on the
// teacher's checkpoint.Store.Prune (age-bounded retention), generalized
// from a keep-N-most-recent policy to an age cutoff since trackers,
// unlike checkpoints, have no natural ordinal rank.
func (s *Session) CleanupOldTrackers(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, tr := range s.Trackers {
		if trackerIsOlderThan(tr, cutoff) {
			delete(s.Trackers, id)
			removed++
		}
	}
	return removed
}

func trackerIsOlderThan(tr *tracker.Tracker, cutoff time.Time) bool {
	if tr == nil {
		return true
	}
	last := tr.CreatedAt
	for _, a := range tr.Attempts {
		if a.StartedAt.After(last) {
			last = a.StartedAt
		}
	}
	return last.Before(cutoff)
}

// Info is the read-only summary returned by Manager.ListSessions.
type Info struct {
	ID           string
	Title        string
	MessageCount int
	CreatedAt    time.Time
	LastActiveAt time.Time
}

func (s *Session) info() Info {
	return Info{
		ID:           s.ID,
		Title:        s.Title,
		MessageCount: s.MessageCount(),
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
	}
}
