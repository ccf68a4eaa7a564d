package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/driftloop/agentcore/pkg/conversation"
	"github.com/driftloop/agentcore/pkg/tracker"
)

// snapshot is the canonical on-disk shape for a Session (spec.md §6
// Persistence format): JSON, ISO-8601 timestamps, cost totals flattened
// out of the mutex-guarded Accumulator.
type snapshot struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Model        string          `json:"model"`
	Conversation json.RawMessage `json:"conversation"`
	Trackers     map[string]json.RawMessage `json:"trackers"`

	ReasoningCost     float64 `json:"reasoning_cost"`
	ConversationCost  float64 `json:"conversation_cost"`
	SummarizationCost float64 `json:"summarization_cost"`

	ConversationSummary     string `json:"conversation_summary"`
	SummaryLastMessageIndex int    `json:"summary_last_message_index"`

	CreatedAt    string `json:"created_at"`
	LastActiveAt string `json:"last_active_at"`
}

const isoSeconds = "2006-01-02T15:04:05Z07:00"

// ToDict serializes the session to its canonical persisted form.
func (s *Session) ToDict() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	convData, err := s.Conversation.ToDict()
	if err != nil {
		return nil, fmt.Errorf("session: marshal conversation: %w", err)
	}

	trackers := make(map[string]json.RawMessage, len(s.Trackers))
	for id, tr := range s.Trackers {
		data, err := tr.ToDict()
		if err != nil {
			return nil, fmt.Errorf("session: marshal tracker %q: %w", id, err)
		}
		trackers[id] = data
	}

	reasoning, convCost, summarization, _ := s.Costs.Totals()

	snap := snapshot{
		ID:                      s.ID,
		Title:                   s.Title,
		Model:                   s.Model,
		Conversation:            convData,
		Trackers:                trackers,
		ReasoningCost:           reasoning,
		ConversationCost:        convCost,
		SummarizationCost:       summarization,
		ConversationSummary:     s.ConversationSummary,
		SummaryLastMessageIndex: s.SummaryLastMessageIndex,
		CreatedAt:               s.CreatedAt.Format(isoSeconds),
		LastActiveAt:            s.LastActiveAt.Format(isoSeconds),
	}
	return json.MarshalIndent(snap, "", "  ")
}

// FromDict is ToDict's inverse.
func FromDict(data []byte) (*Session, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("session: unmarshal snapshot: %w", err)
	}

	conv, err := conversation.FromDict(snap.Conversation)
	if err != nil {
		return nil, fmt.Errorf("session: unmarshal conversation: %w", err)
	}

	s := NewSession(snap.ID, snap.Title, snap.Model, conv)

	for id, raw := range snap.Trackers {
		tr, err := tracker.FromDict(raw)
		if err != nil {
			return nil, fmt.Errorf("session: unmarshal tracker %q: %w", id, err)
		}
		s.Trackers[id] = tr
	}

	s.Costs.AddReasoningCost(snap.ReasoningCost)
	s.Costs.AddConversationCost(snap.ConversationCost)
	s.Costs.AddSummarizationCost(snap.SummarizationCost)

	s.ConversationSummary = snap.ConversationSummary
	s.SummaryLastMessageIndex = snap.SummaryLastMessageIndex

	if t, err := time.Parse(isoSeconds, snap.CreatedAt); err == nil {
		s.CreatedAt = t
	}
	if t, err := time.Parse(isoSeconds, snap.LastActiveAt); err == nil {
		s.LastActiveAt = t
	} else {
		s.LastActiveAt = s.CreatedAt
	}

	return s, nil
}
