package statesvc

import (
	"encoding/json"
	"fmt"
	"time"
)

const isoSeconds = "2006-01-02T15:04:05Z07:00"

type snapshot struct {
	UserProfile        UserProfile         `json:"user_profile"`
	KnowledgeBase       KnowledgeBase       `json:"knowledge_base"`
	InteractionContext  interactionSnapshot `json:"interaction_context"`
	StateMetadata       StateMetadata       `json:"state_metadata"`
	CreatedAt           string              `json:"created_at"`
	LastUpdated         string              `json:"last_updated"`
}

type interactionSnapshot struct {
	Exchanges    []Exchange            `json:"exchanges"`
	LatestIntent *IntentClassification `json:"latest_intent,omitempty"`
	MaxExchanges int                   `json:"max_exchanges,omitempty"`
}

// ToDict serializes the SessionState to its canonical persisted form.
func (s *SessionState) ToDict() ([]byte, error) {
	maxEx := s.InteractionContext.maxExchanges
	if maxEx == 0 {
		maxEx = defaultMaxExchanges
	}
	snap := snapshot{
		UserProfile:   s.UserProfile,
		KnowledgeBase: s.KnowledgeBase,
		InteractionContext: interactionSnapshot{
			Exchanges:    s.InteractionContext.Exchanges,
			LatestIntent: s.InteractionContext.LatestIntent,
			MaxExchanges: maxEx,
		},
		StateMetadata: s.StateMetadata,
		CreatedAt:     s.CreatedAt.Format(isoSeconds),
		LastUpdated:   s.LastUpdated.Format(isoSeconds),
	}
	return json.MarshalIndent(snap, "", "  ")
}

// FromDict is ToDict's inverse.
func FromDict(data []byte) (*SessionState, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("statesvc: unmarshal snapshot: %w", err)
	}

	s := &SessionState{
		UserProfile:   snap.UserProfile,
		KnowledgeBase: snap.KnowledgeBase,
		StateMetadata: snap.StateMetadata,
		InteractionContext: InteractionContext{
			Exchanges:    snap.InteractionContext.Exchanges,
			LatestIntent: snap.InteractionContext.LatestIntent,
			maxExchanges: snap.InteractionContext.MaxExchanges,
		},
	}

	if t, err := time.Parse(isoSeconds, snap.CreatedAt); err == nil {
		s.CreatedAt = t
	} else {
		s.CreatedAt = time.Now()
	}
	if t, err := time.Parse(isoSeconds, snap.LastUpdated); err == nil {
		s.LastUpdated = t
	} else {
		s.LastUpdated = s.CreatedAt
	}

	return s, nil
}
