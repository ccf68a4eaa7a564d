package statesvc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftloop/agentcore/pkg/bus"
	"github.com/driftloop/agentcore/pkg/stateprovider"
)

func stateKey(sessionID string) string { return "session_state_" + sessionID }

// Service coordinates updates to one session's SessionState from agent
// loop events, publishes bus.StateChanged notifications, and persists
// asynchronously. Grounded on original_source's StateUpdateService.
type Service struct {
	mu    sync.Mutex
	state *SessionState

	eventBus  bus.Bus
	provider  stateprovider.Provider
	sessionID string
	extractor Extractor

	log zerolog.Logger
}

// New builds a Service around a fresh SessionState. extractor may be
// nil to disable LLM-powered extraction entirely (matching
// original_source's state_extractor=None default).
func New(eventBus bus.Bus, provider stateprovider.Provider, sessionID string, extractor Extractor, log zerolog.Logger) *Service {
	return &Service{
		state:     NewSessionState(),
		eventBus:  eventBus,
		provider:  provider,
		sessionID: sessionID,
		extractor: extractor,
		log:       log,
	}
}

// State returns the current SessionState. Callers must not mutate the
// returned value directly; use the Service's methods.
func (s *Service) State() *SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnExchangeComplete records one user/assistant exchange, optionally
// extracting profile/fact/intent signal from it, and persists the
// result asynchronously. Errors are logged and never propagated —
// state-tracking failures must never interrupt a conversation.
func (s *Service) OnExchangeComplete(ctx context.Context, userMsg, assistantMsg string, metadata map[string]any) {
	s.mu.Lock()
	s.state.InteractionContext.AddExchange(userMsg, assistantMsg)
	s.state.StateMetadata.MessageCount += 2
	if metadata != nil {
		s.state.StateMetadata.RecordInteraction(metadata)
	}
	s.mu.Unlock()

	if s.extractor != nil {
		s.extractFromExchange(ctx, userMsg, assistantMsg)
	}

	s.touchAndPublish(ctx, "interaction_context", "add", map[string]any{"exchange": "complete"})
}

// OnToolExecuted records one tool invocation's outcome.
func (s *Service) OnToolExecuted(ctx context.Context, toolName string, success bool, executionTime time.Duration) {
	s.mu.Lock()
	s.state.StateMetadata.RecordToolCall(success, executionTime)
	s.mu.Unlock()

	s.touchAndPublish(ctx, "metadata", "update", map[string]any{"tool_name": toolName, "success": success})
}

// OnReasoningComplete extracts confirmed facts from a completed
// tracker's insights into the knowledge base. tracker's confirmed
// facts and its query ID are passed explicitly rather than via the
// tracker.Tracker type to avoid a statesvc->tracker import for what is
// otherwise a two-field read.
func (s *Service) OnReasoningComplete(ctx context.Context, confirmedFacts []string, researchID string) {
	if len(confirmedFacts) == 0 {
		return
	}

	s.mu.Lock()
	for _, content := range confirmedFacts {
		s.state.KnowledgeBase.AddFact(content, "research", 0.9, researchID)
	}
	s.mu.Unlock()

	s.touchAndPublish(ctx, "knowledge_base", "add", map[string]any{"fact_count": len(confirmedFacts)})
}

// UpdateUserProfile merges externally-sourced profile fields (e.g. from
// an explicit user command) into the session's UserProfile.
func (s *Service) UpdateUserProfile(ctx context.Context, fields map[string]any) {
	if len(fields) == 0 {
		return
	}

	s.mu.Lock()
	s.state.UserProfile.UpdateFromFields(fields)
	s.mu.Unlock()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	s.touchAndPublish(ctx, "user_profile", "update", map[string]any{"fields": strings.Join(keys, ", ")})
}

// AddKnowledgeFact adds one fact from an arbitrary source (conversation,
// research, tool, file).
func (s *Service) AddKnowledgeFact(ctx context.Context, content, source string, confidence float64) {
	s.mu.Lock()
	s.state.KnowledgeBase.AddFact(content, source, confidence, "")
	s.mu.Unlock()

	s.touchAndPublish(ctx, "knowledge_base", "add", map[string]any{"source": source})
}

func (s *Service) extractFromExchange(ctx context.Context, userMsg, assistantMsg string) {
	if userInfo, err := s.extractor.ExtractUserInfo(ctx, userMsg, assistantMsg); err != nil {
		s.log.Error().Err(err).Msg("error extracting user info")
	} else if len(userInfo) > 0 {
		s.mu.Lock()
		s.state.UserProfile.UpdateFromFields(userInfo)
		s.mu.Unlock()
	}

	if facts, err := s.extractor.ExtractFacts(ctx, userMsg, assistantMsg); err != nil {
		s.log.Error().Err(err).Msg("error extracting facts")
	} else if len(facts) > 0 {
		s.mu.Lock()
		for _, fact := range facts {
			s.state.KnowledgeBase.AddFact(fact, "conversation", 0.8, "")
		}
		s.mu.Unlock()
	}

	intent, err := s.extractor.ClassifyIntent(ctx, userMsg)
	if err != nil {
		s.log.Error().Err(err).Msg("error classifying intent")
		return
	}
	s.mu.Lock()
	s.state.InteractionContext.UpdateIntent(intent)
	s.mu.Unlock()
}

func (s *Service) touchAndPublish(ctx context.Context, component, changeType string, details map[string]any) {
	s.mu.Lock()
	s.state.LastUpdated = time.Now()
	s.mu.Unlock()

	if s.eventBus != nil {
		s.eventBus.Publish(bus.StateChanged{
			SessionID:  s.sessionID,
			Component:  component,
			ChangeType: changeType,
			Details:    details,
		})
	}

	go s.persist(ctx)
}

func (s *Service) persist(ctx context.Context) {
	s.mu.Lock()
	data, err := s.state.ToDict()
	s.mu.Unlock()
	if err != nil {
		s.log.Error().Err(err).Str("session_id", s.sessionID).Msg("failed to marshal session state")
		return
	}

	if err := s.provider.Save(ctx, stateKey(s.sessionID), data); err != nil {
		s.log.Error().Err(err).Str("session_id", s.sessionID).Msg("failed to persist session state")
	}
}

// LoadState restores state from the provider, replacing the current
// in-memory SessionState wholesale. Returns false if nothing was
// persisted for this session yet.
func (s *Service) LoadState(ctx context.Context) (bool, error) {
	data, err := s.provider.Load(ctx, stateKey(s.sessionID))
	if err != nil {
		return false, fmt.Errorf("statesvc: load %q: %w", s.sessionID, err)
	}
	if data == nil {
		return false, nil
	}

	restored, err := FromDict(data)
	if err != nil {
		return false, fmt.Errorf("statesvc: unmarshal %q: %w", s.sessionID, err)
	}

	s.mu.Lock()
	s.state = restored
	s.mu.Unlock()
	return true, nil
}
