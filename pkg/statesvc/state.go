// Package statesvc implements the C8 State Update Service and State
// Extractor (spec.md §4.8, SPEC_FULL.md §7): a per-session knowledge
// store fed incrementally from conversation exchanges, tool executions,
// and reasoning runs, plus an optional LLM-powered extractor that turns
// raw exchange text into structured user-profile fields, facts, and an
// intent classification.
//
// Grounded on original_source's nxs.application.{state_update_service,
// state_extractor} and their SessionState/UserProfile/KnowledgeBase/
// InteractionContext/StateMetadata collaborators (not directly present
// in the retrieval pack as a standalone session_state.py, so their shape
// is reconstructed here from state_update_service.py's call sites).
package statesvc

import "time"

// Intent classifies a user message. SPEC_FULL.md's enum deliberately
// diverges from original_source's five-way question/command/research/
// chat/clarification split.
type Intent string

const (
	IntentQuestion  Intent = "question"
	IntentTask      Intent = "task"
	IntentFeedback  Intent = "feedback"
	IntentSmalltalk Intent = "smalltalk"
)

// IntentClassification is one classify_intent result.
type IntentClassification struct {
	Type       Intent         `json:"type"`
	Confidence float64        `json:"confidence"`
	Details    map[string]any `json:"details,omitempty"`
}

// UserProfile accumulates facts about the user across a session,
// updated incrementally as fields are mentioned; never overwritten with
// empty values.
type UserProfile struct {
	Name                string   `json:"name,omitempty"`
	Age                 int      `json:"age,omitempty"`
	Location            string   `json:"location,omitempty"`
	Occupation          string   `json:"occupation,omitempty"`
	ExpertiseLevel      string   `json:"expertise_level,omitempty"`
	ProgrammingLanguages []string `json:"programming_languages,omitempty"`
	Frameworks          []string `json:"frameworks,omitempty"`
	Interests           []string `json:"interests,omitempty"`
	CurrentProject      string   `json:"current_project,omitempty"`
	ProjectTechStack    []string `json:"project_tech_stack,omitempty"`
	CommunicationStyle  string   `json:"communication_style,omitempty"`
}

// UpdateFromFields merges newly extracted fields into the profile.
// Scalar fields overwrite; slice fields append deduplicated entries.
// Absent/empty incoming values never clear an existing one.
func (p *UserProfile) UpdateFromFields(fields map[string]any) {
	if s, ok := stringField(fields, "name"); ok {
		p.Name = s
	}
	if n, ok := fields["age"].(float64); ok && n > 0 {
		p.Age = int(n)
	}
	if s, ok := stringField(fields, "location"); ok {
		p.Location = s
	}
	if s, ok := stringField(fields, "occupation"); ok {
		p.Occupation = s
	}
	if s, ok := stringField(fields, "expertise_level"); ok {
		p.ExpertiseLevel = s
	}
	if s, ok := stringField(fields, "current_project"); ok {
		p.CurrentProject = s
	}
	if s, ok := stringField(fields, "communication_style"); ok {
		p.CommunicationStyle = s
	}
	p.ProgrammingLanguages = mergeUnique(p.ProgrammingLanguages, stringSliceField(fields, "programming_languages"))
	p.Frameworks = mergeUnique(p.Frameworks, stringSliceField(fields, "frameworks"))
	p.Interests = mergeUnique(p.Interests, stringSliceField(fields, "interests"))
	p.ProjectTechStack = mergeUnique(p.ProjectTechStack, stringSliceField(fields, "project_tech_stack"))
}

func stringField(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key].(string)
	return v, ok && v != ""
}

func stringSliceField(fields map[string]any, key string) []string {
	raw, ok := fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mergeUnique(existing, fresh []string) []string {
	if len(fresh) == 0 {
		return existing
	}
	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[v] = true
	}
	out := existing
	for _, v := range fresh {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Fact is one knowledge base entry.
type Fact struct {
	Content    string    `json:"content"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
	ResearchID string    `json:"research_id,omitempty"`
	AddedAt    time.Time `json:"added_at"`
}

// KnowledgeBase is an append-only log of facts surfaced during a
// session, from conversation, research, or tool results.
type KnowledgeBase struct {
	Facts []Fact `json:"facts"`
}

// AddFact appends a fact. researchID is empty for non-research sources.
func (kb *KnowledgeBase) AddFact(content, source string, confidence float64, researchID string) {
	kb.Facts = append(kb.Facts, Fact{
		Content:    content,
		Source:     source,
		Confidence: confidence,
		ResearchID: researchID,
		AddedAt:    time.Now(),
	})
}

// Exchange is one user/assistant message pair recorded for context.
type Exchange struct {
	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// InteractionContext tracks the recent conversational shape of a
// session: the exchange log (bounded to maxExchanges, most recent
// last) and the most recent intent classification.
type InteractionContext struct {
	Exchanges    []Exchange            `json:"exchanges"`
	LatestIntent *IntentClassification `json:"latest_intent,omitempty"`

	maxExchanges int
}

const defaultMaxExchanges = 50

// AddExchange records one exchange, trimming the oldest entry once the
// log exceeds its retention bound.
func (ic *InteractionContext) AddExchange(userMsg, assistantMsg string) {
	if ic.maxExchanges == 0 {
		ic.maxExchanges = defaultMaxExchanges
	}
	ic.Exchanges = append(ic.Exchanges, Exchange{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		RecordedAt:       time.Now(),
	})
	if len(ic.Exchanges) > ic.maxExchanges {
		ic.Exchanges = ic.Exchanges[len(ic.Exchanges)-ic.maxExchanges:]
	}
}

// UpdateIntent records the most recent intent classification.
func (ic *InteractionContext) UpdateIntent(intent IntentClassification) {
	ic.LatestIntent = &intent
}

// StateMetadata tracks aggregate interaction statistics for a session.
type StateMetadata struct {
	MessageCount      int            `json:"message_count"`
	ToolCallCount      int            `json:"tool_call_count"`
	ToolFailureCount   int            `json:"tool_failure_count"`
	TotalToolTime      time.Duration  `json:"total_tool_time"`
	InteractionsByKind map[string]int `json:"interactions_by_kind,omitempty"`
}

// RecordInteraction tallies one interaction by the "kind" metadata key,
// a no-op if absent.
func (sm *StateMetadata) RecordInteraction(metadata map[string]any) {
	kind, ok := metadata["kind"].(string)
	if !ok || kind == "" {
		return
	}
	if sm.InteractionsByKind == nil {
		sm.InteractionsByKind = make(map[string]int)
	}
	sm.InteractionsByKind[kind]++
}

// RecordToolCall tallies one tool execution.
func (sm *StateMetadata) RecordToolCall(success bool, executionTime time.Duration) {
	sm.ToolCallCount++
	if !success {
		sm.ToolFailureCount++
	}
	sm.TotalToolTime += executionTime
}

// SessionState is the full set of sub-aggregates the State Update
// Service mutates for one session, persisted as a unit.
type SessionState struct {
	UserProfile         UserProfile         `json:"user_profile"`
	KnowledgeBase       KnowledgeBase       `json:"knowledge_base"`
	InteractionContext  InteractionContext  `json:"interaction_context"`
	StateMetadata       StateMetadata       `json:"state_metadata"`
	CreatedAt           time.Time           `json:"created_at"`
	LastUpdated         time.Time           `json:"last_updated"`
}

// NewSessionState returns an empty SessionState with timestamps set to
// now.
func NewSessionState() *SessionState {
	now := time.Now()
	return &SessionState{CreatedAt: now, LastUpdated: now}
}
