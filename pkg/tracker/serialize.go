package tracker

import (
	"encoding/json"
	"time"
)

// snapshot is the JSON-serializable view of a Tracker (spec.md §4.5
// Persistence): datetime fields are ISO-8601 via time.Time's default JSON
// marshaling, and Strategy is already a string type.
type snapshot struct {
	Query          string             `json:"query"`
	Complexity     ComplexityAnalysis `json:"complexity"`
	CreatedAt      time.Time          `json:"created_at"`
	Attempts       []ExecutionAttempt `json:"attempts"`
	ToolExecutions []ToolExecution    `json:"tool_executions"`
	Plan           *PlanSkeleton      `json:"plan,omitempty"`
	Insights       Insights           `json:"insights"`
}

// ToDict serializes the tracker to its canonical persisted form.
func (t *Tracker) ToDict() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := snapshot{
		Query:          t.Query,
		Complexity:     t.Complexity,
		CreatedAt:      t.CreatedAt,
		Attempts:       t.Attempts,
		ToolExecutions: t.ToolExecutions,
		Plan:           t.Plan,
		Insights:       t.Insights,
	}
	return json.Marshal(snap)
}

// FromDict rebuilds a Tracker from ToDict's output, reinserting every
// successful tool result into the cache.
func FromDict(data []byte) (*Tracker, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}

	t := New(snap.Query, snap.Complexity)
	t.CreatedAt = snap.CreatedAt
	t.Attempts = snap.Attempts
	t.ToolExecutions = snap.ToolExecutions
	t.Plan = snap.Plan
	t.Insights = snap.Insights
	if t.Insights.SuccessfulToolResults == nil {
		t.Insights.SuccessfulToolResults = make(map[string]string)
	}
	if t.Insights.FailedToolAttempts == nil {
		t.Insights.FailedToolAttempts = make(map[string]string)
	}

	for _, exec := range t.ToolExecutions {
		if exec.Success && exec.Result != "" {
			t.toolResultCache[exec.ResultHash] = exec.Result
		}
	}

	if len(t.Attempts) > 0 {
		last := &t.Attempts[len(t.Attempts)-1]
		if last.Status == AttemptInProgress {
			t.currentAttempt = last
			t.currentStrategy = last.Strategy
		}
	}

	return t, nil
}
