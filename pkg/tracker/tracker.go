// Package tracker implements the Progress Tracker (spec.md §4.5): the
// cross-attempt memory that lets a second or third execution at a higher
// strategy build on, not repeat, prior work. Grounded on the teacher's
// pkg/memory/manager.go and pkg/orchestrator/plan_store.go structural
// pattern (already read and summarized, files since deleted from disk as
// part of the bulk CLI-package deletion pass), with the tool cache,
// Jaccard plan-merge algorithm, and verbosity-tiered context emission
// ported block-for-block from original_source's progress_tracker.py.
package tracker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Tracker is the central per-query progress tracker. One instance is
// created per user query and owned by the Session for the query's
// lifetime (spec.md §3 Ownership).
type Tracker struct {
	mu sync.Mutex

	Query      string
	Complexity ComplexityAnalysis
	CreatedAt  time.Time

	Attempts        []ExecutionAttempt
	currentAttempt  *ExecutionAttempt
	currentStrategy Strategy

	ToolExecutions  []ToolExecution
	toolResultCache map[string]string // hash -> result

	Plan *PlanSkeleton

	Insights Insights
}

// New creates a tracker for a freshly-analyzed query.
func New(query string, complexity ComplexityAnalysis) *Tracker {
	return &Tracker{
		Query:           query,
		Complexity:      complexity,
		CreatedAt:       time.Now(),
		toolResultCache: make(map[string]string),
		Insights:        newInsights(),
	}
}

// StartAttempt begins a new execution attempt at the given strategy.
func (t *Tracker) StartAttempt(strategy Strategy) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.currentStrategy = strategy
	attempt := ExecutionAttempt{
		Strategy:  strategy,
		StartedAt: time.Now(),
		Status:    AttemptInProgress,
	}
	t.Attempts = append(t.Attempts, attempt)
	t.currentAttempt = &t.Attempts[len(t.Attempts)-1]
}

// EndAttempt completes the current attempt. A quality score >= 0.6 marks
// it completed; otherwise escalated. No-op with a log-worthy condition if
// there is no current attempt (callers should always pair with
// StartAttempt, but this mirrors the original's defensive no-op).
func (t *Tracker) EndAttempt(outcome, response string, evaluation *EvaluationResult, qualityScore *float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.currentAttempt == nil {
		return
	}

	now := time.Now()
	t.currentAttempt.CompletedAt = &now
	if qualityScore != nil && *qualityScore >= 0.6 {
		t.currentAttempt.Status = AttemptCompleted
	} else {
		t.currentAttempt.Status = AttemptEscalated
	}
	t.currentAttempt.Response = response
	t.currentAttempt.Evaluation = evaluation
	t.currentAttempt.QualityScore = qualityScore
	t.currentAttempt.Outcome = outcome

	if evaluation != nil {
		t.Insights.addFromEvaluation(*evaluation)
	}
}

// hashArguments produces a stable hash for tool_name+arguments, stable
// under key reordering because json.Marshal of the sorted-key map is
// deterministic.
func hashArguments(toolName string, arguments map[string]any) string {
	keys := make([]string, 0, len(arguments))
	for k := range arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]any, len(arguments))
	for _, k := range keys {
		ordered[k] = arguments[k]
	}

	payload, _ := json.Marshal(struct {
		Tool string         `json:"tool"`
		Args map[string]any `json:"args"`
	}{Tool: toolName, Args: ordered})

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ShouldExecuteTool reports whether a tool call must run, or whether a
// cached result can be reused. On a cache hit it returns (false, cached).
// On a miss, or a hit against a prior failure, it returns (true, "") —
// failures may be worth retrying in a fresh context (spec.md §4.5).
func (t *Tracker) ShouldExecuteTool(toolName string, arguments map[string]any) (execute bool, cached string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	hash := hashArguments(toolName, arguments)
	if result, ok := t.toolResultCache[hash]; ok {
		return false, result
	}
	return true, ""
}

// LogToolExecution appends a tool-call record and, on success, fills the
// result cache.
func (t *Tracker) LogToolExecution(toolName string, arguments map[string]any, success bool, result, errMsg string, executionTimeMS float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	hash := hashArguments(toolName, arguments)
	exec := ToolExecution{
		ToolName:        toolName,
		Arguments:       arguments,
		ExecutedAt:      time.Now(),
		Strategy:        t.currentStrategy,
		Success:         success,
		Result:          result,
		Error:           errMsg,
		ExecutionTimeMS: executionTimeMS,
		ResultHash:      hash,
	}
	t.ToolExecutions = append(t.ToolExecutions, exec)

	if success && result != "" {
		t.toolResultCache[hash] = result
		t.Insights.SuccessfulToolResults[toolName] = result
	} else if !success && errMsg != "" {
		t.Insights.FailedToolAttempts[toolName] = errMsg
	}

	if t.currentAttempt != nil {
		entry := result
		if entry == "" {
			entry = "Error: " + errMsg
		}
		t.currentAttempt.AccumulatedResults = append(t.currentAttempt.AccumulatedResults, entry)
	}
}

// UpdateStepStatus transitions a plan step and records findings.
func (t *Tracker) UpdateStepStatus(stepID string, status StepStatus, findings []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Plan == nil {
		return
	}
	for i := range t.Plan.Steps {
		step := &t.Plan.Steps[i]
		if step.ID != stepID {
			continue
		}
		step.Status = status
		now := time.Now()
		switch status {
		case StepInProgress:
			if step.StartedAt == nil {
				step.StartedAt = &now
				t.Plan.CurrentStepID = stepID
			}
		case StepCompleted:
			step.CompletedAt = &now
			step.Findings = append(step.Findings, findings...)
		}
		return
	}
}
