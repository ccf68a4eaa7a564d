// Package callback defines the UI-adapter boundary (C10): the set of
// hooks the Agent Loop and Reasoning Scheduler invoke so a caller (a TUI,
// a web socket, a CLI) can observe a run in progress. No adapter
// implementation lives here — spec.md §1 Non-goals excludes the UI
// itself; this package is the contract alone.
//
// Every field is optional; nil hooks are simply skipped, and every
// method below tolerates a nil *LoopHooks/*SchedulerHooks receiver so
// callers can pass an unconfigured pointer without a nil check at every
// call site. Hooks run synchronously on the runtime's own goroutine; a
// caller wanting async behavior (writing to a channel, a websocket) owns
// that hand-off itself.
package callback

import (
	"github.com/driftloop/agentcore/pkg/model"
	"github.com/driftloop/agentcore/pkg/tracker"
)

// Usage pairs a completion's token counts with its dollar cost.
type Usage struct {
	Tokens model.Usage
	Cost   float64
}

// LoopHooks is the Agent Loop's (C6) callback surface.
type LoopHooks struct {
	OnStart          func()
	OnStreamChunk    func(chunk string)
	OnStreamComplete func()
	OnToolCall       func(name string, input map[string]any)
	OnToolResult     func(name, result string, success bool)
	OnUsage          func(usage Usage)
}

// WantsStreaming reports whether the caller asked for token-level
// streaming. The scheduler suppresses this on every buffered execute()
// call regardless (spec.md §4.6 Streaming vs buffered).
func (h *LoopHooks) WantsStreaming() bool {
	return h != nil && h.OnStreamChunk != nil
}

func (h *LoopHooks) Start() {
	if h != nil && h.OnStart != nil {
		h.OnStart()
	}
}

func (h *LoopHooks) StreamChunk(chunk string) {
	if h != nil && h.OnStreamChunk != nil {
		h.OnStreamChunk(chunk)
	}
}

func (h *LoopHooks) StreamComplete() {
	if h != nil && h.OnStreamComplete != nil {
		h.OnStreamComplete()
	}
}

func (h *LoopHooks) ToolCall(name string, input map[string]any) {
	if h != nil && h.OnToolCall != nil {
		h.OnToolCall(name, input)
	}
}

func (h *LoopHooks) ToolResult(name, result string, success bool) {
	if h != nil && h.OnToolResult != nil {
		h.OnToolResult(name, result, success)
	}
}

func (h *LoopHooks) Usage(usage Usage) {
	if h != nil && h.OnUsage != nil {
		h.OnUsage(usage)
	}
}

// SchedulerHooks is the Reasoning Scheduler's (C7) additional callback
// surface. Loop is passed through to every C6 call the scheduler drives.
type SchedulerHooks struct {
	Loop *LoopHooks

	OnAnalysisStart        func()
	OnAnalysisComplete     func(complexity tracker.ComplexityAnalysis)
	OnStrategySelected     func(strategy tracker.Strategy, reason string)
	OnPlanningStart        func()
	OnPlanningComplete     func(stepCount int, mode string)
	OnQualityCheckStart    func()
	OnQualityCheckComplete func(evaluation tracker.EvaluationResult)
	OnResponseForJudgment  func(response string, strategy tracker.Strategy)
	OnAutoEscalation       func(from, to tracker.Strategy, reason string, confidence float64)
	OnFinalResponse        func(strategy tracker.Strategy, attempts int, quality float64, escalated bool)
	OnTrackerComplete      func(t *tracker.Tracker, query string)
	OnStepProgress         func(stepID string, status tracker.StepStatus, description string)
}

func (h *SchedulerHooks) AnalysisStart() {
	if h != nil && h.OnAnalysisStart != nil {
		h.OnAnalysisStart()
	}
}

func (h *SchedulerHooks) AnalysisComplete(c tracker.ComplexityAnalysis) {
	if h != nil && h.OnAnalysisComplete != nil {
		h.OnAnalysisComplete(c)
	}
}

func (h *SchedulerHooks) StrategySelected(strategy tracker.Strategy, reason string) {
	if h != nil && h.OnStrategySelected != nil {
		h.OnStrategySelected(strategy, reason)
	}
}

func (h *SchedulerHooks) PlanningStart() {
	if h != nil && h.OnPlanningStart != nil {
		h.OnPlanningStart()
	}
}

func (h *SchedulerHooks) PlanningComplete(stepCount int, mode string) {
	if h != nil && h.OnPlanningComplete != nil {
		h.OnPlanningComplete(stepCount, mode)
	}
}

func (h *SchedulerHooks) QualityCheckStart() {
	if h != nil && h.OnQualityCheckStart != nil {
		h.OnQualityCheckStart()
	}
}

func (h *SchedulerHooks) QualityCheckComplete(e tracker.EvaluationResult) {
	if h != nil && h.OnQualityCheckComplete != nil {
		h.OnQualityCheckComplete(e)
	}
}

func (h *SchedulerHooks) ResponseForJudgment(response string, strategy tracker.Strategy) {
	if h != nil && h.OnResponseForJudgment != nil {
		h.OnResponseForJudgment(response, strategy)
	}
}

func (h *SchedulerHooks) AutoEscalation(from, to tracker.Strategy, reason string, confidence float64) {
	if h != nil && h.OnAutoEscalation != nil {
		h.OnAutoEscalation(from, to, reason, confidence)
	}
}

func (h *SchedulerHooks) FinalResponse(strategy tracker.Strategy, attempts int, quality float64, escalated bool) {
	if h != nil && h.OnFinalResponse != nil {
		h.OnFinalResponse(strategy, attempts, quality, escalated)
	}
}

func (h *SchedulerHooks) TrackerComplete(t *tracker.Tracker, query string) {
	if h != nil && h.OnTrackerComplete != nil {
		h.OnTrackerComplete(t, query)
	}
}

func (h *SchedulerHooks) StepProgress(stepID string, status tracker.StepStatus, description string) {
	if h != nil && h.OnStepProgress != nil {
		h.OnStepProgress(stepID, status, description)
	}
}
