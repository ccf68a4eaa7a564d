package callback

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftloop/agentcore/pkg/model"
	"github.com/driftloop/agentcore/pkg/tracker"
)

func TestNilLoopHooksAreSafe(t *testing.T) {
	var h *LoopHooks
	assert.False(t, h.WantsStreaming())
	assert.NotPanics(t, func() {
		h.Start()
		h.StreamChunk("x")
		h.StreamComplete()
		h.ToolCall("search", nil)
		h.ToolResult("search", "ok", true)
		h.Usage(Usage{})
	})
}

func TestLoopHooksFireWithArguments(t *testing.T) {
	var started, completed bool
	var chunk, toolName, toolResult string
	var toolInput map[string]any
	var toolSuccess bool
	var usage Usage

	h := &LoopHooks{
		OnStart:          func() { started = true },
		OnStreamChunk:    func(c string) { chunk = c },
		OnStreamComplete: func() { completed = true },
		OnToolCall: func(name string, input map[string]any) {
			toolName = name
			toolInput = input
		},
		OnToolResult: func(name, result string, success bool) {
			toolName = name
			toolResult = result
			toolSuccess = success
		},
		OnUsage: func(u Usage) { usage = u },
	}

	assert.True(t, h.WantsStreaming())

	h.Start()
	h.StreamChunk("hello")
	h.StreamComplete()
	h.ToolCall("search", map[string]any{"q": "x"})
	h.ToolResult("search", "done", true)
	h.Usage(Usage{Tokens: model.Usage{InputTokens: 10, OutputTokens: 5}, Cost: 0.01})

	assert.True(t, started)
	assert.Equal(t, "hello", chunk)
	assert.True(t, completed)
	assert.Equal(t, "search", toolName)
	assert.Equal(t, map[string]any{"q": "x"}, toolInput)
	assert.Equal(t, "done", toolResult)
	assert.True(t, toolSuccess)
	assert.Equal(t, 0.01, usage.Cost)
}

func TestNilSchedulerHooksAreSafe(t *testing.T) {
	var h *SchedulerHooks
	assert.NotPanics(t, func() {
		h.AnalysisStart()
		h.AnalysisComplete(tracker.ComplexityAnalysis{})
		h.StrategySelected(tracker.StrategyDirect, "reason")
		h.PlanningStart()
		h.PlanningComplete(2, "light")
		h.QualityCheckStart()
		h.QualityCheckComplete(tracker.EvaluationResult{})
		h.ResponseForJudgment("text", tracker.StrategyDirect)
		h.AutoEscalation(tracker.StrategyDirect, tracker.StrategyLightPlanning, "low confidence", 0.4)
		h.FinalResponse(tracker.StrategyDirect, 1, 0.8, false)
		h.TrackerComplete(nil, "query")
		h.StepProgress("step_0", tracker.StepCompleted, "desc")
	})
}

func TestSchedulerHooksFireWithArguments(t *testing.T) {
	var escalatedFrom, escalatedTo tracker.Strategy
	var stepID string
	var stepStatus tracker.StepStatus

	h := &SchedulerHooks{
		OnAutoEscalation: func(from, to tracker.Strategy, reason string, confidence float64) {
			escalatedFrom = from
			escalatedTo = to
		},
		OnStepProgress: func(id string, status tracker.StepStatus, description string) {
			stepID = id
			stepStatus = status
		},
	}

	h.AutoEscalation(tracker.StrategyDirect, tracker.StrategyDeepReasoning, "low confidence", 0.3)
	h.StepProgress("step_1", tracker.StepInProgress, "gathering sources")

	assert.Equal(t, tracker.StrategyDirect, escalatedFrom)
	assert.Equal(t, tracker.StrategyDeepReasoning, escalatedTo)
	assert.Equal(t, "step_1", stepID)
	assert.Equal(t, tracker.StepInProgress, stepStatus)
}
