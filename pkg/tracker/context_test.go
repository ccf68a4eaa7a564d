package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToContextTextMinimalOnFirstAttempt(t *testing.T) {
	tr := New("what is the capital of france", ComplexityAnalysis{Level: ComplexityLow})
	tr.StartAttempt(StrategyDirect)

	text := tr.ToContextText(StrategyDirect, "", 0, 0)
	assert.Contains(t, text, "what is the capital of france")
	assert.NotContains(t, text, "## Previous Execution Attempts")
}

func TestToContextTextCompactSummarizesProgress(t *testing.T) {
	tr := New("q", ComplexityAnalysis{Level: ComplexityMedium})
	tr.StartAttempt(StrategyDirect)
	score := 0.4
	tr.EndAttempt("escalating", "", &EvaluationResult{MissingAspects: []string{"gap1", "gap2"}}, &score)
	tr.StartAttempt(StrategyDirect)

	text := tr.ToContextText(StrategyDirect, VerbosityCompact, 0, 0)
	assert.Contains(t, text, "Progress: 2 attempts")
	assert.Contains(t, text, "Gaps: gap1, gap2")
}

func TestToContextTextMediumIncludesPlanAndTools(t *testing.T) {
	tr := New("q", ComplexityAnalysis{Level: ComplexityMedium})
	tr.SetPlan(NewPlan{OriginalQuery: "q", Subtasks: []NewSubtask{{Query: "step one"}}}, StrategyLightPlanning)
	tr.StartAttempt(StrategyLightPlanning)
	tr.LogToolExecution("search", map[string]any{"q": "x"}, true, "found it", "", 5)
	score := 0.5
	tr.EndAttempt("escalating", "", nil, &score)
	tr.StartAttempt(StrategyLightPlanning)

	text := tr.ToContextText(StrategyLightPlanning, VerbosityMedium, 0, 0)
	assert.Contains(t, text, "Research Plan Progress")
	assert.Contains(t, text, "Tool Execution History")
}

func TestEstimateTokenCountUsesFourCharRule(t *testing.T) {
	assert.Equal(t, 2, EstimateTokenCount("abcdefgh"))
}
