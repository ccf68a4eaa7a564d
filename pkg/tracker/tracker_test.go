package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldExecuteToolMissThenHit(t *testing.T) {
	tr := New("q", ComplexityAnalysis{Level: ComplexityLow})

	execute, cached := tr.ShouldExecuteTool("search", map[string]any{"q": "golang"})
	assert.True(t, execute)
	assert.Empty(t, cached)

	tr.LogToolExecution("search", map[string]any{"q": "golang"}, true, "result text", "", 12.5)

	execute, cached = tr.ShouldExecuteTool("search", map[string]any{"q": "golang"})
	assert.False(t, execute)
	assert.Equal(t, "result text", cached)
}

func TestShouldExecuteToolHashStableUnderKeyReordering(t *testing.T) {
	tr := New("q", ComplexityAnalysis{Level: ComplexityLow})
	tr.LogToolExecution("search", map[string]any{"a": 1, "b": 2}, true, "cached", "", 1.0)

	execute, cached := tr.ShouldExecuteTool("search", map[string]any{"b": 2, "a": 1})
	assert.False(t, execute)
	assert.Equal(t, "cached", cached)
}

func TestShouldExecuteToolRetriesAfterFailure(t *testing.T) {
	tr := New("q", ComplexityAnalysis{Level: ComplexityLow})
	tr.LogToolExecution("search", map[string]any{"q": "x"}, false, "", "timeout", 5.0)

	execute, cached := tr.ShouldExecuteTool("search", map[string]any{"q": "x"})
	assert.True(t, execute)
	assert.Empty(t, cached)
}

func TestStartAndEndAttemptSetsStatusFromQualityScore(t *testing.T) {
	tr := New("q", ComplexityAnalysis{Level: ComplexityLow})
	tr.StartAttempt(StrategyDirect)

	high := 0.8
	tr.EndAttempt("quality sufficient", "the answer", nil, &high)
	require.Len(t, tr.Attempts, 1)
	assert.Equal(t, AttemptCompleted, tr.Attempts[0].Status)

	tr.StartAttempt(StrategyLightPlanning)
	low := 0.3
	tr.EndAttempt("escalating", "partial answer", nil, &low)
	require.Len(t, tr.Attempts, 2)
	assert.Equal(t, AttemptEscalated, tr.Attempts[1].Status)
}

func TestEndAttemptCollectsInsightsFromEvaluation(t *testing.T) {
	tr := New("q", ComplexityAnalysis{Level: ComplexityLow})
	tr.StartAttempt(StrategyDirect)
	score := 0.4
	tr.EndAttempt("escalating", "", &EvaluationResult{
		Reasoning:      "missing recent data",
		MissingAspects: []string{"recency", "citations"},
	}, &score)

	assert.Contains(t, tr.Insights.KnowledgeGaps, "recency")
	assert.Contains(t, tr.Insights.KnowledgeGaps, "citations")
	assert.Contains(t, tr.Insights.QualityFeedback, "missing recent data")
}

func TestToDictFromDictRoundTripRebuildsCache(t *testing.T) {
	tr := New("original query", ComplexityAnalysis{Level: ComplexityHigh, RecommendedStrategy: StrategyDeepReasoning})
	tr.StartAttempt(StrategyDirect)
	tr.LogToolExecution("search", map[string]any{"q": "x"}, true, "the result", "", 10)
	score := 0.9
	tr.EndAttempt("done", "final answer", nil, &score)

	data, err := tr.ToDict()
	require.NoError(t, err)

	restored, err := FromDict(data)
	require.NoError(t, err)

	assert.Equal(t, "original query", restored.Query)
	require.Len(t, restored.ToolExecutions, 1)
	execute, cached := restored.ShouldExecuteTool("search", map[string]any{"q": "x"})
	assert.False(t, execute)
	assert.Equal(t, "the result", cached)
}
