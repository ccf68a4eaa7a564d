package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStepDescriptionStripsPrefixAndWhitespace(t *testing.T) {
	assert.Equal(t, "fetch the homepage", normalizeStepDescription("Step: Fetch   the Homepage"))
	assert.Equal(t, "fetch the homepage", normalizeStepDescription("1. fetch the homepage"))
}

func TestJaccardSimilarAboveAndBelowThreshold(t *testing.T) {
	assert.True(t, jaccardSimilar("fetch the api documentation", "fetch the api documentation now", 0.7))
	assert.False(t, jaccardSimilar("fetch the api documentation", "deploy the production cluster", 0.7))
}

func TestSetPlanCreatesInitialSkeleton(t *testing.T) {
	tr := New("what is the weather", ComplexityAnalysis{Level: ComplexityLow})
	tr.SetPlan(NewPlan{
		OriginalQuery: "what is the weather",
		Subtasks: []NewSubtask{
			{Query: "find the location"},
			{Query: "query the forecast API"},
		},
	}, StrategyLightPlanning)

	require.NotNil(t, tr.Plan)
	require.Len(t, tr.Plan.Steps, 2)
	assert.Equal(t, "step_0", tr.Plan.Steps[0].ID)
	assert.Equal(t, StepPending, tr.Plan.Steps[0].Status)
	assert.Equal(t, 0, tr.Plan.RevisionCount)
}

func TestRefinePlanPreservesCompletedStepsAndMergesSimilar(t *testing.T) {
	tr := New("research topic", ComplexityAnalysis{Level: ComplexityMedium})
	tr.SetPlan(NewPlan{
		OriginalQuery: "research topic",
		Subtasks: []NewSubtask{
			{Query: "gather background sources"},
			{Query: "summarize key findings"},
		},
	}, StrategyLightPlanning)

	tr.UpdateStepStatus("step_0", StepCompleted, []string{"found 3 sources"})

	tr.SetPlan(NewPlan{
		OriginalQuery: "research topic",
		Subtasks: []NewSubtask{
			{Query: "gather background sources"},       // exact match -> preserved completed
			{Query: "summarize the key findings"},       // similar -> reuse, update description
			{Query: "draft a final report"},             // brand new
		},
	}, StrategyDeepReasoning)

	require.Equal(t, 1, tr.Plan.RevisionCount)
	completed := tr.Plan.CompletedSteps()
	require.Len(t, completed, 1)
	assert.Equal(t, "gather background sources", completed[0].Description)

	var draftFound bool
	for _, s := range tr.Plan.Steps {
		if s.Description == "draft a final report" {
			draftFound = true
			assert.Equal(t, StepPending, s.Status)
		}
	}
	assert.True(t, draftFound)
}

func TestAddDynamicStepSkipsExistingSimilarStep(t *testing.T) {
	tr := New("research topic", ComplexityAnalysis{Level: ComplexityHigh})
	tr.SetPlan(NewPlan{
		OriginalQuery: "research topic",
		Subtasks:      []NewSubtask{{Query: "gather background sources"}},
	}, StrategyDeepReasoning)

	existingID := tr.AddDynamicStep("gather background sources please")
	assert.Equal(t, "step_0", existingID)
	require.Len(t, tr.Plan.Steps, 1)

	newID := tr.AddDynamicStep("benchmark the competing solutions")
	assert.Equal(t, "step_1", newID)
	require.Len(t, tr.Plan.Steps, 2)
	assert.Equal(t, StepPending, tr.Plan.Steps[1].Status)
}

func TestRefinePlanMarksOrphanedPendingStepSkipped(t *testing.T) {
	tr := New("research topic", ComplexityAnalysis{Level: ComplexityMedium})
	tr.SetPlan(NewPlan{
		OriginalQuery: "research topic",
		Subtasks: []NewSubtask{
			{Query: "investigate unrelated tangent"},
		},
	}, StrategyLightPlanning)

	tr.SetPlan(NewPlan{
		OriginalQuery: "research topic",
		Subtasks: []NewSubtask{
			{Query: "completely different direction entirely"},
		},
	}, StrategyDeepReasoning)

	var orphan PlanStep
	for _, s := range tr.Plan.Steps {
		if s.Description == "investigate unrelated tangent" {
			orphan = s
		}
	}
	assert.Equal(t, StepSkipped, orphan.Status)
}
