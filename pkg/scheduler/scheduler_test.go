package scheduler

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftloop/agentcore/pkg/agentloop"
	"github.com/driftloop/agentcore/pkg/approval"
	"github.com/driftloop/agentcore/pkg/callback"
	"github.com/driftloop/agentcore/pkg/conversation"
	"github.com/driftloop/agentcore/pkg/model"
	"github.com/driftloop/agentcore/pkg/tool"
	"github.com/driftloop/agentcore/pkg/tracker"
)

// scriptedClient answers every Complete call with the next response in
// a fixed list, regardless of request content, which is all these tests
// need: the scheduler's escalation logic is driven by the Evaluator,
// not by what the model actually said.
type scriptedClient struct {
	responses []string
	calls     int
}

func (c *scriptedClient) Complete(ctx context.Context, req model.CompletionRequest) (*model.CompletionResponse, error) {
	text := "response"
	if c.calls < len(c.responses) {
		text = c.responses[c.calls]
	}
	c.calls++
	return &model.CompletionResponse{
		Message:    model.Message{Role: model.RoleAssistant, Content: []model.ContentBlock{model.Text(text)}},
		StopReason: model.StopEndTurn,
		Usage:      model.Usage{InputTokens: 10, OutputTokens: 5},
	}, nil
}

func (c *scriptedClient) Stream(ctx context.Context, req model.CompletionRequest) (<-chan model.StreamEvent, <-chan error) {
	evCh := make(chan model.StreamEvent)
	errCh := make(chan error, 1)
	close(evCh)
	close(errCh)
	return evCh, errCh
}

func newLoopFactory(client model.Client) func(tr *tracker.Tracker) *agentloop.Loop {
	reg := tool.NewRegistry(false, zerolog.Nop())
	return func(tr *tracker.Tracker) *agentloop.Loop {
		deps := agentloop.Dependencies{
			Client:   client,
			Registry: reg,
			Tracker:  tr,
			Approval: agentloop.ApprovalConfig{Mode: approval.ModeYolo},
			Log:      zerolog.Nop(),
		}
		return agentloop.New(deps, agentloop.RequestDefaults{MaxTokens: 512})
	}
}

type fakeAnalyzer struct {
	complexity tracker.ComplexityAnalysis
}

func (f fakeAnalyzer) Analyze(ctx context.Context, query string) (tracker.ComplexityAnalysis, error) {
	return f.complexity, nil
}

type fakePlanner struct {
	subtasks []tracker.NewSubtask
}

func (f fakePlanner) GeneratePlan(ctx context.Context, query string, complexity tracker.ComplexityAnalysis, mode string) (tracker.NewPlan, error) {
	return tracker.NewPlan{OriginalQuery: query, Subtasks: f.subtasks}, nil
}

// scriptedEvaluator returns the next scripted evaluation on each call,
// repeating the last one once the script is exhausted.
type scriptedEvaluator struct {
	evaluations []tracker.EvaluationResult
	calls       int
}

func (e *scriptedEvaluator) Evaluate(ctx context.Context, query, response string, strategy tracker.Strategy, complexity tracker.ComplexityAnalysis) (tracker.EvaluationResult, error) {
	idx := e.calls
	if idx >= len(e.evaluations) {
		idx = len(e.evaluations) - 1
	}
	e.calls++
	return e.evaluations[idx], nil
}

type concatSynthesizer struct{}

func (concatSynthesizer) Synthesize(ctx context.Context, query string, results []string) (string, error) {
	out := ""
	for i, r := range results {
		if i > 0 {
			out += " | "
		}
		out += r
	}
	return out, nil
}

func (concatSynthesizer) Filter(ctx context.Context, query string, results []string) ([]string, error) {
	return results, nil
}

func TestRunAcceptsDirectAnswerWhenQualityPasses(t *testing.T) {
	client := &scriptedClient{responses: []string{"the direct answer"}}
	deps := Dependencies{
		NewLoop:     newLoopFactory(client),
		Analyzer:    fakeAnalyzer{complexity: tracker.ComplexityAnalysis{Level: tracker.ComplexityLow, RecommendedStrategy: tracker.StrategyDirect}},
		Evaluator:   &scriptedEvaluator{evaluations: []tracker.EvaluationResult{{IsComplete: true, Confidence: 0.9}}},
		Synthesizer: concatSynthesizer{},
		Log:         zerolog.Nop(),
	}
	sched := New(deps, DefaultReasoningConfig())

	var finalStrategy tracker.Strategy
	var attempts int
	hooks := &callback.SchedulerHooks{
		OnFinalResponse: func(strategy tracker.Strategy, a int, quality float64, escalated bool) {
			finalStrategy = strategy
			attempts = a
		},
	}

	conv := conversation.New("system", conversation.Config{})
	text, err := sched.Run(context.Background(), conv, "claude-sonnet-4-6", "what is up", hooks)

	require.NoError(t, err)
	assert.Equal(t, "the direct answer", text)
	assert.Equal(t, tracker.StrategyDirect, finalStrategy)
	assert.Equal(t, 1, attempts)
}

func TestRunEscalatesFromDirectToLightOnLowConfidence(t *testing.T) {
	client := &scriptedClient{responses: []string{"weak direct answer", "better light answer"}}
	deps := Dependencies{
		NewLoop:  newLoopFactory(client),
		Analyzer: fakeAnalyzer{complexity: tracker.ComplexityAnalysis{Level: tracker.ComplexityLow, RecommendedStrategy: tracker.StrategyDirect}},
		Planner:  fakePlanner{subtasks: []tracker.NewSubtask{{Query: "investigate further"}}},
		Evaluator: &scriptedEvaluator{evaluations: []tracker.EvaluationResult{
			{IsComplete: false, Confidence: 0.30, Reasoning: "too shallow"},
			{IsComplete: true, Confidence: 0.85},
		}},
		Synthesizer: concatSynthesizer{},
		Log:         zerolog.Nop(),
	}
	sched := New(deps, DefaultReasoningConfig())

	var escalatedFrom, escalatedTo tracker.Strategy
	var escalationCount int
	hooks := &callback.SchedulerHooks{
		OnAutoEscalation: func(from, to tracker.Strategy, reason string, confidence float64) {
			escalatedFrom, escalatedTo = from, to
			escalationCount++
		},
	}

	conv := conversation.New("system", conversation.Config{})
	text, err := sched.Run(context.Background(), conv, "claude-sonnet-4-6", "investigate this", hooks)

	require.NoError(t, err)
	assert.Equal(t, "better light answer", text)
	assert.Equal(t, 1, escalationCount)
	assert.Equal(t, tracker.StrategyDirect, escalatedFrom)
	assert.Equal(t, tracker.StrategyLightPlanning, escalatedTo)
}

func TestRunAppliesPerStrategyQualityFloorOverridingIsComplete(t *testing.T) {
	// Evaluator claims is_complete=true but confidence sits below the
	// DIRECT floor (0.60 default): the scheduler must override it and
	// escalate anyway.
	client := &scriptedClient{responses: []string{"first", "second"}}
	deps := Dependencies{
		NewLoop:  newLoopFactory(client),
		Analyzer: fakeAnalyzer{complexity: tracker.ComplexityAnalysis{Level: tracker.ComplexityLow, RecommendedStrategy: tracker.StrategyDirect}},
		Planner:  fakePlanner{subtasks: []tracker.NewSubtask{{Query: "step one"}}},
		Evaluator: &scriptedEvaluator{evaluations: []tracker.EvaluationResult{
			{IsComplete: true, Confidence: 0.40},
			{IsComplete: true, Confidence: 0.90},
		}},
		Synthesizer: concatSynthesizer{},
		Log:         zerolog.Nop(),
	}
	sched := New(deps, DefaultReasoningConfig())

	escalated := false
	hooks := &callback.SchedulerHooks{
		OnAutoEscalation: func(from, to tracker.Strategy, reason string, confidence float64) { escalated = true },
	}

	conv := conversation.New("system", conversation.Config{})
	_, err := sched.Run(context.Background(), conv, "claude-sonnet-4-6", "query", hooks)

	require.NoError(t, err)
	assert.True(t, escalated, "low-confidence is_complete=true must still be overridden to escalate")
}

func TestRunForcesOnlyInitialStrategy(t *testing.T) {
	client := &scriptedClient{responses: []string{"light answer"}}
	deps := Dependencies{
		NewLoop:     newLoopFactory(client),
		Analyzer:    fakeAnalyzer{complexity: tracker.ComplexityAnalysis{Level: tracker.ComplexityLow, RecommendedStrategy: tracker.StrategyDirect}},
		Planner:     fakePlanner{subtasks: []tracker.NewSubtask{{Query: "step one"}}},
		Evaluator:   &scriptedEvaluator{evaluations: []tracker.EvaluationResult{{IsComplete: true, Confidence: 0.9}}},
		Synthesizer: concatSynthesizer{},
		Log:         zerolog.Nop(),
	}
	cfg := DefaultReasoningConfig()
	cfg.ForceStrategy = tracker.StrategyLightPlanning
	sched := New(deps, cfg)

	var selected []tracker.Strategy
	hooks := &callback.SchedulerHooks{
		OnStrategySelected: func(strategy tracker.Strategy, reason string) { selected = append(selected, strategy) },
	}

	conv := conversation.New("system", conversation.Config{})
	text, err := sched.Run(context.Background(), conv, "claude-sonnet-4-6", "query", hooks)

	require.NoError(t, err)
	assert.Equal(t, "light answer", text)
	require.Len(t, selected, 1)
	assert.Equal(t, tracker.StrategyLightPlanning, selected[0])
}

func TestRunDeepReasoningFoldsAdditionalQueriesIntoPlan(t *testing.T) {
	client := &scriptedClient{responses: []string{"finding one", "finding two"}}
	deps := Dependencies{
		NewLoop:  newLoopFactory(client),
		Analyzer: fakeAnalyzer{complexity: tracker.ComplexityAnalysis{Level: tracker.ComplexityHigh, RecommendedStrategy: tracker.StrategyDeepReasoning}},
		Planner:  fakePlanner{subtasks: []tracker.NewSubtask{{Query: "first angle"}}},
		Evaluator: &scriptedEvaluator{evaluations: []tracker.EvaluationResult{
			{IsComplete: false, AdditionalQueries: []string{"second angle"}},
			{IsComplete: true},
		}},
		Synthesizer: concatSynthesizer{},
		Log:         zerolog.Nop(),
	}
	sched := New(deps, DefaultReasoningConfig())

	var trackerAtEnd *tracker.Tracker
	hooks := &callback.SchedulerHooks{
		OnTrackerComplete: func(tr *tracker.Tracker, query string) { trackerAtEnd = tr },
	}

	conv := conversation.New("system", conversation.Config{})
	text, err := sched.Run(context.Background(), conv, "claude-sonnet-4-6", "deep query", hooks)

	require.NoError(t, err)
	assert.Equal(t, "finding one | finding two", text)
	require.NotNil(t, trackerAtEnd)
	require.NotNil(t, trackerAtEnd.Plan)
	assert.Len(t, trackerAtEnd.Plan.Steps, 2)
	assert.Equal(t, "second angle", trackerAtEnd.Plan.Steps[1].Description)
}

func TestRunFakeStreamsAcceptedAnswerWhenStreamingRequested(t *testing.T) {
	client := &scriptedClient{responses: []string{"a reasonably long final answer text"}}
	deps := Dependencies{
		NewLoop:     newLoopFactory(client),
		Analyzer:    fakeAnalyzer{complexity: tracker.ComplexityAnalysis{Level: tracker.ComplexityLow, RecommendedStrategy: tracker.StrategyDirect}},
		Evaluator:   &scriptedEvaluator{evaluations: []tracker.EvaluationResult{{IsComplete: true, Confidence: 0.9}}},
		Synthesizer: concatSynthesizer{},
		Log:         zerolog.Nop(),
	}
	cfg := DefaultReasoningConfig()
	cfg.StreamChunkDelayMS = 0
	sched := New(deps, cfg)

	var streamed string
	var completed bool
	hooks := &callback.SchedulerHooks{
		Loop: &callback.LoopHooks{
			OnStreamChunk:    func(chunk string) { streamed += chunk },
			OnStreamComplete: func() { completed = true },
		},
	}

	conv := conversation.New("system", conversation.Config{})
	text, err := sched.Run(context.Background(), conv, "claude-sonnet-4-6", "query", hooks)

	require.NoError(t, err)
	assert.Equal(t, text, streamed)
	assert.True(t, completed)
}
