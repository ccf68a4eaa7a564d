package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftloop/agentcore/pkg/agentloop"
	"github.com/driftloop/agentcore/pkg/callback"
	"github.com/driftloop/agentcore/pkg/conversation"
	"github.com/driftloop/agentcore/pkg/cost"
	"github.com/driftloop/agentcore/pkg/tracker"
)

// Dependencies wires the Reasoning Scheduler to the Agent Loop it
// drives and to the Analyzer/Planner/Evaluator/Synthesizer ports that
// back its own (non-conversation-turn) LLM calls.
//
// NewLoop builds a fresh Agent Loop bound to the tracker the scheduler
// just created for this run, so the loop's tool-execution cache
// (ShouldExecuteTool/LogToolExecution) and the scheduler's own
// attempt/plan bookkeeping share one tracker instance for the run's
// whole lifetime (spec.md §4.7 "Tracker reuse").
type Dependencies struct {
	NewLoop     func(tr *tracker.Tracker) *agentloop.Loop
	Analyzer    Analyzer
	Planner     Planner
	Evaluator   Evaluator
	Synthesizer Synthesizer
	Cost        *cost.Accumulator
	CostCalc    cost.CostCalculator
	Log         zerolog.Logger
}

// Scheduler drives the DIRECT/LIGHT_PLANNING/DEEP_REASONING escalation
// loop over one query (spec.md §4.7).
type Scheduler struct {
	deps Dependencies
	cfg  ReasoningConfig
}

// New builds a Scheduler over deps and cfg.
func New(deps Dependencies, cfg ReasoningConfig) *Scheduler {
	return &Scheduler{deps: deps, cfg: cfg}
}

// Run drives one reasoning run to completion: analyze, select a
// strategy, execute it, evaluate the candidate answer, escalate if the
// per-strategy quality floor isn't met, and repeat until accepted or
// DEEP_REASONING has produced its final answer.
func (s *Scheduler) Run(ctx context.Context, conv *conversation.Conversation, modelID, query string, hooks *callback.SchedulerHooks) (string, error) {
	hooks.AnalysisStart()
	complexity, err := s.deps.Analyzer.Analyze(ctx, query)
	if err != nil {
		return "", fmt.Errorf("scheduler: analysis failed: %w", err)
	}
	hooks.AnalysisComplete(complexity)

	strategy := complexity.RecommendedStrategy
	if s.cfg.ForceStrategy != "" {
		strategy = s.cfg.ForceStrategy
	}

	tr := tracker.New(query, complexity)
	loop := s.deps.NewLoop(tr)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		tr.StartAttempt(strategy)
		hooks.StrategySelected(strategy, complexity.Rationale)

		response, err := s.execute(ctx, loop, conv, modelID, query, strategy, complexity, tr, hooks)
		if err != nil {
			return "", err
		}

		hooks.ResponseForJudgment(response, strategy)
		hooks.QualityCheckStart()
		evaluation, err := s.deps.Evaluator.Evaluate(ctx, query, response, strategy, complexity)
		if err != nil {
			return "", fmt.Errorf("scheduler: evaluation failed: %w", err)
		}
		if evaluation.Confidence < s.cfg.thresholdFor(strategy) {
			evaluation.IsComplete = false
		}
		hooks.QualityCheckComplete(evaluation)

		quality := evaluation.Confidence
		outcome := "escalated"
		if evaluation.IsComplete || strategy == tracker.StrategyDeepReasoning {
			outcome = "accepted"
		}
		tr.EndAttempt(outcome, response, &evaluation, &quality)

		if evaluation.IsComplete || strategy == tracker.StrategyDeepReasoning {
			s.fakeStream(hooks, response)
			attempts := len(tr.Attempts)
			hooks.FinalResponse(strategy, attempts, evaluation.Confidence, attempts > 1)
			hooks.TrackerComplete(tr, query)
			return response, nil
		}

		next := nextStrategy(strategy)
		hooks.AutoEscalation(strategy, next, evaluation.Reasoning, evaluation.Confidence)
		strategy = next
	}
}

// execute dispatches to the per-strategy execution path.
func (s *Scheduler) execute(ctx context.Context, loop *agentloop.Loop, conv *conversation.Conversation, modelID, query string, strategy tracker.Strategy, complexity tracker.ComplexityAnalysis, tr *tracker.Tracker, hooks *callback.SchedulerHooks) (string, error) {
	switch strategy {
	case tracker.StrategyLightPlanning:
		return s.executeLightPlanning(ctx, loop, conv, modelID, query, complexity, tr, hooks)
	case tracker.StrategyDeepReasoning:
		return s.executeDeepReasoning(ctx, loop, conv, modelID, query, complexity, tr, hooks)
	default:
		return s.executeDirect(ctx, loop, conv, modelID, query, tr, hooks)
	}
}

// executeDirect delegates straight to the Agent Loop. The tracker's
// compact context is prepended only on escalation re-entries (spec.md
// §4.7 "attempt count > 1").
func (s *Scheduler) executeDirect(ctx context.Context, loop *agentloop.Loop, conv *conversation.Conversation, modelID, query string, tr *tracker.Tracker, hooks *callback.SchedulerHooks) (string, error) {
	effectiveQuery := query
	if len(tr.Attempts) > 1 {
		effectiveQuery = tr.ToContextText(tracker.StrategyDirect, tracker.VerbosityCompact, 0, 0) + "\n\n" + query
	}
	return loop.Run(ctx, conv, modelID, effectiveQuery, s.bufferedLoopHooks(hooks, modelID))
}

// executeLightPlanning plans 1-2 steps and runs each through the Agent
// Loop, falling back to direct execution on an empty plan (spec.md
// §4.7 LIGHT).
func (s *Scheduler) executeLightPlanning(ctx context.Context, loop *agentloop.Loop, conv *conversation.Conversation, modelID, query string, complexity tracker.ComplexityAnalysis, tr *tracker.Tracker, hooks *callback.SchedulerHooks) (string, error) {
	hooks.PlanningStart()
	plan, err := s.deps.Planner.GeneratePlan(ctx, query, complexity, "light")
	if err != nil {
		return "", fmt.Errorf("scheduler: light planning failed: %w", err)
	}
	hooks.PlanningComplete(len(plan.Subtasks), "light")

	if len(plan.Subtasks) == 0 {
		return s.executeDirect(ctx, loop, conv, modelID, query, tr, hooks)
	}
	tr.SetPlan(plan, tracker.StrategyLightPlanning)

	maxIterations := 2

	var results []string
	for i := 0; i < maxIterations; i++ {
		pending := tr.Plan.PendingSteps()
		if len(pending) == 0 {
			break
		}
		step := pending[0]
		tr.UpdateStepStatus(step.ID, tracker.StepInProgress, nil)

		stepQuery := tr.ToContextText(tracker.StrategyLightPlanning, tracker.VerbosityMedium, 0, 0) + "\n\n" + step.Description
		result, err := loop.Run(ctx, conv, modelID, stepQuery, s.bufferedLoopHooks(hooks, modelID))
		if err != nil {
			return "", err
		}

		tr.UpdateStepStatus(step.ID, tracker.StepCompleted, []string{result})
		hooks.StepProgress(step.ID, tracker.StepCompleted, step.Description)
		results = append(results, result)
	}

	if len(results) == 1 {
		return results[0], nil
	}
	return s.deps.Synthesizer.Synthesize(ctx, query, results)
}

// executeDeepReasoning runs a full plan with per-iteration evaluation,
// folding the evaluator's additional_queries into the plan as new steps
// until the evaluator is satisfied or max_iterations is exhausted
// (spec.md §4.7 DEEP).
func (s *Scheduler) executeDeepReasoning(ctx context.Context, loop *agentloop.Loop, conv *conversation.Conversation, modelID, query string, complexity tracker.ComplexityAnalysis, tr *tracker.Tracker, hooks *callback.SchedulerHooks) (string, error) {
	hooks.PlanningStart()
	plan, err := s.deps.Planner.GeneratePlan(ctx, query, complexity, "deep")
	if err != nil {
		return "", fmt.Errorf("scheduler: deep planning failed: %w", err)
	}
	hooks.PlanningComplete(len(plan.Subtasks), "deep")
	tr.SetPlan(plan, tracker.StrategyDeepReasoning)

	maxIterations := s.cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 3
	}

	var results []string
	for iteration := 0; iteration < maxIterations; iteration++ {
		pending := tr.Plan.PendingSteps()
		if len(pending) == 0 {
			break
		}
		step := pending[0]
		tr.UpdateStepStatus(step.ID, tracker.StepInProgress, nil)

		stepQuery := tr.ToContextText(tracker.StrategyDeepReasoning, tracker.VerbosityFull, 0, 0) + "\n\n" + step.Description
		result, err := loop.Run(ctx, conv, modelID, stepQuery, s.bufferedLoopHooks(hooks, modelID))
		if err != nil {
			return "", err
		}

		tr.UpdateStepStatus(step.ID, tracker.StepCompleted, []string{result})
		hooks.StepProgress(step.ID, tracker.StepCompleted, step.Description)
		results = append(results, result)

		evaluation, err := s.deps.Evaluator.Evaluate(ctx, query, strings.Join(results, "\n\n"), tracker.StrategyDeepReasoning, complexity)
		if err != nil {
			return "", fmt.Errorf("scheduler: deep iteration evaluation failed: %w", err)
		}
		if evaluation.IsComplete {
			break
		}
		if len(evaluation.AdditionalQueries) > 0 && iteration < maxIterations-1 {
			for _, q := range evaluation.AdditionalQueries {
				tr.AddDynamicStep(q)
			}
		}
	}

	filtered, err := s.deps.Synthesizer.Filter(ctx, query, results)
	if err != nil {
		return "", fmt.Errorf("scheduler: result filtering failed: %w", err)
	}
	return s.deps.Synthesizer.Synthesize(ctx, query, filtered)
}

// bufferedLoopHooks wraps the caller's loop hooks so a scheduler
// sub-execution never streams token deltas (spec.md §4.7 "Buffering
// discipline") while still forwarding tool-call/tool-result/usage
// events, and billing each turn's usage to the conversation_cost
// bucket (spec.md §4.7 "Cost accounting").
func (s *Scheduler) bufferedLoopHooks(hooks *callback.SchedulerHooks, modelID string) *callback.LoopHooks {
	var outer *callback.LoopHooks
	if hooks != nil {
		outer = hooks.Loop
	}
	return &callback.LoopHooks{
		OnStart:      func() { outer.Start() },
		OnToolCall:   func(name string, input map[string]any) { outer.ToolCall(name, input) },
		OnToolResult: func(name, result string, success bool) { outer.ToolResult(name, result, success) },
		OnUsage: func(u callback.Usage) {
			if s.deps.CostCalc != nil && s.deps.Cost != nil {
				if dollars, err := s.deps.CostCalc.CalculateCost(modelID, u.Tokens.InputTokens, u.Tokens.OutputTokens); err == nil {
					s.deps.Cost.AddConversationCost(dollars)
				} else {
					s.deps.Log.Debug().Err(err).Str("model", modelID).Msg("conversation cost calculation skipped")
				}
			}
			outer.Usage(u)
		},
		// OnStreamChunk/OnStreamComplete are deliberately left nil: their
		// absence makes WantsStreaming() false, which is what suppresses
		// agentloop's streaming path during a buffered sub-execution.
	}
}

// fakeStream delivers the accepted answer to the caller's stream-chunk
// hook in 20-character pieces, preserving the visual streaming contract
// even though the answer was produced by a buffered call (spec.md
// §4.7 "Buffering discipline"). A no-op if the caller never asked for
// streaming.
func (s *Scheduler) fakeStream(hooks *callback.SchedulerHooks, response string) {
	if hooks == nil || hooks.Loop == nil || !hooks.Loop.WantsStreaming() {
		return
	}

	const chunkSize = 20
	delay := time.Duration(s.cfg.StreamChunkDelayMS) * time.Millisecond

	for i := 0; i < len(response); i += chunkSize {
		end := i + chunkSize
		if end > len(response) {
			end = len(response)
		}
		hooks.Loop.StreamChunk(response[i:end])
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	hooks.Loop.StreamComplete()
}
