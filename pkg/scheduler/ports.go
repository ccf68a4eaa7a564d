// Package scheduler implements the Reasoning Scheduler (C7, spec.md
// §4.7): the adaptive DIRECT/LIGHT_PLANNING/DEEP_REASONING escalation
// loop that wraps the Agent Loop (pkg/agentloop), buffers candidate
// answers, evaluates their quality, and streams only the accepted
// answer to the caller.
//
// Grounded on the teacher's pkg/orchestrator/complexity.go (weighted
// heuristic scoring, here generalized into an LLM-backed Analyzer) and
// pkg/orchestrator/planner.go (LLM call producing a JSON plan, parsed
// with markdown-fence stripping), with the exact escalation control
// flow ported from original_source's reasoning_loop.py
// (AdaptiveReasoningLoop.run / _execute_direct / _execute_light_planning
// / _execute_deep_reasoning / _evaluate_response_quality).
package scheduler

import (
	"context"

	"github.com/driftloop/agentcore/pkg/tracker"
)

// Analyzer classifies a query's complexity and recommends a starting
// strategy (spec.md §4.7 "analyze(query)").
type Analyzer interface {
	Analyze(ctx context.Context, query string) (tracker.ComplexityAnalysis, error)
}

// Planner produces a candidate plan for LIGHT_PLANNING or DEEP_REASONING
// execution. mode is "light" or "deep" and shapes how many subtasks the
// planner is asked to propose.
type Planner interface {
	GeneratePlan(ctx context.Context, query string, complexity tracker.ComplexityAnalysis, mode string) (tracker.NewPlan, error)
}

// Evaluator judges a candidate answer's completeness and confidence.
type Evaluator interface {
	Evaluate(ctx context.Context, query, response string, strategy tracker.Strategy, complexity tracker.ComplexityAnalysis) (tracker.EvaluationResult, error)
}

// Synthesizer combines accumulated subtask results into one answer, and
// filters a result set down to what is actually relevant before
// synthesis (spec.md §4.7 DEEP "filtering results then combining").
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, results []string) (string, error)
	Filter(ctx context.Context, query string, results []string) ([]string, error)
}

// ReasoningConfig carries the tunables spec.md §6 lists for the
// scheduler: per-strategy quality floors, the DEEP iteration cap, and
// an optional forced starting strategy for debugging.
type ReasoningConfig struct {
	MaxIterations    int
	MinQualityDirect float64
	MinQualityLight  float64
	MinQualityDeep   float64
	MinConfidence    float64
	ForceStrategy    tracker.Strategy // empty = none

	// StreamChunkDelayMS paces the fake-stream-on-acceptance delivery
	// (spec.md §4.7 "fake chunks of size 20 with a small delay"). Zero
	// disables the delay, which test suites want.
	StreamChunkDelayMS int
}

// DefaultReasoningConfig returns spec.md §6's defaults.
func DefaultReasoningConfig() ReasoningConfig {
	return ReasoningConfig{
		MaxIterations:      3,
		MinQualityDirect:   0.60,
		MinQualityLight:    0.65,
		MinQualityDeep:     0.60,
		MinConfidence:      0.60,
		StreamChunkDelayMS: 20,
	}
}

func (c ReasoningConfig) thresholdFor(strategy tracker.Strategy) float64 {
	switch strategy {
	case tracker.StrategyDirect:
		return c.MinQualityDirect
	case tracker.StrategyLightPlanning:
		return c.MinQualityLight
	default:
		return c.MinQualityDeep
	}
}

// nextStrategy implements spec.md §4.7's escalation order:
// DIRECT -> LIGHT_PLANNING -> DEEP_REASONING, staying at DEEP_REASONING
// thereafter (the control loop never actually calls this once at DEEP,
// since a DEEP attempt always terminates the run).
func nextStrategy(strategy tracker.Strategy) tracker.Strategy {
	switch strategy {
	case tracker.StrategyDirect:
		return tracker.StrategyLightPlanning
	default:
		return tracker.StrategyDeepReasoning
	}
}
