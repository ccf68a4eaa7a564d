package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/driftloop/agentcore/pkg/cost"
	"github.com/driftloop/agentcore/pkg/model"
	"github.com/driftloop/agentcore/pkg/tracker"
)

// reasoningModel is the shared plumbing every LLM-backed port
// (Analyzer/Planner/Evaluator/Synthesizer) uses: one buffered
// completion call, its usage billed to the Accumulator's
// reasoning_cost bucket (spec.md §4.7 "Cost accounting"), and a
// JSON body pulled out of the raw response text the way the teacher's
// Planner.parsePlan does (strip a ```json or ``` fence, then unmarshal).
type reasoningModel struct {
	client   model.Client
	modelID  string
	costCalc cost.CostCalculator
	accum    *cost.Accumulator
	log      zerolog.Logger
}

func (r *reasoningModel) complete(ctx context.Context, system, user string) (string, error) {
	req := model.CompletionRequest{
		Model:       r.modelID,
		System:      system,
		Messages:    []model.Message{{Role: model.RoleUser, Content: []model.ContentBlock{model.Text(user)}}},
		Temperature: 0.2,
		MaxTokens:   2048,
	}
	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	if r.costCalc != nil && r.accum != nil {
		if dollars, err := r.costCalc.CalculateCost(r.modelID, resp.Usage.InputTokens, resp.Usage.OutputTokens); err == nil {
			r.accum.AddReasoningCost(dollars)
		} else {
			r.log.Debug().Err(err).Str("model", r.modelID).Msg("reasoning cost calculation skipped")
		}
	}

	var b strings.Builder
	for _, block := range resp.Message.Content {
		if block.Kind == model.BlockText {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// extractJSON strips a ```json or ``` fenced code block if present,
// mirroring the teacher's Planner.parsePlan.
func extractJSON(content string) string {
	if strings.Contains(content, "```json") {
		start := strings.Index(content, "```json") + len("```json")
		if end := strings.Index(content[start:], "```"); end > 0 {
			return content[start : start+end]
		}
	} else if strings.Contains(content, "```") {
		start := strings.Index(content, "```") + len("```")
		if end := strings.Index(content[start:], "```"); end > 0 {
			return content[start : start+end]
		}
	}
	return content
}

// NewReasoningPorts builds an Analyzer, Planner, Evaluator, and
// Synthesizer that all share one model client/id and bill their calls
// to accum's reasoning_cost bucket.
func NewReasoningPorts(client model.Client, modelID string, costCalc cost.CostCalculator, accum *cost.Accumulator, log zerolog.Logger) (Analyzer, Planner, Evaluator, Synthesizer) {
	rm := &reasoningModel{client: client, modelID: modelID, costCalc: costCalc, accum: accum, log: log}
	return &llmAnalyzer{rm}, &llmPlanner{rm}, &llmEvaluator{rm}, &llmSynthesizer{rm}
}

const analyzerSystemPrompt = `You are a triage classifier for an agent runtime. Given a user query, ` +
	`assess how much reasoning effort it deserves. Respond with JSON only:
{"complexity_level": "low"|"medium"|"high", "recommended_strategy": "direct"|"light_planning"|"deep_reasoning", "estimated_iterations": <int>, "confidence": <0-1>, "rationale": "<one sentence>"}`

type llmAnalyzer struct{ rm *reasoningModel }

func (a *llmAnalyzer) Analyze(ctx context.Context, query string) (tracker.ComplexityAnalysis, error) {
	raw, err := a.rm.complete(ctx, analyzerSystemPrompt, query)
	if err != nil {
		return tracker.ComplexityAnalysis{}, fmt.Errorf("scheduler: analyzer call failed: %w", err)
	}

	var out tracker.ComplexityAnalysis
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
		return tracker.ComplexityAnalysis{}, fmt.Errorf("scheduler: failed to parse analyzer response: %w", err)
	}
	return out, nil
}

const plannerSystemPromptTemplate = `You are a planner for an agent runtime working in %s mode. ` +
	`Break the user's query into %s independent or sequential subtasks. Respond with JSON only:
{"subtasks": [{"query": "<subtask query>", "dependencies": ["<subtask query this depends on>", ...]}]}`

type llmPlanner struct{ rm *reasoningModel }

func (p *llmPlanner) GeneratePlan(ctx context.Context, query string, complexity tracker.ComplexityAnalysis, mode string) (tracker.NewPlan, error) {
	stepBudget := "1-2"
	if mode == "deep" {
		stepBudget = "up to several"
	}
	system := fmt.Sprintf(plannerSystemPromptTemplate, mode, stepBudget)
	prompt := fmt.Sprintf("Query: %s\nComplexity: %s (%s)", query, complexity.Level, complexity.Rationale)

	raw, err := p.rm.complete(ctx, system, prompt)
	if err != nil {
		return tracker.NewPlan{}, fmt.Errorf("scheduler: planner call failed: %w", err)
	}

	var parsed struct {
		Subtasks []tracker.NewSubtask `json:"subtasks"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return tracker.NewPlan{}, fmt.Errorf("scheduler: failed to parse planner response: %w", err)
	}
	return tracker.NewPlan{OriginalQuery: query, Subtasks: parsed.Subtasks}, nil
}

const evaluatorSystemPrompt = `You judge whether a candidate answer fully addresses the user's query. Respond with JSON only:
{"is_complete": <bool>, "confidence": <0-1>, "reasoning": "<one or two sentences>", "additional_queries": ["<follow-up question>", ...], "missing_aspects": ["<gap>", ...]}`

type llmEvaluator struct{ rm *reasoningModel }

func (e *llmEvaluator) Evaluate(ctx context.Context, query, response string, strategy tracker.Strategy, complexity tracker.ComplexityAnalysis) (tracker.EvaluationResult, error) {
	prompt := fmt.Sprintf("Query: %s\nStrategy used: %s\nCandidate answer:\n%s", query, strategy, response)

	raw, err := e.rm.complete(ctx, evaluatorSystemPrompt, prompt)
	if err != nil {
		return tracker.EvaluationResult{}, fmt.Errorf("scheduler: evaluator call failed: %w", err)
	}

	var out tracker.EvaluationResult
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
		return tracker.EvaluationResult{}, fmt.Errorf("scheduler: failed to parse evaluator response: %w", err)
	}
	return out, nil
}

const synthesizerSystemPrompt = `Combine the following subtask results into one coherent answer to the original query. ` +
	`Do not mention the subtasks or the planning process; answer directly.`

const filterSystemPrompt = `Given the original query and a list of candidate findings, return JSON only with the ` +
	`findings that are actually relevant to answering the query, in their original order:
{"relevant": ["<finding text, verbatim>", ...]}`

type llmSynthesizer struct{ rm *reasoningModel }

func (s *llmSynthesizer) Synthesize(ctx context.Context, query string, results []string) (string, error) {
	if len(results) == 0 {
		return "", nil
	}
	if len(results) == 1 {
		return results[0], nil
	}
	prompt := fmt.Sprintf("Original query: %s\n\nSubtask results:\n%s", query, joinNumbered(results))
	out, err := s.rm.complete(ctx, synthesizerSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("scheduler: synthesizer call failed: %w", err)
	}
	return out, nil
}

func (s *llmSynthesizer) Filter(ctx context.Context, query string, results []string) ([]string, error) {
	if len(results) <= 1 {
		return results, nil
	}
	prompt := fmt.Sprintf("Original query: %s\n\nCandidate findings:\n%s", query, joinNumbered(results))
	raw, err := s.rm.complete(ctx, filterSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("scheduler: filter call failed: %w", err)
	}

	var parsed struct {
		Relevant []string `json:"relevant"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil || len(parsed.Relevant) == 0 {
		return results, nil
	}
	return parsed.Relevant, nil
}

func joinNumbered(items []string) string {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item)
	}
	return b.String()
}
