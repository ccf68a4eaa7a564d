package tracker

import (
	"fmt"
	"strings"
)

// Verbosity is the level of detail to_context_text emits (spec.md §4.5).
type Verbosity string

const (
	VerbosityMinimal Verbosity = "minimal"
	VerbosityCompact Verbosity = "compact"
	VerbosityMedium  Verbosity = "medium"
	VerbosityFull    Verbosity = "full"
)

// ToContextText serializes tracker state to a human-prose report sized to
// verbosity. If verbosity is empty, it is derived from strategy: MINIMAL
// on the first attempt; COMPACT before a DIRECT re-entry; MEDIUM for
// LIGHT_PLANNING; FULL for DEEP_REASONING.
func (t *Tracker) ToContextText(strategy Strategy, verbosity Verbosity, maxAttempts, maxTools int) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if verbosity == "" {
		verbosity = t.autoVerbosity(strategy)
	}
	if maxAttempts == 0 {
		if verbosity == VerbosityFull {
			maxAttempts = 3
		} else {
			maxAttempts = 2
		}
	}
	if maxTools == 0 {
		if verbosity == VerbosityFull {
			maxTools = 50
		} else {
			maxTools = 20
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Research Progress Context\n\n")
	fmt.Fprintf(&b, "Query: %s\n", t.Query)
	fmt.Fprintf(&b, "Complexity: %s\n", t.Complexity.Level)
	fmt.Fprintf(&b, "Current Execution Level: %s\n", strategy)

	if verbosity == VerbosityMinimal {
		return strings.TrimRight(b.String(), "\n")
	}

	if verbosity == VerbosityCompact {
		b.WriteString("\n")
		b.WriteString(t.compactSummary())
		return strings.TrimRight(b.String(), "\n")
	}

	t.writeAttempts(&b, maxAttempts, verbosity)
	t.writePlanProgress(&b, verbosity)
	t.writeToolHistory(&b, maxTools, verbosity)
	t.writeInsights(&b, verbosity)
	t.writeGuidance(&b, strategy, verbosity)

	return strings.TrimRight(b.String(), "\n")
}

func (t *Tracker) autoVerbosity(strategy Strategy) Verbosity {
	if len(t.Attempts) <= 1 {
		return VerbosityMinimal
	}
	switch strategy {
	case StrategyDirect:
		return VerbosityCompact
	case StrategyLightPlanning:
		return VerbosityMedium
	default:
		return VerbosityFull
	}
}

// compactSummary is the one-line "N attempts, M tool calls, k/n steps"
// report plus top gaps and cached-result count (spec.md §4.5 COMPACT).
func (t *Tracker) compactSummary() string {
	completed, total := 0, 0
	if t.Plan != nil {
		completed = len(t.Plan.CompletedSteps())
		total = len(t.Plan.Steps)
	}
	line := fmt.Sprintf("Progress: %d attempts, %d tool calls, %d/%d steps done",
		len(t.Attempts), len(t.ToolExecutions), completed, total)

	var parts []string
	parts = append(parts, line)
	if len(t.Insights.KnowledgeGaps) > 0 {
		gaps := t.Insights.KnowledgeGaps
		if len(gaps) > 3 {
			gaps = gaps[:3]
		}
		parts = append(parts, "Gaps: "+strings.Join(gaps, ", "))
	}
	if len(t.toolResultCache) > 0 {
		parts = append(parts, fmt.Sprintf("Cached: %d results", len(t.toolResultCache)))
	}
	return strings.Join(parts, " | ")
}

func (t *Tracker) writeAttempts(b *strings.Builder, maxAttempts int, verbosity Verbosity) {
	if len(t.Attempts) == 0 {
		return
	}
	b.WriteString("\n## Previous Execution Attempts\n")

	priorAttempts := t.Attempts
	if len(priorAttempts) > 0 {
		priorAttempts = priorAttempts[:len(priorAttempts)-1]
	}
	shown := priorAttempts
	if len(shown) > maxAttempts {
		shown = shown[len(shown)-maxAttempts:]
	}

	for i, attempt := range shown {
		fmt.Fprintf(b, "\n### Attempt %d: %s\n", i+1, attempt.Strategy)
		fmt.Fprintf(b, "- Status: %s\n", attempt.Status)
		if attempt.Evaluation != nil {
			reasoning := attempt.Evaluation.Reasoning
			if len(reasoning) > 200 && verbosity != VerbosityFull {
				reasoning = reasoning[:200] + "..."
			}
			fmt.Fprintf(b, "- Evaluation: %s\n", reasoning)
			if len(attempt.Evaluation.MissingAspects) > 0 {
				missing := attempt.Evaluation.MissingAspects
				if verbosity != VerbosityFull && len(missing) > 3 {
					missing = missing[:3]
				}
				fmt.Fprintf(b, "- Missing Aspects: %s\n", strings.Join(missing, ", "))
			}
		}
		fmt.Fprintf(b, "- Outcome: %s\n", attempt.Outcome)
	}
}

func (t *Tracker) writePlanProgress(b *strings.Builder, verbosity Verbosity) {
	if t.Plan == nil || (verbosity != VerbosityMedium && verbosity != VerbosityFull) {
		return
	}
	b.WriteString("\n## Research Plan Progress\n")

	completed := t.Plan.CompletedSteps()
	pending := t.Plan.PendingSteps()
	fmt.Fprintf(b, "Plan Status: %d/%d steps completed\n", len(completed), len(t.Plan.Steps))

	if len(completed) > 0 {
		b.WriteString("\n### Completed Steps\n")
		shown := completed
		if verbosity != VerbosityFull && len(shown) > 5 {
			shown = shown[len(shown)-5:]
		}
		for _, step := range shown {
			fmt.Fprintf(b, "- %s\n", step.Description)
			if len(step.ToolsUsed) > 0 {
				fmt.Fprintf(b, "  Tools used: %s\n", strings.Join(step.ToolsUsed, ", "))
			}
		}
	}

	if len(pending) > 0 {
		b.WriteString("\n### Pending Steps\n")
		shown := pending
		if verbosity != VerbosityFull && len(shown) > 10 {
			shown = shown[:10]
		}
		for _, step := range shown {
			fmt.Fprintf(b, "- %s\n", step.Description)
		}
		if len(pending) > len(shown) {
			fmt.Fprintf(b, "...and %d more\n", len(pending)-len(shown))
		}
	}
}

func (t *Tracker) writeToolHistory(b *strings.Builder, maxTools int, verbosity Verbosity) {
	if len(t.ToolExecutions) == 0 || (verbosity != VerbosityMedium && verbosity != VerbosityFull) {
		return
	}
	b.WriteString("\n## Tool Execution History\n")

	var successful, failed []ToolExecution
	for _, e := range t.ToolExecutions {
		if e.Success {
			successful = append(successful, e)
		} else {
			failed = append(failed, e)
		}
	}
	fmt.Fprintf(b, "Total tool calls: %d (%d successful, %d failed)\n", len(t.ToolExecutions), len(successful), len(failed))

	if len(successful) > 0 {
		recent := successful
		if len(recent) > maxTools {
			recent = recent[len(recent)-maxTools:]
		}
		byTool := make(map[string][]ToolExecution)
		var order []string
		for _, e := range recent {
			if _, ok := byTool[e.ToolName]; !ok {
				order = append(order, e.ToolName)
			}
			byTool[e.ToolName] = append(byTool[e.ToolName], e)
		}
		b.WriteString("\n### Successful Tool Executions\n")
		for _, name := range order {
			execs := byTool[name]
			fmt.Fprintf(b, "- %s: %d call(s)\n", name, len(execs))
			latest := execs[len(execs)-1]
			if latest.Result != "" {
				maxLen := 100
				if verbosity == VerbosityFull {
					maxLen = 200
				}
				preview := latest.Result
				if len(preview) > maxLen {
					preview = preview[:maxLen] + "..."
				}
				fmt.Fprintf(b, "  Latest result: %s\n", preview)
			}
		}
	}

	if len(failed) > 0 {
		shown := failed
		if verbosity != VerbosityFull && len(shown) > 5 {
			shown = shown[len(shown)-5:]
		}
		b.WriteString("\n### Failed Tool Executions\n")
		for _, e := range shown {
			fmt.Fprintf(b, "- %s: %s\n", e.ToolName, e.Error)
		}
	}
}

func (t *Tracker) writeInsights(b *strings.Builder, verbosity Verbosity) {
	if verbosity != VerbosityMedium && verbosity != VerbosityFull {
		return
	}
	b.WriteString("\n## Accumulated Insights\n")

	if len(t.Insights.KnowledgeGaps) > 0 {
		gaps := t.Insights.KnowledgeGaps
		if verbosity != VerbosityFull && len(gaps) > 5 {
			gaps = gaps[:5]
		}
		b.WriteString("\n### Identified Knowledge Gaps\n")
		for _, gap := range gaps {
			fmt.Fprintf(b, "- %s\n", gap)
		}
	}

	if len(t.Insights.QualityFeedback) > 0 {
		feedback := t.Insights.QualityFeedback
		if verbosity != VerbosityFull && len(feedback) > 3 {
			feedback = feedback[len(feedback)-3:]
		}
		b.WriteString("\n### Quality Feedback from Previous Attempts\n")
		for _, f := range feedback {
			if len(f) > 150 && verbosity != VerbosityFull {
				f = f[:150] + "..."
			}
			fmt.Fprintf(b, "- %s\n", f)
		}
	}
}

func (t *Tracker) writeGuidance(b *strings.Builder, strategy Strategy, verbosity Verbosity) {
	if verbosity != VerbosityMedium && verbosity != VerbosityFull {
		return
	}
	if strategy == StrategyDirect {
		return
	}
	b.WriteString("\n## Guidance for Current Execution\n")
	b.WriteString("- Review completed steps and their findings above\n")
	b.WriteString("- Focus on identified knowledge gaps\n")
	b.WriteString("- Avoid redundant tool calls (check execution history)\n")
	b.WriteString("- Address quality feedback from previous evaluations\n")

	if len(t.Insights.RecommendedImprovements) > 0 {
		recs := t.Insights.RecommendedImprovements
		limit := 5
		if verbosity == VerbosityFull {
			limit = 10
		}
		if len(recs) > limit {
			recs = recs[:limit]
		}
		b.WriteString("\n### Recommended improvements\n")
		for _, r := range recs {
			fmt.Fprintf(b, "- %s\n", r)
		}
	}
}

// EstimateTokenCount applies the spec's 4-chars-per-token heuristic
// (Open Question 4: authoritative for deterministic tests).
func EstimateTokenCount(text string) int {
	return len(text) / 4
}

// GetContextTokenCount returns the estimated token count of the context
// text at the given verbosity.
func (t *Tracker) GetContextTokenCount(strategy Strategy, verbosity Verbosity) int {
	return EstimateTokenCount(t.ToContextText(strategy, verbosity, 0, 0))
}
