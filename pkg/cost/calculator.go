// Package cost implements the C9 cost calculator: a pure function from
// a model identifier and token counts to a dollar amount (spec.md
// §4.7 "Cost accounting"), plus the per-session accumulators
// (reasoning_cost, conversation_cost, summarization_cost) that every
// LLM response's usage feeds into. Ported from the teacher's
// pkg/cost/tracker.go, which coupled cost tracking to a SQLite-backed
// costStore for session/daily/monthly persistence; that persistence
// belongs to the Session aggregate and its State Provider (C8/C9), not
// to the calculator itself, so CostCalculator here has no storage
// dependency at all.
package cost

import "fmt"

// Rate is one model's per-million-token pricing in USD.
type Rate struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// CostCalculator converts token usage to a dollar amount for one model.
type CostCalculator interface {
	CalculateCost(model string, inputTokens, outputTokens int) (float64, error)
}

// TableCalculator is a CostCalculator backed by a static rate table,
// the same shape as the teacher's model-catalog-driven pricing lookup.
type TableCalculator struct {
	rates map[string]Rate
}

// NewTableCalculator builds a calculator from model -> Rate. Unknown
// models at calculate-time return an error rather than a silent zero,
// so a misconfigured model ID surfaces immediately instead of quietly
// under-billing.
func NewTableCalculator(rates map[string]Rate) *TableCalculator {
	return &TableCalculator{rates: rates}
}

// DefaultAnthropicRates returns the published per-million-token rates
// for the Claude models this runtime targets.
func DefaultAnthropicRates() map[string]Rate {
	return map[string]Rate{
		"claude-opus-4-6":   {InputPerMillion: 15.00, OutputPerMillion: 75.00},
		"claude-sonnet-4-6": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
		"claude-haiku-4-6":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	}
}

func (c *TableCalculator) CalculateCost(model string, inputTokens, outputTokens int) (float64, error) {
	rate, ok := c.rates[model]
	if !ok {
		return 0, fmt.Errorf("cost: no rate configured for model %q", model)
	}
	return float64(inputTokens)/1_000_000*rate.InputPerMillion +
		float64(outputTokens)/1_000_000*rate.OutputPerMillion, nil
}
