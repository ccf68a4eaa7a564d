package cost

import "sync"

// Accumulator holds the three running cost totals spec.md §3 attaches
// to a Session: reasoning_cost (scheduler's own analyzer/evaluator/
// synthesizer LLM calls), conversation_cost (C6's main turn calls),
// and summarization_cost (the summarization service). Safe for
// concurrent use; the Agent Loop and Reasoning Scheduler both add to it
// as responses arrive.
type Accumulator struct {
	mu                sync.Mutex
	reasoningCost     float64
	conversationCost  float64
	summarizationCost float64
}

// AddReasoningCost adds to the scheduler-attributed total.
func (a *Accumulator) AddReasoningCost(dollars float64) {
	a.mu.Lock()
	a.reasoningCost += dollars
	a.mu.Unlock()
}

// AddConversationCost adds to the main-turn-attributed total.
func (a *Accumulator) AddConversationCost(dollars float64) {
	a.mu.Lock()
	a.conversationCost += dollars
	a.mu.Unlock()
}

// AddSummarizationCost adds to the summarization-attributed total.
func (a *Accumulator) AddSummarizationCost(dollars float64) {
	a.mu.Lock()
	a.summarizationCost += dollars
	a.mu.Unlock()
}

// Totals returns a snapshot of the three running costs and their sum.
func (a *Accumulator) Totals() (reasoning, conversation, summarization, total float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reasoningCost, a.conversationCost, a.summarizationCost,
		a.reasoningCost + a.conversationCost + a.summarizationCost
}
