package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateCostKnownModel(t *testing.T) {
	calc := NewTableCalculator(map[string]Rate{
		"test-model": {InputPerMillion: 10, OutputPerMillion: 20},
	})

	got, err := calc.CalculateCost("test-model", 1_000_000, 500_000)
	require.NoError(t, err)
	assert.InDelta(t, 10+10, got, 1e-9)
}

func TestCalculateCostUnknownModelErrors(t *testing.T) {
	calc := NewTableCalculator(DefaultAnthropicRates())
	_, err := calc.CalculateCost("nonexistent-model", 100, 100)
	assert.Error(t, err)
}

func TestAccumulatorTracksSeparateTotals(t *testing.T) {
	acc := &Accumulator{}
	acc.AddReasoningCost(1.5)
	acc.AddConversationCost(2.5)
	acc.AddSummarizationCost(0.5)

	reasoning, conversation, summarization, total := acc.Totals()
	assert.InDelta(t, 1.5, reasoning, 1e-9)
	assert.InDelta(t, 2.5, conversation, 1e-9)
	assert.InDelta(t, 0.5, summarization, 1e-9)
	assert.InDelta(t, 4.5, total, 1e-9)
}

func TestBudgetNotifierFiresEachLevelOnce(t *testing.T) {
	acc := &Accumulator{}
	notifier := NewBudgetNotifier(10.0)

	var levels []BudgetAlertLevel
	notifier.OnAlert(func(alert BudgetAlert) {
		levels = append(levels, alert.Level)
	})

	acc.AddConversationCost(5.5) // 55% -> info
	notifier.Check(acc)
	notifier.Check(acc) // same level, must not refire

	acc.AddConversationCost(5.0) // 105% -> exceeded (skips re-firing info)
	notifier.Check(acc)

	require.Len(t, levels, 2)
	assert.Equal(t, BudgetAlertInfo, levels[0])
	assert.Equal(t, BudgetAlertExceeded, levels[1])
}

func TestBudgetNotifierDisabledWhenBudgetZero(t *testing.T) {
	acc := &Accumulator{}
	acc.AddConversationCost(1000)
	notifier := NewBudgetNotifier(0)

	var called bool
	notifier.OnAlert(func(alert BudgetAlert) { called = true })
	notifier.Check(acc)

	assert.False(t, called)
}
