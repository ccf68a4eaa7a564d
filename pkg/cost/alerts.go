package cost

import "sync"

// BudgetAlertLevel indicates the severity of a budget alert.
type BudgetAlertLevel string

const (
	BudgetAlertInfo     BudgetAlertLevel = "info"
	BudgetAlertWarning  BudgetAlertLevel = "warning"
	BudgetAlertCritical BudgetAlertLevel = "critical"
	BudgetAlertExceeded BudgetAlertLevel = "exceeded"
)

// BudgetAlert describes a session-budget threshold crossing.
type BudgetAlert struct {
	Level   BudgetAlertLevel
	Total   float64
	Budget  float64
	Percent float64
}

// BudgetAlertCallback receives budget alerts, e.g. a C10 UI adapter's
// on_budget_alert hook.
type BudgetAlertCallback func(alert BudgetAlert)

// BudgetNotifier watches an Accumulator's running total against one
// session budget and fires each threshold level at most once. Ported
// from the teacher's pkg/cost BudgetNotifier, trimmed of the
// daily/monthly tiers: those were coupled to the teacher's persistent
// costStore, and spec.md's Session aggregate has no daily/monthly cost
// fields, only the three per-session accumulators in accumulator.go.
type BudgetNotifier struct {
	mu         sync.Mutex
	budget     float64
	thresholds map[BudgetAlertLevel]float64
	callbacks  []BudgetAlertCallback
	fired      map[BudgetAlertLevel]bool
}

// NewBudgetNotifier creates a notifier for the given session budget
// (in dollars; <= 0 disables alerting entirely).
func NewBudgetNotifier(budget float64) *BudgetNotifier {
	return &BudgetNotifier{
		budget:     budget,
		thresholds: defaultBudgetThresholds(),
		fired:      make(map[BudgetAlertLevel]bool),
	}
}

// OnAlert registers a callback for budget alerts.
func (bn *BudgetNotifier) OnAlert(cb BudgetAlertCallback) {
	if cb == nil {
		return
	}
	bn.mu.Lock()
	bn.callbacks = append(bn.callbacks, cb)
	bn.mu.Unlock()
}

// Check evaluates the accumulator's total cost and fires the highest
// threshold level the total has reached, if that level has not fired
// before. Lower levels passed over in the same jump are not fired.
func (bn *BudgetNotifier) Check(acc *Accumulator) {
	if bn.budget <= 0 {
		return
	}
	_, _, _, total := acc.Totals()
	percent := total / bn.budget * 100

	bn.mu.Lock()
	level := bn.levelForPercentLocked(percent)
	var alert *BudgetAlert
	if level != "" && !bn.fired[level] {
		bn.fired[level] = true
		alert = &BudgetAlert{Level: level, Total: total, Budget: bn.budget, Percent: percent}
	}
	callbacks := append([]BudgetAlertCallback(nil), bn.callbacks...)
	bn.mu.Unlock()

	if alert == nil {
		return
	}
	for _, cb := range callbacks {
		cb(*alert)
	}
}

func (bn *BudgetNotifier) levelForPercentLocked(percent float64) BudgetAlertLevel {
	if percent >= bn.thresholds[BudgetAlertExceeded] {
		return BudgetAlertExceeded
	}
	if percent >= bn.thresholds[BudgetAlertCritical] {
		return BudgetAlertCritical
	}
	if percent >= bn.thresholds[BudgetAlertWarning] {
		return BudgetAlertWarning
	}
	if percent >= bn.thresholds[BudgetAlertInfo] {
		return BudgetAlertInfo
	}
	return ""
}

func defaultBudgetThresholds() map[BudgetAlertLevel]float64 {
	return map[BudgetAlertLevel]float64{
		BudgetAlertInfo:     50,
		BudgetAlertWarning:  75,
		BudgetAlertCritical: 90,
		BudgetAlertExceeded: 100,
	}
}
