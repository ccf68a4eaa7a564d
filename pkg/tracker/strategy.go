package tracker

// Strategy names the reasoning escalation tier an execution attempt ran
// at (spec.md §4.7). Defined here, not in pkg/scheduler, because the
// tracker's context emission keys off it and the scheduler depends on
// the tracker, not the reverse.
type Strategy string

const (
	StrategyDirect        Strategy = "direct"
	StrategyLightPlanning Strategy = "light_planning"
	StrategyDeepReasoning Strategy = "deep_reasoning"
)

func (s Strategy) String() string { return string(s) }
