package tracker

import "time"

// ComplexityLevel mirrors the Analyzer's classification (pkg/scheduler
// owns the Analyzer; the tracker only stores and prints its verdict).
type ComplexityLevel string

const (
	ComplexityLow    ComplexityLevel = "low"
	ComplexityMedium ComplexityLevel = "medium"
	ComplexityHigh   ComplexityLevel = "high"
)

// ComplexityAnalysis is the Analyzer's verdict for the query this tracker
// was created for.
type ComplexityAnalysis struct {
	Level               ComplexityLevel `json:"complexity_level"`
	RecommendedStrategy Strategy        `json:"recommended_strategy"`
	Rationale           string          `json:"rationale"`
	EstimatedIterations int             `json:"estimated_iterations"`
	Confidence          float64         `json:"confidence"`
}

// EvaluationResult is the Evaluator's verdict on a candidate answer.
type EvaluationResult struct {
	IsComplete        bool     `json:"is_complete"`
	Confidence        float64  `json:"confidence"`
	Reasoning         string   `json:"reasoning"`
	AdditionalQueries []string `json:"additional_queries"`
	MissingAspects    []string `json:"missing_aspects"`
}

// AttemptStatus is the lifecycle state of one ExecutionAttempt.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptEscalated  AttemptStatus = "escalated"
)

// ExecutionAttempt records one strategy-level pass at answering the query.
type ExecutionAttempt struct {
	Strategy           Strategy          `json:"strategy"`
	StartedAt          time.Time         `json:"started_at"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
	Status             AttemptStatus     `json:"status"`
	Response           string            `json:"response,omitempty"`
	AccumulatedResults []string          `json:"accumulated_results"`
	Evaluation         *EvaluationResult `json:"evaluation,omitempty"`
	QualityScore       *float64          `json:"quality_score,omitempty"`
	Outcome            string            `json:"outcome"`
}

// ToolExecution records one tool call and its outcome.
type ToolExecution struct {
	ToolName          string         `json:"tool_name"`
	Arguments         map[string]any `json:"arguments"`
	ExecutedAt        time.Time      `json:"executed_at"`
	Strategy          Strategy       `json:"strategy"`
	Success           bool           `json:"success"`
	Result            string         `json:"result,omitempty"`
	Error             string         `json:"error,omitempty"`
	ExecutionTimeMS   float64        `json:"execution_time_ms"`
	ResultHash        string         `json:"result_hash"`
}

// StepStatus is a PlanStep's lifecycle state.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepSkipped    StepStatus = "skipped"
	StepFailed     StepStatus = "failed"
)

// PlanStep is one unit of work in a ResearchPlanSkeleton.
type PlanStep struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Findings    []string   `json:"findings"`
	ToolsUsed   []string   `json:"tools_used"`
	DependsOn   []string   `json:"depends_on"`
	SpawnedFrom string     `json:"spawned_from,omitempty"`
}

// PlanSkeleton is the high-level plan structure the tracker maintains
// across escalations, refined (not replaced) on each new plan submission.
type PlanSkeleton struct {
	CreatedAt         time.Time          `json:"created_at"`
	CreatedBy         Strategy           `json:"created_by"`
	Query             string             `json:"query"`
	ComplexityAnalysis ComplexityAnalysis `json:"complexity_analysis"`
	Steps             []PlanStep         `json:"steps"`
	CurrentStepID     string             `json:"current_step_id,omitempty"`
	RevisionCount     int                `json:"revision_count"`
	LastUpdated       time.Time          `json:"last_updated"`
}

// CompletedSteps returns all steps with status completed.
func (p *PlanSkeleton) CompletedSteps() []PlanStep {
	var out []PlanStep
	for _, s := range p.Steps {
		if s.Status == StepCompleted {
			out = append(out, s)
		}
	}
	return out
}

// PendingSteps returns all steps with status pending.
func (p *PlanSkeleton) PendingSteps() []PlanStep {
	var out []PlanStep
	for _, s := range p.Steps {
		if s.Status == StepPending {
			out = append(out, s)
		}
	}
	return out
}

// Insights accumulates cross-attempt findings and evaluator feedback.
type Insights struct {
	ConfirmedFacts          []string          `json:"confirmed_facts"`
	PartialFindings         []string          `json:"partial_findings"`
	KnowledgeGaps           []string          `json:"knowledge_gaps"`
	QualityFeedback         []string          `json:"quality_feedback"`
	RecommendedImprovements []string          `json:"recommended_improvements"`
	SuccessfulToolResults   map[string]string `json:"successful_tool_results"`
	FailedToolAttempts      map[string]string `json:"failed_tool_attempts"`
}

func newInsights() Insights {
	return Insights{
		SuccessfulToolResults: make(map[string]string),
		FailedToolAttempts:    make(map[string]string),
	}
}

func (i *Insights) addFromEvaluation(e EvaluationResult) {
	i.KnowledgeGaps = append(i.KnowledgeGaps, e.MissingAspects...)
	i.QualityFeedback = append(i.QualityFeedback, e.Reasoning)
	i.RecommendedImprovements = append(i.RecommendedImprovements, e.AdditionalQueries...)
}

// NewSubtask is the planner's proposed unit of work, before it becomes (or
// merges into) a PlanStep.
type NewSubtask struct {
	Query        string   `json:"query"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// NewPlan is a planner's proposed plan, submitted to SetPlan for initial
// adoption or merge-refinement.
type NewPlan struct {
	OriginalQuery string       `json:"original_query"`
	Subtasks      []NewSubtask `json:"subtasks"`
}
