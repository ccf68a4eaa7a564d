package tracker

import (
	"fmt"
	"strings"
	"time"
)

var ordinalPrefixes = []string{"step", "task", "subtask", "1.", "2.", "3.", "4.", "5."}

// normalizeStepDescription lowercases, collapses whitespace, and strips a
// leading ordinal/label prefix, per spec.md §4.5 step 2.
func normalizeStepDescription(description string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(description))), " ")
	for _, prefix := range ordinalPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			normalized = strings.TrimSpace(strings.TrimLeft(normalized[len(prefix):], ":"))
		}
	}
	return normalized
}

// jaccardSimilar reports whether two descriptions' normalized word sets
// overlap at or above threshold, per spec.md §4.5 step 3b.
func jaccardSimilar(desc1, desc2 string, threshold float64) bool {
	words1 := wordSet(normalizeStepDescription(desc1))
	words2 := wordSet(normalizeStepDescription(desc2))
	if len(words1) == 0 || len(words2) == 0 {
		return false
	}

	intersection := 0
	for w := range words1 {
		if _, ok := words2[w]; ok {
			intersection++
		}
	}
	union := len(words1) + len(words2) - intersection
	if union == 0 {
		return false
	}
	return float64(intersection)/float64(union) >= threshold
}

func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		out[w] = struct{}{}
	}
	return out
}

// SetPlan adopts plan as the tracker's plan skeleton if none exists yet,
// or merges it into the existing skeleton (spec.md §4.5 Plan merge
// algorithm).
func (t *Tracker) SetPlan(plan NewPlan, strategy Strategy) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Plan == nil {
		steps := make([]PlanStep, 0, len(plan.Subtasks))
		for i, subtask := range plan.Subtasks {
			steps = append(steps, PlanStep{
				ID:          fmt.Sprintf("step_%d", i),
				Description: subtask.Query,
				Status:      StepPending,
			})
		}
		t.Plan = &PlanSkeleton{
			CreatedAt:          time.Now(),
			CreatedBy:          strategy,
			Query:              plan.OriginalQuery,
			ComplexityAnalysis: t.Complexity,
			Steps:              steps,
			LastUpdated:        time.Now(),
		}
		return
	}

	t.refinePlan(plan)
}

// refinePlan implements the exact 5-step merge procedure:
//  1. Partition existing steps into preserved (completed/in-progress) and
//     mutable (pending/failed).
//  2. Normalize each new subtask description.
//  3. For each new subtask: reuse an exact-match preserved step, else a
//     Jaccard->=0.7 mutable-step match (updating its description), else
//     create a fresh step with a spawned_from link to the current step.
//  4. Any remaining pending step with no match in the new plan is marked
//     skipped.
//  5. revision_count += 1, last_updated = now.
func (t *Tracker) refinePlan(newPlan NewPlan) {
	plan := t.Plan

	preserved := make(map[string]struct{})
	for i := range plan.Steps {
		if plan.Steps[i].Status == StepCompleted || plan.Steps[i].Status == StepInProgress {
			preserved[plan.Steps[i].ID] = struct{}{}
		}
	}

	existingByDesc := make(map[string]int) // normalized desc -> index in plan.Steps
	for i := range plan.Steps {
		existingByDesc[normalizeStepDescription(plan.Steps[i].Description)] = i
	}

	var matchedSteps []PlanStep
	var newSteps []PlanStep
	matchedNewDescriptions := make(map[string]struct{})

	for _, subtask := range newPlan.Subtasks {
		normalized := normalizeStepDescription(subtask.Query)
		matchedNewDescriptions[normalized] = struct{}{}

		if idx, ok := existingByDesc[normalized]; ok {
			matchedSteps = append(matchedSteps, plan.Steps[idx])
			continue
		}

		if idx := findSimilarStepIndex(subtask.Query, plan.Steps); idx >= 0 {
			step := &plan.Steps[idx]
			if step.Status == StepPending || step.Status == StepFailed {
				step.Description = subtask.Query
				matchedSteps = append(matchedSteps, *step)
			}
			continue
		}

		newStep := PlanStep{
			ID:          fmt.Sprintf("step_%d", len(plan.Steps)+len(newSteps)),
			Description: subtask.Query,
			Status:      StepPending,
			DependsOn:   extractDependencies(subtask, matchedSteps),
			SpawnedFrom: plan.CurrentStepID,
		}
		newSteps = append(newSteps, newStep)
	}

	for i := range plan.Steps {
		step := &plan.Steps[i]
		if step.Status != StepPending {
			continue
		}
		if _, preservedID := preserved[step.ID]; preservedID {
			continue
		}
		normalized := normalizeStepDescription(step.Description)
		if _, matched := matchedNewDescriptions[normalized]; matched {
			continue
		}
		similar := false
		for _, subtask := range newPlan.Subtasks {
			if jaccardSimilar(step.Description, subtask.Query, 0.7) {
				similar = true
				break
			}
		}
		if !similar {
			step.Status = StepSkipped
		}
	}

	plan.Steps = append(plan.Steps, newSteps...)
	plan.RevisionCount++
	plan.LastUpdated = time.Now()
}

// AddDynamicStep appends a fresh pending step spawned from the current
// step, skipping it if an existing step already covers the same ground
// (exact normalized match or Jaccard>=0.7), and returns the step's ID.
// Used by the scheduler to fold an evaluator's additional_queries into
// the plan mid-run (spec.md §4.7 DEEP_REASONING Phase 4).
func (t *Tracker) AddDynamicStep(description string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Plan == nil {
		t.Plan = &PlanSkeleton{CreatedAt: time.Now(), CreatedBy: t.currentStrategy, Query: t.Query, ComplexityAnalysis: t.Complexity, LastUpdated: time.Now()}
	}

	normalized := normalizeStepDescription(description)
	for _, step := range t.Plan.Steps {
		if normalizeStepDescription(step.Description) == normalized {
			return step.ID
		}
		if jaccardSimilar(step.Description, description, 0.7) {
			return step.ID
		}
	}

	id := fmt.Sprintf("step_%d", len(t.Plan.Steps))
	t.Plan.Steps = append(t.Plan.Steps, PlanStep{
		ID:          id,
		Description: description,
		Status:      StepPending,
		SpawnedFrom: t.Plan.CurrentStepID,
	})
	t.Plan.LastUpdated = time.Now()
	return id
}

func findSimilarStepIndex(description string, steps []PlanStep) int {
	for i := range steps {
		if jaccardSimilar(description, steps[i].Description, 0.7) {
			return i
		}
	}
	return -1
}

// extractDependencies resolves a subtask's explicit dependency
// descriptions against already-matched steps using the same similarity
// rule (spec.md §4.5 Dependency inference).
func extractDependencies(subtask NewSubtask, matchedSteps []PlanStep) []string {
	if len(subtask.Dependencies) == 0 {
		return nil
	}
	var depIDs []string
	for _, depDesc := range subtask.Dependencies {
		for _, step := range matchedSteps {
			if jaccardSimilar(depDesc, step.Description, 0.7) {
				depIDs = append(depIDs, step.ID)
			}
		}
	}
	return depIDs
}
