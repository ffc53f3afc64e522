package engine

import (
	"fmt"
	"time"

	workflow "github.com/goliatone/go-workflow"
)

const (
	// sequential chains longer than this are parallelization candidates
	parallelCandidateThreshold = 5
	// success rates below this flag a workflow for better error handling
	degradedSuccessRate = 0.8
)

// Analyze mines historical execution metrics for bottlenecks and
// optimization opportunities. Pure function over workflow state; it never
// mutates anything.
func Analyze(workflows []*workflow.BusinessWorkflow) *workflow.WorkflowAnalytics {
	analytics := &workflow.WorkflowAnalytics{
		PerformanceBySystem: make(map[string]workflow.SystemPerformance),
	}

	type systemAgg struct {
		workflows map[string]bool
		steps     int
		rateSum   float64
		rateCount int
		durSum    time.Duration
		durCount  int
	}
	bySystem := make(map[string]*systemAgg)

	for _, wf := range workflows {
		var snap workflow.PerformanceSnapshot
		if wf.Performance != nil {
			snap = wf.Performance.Snapshot()
		}

		if sequential := sequentialStepCount(wf); sequential > parallelCandidateThreshold {
			analytics.Opportunities = append(analytics.Opportunities, workflow.Opportunity{
				WorkflowID: wf.ID,
				Kind:       "parallelization",
				Suggestion: fmt.Sprintf("%d sequential steps; consider a parallel fan-out for independent steps", sequential),
			})
		}

		if snap.TotalExecutions > 0 && snap.SuccessRate < degradedSuccessRate {
			analytics.Bottlenecks = append(analytics.Bottlenecks, workflow.Bottleneck{
				WorkflowID: wf.ID,
				Reason:     "success rate below threshold",
				Metric:     snap.SuccessRate,
			})
			analytics.Opportunities = append(analytics.Opportunities, workflow.Opportunity{
				WorkflowID: wf.ID,
				Kind:       "error_handling",
				Suggestion: fmt.Sprintf("success rate %.2f; add retry policies or fallback actions to failing steps", snap.SuccessRate),
			})
		}

		for _, step := range wf.Steps {
			if step.System == "" {
				continue
			}
			agg, ok := bySystem[step.System]
			if !ok {
				agg = &systemAgg{workflows: make(map[string]bool)}
				bySystem[step.System] = agg
			}
			agg.workflows[wf.ID] = true
			agg.steps++
			if snap.TotalExecutions > 0 {
				agg.rateSum += snap.SuccessRate
				agg.rateCount++
				agg.durSum += snap.AverageCompletion
				agg.durCount++
			}
		}
	}

	for system, agg := range bySystem {
		perf := workflow.SystemPerformance{
			Workflows: len(agg.workflows),
			StepCount: agg.steps,
		}
		if agg.rateCount > 0 {
			perf.SuccessRate = agg.rateSum / float64(agg.rateCount)
		}
		if agg.durCount > 0 {
			perf.AvgDuration = agg.durSum / time.Duration(agg.durCount)
		}
		analytics.PerformanceBySystem[system] = perf
	}

	return analytics
}

// sequentialStepCount measures the longest default-edge chain, skipping
// parallel fan-outs which already run concurrently.
func sequentialStepCount(wf *workflow.BusinessWorkflow) int {
	first, ok := wf.FirstStep()
	if !ok {
		return 0
	}

	count := 0
	seen := make(map[string]bool)
	current := first.ID
	for current != "" && !seen[current] {
		seen[current] = true
		step, found := wf.Step(current)
		if !found {
			break
		}
		if step.Type == workflow.StepParallel {
			break
		}
		count++
		if len(step.NextSteps) == 0 {
			break
		}
		current = step.NextSteps[0]
	}
	return count
}
