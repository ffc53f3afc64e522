package engine

import (
	workflow "github.com/goliatone/go-workflow"
)

// ValidateGraph checks a workflow's step graph at creation time: duplicate
// step ids, dangling next-step references and cycles are all rejected before
// the definition is accepted.
func ValidateGraph(wf *workflow.BusinessWorkflow) error {
	if wf == nil {
		return workflow.NewError(workflow.ErrWorkflowInvalid, "workflow is nil", nil, nil)
	}
	if len(wf.Steps) == 0 {
		return workflow.NewError(workflow.ErrWorkflowInvalid, "workflow "+wf.ID+" has no steps", nil, nil)
	}

	ids := make(map[string]bool, len(wf.Steps))
	for _, step := range wf.Steps {
		if step.ID == "" {
			return workflow.NewError(workflow.ErrWorkflowInvalid, "workflow "+wf.ID+" has a step without an id", nil, nil)
		}
		if ids[step.ID] {
			return workflow.NewError(
				workflow.ErrWorkflowInvalid,
				"duplicate step id "+step.ID,
				nil,
				map[string]any{"workflow_id": wf.ID, "step_id": step.ID},
			)
		}
		ids[step.ID] = true
	}

	for _, step := range wf.Steps {
		for _, next := range step.NextSteps {
			if !ids[next] {
				return workflow.NewError(
					workflow.ErrWorkflowInvalid,
					"step "+step.ID+" references unknown next step "+next,
					nil,
					map[string]any{"workflow_id": wf.ID, "step_id": step.ID, "next_step": next},
				)
			}
		}
		for _, cond := range step.Conditions {
			if cond.NextStep != "" && !ids[cond.NextStep] {
				return workflow.NewError(
					workflow.ErrWorkflowInvalid,
					"step "+step.ID+" condition references unknown next step "+cond.NextStep,
					nil,
					map[string]any{"workflow_id": wf.ID, "step_id": step.ID, "next_step": cond.NextStep},
				)
			}
		}
	}

	if cycle := findCycle(wf); cycle != "" {
		return workflow.NewError(
			workflow.ErrWorkflowInvalid,
			"step graph contains a cycle through "+cycle,
			nil,
			map[string]any{"workflow_id": wf.ID, "step_id": cycle},
		)
	}

	return nil
}

// ValidateFlow checks a data flow definition. Both creation paths run it,
// so programmatic and file-loaded flows are held to the same rules.
func ValidateFlow(flow *workflow.DataFlow) error {
	if flow == nil {
		return workflow.NewError(workflow.ErrWorkflowInvalid, "data flow is nil", nil, nil)
	}
	if flow.Name == "" {
		return workflow.NewError(workflow.ErrWorkflowInvalid, "data flow "+flow.ID+" has no name", nil, nil)
	}
	if flow.Source.System == "" || flow.Source.Entity == "" {
		return workflow.NewError(workflow.ErrWorkflowInvalid,
			"data flow "+flow.Name+" has an incomplete source", nil, nil)
	}
	if flow.Target.System == "" || flow.Target.Entity == "" {
		return workflow.NewError(workflow.ErrWorkflowInvalid,
			"data flow "+flow.Name+" has an incomplete target", nil, nil)
	}
	if flow.Schedule.Mode == workflow.SyncScheduled &&
		flow.Schedule.Expression == "" && flow.Schedule.Interval == 0 {
		return workflow.NewError(workflow.ErrWorkflowInvalid,
			"scheduled data flow "+flow.Name+" needs a cron expression or interval", nil, nil)
	}
	switch flow.ConflictResolution.Strategy {
	case "", workflow.ConflictSourceWins, workflow.ConflictTargetWins,
		workflow.ConflictLatestWins, workflow.ConflictManual, workflow.ConflictCustom:
	default:
		return workflow.NewError(workflow.ErrWorkflowInvalid,
			"data flow "+flow.Name+" has unknown conflict strategy "+string(flow.ConflictResolution.Strategy), nil, nil)
	}
	return nil
}

// findCycle runs a coloring DFS over the edge set (next steps plus
// condition branches) and returns a step id on a cycle, or "".
func findCycle(wf *workflow.BusinessWorkflow) string {
	const (
		white = 0 // unvisited
		grey  = 1 // on the current path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(wf.Steps))

	edges := func(id string) []string {
		step, ok := wf.Step(id)
		if !ok {
			return nil
		}
		out := append([]string(nil), step.NextSteps...)
		for _, cond := range step.Conditions {
			if cond.NextStep != "" {
				out = append(out, cond.NextStep)
			}
		}
		return out
	}

	var visit func(id string) string
	visit = func(id string) string {
		color[id] = grey
		for _, next := range edges(id) {
			switch color[next] {
			case grey:
				return next
			case white:
				if hit := visit(next); hit != "" {
					return hit
				}
			}
		}
		color[id] = black
		return ""
	}

	for _, step := range wf.Steps {
		if color[step.ID] == white {
			if hit := visit(step.ID); hit != "" {
				return hit
			}
		}
	}
	return ""
}
