package engine

import (
	"context"
	"sync"

	workflow "github.com/goliatone/go-workflow"
	"github.com/goliatone/go-workflow/condition"
)

// ExecuteWorkflow runs one workflow instance against trigger data and
// returns a structured result. Failure is a value on the result, never an
// error; the error return covers lookup problems only.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID string, triggerData map[string]any) (*workflow.ExecutionResult, error) {
	wf, err := e.workflows.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, wf, triggerData), nil
}

func (e *Engine) execute(ctx context.Context, wf *workflow.BusinessWorkflow, triggerData map[string]any) *workflow.ExecutionResult {
	result := &workflow.ExecutionResult{
		ExecutionID: e.newID(),
		WorkflowID:  wf.ID,
		StartedAt:   e.now(),
	}

	if wf.Status != workflow.StatusActive {
		result.Reason = "workflow is not active"
		return result
	}

	// The trigger gate returns before any metrics update: a mismatch is a
	// no-op, not a recorded execution.
	if !e.triggersMatch(wf, triggerData) {
		result.Reason = "trigger conditions not met"
		return result
	}

	first, ok := wf.FirstStep()
	if !ok {
		result.Reason = "workflow has no steps"
		return result
	}

	perf := wf.Performance
	if perf != nil {
		perf.InstanceStarted()
	}

	execCtx := &workflow.ExecutionContext{
		ExecutionID: result.ExecutionID,
		WorkflowID:  wf.ID,
		TriggerData: triggerData,
		StepOutputs: make(map[string]any),
		StartedAt:   result.StartedAt,
	}

	log := workflow.WithLoggerFields(e.logger, map[string]any{
		"workflow_id":  wf.ID,
		"execution_id": result.ExecutionID,
	})
	log.Debug("execution started at step %s", first.ID)

	path, walkErr := e.runSteps(ctx, wf, first.ID, "", execCtx)
	result.ExecutionPath = path
	result.Success = walkErr == nil
	if walkErr != nil {
		result.Error = walkErr.Error()
		log.Warn("execution failed: %v", walkErr)
	} else {
		log.Debug("execution completed, %d steps", len(path))
	}
	result.Duration = e.now().Sub(result.StartedAt)

	if perf != nil {
		perf.InstanceFinished()
	}

	// metrics are always rolled up once the walk began, success or not
	finished := e.now()
	if err := e.workflows.Update(ctx, wf.ID, func(stored *workflow.BusinessWorkflow) error {
		if stored.Performance == nil {
			stored.Performance = &workflow.Performance{}
		}
		stored.Performance.Record(result.Success, result.Duration)
		stored.LastExecuted = finished
		stored.UpdatedAt = finished
		return nil
	}); err != nil {
		log.Error("failed to update workflow metrics: %v", err)
	}

	return result
}

// triggersMatch gates an execution on its trigger conditions. A workflow
// with no triggers always starts; a disabled trigger never fires.
func (e *Engine) triggersMatch(wf *workflow.BusinessWorkflow, triggerData map[string]any) bool {
	if len(wf.Triggers) == 0 {
		return true
	}
	for _, trigger := range wf.SortedTriggers() {
		if !trigger.Enabled {
			continue
		}
		logic := trigger.Logic
		if logic == "" {
			logic = workflow.LogicAnd
		}
		if condition.Evaluate(trigger.Conditions, logic, triggerData) {
			return true
		}
	}
	return false
}

// runSteps walks the graph from startID until the walk terminates or
// reaches stopID (exclusive), which is how parallel branches stop at their
// join. The first terminal step failure halts the walk.
func (e *Engine) runSteps(ctx context.Context, wf *workflow.BusinessWorkflow, startID, stopID string, execCtx *workflow.ExecutionContext) ([]workflow.ExecutionStep, error) {
	var path []workflow.ExecutionStep

	// creation-time validation guarantees an acyclic graph; the budget is a
	// backstop against malformed stored definitions
	budget := len(wf.Steps)*2 + 16

	current := startID
	for current != "" && current != stopID {
		if budget--; budget < 0 {
			return path, workflow.NewError(
				workflow.ErrWorkflowInvalid,
				"step budget exhausted walking workflow "+wf.ID,
				nil,
				map[string]any{"step_id": current},
			)
		}

		step, ok := wf.Step(current)
		if !ok {
			return path, workflow.NewError(workflow.ErrWorkflowInvalid, "unknown step "+current, nil, nil)
		}

		switch step.Type {
		case workflow.StepParallel:
			branchPath, joined, err := e.runParallel(ctx, wf, step, execCtx)
			path = append(path, branchPath...)
			if err != nil {
				return path, err
			}
			current = joined

		case workflow.StepSubworkflow:
			res := e.runSubworkflow(ctx, step, execCtx)
			path = append(path, res)
			if !res.Success {
				return path, workflow.NewError(workflow.ErrActionFailed, res.Error, nil, map[string]any{"step_id": step.ID})
			}
			current = e.nextStep(step, res.Output, execCtx)

		default:
			res := e.runStep(ctx, step, execCtx)
			path = append(path, res)
			if !res.Success {
				return path, workflow.NewError(workflow.ErrActionFailed, res.Error, nil, map[string]any{"step_id": step.ID})
			}
			current = e.nextStep(step, res.Output, execCtx)
		}
	}

	return path, nil
}

// runStep executes one non-structural step. Decision steps without a bound
// system are pure routing nodes and succeed without invoking an executor.
func (e *Engine) runStep(ctx context.Context, step *workflow.WorkflowStep, execCtx *workflow.ExecutionContext) workflow.ExecutionStep {
	if step.Type == workflow.StepDecision && step.System == "" {
		return workflow.ExecutionStep{
			StepID:    step.ID,
			Name:      step.Name,
			Success:   true,
			Attempts:  0,
			StartedAt: e.now(),
		}
	}
	return e.runner.Run(ctx, *step, execCtx)
}

func (e *Engine) runSubworkflow(ctx context.Context, step *workflow.WorkflowStep, execCtx *workflow.ExecutionContext) workflow.ExecutionStep {
	res := workflow.ExecutionStep{
		StepID:    step.ID,
		Name:      step.Name,
		Attempts:  1,
		StartedAt: e.now(),
	}
	if step.Workflow == "" {
		res.Error = "subworkflow step " + step.ID + " names no workflow"
		res.ErrorCode = workflow.ErrCodeConfiguration
		return res
	}

	child, err := e.ExecuteWorkflow(ctx, step.Workflow, execCtx.TriggerData)
	if err != nil {
		res.Error = err.Error()
		res.ErrorCode = workflow.ErrorCode(err)
		return res
	}

	res.Success = child.Success
	res.Duration = child.Duration
	res.Output = map[string]any{
		"execution_id": child.ExecutionID,
		"success":      child.Success,
	}
	if !child.Success {
		res.Error = firstNonEmpty(child.Error, child.Reason)
	}
	if execCtx != nil {
		execCtx.Output(step.ID, res.Output)
	}
	return res
}

// runParallel fans out the node's branches concurrently and waits for all
// of them before the join step runs. Any terminal branch failure fails the
// whole node and cancels branches still in flight.
func (e *Engine) runParallel(ctx context.Context, wf *workflow.BusinessWorkflow, step *workflow.WorkflowStep, execCtx *workflow.ExecutionContext) ([]workflow.ExecutionStep, string, error) {
	branches := step.NextSteps
	if len(branches) == 0 {
		return nil, "", nil
	}
	if len(branches) == 1 {
		path, err := e.runSteps(ctx, wf, branches[0], "", execCtx)
		return path, "", err
	}

	join := joinStep(wf, step)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		path  []workflow.ExecutionStep
		errs  = make([]error, len(branches))
	)

	for i, branch := range branches {
		wg.Add(1)
		go func(index int, entry string) {
			defer wg.Done()
			branchPath, err := e.runSteps(runCtx, wf, entry, join, execCtx)

			mu.Lock()
			path = append(path, branchPath...)
			mu.Unlock()

			if err != nil {
				errs[index] = err
				cancel()
			}
		}(i, branch)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return path, "", err
		}
	}
	return path, join, nil
}

// nextStep picks the branch whose condition matches the step output, the
// default edge otherwise, or terminates the walk.
func (e *Engine) nextStep(step *workflow.WorkflowStep, output map[string]any, execCtx *workflow.ExecutionContext) string {
	if len(step.Conditions) > 0 {
		record := routingRecord(execCtx, output)
		for _, cond := range step.Conditions {
			if cond.NextStep == "" {
				continue
			}
			if condition.Match(cond.Condition, record) {
				return cond.NextStep
			}
		}
	}
	if len(step.NextSteps) > 0 {
		return step.NextSteps[0]
	}
	return ""
}

// routingRecord merges trigger data and the step output so decision
// branches can route on either. Output keys win on collision.
func routingRecord(execCtx *workflow.ExecutionContext, output map[string]any) map[string]any {
	record := make(map[string]any)
	if execCtx != nil {
		for k, v := range execCtx.TriggerData {
			record[k] = v
		}
		if outs := execCtx.Outputs(); len(outs) > 0 {
			record["steps"] = outs
		}
	}
	for k, v := range output {
		record[k] = v
	}
	return record
}

// joinStep finds the first step reachable, via default edges, from every
// branch of a parallel node: the common successor where the branches join.
func joinStep(wf *workflow.BusinessWorkflow, parallel *workflow.WorkflowStep) string {
	chains := make([][]string, 0, len(parallel.NextSteps))
	for _, entry := range parallel.NextSteps {
		chains = append(chains, defaultChain(wf, entry))
	}
	if len(chains) == 0 {
		return ""
	}

	for _, candidate := range chains[0] {
		shared := true
		for _, other := range chains[1:] {
			if !containsID(other, candidate) {
				shared = false
				break
			}
		}
		if shared {
			return candidate
		}
	}
	return ""
}

func defaultChain(wf *workflow.BusinessWorkflow, startID string) []string {
	var chain []string
	seen := make(map[string]bool)
	current := startID
	for current != "" && !seen[current] {
		seen[current] = true
		chain = append(chain, current)
		step, ok := wf.Step(current)
		if !ok || len(step.NextSteps) == 0 {
			break
		}
		current = step.NextSteps[0]
	}
	return chain
}

func containsID(list []string, id string) bool {
	for _, item := range list {
		if item == id {
			return true
		}
	}
	return false
}
