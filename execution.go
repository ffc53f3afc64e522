package workflow

import (
	"sync"
	"time"
)

// ExecutionContext carries trigger data and accumulated step outputs through
// one workflow run. Parameters and outputs are schema-less bags; each action
// executor validates its own expected shape.
type ExecutionContext struct {
	ExecutionID string         `json:"execution_id"`
	WorkflowID  string         `json:"workflow_id"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	StepOutputs map[string]any `json:"step_outputs,omitempty"`
	StartedAt   time.Time      `json:"started_at"`

	mu sync.Mutex
}

// Output records the result of a completed step so later decision branches
// can route on it. Parallel branches share one context, so writes go through
// the lock.
func (c *ExecutionContext) Output(stepID string, out map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.StepOutputs == nil {
		c.StepOutputs = make(map[string]any)
	}
	c.StepOutputs[stepID] = out
}

// Outputs returns a copy of the recorded step outputs, safe to read while
// parallel branches are still writing.
func (c *ExecutionContext) Outputs() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.StepOutputs) == 0 {
		return nil
	}
	outs := make(map[string]any, len(c.StepOutputs))
	for k, v := range c.StepOutputs {
		outs[k] = v
	}
	return outs
}

// ExecutionStep is the result of running one workflow step.
type ExecutionStep struct {
	StepID    string         `json:"step_id"`
	Name      string         `json:"name,omitempty"`
	Success   bool           `json:"success"`
	Attempts  int            `json:"attempts"`
	Output    map[string]any `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}

// ExecutionResult is the structured outcome of one workflow run. Failure is
// a first-class value here, never a thrown error, so callers can render
// partial progress from ExecutionPath even for failed runs.
type ExecutionResult struct {
	ExecutionID   string          `json:"execution_id"`
	WorkflowID    string          `json:"workflow_id"`
	Success       bool            `json:"success"`
	Reason        string          `json:"reason,omitempty"`
	Error         string          `json:"error,omitempty"`
	ExecutionPath []ExecutionStep `json:"execution_path,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	Duration      time.Duration   `json:"duration"`
}

// Performance is the mutable rollup updated after every execution of one
// workflow. Raw success/failure counters are stored and the rate is computed
// on read, so long execution histories cannot drift the ratio.
type Performance struct {
	mu sync.Mutex

	TotalExecutions   int           `json:"total_executions"`
	SuccessCount      int           `json:"success_count"`
	FailureCount      int           `json:"failure_count"`
	LastExecutionTime time.Duration `json:"last_execution_time"`
	AverageCompletion time.Duration `json:"average_completion"`
	ActiveInstances   int           `json:"active_instances"`
	Bottlenecks       []string      `json:"bottlenecks,omitempty"`
	Suggestions       []string      `json:"suggestions,omitempty"`
}

// Record folds one finished execution into the rollup.
func (p *Performance) Record(success bool, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := time.Duration(p.TotalExecutions) * p.AverageCompletion
	p.TotalExecutions++
	if success {
		p.SuccessCount++
	} else {
		p.FailureCount++
	}
	p.LastExecutionTime = duration
	p.AverageCompletion = (total + duration) / time.Duration(p.TotalExecutions)
}

// SuccessRate returns the fraction of successful runs, always in [0,1].
func (p *Performance) SuccessRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TotalExecutions == 0 {
		return 0
	}
	return float64(p.SuccessCount) / float64(p.TotalExecutions)
}

// InstanceStarted increments the live instance counter.
func (p *Performance) InstanceStarted() {
	p.mu.Lock()
	p.ActiveInstances++
	p.mu.Unlock()
}

// InstanceFinished decrements the live instance counter.
func (p *Performance) InstanceFinished() {
	p.mu.Lock()
	if p.ActiveInstances > 0 {
		p.ActiveInstances--
	}
	p.mu.Unlock()
}

// Snapshot returns a copy safe to read without holding the lock.
func (p *Performance) Snapshot() PerformanceSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	var rate float64
	if p.TotalExecutions > 0 {
		rate = float64(p.SuccessCount) / float64(p.TotalExecutions)
	}
	return PerformanceSnapshot{
		TotalExecutions:   p.TotalExecutions,
		SuccessCount:      p.SuccessCount,
		FailureCount:      p.FailureCount,
		SuccessRate:       rate,
		LastExecutionTime: p.LastExecutionTime,
		AverageCompletion: p.AverageCompletion,
		ActiveInstances:   p.ActiveInstances,
		Bottlenecks:       append([]string(nil), p.Bottlenecks...),
		Suggestions:       append([]string(nil), p.Suggestions...),
	}
}

// PerformanceSnapshot is an immutable view of a Performance rollup.
type PerformanceSnapshot struct {
	TotalExecutions   int           `json:"total_executions"`
	SuccessCount      int           `json:"success_count"`
	FailureCount      int           `json:"failure_count"`
	SuccessRate       float64       `json:"success_rate"`
	LastExecutionTime time.Duration `json:"last_execution_time"`
	AverageCompletion time.Duration `json:"average_completion"`
	ActiveInstances   int           `json:"active_instances"`
	Bottlenecks       []string      `json:"bottlenecks,omitempty"`
	Suggestions       []string      `json:"suggestions,omitempty"`
}
