// Package runner executes a single workflow step: it invokes the step's
// action executor bounded by the step timeout, applies the retry policy on
// failure, then falls back and escalates once retries are exhausted.
package runner

import (
	"context"
	"time"

	workflow "github.com/goliatone/go-workflow"
)

// Invoker dispatches a (system, action) pair. Satisfied by *registry.Registry.
type Invoker interface {
	Execute(ctx context.Context, system, action string, params map[string]any, execCtx *workflow.ExecutionContext) (map[string]any, error)
}

// Escalator starts an escalation workflow with the failure context.
// Implementations run fire-and-forget; their outcome never blocks the parent.
type Escalator interface {
	Escalate(workflowID string, failure map[string]any)
}

// Notifier delivers step-failure notifications. Fire-and-forget; failures
// are logged but never block workflow completion.
type Notifier interface {
	Send(ctx context.Context, config workflow.NotificationConfig, payload map[string]any) error
}

// Option configures a StepRunner.
type Option func(*StepRunner)

// WithLogger sets the runner logger.
func WithLogger(l workflow.Logger) Option {
	return func(r *StepRunner) {
		r.logger = workflow.NormalizeLogger(l)
	}
}

// WithEscalator wires the escalation-workflow launcher.
func WithEscalator(e Escalator) Option {
	return func(r *StepRunner) {
		r.escalator = e
	}
}

// WithNotifier wires the notification sender.
func WithNotifier(n Notifier) Option {
	return func(r *StepRunner) {
		r.notifier = n
	}
}

// WithSleep replaces the inter-attempt sleep, used by tests to observe
// retry delays without waiting.
func WithSleep(fn func(time.Duration)) Option {
	return func(r *StepRunner) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// WithClock replaces the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *StepRunner) {
		if now != nil {
			r.now = now
		}
	}
}

// StepRunner is the step execution controller.
type StepRunner struct {
	invoker   Invoker
	logger    workflow.Logger
	escalator Escalator
	notifier  Notifier
	sleep     func(time.Duration)
	now       func() time.Time
}

// New constructs a StepRunner around the given invoker.
func New(invoker Invoker, opts ...Option) *StepRunner {
	r := &StepRunner{
		invoker: invoker,
		logger:  workflow.NewFmtLogger(nil),
		sleep:   time.Sleep,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Run executes one step and returns its result. Failures are converted into
// ExecutionStep.Success=false with a message; they never propagate as errors
// past this controller.
func (r *StepRunner) Run(ctx context.Context, step workflow.WorkflowStep, execCtx *workflow.ExecutionContext) workflow.ExecutionStep {
	result := workflow.ExecutionStep{
		StepID:    step.ID,
		Name:      step.Name,
		StartedAt: r.now(),
	}
	log := workflow.WithLoggerFields(r.logger, map[string]any{
		"step_id": step.ID,
		"system":  step.System,
		"action":  step.Action,
	})

	strategy := StrategyFor(step.RetryPolicy)

	// negative policies collapse to a single attempt so the loop below
	// always runs and the failure path always has an error to report
	maxRetries := step.RetryPolicy.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		result.Attempts = attempt + 1

		out, err := r.invoke(ctx, step, step.Action, execCtx)
		if err == nil {
			result.Success = true
			result.Output = out
			result.Duration = r.now().Sub(result.StartedAt)
			if execCtx != nil {
				execCtx.Output(step.ID, out)
			}
			return result
		}
		lastErr = err

		if attempt < maxRetries && workflow.IsRetryable(err, step.RetryPolicy.RetryOn) {
			delay := strategy.SleepDuration(attempt, err)
			log.Warn("step attempt %d/%d failed, retrying in %s: %v",
				attempt+1, maxRetries+1, delay, err)
			if delay > 0 {
				r.sleep(delay)
			}
			continue
		}
		break
	}

	// retries exhausted, try the fallback action once
	if step.ErrorHandling.FallbackAction != "" {
		out, err := r.invoke(ctx, step, step.ErrorHandling.FallbackAction, execCtx)
		if err == nil {
			log.Info("step recovered via fallback action %s", step.ErrorHandling.FallbackAction)
			result.Success = true
			result.Output = out
			result.Duration = r.now().Sub(result.StartedAt)
			if execCtx != nil {
				execCtx.Output(step.ID, out)
			}
			return result
		}
		log.Error("fallback action %s failed: %v", step.ErrorHandling.FallbackAction, err)
	}

	result.Success = false
	result.Error = lastErr.Error()
	result.ErrorCode = workflow.ErrorCode(lastErr)
	result.Duration = r.now().Sub(result.StartedAt)

	r.escalate(step, execCtx, lastErr)
	r.notify(step, execCtx, lastErr)

	return result
}

// invoke runs one executor call bounded by the step timeout. Timeout
// cancellation is best-effort: the underlying action may still complete
// server-side, the runner simply stops waiting and reports failure.
func (r *StepRunner) invoke(ctx context.Context, step workflow.WorkflowStep, action string, execCtx *workflow.ExecutionContext) (map[string]any, error) {
	if r.invoker == nil {
		return nil, workflow.NewError(workflow.ErrConfiguration, "step runner has no invoker", nil, nil)
	}

	if step.Timeout <= 0 {
		return r.invoker.Execute(ctx, step.System, action, step.Parameters, execCtx)
	}

	runCtx, cancel := context.WithTimeout(ctx, step.Timeout)
	defer cancel()

	type invocation struct {
		out map[string]any
		err error
	}
	done := make(chan invocation, 1)

	go func() {
		out, err := r.invoker.Execute(runCtx, step.System, action, step.Parameters, execCtx)
		done <- invocation{out: out, err: err}
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-runCtx.Done():
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, workflow.NewError(
				workflow.ErrStepTimeout,
				"step "+step.ID+" exceeded timeout",
				runCtx.Err(),
				map[string]any{"timeout": step.Timeout.String(), "action": action},
			)
		}
		return nil, runCtx.Err()
	}
}

func (r *StepRunner) escalate(step workflow.WorkflowStep, execCtx *workflow.ExecutionContext, cause error) {
	if r.escalator == nil || step.ErrorHandling.EscalationWorkflow == "" {
		return
	}
	failure := map[string]any{
		"failed_step": step.ID,
		"system":      step.System,
		"action":      step.Action,
		"error":       cause.Error(),
	}
	if execCtx != nil {
		failure["workflow_id"] = execCtx.WorkflowID
		failure["execution_id"] = execCtx.ExecutionID
	}
	escalator := r.escalator
	target := step.ErrorHandling.EscalationWorkflow
	workflow.Go(r.logger, "escalation:"+target, func() error {
		escalator.Escalate(target, failure)
		return nil
	})
}

func (r *StepRunner) notify(step workflow.WorkflowStep, execCtx *workflow.ExecutionContext, cause error) {
	if r.notifier == nil || step.ErrorHandling.Notification == nil {
		return
	}
	config := *step.ErrorHandling.Notification
	payload := map[string]any{
		"step_id": step.ID,
		"error":   cause.Error(),
	}
	if execCtx != nil {
		payload["workflow_id"] = execCtx.WorkflowID
	}
	notifier := r.notifier
	workflow.Go(r.logger, "notify:"+step.ID, func() error {
		return notifier.Send(context.Background(), config, payload)
	})
}
