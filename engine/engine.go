// Package engine runs business workflows end to end: it validates and
// stores definitions, gates executions on trigger conditions, walks the step
// graph, dispatches integration events to matching workflows and mines
// execution metrics for optimization advice.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	workflow "github.com/goliatone/go-workflow"
	"github.com/goliatone/go-workflow/registry"
	"github.com/goliatone/go-workflow/runner"
	"github.com/goliatone/go-workflow/store"
)

// SyncRunner runs a data flow sync. Satisfied by *datasync.Synchronizer.
type SyncRunner interface {
	RunSync(ctx context.Context, flowID string) (*workflow.SyncResult, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l workflow.Logger) Option {
	return func(e *Engine) {
		e.logger = workflow.NormalizeLogger(l)
	}
}

// WithStore wires all three repositories from one in-memory store.
func WithStore(m *store.Memory) Option {
	return func(e *Engine) {
		e.workflows = m.Workflows()
		e.flows = m.DataFlows()
		e.events = m.Events()
	}
}

// WithRepositories wires individual repositories.
func WithRepositories(wr store.WorkflowRepository, fr store.DataFlowRepository, er store.EventRepository) Option {
	return func(e *Engine) {
		e.workflows = wr
		e.flows = fr
		e.events = er
	}
}

// WithRegistry sets the action executor registry.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithNotifier wires the notification sender passed to the step runner.
func WithNotifier(n runner.Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithSyncRunner wires the data flow synchronizer used for real-time flows.
func WithSyncRunner(s SyncRunner) Option {
	return func(e *Engine) {
		e.syncRunner = s
	}
}

// WithClock replaces the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSleep replaces the retry sleep passed to the step runner, used by
// tests to observe delays without waiting.
func WithSleep(fn func(time.Duration)) Option {
	return func(e *Engine) {
		e.sleep = fn
	}
}

// WithIDGenerator replaces the id generator, used by tests.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// Engine is the orchestration entry point exposed to collaborators.
type Engine struct {
	workflows store.WorkflowRepository
	flows     store.DataFlowRepository
	events    store.EventRepository

	registry   *registry.Registry
	runner     *runner.StepRunner
	syncRunner SyncRunner
	notifier   runner.Notifier

	logger workflow.Logger
	now    func() time.Time
	newID  func() string
	sleep  func(time.Duration)
}

// New constructs an engine, defaulting to an in-memory store and an empty
// executor registry.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: workflow.NewFmtLogger(nil),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	if e.workflows == nil {
		mem := store.NewMemory()
		e.workflows = mem.Workflows()
		e.flows = mem.DataFlows()
		e.events = mem.Events()
	}
	if e.registry == nil {
		e.registry = registry.New()
	}

	runnerOpts := []runner.Option{
		runner.WithLogger(e.logger),
		runner.WithEscalator(engineEscalator{e}),
		runner.WithClock(e.now),
	}
	if e.notifier != nil {
		runnerOpts = append(runnerOpts, runner.WithNotifier(e.notifier))
	}
	if e.sleep != nil {
		runnerOpts = append(runnerOpts, runner.WithSleep(e.sleep))
	}
	e.runner = runner.New(e.registry, runnerOpts...)

	return e
}

// Registry exposes the executor registry for collaborator wiring.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// CreateBusinessWorkflow validates a definition, fills defaults and stores
// it. Invalid graphs (cycles, dangling references, duplicate step ids) are
// rejected here, before the workflow can ever run.
func (e *Engine) CreateBusinessWorkflow(ctx context.Context, wf *workflow.BusinessWorkflow) (*workflow.BusinessWorkflow, error) {
	if wf == nil {
		return nil, workflow.NewError(workflow.ErrWorkflowInvalid, "workflow definition is nil", nil, nil)
	}
	if wf.ID == "" {
		wf.ID = e.newID()
	}
	if wf.Version == 0 {
		wf.Version = 1
	}
	if wf.Status == "" {
		wf.Status = workflow.StatusActive
	}
	if wf.Performance == nil {
		wf.Performance = &workflow.Performance{}
	}
	now := e.now()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	if err := ValidateGraph(wf); err != nil {
		return nil, err
	}
	if err := e.workflows.Create(ctx, wf); err != nil {
		return nil, err
	}

	e.logger.Info("workflow created id=%s name=%s steps=%d", wf.ID, wf.Name, len(wf.Steps))
	return wf, nil
}

// CreateDataFlow validates a data flow definition and stores it. Flows are
// created with syncing enabled; turning a flow off afterwards is a status or
// repository update, the same way workflows pause.
func (e *Engine) CreateDataFlow(ctx context.Context, flow *workflow.DataFlow) (*workflow.DataFlow, error) {
	if flow == nil {
		return nil, workflow.NewError(workflow.ErrWorkflowInvalid, "data flow definition is nil", nil, nil)
	}
	if flow.ID == "" {
		flow.ID = e.newID()
	}
	if flow.Status == "" {
		flow.Status = workflow.FlowActive
	}
	if flow.Schedule.Mode == "" {
		flow.Schedule.Mode = workflow.SyncManual
	}
	if flow.ConflictResolution.Strategy == "" {
		flow.ConflictResolution.Strategy = workflow.ConflictSourceWins
	}
	flow.SyncRules.Enabled = true
	now := e.now()
	flow.CreatedAt = now
	flow.UpdatedAt = now

	if err := ValidateFlow(flow); err != nil {
		return nil, err
	}
	if err := e.flows.Create(ctx, flow); err != nil {
		return nil, err
	}

	e.logger.Info("data flow created id=%s name=%s mode=%s", flow.ID, flow.Name, flow.Schedule.Mode)
	return flow, nil
}

// PauseWorkflow blocks new executions from starting. In-flight runs are
// unaffected.
func (e *Engine) PauseWorkflow(ctx context.Context, id string) error {
	return e.workflows.Update(ctx, id, func(wf *workflow.BusinessWorkflow) error {
		wf.Status = workflow.StatusPaused
		wf.UpdatedAt = e.now()
		return nil
	})
}

// ResumeWorkflow reactivates a paused or errored workflow.
func (e *Engine) ResumeWorkflow(ctx context.Context, id string) error {
	return e.workflows.Update(ctx, id, func(wf *workflow.BusinessWorkflow) error {
		wf.Status = workflow.StatusActive
		wf.UpdatedAt = e.now()
		return nil
	})
}

// IntegrationStatus reports registered systems and live workflow, data flow
// and event counts.
func (e *Engine) IntegrationStatus(ctx context.Context) (*workflow.IntegrationStatus, error) {
	status := &workflow.IntegrationStatus{
		RegisteredSystems: e.registry.Systems(),
		EventsBySource:    make(map[string]int),
	}

	wfs, err := e.workflows.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, wf := range wfs {
		switch wf.Status {
		case workflow.StatusActive:
			status.ActiveWorkflows++
		case workflow.StatusPaused:
			status.PausedWorkflows++
		}
	}

	flows, err := e.flows.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, flow := range flows {
		switch flow.Status {
		case workflow.FlowActive:
			status.ActiveDataFlows++
		case workflow.FlowError:
			status.ErroredDataFlows++
		}
	}

	events, err := e.events.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, event := range events {
		if event.Processed {
			status.EventsProcessed++
		}
		status.EventsBySource[event.Source]++
	}

	return status, nil
}

// Analytics mines stored workflow metrics for bottlenecks and optimization
// opportunities. Advisory only; definitions are never rewritten.
func (e *Engine) Analytics(ctx context.Context) (*workflow.WorkflowAnalytics, error) {
	wfs, err := e.workflows.List(ctx)
	if err != nil {
		return nil, err
	}
	return Analyze(wfs), nil
}

// engineEscalator launches escalation workflows with the failure context.
// The runner already runs escalations fire-and-forget.
type engineEscalator struct {
	e *Engine
}

func (s engineEscalator) Escalate(workflowID string, failure map[string]any) {
	result, err := s.e.ExecuteWorkflow(context.Background(), workflowID, failure)
	if err != nil {
		s.e.logger.Error("escalation workflow %s failed to start: %v", workflowID, err)
		return
	}
	if !result.Success {
		s.e.logger.Warn("escalation workflow %s finished unsuccessfully: %s", workflowID, firstNonEmpty(result.Error, result.Reason))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
