// Package schedule drives scheduled data flows and schedule-type workflow
// triggers off a shared cron runner. Manual flows and triggers are never
// auto-registered; they only run on explicit invocation.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	workflow "github.com/goliatone/go-workflow"
)

// FlowRunner runs a data flow sync. Satisfied by *datasync.Synchronizer.
type FlowRunner interface {
	RunSync(ctx context.Context, flowID string) (*workflow.SyncResult, error)
}

// WorkflowRunner starts a workflow execution. Satisfied by *engine.Engine.
type WorkflowRunner interface {
	ExecuteWorkflow(ctx context.Context, workflowID string, triggerData map[string]any) (*workflow.ExecutionResult, error)
}

// Scheduler wraps the cron runner behind domain-aware registration.
type Scheduler struct {
	mu           sync.Mutex
	cron         *rcron.Cron
	location     *time.Location
	errorHandler func(error)
	logger       workflow.Logger
	seconds      bool

	nextID  int64
	handles map[int64]*subscription
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the timezone the cron expressions evaluate in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l workflow.Logger) Option {
	return func(s *Scheduler) {
		s.logger = workflow.NormalizeLogger(l)
	}
}

// WithErrorHandler sets the handler invoked when a scheduled run fails.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.errorHandler = fn
		}
	}
}

// WithSecondsField enables six-field cron expressions.
func WithSecondsField() Option {
	return func(s *Scheduler) {
		s.seconds = true
	}
}

// New constructs a scheduler. Start must be called before entries fire.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		location: time.Local,
		logger:   workflow.NewFmtLogger(nil),
		handles:  make(map[int64]*subscription),
	}
	s.errorHandler = func(err error) {
		s.logger.Error("scheduled run failed: %v", err)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	cronOpts := []rcron.Option{rcron.WithLocation(s.location)}
	if s.seconds {
		cronOpts = append(cronOpts, rcron.WithParser(rcron.NewParser(
			rcron.Second|rcron.Minute|rcron.Hour|rcron.Dom|rcron.Month|rcron.Dow|rcron.Descriptor,
		)))
	}
	s.cron = rcron.New(cronOpts...)
	return s
}

// ScheduleFlow registers a scheduled data flow. Flows in real_time or manual
// mode are rejected: real-time flows ride the event dispatcher and manual
// flows only run on explicit invocation.
func (s *Scheduler) ScheduleFlow(flow *workflow.DataFlow, runner FlowRunner) (Handle, error) {
	if flow == nil || runner == nil {
		return nil, workflow.NewError(workflow.ErrConfiguration, "flow scheduling requires a flow and a runner", nil, nil)
	}
	if flow.Schedule.Mode != workflow.SyncScheduled {
		return nil, workflow.NewError(workflow.ErrConfiguration,
			"flow "+flow.ID+" is not in scheduled mode", nil,
			map[string]any{"flow_id": flow.ID, "mode": string(flow.Schedule.Mode)})
	}

	expression := flow.Schedule.Expression
	if expression == "" && flow.Schedule.Interval > 0 {
		expression = fmt.Sprintf("@every %s", flow.Schedule.Interval)
	}
	if expression == "" {
		return nil, workflow.NewError(workflow.ErrConfiguration,
			"flow "+flow.ID+" has neither a cron expression nor an interval", nil,
			map[string]any{"flow_id": flow.ID})
	}

	flowID := flow.ID
	return s.add(expression, "flow:"+flowID, func() error {
		_, err := runner.RunSync(context.Background(), flowID)
		return err
	})
}

// ScheduleWorkflowTriggers registers every enabled schedule-type trigger of
// a workflow and returns one handle per trigger.
func (s *Scheduler) ScheduleWorkflowTriggers(wf *workflow.BusinessWorkflow, runner WorkflowRunner) ([]Handle, error) {
	if wf == nil || runner == nil {
		return nil, workflow.NewError(workflow.ErrConfiguration, "trigger scheduling requires a workflow and a runner", nil, nil)
	}

	var handles []Handle
	for _, trigger := range wf.Triggers {
		if trigger.Type != workflow.TriggerSchedule || !trigger.Enabled {
			continue
		}
		if trigger.Expression == "" {
			for _, h := range handles {
				h.Cancel()
			}
			return nil, workflow.NewError(workflow.ErrConfiguration,
				"schedule trigger on workflow "+wf.ID+" has no cron expression", nil,
				map[string]any{"workflow_id": wf.ID})
		}

		workflowID := wf.ID
		handle, err := s.add(trigger.Expression, "workflow:"+workflowID, func() error {
			result, err := runner.ExecuteWorkflow(context.Background(), workflowID, map[string]any{
				"trigger": "schedule",
			})
			if err != nil {
				return err
			}
			if !result.Success && result.Error != "" {
				return fmt.Errorf("workflow %s: %s", workflowID, result.Error)
			}
			return nil
		})
		if err != nil {
			for _, h := range handles {
				h.Cancel()
			}
			return nil, err
		}
		handles = append(handles, handle)
	}
	return handles, nil
}

func (s *Scheduler) add(expression, name string, run func() error) (Handle, error) {
	sub := s.newHandle()
	job := rcron.FuncJob(func() {
		if isTerminal(sub.Status()) {
			return
		}
		sub.setStatus(StatusRunning, nil)
		if err := run(); err != nil {
			sub.setStatus(StatusFailed, err)
			s.logger.Error("scheduled entry %s failed: %v", name, err)
			s.errorHandler(err)
			return
		}
		if !isTerminal(sub.Status()) {
			sub.setStatus(StatusIdle, nil)
		}
	})

	entryID, err := s.cron.AddJob(expression, job)
	if err != nil {
		return nil, workflow.NewError(workflow.ErrConfiguration,
			"invalid cron expression "+expression, err,
			map[string]any{"entry": name})
	}
	sub.entryID = int(entryID)
	s.storeHandle(sub)
	s.logger.Debug("scheduled %s with expression %q", name, expression)
	return sub, nil
}

// Start begins firing scheduled entries.
func (s *Scheduler) Start(_ context.Context) error {
	s.cron.Start()
	return nil
}

// Stop halts the cron runner and marks live handles stopped.
func (s *Scheduler) Stop(_ context.Context) error {
	s.cron.Stop()

	s.mu.Lock()
	handles := make([]*subscription, 0, len(s.handles))
	for _, handle := range s.handles {
		handles = append(handles, handle)
	}
	s.handles = make(map[int64]*subscription)
	s.mu.Unlock()

	for _, handle := range handles {
		if handle.entryID > 0 {
			s.cron.Remove(rcron.EntryID(handle.entryID))
		}
		if isTerminal(handle.Status()) {
			continue
		}
		handle.setTerminal(StatusStopped, nil)
	}
	return nil
}

func (s *Scheduler) removeHandle(id int64) {
	s.mu.Lock()
	handle := s.handles[id]
	delete(s.handles, id)
	s.mu.Unlock()

	if handle != nil && handle.entryID > 0 {
		s.cron.Remove(rcron.EntryID(handle.entryID))
	}
}

func (s *Scheduler) storeHandle(handle *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[handle.id] = handle
}

func (s *Scheduler) newHandle() *subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return &subscription{
		scheduler: s,
		id:        s.nextID,
		status:    StatusScheduled,
		done:      make(chan struct{}),
	}
}
