package store

import (
	"context"
	"sort"
	"sync"

	workflow "github.com/goliatone/go-workflow"
)

// Memory is the in-memory repository backing tests and the default engine
// wiring. Update mutations run while holding the store lock, which is the
// per-entity atomicity the metrics rollups rely on.
type Memory struct {
	mu        sync.RWMutex
	workflows map[string]*workflow.BusinessWorkflow
	flows     map[string]*workflow.DataFlow
	events    map[string]*workflow.IntegrationEvent
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		workflows: make(map[string]*workflow.BusinessWorkflow),
		flows:     make(map[string]*workflow.DataFlow),
		events:    make(map[string]*workflow.IntegrationEvent),
	}
}

// Workflows returns the workflow repository view.
func (m *Memory) Workflows() WorkflowRepository { return workflowRepo{m} }

// DataFlows returns the data flow repository view.
func (m *Memory) DataFlows() DataFlowRepository { return dataFlowRepo{m} }

// Events returns the event repository view.
func (m *Memory) Events() EventRepository { return eventRepo{m} }

type workflowRepo struct{ m *Memory }

func (r workflowRepo) Create(_ context.Context, wf *workflow.BusinessWorkflow) error {
	if wf == nil || wf.ID == "" {
		return workflow.NewError(workflow.ErrWorkflowInvalid, "workflow requires an id", nil, nil)
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.workflows[wf.ID]; exists {
		return workflow.NewError(workflow.ErrWorkflowInvalid, "workflow "+wf.ID+" already exists", nil, nil)
	}
	r.m.workflows[wf.ID] = wf
	return nil
}

func (r workflowRepo) Get(_ context.Context, id string) (*workflow.BusinessWorkflow, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	wf, ok := r.m.workflows[id]
	if !ok {
		return nil, workflow.NewError(workflow.ErrNotFound, "workflow "+id+" not found", nil, nil)
	}
	return wf, nil
}

func (r workflowRepo) Update(_ context.Context, id string, fn func(*workflow.BusinessWorkflow) error) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	wf, ok := r.m.workflows[id]
	if !ok {
		return workflow.NewError(workflow.ErrNotFound, "workflow "+id+" not found", nil, nil)
	}
	return fn(wf)
}

func (r workflowRepo) List(_ context.Context) ([]*workflow.BusinessWorkflow, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]*workflow.BusinessWorkflow, 0, len(r.m.workflows))
	for _, wf := range r.m.workflows {
		out = append(out, wf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type dataFlowRepo struct{ m *Memory }

func (r dataFlowRepo) Create(_ context.Context, flow *workflow.DataFlow) error {
	if flow == nil || flow.ID == "" {
		return workflow.NewError(workflow.ErrWorkflowInvalid, "data flow requires an id", nil, nil)
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.flows[flow.ID]; exists {
		return workflow.NewError(workflow.ErrWorkflowInvalid, "data flow "+flow.ID+" already exists", nil, nil)
	}
	r.m.flows[flow.ID] = flow
	return nil
}

func (r dataFlowRepo) Get(_ context.Context, id string) (*workflow.DataFlow, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	flow, ok := r.m.flows[id]
	if !ok {
		return nil, workflow.NewError(workflow.ErrNotFound, "data flow "+id+" not found", nil, nil)
	}
	return flow, nil
}

func (r dataFlowRepo) Update(_ context.Context, id string, fn func(*workflow.DataFlow) error) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	flow, ok := r.m.flows[id]
	if !ok {
		return workflow.NewError(workflow.ErrNotFound, "data flow "+id+" not found", nil, nil)
	}
	return fn(flow)
}

func (r dataFlowRepo) List(_ context.Context) ([]*workflow.DataFlow, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]*workflow.DataFlow, 0, len(r.m.flows))
	for _, flow := range r.m.flows {
		out = append(out, flow)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type eventRepo struct{ m *Memory }

func (r eventRepo) Save(_ context.Context, event *workflow.IntegrationEvent) error {
	if event == nil || event.ID == "" {
		return workflow.NewError(workflow.ErrWorkflowInvalid, "event requires an id", nil, nil)
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.events[event.ID] = event
	return nil
}

func (r eventRepo) Get(_ context.Context, id string) (*workflow.IntegrationEvent, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	event, ok := r.m.events[id]
	if !ok {
		return nil, workflow.NewError(workflow.ErrNotFound, "event "+id+" not found", nil, nil)
	}
	return event, nil
}

func (r eventRepo) Update(_ context.Context, id string, fn func(*workflow.IntegrationEvent) error) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	event, ok := r.m.events[id]
	if !ok {
		return workflow.NewError(workflow.ErrNotFound, "event "+id+" not found", nil, nil)
	}
	return fn(event)
}

func (r eventRepo) List(_ context.Context) ([]*workflow.IntegrationEvent, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]*workflow.IntegrationEvent, 0, len(r.m.events))
	for _, event := range r.m.events {
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}
