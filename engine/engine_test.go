package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	workflow "github.com/goliatone/go-workflow"
	"github.com/goliatone/go-workflow/datasync"
)

func TestCreateBusinessWorkflowDefaults(t *testing.T) {
	e, _ := newTestEngine(t, WithIDGenerator(func() string { return "generated-id" }))

	wf, err := e.CreateBusinessWorkflow(context.Background(), &workflow.BusinessWorkflow{
		Name: "lead qualification",
		Steps: []workflow.WorkflowStep{
			{ID: "qualify", Order: 1, Type: workflow.StepAction, System: "crm", Action: "qualify_lead"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "generated-id", wf.ID)
	assert.Equal(t, 1, wf.Version)
	assert.Equal(t, workflow.StatusActive, wf.Status)
	assert.NotNil(t, wf.Performance)
	assert.False(t, wf.CreatedAt.IsZero())
}

func TestCreateBusinessWorkflowRejectsInvalidGraph(t *testing.T) {
	e, mem := newTestEngine(t)

	cases := []struct {
		name  string
		steps []workflow.WorkflowStep
	}{
		{"no steps", nil},
		{"dangling reference", []workflow.WorkflowStep{
			{ID: "a", Order: 1, NextSteps: []string{"ghost"}},
		}},
		{"duplicate ids", []workflow.WorkflowStep{
			{ID: "a", Order: 1},
			{ID: "a", Order: 2},
		}},
		{"cycle", []workflow.WorkflowStep{
			{ID: "a", Order: 1, NextSteps: []string{"b"}},
			{ID: "b", Order: 2, NextSteps: []string{"a"}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.CreateBusinessWorkflow(context.Background(), &workflow.BusinessWorkflow{
				Name:  tc.name,
				Steps: tc.steps,
			})
			require.Error(t, err)
			assert.Equal(t, workflow.ErrCodeWorkflowInvalid, workflow.ErrorCode(err))
		})
	}

	stored, err := mem.Workflows().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored, "rejected definitions are never stored")
}

func TestCreateDataFlowDefaults(t *testing.T) {
	e, _ := newTestEngine(t)

	flow, err := e.CreateDataFlow(context.Background(), &workflow.DataFlow{
		Name:   "contact sync",
		Source: workflow.DataSource{System: "crm", Entity: "contacts"},
		Target: workflow.DataTarget{System: "sales", Entity: "accounts"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, flow.ID)
	assert.Equal(t, workflow.FlowActive, flow.Status)
	assert.Equal(t, workflow.SyncManual, flow.Schedule.Mode)
	assert.Equal(t, workflow.ConflictSourceWins, flow.ConflictResolution.Strategy)
	assert.True(t, flow.SyncRules.Enabled, "created flows sync until explicitly turned off")
}

func TestCreateDataFlowRequiresSystems(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.CreateDataFlow(context.Background(), &workflow.DataFlow{Name: "incomplete"})
	require.Error(t, err)
	assert.Equal(t, workflow.ErrCodeWorkflowInvalid, workflow.ErrorCode(err))
}

func TestCreateDataFlowRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		flow *workflow.DataFlow
	}{
		{"no name", &workflow.DataFlow{
			Source: workflow.DataSource{System: "crm", Entity: "contacts"},
			Target: workflow.DataTarget{System: "sales", Entity: "accounts"},
		}},
		{"missing source entity", &workflow.DataFlow{
			Name:   "broken",
			Source: workflow.DataSource{System: "crm"},
			Target: workflow.DataTarget{System: "sales", Entity: "accounts"},
		}},
		{"scheduled without expression or interval", &workflow.DataFlow{
			Name:     "bare schedule",
			Source:   workflow.DataSource{System: "crm", Entity: "contacts"},
			Target:   workflow.DataTarget{System: "sales", Entity: "accounts"},
			Schedule: workflow.SyncSchedule{Mode: workflow.SyncScheduled},
		}},
		{"unknown conflict strategy", &workflow.DataFlow{
			Name:               "odd strategy",
			Source:             workflow.DataSource{System: "crm", Entity: "contacts"},
			Target:             workflow.DataTarget{System: "sales", Entity: "accounts"},
			ConflictResolution: workflow.ConflictResolution{Strategy: "coin_flip"},
		}},
	}

	e, mem := newTestEngine(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.CreateDataFlow(context.Background(), tc.flow)
			require.Error(t, err)
			assert.Equal(t, workflow.ErrCodeWorkflowInvalid, workflow.ErrorCode(err))
		})
	}

	stored, err := mem.DataFlows().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored, "rejected flows are never stored")
}

type staticAdapter struct {
	mu      sync.Mutex
	records []map[string]any
	written []map[string]any
}

func (a *staticAdapter) Read(_ context.Context, _ string, _ []string) ([]map[string]any, error) {
	return a.records, nil
}

func (a *staticAdapter) Get(_ context.Context, _ string, _ string) (map[string]any, bool, error) {
	return nil, false, nil
}

func (a *staticAdapter) Write(_ context.Context, _ string, record map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.written = append(a.written, record)
	return nil
}

func TestCreateDataFlowSyncsWithoutExplicitRules(t *testing.T) {
	e, mem := newTestEngine(t)

	_, err := e.CreateDataFlow(context.Background(), &workflow.DataFlow{
		ID:     "flow-plain",
		Name:   "plain sync",
		Source: workflow.DataSource{System: "crm", Entity: "contacts"},
		Target: workflow.DataTarget{System: "sales", Entity: "accounts"},
	})
	require.NoError(t, err)

	source := &staticAdapter{records: []map[string]any{{"id": "c1", "email": "ana@example.com"}}}
	target := &staticAdapter{}
	s := datasync.New(mem.DataFlows())
	require.NoError(t, s.RegisterAdapter("crm", source))
	require.NoError(t, s.RegisterAdapter("sales", target))

	result, err := s.RunSync(context.Background(), "flow-plain")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Read, "a flow defined without sync rules still reads")
	assert.Equal(t, 1, result.Written, "a flow defined without sync rules still writes")
	require.Len(t, target.written, 1)
}

func TestPauseAndResumeWorkflow(t *testing.T) {
	e, mem := newTestEngine(t)
	registerNoop(t, e, "crm")

	ctx := context.Background()
	require.NoError(t, mem.Workflows().Create(ctx, linearWorkflow("wf-pause", "qualify")))

	require.NoError(t, e.PauseWorkflow(ctx, "wf-pause"))
	result, err := e.ExecuteWorkflow(ctx, "wf-pause", nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "workflow is not active", result.Reason)

	require.NoError(t, e.ResumeWorkflow(ctx, "wf-pause"))
	result, err = e.ExecuteWorkflow(ctx, "wf-pause", nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestIntegrationStatus(t *testing.T) {
	e, mem := newTestEngine(t)
	registerNoop(t, e, "crm")
	registerNoop(t, e, "sales")

	ctx := context.Background()

	active := linearWorkflow("wf-active", "qualify")
	paused := linearWorkflow("wf-paused", "qualify")
	paused.Status = workflow.StatusPaused
	require.NoError(t, mem.Workflows().Create(ctx, active))
	require.NoError(t, mem.Workflows().Create(ctx, paused))

	require.NoError(t, mem.DataFlows().Create(ctx, &workflow.DataFlow{
		ID: "flow-ok", Status: workflow.FlowActive,
		Source: workflow.DataSource{System: "crm"}, Target: workflow.DataTarget{System: "sales"},
	}))
	require.NoError(t, mem.DataFlows().Create(ctx, &workflow.DataFlow{
		ID: "flow-bad", Status: workflow.FlowError,
		Source: workflow.DataSource{System: "crm"}, Target: workflow.DataTarget{System: "sales"},
	}))

	require.NoError(t, mem.Events().Save(ctx, &workflow.IntegrationEvent{
		ID: "evt-1", Source: "marketing", Processed: true,
	}))
	require.NoError(t, mem.Events().Save(ctx, &workflow.IntegrationEvent{
		ID: "evt-2", Source: "marketing",
	}))

	status, err := e.IntegrationStatus(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"crm", "sales"}, status.RegisteredSystems)
	assert.Equal(t, 1, status.ActiveWorkflows)
	assert.Equal(t, 1, status.PausedWorkflows)
	assert.Equal(t, 1, status.ActiveDataFlows)
	assert.Equal(t, 1, status.ErroredDataFlows)
	assert.Equal(t, 1, status.EventsProcessed)
	assert.Equal(t, 2, status.EventsBySource["marketing"])
}

func TestEscalationWorkflowRunsWithFailureContext(t *testing.T) {
	e, mem := newTestEngine(t)

	escalated := make(chan map[string]any, 1)
	err := e.Registry().RegisterFunc("crm", func(ctx context.Context, action string, params map[string]any, execCtx *workflow.ExecutionContext) (map[string]any, error) {
		switch action {
		case "flaky":
			return nil, workflow.NewError(workflow.ErrActionFailed, "handler exploded", nil, nil)
		case "alert_ops":
			escalated <- execCtx.TriggerData
		}
		return nil, nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	escalation := &workflow.BusinessWorkflow{
		ID:     "wf-escalation",
		Status: workflow.StatusActive,
		Steps: []workflow.WorkflowStep{
			{ID: "alert", Order: 1, Type: workflow.StepAction, System: "crm", Action: "alert_ops"},
		},
	}
	require.NoError(t, mem.Workflows().Create(ctx, escalation))

	failing := &workflow.BusinessWorkflow{
		ID:     "wf-flaky",
		Status: workflow.StatusActive,
		Steps: []workflow.WorkflowStep{{
			ID: "flaky", Order: 1, Type: workflow.StepAction, System: "crm", Action: "flaky",
			ErrorHandling: workflow.ErrorHandling{EscalationWorkflow: "wf-escalation"},
		}},
	}
	require.NoError(t, mem.Workflows().Create(ctx, failing))

	result, err := e.ExecuteWorkflow(ctx, "wf-flaky", nil)
	require.NoError(t, err)
	require.False(t, result.Success)

	select {
	case failure := <-escalated:
		assert.Equal(t, "flaky", failure["failed_step"])
		assert.Equal(t, "wf-flaky", failure["workflow_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("escalation workflow never ran")
	}
}

func TestNewDefaultsToInMemoryStore(t *testing.T) {
	e := New()
	require.NotNil(t, e.Registry())

	_, err := e.CreateBusinessWorkflow(context.Background(), &workflow.BusinessWorkflow{
		Name: "self contained",
		Steps: []workflow.WorkflowStep{
			{ID: "only", Order: 1, Type: workflow.StepAction, System: "crm", Action: "noop"},
		},
	})
	require.NoError(t, err)
}
