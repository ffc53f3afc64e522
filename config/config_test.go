package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	workflow "github.com/goliatone/go-workflow"
	"github.com/goliatone/go-workflow/engine"
)

const definitionsYAML = `
defaults:
  step_timeout: 30s
  retry_policy:
    max_retries: 2
    retry_delay: 1s
    exponential_backoff: true
    retry_on: [timeout]

workflows:
  - id: lead-qualification
    name: Lead Qualification
    triggers:
      - type: event
        source: marketing
        event: lead_created
        enabled: true
    steps:
      - id: qualify
        order: 1
        type: action
        system: crm
        action: qualify_lead
        next_steps: [notify]
      - id: notify
        order: 2
        type: action
        system: sales
        action: notify_rep
        timeout: 5s

data_flows:
  - id: contact-sync
    name: Contact Sync
    source:
      system: crm
      entity: contacts
    target:
      system: sales
      entity: accounts
      field_mapping:
        email: contact_email
    schedule:
      mode: scheduled
      expression: "0 * * * *"
    conflict_resolution:
      strategy: latest_wins
      timestamp_field: updated_at
`

func TestParseDefinitionsYAML(t *testing.T) {
	set, err := ParseDefinitions([]byte(definitionsYAML))
	require.NoError(t, err)

	require.Len(t, set.Workflows, 1)
	wf := set.Workflows[0]
	assert.Equal(t, "lead-qualification", wf.ID)
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, []string{"notify"}, wf.Steps[0].NextSteps)

	require.Len(t, set.DataFlows, 1)
	flow := set.DataFlows[0]
	assert.Equal(t, workflow.SyncScheduled, flow.Schedule.Mode)
	assert.Equal(t, workflow.ConflictLatestWins, flow.ConflictResolution.Strategy)
	assert.Equal(t, "contact_email", flow.Target.FieldMapping["email"])
}

func TestParseDefinitionsAppliesDefaults(t *testing.T) {
	set, err := ParseDefinitions([]byte(definitionsYAML))
	require.NoError(t, err)

	qualify := set.Workflows[0].Steps[0]
	assert.Equal(t, 30*time.Second, qualify.Timeout, "default timeout fills unset steps")
	assert.Equal(t, 2, qualify.RetryPolicy.MaxRetries)
	assert.Equal(t, []string{"timeout"}, qualify.RetryPolicy.RetryOn)

	notify := set.Workflows[0].Steps[1]
	assert.Equal(t, 5*time.Second, notify.Timeout, "explicit timeout survives the merge")

	flow := set.DataFlows[0]
	assert.True(t, flow.SyncRules.Enabled, "flows load enabled without an explicit sync_rules block")
}

func TestParseDefinitionsJSON(t *testing.T) {
	set, err := ParseDefinitions([]byte(`{
		"workflows": [{
			"id": "wf-json",
			"name": "JSON Workflow",
			"steps": [{"id": "only", "order": 1, "type": "action", "system": "crm", "action": "noop"}]
		}]
	}`))
	require.NoError(t, err)
	require.Len(t, set.Workflows, 1)
	assert.Equal(t, "wf-json", set.Workflows[0].ID)
}

func TestParseDefinitionsRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"workflow without name", `
workflows:
  - id: anon
    steps:
      - id: a
        order: 1
`},
		{"dangling step reference", `
workflows:
  - name: Broken
    steps:
      - id: a
        order: 1
        next_steps: [ghost]
`},
		{"cycle", `
workflows:
  - name: Cyclic
    steps:
      - id: a
        order: 1
        next_steps: [b]
      - id: b
        order: 2
        next_steps: [a]
`},
		{"duplicate workflow ids", `
workflows:
  - id: dup
    name: One
    steps: [{id: a, order: 1}]
  - id: dup
    name: Two
    steps: [{id: a, order: 1}]
`},
		{"flow without source entity", `
data_flows:
  - name: Broken Flow
    source: {system: crm}
    target: {system: sales, entity: accounts}
`},
		{"scheduled flow without expression", `
data_flows:
  - name: Bare Schedule
    source: {system: crm, entity: contacts}
    target: {system: sales, entity: accounts}
    schedule: {mode: scheduled}
`},
		{"unknown conflict strategy", `
data_flows:
  - name: Odd Strategy
    source: {system: crm, entity: contacts}
    target: {system: sales, entity: accounts}
    conflict_resolution: {strategy: coin_flip}
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDefinitions([]byte(tc.doc))
			require.Error(t, err)
			assert.Equal(t, workflow.ErrCodeWorkflowInvalid, workflow.ErrorCode(err))
		})
	}
}

func TestApplyRegistersDefinitions(t *testing.T) {
	set, err := ParseDefinitions([]byte(definitionsYAML))
	require.NoError(t, err)

	e := engine.New()
	workflowIDs, flowIDs, err := Apply(context.Background(), e, set)
	require.NoError(t, err)
	assert.Equal(t, []string{"lead-qualification"}, workflowIDs)
	assert.Equal(t, []string{"contact-sync"}, flowIDs)

	status, err := e.IntegrationStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.ActiveWorkflows)
	assert.Equal(t, 1, status.ActiveDataFlows)
}
