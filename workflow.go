package workflow

import (
	"sort"
	"time"
)

// WorkflowStatus tracks the lifecycle of a workflow definition.
type WorkflowStatus string

const (
	StatusActive    WorkflowStatus = "active"
	StatusPaused    WorkflowStatus = "paused"
	StatusCompleted WorkflowStatus = "completed"
	StatusError     WorkflowStatus = "error"
)

// StepType identifies how a step node is executed.
type StepType string

const (
	StepAction      StepType = "action"
	StepDecision    StepType = "decision"
	StepParallel    StepType = "parallel"
	StepSubworkflow StepType = "subworkflow"
	StepHumanTask   StepType = "human_task"
	StepAPICall     StepType = "api_call"
)

// TriggerType identifies when a workflow may start.
type TriggerType string

const (
	TriggerEvent     TriggerType = "event"
	TriggerSchedule  TriggerType = "schedule"
	TriggerCondition TriggerType = "condition"
	TriggerManual    TriggerType = "manual"
)

// Logic combines a list of conditions.
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

// Operator is a condition comparison operator.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpExists      Operator = "exists"
)

// Condition compares a dotted-path field of a record against a value.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value,omitempty" yaml:"value,omitempty"`
}

// StepCondition routes execution to NextStep when the condition matches
// the step output.
type StepCondition struct {
	Condition `json:",inline" yaml:",inline"`

	NextStep string `json:"next_step" yaml:"next_step"`
}

// WorkflowTrigger defines when a workflow may start.
type WorkflowTrigger struct {
	Type       TriggerType `json:"type" yaml:"type"`
	Source     string      `json:"source,omitempty" yaml:"source,omitempty"`
	Event      string      `json:"event,omitempty" yaml:"event,omitempty"`
	Expression string      `json:"expression,omitempty" yaml:"expression,omitempty"`
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Logic      Logic       `json:"logic,omitempty" yaml:"logic,omitempty"`
	Enabled    bool        `json:"enabled" yaml:"enabled"`
	Priority   int         `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// RetryPolicy controls how a failed step is retried.
type RetryPolicy struct {
	MaxRetries         int           `json:"max_retries" yaml:"max_retries"`
	RetryDelay         time.Duration `json:"retry_delay" yaml:"retry_delay"`
	ExponentialBackoff bool          `json:"exponential_backoff" yaml:"exponential_backoff"`
	RetryOn            []string      `json:"retry_on,omitempty" yaml:"retry_on,omitempty"`
}

// NotificationConfig describes fire-and-forget notifications raised by a
// step failure or a sync conflict.
type NotificationConfig struct {
	Channel    string   `json:"channel,omitempty" yaml:"channel,omitempty"`
	Recipients []string `json:"recipients,omitempty" yaml:"recipients,omitempty"`
	Template   string   `json:"template,omitempty" yaml:"template,omitempty"`
}

// ErrorHandling defines what happens once a step exhausts its retries.
type ErrorHandling struct {
	FallbackAction     string              `json:"fallback_action,omitempty" yaml:"fallback_action,omitempty"`
	EscalationWorkflow string              `json:"escalation_workflow,omitempty" yaml:"escalation_workflow,omitempty"`
	Notification       *NotificationConfig `json:"notification,omitempty" yaml:"notification,omitempty"`
}

// WorkflowStep is one node in a workflow's execution graph.
// Steps are immutable once a workflow version is active; a change requires
// a new workflow version.
type WorkflowStep struct {
	ID            string          `json:"id" yaml:"id"`
	Name          string          `json:"name,omitempty" yaml:"name,omitempty"`
	Order         int             `json:"order" yaml:"order"`
	Type          StepType        `json:"type" yaml:"type"`
	System        string          `json:"system,omitempty" yaml:"system,omitempty"`
	Action        string          `json:"action,omitempty" yaml:"action,omitempty"`
	Workflow      string          `json:"workflow,omitempty" yaml:"workflow,omitempty"`
	Parameters    map[string]any  `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Conditions    []StepCondition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	NextSteps     []string        `json:"next_steps,omitempty" yaml:"next_steps,omitempty"`
	ErrorHandling ErrorHandling   `json:"error_handling,omitempty" yaml:"error_handling,omitempty"`
	RetryPolicy   RetryPolicy     `json:"retry_policy,omitempty" yaml:"retry_policy,omitempty"`
	Timeout       time.Duration   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// BusinessWorkflow is a named, versioned workflow definition plus its live
// state. The engine never hard-deletes a workflow; it transitions to
// paused or error instead.
type BusinessWorkflow struct {
	ID             string         `json:"id" yaml:"id"`
	OrganizationID string         `json:"organization_id,omitempty" yaml:"organization_id,omitempty"`
	Name           string         `json:"name" yaml:"name"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
	Version        int            `json:"version" yaml:"version"`
	Status         WorkflowStatus `json:"status" yaml:"status"`

	Triggers []WorkflowTrigger `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	Steps    []WorkflowStep    `json:"steps,omitempty" yaml:"steps,omitempty"`

	// Configuration consumed by steps but not owned by the engine.
	SystemIntegrations []map[string]any `json:"system_integrations,omitempty" yaml:"system_integrations,omitempty"`
	AutomationRules    []map[string]any `json:"automation_rules,omitempty" yaml:"automation_rules,omitempty"`
	ApprovalChains     []map[string]any `json:"approval_chains,omitempty" yaml:"approval_chains,omitempty"`

	Performance *Performance `json:"performance,omitempty" yaml:"performance,omitempty"`

	CreatedAt    time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	LastExecuted time.Time `json:"last_executed,omitempty" yaml:"last_executed,omitempty"`
}

// Step returns the step with the given id.
func (w *BusinessWorkflow) Step(id string) (*WorkflowStep, bool) {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i], true
		}
	}
	return nil, false
}

// FirstStep returns the step with the lowest order, where the walk starts.
func (w *BusinessWorkflow) FirstStep() (*WorkflowStep, bool) {
	if len(w.Steps) == 0 {
		return nil, false
	}
	first := &w.Steps[0]
	for i := range w.Steps[1:] {
		if w.Steps[i+1].Order < first.Order {
			first = &w.Steps[i+1]
		}
	}
	return first, true
}

// SortedTriggers returns triggers ordered by descending priority.
func (w *BusinessWorkflow) SortedTriggers() []WorkflowTrigger {
	out := make([]WorkflowTrigger, len(w.Triggers))
	copy(out, w.Triggers)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}
