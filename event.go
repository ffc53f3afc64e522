package workflow

import "time"

// IntegrationEvent is an inbound fact from an external system. Processing
// marks it processed whether dispatch succeeded or not; retrying is the
// source system's responsibility.
type IntegrationEvent struct {
	ID                 string         `json:"id"`
	Type               string         `json:"type"`
	Source             string         `json:"source"`
	Data               map[string]any `json:"data,omitempty"`
	Processed          bool           `json:"processed"`
	ProcessingAttempts int            `json:"processing_attempts"`
	WorkflowTriggers   []string       `json:"workflow_triggers,omitempty"`
	ReceivedAt         time.Time      `json:"received_at"`
}

// IntegrationStatus is the aggregate reported by the engine's status query.
type IntegrationStatus struct {
	RegisteredSystems []string       `json:"registered_systems"`
	ActiveWorkflows   int            `json:"active_workflows"`
	PausedWorkflows   int            `json:"paused_workflows"`
	ActiveDataFlows   int            `json:"active_data_flows"`
	ErroredDataFlows  int            `json:"errored_data_flows"`
	EventsProcessed   int            `json:"events_processed"`
	EventsBySource    map[string]int `json:"events_by_source,omitempty"`
}

// WorkflowAnalytics is the advisory output mined from execution metrics.
// It never rewrites workflow definitions.
type WorkflowAnalytics struct {
	Bottlenecks         []Bottleneck        `json:"bottlenecks,omitempty"`
	Opportunities       []Opportunity       `json:"opportunities,omitempty"`
	PerformanceBySystem map[string]SystemPerformance `json:"performance_by_system,omitempty"`
}

// Bottleneck flags a workflow whose metrics look degraded.
type Bottleneck struct {
	WorkflowID string  `json:"workflow_id"`
	Reason     string  `json:"reason"`
	Metric     float64 `json:"metric"`
}

// Opportunity is an advisory optimization suggestion.
type Opportunity struct {
	WorkflowID string `json:"workflow_id"`
	Kind       string `json:"kind"`
	Suggestion string `json:"suggestion"`
}

// SystemPerformance aggregates step metrics per target system.
type SystemPerformance struct {
	Workflows    int     `json:"workflows"`
	StepCount    int     `json:"step_count"`
	SuccessRate  float64 `json:"success_rate"`
	AvgDuration  time.Duration `json:"avg_duration"`
}
