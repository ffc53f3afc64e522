package workflow

import "time"

// DataFlowStatus tracks the lifecycle of a data flow definition.
type DataFlowStatus string

const (
	FlowActive   DataFlowStatus = "active"
	FlowPaused   DataFlowStatus = "paused"
	FlowError    DataFlowStatus = "error"
	FlowDisabled DataFlowStatus = "disabled"
)

// SyncMode determines when a data flow runs.
type SyncMode string

const (
	SyncRealTime  SyncMode = "real_time"
	SyncScheduled SyncMode = "scheduled"
	SyncManual    SyncMode = "manual"
)

// SyncDirection describes which way records move.
type SyncDirection string

const (
	DirectionOneWay        SyncDirection = "one_way"
	DirectionBidirectional SyncDirection = "bidirectional"
)

// ConflictStrategy picks a winner when source and target diverged since the
// last sync.
type ConflictStrategy string

const (
	ConflictSourceWins ConflictStrategy = "source_wins"
	ConflictTargetWins ConflictStrategy = "target_wins"
	ConflictLatestWins ConflictStrategy = "latest_wins"
	ConflictManual     ConflictStrategy = "manual"
	ConflictCustom     ConflictStrategy = "custom"
)

// DataSource identifies where a data flow reads from.
type DataSource struct {
	System  string      `json:"system" yaml:"system"`
	Entity  string      `json:"entity" yaml:"entity"`
	Fields  []string    `json:"fields,omitempty" yaml:"fields,omitempty"`
	Filters []Condition `json:"filters,omitempty" yaml:"filters,omitempty"`
}

// DataTarget identifies where a data flow writes to.
type DataTarget struct {
	System       string            `json:"system" yaml:"system"`
	Entity       string            `json:"entity" yaml:"entity"`
	FieldMapping map[string]string `json:"field_mapping,omitempty" yaml:"field_mapping,omitempty"`
}

// TransformRule mutates one field of a record in flight.
type TransformRule struct {
	Field      string         `json:"field" yaml:"field"`
	Type       string         `json:"type" yaml:"type"`
	Format     string         `json:"format,omitempty" yaml:"format,omitempty"`
	Expression string         `json:"expression,omitempty" yaml:"expression,omitempty"`
	Lookup     map[string]any `json:"lookup,omitempty" yaml:"lookup,omitempty"`
}

// ValidationRule rejects records that fail it. Rejected records are counted
// and skipped; they never abort the whole sync.
type ValidationRule struct {
	Field     string `json:"field" yaml:"field"`
	Type      string `json:"type" yaml:"type"`
	Pattern   string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	MinLength int    `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength int    `json:"max_length,omitempty" yaml:"max_length,omitempty"`
}

// EnrichmentRule adds a field to a record before it is written.
type EnrichmentRule struct {
	Field      string         `json:"field" yaml:"field"`
	Type       string         `json:"type" yaml:"type"`
	Value      any            `json:"value,omitempty" yaml:"value,omitempty"`
	SourceKey  string         `json:"source_key,omitempty" yaml:"source_key,omitempty"`
	Lookup     map[string]any `json:"lookup,omitempty" yaml:"lookup,omitempty"`
	Expression string         `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// Transformation bundles the record pipeline applied between read and write.
type Transformation struct {
	Rules      []TransformRule  `json:"rules,omitempty" yaml:"rules,omitempty"`
	Validation []ValidationRule `json:"validation,omitempty" yaml:"validation,omitempty"`
	Enrichment []EnrichmentRule `json:"enrichment,omitempty" yaml:"enrichment,omitempty"`
}

// SyncRules scope when and what a data flow is allowed to sync.
type SyncRules struct {
	Direction  SyncDirection `json:"direction,omitempty" yaml:"direction,omitempty"`
	Frequency  string        `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	Conditions []Condition   `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Enabled    bool          `json:"enabled" yaml:"enabled"`
}

// SyncSchedule controls when a data flow runs.
type SyncSchedule struct {
	Mode       SyncMode      `json:"mode" yaml:"mode"`
	Expression string        `json:"expression,omitempty" yaml:"expression,omitempty"`
	Interval   time.Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
}

// ConflictResolution selects the winner for diverged records.
type ConflictResolution struct {
	Strategy       ConflictStrategy    `json:"strategy" yaml:"strategy"`
	TimestampField string              `json:"timestamp_field,omitempty" yaml:"timestamp_field,omitempty"`
	Notification   *NotificationConfig `json:"notification,omitempty" yaml:"notification,omitempty"`
}

// Monitoring holds alerting config consumed by collaborators.
type Monitoring struct {
	Metrics    []string         `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	AlertRules []map[string]any `json:"alert_rules,omitempty" yaml:"alert_rules,omitempty"`
}

// DataFlow is the definition of a sync between two systems. It is created
// once and runs repeatedly per its schedule. ErrorCount increments on sync
// failure and is only reset by a successful sync.
type DataFlow struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Status      DataFlowStatus `json:"status" yaml:"status"`

	Source             DataSource         `json:"source" yaml:"source"`
	Target             DataTarget         `json:"target" yaml:"target"`
	Transformation     Transformation     `json:"transformation,omitempty" yaml:"transformation,omitempty"`
	SyncRules          SyncRules          `json:"sync_rules,omitempty" yaml:"sync_rules,omitempty"`
	Schedule           SyncSchedule       `json:"schedule" yaml:"schedule"`
	ConflictResolution ConflictResolution `json:"conflict_resolution,omitempty" yaml:"conflict_resolution,omitempty"`
	Monitoring         Monitoring         `json:"monitoring,omitempty" yaml:"monitoring,omitempty"`

	ErrorCount int       `json:"error_count"`
	LastSync   time.Time `json:"last_sync,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// SyncResult reports one data flow run.
type SyncResult struct {
	FlowID    string        `json:"flow_id"`
	Read      int           `json:"read"`
	Written   int           `json:"written"`
	Skipped   int           `json:"skipped"`
	Rejected  int           `json:"rejected"`
	Conflicts int           `json:"conflicts"`
	Errors    []string      `json:"errors,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
