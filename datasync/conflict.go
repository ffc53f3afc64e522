package datasync

import (
	"time"

	workflow "github.com/goliatone/go-workflow"
	"github.com/goliatone/go-workflow/condition"
)

// ConflictResolver implements the custom conflict strategy. It returns the
// record to write, or write=false to keep the target untouched.
type ConflictResolver func(source, target map[string]any) (record map[string]any, write bool, err error)

// conflictDecision is the outcome of resolving one diverged record.
type conflictDecision struct {
	write  bool
	record map[string]any
	manual bool
}

// resolveConflict applies the flow's strategy to a source record whose
// target counterpart has diverged.
func (s *Synchronizer) resolveConflict(flow *workflow.DataFlow, source, target map[string]any) (conflictDecision, error) {
	switch flow.ConflictResolution.Strategy {
	case workflow.ConflictSourceWins, "":
		return conflictDecision{write: true, record: source}, nil

	case workflow.ConflictTargetWins:
		return conflictDecision{write: false}, nil

	case workflow.ConflictLatestWins:
		field := flow.ConflictResolution.TimestampField
		if field == "" {
			field = "updated_at"
		}
		sourceTime := timestampOf(source, field)
		targetTime := timestampOf(target, field)
		// ties resolve to source_wins
		if targetTime.After(sourceTime) {
			return conflictDecision{write: false}, nil
		}
		return conflictDecision{write: true, record: source}, nil

	case workflow.ConflictManual:
		return conflictDecision{write: false, manual: true}, nil

	case workflow.ConflictCustom:
		if s.resolver == nil {
			return conflictDecision{}, workflow.NewError(workflow.ErrConfiguration,
				"custom conflict strategy requires a resolver", nil,
				map[string]any{"flow_id": flow.ID})
		}
		record, write, err := s.resolver(source, target)
		if err != nil {
			return conflictDecision{}, err
		}
		return conflictDecision{write: write, record: record}, nil

	default:
		return conflictDecision{}, workflow.NewError(workflow.ErrConfiguration,
			"unknown conflict strategy "+string(flow.ConflictResolution.Strategy), nil,
			map[string]any{"flow_id": flow.ID})
	}
}

// diverged reports whether the mapped source record and the existing target
// record differ on any field the sync would write.
func diverged(source, target map[string]any) bool {
	for key, value := range source {
		existing, ok := target[key]
		if !ok {
			return true
		}
		if coerceString(existing) != coerceString(value) {
			return true
		}
	}
	return false
}

func timestampOf(record map[string]any, field string) time.Time {
	value, ok := condition.Resolve(record, field)
	if !ok {
		return time.Time{}
	}
	switch t := value.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	case int64:
		return time.Unix(t, 0)
	case float64:
		return time.Unix(int64(t), 0)
	}
	return time.Time{}
}
