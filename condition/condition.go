// Package condition evaluates trigger and step conditions against arbitrary
// records. Evaluation is a pure function: the same conditions against the
// same record always yield the same result.
package condition

import (
	"fmt"
	"strconv"
	"strings"

	workflow "github.com/goliatone/go-workflow"
)

// Evaluate combines conditions with the given logic against a record.
// An empty list is vacuously true under AND so "always fire" triggers work;
// under OR it is false.
func Evaluate(conditions []workflow.Condition, logic workflow.Logic, record map[string]any) bool {
	if len(conditions) == 0 {
		return logic != workflow.LogicOr
	}

	for _, cond := range conditions {
		matched := Match(cond, record)
		if logic == workflow.LogicOr {
			if matched {
				return true
			}
			continue
		}
		// AND short-circuits on the first non-match
		if !matched {
			return false
		}
	}
	return logic != workflow.LogicOr
}

// Match evaluates a single condition. Missing fields never match; operators
// never panic on unexpected value shapes.
func Match(cond workflow.Condition, record map[string]any) bool {
	value, ok := Resolve(record, cond.Field)

	switch cond.Operator {
	case workflow.OpExists:
		return ok && value != nil
	case workflow.OpEquals:
		return ok && equals(value, cond.Value)
	case workflow.OpNotEquals:
		return ok && !equals(value, cond.Value)
	case workflow.OpContains:
		return ok && strings.Contains(
			strings.ToLower(coerceString(value)),
			strings.ToLower(coerceString(cond.Value)),
		)
	case workflow.OpGreaterThan:
		a, aok := coerceFloat(value)
		b, bok := coerceFloat(cond.Value)
		return ok && aok && bok && a > b
	case workflow.OpLessThan:
		a, aok := coerceFloat(value)
		b, bok := coerceFloat(cond.Value)
		return ok && aok && bok && a < b
	case workflow.OpIn:
		return ok && contains(cond.Value, value)
	case workflow.OpNotIn:
		return ok && !contains(cond.Value, value)
	default:
		return false
	}
}

// Resolve walks a dotted path (a.b.c) into nested maps. Missing intermediate
// keys resolve to a non-match rather than an error.
func Resolve(record map[string]any, path string) (any, bool) {
	if record == nil || path == "" {
		return nil, false
	}

	parts := strings.Split(path, ".")
	var current any = record
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func equals(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if af, aok := coerceFloat(a); aok {
		if bf, bok := coerceFloat(b); bok {
			return af == bf
		}
	}
	return coerceString(a) == coerceString(b)
}

func contains(list any, value any) bool {
	switch items := list.(type) {
	case []any:
		for _, item := range items {
			if equals(item, value) {
				return true
			}
		}
	case []string:
		for _, item := range items {
			if equals(item, value) {
				return true
			}
		}
	}
	return false
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

func coerceFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
