package datasync

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	workflow "github.com/goliatone/go-workflow"
	"github.com/goliatone/go-workflow/condition"
)

// TransformFunc is a custom transform injected by name; it returns the new
// field value.
type TransformFunc func(record map[string]any, rule workflow.TransformRule) (any, error)

// applyTransforms runs the flow's transform rules in declaration order,
// mutating the record in place.
func (s *Synchronizer) applyTransforms(record map[string]any, rules []workflow.TransformRule) error {
	for _, rule := range rules {
		value, ok := record[rule.Field]

		switch rule.Type {
		case "uppercase":
			if ok {
				record[rule.Field] = strings.ToUpper(coerceString(value))
			}
		case "lowercase":
			if ok {
				record[rule.Field] = strings.ToLower(coerceString(value))
			}
		case "trim":
			if ok {
				record[rule.Field] = strings.TrimSpace(coerceString(value))
			}
		case "format":
			if ok && rule.Format != "" {
				record[rule.Field] = fmt.Sprintf(rule.Format, value)
			}
		case "calculate":
			result, err := calculate(rule.Expression, record)
			if err != nil {
				return workflow.NewError(workflow.ErrConfiguration,
					"calculate rule failed for field "+rule.Field, err,
					map[string]any{"expression": rule.Expression})
			}
			record[rule.Field] = result
		case "lookup":
			if ok {
				if mapped, found := rule.Lookup[coerceString(value)]; found {
					record[rule.Field] = mapped
				}
			}
		case "custom":
			fn, found := s.transforms[rule.Expression]
			if !found {
				return workflow.NewError(workflow.ErrConfiguration,
					"no custom transform registered as "+rule.Expression, nil, nil)
			}
			out, err := fn(record, rule)
			if err != nil {
				return err
			}
			record[rule.Field] = out
		default:
			return workflow.NewError(workflow.ErrConfiguration,
				"unknown transform type "+rule.Type, nil, nil)
		}
	}
	return nil
}

// validateRecord applies the flow's validation rules. A failing record is
// rejected (skipped and counted), never a sync error.
func validateRecord(record map[string]any, rules []workflow.ValidationRule) error {
	for _, rule := range rules {
		value, ok := record[rule.Field]

		switch rule.Type {
		case "required":
			if !ok || value == nil || coerceString(value) == "" {
				return workflow.NewError(workflow.ErrValidation,
					"missing required field "+rule.Field, nil,
					map[string]any{"field": rule.Field})
			}
		case "format":
			if !ok || rule.Pattern == "" {
				continue
			}
			matched, err := regexp.MatchString(rule.Pattern, coerceString(value))
			if err != nil || !matched {
				return workflow.NewError(workflow.ErrValidation,
					"field "+rule.Field+" does not match pattern", err,
					map[string]any{"field": rule.Field, "pattern": rule.Pattern})
			}
		case "min_length":
			if ok && len(coerceString(value)) < rule.MinLength {
				return workflow.NewError(workflow.ErrValidation,
					"field "+rule.Field+" shorter than minimum", nil,
					map[string]any{"field": rule.Field, "min_length": rule.MinLength})
			}
		case "max_length":
			if ok && rule.MaxLength > 0 && len(coerceString(value)) > rule.MaxLength {
				return workflow.NewError(workflow.ErrValidation,
					"field "+rule.Field+" longer than maximum", nil,
					map[string]any{"field": rule.Field, "max_length": rule.MaxLength})
			}
		}
	}
	return nil
}

// applyEnrichment adds computed fields to the record before mapping.
func (s *Synchronizer) applyEnrichment(record map[string]any, rules []workflow.EnrichmentRule) error {
	for _, rule := range rules {
		switch rule.Type {
		case "static":
			record[rule.Field] = rule.Value
		case "lookup":
			key, ok := condition.Resolve(record, rule.SourceKey)
			if !ok {
				continue
			}
			if mapped, found := rule.Lookup[coerceString(key)]; found {
				record[rule.Field] = mapped
			}
		case "calculation":
			result, err := calculate(rule.Expression, record)
			if err != nil {
				return workflow.NewError(workflow.ErrConfiguration,
					"enrichment calculation failed for field "+rule.Field, err,
					map[string]any{"expression": rule.Expression})
			}
			record[rule.Field] = result
		case "external":
			if s.enricher == nil {
				return workflow.NewError(workflow.ErrConfiguration,
					"no external enricher configured for field "+rule.Field, nil, nil)
			}
			value, err := s.enricher.Enrich(rule, record)
			if err != nil {
				return err
			}
			record[rule.Field] = value
		default:
			return workflow.NewError(workflow.ErrConfiguration,
				"unknown enrichment type "+rule.Type, nil, nil)
		}
	}
	return nil
}

// calculate evaluates a minimal "<operand> <op> <operand>" arithmetic
// expression where operands are dotted field paths or numeric literals.
func calculate(expression string, record map[string]any) (float64, error) {
	parts := strings.Fields(expression)
	if len(parts) != 3 {
		return 0, fmt.Errorf("expression %q must be '<operand> <op> <operand>'", expression)
	}

	left, err := operand(parts[0], record)
	if err != nil {
		return 0, err
	}
	right, err := operand(parts[2], record)
	if err != nil {
		return 0, err
	}

	switch parts[1] {
	case "+":
		return left + right, nil
	case "-":
		return left - right, nil
	case "*":
		return left * right, nil
	case "/":
		if right == 0 {
			return 0, fmt.Errorf("division by zero in %q", expression)
		}
		return left / right, nil
	default:
		return 0, fmt.Errorf("unsupported operator %q", parts[1])
	}
}

func operand(token string, record map[string]any) (float64, error) {
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f, nil
	}
	value, ok := condition.Resolve(record, token)
	if !ok {
		return 0, fmt.Errorf("field %q not found", token)
	}
	f, ok := coerceFloat(value)
	if !ok {
		return 0, fmt.Errorf("field %q is not numeric", token)
	}
	return f, nil
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
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
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
