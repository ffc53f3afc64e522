package condition

import (
	"testing"

	workflow "github.com/goliatone/go-workflow"
)

func record() map[string]any {
	return map[string]any{
		"status": "active",
		"lead": map[string]any{
			"score": 82,
			"owner": map[string]any{
				"email": "Sales@Example.com",
			},
		},
		"tags": []any{"vip", "trial"},
	}
}

func TestEvaluateOperators(t *testing.T) {
	tests := []struct {
		name string
		cond workflow.Condition
		want bool
	}{
		{"equals match", workflow.Condition{Field: "status", Operator: workflow.OpEquals, Value: "active"}, true},
		{"equals mismatch", workflow.Condition{Field: "status", Operator: workflow.OpEquals, Value: "paused"}, false},
		{"equals numeric coercion", workflow.Condition{Field: "lead.score", Operator: workflow.OpEquals, Value: 82.0}, true},
		{"not_equals", workflow.Condition{Field: "status", Operator: workflow.OpNotEquals, Value: "paused"}, true},
		{"contains case-insensitive", workflow.Condition{Field: "lead.owner.email", Operator: workflow.OpContains, Value: "sales@"}, true},
		{"greater_than", workflow.Condition{Field: "lead.score", Operator: workflow.OpGreaterThan, Value: 80}, true},
		{"greater_than false", workflow.Condition{Field: "lead.score", Operator: workflow.OpGreaterThan, Value: 90}, false},
		{"less_than", workflow.Condition{Field: "lead.score", Operator: workflow.OpLessThan, Value: 90}, true},
		{"in", workflow.Condition{Field: "status", Operator: workflow.OpIn, Value: []any{"active", "draft"}}, true},
		{"not_in", workflow.Condition{Field: "status", Operator: workflow.OpNotIn, Value: []any{"paused"}}, true},
		{"exists", workflow.Condition{Field: "lead.owner", Operator: workflow.OpExists}, true},
		{"exists missing", workflow.Condition{Field: "lead.manager", Operator: workflow.OpExists}, false},
		{"missing path never matches", workflow.Condition{Field: "a.b.c", Operator: workflow.OpEquals, Value: "x"}, false},
		{"scalar intermediate never matches", workflow.Condition{Field: "status.inner", Operator: workflow.OpEquals, Value: "x"}, false},
		{"unknown operator", workflow.Condition{Field: "status", Operator: "like", Value: "act"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(tt.cond, record()); got != tt.want {
				t.Fatalf("Match(%v) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestEvaluateLogic(t *testing.T) {
	match := workflow.Condition{Field: "status", Operator: workflow.OpEquals, Value: "active"}
	miss := workflow.Condition{Field: "status", Operator: workflow.OpEquals, Value: "paused"}

	if !Evaluate([]workflow.Condition{match, match}, workflow.LogicAnd, record()) {
		t.Fatal("expected AND of matches to be true")
	}
	if Evaluate([]workflow.Condition{match, miss}, workflow.LogicAnd, record()) {
		t.Fatal("expected AND with one miss to be false")
	}
	if !Evaluate([]workflow.Condition{miss, match}, workflow.LogicOr, record()) {
		t.Fatal("expected OR with one match to be true")
	}
	if Evaluate([]workflow.Condition{miss, miss}, workflow.LogicOr, record()) {
		t.Fatal("expected OR with no matches to be false")
	}
}

func TestEvaluateEmptyConditions(t *testing.T) {
	// vacuous truth for AND enables "always fire" triggers
	if !Evaluate(nil, workflow.LogicAnd, record()) {
		t.Fatal("expected empty AND list to be vacuously true")
	}
	if Evaluate(nil, workflow.LogicOr, record()) {
		t.Fatal("expected empty OR list to be false")
	}
}

func TestEvaluateIsPure(t *testing.T) {
	conds := []workflow.Condition{
		{Field: "lead.score", Operator: workflow.OpGreaterThan, Value: 50},
		{Field: "status", Operator: workflow.OpEquals, Value: "active"},
	}
	rec := record()
	first := Evaluate(conds, workflow.LogicAnd, rec)
	second := Evaluate(conds, workflow.LogicAnd, rec)
	if first != second {
		t.Fatalf("evaluation not idempotent: %v then %v", first, second)
	}
}
