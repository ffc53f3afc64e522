package datasync

import (
	"testing"
	"time"

	workflow "github.com/goliatone/go-workflow"
)

func flowWithStrategy(strategy workflow.ConflictStrategy) *workflow.DataFlow {
	return &workflow.DataFlow{
		ID:                 "flow-conflict",
		ConflictResolution: workflow.ConflictResolution{Strategy: strategy},
	}
}

func TestResolveConflictSourceWins(t *testing.T) {
	s := New(nil)
	source := map[string]any{"id": "r1", "name": "source"}
	target := map[string]any{"id": "r1", "name": "target"}

	for _, strategy := range []workflow.ConflictStrategy{workflow.ConflictSourceWins, ""} {
		decision, err := s.resolveConflict(flowWithStrategy(strategy), source, target)
		if err != nil {
			t.Fatalf("resolveConflict(%q): %v", strategy, err)
		}
		if !decision.write {
			t.Errorf("strategy %q should write", strategy)
		}
		if decision.record["name"] != "source" {
			t.Errorf("strategy %q kept %v", strategy, decision.record["name"])
		}
	}
}

func TestResolveConflictTargetWins(t *testing.T) {
	s := New(nil)
	decision, err := s.resolveConflict(flowWithStrategy(workflow.ConflictTargetWins),
		map[string]any{"id": "r1"}, map[string]any{"id": "r1"})
	if err != nil {
		t.Fatal(err)
	}
	if decision.write {
		t.Error("target_wins should skip the write")
	}
}

func TestResolveConflictLatestWins(t *testing.T) {
	s := New(nil)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		source     any
		target     any
		wantSource bool
	}{
		{"source newer", base.Add(time.Minute), base, true},
		{"target newer", base, base.Add(time.Minute), false},
		{"tie goes to source", base, base, true},
		{"rfc3339 strings", base.Add(time.Hour).Format(time.RFC3339), base.Format(time.RFC3339), true},
		{"unix seconds", base.Unix(), base.Add(-time.Hour).Unix(), true},
		{"missing timestamps tie to source", nil, nil, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			flow := flowWithStrategy(workflow.ConflictLatestWins)
			source := map[string]any{"id": "r1", "updated_at": tc.source}
			target := map[string]any{"id": "r1", "updated_at": tc.target}

			decision, err := s.resolveConflict(flow, source, target)
			if err != nil {
				t.Fatal(err)
			}
			if decision.write != tc.wantSource {
				t.Errorf("write = %v, want %v", decision.write, tc.wantSource)
			}
		})
	}
}

func TestResolveConflictLatestWinsCustomField(t *testing.T) {
	s := New(nil)
	flow := flowWithStrategy(workflow.ConflictLatestWins)
	flow.ConflictResolution.TimestampField = "modified"

	newer := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	decision, err := s.resolveConflict(flow,
		map[string]any{"modified": newer.Add(-time.Hour)},
		map[string]any{"modified": newer})
	if err != nil {
		t.Fatal(err)
	}
	if decision.write {
		t.Error("newer target should win")
	}
}

func TestResolveConflictManual(t *testing.T) {
	s := New(nil)
	decision, err := s.resolveConflict(flowWithStrategy(workflow.ConflictManual),
		map[string]any{}, map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if decision.write || !decision.manual {
		t.Errorf("manual strategy decision = %+v", decision)
	}
}

func TestResolveConflictCustomRequiresResolver(t *testing.T) {
	s := New(nil)
	_, err := s.resolveConflict(flowWithStrategy(workflow.ConflictCustom),
		map[string]any{}, map[string]any{})
	if !workflow.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestResolveConflictUnknownStrategy(t *testing.T) {
	s := New(nil)
	_, err := s.resolveConflict(flowWithStrategy("coin_flip"),
		map[string]any{}, map[string]any{})
	if !workflow.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDiverged(t *testing.T) {
	cases := []struct {
		name   string
		source map[string]any
		target map[string]any
		want   bool
	}{
		{"identical", map[string]any{"a": 1}, map[string]any{"a": 1}, false},
		{"different value", map[string]any{"a": 1}, map[string]any{"a": 2}, true},
		{"missing in target", map[string]any{"a": 1}, map[string]any{}, true},
		{"extra target fields ignored", map[string]any{"a": 1}, map[string]any{"a": 1, "b": 2}, false},
		{"numeric coercion", map[string]any{"a": 1}, map[string]any{"a": "1"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := diverged(tc.source, tc.target); got != tc.want {
				t.Errorf("diverged = %v, want %v", got, tc.want)
			}
		})
	}
}
