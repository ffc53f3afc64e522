// Package config loads workflow and data flow definitions from YAML or
// JSON documents and registers them with an engine.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	workflow "github.com/goliatone/go-workflow"
	"github.com/goliatone/go-workflow/engine"
)

// Defaults are merged into steps that do not set their own values.
type Defaults struct {
	StepTimeout time.Duration        `json:"step_timeout,omitempty" yaml:"step_timeout,omitempty"`
	RetryPolicy workflow.RetryPolicy `json:"retry_policy,omitempty" yaml:"retry_policy,omitempty"`
}

// DefinitionSet is one parsed definitions document.
type DefinitionSet struct {
	Defaults  Defaults                    `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Workflows []workflow.BusinessWorkflow `json:"workflows,omitempty" yaml:"workflows,omitempty"`
	DataFlows []workflow.DataFlow         `json:"data_flows,omitempty" yaml:"data_flows,omitempty"`
}

// ParseDefinitions parses JSON or YAML into a DefinitionSet.
func ParseDefinitions(data []byte) (DefinitionSet, error) {
	var set DefinitionSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		// yaml can handle JSON too, so a single attempt is fine
		return set, err
	}
	set.applyDefaults()
	return set, set.Validate()
}

// LoadDefinitions reads and parses a definitions file.
func LoadDefinitions(path string) (DefinitionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefinitionSet{}, err
	}
	set, err := ParseDefinitions(data)
	if err != nil {
		return set, fmt.Errorf("parse %s: %w", path, err)
	}
	return set, nil
}

func (s *DefinitionSet) applyDefaults() {
	for wi := range s.Workflows {
		for si := range s.Workflows[wi].Steps {
			step := &s.Workflows[wi].Steps[si]
			if step.Timeout == 0 {
				step.Timeout = s.Defaults.StepTimeout
			}
			if step.RetryPolicy.MaxRetries == 0 && step.RetryPolicy.RetryDelay == 0 {
				step.RetryPolicy = s.Defaults.RetryPolicy
			}
		}
	}
	// flows load enabled, matching engine.CreateDataFlow; a flow is turned
	// off by pausing it, not by the enabled flag's zero value
	for fi := range s.DataFlows {
		s.DataFlows[fi].SyncRules.Enabled = true
	}
}

// Validate checks every definition in the set. Workflows are validated with
// the same graph rules the engine enforces at creation time, so a set that
// validates here will be accepted there.
func (s DefinitionSet) Validate() error {
	seen := make(map[string]bool)
	for i := range s.Workflows {
		wf := &s.Workflows[i]
		if wf.Name == "" {
			return workflow.NewError(workflow.ErrWorkflowInvalid,
				fmt.Sprintf("workflow at index %d has no name", i), nil, nil)
		}
		if wf.ID != "" {
			if seen[wf.ID] {
				return workflow.NewError(workflow.ErrWorkflowInvalid,
					"duplicate workflow id "+wf.ID, nil, nil)
			}
			seen[wf.ID] = true
		}
		if err := engine.ValidateGraph(wf); err != nil {
			return err
		}
	}

	// flows share the engine's validation so both entry points agree
	for i := range s.DataFlows {
		if err := engine.ValidateFlow(&s.DataFlows[i]); err != nil {
			return err
		}
	}
	return nil
}

// Apply registers every definition in the set with the engine and returns
// the stored ids in declaration order.
func Apply(ctx context.Context, e *engine.Engine, set DefinitionSet) (workflowIDs, flowIDs []string, err error) {
	for i := range set.Workflows {
		wf := set.Workflows[i]
		created, err := e.CreateBusinessWorkflow(ctx, &wf)
		if err != nil {
			return workflowIDs, flowIDs, fmt.Errorf("create workflow %s: %w", wf.Name, err)
		}
		workflowIDs = append(workflowIDs, created.ID)
	}
	for i := range set.DataFlows {
		flow := set.DataFlows[i]
		created, err := e.CreateDataFlow(ctx, &flow)
		if err != nil {
			return workflowIDs, flowIDs, fmt.Errorf("create data flow %s: %w", flow.Name, err)
		}
		flowIDs = append(flowIDs, created.ID)
	}
	return workflowIDs, flowIDs, nil
}

// MarshalDefinitions renders a DefinitionSet as JSON (useful for fixtures).
func MarshalDefinitions(set DefinitionSet) ([]byte, error) {
	return json.Marshal(set)
}
