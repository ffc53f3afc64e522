package engine

import (
	"context"
	"sort"
	"sync"

	workflow "github.com/goliatone/go-workflow"
)

// ProcessIntegrationEvent matches an inbound event against registered
// workflow triggers and launches every match concurrently. The event is
// marked processed once the dispatch attempt completes, success or failure;
// retrying is the source system's responsibility.
func (e *Engine) ProcessIntegrationEvent(ctx context.Context, event *workflow.IntegrationEvent) error {
	if event == nil {
		return workflow.NewError(workflow.ErrWorkflowInvalid, "event is nil", nil, nil)
	}
	if event.ID == "" {
		event.ID = e.newID()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = e.now()
	}
	if err := e.events.Save(ctx, event); err != nil {
		return err
	}

	// processing attempts increment exactly once per processing call
	if err := e.events.Update(ctx, event.ID, func(stored *workflow.IntegrationEvent) error {
		stored.ProcessingAttempts++
		return nil
	}); err != nil {
		return err
	}

	matches, err := e.matchWorkflows(ctx, event)
	if err != nil {
		return err
	}

	// real-time data flows sourced from this system ride the same event
	e.kickRealTimeFlows(ctx, event)

	log := workflow.WithLoggerFields(e.logger, map[string]any{
		"event_id": event.ID,
		"source":   event.Source,
		"type":     event.Type,
	})
	log.Debug("event matched %d workflows", len(matches))

	triggered := make([]string, 0, len(matches))
	var wg sync.WaitGroup
	for _, wf := range matches {
		triggered = append(triggered, wf.ID)
		wg.Add(1)
		id := wf.ID
		workflow.Go(e.logger, "event-dispatch:"+id, func() error {
			defer wg.Done()
			result, err := e.ExecuteWorkflow(ctx, id, event.Data)
			if err != nil {
				return err
			}
			if !result.Success {
				log.Warn("workflow %s finished unsuccessfully: %s", id, firstNonEmpty(result.Error, result.Reason))
			}
			return nil
		})
	}
	wg.Wait()

	return e.events.Update(ctx, event.ID, func(stored *workflow.IntegrationEvent) error {
		stored.Processed = true
		stored.WorkflowTriggers = append(stored.WorkflowTriggers, triggered...)
		event.Processed = true
		event.ProcessingAttempts = stored.ProcessingAttempts
		event.WorkflowTriggers = stored.WorkflowTriggers
		return nil
	})
}

// matchWorkflows finds active workflows with an enabled event trigger for
// the event's (source, type) tuple, ordered by trigger priority. Paused and
// errored workflows are filtered out before execution is ever attempted.
func (e *Engine) matchWorkflows(ctx context.Context, event *workflow.IntegrationEvent) ([]*workflow.BusinessWorkflow, error) {
	wfs, err := e.workflows.List(ctx)
	if err != nil {
		return nil, err
	}

	type match struct {
		wf       *workflow.BusinessWorkflow
		priority int
	}
	var matches []match

	for _, wf := range wfs {
		if wf.Status != workflow.StatusActive {
			continue
		}
		for _, trigger := range wf.Triggers {
			if !trigger.Enabled || trigger.Type != workflow.TriggerEvent {
				continue
			}
			if trigger.Source != event.Source || trigger.Event != event.Type {
				continue
			}
			matches = append(matches, match{wf: wf, priority: trigger.Priority})
			break
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].priority > matches[j].priority
	})

	out := make([]*workflow.BusinessWorkflow, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.wf)
	}
	return out, nil
}

// kickRealTimeFlows starts active real_time data flows whose source system
// emitted the event. Fire-and-forget; sync failures surface through the
// flow's own error state.
func (e *Engine) kickRealTimeFlows(ctx context.Context, event *workflow.IntegrationEvent) {
	if e.syncRunner == nil {
		return
	}
	flows, err := e.flows.List(ctx)
	if err != nil {
		e.logger.Error("failed to list data flows for event %s: %v", event.ID, err)
		return
	}
	for _, flow := range flows {
		if flow.Status != workflow.FlowActive || flow.Schedule.Mode != workflow.SyncRealTime {
			continue
		}
		if flow.Source.System != event.Source {
			continue
		}
		flowID := flow.ID
		workflow.Go(e.logger, "realtime-sync:"+flowID, func() error {
			_, err := e.syncRunner.RunSync(context.Background(), flowID)
			return err
		})
	}
}
