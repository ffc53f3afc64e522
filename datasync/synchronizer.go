// Package datasync executes data flow definitions: it reads filtered
// records from a source system, runs them through the transform, validation
// and enrichment pipeline, resolves conflicts with the target and writes
// the mapped result, respecting each flow's schedule and status.
package datasync

import (
	"context"
	"sync"
	"time"

	workflow "github.com/goliatone/go-workflow"
	"github.com/goliatone/go-workflow/condition"
	"github.com/goliatone/go-workflow/store"
)

// Adapter reads and writes one system's records for the synchronizer.
type Adapter interface {
	Read(ctx context.Context, entity string, fields []string) ([]map[string]any, error)
	Get(ctx context.Context, entity, id string) (map[string]any, bool, error)
	Write(ctx context.Context, entity string, record map[string]any) error
}

// Enricher resolves external-API-sourced enrichment fields.
type Enricher interface {
	Enrich(rule workflow.EnrichmentRule, record map[string]any) (any, error)
}

// Notifier raises manual-conflict notifications. Fire-and-forget.
type Notifier interface {
	Send(ctx context.Context, config workflow.NotificationConfig, payload map[string]any) error
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the synchronizer logger.
func WithLogger(l workflow.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = workflow.NormalizeLogger(l)
	}
}

// WithNotifier wires the conflict notification sender.
func WithNotifier(n Notifier) Option {
	return func(s *Synchronizer) {
		s.notifier = n
	}
}

// WithKeyField overrides the record identity field, "id" by default.
func WithKeyField(field string) Option {
	return func(s *Synchronizer) {
		if field != "" {
			s.keyField = field
		}
	}
}

// WithConflictResolver wires the custom conflict strategy.
func WithConflictResolver(r ConflictResolver) Option {
	return func(s *Synchronizer) {
		s.resolver = r
	}
}

// WithTransform registers a named custom transform.
func WithTransform(name string, fn TransformFunc) Option {
	return func(s *Synchronizer) {
		if name != "" && fn != nil {
			s.transforms[name] = fn
		}
	}
}

// WithEnricher wires the external enrichment source.
func WithEnricher(e Enricher) Option {
	return func(s *Synchronizer) {
		s.enricher = e
	}
}

// WithClock replaces the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

// Synchronizer runs data flow syncs against registered system adapters.
type Synchronizer struct {
	flows store.DataFlowRepository

	mu       sync.RWMutex
	adapters map[string]Adapter

	transforms map[string]TransformFunc
	resolver   ConflictResolver
	enricher   Enricher
	notifier   Notifier

	keyField string
	logger   workflow.Logger
	now      func() time.Time
}

// New constructs a Synchronizer over the given data flow repository.
func New(flows store.DataFlowRepository, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		flows:      flows,
		adapters:   make(map[string]Adapter),
		transforms: make(map[string]TransformFunc),
		keyField:   "id",
		logger:     workflow.NewFmtLogger(nil),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// RegisterAdapter stores the adapter for a system.
func (s *Synchronizer) RegisterAdapter(system string, adapter Adapter) error {
	if system == "" || adapter == nil {
		return workflow.NewError(workflow.ErrConfiguration, "adapter registration requires a system and adapter", nil, nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapters[system] = adapter
	return nil
}

func (s *Synchronizer) adapter(system string) (Adapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	adapter, ok := s.adapters[system]
	if !ok {
		return nil, workflow.NewError(workflow.ErrConfiguration,
			"no adapter registered for system "+system, nil,
			map[string]any{"system": system})
	}
	return adapter, nil
}

// RunSync executes one data flow run. Inactive flows no-op. Validation
// failures skip the record and continue; unrecoverable errors increment the
// flow's error count and park it in the error state until an operator
// reactivates it.
func (s *Synchronizer) RunSync(ctx context.Context, flowID string) (*workflow.SyncResult, error) {
	flow, err := s.flows.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}

	result := &workflow.SyncResult{
		FlowID:    flow.ID,
		StartedAt: s.now(),
	}

	if flow.Status != workflow.FlowActive || !flow.SyncRules.Enabled {
		result.Duration = s.now().Sub(result.StartedAt)
		return result, nil
	}

	log := workflow.WithLoggerFields(s.logger, map[string]any{
		"flow_id": flow.ID,
		"source":  flow.Source.System,
		"target":  flow.Target.System,
	})

	if err := s.runPipeline(ctx, flow, result, log); err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.Duration = s.now().Sub(result.StartedAt)
		log.Error("sync failed: %v", err)

		if updateErr := s.flows.Update(ctx, flow.ID, func(stored *workflow.DataFlow) error {
			stored.ErrorCount++
			stored.Status = workflow.FlowError
			stored.UpdatedAt = s.now()
			return nil
		}); updateErr != nil {
			log.Error("failed to record sync error: %v", updateErr)
		}
		return result, err
	}

	result.Duration = s.now().Sub(result.StartedAt)
	finished := s.now()
	if err := s.flows.Update(ctx, flow.ID, func(stored *workflow.DataFlow) error {
		stored.LastSync = finished
		stored.UpdatedAt = finished
		stored.ErrorCount = 0
		return nil
	}); err != nil {
		log.Error("failed to record sync completion: %v", err)
	}

	log.Info("sync complete read=%d written=%d rejected=%d skipped=%d conflicts=%d",
		result.Read, result.Written, result.Rejected, result.Skipped, result.Conflicts)
	return result, nil
}

func (s *Synchronizer) runPipeline(ctx context.Context, flow *workflow.DataFlow, result *workflow.SyncResult, log workflow.Logger) error {
	source, err := s.adapter(flow.Source.System)
	if err != nil {
		return err
	}
	target, err := s.adapter(flow.Target.System)
	if err != nil {
		return err
	}

	records, err := source.Read(ctx, flow.Source.Entity, flow.Source.Fields)
	if err != nil {
		return workflow.NewError(workflow.ErrActionFailed,
			"source read failed for "+flow.Source.System+"/"+flow.Source.Entity, err, nil)
	}

	for _, record := range records {
		if !condition.Evaluate(flow.Source.Filters, workflow.LogicAnd, record) {
			continue
		}
		result.Read++

		// work on a copy so adapters keep their own records pristine
		working := make(map[string]any, len(record))
		for k, v := range record {
			working[k] = v
		}

		if err := s.applyTransforms(working, flow.Transformation.Rules); err != nil {
			return err
		}

		if err := validateRecord(working, flow.Transformation.Validation); err != nil {
			result.Rejected++
			log.Debug("record rejected: %v", err)
			continue
		}

		if err := s.applyEnrichment(working, flow.Transformation.Enrichment); err != nil {
			return err
		}

		mapped := mapFields(working, flow.Target.FieldMapping, s.keyField)

		key := coerceString(mapped[s.keyField])
		var existing map[string]any
		var found bool
		if key != "" {
			existing, found, err = target.Get(ctx, flow.Target.Entity, key)
			if err != nil {
				return workflow.NewError(workflow.ErrActionFailed,
					"target lookup failed for "+flow.Target.System+"/"+flow.Target.Entity, err, nil)
			}
		}

		toWrite := mapped
		if found && diverged(mapped, existing) {
			decision, err := s.resolveConflict(flow, mapped, existing)
			if err != nil {
				return err
			}
			if decision.manual {
				result.Conflicts++
				s.notifyConflict(flow, key, mapped, existing)
				continue
			}
			if !decision.write {
				result.Skipped++
				continue
			}
			toWrite = decision.record
		}

		if err := target.Write(ctx, flow.Target.Entity, toWrite); err != nil {
			return workflow.NewError(workflow.ErrActionFailed,
				"target write failed for "+flow.Target.System+"/"+flow.Target.Entity, err,
				map[string]any{"record_key": key})
		}
		result.Written++
	}

	return nil
}

// mapFields projects a record through the target field mapping. An empty
// mapping copies the record unchanged; the identity key always survives.
func mapFields(record map[string]any, mapping map[string]string, keyField string) map[string]any {
	if len(mapping) == 0 {
		out := make(map[string]any, len(record))
		for k, v := range record {
			out[k] = v
		}
		return out
	}

	out := make(map[string]any, len(mapping)+1)
	for sourceField, targetField := range mapping {
		if value, ok := condition.Resolve(record, sourceField); ok {
			out[targetField] = value
		}
	}
	if key, ok := record[keyField]; ok {
		if _, mapped := out[keyField]; !mapped {
			out[keyField] = key
		}
	}
	return out
}

func (s *Synchronizer) notifyConflict(flow *workflow.DataFlow, key string, source, target map[string]any) {
	if s.notifier == nil || flow.ConflictResolution.Notification == nil {
		return
	}
	config := *flow.ConflictResolution.Notification
	payload := map[string]any{
		"flow_id":    flow.ID,
		"record_key": key,
		"source":     source,
		"target":     target,
	}
	notifier := s.notifier
	workflow.Go(s.logger, "conflict-notify:"+flow.ID, func() error {
		return notifier.Send(context.Background(), config, payload)
	})
}
