// Package store defines the repository contracts the engine persists
// through. The engine is storage-agnostic: tests and the default wiring use
// the in-memory implementation, production wires a real store.
package store

import (
	"context"

	workflow "github.com/goliatone/go-workflow"
)

// WorkflowRepository persists workflow definitions and their live state.
type WorkflowRepository interface {
	Create(ctx context.Context, wf *workflow.BusinessWorkflow) error
	Get(ctx context.Context, id string) (*workflow.BusinessWorkflow, error)
	// Update applies fn to the stored workflow atomically, so concurrent
	// metric rollups never lose updates.
	Update(ctx context.Context, id string, fn func(*workflow.BusinessWorkflow) error) error
	List(ctx context.Context) ([]*workflow.BusinessWorkflow, error)
}

// DataFlowRepository persists data flow definitions and their sync state.
type DataFlowRepository interface {
	Create(ctx context.Context, flow *workflow.DataFlow) error
	Get(ctx context.Context, id string) (*workflow.DataFlow, error)
	Update(ctx context.Context, id string, fn func(*workflow.DataFlow) error) error
	List(ctx context.Context) ([]*workflow.DataFlow, error)
}

// EventRepository persists integration events and their processing state.
type EventRepository interface {
	Save(ctx context.Context, event *workflow.IntegrationEvent) error
	Get(ctx context.Context, id string) (*workflow.IntegrationEvent, error)
	Update(ctx context.Context, id string, fn func(*workflow.IntegrationEvent) error) error
	List(ctx context.Context) ([]*workflow.IntegrationEvent, error)
}
