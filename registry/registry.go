// Package registry dispatches a step's (system, action) pair to a
// system-specific executor. Executors are side-effecting against their
// target system and must be idempotent-safe to retry; the engine does not
// deduplicate retried side effects.
package registry

import (
	"context"
	"sort"
	"sync"

	workflow "github.com/goliatone/go-workflow"
)

// Executor runs one action against a target system.
type Executor interface {
	Execute(ctx context.Context, action string, params map[string]any, execCtx *workflow.ExecutionContext) (map[string]any, error)
}

// ExecutorFunc is an adapter that lets you use a function as an Executor.
type ExecutorFunc func(ctx context.Context, action string, params map[string]any, execCtx *workflow.ExecutionContext) (map[string]any, error)

// Execute calls the underlying function.
func (f ExecutorFunc) Execute(ctx context.Context, action string, params map[string]any, execCtx *workflow.ExecutionContext) (map[string]any, error) {
	return f(ctx, action, params, execCtx)
}

// Registry maps system names to their executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
	}
}

// Register stores the executor for a system, replacing any previous one.
func (r *Registry) Register(system string, executor Executor) error {
	if system == "" || executor == nil {
		return workflow.NewError(workflow.ErrConfiguration, "executor registration requires a system and handler", nil, nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.executors == nil {
		r.executors = make(map[string]Executor)
	}
	r.executors[system] = executor
	return nil
}

// RegisterFunc stores a function executor for a system.
func (r *Registry) RegisterFunc(system string, fn ExecutorFunc) error {
	return r.Register(system, fn)
}

// Lookup returns the executor for a system.
func (r *Registry) Lookup(system string) (Executor, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[system]
	return e, ok
}

// Execute dispatches to the system's executor. An unregistered system is a
// configuration error, never a silent skip.
func (r *Registry) Execute(ctx context.Context, system, action string, params map[string]any, execCtx *workflow.ExecutionContext) (map[string]any, error) {
	executor, ok := r.Lookup(system)
	if !ok {
		return nil, workflow.NewError(
			workflow.ErrConfiguration,
			"no executor registered for system "+system,
			nil,
			map[string]any{"system": system, "action": action},
		)
	}

	out, err := executor.Execute(ctx, action, params, execCtx)
	if err != nil {
		if workflow.ErrorCode(err) != "" {
			return nil, err
		}
		return nil, workflow.NewError(
			workflow.ErrActionFailed,
			"executor failed for "+system+"."+action,
			err,
			map[string]any{"system": system, "action": action},
		)
	}
	return out, nil
}

// Systems returns sorted registered system names.
func (r *Registry) Systems() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	systems := make([]string, 0, len(r.executors))
	for system := range r.executors {
		systems = append(systems, system)
	}
	sort.Strings(systems)
	return systems
}
