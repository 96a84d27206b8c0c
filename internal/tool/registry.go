// Package tool provides the registry and execution layer for the operations
// the planner can invoke. Lookup is fail-closed: a signature naming an
// unregistered tool is rejected, never approximated to a similar name.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/graphwright/graphwright/internal/types"
)

// Registry manages tool registration, discovery, and metered execution.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	metrics map[string]*ToolMetrics
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		metrics: make(map[string]*ToolMetrics),
	}
}

// Register adds a tool. Registering a name twice is an error.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return types.NewError(types.VALIDATION_FAILED, "tool cannot be nil")
	}
	name := t.Name()
	if name == "" {
		return types.NewError(types.VALIDATION_FAILED, "tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return types.NewError(types.VALIDATION_FAILED, fmt.Sprintf("tool %q already registered", name))
	}

	r.tools[name] = t
	r.metrics[name] = &ToolMetrics{}
	return nil
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return types.NewError(types.TOOL_NOT_FOUND, fmt.Sprintf("tool %q not found", name))
	}

	delete(r.tools, name)
	delete(r.metrics, name)
	return nil
}

// Get retrieves a tool by exact name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tools[name]
	if !exists {
		return nil, types.NewError(types.TOOL_NOT_FOUND, fmt.Sprintf("tool %q not found", name))
	}
	return t, nil
}

// List returns descriptors for all registered tools, sorted by name.
func (r *Registry) List() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		descriptors = append(descriptors, NewToolDescriptor(t))
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})
	return descriptors
}

// Execute runs a tool by name, recording metrics. Lookup failures do not
// count against the tool's metrics because no tool ran.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	t, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	output, execErr := t.Execute(ctx, args)
	duration := time.Since(start)

	r.mu.Lock()
	if m, ok := r.metrics[name]; ok {
		if execErr != nil {
			m.RecordFailure(duration)
		} else {
			m.RecordSuccess(duration)
		}
	}
	r.mu.Unlock()

	if execErr != nil {
		// Coded errors pass through untouched so their code and retryable
		// hint survive into the execution result.
		if types.CodeOf(execErr) != "" {
			return nil, execErr
		}
		return nil, types.WrapError(types.TOOL_EXEC_FAILED, fmt.Sprintf("tool %q execution failed", name), execErr)
	}
	return output, nil
}

// Health aggregates the health of all registered tools.
func (r *Registry) Health(ctx context.Context) types.HealthStatus {
	r.mu.RLock()
	tools := make(map[string]Tool, len(r.tools))
	for name, t := range r.tools {
		tools[name] = t
	}
	r.mu.RUnlock()

	if len(tools) == 0 {
		return types.Unhealthy("no tools registered")
	}

	healthy := 0
	for _, t := range tools {
		if t.Health(ctx).State == types.HealthStateHealthy {
			healthy++
		}
	}

	switch healthy {
	case len(tools):
		return types.Healthy(fmt.Sprintf("all %d tools healthy", len(tools)))
	case 0:
		return types.Unhealthy(fmt.Sprintf("all %d tools unhealthy", len(tools)))
	default:
		return types.Degraded(fmt.Sprintf("%d/%d tools healthy", healthy, len(tools)))
	}
}

// Metrics returns a copy of a tool's execution metrics.
func (r *Registry) Metrics(name string) (ToolMetrics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.metrics[name]
	if !exists {
		return ToolMetrics{}, types.NewError(types.TOOL_NOT_FOUND, fmt.Sprintf("tool %q not found", name))
	}
	return *m, nil
}
