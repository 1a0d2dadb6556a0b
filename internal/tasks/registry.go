package tasks

import (
	"context"
	"sync"

	"coursemarket_echo/internal/models"
)

// TaskHandler runs one scheduled task and returns a result map stored in the task history.
type TaskHandler func(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error)

// TaskDefinition is implemented by every task the worker knows how to run.
type TaskDefinition interface {
	TaskID() string
	HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error)
}

// Registry stores the mapping of task names to handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]TaskHandler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]TaskHandler)}
}

// Register adds a handler for a task name
func (r *Registry) Register(name string, handler TaskHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// RegisterDefinition registers a task definition under its TaskID.
func (r *Registry) RegisterDefinition(def TaskDefinition) {
	r.Register(def.TaskID(), def.HandleExecution)
}

// Get retrieves a handler for a task name
func (r *Registry) Get(name string) (TaskHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[name]
	return handler, ok
}

// Names lists the registered task names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}
