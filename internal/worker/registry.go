package worker

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps runner paths to build workers. Runners are resolved here at
// startup, from configuration, so a misconfigured runner path fails before
// any repository work instead of at call time.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]Worker
}

// NewRegistry creates a new empty worker registry.
func NewRegistry() *Registry {
	return &Registry{workers: make(map[string]Worker)}
}

// Register adds a worker under the given runner path.
// Returns an error for nil workers and duplicate registrations.
func (r *Registry) Register(runner string, w Worker) error {
	if w == nil {
		return fmt.Errorf("cannot register nil worker")
	}
	if runner == "" {
		return fmt.Errorf("runner path cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workers[runner]; exists {
		return fmt.Errorf("worker for runner %s already registered", runner)
	}
	r.workers[runner] = w
	return nil
}

// Resolve returns the worker registered for a runner path. A missing worker
// is a configuration error; the message names every registered runner to aid
// debugging a misconfigured path.
func (r *Registry) Resolve(runner string) (Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workers[runner]
	if !ok {
		return nil, &NotFoundError{Runner: runner, Available: r.runnersLocked()}
	}
	return w, nil
}

// Runners returns every registered runner path, sorted.
func (r *Registry) Runners() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runnersLocked()
}

func (r *Registry) runnersLocked() []string {
	out := make([]string, 0, len(r.workers))
	for name := range r.workers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered workers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

// NotFoundError reports a runner path with no registered worker.
type NotFoundError struct {
	Runner    string
	Available []string
}

func (e *NotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("no build worker registered for runner %q (registry is empty)", e.Runner)
	}
	return fmt.Sprintf("no build worker registered for runner %q (available: %s)",
		e.Runner, strings.Join(e.Available, ", "))
}
