package operations

import (
	"fmt"
	"sync"
)

// Registry manages registered steps
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
	order []string // registration order
}

// NewRegistry creates an empty step registry
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[string]Step),
		order: make([]string, 0),
	}
}

// Register adds a step to the registry
func (r *Registry) Register(step Step) error {
	if step == nil {
		return fmt.Errorf("cannot register nil step")
	}

	id := step.ID()
	if id == "" {
		return fmt.Errorf("step ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.steps[id]; exists {
		return fmt.Errorf("step with ID %s already registered", id)
	}

	r.steps[id] = step
	r.order = append(r.order, id)
	return nil
}

// Get retrieves a step by ID
func (r *Registry) Get(id string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[id]
	if !exists {
		return nil, fmt.Errorf("step with ID %s not found", id)
	}
	return step, nil
}

// List returns all registered steps in registration order
func (r *Registry) List() []Step {
	r.mu.RLock()
	defer r.mu.RUnlock()

	steps := make([]Step, 0, len(r.order))
	for _, id := range r.order {
		steps = append(steps, r.steps[id])
	}
	return steps
}

// Count returns the number of registered steps
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}

// Ordered returns the steps in dependency order. Steps that become ready at
// the same time keep their registration order.
func (r *Registry) Ordered() ([]Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	graph := make(map[string][]string)
	inDegree := make(map[string]int)
	for id := range r.steps {
		inDegree[id] = 0
	}

	for _, id := range r.order {
		for _, dep := range r.steps[id].Dependencies() {
			if _, exists := r.steps[dep]; !exists {
				return nil, fmt.Errorf("step %s depends on unknown step %s", id, dep)
			}
			graph[dep] = append(graph[dep], id)
			inDegree[id]++
		}
	}

	rank := make(map[string]int, len(r.order))
	for i, id := range r.order {
		rank[id] = i
	}

	var queue []string
	for _, id := range r.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	ordered := make([]Step, 0, len(r.steps))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		ordered = append(ordered, r.steps[current])

		var ready []string
		for _, dependent := range graph[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		// newly available steps join the queue in registration order
		for i := 1; i < len(ready); i++ {
			for j := i; j > 0 && rank[ready[j]] < rank[ready[j-1]]; j-- {
				ready[j], ready[j-1] = ready[j-1], ready[j]
			}
		}
		queue = append(queue, ready...)
	}

	if len(ordered) != len(r.steps) {
		var stuck []string
		for _, id := range r.order {
			if inDegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, fmt.Errorf("dependency cycle detected among %v", stuck)
	}
	return ordered, nil
}

// Dependents returns the steps that depend on id, directly or transitively,
// in registration order
func (r *Registry) Dependents(id string) []Step {
	r.mu.RLock()
	defer r.mu.RUnlock()

	affected := map[string]bool{id: true}
	for changed := true; changed; {
		changed = false
		for _, sid := range r.order {
			if affected[sid] {
				continue
			}
			for _, dep := range r.steps[sid].Dependencies() {
				if affected[dep] {
					affected[sid] = true
					changed = true
					break
				}
			}
		}
	}

	var out []Step
	for _, sid := range r.order {
		if sid != id && affected[sid] {
			out = append(out, r.steps[sid])
		}
	}
	return out
}
