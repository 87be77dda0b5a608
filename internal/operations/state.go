package operations

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the overall status of a run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunState represents the complete state of a run
type RunState struct {
	mu sync.RWMutex

	ID        string     `json:"id"`
	Status    RunStatus  `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	steps  map[string]*StepState
	order  []string
	values map[string]interface{}

	Error error `json:"-"`
}

// NewRunState creates a pending run state. An empty id is replaced by a new uuid.
func NewRunState(id string) *RunState {
	if id == "" {
		id = uuid.NewString()
	}
	return &RunState{
		ID:     id,
		Status: RunStatusPending,
		steps:  make(map[string]*StepState),
		values: make(map[string]interface{}),
	}
}

// Start marks the run as running
func (r *RunState) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunStatusRunning
	r.StartTime = time.Now()
}

// Finish records the final status of the run
func (r *RunState) Finish(status RunStatus, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = status
	r.Error = err
}

// GetStatus returns the current run status
func (r *RunState) GetStatus() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// AddStep tracks the state of a step
func (r *RunState) AddStep(s *StepState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.steps[s.ID]; !ok {
		r.order = append(r.order, s.ID)
	}
	r.steps[s.ID] = s
}

// Step returns the state of a step, or nil
func (r *RunState) Step(id string) *StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.steps[id]
}

// Steps returns the step states in execution order
func (r *RunState) Steps() []*StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*StepState, len(r.order))
	for i, id := range r.order {
		out[i] = r.steps[id]
	}
	return out
}

// SetValue stores a value shared between steps
func (r *RunState) SetValue(key string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
}

// GetValue retrieves a value stored by an earlier step
func (r *RunState) GetValue(key string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	return v, ok
}
