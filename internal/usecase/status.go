package usecase

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// TaskState is the lifecycle of one background task.
type TaskState string

const (
	TaskStateCreated   TaskState = "created"
	TaskStateRunning   TaskState = "running"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
)

func (s TaskState) terminal() bool {
	return s == TaskStateCompleted || s == TaskStateFailed
}

// TaskStatus is one tracked background task.
type TaskStatus struct {
	ID        string    `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Task      string    `json:"task"`
	State     TaskState `json:"state"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusRegistry tracks background task lifecycles in memory. Terminal
// states are sticky: once completed or failed, a task ignores further
// transitions.
type StatusRegistry struct {
	mu    sync.RWMutex
	tasks map[string]*TaskStatus
	seq   atomic.Int64
}

// NewStatusRegistry creates an empty registry.
func NewStatusRegistry() *StatusRegistry {
	return &StatusRegistry{tasks: make(map[string]*TaskStatus)}
}

// Create registers a new task and returns its ID.
func (r *StatusRegistry) Create(tenantID int64, task string) string {
	now := time.Now().UTC()
	id := fmt.Sprintf("%s-%d-%d", task, tenantID, r.seq.Add(1))

	r.mu.Lock()
	r.tasks[id] = &TaskStatus{
		ID:        id,
		TenantID:  tenantID,
		Task:      task,
		State:     TaskStateCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.mu.Unlock()
	return id
}

// Start moves a task to running.
func (r *StatusRegistry) Start(id string) {
	r.update(id, func(t *TaskStatus) {
		t.State = TaskStateRunning
	})
}

// Progress records completion percentage and an optional message.
func (r *StatusRegistry) Progress(id string, pct float64, message string) {
	r.update(id, func(t *TaskStatus) {
		t.State = TaskStateRunning
		t.Progress = pct
		if message != "" {
			t.Message = message
		}
	})
}

// Complete marks a task finished.
func (r *StatusRegistry) Complete(id string, message string) {
	r.update(id, func(t *TaskStatus) {
		t.State = TaskStateCompleted
		t.Progress = 100
		t.Message = message
	})
}

// Fail marks a task failed with its error.
func (r *StatusRegistry) Fail(id string, err error) {
	r.update(id, func(t *TaskStatus) {
		t.State = TaskStateFailed
		if err != nil {
			t.Error = err.Error()
		}
	})
}

// Get returns a snapshot of one task.
func (r *StatusRegistry) Get(id string) (TaskStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return TaskStatus{}, false
	}
	return *t, true
}

// ListByTenant returns snapshots of a tenant's tasks, newest first.
func (r *StatusRegistry) ListByTenant(tenantID int64) []TaskStatus {
	r.mu.RLock()
	var out []TaskStatus
	for _, t := range r.tasks {
		if t.TenantID == tenantID {
			out = append(out, *t)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *StatusRegistry) update(id string, fn func(*TaskStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.State.terminal() {
		return
	}
	fn(t)
	t.UpdatedAt = time.Now().UTC()
}
