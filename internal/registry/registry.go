// Package registry keeps the in-memory record of execute tasks.
package registry

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/fentz26/ccgateway/internal/models"
)

// ErrTaskNotFound is returned when updating an unknown task id.
var ErrTaskNotFound = errors.New("task not found")

// Registry maps task ids to task records. Records are never evicted; the
// registry lives as long as the process. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]models.TaskRecord
	newID func() string
}

// New creates an empty registry that issues random UUIDs.
func New() *Registry {
	return &Registry{
		tasks: make(map[string]models.TaskRecord),
		newID: func() string { return uuid.New().String() },
	}
}

// Create stores record under a freshly generated id with status running and
// returns the stored copy.
func (r *Registry) Create(record models.TaskRecord) models.TaskRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for _, taken := r.tasks[id]; taken; _, taken = r.tasks[id] {
		id = r.newID()
	}
	record.ID = id
	record.Status = models.TaskStatusRunning
	r.tasks[id] = record
	return record
}

// Update replaces the stored record for id. Transition rules are the caller's
// responsibility.
func (r *Registry) Update(id string, record models.TaskRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	record.ID = id
	r.tasks[id] = record
	return nil
}

// Get retrieves a task by id.
func (r *Registry) Get(id string) (models.TaskRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.tasks[id]
	return record, ok
}

// Size returns the number of tasks ever accepted.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// CountByStatus returns how many tasks currently have status.
func (r *Registry) CountByStatus(status models.TaskStatus) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, t := range r.tasks {
		if t.Status == status {
			n++
		}
	}
	return n
}

// Counts is a consistent snapshot of the registry size per status.
type Counts struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Counts returns per-status totals taken under a single lock.
func (r *Registry) Counts() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := Counts{Total: len(r.tasks)}
	for _, t := range r.tasks {
		switch t.Status {
		case models.TaskStatusRunning:
			c.Running++
		case models.TaskStatusCompleted:
			c.Completed++
		case models.TaskStatusFailed:
			c.Failed++
		}
	}
	return c
}
