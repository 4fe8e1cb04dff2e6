package services

import (
	"sync"

	"github.com/pixelift/backend/internal/domain"
)

const queuedMessage = "Queued"

type taskEntry struct {
	task    domain.Task
	changed chan struct{}
}

// TaskRegistry is the in-process map of task id to its latest state. Entries are
// replaced wholesale on update; each replacement closes the previous entry's
// changed channel so waiting streams wake up without polling.
type TaskRegistry struct {
	tasks map[string]*taskEntry
	mu    sync.RWMutex
}

func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		tasks: make(map[string]*taskEntry),
	}
}

func (r *TaskRegistry) Create(id string) (domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[id]; exists {
		return domain.Task{}, ErrTaskExists
	}

	task := domain.Task{
		ID:       id,
		Progress: 0,
		Message:  queuedMessage,
	}
	r.tasks[id] = &taskEntry{task: task, changed: make(chan struct{})}
	return task, nil
}

// Update overwrites the whole record for id.
func (r *TaskRegistry) Update(id string, task domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, exists := r.tasks[id]
	if !exists {
		return ErrTaskNotFound
	}

	task.ID = id
	r.tasks[id] = &taskEntry{task: copyTask(task), changed: make(chan struct{})}
	close(prev.changed)
	return nil
}

func (r *TaskRegistry) Read(id string) (domain.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.tasks[id]
	if !exists {
		return domain.Task{}, false
	}
	return copyTask(entry.task), true
}

// Consume returns the current state of id. A terminal state is evicted in the same
// critical section, so exactly one caller ever receives it. For a non-terminal state
// the returned channel is closed on the next update or eviction.
func (r *TaskRegistry) Consume(id string) (domain.Task, <-chan struct{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.tasks[id]
	if !exists {
		return domain.Task{}, nil, false
	}

	if entry.task.Done {
		delete(r.tasks, id)
		close(entry.changed)
		return copyTask(entry.task), nil, true
	}
	return copyTask(entry.task), entry.changed, true
}

func (r *TaskRegistry) Evict(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.tasks[id]
	if !exists {
		return
	}
	delete(r.tasks, id)
	close(entry.changed)
}

func (r *TaskRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

func copyTask(t domain.Task) domain.Task {
	if t.Result != nil {
		result := *t.Result
		t.Result = &result
	}
	return t
}
