package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository implements Repository in memory, for tests and local
// development. Expired locks are reclaimed lazily during ClaimTask instead
// of by a background goroutine, keeping the fake free of lifecycle state.
type MemoryRepository struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*Task
	order []uuid.UUID // creation order, for FIFO claiming
}

// NewMemoryRepository creates an in-memory task repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tasks: make(map[uuid.UUID]*Task),
	}
}

func (r *MemoryRepository) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrPayloadNil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}

	cp := *task
	r.tasks[task.ID] = &cp
	r.order = append(r.order, task.ID)
	return nil
}

func (r *MemoryRepository) ClaimTask(ctx context.Context, workerID uuid.UUID, lockFor time.Duration) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, id := range r.order {
		task := r.tasks[id]

		// Reclaim tasks whose worker died holding the lock.
		if task.Status == StatusRunning && task.LockedUntil != nil && task.LockedUntil.Before(now) {
			task.Status = StatusPending
			task.LockedUntil = nil
			task.LockedBy = nil
		}

		if task.Status != StatusPending || task.ScheduledAt.After(now) {
			continue
		}

		until := now.Add(lockFor)
		task.Status = StatusRunning
		task.LockedUntil = &until
		task.LockedBy = &workerID

		cp := *task
		return &cp, nil
	}

	return nil, ErrNoTaskToClaim
}

func (r *MemoryRepository) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, exists := r.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %s not found", taskID)
	}
	if task.Status != StatusRunning {
		return fmt.Errorf("task %s is not running", taskID)
	}

	now := time.Now()
	task.Status = StatusDone
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil
	return nil
}

func (r *MemoryRepository) FailTask(ctx context.Context, taskID uuid.UUID, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, exists := r.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %s not found", taskID)
	}
	if task.Status != StatusRunning {
		return fmt.Errorf("task %s is not running", taskID)
	}

	task.RetryCount++
	task.Error = &errMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	if task.RetryCount >= task.MaxRetries {
		task.Status = StatusFailed
		return nil
	}

	// Linear backoff keeps retries from hammering a struggling dependency.
	task.Status = StatusPending
	task.ScheduledAt = time.Now().Add(time.Duration(task.RetryCount) * 30 * time.Second)
	return nil
}

func (r *MemoryRepository) HasPendingTask(ctx context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, task := range r.tasks {
		if task.Name == name && (task.Status == StatusPending || task.Status == StatusRunning) {
			return true, nil
		}
	}
	return false, nil
}

// Task returns a copy of a stored task, for assertions in tests.
func (r *MemoryRepository) Task(taskID uuid.UUID) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return nil, false
	}
	cp := *task
	return &cp, true
}

// Tasks returns copies of all stored tasks in creation order.
func (r *MemoryRepository) Tasks() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Task, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.tasks[id])
	}
	return out
}
