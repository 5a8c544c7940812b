package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Task is one unit of background work.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Payload     []byte     `json:"payload,omitempty"`
	Status      Status     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID `json:"locked_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Repository is the storage contract shared by the Enqueuer, Worker and
// Scheduler. Implementations must make ClaimTask atomic: two workers may
// never claim the same task.
type Repository interface {
	// CreateTask persists a new pending task.
	CreateTask(ctx context.Context, task *Task) error

	// ClaimTask atomically claims the next runnable task (pending, due, not
	// locked) in FIFO order of ScheduledAt, locking it for lockFor. Returns
	// ErrNoTaskToClaim when nothing is ready.
	ClaimTask(ctx context.Context, workerID uuid.UUID, lockFor time.Duration) (*Task, error)

	// CompleteTask marks a running task done.
	CompleteTask(ctx context.Context, taskID uuid.UUID) error

	// FailTask records a failure, increments the retry count, and either
	// reschedules the task with backoff or marks it terminally failed once
	// the retry budget is spent.
	FailTask(ctx context.Context, taskID uuid.UUID, errMsg string) error

	// HasPendingTask reports whether a pending task with the given name
	// exists. Used by the Scheduler to avoid double-booking periodic runs.
	HasPendingTask(ctx context.Context, name string) (bool, error)
}
