package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/letsrevel/revel-backend-sub006/pkg/jobs"
)

// retryBackoffStep is the linear backoff unit applied per retry of a failed
// task.
const retryBackoffStep = 30 * time.Second

// TaskRepository implements jobs.Repository on PostgreSQL. Claiming uses
// FOR UPDATE SKIP LOCKED so concurrent workers never grab the same task.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository wraps a connection pool.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

func (r *TaskRepository) CreateTask(ctx context.Context, task *jobs.Task) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tasks (id, name, payload, status, retry_count, max_retries, scheduled_at, locked_until, locked_by, processed_at, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		task.ID, task.Name, task.Payload, string(task.Status), task.RetryCount, task.MaxRetries,
		task.ScheduledAt, task.LockedUntil, task.LockedBy, task.ProcessedAt, task.Error, task.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) ClaimTask(ctx context.Context, workerID uuid.UUID, lockFor time.Duration) (*jobs.Task, error) {
	lockedUntil := time.Now().Add(lockFor)
	row := r.pool.QueryRow(ctx, `
		UPDATE tasks SET status = 'running', locked_until = $2, locked_by = $3
		WHERE id = (
			SELECT id FROM tasks
			WHERE (status = 'pending' AND scheduled_at <= now())
			   OR (status = 'running' AND locked_until < now())
			ORDER BY scheduled_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, name, payload, status, retry_count, max_retries, scheduled_at, locked_until, locked_by, processed_at, error, created_at`,
		lockedUntil, workerID)

	var (
		task   jobs.Task
		status string
	)
	err := row.Scan(&task.ID, &task.Name, &task.Payload, &status, &task.RetryCount, &task.MaxRetries,
		&task.ScheduledAt, &task.LockedUntil, &task.LockedBy, &task.ProcessedAt, &task.Error, &task.CreatedAt)
	if isNotFound(err) {
		return nil, jobs.ErrNoTaskToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	task.Status = jobs.Status(status)
	return &task, nil
}

func (r *TaskRepository) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status = 'done', processed_at = now(), locked_until = NULL, locked_by = NULL
		WHERE id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FailTask(ctx context.Context, taskID uuid.UUID, errMsg string) error {
	// One statement handles both outcomes: reschedule with linear backoff
	// while budget remains, terminal failure once it is spent.
	_, err := r.pool.Exec(ctx, `
		UPDATE tasks SET
			retry_count = retry_count + 1,
			error = $2,
			locked_until = NULL,
			locked_by = NULL,
			status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
			processed_at = CASE WHEN retry_count + 1 >= max_retries THEN now() ELSE NULL END,
			scheduled_at = CASE WHEN retry_count + 1 >= max_retries THEN scheduled_at ELSE now() + make_interval(secs => $3) * (retry_count + 1) END
		WHERE id = $1`, taskID, errMsg, retryBackoffStep.Seconds())
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	return nil
}

func (r *TaskRepository) HasPendingTask(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM tasks WHERE name = $1 AND status IN ('pending', 'running'))`,
		name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending task: %w", err)
	}
	return exists, nil
}
