package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsrevel/revel-backend-sub006/pkg/jobs"
)

func newPendingTask(name string) *jobs.Task {
	now := time.Now()
	return &jobs.Task{
		ID:          uuid.New(),
		Name:        name,
		Status:      jobs.StatusPending,
		MaxRetries:  3,
		ScheduledAt: now,
		CreatedAt:   now,
	}
}

func TestMemoryRepository_ClaimIsExclusive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := jobs.NewMemoryRepository()
	require.NoError(t, repo.CreateTask(ctx, newPendingTask("dispatch")))

	first, err := repo.ClaimTask(ctx, uuid.New(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusRunning, first.Status)

	_, err = repo.ClaimTask(ctx, uuid.New(), time.Minute)
	assert.ErrorIs(t, err, jobs.ErrNoTaskToClaim)
}

func TestMemoryRepository_ClaimSkipsFutureTasks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := jobs.NewMemoryRepository()

	task := newPendingTask("dispatch")
	task.ScheduledAt = time.Now().Add(time.Hour)
	require.NoError(t, repo.CreateTask(ctx, task))

	_, err := repo.ClaimTask(ctx, uuid.New(), time.Minute)
	assert.ErrorIs(t, err, jobs.ErrNoTaskToClaim)
}

func TestMemoryRepository_ReclaimsExpiredLocks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := jobs.NewMemoryRepository()
	require.NoError(t, repo.CreateTask(ctx, newPendingTask("dispatch")))

	_, err := repo.ClaimTask(ctx, uuid.New(), -time.Second) // already expired
	require.NoError(t, err)

	reclaimed, err := repo.ClaimTask(ctx, uuid.New(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusRunning, reclaimed.Status)
}

func TestMemoryRepository_FailTaskReschedulesWithBackoff(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := jobs.NewMemoryRepository()
	require.NoError(t, repo.CreateTask(ctx, newPendingTask("dispatch")))

	claimed, err := repo.ClaimTask(ctx, uuid.New(), time.Minute)
	require.NoError(t, err)

	require.NoError(t, repo.FailTask(ctx, claimed.ID, "boom"))

	task, ok := repo.Task(claimed.ID)
	require.True(t, ok)
	assert.Equal(t, jobs.StatusPending, task.Status)
	assert.Equal(t, 1, task.RetryCount)
	assert.True(t, task.ScheduledAt.After(time.Now()), "retry must be pushed into the future")

	// Not due yet, so it cannot be claimed again.
	_, err = repo.ClaimTask(ctx, uuid.New(), time.Minute)
	assert.ErrorIs(t, err, jobs.ErrNoTaskToClaim)
}

func TestMemoryRepository_FailTaskGoesTerminalAtBudget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := jobs.NewMemoryRepository()

	task := newPendingTask("dispatch")
	task.MaxRetries = 1
	require.NoError(t, repo.CreateTask(ctx, task))

	claimed, err := repo.ClaimTask(ctx, uuid.New(), time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.FailTask(ctx, claimed.ID, "boom"))

	stored, ok := repo.Task(claimed.ID)
	require.True(t, ok)
	assert.Equal(t, jobs.StatusFailed, stored.Status)
}

func TestMemoryRepository_HasPendingTask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := jobs.NewMemoryRepository()

	ok, err := repo.HasPendingTask(ctx, "digest-scan")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.CreateTask(ctx, newPendingTask("digest-scan")))

	ok, err = repo.HasPendingTask(ctx, "digest-scan")
	require.NoError(t, err)
	assert.True(t, ok)
}
