package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsrevel/revel-backend-sub006/pkg/jobs"
)

func TestScheduler_AddTask(t *testing.T) {
	t.Parallel()

	sched, err := jobs.NewScheduler(jobs.NewMemoryRepository())
	require.NoError(t, err)

	require.NoError(t, sched.AddTask("digest-scan", "*/15 * * * *", 1))
	assert.ErrorIs(t, sched.AddTask("digest-scan", "*/15 * * * *", 1), jobs.ErrTaskAlreadyScheduled)
	assert.ErrorIs(t, sched.AddTask("broken", "not-a-cron", 1), jobs.ErrInvalidCronSpec)
}

func TestScheduler_CreatesDueTaskOnce(t *testing.T) {
	t.Parallel()

	repo := jobs.NewMemoryRepository()
	sched, err := jobs.NewScheduler(repo, jobs.WithCheckInterval(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, sched.AddTask("digest-scan", "* * * * *", 1))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = sched.Start(ctx)

	// The first check fires immediately; subsequent checks must see the
	// pending task and skip creation.
	tasks := repo.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "digest-scan", tasks[0].Name)
	assert.Equal(t, jobs.StatusPending, tasks[0].Status)
}

func TestScheduler_StartRequiresEntries(t *testing.T) {
	t.Parallel()

	sched, err := jobs.NewScheduler(jobs.NewMemoryRepository())
	require.NoError(t, err)

	assert.ErrorIs(t, sched.Start(context.Background()), jobs.ErrNoHandlers)
}
