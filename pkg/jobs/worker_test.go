package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsrevel/revel-backend-sub006/pkg/jobs"
)

type testPayload struct {
	Value string `json:"value"`
}

func startWorker(t *testing.T, repo jobs.Repository, handlers ...jobs.Handler) *jobs.Worker {
	t.Helper()

	worker, err := jobs.NewWorker(repo,
		jobs.WithPullInterval(10*time.Millisecond),
		jobs.WithMaxConcurrentTasks(2),
	)
	require.NoError(t, err)
	worker.RegisterHandlers(handlers...)

	require.NoError(t, worker.Start(context.Background()))
	t.Cleanup(func() { _ = worker.Stop() })
	return worker
}

func TestWorker_ProcessesTask(t *testing.T) {
	t.Parallel()

	repo := jobs.NewMemoryRepository()
	enq, err := jobs.NewEnqueuer(repo)
	require.NoError(t, err)

	var got atomic.Value
	handler := jobs.NewTaskHandler(func(ctx context.Context, p testPayload) error {
		got.Store(p.Value)
		return nil
	})

	startWorker(t, repo, handler)
	require.NoError(t, enq.Enqueue(context.Background(), testPayload{Value: "hello"}))

	require.Eventually(t, func() bool {
		v, _ := got.Load().(string)
		return v == "hello"
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		tasks := repo.Tasks()
		return len(tasks) == 1 && tasks[0].Status == jobs.StatusDone
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorker_FailingTaskGoesTerminal(t *testing.T) {
	t.Parallel()

	repo := jobs.NewMemoryRepository()
	enq, err := jobs.NewEnqueuer(repo)
	require.NoError(t, err)

	var attempts atomic.Int32
	handler := jobs.NewTaskHandler(func(ctx context.Context, p testPayload) error {
		attempts.Add(1)
		return errors.New("smtp connection refused")
	})

	startWorker(t, repo, handler)
	require.NoError(t, enq.Enqueue(context.Background(), testPayload{Value: "x"}, jobs.WithMaxRetries(1)))

	require.Eventually(t, func() bool {
		tasks := repo.Tasks()
		return len(tasks) == 1 && tasks[0].Status == jobs.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), attempts.Load())

	task := repo.Tasks()[0]
	assert.Equal(t, 1, task.RetryCount)
	require.NotNil(t, task.Error)
	assert.Contains(t, *task.Error, "smtp connection refused")
}

func TestWorker_MissingHandlerGoesTerminal(t *testing.T) {
	t.Parallel()

	repo := jobs.NewMemoryRepository()
	enq, err := jobs.NewEnqueuer(repo)
	require.NoError(t, err)

	noop := jobs.NewPeriodicTaskHandler("unrelated", func(ctx context.Context) error { return nil })
	startWorker(t, repo, noop)

	require.NoError(t, enq.Enqueue(context.Background(), testPayload{Value: "x"}, jobs.WithMaxRetries(1)))

	require.Eventually(t, func() bool {
		tasks := repo.Tasks()
		return len(tasks) == 1 && tasks[0].Status == jobs.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	task := repo.Tasks()[0]
	require.NotNil(t, task.Error)
	assert.Contains(t, *task.Error, "no handler registered")
}

func TestWorker_RecordsPanicAsFailure(t *testing.T) {
	t.Parallel()

	repo := jobs.NewMemoryRepository()
	enq, err := jobs.NewEnqueuer(repo)
	require.NoError(t, err)

	handler := jobs.NewTaskHandler(func(ctx context.Context, p testPayload) error {
		panic("template missing")
	})

	startWorker(t, repo, handler)
	require.NoError(t, enq.Enqueue(context.Background(), testPayload{Value: "x"}, jobs.WithMaxRetries(1)))

	require.Eventually(t, func() bool {
		tasks := repo.Tasks()
		return len(tasks) == 1 && tasks[0].Status == jobs.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	task := repo.Tasks()[0]
	require.NotNil(t, task.Error)
	assert.Contains(t, *task.Error, "panic in handler")
}

func TestWorker_StartRequiresHandlers(t *testing.T) {
	t.Parallel()

	worker, err := jobs.NewWorker(jobs.NewMemoryRepository())
	require.NoError(t, err)

	assert.ErrorIs(t, worker.Start(context.Background()), jobs.ErrNoHandlers)
}
