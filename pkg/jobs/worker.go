package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/letsrevel/revel-backend-sub006/pkg/logger"
)

// Worker pulls tasks from the repository and runs registered handlers.
// Concurrency is bounded by a semaphore; each claimed task runs in its own
// goroutine with panic recovery.
type Worker struct {
	repo     Repository
	handlers map[string]Handler
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex

	pullInterval time.Duration
	lockFor      time.Duration
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// WorkerOption configures a Worker.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	pullInterval  time.Duration
	lockFor       time.Duration
	maxConcurrent int
	logger        *slog.Logger
}

// WithPullInterval sets how often the worker checks for runnable tasks.
func WithPullInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithLockTimeout sets how long a claimed task stays locked.
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockFor = d
		}
	}
}

// WithMaxConcurrentTasks bounds the number of tasks in flight.
func WithMaxConcurrentTasks(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithWorkerLogger sets the logger for the Worker.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewWorker creates a task worker.
func NewWorker(repo Repository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		pullInterval:  time.Second,
		lockFor:       5 * time.Minute,
		maxConcurrent: 4,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		repo:         repo,
		handlers:     make(map[string]Handler),
		workerID:     uuid.New(),
		sem:          make(chan struct{}, options.maxConcurrent),
		pullInterval: options.pullInterval,
		lockFor:      options.lockFor,
		logger:       options.logger,
	}, nil
}

// RegisterHandlers registers task handlers by name. A later registration
// with the same name replaces the earlier one.
func (w *Worker) RegisterHandlers(handlers ...Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			w.handlers[h.Name()] = h
		}
	}
}

// Start begins pulling tasks in the background until Stop is called or the
// context is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker already started")
	}
	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	go w.run()

	w.logger.Info("jobs worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Int("max_concurrent", cap(w.sem)))
	return nil
}

// Stop cancels the pull loop and waits for in-flight tasks to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker not started")
	}
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()

	w.logger.Info("jobs worker stopped", slog.String("worker_id", w.workerID.String()))
	return nil
}

// Run adapts the worker to errgroup-style lifecycles.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				w.wg.Add(1)
				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()

					if err := w.pullAndProcess(); err != nil && !errors.Is(err, ErrHandlerNotFound) {
						w.logger.Error("task processing failed",
							slog.String("worker_id", w.workerID.String()),
							logger.Error(err))
					}
				}()
			default:
				// All slots busy, skip this tick.
			}
		}
	}
}

func (w *Worker) pullAndProcess() error {
	task, err := w.repo.ClaimTask(w.ctx, w.workerID, w.lockFor)
	if err != nil {
		if errors.Is(err, ErrNoTaskToClaim) {
			return nil
		}
		return fmt.Errorf("claim task: %w", err)
	}
	return w.processTask(task)
}

func (w *Worker) processTask(task *Task) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("task handler panicked",
				logger.TaskID(task.ID),
				logger.TaskName(task.Name),
				slog.Any("panic", r))
			_ = w.failTask(task, retErr)
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[task.Name]
	w.mu.RUnlock()

	if !ok {
		// Retrying cannot help without a handler; burn the task's budget so
		// it goes terminal and stays visible to operators.
		w.logger.Error("no handler registered for task",
			logger.TaskID(task.ID),
			logger.TaskName(task.Name))
		if err := w.repo.FailTask(w.ctx, task.ID, "no handler registered for task name: "+task.Name); err != nil {
			return fmt.Errorf("fail task %s: %w", task.ID, err)
		}
		return ErrHandlerNotFound
	}

	// The handler context outlives worker shutdown so a graceful Stop lets
	// in-flight tasks complete; the lock duration bounds the execution.
	ctx, cancel := context.WithTimeout(context.Background(), w.lockFor)
	defer cancel()

	err := handler.Handle(ctx, task.Payload)
	duration := time.Since(start)

	if err != nil {
		w.logger.Error("task failed",
			logger.TaskID(task.ID),
			logger.TaskName(task.Name),
			logger.RetryCount(task.RetryCount),
			slog.Int("max_retries", task.MaxRetries),
			logger.Duration(duration),
			logger.Error(err))
		return w.failTask(task, err)
	}

	if err := w.repo.CompleteTask(w.ctx, task.ID); err != nil {
		return fmt.Errorf("complete task %s: %w", task.ID, err)
	}

	w.logger.Debug("task completed",
		logger.TaskID(task.ID),
		logger.TaskName(task.Name),
		logger.Duration(duration))
	return nil
}

func (w *Worker) failTask(task *Task, cause error) error {
	if err := w.repo.FailTask(w.ctx, task.ID, cause.Error()); err != nil {
		return fmt.Errorf("fail task %s: %w", task.ID, err)
	}
	return nil
}
