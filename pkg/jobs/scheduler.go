package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/letsrevel/revel-backend-sub006/pkg/logger"
)

// Scheduler creates periodic tasks from cron expressions. It only creates
// the pending Task rows; a Worker with a matching periodic handler executes
// them. Creation is skipped while an identical task is still pending, so
// multiple scheduler instances never double-book a run.
type Scheduler struct {
	repo    Repository
	entries map[string]*scheduledEntry
	mu      sync.RWMutex

	checkInterval time.Duration
	logger        *slog.Logger
}

type scheduledEntry struct {
	name       string
	schedule   cron.Schedule
	spec       string
	maxRetries int
	lastRun    *time.Time
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	checkInterval time.Duration
	logger        *slog.Logger
}

// WithCheckInterval sets how often registered entries are evaluated.
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.checkInterval = d
		}
	}
}

// WithSchedulerLogger sets the logger for the Scheduler.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewScheduler creates a periodic task scheduler.
func NewScheduler(repo Repository, opts ...SchedulerOption) (*Scheduler, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &schedulerOptions{
		checkInterval: 30 * time.Second,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		repo:          repo,
		entries:       make(map[string]*scheduledEntry),
		checkInterval: options.checkInterval,
		logger:        options.logger,
	}, nil
}

// AddTask registers a periodic task under a standard 5-field cron spec.
func (s *Scheduler) AddTask(name, cronSpec string, maxRetries int) error {
	schedule, err := cron.ParseStandard(cronSpec)
	if err != nil {
		return errors.Join(ErrInvalidCronSpec, err)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return ErrTaskAlreadyScheduled
	}
	s.entries[name] = &scheduledEntry{
		name:       name,
		schedule:   schedule,
		spec:       cronSpec,
		maxRetries: maxRetries,
	}

	s.logger.Info("registered periodic task",
		logger.TaskName(name),
		slog.String("schedule", cronSpec))
	return nil
}

// Start evaluates entries until the context is canceled. The first check
// happens immediately so a freshly deployed scheduler doesn't wait a full
// interval before creating overdue tasks.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.RLock()
	count := len(s.entries)
	s.mu.RUnlock()
	if count == 0 {
		return ErrNoHandlers
	}

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	s.checkEntries(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.checkEntries(ctx)
		}
	}
}

func (s *Scheduler) checkEntries(ctx context.Context) {
	s.mu.RLock()
	entries := make([]*scheduledEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	now := time.Now()
	for _, e := range entries {
		if err := s.scheduleIfDue(ctx, e, now); err != nil {
			s.logger.Error("failed to schedule periodic task",
				logger.TaskName(e.name),
				logger.Error(err))
		}
	}
}

func (s *Scheduler) scheduleIfDue(ctx context.Context, e *scheduledEntry, now time.Time) error {
	s.mu.RLock()
	lastRun := e.lastRun
	s.mu.RUnlock()

	if lastRun != nil && e.schedule.Next(*lastRun).After(now) {
		return nil
	}

	pending, err := s.repo.HasPendingTask(ctx, e.name)
	if err != nil {
		return fmt.Errorf("check pending task: %w", err)
	}
	if pending {
		s.markRun(e.name, now)
		return nil
	}

	task := &Task{
		ID:          uuid.New(),
		Name:        e.name,
		Status:      StatusPending,
		MaxRetries:  e.maxRetries,
		ScheduledAt: now,
		CreatedAt:   now,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("create periodic task: %w", err)
	}
	s.markRun(e.name, now)

	s.logger.Info("created periodic task",
		logger.TaskName(e.name),
		slog.Time("scheduled_for", task.ScheduledAt))
	return nil
}

func (s *Scheduler) markRun(name string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[name]; ok {
		e.lastRun = &at
	}
}
