package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultMaxRetries = 3

// Enqueuer persists one-off tasks for workers to pick up.
type Enqueuer struct {
	repo Repository
}

// NewEnqueuer creates a new Enqueuer.
func NewEnqueuer(repo Repository) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	return &Enqueuer{repo: repo}, nil
}

// EnqueueOption configures a single Enqueue call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	name       string
	delay      time.Duration
	maxRetries int
}

// WithName overrides the task name derived from the payload type.
func WithName(name string) EnqueueOption {
	return func(o *enqueueOptions) {
		if name != "" {
			o.name = name
		}
	}
}

// WithDelay postpones the earliest execution time.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if delay > 0 {
			o.delay = delay
		}
	}
}

// WithMaxRetries sets the task's retry budget (0-10).
// Capped to prevent infinite retry loops on persistent failures.
func WithMaxRetries(n int) EnqueueOption {
	return func(o *enqueueOptions) {
		if n >= 0 && n <= 10 {
			o.maxRetries = n
		}
	}
}

// Enqueue marshals the payload and persists a pending task.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) error {
	if payload == nil {
		return ErrPayloadNil
	}

	options := &enqueueOptions{maxRetries: defaultMaxRetries}
	for _, opt := range opts {
		opt(options)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload of type %T: %w", payload, err)
	}

	name := options.name
	if name == "" {
		name = qualifiedStructName(payload)
	}

	now := time.Now()
	task := &Task{
		ID:          uuid.New(),
		Name:        name,
		Payload:     data,
		Status:      StatusPending,
		MaxRetries:  options.maxRetries,
		ScheduledAt: now.Add(options.delay),
		CreatedAt:   now,
	}

	if err := e.repo.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("create task %q: %w", task.Name, err)
	}
	return nil
}
