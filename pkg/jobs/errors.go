package jobs

import "errors"

var (
	// ErrRepositoryNil is returned when a nil repository is provided.
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload.
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrNoTaskToClaim is returned by repositories when no task is ready.
	// Workers treat it as an idle tick, not an error.
	ErrNoTaskToClaim = errors.New("no task available to claim")

	// ErrHandlerNotFound is returned when no handler is registered for a task.
	ErrHandlerNotFound = errors.New("no handler registered for task name")

	// ErrNoHandlers is returned when a worker is started without handlers.
	ErrNoHandlers = errors.New("no task handlers registered")

	// ErrTaskAlreadyScheduled is returned when registering a duplicate
	// periodic task name.
	ErrTaskAlreadyScheduled = errors.New("periodic task already registered")

	// ErrInvalidCronSpec is returned for unparseable cron expressions.
	ErrInvalidCronSpec = errors.New("invalid cron expression")
)
