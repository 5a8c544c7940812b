package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/letsrevel/revel-backend-sub006/pkg/email"
	"github.com/letsrevel/revel-backend-sub006/pkg/jobs"
	"github.com/letsrevel/revel-backend-sub006/pkg/telegram"
)

// digestScanTask is the periodic job name driving the digest batcher.
const digestScanTask = "notifier.digest_scan"

// DispatchPayload is the background job payload for one dispatch.
type DispatchPayload struct {
	NotificationID uuid.UUID `json:"notification_id"`
}

// Engine is the facade tying the dispatcher, digest batcher, job queue and
// unsubscribe boundary together. Applications construct one Engine at
// startup, run it alongside their HTTP server, and call Notify from request
// handlers and domain services.
type Engine struct {
	cfg        Config
	dispatcher *Dispatcher
	batcher    *Batcher
	translator *Translator
	registry   *Registry
	linker     *UnsubscribeLinker
	enqueuer   *jobs.Enqueuer
	worker     *jobs.Worker
	scheduler  *jobs.Scheduler
	storage    Storage
	resolver   RecipientResolver
	logger     *slog.Logger
}

// EngineOption configures optional engine dependencies.
type EngineOption func(*engineDeps)

type engineDeps struct {
	emailSender    email.Sender
	telegramSender telegram.Sender
	logger         *slog.Logger
}

// WithEmailSender enables the email channel and the digest batcher.
func WithEmailSender(s email.Sender) EngineOption {
	return func(d *engineDeps) { d.emailSender = s }
}

// WithTelegramSender enables the telegram channel.
func WithTelegramSender(s telegram.Sender) EngineOption {
	return func(d *engineDeps) { d.telegramSender = s }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(d *engineDeps) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewEngine wires the full notification engine. The in-app channel is always
// on; email and telegram activate when their senders are provided. The jobs
// repository backs both background dispatch and the periodic digest scan.
func NewEngine(cfg Config, storage Storage, resolver RecipientResolver, jobsRepo jobs.Repository, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if storage == nil {
		return nil, errors.New("storage is nil")
	}
	if resolver == nil {
		return nil, errors.New("recipient resolver is nil")
	}
	if jobsRepo == nil {
		return nil, errors.New("jobs repository is nil")
	}

	deps := engineDeps{logger: slog.Default()}
	for _, opt := range opts {
		opt(&deps)
	}
	logger := deps.logger

	translator, err := NewTranslator()
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}

	linker, err := NewUnsubscribeLinker(cfg.UnsubscribeSecret, cfg.UnsubscribeBaseURL, cfg.UnsubscribeTokenTTL)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry(logger)
	registry.RegisterDefaults()
	renderer := NewRenderer(translator, linker)

	drivers := []Driver{NewInAppDriver()}
	if deps.emailSender != nil {
		ed, err := NewEmailDriver(deps.emailSender)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, ed)
	}
	if deps.telegramSender != nil {
		td, err := NewTelegramDriver(deps.telegramSender)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, td)
	}

	enqueuer, err := jobs.NewEnqueuer(jobsRepo)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		translator: translator,
		registry:   registry,
		linker:     linker,
		enqueuer:   enqueuer,
		storage:    storage,
		resolver:   resolver,
		logger:     logger,
	}

	dispatcher, err := NewDispatcher(storage, resolver, registry, renderer, drivers,
		WithQueue(e),
		WithMaxAttempts(cfg.MaxDeliveryAttempts),
		WithRetryDelay(cfg.RetryDelay),
		WithDispatcherLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	e.dispatcher = dispatcher

	worker, err := jobs.NewWorker(jobsRepo,
		jobs.WithMaxConcurrentTasks(cfg.WorkerConcurrency),
		jobs.WithPullInterval(cfg.WorkerPullInterval),
		jobs.WithWorkerLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	worker.RegisterHandlers(jobs.NewTaskHandler(func(ctx context.Context, p DispatchPayload) error {
		return dispatcher.Dispatch(ctx, p.NotificationID)
	}))
	e.worker = worker

	if deps.emailSender != nil {
		batcher, err := NewBatcher(storage, resolver, registry, renderer, translator, linker, deps.emailSender, logger)
		if err != nil {
			return nil, err
		}
		e.batcher = batcher

		worker.RegisterHandlers(jobs.NewPeriodicTaskHandler(digestScanTask, func(ctx context.Context) error {
			return batcher.RunOnce(ctx)
		}))

		scheduler, err := jobs.NewScheduler(jobsRepo, jobs.WithSchedulerLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := scheduler.AddTask(digestScanTask, cfg.DigestCron, 0); err != nil {
			return nil, err
		}
		e.scheduler = scheduler
	}

	return e, nil
}

// EnqueueDispatch implements DispatchQueue on the jobs queue.
func (e *Engine) EnqueueDispatch(ctx context.Context, notificationID uuid.UUID, delay time.Duration) error {
	opts := []jobs.EnqueueOption{jobs.WithMaxRetries(e.cfg.MaxDeliveryAttempts)}
	if delay > 0 {
		opts = append(opts, jobs.WithDelay(delay))
	}
	return e.enqueuer.Enqueue(ctx, DispatchPayload{NotificationID: notificationID}, opts...)
}

// Run starts the background worker and, when the email channel is active,
// the digest scheduler. Blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	go func() { errCh <- e.worker.Run(ctx)() }()
	running := 1

	if e.scheduler != nil {
		go func() { errCh <- e.scheduler.Start(ctx) }()
		running++
	}

	var errs []error
	for range running {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
			cancel()
		}
	}
	return errors.Join(errs...)
}

// Notify validates, persists, and schedules delivery of one notification.
func (e *Engine) Notify(ctx context.Context, t Type, userID uuid.UUID, contextData map[string]any) (uuid.UUID, error) {
	return e.dispatcher.Notify(ctx, t, userID, contextData)
}

// NotifyMany bulk-creates notifications and schedules their delivery.
func (e *Engine) NotifyMany(ctx context.Context, inputs []CreateInput) ([]uuid.UUID, error) {
	return e.dispatcher.NotifyMany(ctx, inputs)
}

// Dispatcher exposes the underlying dispatcher for direct use.
func (e *Engine) Dispatcher() *Dispatcher { return e.dispatcher }

// Batcher exposes the digest batcher; nil when email is disabled.
func (e *Engine) Batcher() *Batcher { return e.batcher }

// Registry exposes the template registry for application overrides.
func (e *Engine) Registry() *Registry { return e.registry }

// Translator exposes the loaded translation bundles.
func (e *Engine) Translator() *Translator { return e.translator }

// UnsubscribeHandler returns the HTTP handler for the unsubscribe endpoint.
func (e *Engine) UnsubscribeHandler() *UnsubscribeHandler {
	return NewUnsubscribeHandler(e.linker, e.storage, e.resolver, e.translator, e.logger)
}

// Inbox returns the inbox surface scoped to the engine's storage.
func (e *Engine) Inbox() *Inbox {
	return NewInbox(e.storage, e.logger)
}
