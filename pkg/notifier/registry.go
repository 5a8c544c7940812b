package notifier

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/letsrevel/revel-backend-sub006/pkg/logger"
)

// Registry holds the template for each notification type. Populated once at
// startup; lookups at dispatch time fail loudly for unregistered types
// instead of falling back to a generic rendering.
type Registry struct {
	mu        sync.RWMutex
	templates map[Type]Template
	logger    *slog.Logger
}

// NewRegistry returns an empty registry. A nil logger defaults to
// slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		templates: make(map[Type]Template),
		logger:    logger,
	}
}

// Register installs tmpl for type t. Re-registering a type overwrites the
// previous template; the overwrite is logged at warn level so an accidental
// double registration is visible without breaking startup.
func (r *Registry) Register(t Type, tmpl Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[t]; exists {
		r.logger.Warn("notification template overwritten",
			logger.NotificationType(t))
	}
	r.templates[t] = tmpl
}

// Get returns the template for type t, or ErrTemplateNotRegistered.
func (r *Registry) Get(t Type) (Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tmpl, ok := r.templates[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotRegistered, t)
	}
	return tmpl, nil
}

// Registered returns whether a template exists for type t.
func (r *Registry) Registered(t Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.templates[t]
	return ok
}

// RegisterDefaults installs the translation-bundle backed template for every
// known type. Applications override individual types afterwards when a type
// needs richer rendering than the bundle provides.
func (r *Registry) RegisterDefaults() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range KnownTypes() {
		r.templates[t] = &BasicTemplate{NotificationType: t}
	}
}
