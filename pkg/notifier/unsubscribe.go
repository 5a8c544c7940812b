package notifier

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/letsrevel/revel-backend-sub006/pkg/logger"
)

var (
	ErrInvalidUnsubscribeToken = errors.New("notifier.errors.invalid_unsubscribe_token")
	ErrExpiredUnsubscribeToken = errors.New("notifier.errors.expired_unsubscribe_token")
)

// UnsubscribeScopeAll mutes all email notifications; a typed scope mutes one
// notification type.
const (
	UnsubscribeScopeAll  = "all"
	UnsubscribeScopeType = "type"
)

// UnsubscribePayload is the verified content of an unsubscribe token.
// Compact JSON keys keep the token short enough for email footers.
type UnsubscribePayload struct {
	UserID    uuid.UUID `json:"u"`
	Scope     string    `json:"s"`
	Type      Type      `json:"t,omitempty"`
	ExpiresAt int64     `json:"e"`
}

// UnsubscribeLinker mints recipient-scoped unsubscribe URLs. Tokens are
// JSON payloads signed with an 8-byte truncated HMAC-SHA256, short enough
// to survive email client line wrapping.
type UnsubscribeLinker struct {
	secret  string
	baseURL string
	ttl     time.Duration
}

// NewUnsubscribeLinker wires a linker. baseURL is the absolute URL of the
// unsubscribe endpoint, e.g. "https://example.com/notifications/unsubscribe".
// ttl bounds token validity; zero means 30 days.
func NewUnsubscribeLinker(secret, baseURL string, ttl time.Duration) (*UnsubscribeLinker, error) {
	if secret == "" {
		return nil, errors.New("unsubscribe secret is empty")
	}
	if baseURL == "" {
		return nil, errors.New("unsubscribe base URL is empty")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &UnsubscribeLinker{secret: secret, baseURL: strings.TrimRight(baseURL, "/"), ttl: ttl}, nil
}

// URLForAll returns an unsubscribe-from-everything link for the user.
func (l *UnsubscribeLinker) URLForAll(userID uuid.UUID) string {
	return l.buildURL(UnsubscribePayload{
		UserID:    userID,
		Scope:     UnsubscribeScopeAll,
		ExpiresAt: time.Now().Add(l.ttl).Unix(),
	})
}

// URLForType returns an unsubscribe link scoped to one notification type.
func (l *UnsubscribeLinker) URLForType(userID uuid.UUID, t Type) string {
	return l.buildURL(UnsubscribePayload{
		UserID:    userID,
		Scope:     UnsubscribeScopeType,
		Type:      t,
		ExpiresAt: time.Now().Add(l.ttl).Unix(),
	})
}

func (l *UnsubscribeLinker) buildURL(p UnsubscribePayload) string {
	token, err := l.sign(p)
	if err != nil {
		return l.baseURL
	}
	return l.baseURL + "?token=" + url.QueryEscape(token)
}

func (l *UnsubscribeLinker) sign(p UnsubscribePayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	payloadEnc := base64.RawURLEncoding.EncodeToString(data)
	h := hmac.New(sha256.New, []byte(l.secret))
	h.Write(data)
	sig := h.Sum(nil)[:8]
	return payloadEnc + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Parse verifies a token's signature and expiry and returns its payload.
func (l *UnsubscribeLinker) Parse(token string) (UnsubscribePayload, error) {
	var p UnsubscribePayload

	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return p, ErrInvalidUnsubscribeToken
	}
	data, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return p, ErrInvalidUnsubscribeToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return p, ErrInvalidUnsubscribeToken
	}

	h := hmac.New(sha256.New, []byte(l.secret))
	h.Write(data)
	expected := h.Sum(nil)[:8]
	if subtle.ConstantTimeCompare(sig, expected) != 1 {
		return p, ErrInvalidUnsubscribeToken
	}

	if err := json.Unmarshal(data, &p); err != nil {
		return p, ErrInvalidUnsubscribeToken
	}
	if p.Scope != UnsubscribeScopeAll && p.Scope != UnsubscribeScopeType {
		return p, ErrInvalidUnsubscribeToken
	}
	if p.Scope == UnsubscribeScopeType && !KnownType(p.Type) {
		return p, ErrInvalidUnsubscribeToken
	}
	if time.Unix(p.ExpiresAt, 0).Before(time.Now()) {
		return p, ErrExpiredUnsubscribeToken
	}
	return p, nil
}

// UnsubscribeHandler serves the only unauthenticated entrypoint of the
// engine: a GET endpoint that applies the preference change encoded in a
// signed token. Mounts as a chi sub-router.
type UnsubscribeHandler struct {
	linker     *UnsubscribeLinker
	prefs      PreferenceStore
	resolver   RecipientResolver
	translator *Translator
	logger     *slog.Logger
}

// NewUnsubscribeHandler wires the handler. resolver may be nil; it is only
// used to localize the confirmation page.
func NewUnsubscribeHandler(linker *UnsubscribeLinker, prefs PreferenceStore, resolver RecipientResolver, translator *Translator, logger *slog.Logger) *UnsubscribeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UnsubscribeHandler{
		linker:     linker,
		prefs:      prefs,
		resolver:   resolver,
		translator: translator,
		logger:     logger,
	}
}

// Router returns the chi router serving GET /.
func (h *UnsubscribeHandler) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleUnsubscribe)
	return r
}

func (h *UnsubscribeHandler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, err := h.linker.Parse(r.URL.Query().Get("token"))
	if err != nil {
		h.respond(w, http.StatusBadRequest, DefaultLocale, "unsubscribe.invalid")
		return
	}

	locale := DefaultLocale
	if h.resolver != nil {
		if rec, err := h.resolver.Resolve(ctx, p.UserID); err == nil {
			locale = h.translator.MatchLocale(rec.Locale)
		}
	}

	prefs, err := h.prefs.GetPreferences(ctx, p.UserID)
	if errors.Is(err, ErrPreferencesNotFound) {
		prefs = NewPreferences(p.UserID, false)
		err = nil
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load preferences for unsubscribe",
			logger.UserID(p.UserID), logger.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var confirmKey string
	switch p.Scope {
	case UnsubscribeScopeAll:
		prefs.DisableAll()
		confirmKey = "unsubscribe.all_done"
	case UnsubscribeScopeType:
		prefs.DisableType(p.Type)
		confirmKey = "unsubscribe.type_done"
	}

	if err := h.prefs.SavePreferences(ctx, prefs); err != nil {
		h.logger.ErrorContext(ctx, "failed to save preferences for unsubscribe",
			logger.UserID(p.UserID), logger.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "unsubscribe applied",
		logger.UserID(p.UserID),
		slog.String("scope", p.Scope),
		logger.NotificationType(p.Type))

	h.respond(w, http.StatusOK, locale, confirmKey)
}

func (h *UnsubscribeHandler) respond(w http.ResponseWriter, status int, locale, key string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!DOCTYPE html><html><body><p>%s</p></body></html>", h.translator.T(locale, key))
}
