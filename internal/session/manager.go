package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pitabwire/bazaar/internal/config"
	"github.com/pitabwire/bazaar/internal/events"
	"github.com/pitabwire/bazaar/internal/observability"
	"github.com/pitabwire/bazaar/internal/query"
	"github.com/pitabwire/bazaar/model"
)

// Identity is what a successful marketplace login yields.
type Identity struct {
	SubjectID string
	Email     string
	Name      string
	Roles     []string
	Token     string
}

// Manager starts, resolves, and ends sessions.
type Manager struct {
	cfg          config.SessionConfig
	store        Store
	codec        *Codec
	tracker      *query.Tracker
	capabilities model.CapabilityResolver
	metrics      *observability.Metrics
	logger       *zap.Logger
	now          func() time.Time
	newID        func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithTracker drops in-flight reads of a session when it ends.
func WithTracker(t *query.Tracker) Option {
	return func(m *Manager) { m.tracker = t }
}

// WithCapabilities invalidates cached capabilities when a session ends.
func WithCapabilities(r model.CapabilityResolver) Option {
	return func(m *Manager) { m.capabilities = r }
}

// WithMetrics records revocations.
func WithMetrics(mt *observability.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithLogger sets the manager logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a session manager.
func NewManager(cfg config.SessionConfig, store Store, codec *Codec, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg,
		store:  store,
		codec:  codec,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	if m.cfg.TTL <= 0 {
		m.cfg.TTL = 12 * time.Hour
	}
	if m.cfg.CookieName == "" {
		m.cfg.CookieName = "bazaar_session"
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start creates a session for id and returns it with its signed cookie
// value.
func (m *Manager) Start(ctx context.Context, id Identity) (Session, string, error) {
	if id.Token == "" {
		return Session{}, "", errors.New("session: identity has no token")
	}
	now := m.now().UTC()
	s := Session{
		ID:        m.newID(),
		SubjectID: id.SubjectID,
		Email:     id.Email,
		Name:      id.Name,
		Roles:     id.Roles,
		Token:     id.Token,
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.TTL),
	}
	if s.SubjectID == "" {
		s.SubjectID = s.Email
	}
	if err := m.store.Save(ctx, s, m.cfg.TTL); err != nil {
		return Session{}, "", fmt.Errorf("session: start: %w", err)
	}
	value, err := m.codec.Encode(s)
	if err != nil {
		return Session{}, "", err
	}
	return s, value, nil
}

// Resolve verifies a cookie or bearer value and loads the session it names.
// Every failure is an UNAUTHORIZED envelope.
func (m *Manager) Resolve(ctx context.Context, value string) (Session, error) {
	id, err := m.codec.Decode(value)
	if err != nil {
		return Session{}, model.NewUnauthorizedError(describeError(err))
	}
	s, err := m.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Session{}, model.NewUnauthorizedError("Session expired")
	}
	if err != nil {
		m.logger.Error("session: store lookup failed", zap.Error(err))
		return Session{}, model.NewUnauthorizedError("Session unavailable")
	}
	return s, nil
}

// FromRequest extracts the session credential from the session cookie or,
// failing that, an "Authorization: Bearer" header.
func (m *Manager) FromRequest(r *http.Request) (string, bool) {
	if c, err := r.Cookie(m.cfg.CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	auth := r.Header.Get("Authorization")
	if v, ok := strings.CutPrefix(auth, "Bearer "); ok && v != "" {
		return v, true
	}
	return "", false
}

// End removes a session and everything scoped to it.
func (m *Manager) End(ctx context.Context, s Session) error {
	if err := m.store.Delete(ctx, s.ID); err != nil {
		return fmt.Errorf("session: end: %w", err)
	}
	if m.tracker != nil {
		m.tracker.Forget(s.RequestContext().Scope())
	}
	if m.capabilities != nil && s.SubjectID != "" {
		m.capabilities.Invalidate(s.SubjectID)
	}
	return nil
}

// Revoke ends the session with the given id because the backend rejected
// its token.
func (m *Manager) Revoke(ctx context.Context, id string) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn("session: revoke lookup failed", zap.String("session_id", id), zap.Error(err))
		}
		return
	}
	if err := m.End(ctx, s); err != nil {
		m.logger.Warn("session: revoke failed", zap.String("session_id", id), zap.Error(err))
		return
	}
	m.metrics.RecordSessionRevoked()
	m.logger.Info("session revoked", zap.String("session_id", id), zap.String("subject_id", s.SubjectID))
}

// Watch revokes sessions named by unauthorized events on bus. Events without
// a session (login attempts, bearer-less calls) are ignored. The returned
// func stops watching.
func (m *Manager) Watch(bus *events.Bus) (cancel func()) {
	return bus.Subscribe(func(evt model.Event) {
		if evt.Kind != model.EventUnauthorized || evt.SessionID == "" {
			return
		}
		m.Revoke(context.Background(), evt.SessionID)
	})
}

// Cookie returns the session cookie carrying value.
func (m *Manager) Cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie returns a cookie that removes the session cookie.
func (m *Manager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// HealthCheck checks the session store.
func (m *Manager) HealthCheck(ctx context.Context) error {
	return m.store.HealthCheck(ctx)
}
