package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pitabwire/bazaar/internal/audit"
	"github.com/pitabwire/bazaar/internal/observability"
	"github.com/pitabwire/bazaar/model"
)

// Request asks for a confirmation of Action on one record.
type Request struct {
	Resource string
	TargetID string
	Action   string
	Reason   string
}

// Executor performs the confirmed action.
type Executor func(ctx context.Context, p Pending) error

// Manager drives confirmations through open, busy, and closed. Every
// confirmation belongs to the session that opened it.
type Manager struct {
	store    Store
	ttl      time.Duration
	audit    audit.Store
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
	newToken func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithAudit records every executed action in s.
func WithAudit(s audit.Store) Option {
	return func(m *Manager) { m.audit = s }
}

// WithMetrics records confirmation transitions.
func WithMetrics(mt *observability.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithLogger sets the manager logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager whose confirmations live for ttl.
func NewManager(store Store, ttl time.Duration, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	m := &Manager{
		store:    store,
		ttl:      ttl,
		logger:   zap.NewNop(),
		now:      time.Now,
		newToken: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open creates a confirmation for the session in ctx.
func (m *Manager) Open(ctx context.Context, req Request) (Pending, error) {
	rctx := model.RequestContextFrom(ctx)
	p := Pending{
		Token:     m.newToken(),
		Resource:  req.Resource,
		TargetID:  req.TargetID,
		Action:    req.Action,
		Reason:    req.Reason,
		CreatedAt: m.now().UTC(),
		ExpiresAt: m.now().UTC().Add(m.ttl),
	}
	if rctx != nil {
		p.SessionID = rctx.SessionID
		p.SubjectID = rctx.SubjectID
	}
	if err := m.store.Put(ctx, p, m.ttl); err != nil {
		return Pending{}, fmt.Errorf("confirm: open: %w", err)
	}
	m.metrics.RecordConfirmation(p.Resource, p.Action, "opened")
	return p, nil
}

// Get returns the confirmation for token if it belongs to the session in
// ctx.
func (m *Manager) Get(ctx context.Context, token string) (Pending, error) {
	p, err := m.store.Get(ctx, token)
	if err != nil {
		return Pending{}, m.mapStoreError(err)
	}
	if !ownedBy(ctx, p) {
		return Pending{}, model.NewConfirmationExpiredError()
	}
	return p, nil
}

// Confirm runs exec for the confirmation. While exec runs the confirmation
// is busy and a second Confirm or a Cancel is a CONFLICT. On success the
// confirmation is closed; on failure it is reopened and exec's error is
// returned. A non-empty reason replaces the one given at open.
func (m *Manager) Confirm(ctx context.Context, token, reason string, exec Executor) (Pending, error) {
	open, err := m.Get(ctx, token)
	if err != nil {
		return Pending{}, err
	}
	p, err := m.store.Acquire(ctx, token)
	if err != nil {
		if errors.Is(err, ErrBusy) {
			m.metrics.RecordConfirmation(open.Resource, open.Action, "conflict")
		}
		return Pending{}, m.mapStoreError(err)
	}
	if reason != "" {
		p.Reason = reason
	}

	execErr := exec(ctx, p)
	m.recordAudit(ctx, p, execErr)

	if execErr != nil {
		if err := m.store.Release(context.WithoutCancel(ctx), token); err != nil {
			m.logger.Warn("confirm: release failed", zap.String("token", token), zap.Error(err))
		}
		m.metrics.RecordConfirmation(p.Resource, p.Action, "failed")
		return Pending{}, execErr
	}

	if err := m.store.Delete(context.WithoutCancel(ctx), token); err != nil {
		m.logger.Warn("confirm: delete failed", zap.String("token", token), zap.Error(err))
	}
	m.metrics.RecordConfirmation(p.Resource, p.Action, "confirmed")
	p.Busy = false
	return p, nil
}

// Cancel closes the confirmation without acting. A busy confirmation cannot
// be cancelled.
func (m *Manager) Cancel(ctx context.Context, token string) error {
	p, err := m.Get(ctx, token)
	if err != nil {
		return err
	}
	if p.Busy {
		return model.NewConflictError("This action is already in progress")
	}
	if err := m.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("confirm: cancel: %w", err)
	}
	m.metrics.RecordConfirmation(p.Resource, p.Action, "cancelled")
	return nil
}

// HealthCheck checks the backing store.
func (m *Manager) HealthCheck(ctx context.Context) error {
	return m.store.HealthCheck(ctx)
}

func (m *Manager) mapStoreError(err error) error {
	switch {
	case errors.Is(err, ErrNotOpen):
		return model.NewConfirmationExpiredError()
	case errors.Is(err, ErrBusy):
		return model.NewConflictError("This action is already in progress")
	}
	return fmt.Errorf("confirm: store: %w", err)
}

func (m *Manager) recordAudit(ctx context.Context, p Pending, execErr error) {
	if m.audit == nil {
		return
	}
	e := audit.Entry{
		ID:        uuid.NewString(),
		At:        m.now().UTC(),
		SubjectID: p.SubjectID,
		SessionID: p.SessionID,
		Resource:  p.Resource,
		TargetID:  p.TargetID,
		Action:    p.Action,
		Reason:    p.Reason,
		Outcome:   audit.OutcomeSucceeded,
	}
	if rctx := model.RequestContextFrom(ctx); rctx != nil {
		e.Email = rctx.Email
	}
	if execErr != nil {
		e.Outcome = audit.OutcomeFailed
		e.Error = execErr.Error()
	}
	if err := m.audit.Record(context.WithoutCancel(ctx), e); err != nil {
		m.logger.Error("confirm: audit record failed",
			zap.String("resource", p.Resource),
			zap.String("action", p.Action),
			zap.Error(err),
		)
	}
}

func ownedBy(ctx context.Context, p Pending) bool {
	rctx := model.RequestContextFrom(ctx)
	if rctx == nil {
		return p.SessionID == ""
	}
	return p.SessionID == rctx.SessionID
}
