// Package query tracks the lifecycle of view reads. Each view of each
// session has at most one read in flight: starting a new one cancels the
// previous read, whose result is then discarded as superseded.
package query

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pitabwire/bazaar/internal/observability"
	"github.com/pitabwire/bazaar/model"
)

// Result is the outcome of a tracked read.
type Result[T any] struct {
	State string
	Value T
	Err   error
}

type flight struct {
	id     uint64
	cancel context.CancelFunc
}

// Tracker owns the in-flight reads. A key is held only while a read for it
// is in flight, so settled reads leave nothing behind. It is safe for
// concurrent use.
type Tracker struct {
	mu       sync.Mutex
	seq      uint64
	inflight map[string]flight
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMetrics counts superseded reads.
func WithMetrics(m *observability.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithLogger sets the tracker logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		inflight: make(map[string]flight),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Key builds a tracking key. Reads that share scope, view, and family
// supersede each other; a list and a detail of the same resource do not.
func Key(scope, view, family string) string {
	return scope + "|" + view + "|" + family
}

// Ticket is a handle on one started read.
type Ticket struct {
	tracker *Tracker
	key     string
	id      uint64
	cancel  context.CancelFunc
}

// Begin starts a read for key. The previous read of key, if any, has its
// context cancelled. The returned context must be used for the read.
func (t *Tracker) Begin(ctx context.Context, key string) (context.Context, *Ticket) {
	ctx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	t.seq++
	id := t.seq
	prev, had := t.inflight[key]
	t.inflight[key] = flight{id: id, cancel: cancel}
	t.mu.Unlock()

	if had {
		prev.cancel()
	}
	return ctx, &Ticket{tracker: t, key: key, id: id, cancel: cancel}
}

// Settle ends the read. It reports false when a newer read for the same key
// started in the meantime, in which case the result must be discarded.
func (tk *Ticket) Settle() bool {
	defer tk.cancel()
	t := tk.tracker
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.inflight[tk.key]
	if !ok || cur.id != tk.id {
		return false
	}
	delete(t.inflight, tk.key)
	return true
}

// Loading reports whether a read for key is in flight.
func (t *Tracker) Loading(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inflight[key]
	return ok
}

// InFlight returns the number of reads currently in flight.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// Forget cancels every read in flight for scope. It is called when a
// session ends.
func (t *Tracker) Forget(scope string) {
	prefix := scope + "|"
	t.mu.Lock()
	var cancels []context.CancelFunc
	for k, f := range t.inflight {
		if strings.HasPrefix(k, prefix) {
			cancels = append(cancels, f.cancel)
			delete(t.inflight, k)
		}
	}
	t.mu.Unlock()

	for _, c := range cancels {
		c()
	}
}

// Run performs fetch as the latest read of key. A read overtaken by a newer
// one returns a SUPERSEDED envelope instead of its own result, whatever that
// result was.
func Run[T any](ctx context.Context, t *Tracker, key, resource string, fetch func(context.Context) (T, error)) (Result[T], error) {
	fctx, ticket := t.Begin(ctx, key)
	v, err := fetch(fctx)
	if !ticket.Settle() {
		t.metrics.RecordSuperseded(resource)
		t.logger.Debug("query: read superseded",
			zap.String("key", key),
			zap.String("resource", resource),
		)
		sup := model.NewSupersededError()
		return Result[T]{State: model.StateError, Err: sup}, sup
	}
	if err != nil {
		return Result[T]{State: model.StateError, Err: err}, err
	}
	return Result[T]{State: model.StateLoaded, Value: v}, nil
}
