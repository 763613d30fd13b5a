// Package events provides the console event bus. Components that must react
// to backend rejections or cache invalidation subscribe to it explicitly;
// there is no package-level bus.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/pitabwire/bazaar/model"
)

// Bus delivers events synchronously to every subscriber, in subscription
// order. It is safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers []func(model.Event)
	now         func() time.Time
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{now: time.Now}
}

// Subscribe registers fn and returns a function that removes it. Calling
// cancel more than once is harmless.
func (b *Bus) Subscribe(fn func(model.Event)) (cancel func()) {
	b.mu.Lock()
	idx := len(b.subscribers)
	b.subscribers = append(b.subscribers, fn)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < len(b.subscribers) {
			b.subscribers[idx] = nil
		}
	}
}

// Publish delivers evt to all current subscribers. A zero At is stamped
// with the current time. Subscribers may subscribe or publish from inside
// their callback.
func (b *Bus) Publish(evt model.Event) {
	if evt.At.IsZero() {
		evt.At = b.now()
	}
	b.mu.RLock()
	subs := make([]func(model.Event), len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, fn := range subs {
		if fn != nil {
			fn(evt)
		}
	}
}

// Subscribers returns the number of active subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, fn := range b.subscribers {
		if fn != nil {
			n++
		}
	}
	return n
}

// NotifyUnauthorized publishes an unauthorized event for the session in ctx.
// It satisfies the backend client's notifier hook.
func (b *Bus) NotifyUnauthorized(ctx context.Context, status int) {
	evt := model.Event{Kind: model.EventUnauthorized, Status: status}
	if rctx := model.RequestContextFrom(ctx); rctx != nil {
		evt.SessionID = rctx.SessionID
		evt.SubjectID = rctx.SubjectID
	}
	b.Publish(evt)
}

// NotifyInvalidated publishes an invalidated event for the given tags.
func (b *Bus) NotifyInvalidated(tags ...model.Tag) {
	if len(tags) == 0 {
		return
	}
	b.Publish(model.Event{Kind: model.EventInvalidated, Tags: tags})
}
