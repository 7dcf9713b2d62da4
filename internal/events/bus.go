// Package events fans committed rental events out to notification
// collaborators.
package events

import (
	"context"
	"sync"
	"time"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/logger"
)

type Handler interface {
	Name() string
	Handle(ctx context.Context, evt domain.RentalEvent) error
}

// Publisher is what the engine depends on. Events must only be published
// after the unit of work that recorded them has committed.
type Publisher interface {
	Publish(ctx context.Context, evts ...domain.RentalEvent)
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[domain.EventType][]Handler
	wildcard    []Handler

	async   bool
	timeout time.Duration
	wg      sync.WaitGroup
}

type Option func(*Bus)

// Synchronous makes Publish run handlers inline. Used by tests and the CLI.
func Synchronous() Option {
	return func(b *Bus) { b.async = false }
}

// WithHandlerTimeout bounds each handler invocation.
func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) { b.timeout = d }
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subscribers: make(map[domain.EventType][]Handler),
		async:       true,
		timeout:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for the given types, or for every type when none
// are given.
func (b *Bus) Subscribe(h Handler, types ...domain.EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(types) == 0 {
		b.wildcard = append(b.wildcard, h)
		return
	}
	for _, t := range types {
		b.subscribers[t] = append(b.subscribers[t], h)
	}
}

func (b *Bus) handlersFor(t domain.EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	hs := make([]Handler, 0, len(b.subscribers[t])+len(b.wildcard))
	hs = append(hs, b.subscribers[t]...)
	return append(hs, b.wildcard...)
}

// Publish delivers evts to their subscribers. Handler failures are logged
// and never reach the publisher; the request that produced the events has
// already succeeded.
func (b *Bus) Publish(ctx context.Context, evts ...domain.RentalEvent) {
	// Delivery outlives the request that triggered it.
	ctx = context.WithoutCancel(ctx)
	for _, evt := range evts {
		for _, h := range b.handlersFor(evt.Type) {
			if !b.async {
				b.deliver(ctx, h, evt)
				continue
			}
			b.wg.Add(1)
			go func(h Handler, evt domain.RentalEvent) {
				defer b.wg.Done()
				b.deliver(ctx, h, evt)
			}(h, evt)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, evt domain.RentalEvent) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked", "handler", h.Name(), "event_id", evt.ID, "panic", r)
		}
	}()
	if err := h.Handle(ctx, evt); err != nil {
		logger.Error("event handler failed", "handler", h.Name(), "event_id", evt.ID,
			"type", evt.Type, "rental_id", evt.RentalID, "error", err)
		return
	}
	logger.Debug("event handled", "handler", h.Name(), "event_id", evt.ID, "type", evt.Type)
}

// Wait blocks until every asynchronous delivery started so far has finished.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Recorder keeps every event it receives. Handy as a subscriber in tests and
// for the CLI's dry runs.
type Recorder struct {
	mu     sync.Mutex
	events []domain.RentalEvent
}

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Handle(ctx context.Context, evt domain.RentalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Events() []domain.RentalEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RentalEvent(nil), r.events...)
}

// Types returns the recorded event types in arrival order.
func (r *Recorder) Types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
