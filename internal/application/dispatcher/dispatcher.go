package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/garyjia/po-approval-route/internal/domain/event"
)

// ErrClosed is returned by Close on a dispatcher that is already closed
var ErrClosed = errors.New("dispatcher closed")

// Dispatcher delivers committed domain events to named subscribers
type Dispatcher interface {
	// Subscribe registers handler for eventType. Subscribing an existing
	// name again replaces its handler. Unknown event types panic.
	Subscribe(eventType event.Type, name string, handler Handler)

	// Publish runs each subscriber of evt on its own goroutine. Events
	// published after Close are dropped.
	Publish(ctx context.Context, evt *event.Event)

	// Subscribers returns the subscriber names of eventType in registration order
	Subscribers(eventType event.Type) []string

	// Close stops accepting events and waits for running handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu     sync.RWMutex
	subs   map[event.Type][]subscription
	closed bool
	wg     sync.WaitGroup
	logger Logger
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{subs: make(map[event.Type][]subscription)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	if !eventType.IsValid() {
		panic(fmt.Sprintf("subscribe %s: unknown event type %q", name, eventType))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.subs[eventType]
	for i := range subs {
		if subs[i].name == name {
			subs[i].handler = handler
			d.logInfo("Handler replaced", "event_type", eventType, "handler_name", name)
			return
		}
	}
	d.subs[eventType] = append(subs, subscription{name: name, handler: handler})
	d.logInfo("Handler registered", "event_type", eventType, "handler_name", name)
}

func (d *eventDispatcher) Publish(ctx context.Context, evt *event.Event) {
	// wg.Add happens under the read lock so Close cannot start waiting
	// between the closed check and the goroutine start
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logError("Event dropped, dispatcher is closed", "event_type", evt.Type, "event_id", evt.ID)
		return
	}

	for _, sub := range d.subs[evt.Type] {
		d.wg.Add(1)
		go func(sub subscription) {
			defer d.wg.Done()
			if err := d.run(ctx, evt, sub); err != nil {
				d.logError("Handler failed",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"order_id", evt.OrderID,
					"handler_name", sub.name,
					"error", err,
				)
			}
		}(sub)
	}
}

func (d *eventDispatcher) Subscribers(eventType event.Type) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.subs[eventType]))
	for _, sub := range d.subs[eventType] {
		names = append(names, sub.name)
	}
	return names
}

func (d *eventDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	d.mu.Unlock()

	d.logInfo("Closing dispatcher, waiting for handlers")
	d.wg.Wait()
	return nil
}

// run calls the handler and turns a panic into an error
func (d *eventDispatcher) run(ctx context.Context, evt *event.Event, sub subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return sub.handler(ctx, evt)
}

func (d *eventDispatcher) logInfo(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, kv...)
	}
}

func (d *eventDispatcher) logError(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, kv...)
	}
}
