package service

import (
	"context"
	"time"

	"github.com/garyjia/po-approval-route/internal/application/dispatcher"
	"github.com/garyjia/po-approval-route/internal/application/port"
	"github.com/garyjia/po-approval-route/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type outboxKey struct{}

type outbox struct {
	events []*event.Event
}

// unitOfWork runs a service call in one transaction and publishes the
// events queued during it once the outermost transaction has committed.
type unitOfWork struct {
	txManager  port.TransactionManager
	dispatcher dispatcher.Dispatcher
}

func (u unitOfWork) run(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, nested := ctx.Value(outboxKey{}).(*outbox); nested {
		return u.txManager.WithTransaction(ctx, fn)
	}

	box := &outbox{}
	if err := u.txManager.WithTransaction(context.WithValue(ctx, outboxKey{}, box), fn); err != nil {
		return err
	}

	if u.dispatcher == nil {
		return nil
	}

	// Handlers outlive the request that produced the events.
	pubCtx := context.WithoutCancel(ctx)
	for _, evt := range box.events {
		u.dispatcher.Publish(pubCtx, evt)
	}
	return nil
}

// publish queues evt until the surrounding unit of work commits. Events
// raised outside a unit of work are dropped.
func publish(ctx context.Context, evt *event.Event) {
	if box, ok := ctx.Value(outboxKey{}).(*outbox); ok {
		box.events = append(box.events, evt)
	}
}

// now is replaced in tests
var now = time.Now
