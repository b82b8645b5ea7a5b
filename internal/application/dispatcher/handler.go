package dispatcher

import (
	"context"

	"github.com/garyjia/po-approval-route/internal/domain/event"
)

// Handler reacts to a committed purchase order event
type Handler func(ctx context.Context, evt *event.Event) error

type subscription struct {
	name    string
	handler Handler
}
