package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys shared by publishers and handlers
const (
	KeyMessageID  = "message_id"
	KeyApproverID = "approver_id"
	KeyUserID     = "user_id"
	KeyActorID    = "actor_id"
	KeyCount      = "count"
)

// Event is a fact about a purchase order, published after the
// transaction that produced it has committed.
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	OrderID   int64                  `json:"order_id"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates a domain event with a fresh ID
func NewEvent(eventType Type, orderID int64, payload map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		OrderID:   orderID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
