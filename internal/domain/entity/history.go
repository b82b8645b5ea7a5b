package entity

import "time"

// OrderHistory is the audit trail of an order's approval lifecycle
type OrderHistory struct {
	ID            int64     `json:"id"`
	OrderID       int64     `json:"order_id"`
	ActorUserID   int64     `json:"actor_user_id"`
	PreviousState string    `json:"previous_state"`
	NewState      string    `json:"new_state"`
	ActionType    string    `json:"action_type"`
	ActionData    string    `json:"action_data"`
	Timestamp     time.Time `json:"timestamp"`
}

// Message is an entry of an order's activity log. Notifications carry
// recipients and are delivered to them after the transaction commits.
type Message struct {
	ID           int64     `json:"id"`
	OrderID      int64     `json:"order_id"`
	AuthorID     int64     `json:"author_id"`
	Kind         string    `json:"kind"`
	Template     string    `json:"template,omitempty"`
	Subject      string    `json:"subject,omitempty"`
	Body         string    `json:"body"`
	RecipientIDs []int64   `json:"recipient_ids,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
