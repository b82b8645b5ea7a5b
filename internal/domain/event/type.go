package event

// Type identifies the type of domain event
type Type string

const (
	TypeOrderConfirmed      Type = "order.confirmed"
	TypeRouteGenerated      Type = "route.generated"
	TypeApprovalRequested   Type = "approval.requested"
	TypeApproverApproved    Type = "approver.approved"
	TypeApproverRejected    Type = "approver.rejected"
	TypeOrderApproved       Type = "order.approved"
	TypeOrderCancelled      Type = "order.cancelled"
	TypeNotificationCreated Type = "notification.created"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeOrderConfirmed, TypeRouteGenerated, TypeApprovalRequested, TypeApproverApproved,
		TypeApproverRejected, TypeOrderApproved, TypeOrderCancelled, TypeNotificationCreated:
		return true
	}
	return false
}
