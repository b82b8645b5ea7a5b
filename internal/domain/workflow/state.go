package workflow

// State is a node of either the order or the order-approver lifecycle
type State string

const (
	// Order states
	StateDraft     State = "draft"
	StateSent      State = "sent"
	StateToApprove State = "to_approve"
	StatePurchase  State = "purchase"
	StateDone      State = "done"
	StateCancel    State = "cancel"

	// Order approver states (StateToApprove is shared)
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
)

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known state. It must not depend
// on package variables: the lifecycles are built during package init.
func (s State) IsValid() bool {
	switch s {
	case StateDraft, StateSent, StateToApprove, StatePurchase, StateDone, StateCancel,
		StatePending, StateApproved, StateRejected:
		return true
	}
	return false
}
