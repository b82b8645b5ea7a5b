package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerRoute      Trigger = "ROUTE"
	TriggerRequest    Trigger = "REQUEST"
	TriggerApprove    Trigger = "APPROVE"
	TriggerReject     Trigger = "REJECT"
	TriggerCancel     Trigger = "CANCEL"
	TriggerResetDraft Trigger = "RESET_DRAFT"
	TriggerLock       Trigger = "LOCK"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
