package workflow

var (
	orderLifecycle    = newOrderLifecycle()
	approverLifecycle = newApproverLifecycle()
)

// NewOrderMachine returns a purchase order lifecycle machine at initial.
//
//	draft/sent --ROUTE--> to_approve --APPROVE--> purchase --LOCK--> done
//	draft/sent --APPROVE--> purchase
//	any but done --CANCEL--> cancel --RESET_DRAFT--> draft
func NewOrderMachine(initial State) *Machine {
	return orderLifecycle.Machine(initial)
}

// NewApproverMachine returns an order approver machine at initial.
//
//	to_approve --REQUEST--> pending --APPROVE--> approved
//	                        pending --REJECT--> rejected
func NewApproverMachine(initial State) *Machine {
	return approverLifecycle.Machine(initial)
}

func newOrderLifecycle() *Lifecycle {
	b := NewBuilder("purchase order")

	for _, s := range []State{StateDraft, StateSent} {
		b.Permit(s, TriggerRoute, StateToApprove).
			Permit(s, TriggerApprove, StatePurchase).
			Permit(s, TriggerCancel, StateCancel)
	}

	b.Permit(StateToApprove, TriggerApprove, StatePurchase).
		Permit(StateToApprove, TriggerCancel, StateCancel).
		Permit(StatePurchase, TriggerLock, StateDone).
		Permit(StatePurchase, TriggerCancel, StateCancel).
		Permit(StateCancel, TriggerResetDraft, StateDraft)

	return b.Lifecycle()
}

func newApproverLifecycle() *Lifecycle {
	return NewBuilder("order approver").
		Permit(StateToApprove, TriggerRequest, StatePending).
		Permit(StatePending, TriggerApprove, StateApproved).
		Permit(StatePending, TriggerReject, StateRejected).
		Lifecycle()
}
