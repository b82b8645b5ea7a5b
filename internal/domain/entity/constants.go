package entity

// ApprovalRouteMode is the company-level switch for approval routing
type ApprovalRouteMode string

const (
	ApprovalRouteNo       ApprovalRouteMode = "no"
	ApprovalRouteOptional ApprovalRouteMode = "optional"
	ApprovalRouteRequired ApprovalRouteMode = "required"
)

// IsValid reports whether the mode is one of the defined values
func (m ApprovalRouteMode) IsValid() bool {
	switch m {
	case ApprovalRouteNo, ApprovalRouteOptional, ApprovalRouteRequired:
		return true
	default:
		return false
	}
}

// OrderState is the lifecycle state of a purchase order
type OrderState string

const (
	OrderStateDraft     OrderState = "draft"
	OrderStateSent      OrderState = "sent"
	OrderStateToApprove OrderState = "to_approve"
	OrderStatePurchase  OrderState = "purchase"
	OrderStateDone      OrderState = "done"
	OrderStateCancel    OrderState = "cancel"
)

// IsEditable reports whether the order is still in a quotation phase
func (s OrderState) IsEditable() bool {
	return s == OrderStateDraft || s == OrderStateSent
}

// ApproverState is the state of one step of an order's approval route
type ApproverState string

const (
	ApproverStateToApprove ApproverState = "to_approve"
	ApproverStatePending   ApproverState = "pending"
	ApproverStateApproved  ApproverState = "approved"
	ApproverStateRejected  ApproverState = "rejected"
)

// IsFinal reports whether the approver has reached a decision
func (s ApproverState) IsFinal() bool {
	return s == ApproverStateApproved || s == ApproverStateRejected
}

// Message kinds
const (
	MessageKindNote         = "note"
	MessageKindNotification = "notification"
)

// Notification templates
const (
	TemplateRequestToApprove = "request_to_approve"
	TemplateOrderApproval    = "order_approval"
	TemplateOrderRejected    = "order_rejected"
)

// History action types
const (
	ActionCreate         = "CREATE"
	ActionConfirm        = "CONFIRM"
	ActionGenerateRoute  = "GENERATE_ROUTE"
	ActionRequestApprove = "REQUEST_APPROVE"
	ActionApprove        = "APPROVE"
	ActionReject         = "REJECT"
	ActionCancel         = "CANCEL"
	ActionResetDraft     = "RESET_DRAFT"
	ActionLock           = "LOCK"
	ActionAmountChange   = "AMOUNT_CHANGE"
	ActionTeamChange     = "TEAM_CHANGE"
)

const (
	// DefaultRuleSequence is used when a rule is created without a sequence
	DefaultRuleSequence = 10
	// DefaultRuleRole is used when no role can be detected for a rule
	DefaultRuleRole = "Approver"
)
