package entity

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrder is the subset of a purchase order the approval route needs
type PurchaseOrder struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	CompanyID    int64            `json:"company_id"`
	PartnerID    int64            `json:"partner_id"`
	UserID       *int64           `json:"user_id,omitempty"`
	CreatedBy    int64            `json:"created_by"`
	TeamID       *int64           `json:"team_id,omitempty"`
	CurrencyCode string           `json:"currency_code"`
	AmountTotal  decimal.Decimal  `json:"amount_total"`
	DateOrder    *time.Time       `json:"date_order,omitempty"`
	DateApprove  *time.Time       `json:"date_approve,omitempty"`
	State        OrderState       `json:"state"`
	Approvers    []*OrderApprover `json:"approvers"`
	FollowerIDs  []int64          `json:"follower_ids"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// OwnerID returns the purchase representative, falling back to the creator
func (o *PurchaseOrder) OwnerID() int64 {
	if o.UserID != nil {
		return *o.UserID
	}
	return o.CreatedBy
}

// HasTeam reports whether an approval team is assigned
func (o *PurchaseOrder) HasTeam() bool {
	return o.TeamID != nil
}

// CurrentApprover returns the first approver in pending state, or nil
func (o *PurchaseOrder) CurrentApprover() *OrderApprover {
	return o.firstApprover(ApproverStatePending)
}

// NextApprover returns the first approver still to approve, or nil
func (o *PurchaseOrder) NextApprover() *OrderApprover {
	return o.firstApprover(ApproverStateToApprove)
}

func (o *PurchaseOrder) firstApprover(state ApproverState) *OrderApprover {
	for _, a := range o.Approvers {
		if a.State == state {
			return a
		}
	}
	return nil
}

// ApprovalLocked reports whether an approver with the lock flag has approved
func (o *PurchaseOrder) ApprovalLocked() bool {
	for _, a := range o.Approvers {
		if a.State == ApproverStateApproved && a.LockAmountTotal {
			return true
		}
	}
	return false
}

// LockAmountTotal is the derived lock flag: locked by an approval, or by
// the team policy once a route exists
func (o *PurchaseOrder) LockAmountTotal(team *Team) bool {
	if o.ApprovalLocked() {
		return true
	}
	return team != nil && team.LockAmountTotal && len(o.Approvers) > 0
}

// HasFollower reports whether partnerID follows the order
func (o *PurchaseOrder) HasFollower(partnerID int64) bool {
	for _, id := range o.FollowerIDs {
		if id == partnerID {
			return true
		}
	}
	return false
}

// OrderApprover is an order-scoped snapshot of a matching approver rule
type OrderApprover struct {
	ID              int64               `json:"id"`
	OrderID         int64               `json:"order_id"`
	TeamID          int64               `json:"team_id"`
	SourceRuleID    *int64              `json:"source_rule_id,omitempty"`
	Sequence        int                 `json:"sequence"`
	UserID          int64               `json:"user_id"`
	Role            string              `json:"role"`
	MinAmount       decimal.Decimal     `json:"min_amount"`
	MaxAmount       decimal.NullDecimal `json:"max_amount"`
	LockAmountTotal bool                `json:"lock_amount_total"`
	State           ApproverState       `json:"state"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// NewOrderApprover snapshots rule for orderID in to_approve state
func NewOrderApprover(orderID int64, rule *ApproverRule) *OrderApprover {
	ruleID := rule.ID
	return &OrderApprover{
		OrderID:         orderID,
		TeamID:          rule.TeamID,
		SourceRuleID:    &ruleID,
		Sequence:        rule.Sequence,
		UserID:          rule.UserID,
		Role:            rule.Role,
		MinAmount:       rule.MinAmount,
		MaxAmount:       rule.MaxAmount,
		LockAmountTotal: rule.LockAmountTotal,
		State:           ApproverStateToApprove,
	}
}

// SortApprovers orders approvers by sequence; ties keep id order
func SortApprovers(approvers []*OrderApprover) {
	sort.SliceStable(approvers, func(i, j int) bool {
		if approvers[i].Sequence != approvers[j].Sequence {
			return approvers[i].Sequence < approvers[j].Sequence
		}
		return approvers[i].ID < approvers[j].ID
	})
}
