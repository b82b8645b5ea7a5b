package service

import (
	"github.com/garyjia/po-approval-route/internal/domain/apperr"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
)

const lockMessage = "Sorry, you are not allowed to change Amount Total of PO."

// CheckLock gates a change of the order's amount total. Draft and sent
// orders are always editable. Afterwards the amount is locked once an
// approver with the lock flag has approved, or at once when the team
// locks amounts.
func CheckLock(order *entity.PurchaseOrder, team *entity.Team) error {
	if order.State.IsEditable() {
		return nil
	}
	if order.ApprovalLocked() {
		return apperr.PolicyViolation("%s\n\nIt is locked after received approval.", lockMessage)
	}
	if team != nil && team.LockAmountTotal {
		return apperr.PolicyViolation("%s\n\nIt is locked after generated approval route.\n\nTo make changes, cancel and reset PO to draft.", lockMessage)
	}
	return nil
}
