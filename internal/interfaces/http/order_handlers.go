package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/po-approval-route/internal/domain/access"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
	"github.com/garyjia/po-approval-route/pkg/utils"
)

// xlsxContentType is the media type of exported routes
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CreateOrderRequest is the body of POST /api/orders
type CreateOrderRequest struct {
	Name         string          `json:"name"`
	CompanyID    int64           `json:"company_id" binding:"required"`
	PartnerID    int64           `json:"partner_id" binding:"required"`
	UserID       *int64          `json:"user_id"`
	TeamID       *int64          `json:"team_id"`
	CurrencyCode string          `json:"currency_code"`
	AmountTotal  decimal.Decimal `json:"amount_total"`
	DateOrder    *time.Time      `json:"date_order"`
}

// SetTeamRequest is the body of PUT /api/orders/:id/team; a null team
// clears the assignment
type SetTeamRequest struct {
	TeamID *int64 `json:"team_id"`
}

// AmountRequest is the body of PUT /api/orders/:id/amount
type AmountRequest struct {
	AmountTotal decimal.Decimal `json:"amount_total"`
}

// ApproveRequest is the optional body of POST /api/orders/:id/approve
type ApproveRequest struct {
	Force bool `json:"force"`
}

// RejectRequest is the optional body of POST /api/orders/:id/reject
type RejectRequest struct {
	Reason string `json:"reason"`
}

// OrderResponse is an order with its derived approval fields
type OrderResponse struct {
	*entity.PurchaseOrder
	CurrentApprover *entity.OrderApprover `json:"current_approver"`
	NextApprover    *entity.OrderApprover `json:"next_approver"`
	LockAmountTotal bool                  `json:"lock_amount_total"`
}

// writeOrder answers with the order and its derived fields. The team is
// read for the team-level amount lock.
func (h *Handlers) writeOrder(c *gin.Context, status int, order *entity.PurchaseOrder) {
	var team *entity.Team
	if order.TeamID != nil {
		var err error
		if team, err = h.services.Team.GetTeam(c.Request.Context(), *order.TeamID); err != nil {
			h.fail(c, err)
			return
		}
	}

	h.ok(c, status, OrderResponse{
		PurchaseOrder:   order,
		CurrentApprover: order.CurrentApprover(),
		NextApprover:    order.NextApprover(),
		LockAmountTotal: order.LockAmountTotal(team),
	})
}

// orderAction is a lifecycle call on one order by the acting user
type orderAction func(ctx context.Context, orderID int64, actor access.Actor) (*entity.PurchaseOrder, error)

// runOrderAction parses the order id, runs action and writes the order
func (h *Handlers) runOrderAction(c *gin.Context, action orderAction) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	order, err := action(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.writeOrder(c, http.StatusOK, order)
}

// CreateOrder handles POST /api/orders
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if !h.bind(c, &req) {
		return
	}

	order := &entity.PurchaseOrder{
		Name:         req.Name,
		CompanyID:    req.CompanyID,
		PartnerID:    req.PartnerID,
		UserID:       req.UserID,
		TeamID:       req.TeamID,
		CurrencyCode: req.CurrencyCode,
		AmountTotal:  req.AmountTotal,
		DateOrder:    req.DateOrder,
	}
	if err := h.services.Approval.CreateOrder(c.Request.Context(), order, actorFrom(c)); err != nil {
		h.fail(c, err)
		return
	}
	h.writeOrder(c, http.StatusCreated, order)
}

// GetOrder handles GET /api/orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	order, err := h.services.Approval.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.writeOrder(c, http.StatusOK, order)
}

// SetOrderTeam handles PUT /api/orders/:id/team
func (h *Handlers) SetOrderTeam(c *gin.Context) {
	var req SetTeamRequest
	if !h.bind(c, &req) {
		return
	}
	h.runOrderAction(c, func(ctx context.Context, id int64, actor access.Actor) (*entity.PurchaseOrder, error) {
		return h.services.Approval.SetOrderTeam(ctx, id, req.TeamID, actor)
	})
}

// UpdateAmount handles PUT /api/orders/:id/amount
func (h *Handlers) UpdateAmount(c *gin.Context) {
	var req AmountRequest
	if !h.bind(c, &req) {
		return
	}
	h.runOrderAction(c, func(ctx context.Context, id int64, actor access.Actor) (*entity.PurchaseOrder, error) {
		return h.services.Approval.UpdateAmountTotal(ctx, id, req.AmountTotal, actor)
	})
}

// RegenerateRoute handles POST /api/orders/:id/route
func (h *Handlers) RegenerateRoute(c *gin.Context) {
	h.runOrderAction(c, h.services.Approval.RegenerateRoute)
}

// Confirm handles POST /api/orders/:id/confirm
func (h *Handlers) Confirm(c *gin.Context) {
	h.runOrderAction(c, h.services.Approval.Confirm)
}

// SendToApprove handles POST /api/orders/:id/send
func (h *Handlers) SendToApprove(c *gin.Context) {
	h.runOrderAction(c, h.services.Approval.SendToApprove)
}

// Approve handles POST /api/orders/:id/approve. Only superusers may force
// the final approval of an order that is not waiting for it.
func (h *Handlers) Approve(c *gin.Context) {
	var req ApproveRequest
	if c.Request.ContentLength > 0 && !h.bind(c, &req) {
		return
	}
	if req.Force && !actorFrom(c).Superuser {
		h.abort(c, http.StatusForbidden, "only administrators may force an approval")
		return
	}

	h.runOrderAction(c, func(ctx context.Context, id int64, actor access.Actor) (*entity.PurchaseOrder, error) {
		return h.services.Approval.Approve(ctx, id, actor, req.Force)
	})
}

// Reject handles POST /api/orders/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	var req RejectRequest
	if c.Request.ContentLength > 0 && !h.bind(c, &req) {
		return
	}

	h.runOrderAction(c, func(ctx context.Context, id int64, actor access.Actor) (*entity.PurchaseOrder, error) {
		return h.services.Approval.Reject(ctx, id, actor, utils.SanitizeString(req.Reason))
	})
}

// Cancel handles POST /api/orders/:id/cancel
func (h *Handlers) Cancel(c *gin.Context) {
	h.runOrderAction(c, h.services.Approval.Cancel)
}

// ResetToDraft handles POST /api/orders/:id/draft
func (h *Handlers) ResetToDraft(c *gin.Context) {
	h.runOrderAction(c, h.services.Approval.ResetToDraft)
}

// Lock handles POST /api/orders/:id/lock
func (h *Handlers) Lock(c *gin.Context) {
	h.runOrderAction(c, h.services.Approval.Lock)
}

// ListMessages handles GET /api/orders/:id/messages
func (h *Handlers) ListMessages(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if _, err := h.services.Approval.GetOrder(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}

	messages, err := h.services.Notification.ListMessages(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, messages)
}

// History handles GET /api/orders/:id/history
func (h *Handlers) History(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	history, err := h.services.Approval.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, history)
}

// ExportRoute handles GET /api/orders/:id/route.xlsx
func (h *Handlers) ExportRoute(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	order, data, err := h.services.Export.ExportRoute(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-route.xlsx"`, order.Name))
	c.Data(http.StatusOK, xlsxContentType, data)
}
