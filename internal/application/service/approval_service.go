package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/po-approval-route/internal/application/dispatcher"
	"github.com/garyjia/po-approval-route/internal/application/port"
	"github.com/garyjia/po-approval-route/internal/domain/access"
	"github.com/garyjia/po-approval-route/internal/domain/apperr"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
	"github.com/garyjia/po-approval-route/internal/domain/event"
	"github.com/garyjia/po-approval-route/internal/domain/workflow"
)

// ApprovalService drives purchase orders through their approval route
type ApprovalService interface {
	CreateOrder(ctx context.Context, order *entity.PurchaseOrder, actor access.Actor) error
	GetOrder(ctx context.Context, id int64) (*entity.PurchaseOrder, error)
	SetOrderTeam(ctx context.Context, orderID int64, teamID *int64, actor access.Actor) (*entity.PurchaseOrder, error)
	UpdateAmountTotal(ctx context.Context, orderID int64, amount decimal.Decimal, actor access.Actor) (*entity.PurchaseOrder, error)

	// RegenerateRoute rebuilds the route of a draft or sent order
	RegenerateRoute(ctx context.Context, orderID int64, actor access.Actor) (*entity.PurchaseOrder, error)

	Confirm(ctx context.Context, orderID int64, actor access.Actor) (*entity.PurchaseOrder, error)
	SendToApprove(ctx context.Context, orderID int64, actor access.Actor) (*entity.PurchaseOrder, error)
	Approve(ctx context.Context, orderID int64, actor access.Actor, force bool) (*entity.PurchaseOrder, error)
	Reject(ctx context.Context, orderID int64, actor access.Actor, reason string) (*entity.PurchaseOrder, error)
	Cancel(ctx context.Context, orderID int64, actor access.Actor) (*entity.PurchaseOrder, error)
	ResetToDraft(ctx context.Context, orderID int64, actor access.Actor) (*entity.PurchaseOrder, error)
	Lock(ctx context.Context, orderID int64, actor access.Actor) (*entity.PurchaseOrder, error)

	History(ctx context.Context, orderID int64) ([]*entity.OrderHistory, error)
}

type approvalServiceImpl struct {
	orderRepo     port.OrderRepository
	approverRepo  port.OrderApproverRepository
	teamRepo      port.TeamRepository
	companyRepo   port.CompanyRepository
	partnerRepo   port.PartnerRepository
	userRepo      port.UserRepository
	historyRepo   port.HistoryRepository
	generator     RouteGenerator
	notifications NotificationService
	uow           unitOfWork
	logger        Logger
}

// NewApprovalService creates a new ApprovalService. Events are published on
// d after each call commits; d may be nil.
func NewApprovalService(
	orderRepo port.OrderRepository,
	approverRepo port.OrderApproverRepository,
	teamRepo port.TeamRepository,
	companyRepo port.CompanyRepository,
	partnerRepo port.PartnerRepository,
	userRepo port.UserRepository,
	historyRepo port.HistoryRepository,
	generator RouteGenerator,
	notifications NotificationService,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		orderRepo:     orderRepo,
		approverRepo:  approverRepo,
		teamRepo:      teamRepo,
		companyRepo:   companyRepo,
		partnerRepo:   partnerRepo,
		userRepo:      userRepo,
		historyRepo:   historyRepo,
		generator:     generator,
		notifications: notifications,
		uow:           unitOfWork{txManager: txManager, dispatcher: d},
		logger:        logger,
	}
}

// CreateOrder creates a draft purchase order owned by the actor unless a
// purchase representative is given
func (s *approvalServiceImpl) CreateOrder(ctx context.Context, order *entity.PurchaseOrder, actor access.Actor) error {
	if order.AmountTotal.IsNegative() {
		return apperr.Validation("Amount total must not be negative")
	}
	order.Name = strings.TrimSpace(order.Name)
	order.State = entity.OrderStateDraft
	order.CreatedBy = actor.UserID
	order.Approvers = nil
	order.DateApprove = nil

	err := s.uow.run(ctx, func(txCtx context.Context) error {
		company, err := s.companyRepo.GetByID(txCtx, order.CompanyID)
		if err != nil {
			return fmt.Errorf("get company: %w", err)
		}
		if company == nil {
			return apperr.NotFound("company", order.CompanyID)
		}
		if order.CurrencyCode == "" {
			order.CurrencyCode = company.CurrencyCode
		}
		order.CurrencyCode = strings.ToUpper(order.CurrencyCode)

		partner, err := s.partnerRepo.GetByID(txCtx, order.PartnerID)
		if err != nil {
			return fmt.Errorf("get partner: %w", err)
		}
		if partner == nil {
			return apperr.NotFound("partner", order.PartnerID)
		}

		if order.TeamID != nil {
			if _, err := s.selectableTeam(txCtx, company, *order.TeamID, actor); err != nil {
				return err
			}
		}

		if err := s.orderRepo.Create(txCtx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if order.Name == "" {
			order.Name = fmt.Sprintf("P%05d", order.ID)
			if err := s.orderRepo.Update(txCtx, order); err != nil {
				return fmt.Errorf("name order: %w", err)
			}
		}

		return s.recordHistory(txCtx, order, actor, "", entity.ActionCreate, "Purchase order created")
	})
	if err != nil {
		s.logger.Error("Failed to create order", "error", err, "company_id", order.CompanyID)
		return err
	}

	s.logger.Info("Order created", "id", order.ID, "name", order.Name, "team_id", order.TeamID)
	return nil
}

// GetOrder retrieves an order with its route
func (s *approvalServiceImpl) GetOrder(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	order, err := s.loadOrder(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get order", "error", err, "id", id)
		return nil, err
	}
	return order, nil
}

// SetOrderTeam assigns or clears the order's team. The current route is
// discarded when the team changes.
func (s *approvalServiceImpl) SetOrderTeam(ctx context.Context, orderID int64, teamID *int64, actor access.Actor) (*entity.PurchaseOrder, error) {
	var order *entity.PurchaseOrder
	err := s.uow.run(ctx, func(txCtx context.Context) error {
		var err error
		if order, err = s.loadOrder(txCtx, orderID); err != nil {
			return err
		}
		if !order.State.IsEditable() {
			return apperr.PolicyViolation("The team of purchase order %s can only be changed in draft or sent state", order.Name)
		}
		if sameTeam(order.TeamID, teamID) {
			return nil
		}

		if teamID != nil {
			company, err := s.companyRepo.GetByID(txCtx, order.CompanyID)
			if err != nil {
				return fmt.Errorf("get company: %w", err)
			}
			if company == nil {
				return apperr.NotFound("company", order.CompanyID)
			}
			if _, err := s.selectableTeam(txCtx, company, *teamID, actor); err != nil {
				return err
			}
		}

		if err := s.approverRepo.DeleteByOrder(txCtx, order.ID); err != nil {
			return fmt.Errorf("delete route: %w", err)
		}
		order.Approvers = nil
		order.TeamID = teamID

		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return s.recordHistory(txCtx, order, actor, order.State, entity.ActionTeamChange, teamDetail(teamID))
	})
	if err != nil {
		s.logger.Error("Failed to set order team", "error", err, "order_id", orderID)
		return nil, err
	}
	return order, nil
}

// UpdateAmountTotal changes the order total, subject to the amount lock.
// Writing the stored value again is not a change and is always allowed.
func (s *approvalServiceImpl) UpdateAmountTotal(ctx context.Context, orderID int64, amount decimal.Decimal, actor access.Actor) (*entity.PurchaseOrder, error) {
	if amount.IsNegative() {
		return nil, apperr.Validation("Amount total must not be negative")
	}

	var order *entity.PurchaseOrder
	err := s.uow.run(ctx, func(txCtx context.Context) error {
		var err error
		if order, err = s.loadOrder(txCtx, orderID); err != nil {
			return err
		}
		if order.AmountTotal.Equal(amount) {
			return nil
		}

		team, err := s.orderTeam(txCtx, order)
		if err != nil {
			return err
		}
		if err := CheckLock(order, team); err != nil {
			return err
		}

		previous := order.AmountTotal
		order.AmountTotal = amount
		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return s.recordHistory(txCtx, order, actor, order.State, entity.ActionAmountChange,
			fmt.Sprintf("%s -> %s", previous.String(), amount.String()))
	})
	if err != nil {
		s.logger.Error("Failed to update amount total", "error", err, "order_id", orderID)
		return nil, err
	}
	return order, nil
}

// RegenerateRoute rebuilds the route of a draft or sent order
func (s *approvalServiceImpl) RegenerateRoute(ctx context.Context, orderID int64, actor access.Actor) (*entity.PurchaseOrder, error) {
	var order *entity.PurchaseOrder
	err := s.uow.run(ctx, func(txCtx context.Context) error {
		var err error
		if order, err = s.loadOrder(txCtx, orderID); err != nil {
			return err
		}
		if !order.State.IsEditable() {
			return apperr.PolicyViolation("The approval route of purchase order %s can only be regenerated in draft or sent state", order.Name)
		}
		return s.generateRoute(txCtx, order, actor)
	})
	if err != nil {
		s.logger.Error("Failed to regenerate route", "error", err, "order_id", orderID)
		return nil, err
	}
	return order, nil
}

// Confirm confirms a draft or sent order. Orders without a team are approved
// at once. Otherwise the route is generated and the first approver is asked
// to approve; a route without approvers approves the order at once. Orders
// in any other state are left untouched.
func (s *approvalServiceImpl) Confirm(ctx context.Context, orderID int64, actor access.Actor) (*entity.PurchaseOrder, error) {
	var order *entity.PurchaseOrder
	err := s.uow.run(ctx, func(txCtx context.Context) error {
		var err error
		if order, err = s.loadOrder(txCtx, orderID); err != nil {
			return err
		}
		if !workflow.NewOrderMachine(workflow.State(order.State)).CanFire(workflow.TriggerRoute) {
			s.logger.Info("Confirm skipped", "order_id", order.ID, "state", order.State)
			return nil
		}

		if !order.HasTeam() {
			if err := s.checkTeamRequired(txCtx, order); err != nil {
				return err
			}
			if err := s.nativeApprove(txCtx, order, actor, true); err != nil {
				return err
			}
		} else {
			if err := s.generateRoute(txCtx, order, actor); err != nil {
				return err
			}
			if order.NextApprover() != nil {
				if err := s.transitionOrder(txCtx, order, actor, workflow.TriggerRoute, entity.ActionConfirm, "Sent to approval route"); err != nil {
					return err
				}
				if err := s.sendToApprove(txCtx, order, actor); err != nil {
					return err
				}
			} else if err := s.nativeApprove(txCtx, order, actor, true); err != nil {
				return err
			}
		}

		if err := s.subscribe(txCtx, order, order.PartnerID); err != nil {
			return err
		}

		publish(txCtx, event.NewEvent(event.TypeOrderConfirmed, order.ID, map[string]interface{}{
			event.KeyActorID: actor.UserID,
			event.KeyCount:   len(order.Approvers),
		}))
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to confirm order", "error", err, "order_id", orderID)
		return nil, err
	}

	s.logger.Info("Order confirmed", "order_id", order.ID, "state", order.State, "approvers", len(order.Approvers))
	return order, nil
}

// SendToApprove asks the next approver of the route to approve. The order
// must be waiting for approval.
func (s *approvalServiceImpl) SendToApprove(ctx context.Context, orderID int64, actor access.Actor) (*entity.PurchaseOrder, error) {
	var order *entity.PurchaseOrder
	err := s.uow.run(ctx, func(txCtx context.Context) error {
		var err error
		if order, err = s.loadOrder(txCtx, orderID); err != nil {
			return err
		}
		if order.State != entity.OrderStateToApprove {
			return apperr.PolicyViolation("Purchase order %s is not waiting for approval (state %s)", order.Name, order.State)
		}
		return s.sendToApprove(txCtx, order, actor)
	})
	if err != nil {
		s.logger.Error("Failed to send order to approve", "error", err, "order_id", orderID)
		return nil, err
	}
	return order, nil
}

// Approve records the actor's approval as the current approver. Orders
// without a team follow the native approval. A call by anyone other than
// the current approver or a superuser changes nothing, and so does a call
// on a routed order that is not waiting for approval.
func (s *approvalServiceImpl) Approve(ctx context.Context, orderID int64, actor access.Actor, force bool) (*entity.PurchaseOrder, error) {
	var order *entity.PurchaseOrder
	err := s.uow.run(ctx, func(txCtx context.Context) error {
		var err error
		if order, err = s.loadOrder(txCtx, orderID); err != nil {
			return err
		}

		if !order.HasTeam() {
			return s.nativeApprove(txCtx, order, actor, force)
		}

		if order.State != entity.OrderStateToApprove {
			s.logger.Info("Approve ignored, order is not waiting for approval", "order_id", order.ID, "state", order.State)
			return nil
		}
		current := order.CurrentApprover()
		if current == nil {
			s.logger.Info("Approve ignored, no current approver", "order_id", order.ID)
			return nil
		}
		if !actor.Is(current.UserID) && !actor.Superuser {
			s.logger.Info("Approve ignored, actor is not the current approver",
				"order_id", order.ID,
				"user_id", actor.UserID,
				"approver_user_id", current.UserID,
			)
			return nil
		}

		if err := s.transitionApprover(txCtx, actor, current, workflow.TriggerApprove); err != nil {
			return err
		}
		if err := s.recordHistory(txCtx, order, actor, order.State, entity.ActionApprove,
			fmt.Sprintf("Approver %d (%s) approved", current.ID, current.Role)); err != nil {
			return err
		}
		if _, err := s.notifications.PostNote(txCtx, order.ID, actor.UserID, fmt.Sprintf("PO approved by %s", actor.Name)); err != nil {
			return err
		}
		publish(txCtx, event.NewEvent(event.TypeApproverApproved, order.ID, map[string]interface{}{
			event.KeyApproverID: current.ID,
			event.KeyActorID:    actor.UserID,
		}))

		if order.NextApprover() != nil {
			return s.sendToApprove(txCtx, order, actor)
		}

		owner, err := s.user(txCtx, order.OwnerID())
		if err != nil {
			return err
		}
		if err := s.notifications.Notify(txCtx, &entity.Message{
			OrderID:      order.ID,
			AuthorID:     actor.UserID,
			Template:     entity.TemplateOrderApproval,
			Subject:      fmt.Sprintf("PO Approved: %s", order.Name),
			Body:         fmt.Sprintf("Purchase order %s has been approved.", order.Name),
			RecipientIDs: []int64{owner.PartnerID},
		}); err != nil {
			return err
		}
		return s.nativeApprove(txCtx, order, actor, force)
	})
	if err != nil {
		s.logger.Error("Failed to approve order", "error", err, "order_id", orderID)
		return nil, err
	}
	return order, nil
}

// Reject records the current approver's rejection and cancels the order.
// Unlike Approve, an unauthorized call is reported.
func (s *approvalServiceImpl) Reject(ctx context.Context, orderID int64, actor access.Actor, reason string) (*entity.PurchaseOrder, error) {
	reason = strings.TrimSpace(reason)

	var order *entity.PurchaseOrder
	err := s.uow.run(ctx, func(txCtx context.Context) error {
		var err error
		if order, err = s.loadOrder(txCtx, orderID); err != nil {
			return err
		}

		current := order.CurrentApprover()
		if order.State != entity.OrderStateToApprove || current == nil {
			return apperr.PolicyViolation("Purchase order %s has no pending approval to reject", order.Name)
		}
		if !actor.Is(current.UserID) && !actor.Superuser {
			name, err := s.userName(txCtx, current.UserID)
			if err != nil {
				return err
			}
			return apperr.PolicyViolation("Purchase order %s can only be rejected by %s", order.Name, name)
		}

		if err := s.transitionApprover(txCtx, actor, current, workflow.TriggerReject); err != nil {
			return err
		}

		note := fmt.Sprintf("PO rejected by %s", actor.Name)
		if reason != "" {
			note = fmt.Sprintf("%s: %s", note, reason)
		}
		if _, err := s.notifications.PostNote(txCtx, order.ID, actor.UserID, note); err != nil {
			return err
		}
		if err := s.transitionOrder(txCtx, order, actor, workflow.TriggerCancel, entity.ActionReject, note); err != nil {
			return err
		}

		owner, err := s.user(txCtx, order.OwnerID())
		if err != nil {
			return err
		}
		if err := s.notifications.Notify(txCtx, &entity.Message{
			OrderID:      order.ID,
			AuthorID:     actor.UserID,
			Template:     entity.TemplateOrderRejected,
			Subject:      fmt.Sprintf("PO Rejected: %s", order.Name),
			Body:         note,
			RecipientIDs: []int64{owner.PartnerID},
		}); err != nil {
			return err
		}

		publish(txCtx, event.NewEvent(event.TypeApproverRejected, order.ID, map[string]interface{}{
			event.KeyApproverID: current.ID,
			event.KeyActorID:    actor.UserID,
		}))
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to reject order", "error", err, "order_id", orderID)
		return nil, err
	}
	return order, nil
}

// Cancel cancels an order that is not done
func (s *approvalServiceImpl) Cancel(ctx context.Context, orderID int64, actor access.Actor) (*entity.PurchaseOrder, error) {
	return s.simpleTransition(ctx, orderID, actor, workflow.TriggerCancel, entity.ActionCancel, func(txCtx context.Context, order *entity.PurchaseOrder) {
		publish(txCtx, event.NewEvent(event.TypeOrderCancelled, order.ID, map[string]interface{}{
			event.KeyActorID: actor.UserID,
		}))
	})
}

// ResetToDraft moves a cancelled order back to draft
func (s *approvalServiceImpl) ResetToDraft(ctx context.Context, orderID int64, actor access.Actor) (*entity.PurchaseOrder, error) {
	return s.simpleTransition(ctx, orderID, actor, workflow.TriggerResetDraft, entity.ActionResetDraft, nil)
}

// Lock marks an approved order as done
func (s *approvalServiceImpl) Lock(ctx context.Context, orderID int64, actor access.Actor) (*entity.PurchaseOrder, error) {
	return s.simpleTransition(ctx, orderID, actor, workflow.TriggerLock, entity.ActionLock, nil)
}

// History returns the order's audit trail
func (s *approvalServiceImpl) History(ctx context.Context, orderID int64) ([]*entity.OrderHistory, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to get order", "error", err, "id", orderID)
		return nil, err
	}
	if order == nil {
		return nil, apperr.NotFound("purchase order", orderID)
	}

	history, err := s.historyRepo.ListByOrder(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to list history", "error", err, "order_id", orderID)
		return nil, err
	}
	return history, nil
}

func (s *approvalServiceImpl) simpleTransition(
	ctx context.Context,
	orderID int64,
	actor access.Actor,
	trigger workflow.Trigger,
	action string,
	after func(txCtx context.Context, order *entity.PurchaseOrder),
) (*entity.PurchaseOrder, error) {
	var order *entity.PurchaseOrder
	err := s.uow.run(ctx, func(txCtx context.Context) error {
		var err error
		if order, err = s.loadOrder(txCtx, orderID); err != nil {
			return err
		}
		if err := s.transitionOrder(txCtx, order, actor, trigger, action, ""); err != nil {
			return err
		}
		if after != nil {
			after(txCtx, order)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to transition order", "error", err, "order_id", orderID, "trigger", trigger)
		return nil, err
	}

	s.logger.Info("Order transitioned", "order_id", order.ID, "trigger", trigger, "state", order.State)
	return order, nil
}

// sendToApprove moves the next approver to pending and notifies it on
// behalf of the order owner. Only the state write runs elevated.
func (s *approvalServiceImpl) sendToApprove(ctx context.Context, order *entity.PurchaseOrder, actor access.Actor) error {
	const unable = "Unable to send approval request to next approver."
	if current := order.CurrentApprover(); current != nil {
		name, err := s.userName(ctx, current.UserID)
		if err != nil {
			return err
		}
		return apperr.PolicyViolation("%s The order must be approved by %s", unable, name)
	}
	next := order.NextApprover()
	if next == nil {
		return apperr.PolicyViolation("%s There are no approvers in the selected PO team.", unable)
	}

	if err := s.transitionApprover(ctx, actor, next, workflow.TriggerRequest); err != nil {
		return err
	}

	approverUser, err := s.user(ctx, next.UserID)
	if err != nil {
		return err
	}
	if err := s.subscribe(ctx, order, approverUser.PartnerID); err != nil {
		return err
	}

	if err := s.notifications.Notify(ctx, &entity.Message{
		OrderID:  order.ID,
		AuthorID: order.OwnerID(),
		Template: entity.TemplateRequestToApprove,
		Subject:  fmt.Sprintf("PO Approval: %s", order.Name),
		Body: fmt.Sprintf("Purchase order %s (%s %s) is waiting for your approval as %s.",
			order.Name, order.AmountTotal.StringFixed(2), order.CurrencyCode, next.Role),
		RecipientIDs: []int64{approverUser.PartnerID},
	}); err != nil {
		return err
	}

	if err := s.recordHistory(ctx, order, actor, order.State, entity.ActionRequestApprove,
		fmt.Sprintf("Approval requested from %s", approverUser.Name)); err != nil {
		return err
	}

	publish(ctx, event.NewEvent(event.TypeApprovalRequested, order.ID, map[string]interface{}{
		event.KeyApproverID: next.ID,
		event.KeyUserID:     next.UserID,
	}))
	return nil
}

// nativeApprove is the approval of an order outside any route: it moves the
// order to purchase and stamps the approval date. Without force the order
// must have been confirmed first.
func (s *approvalServiceImpl) nativeApprove(ctx context.Context, order *entity.PurchaseOrder, actor access.Actor, force bool) error {
	if !force && order.State != entity.OrderStateToApprove {
		return apperr.PolicyViolation("Purchase order %s must be confirmed before it can be approved", order.Name)
	}

	approvedAt := now()
	order.DateApprove = &approvedAt
	if err := s.transitionOrder(ctx, order, actor, workflow.TriggerApprove, entity.ActionApprove, "Purchase order approved"); err != nil {
		return err
	}

	publish(ctx, event.NewEvent(event.TypeOrderApproved, order.ID, map[string]interface{}{
		event.KeyActorID: actor.UserID,
	}))
	return nil
}

func (s *approvalServiceImpl) generateRoute(ctx context.Context, order *entity.PurchaseOrder, actor access.Actor) error {
	if !order.HasTeam() {
		return apperr.Validation("Purchase order %s has no approval team", order.Name)
	}

	approvers, err := s.generator.Generate(ctx, order, actor)
	if err != nil {
		return err
	}

	if err := s.recordHistory(ctx, order, actor, order.State, entity.ActionGenerateRoute,
		fmt.Sprintf("%d approvers", len(approvers))); err != nil {
		return err
	}

	publish(ctx, event.NewEvent(event.TypeRouteGenerated, order.ID, map[string]interface{}{
		event.KeyCount: len(approvers),
	}))
	return nil
}

func (s *approvalServiceImpl) transitionOrder(
	ctx context.Context,
	order *entity.PurchaseOrder,
	actor access.Actor,
	trigger workflow.Trigger,
	action, detail string,
) error {
	previous := order.State

	m := workflow.NewOrderMachine(workflow.State(order.State))
	if err := m.Fire(trigger); err != nil {
		return apperr.Wrap(apperr.KindPolicyViolation, err,
			"Purchase order %s cannot be processed (%s) in state %s", order.Name, trigger, order.State)
	}
	order.State = entity.OrderState(m.State())

	if err := s.orderRepo.Update(ctx, order); err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return s.recordHistory(ctx, order, actor, previous, action, detail)
}

// transitionApprover validates and persists an approver state change. The
// write is the one privileged operation of the route.
func (s *approvalServiceImpl) transitionApprover(ctx context.Context, actor access.Actor, approver *entity.OrderApprover, trigger workflow.Trigger) error {
	m := workflow.NewApproverMachine(workflow.State(approver.State))
	if err := m.Fire(trigger); err != nil {
		return fmt.Errorf("approver %d: %w", approver.ID, err)
	}
	next := entity.ApproverState(m.State())

	if err := s.approverRepo.UpdateState(ctx, actor.Elevate(access.ScopeApproverState), approver.ID, next); err != nil {
		return fmt.Errorf("update approver state: %w", err)
	}
	approver.State = next
	return nil
}

func (s *approvalServiceImpl) subscribe(ctx context.Context, order *entity.PurchaseOrder, partnerID int64) error {
	if partnerID == 0 || order.HasFollower(partnerID) {
		return nil
	}
	if err := s.orderRepo.AddFollower(ctx, order.ID, partnerID); err != nil {
		return fmt.Errorf("add follower: %w", err)
	}
	order.FollowerIDs = append(order.FollowerIDs, partnerID)
	return nil
}

func (s *approvalServiceImpl) recordHistory(
	ctx context.Context,
	order *entity.PurchaseOrder,
	actor access.Actor,
	previous entity.OrderState,
	action, detail string,
) error {
	history := &entity.OrderHistory{
		OrderID:       order.ID,
		ActorUserID:   actor.UserID,
		PreviousState: string(previous),
		NewState:      string(order.State),
		ActionType:    action,
		ActionData:    detail,
		Timestamp:     now(),
	}
	if err := s.historyRepo.Create(ctx, history); err != nil {
		return fmt.Errorf("create history: %w", err)
	}
	return nil
}

// loadOrder returns the order with its route in (sequence, id) order
func (s *approvalServiceImpl) loadOrder(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, apperr.NotFound("purchase order", id)
	}

	if order.Approvers, err = s.approverRepo.ListByOrder(ctx, id); err != nil {
		return nil, fmt.Errorf("list approvers: %w", err)
	}
	entity.SortApprovers(order.Approvers)
	return order, nil
}

func (s *approvalServiceImpl) orderTeam(ctx context.Context, order *entity.PurchaseOrder) (*entity.Team, error) {
	if !order.HasTeam() {
		return nil, nil
	}
	team, err := s.teamRepo.GetByID(ctx, *order.TeamID)
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	return team, nil
}

// selectableTeam loads a team the actor may assign to an order of company
func (s *approvalServiceImpl) selectableTeam(ctx context.Context, company *entity.Company, teamID int64, actor access.Actor) (*entity.Team, error) {
	if !company.ApprovalRouteEnabled() {
		return nil, apperr.Configuration("Approval Route functionality is disabled for the company %s", company.Name)
	}

	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	if team == nil {
		return nil, apperr.NotFound("team", teamID)
	}
	if team.CompanyID != company.ID {
		return nil, apperr.Validation("Team %s belongs to another company", team.Name)
	}
	if !team.SelectableBy(actor.UserID) {
		return nil, apperr.Forbidden("You are not allowed to select team %s", team.Name)
	}
	return team, nil
}

func (s *approvalServiceImpl) checkTeamRequired(ctx context.Context, order *entity.PurchaseOrder) error {
	company, err := s.companyRepo.GetByID(ctx, order.CompanyID)
	if err != nil {
		return fmt.Errorf("get company: %w", err)
	}
	if company != nil && company.ApprovalRoute == entity.ApprovalRouteRequired {
		return apperr.PolicyViolation("A purchase team is required to confirm purchase orders of the company %s", company.Name)
	}
	return nil
}

func (s *approvalServiceImpl) user(ctx context.Context, id int64) (*entity.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user", id)
	}
	return user, nil
}

func (s *approvalServiceImpl) userName(ctx context.Context, id int64) (string, error) {
	user, err := s.user(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Name, nil
}

func sameTeam(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func teamDetail(teamID *int64) string {
	if teamID == nil {
		return "Team cleared"
	}
	return fmt.Sprintf("Team set to %d", *teamID)
}
