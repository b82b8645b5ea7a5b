package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/po-approval-route/internal/application/port"
	"github.com/garyjia/po-approval-route/internal/domain/access"
	"github.com/garyjia/po-approval-route/internal/domain/apperr"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
)

// RouteGenerator materializes an order's approval route from its team's rules
type RouteGenerator interface {
	// Generate discards the order's current route and builds a new one. It
	// must run inside the caller's transaction so a failure restores the
	// previous route.
	Generate(ctx context.Context, order *entity.PurchaseOrder, actor access.Actor) ([]*entity.OrderApprover, error)
}

type routeGeneratorImpl struct {
	ruleRepo     port.ApproverRuleRepository
	approverRepo port.OrderApproverRepository
	companyRepo  port.CompanyRepository
	userRepo     port.UserRepository
	converter    port.CurrencyConverter
	evaluator    port.ConditionEvaluator
	logger       Logger
}

// NewRouteGenerator creates a new RouteGenerator
func NewRouteGenerator(
	ruleRepo port.ApproverRuleRepository,
	approverRepo port.OrderApproverRepository,
	companyRepo port.CompanyRepository,
	userRepo port.UserRepository,
	converter port.CurrencyConverter,
	evaluator port.ConditionEvaluator,
	logger Logger,
) RouteGenerator {
	return &routeGeneratorImpl{
		ruleRepo:     ruleRepo,
		approverRepo: approverRepo,
		companyRepo:  companyRepo,
		userRepo:     userRepo,
		converter:    converter,
		evaluator:    evaluator,
		logger:       logger,
	}
}

// Generate builds the route of an order that has a team. Rules are matched
// in (sequence, id) order; the amount band is inclusive on both ends and an
// unset maximum has no upper bound.
func (g *routeGeneratorImpl) Generate(ctx context.Context, order *entity.PurchaseOrder, actor access.Actor) ([]*entity.OrderApprover, error) {
	if !order.HasTeam() {
		return nil, apperr.Validation("Purchase order %s has no approval team", order.Name)
	}

	if err := g.approverRepo.DeleteByOrder(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("delete route: %w", err)
	}
	order.Approvers = nil

	rules, err := g.ruleRepo.ListByTeam(ctx, *order.TeamID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	entity.SortRules(rules)

	company, err := g.companyRepo.GetByID(ctx, order.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if company == nil {
		return nil, apperr.NotFound("company", order.CompanyID)
	}

	user, err := g.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		user = &entity.User{ID: actor.UserID, Name: actor.Name, Superuser: actor.Superuser}
	}
	input := port.ConditionInput{Order: order, User: user}

	at := now()
	if order.DateOrder != nil {
		at = *order.DateOrder
	}

	for _, rule := range rules {
		matched, err := g.matches(ctx, rule, order, company, input, at)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}

		approver := entity.NewOrderApprover(order.ID, rule)
		if err := g.approverRepo.Create(ctx, approver); err != nil {
			return nil, fmt.Errorf("create order approver: %w", err)
		}
		order.Approvers = append(order.Approvers, approver)
	}

	g.logger.Info("Approval route generated",
		"order_id", order.ID,
		"team_id", *order.TeamID,
		"rules", len(rules),
		"approvers", len(order.Approvers),
	)
	return order.Approvers, nil
}

func (g *routeGeneratorImpl) matches(
	ctx context.Context,
	rule *entity.ApproverRule,
	order *entity.PurchaseOrder,
	company *entity.Company,
	input port.ConditionInput,
	at time.Time,
) (bool, error) {
	if rule.HasCondition() {
		ok, err := g.evaluator.Evaluate(ctx, rule.CustomCondition, input)
		if err != nil {
			return false, apperr.Wrap(apperr.KindPolicyViolation, err,
				"Wrong condition code defined for %s. Error: %v", ruleLabel(rule), err)
		}
		if !ok {
			return false, nil
		}
	}

	minAmount, err := g.convert(ctx, rule.MinAmount, company, order, at)
	if err != nil {
		return false, err
	}
	if order.AmountTotal.LessThan(minAmount) {
		return false, nil
	}

	if rule.MaxAmount.Valid {
		maxAmount, err := g.convert(ctx, rule.MaxAmount.Decimal, company, order, at)
		if err != nil {
			return false, err
		}
		if maxAmount.LessThan(order.AmountTotal) {
			return false, nil
		}
	}
	return true, nil
}

func (g *routeGeneratorImpl) convert(ctx context.Context, amount decimal.Decimal, company *entity.Company, order *entity.PurchaseOrder, at time.Time) (decimal.Decimal, error) {
	converted, err := g.converter.Convert(ctx, amount, company.CurrencyCode, order.CurrencyCode, company.ID, at)
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert %s %s to %s: %w", amount.String(), company.CurrencyCode, order.CurrencyCode, err)
	}
	return converted, nil
}

func ruleLabel(rule *entity.ApproverRule) string {
	return fmt.Sprintf("approver rule %d (%s)", rule.ID, rule.Role)
}
