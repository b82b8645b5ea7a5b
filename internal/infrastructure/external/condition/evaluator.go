// Package condition evaluates approver rule conditions with expr, a
// side-effect free expression language.
//
// A condition sees two variables, order and user:
//
//	order.AmountTotal >= 1000 and order.CurrencyCode == "EUR"
//	user.Login != "ceo"
package condition

import (
	"context"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/garyjia/po-approval-route/internal/application/port"
)

// OrderView is the read-only projection of a purchase order
type OrderView struct {
	ID           int64
	Name         string
	State        string
	CompanyID    int64
	PartnerID    int64
	UserID       int64
	TeamID       int64
	CurrencyCode string
	AmountTotal  float64
}

// UserView is the read-only projection of the acting user
type UserView struct {
	ID        int64
	Login     string
	Name      string
	CompanyID int64
	Superuser bool
}

// Evaluator implements port.ConditionEvaluator. Compiled programs are
// cached per expression.
type Evaluator struct {
	programs sync.Map
}

// NewEvaluator creates a condition evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

func typeEnv() map[string]interface{} {
	return map[string]interface{}{
		"order": OrderView{},
		"user":  UserView{},
	}
}

// Compile checks expression against the condition environment and
// requires a boolean result
func (e *Evaluator) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

// Evaluate runs expression for the given order and user
func (e *Evaluator) Evaluate(ctx context.Context, expression string, input port.ConditionInput) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	program, err := e.program(expression)
	if err != nil {
		return false, err
	}

	out, err := expr.Run(program, env(input))
	if err != nil {
		return false, err
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition returned %T, expected bool", out)
	}
	return result, nil
}

func (e *Evaluator) program(expression string) (*vm.Program, error) {
	if cached, ok := e.programs.Load(expression); ok {
		return cached.(*vm.Program), nil
	}

	program, err := expr.Compile(expression, expr.Env(typeEnv()), expr.AsBool())
	if err != nil {
		return nil, err
	}

	e.programs.Store(expression, program)
	return program, nil
}

func env(input port.ConditionInput) map[string]interface{} {
	order := OrderView{}
	if o := input.Order; o != nil {
		order = OrderView{
			ID:           o.ID,
			Name:         o.Name,
			State:        string(o.State),
			CompanyID:    o.CompanyID,
			PartnerID:    o.PartnerID,
			UserID:       o.OwnerID(),
			CurrencyCode: o.CurrencyCode,
			AmountTotal:  o.AmountTotal.InexactFloat64(),
		}
		if o.TeamID != nil {
			order.TeamID = *o.TeamID
		}
	}

	user := UserView{}
	if u := input.User; u != nil {
		user = UserView{
			ID:        u.ID,
			Login:     u.Login,
			Name:      u.Name,
			CompanyID: u.CompanyID,
			Superuser: u.Superuser,
		}
	}

	return map[string]interface{}{
		"order": order,
		"user":  user,
	}
}

var _ port.ConditionEvaluator = (*Evaluator)(nil)
