package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/po-approval-route/internal/domain/entity"
)

// CurrencyConverter converts amounts between currencies at a given date
type CurrencyConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, companyID int64, at time.Time) (decimal.Decimal, error)
}

// ConditionInput is the data a custom condition may read
type ConditionInput struct {
	Order *entity.PurchaseOrder
	User  *entity.User
}

// ConditionEvaluator runs approver rule conditions in a sandbox
type ConditionEvaluator interface {
	// Compile checks that expression is a valid boolean condition
	Compile(expression string) error

	// Evaluate returns the boolean result of expression for input
	Evaluate(ctx context.Context, expression string, input ConditionInput) (bool, error)
}

// ProfileSource yields a job title for a user, or "" when it has none
type ProfileSource interface {
	Name() string
	JobTitle(ctx context.Context, userID int64) (string, error)
}

// MessageSender delivers a persisted notification to one recipient
type MessageSender interface {
	Send(ctx context.Context, recipient *entity.Partner, subject, body string) error
}

// RouteRow is one line of an exported approval route
type RouteRow struct {
	Sequence        int
	Approver        string
	Role            string
	MinAmount       decimal.Decimal
	MaxAmount       decimal.NullDecimal
	LockAmountTotal bool
	State           entity.ApproverState
}

// RouteExporter renders an order's approval route as a spreadsheet
type RouteExporter interface {
	Export(order *entity.PurchaseOrder, rows []RouteRow) ([]byte, error)
}
