package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/po-approval-route/internal/domain/access"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
)

// Lookups return (nil, nil) when the record does not exist.

// ErrNotElevated is returned when an approver state write lacks a grant
var ErrNotElevated = errors.New("approver state write requires elevation")

// CompanyRepository defines persistence operations for Company
type CompanyRepository interface {
	Create(ctx context.Context, company *entity.Company) error
	GetByID(ctx context.Context, id int64) (*entity.Company, error)
	UpdateApprovalRoute(ctx context.Context, id int64, mode entity.ApprovalRouteMode) error
}

// PartnerRepository defines persistence operations for Partner
type PartnerRepository interface {
	Create(ctx context.Context, partner *entity.Partner) error
	GetByID(ctx context.Context, id int64) (*entity.Partner, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
}

// EmployeeRepository defines persistence operations for Employee
type EmployeeRepository interface {
	Create(ctx context.Context, employee *entity.Employee) error
	GetByUserID(ctx context.Context, userID int64) (*entity.Employee, error)
}

// TeamRepository defines persistence operations for Team and its members.
// Returned teams carry MemberIDs but not Rules.
type TeamRepository interface {
	Create(ctx context.Context, team *entity.Team) error
	GetByID(ctx context.Context, id int64) (*entity.Team, error)
	Update(ctx context.Context, team *entity.Team) error
	Delete(ctx context.Context, id int64) error
	ListByCompany(ctx context.Context, companyID int64) ([]*entity.Team, error)
	SetMembers(ctx context.Context, teamID int64, userIDs []int64) error
}

// ApproverRuleRepository defines persistence operations for ApproverRule
type ApproverRuleRepository interface {
	Create(ctx context.Context, rule *entity.ApproverRule) error
	GetByID(ctx context.Context, id int64) (*entity.ApproverRule, error)
	Update(ctx context.Context, rule *entity.ApproverRule) error
	Delete(ctx context.Context, id int64) error

	// ListByTeam returns the team's rules ordered by (sequence, id)
	ListByTeam(ctx context.Context, teamID int64) ([]*entity.ApproverRule, error)
}

// OrderRepository defines persistence operations for PurchaseOrder.
// Returned orders carry FollowerIDs but not Approvers.
type OrderRepository interface {
	Create(ctx context.Context, order *entity.PurchaseOrder) error
	GetByID(ctx context.Context, id int64) (*entity.PurchaseOrder, error)
	Update(ctx context.Context, order *entity.PurchaseOrder) error
	AddFollower(ctx context.Context, orderID, partnerID int64) error
	CountByTeam(ctx context.Context, teamID int64) (int, error)
}

// OrderApproverRepository defines persistence operations for OrderApprover
type OrderApproverRepository interface {
	Create(ctx context.Context, approver *entity.OrderApprover) error

	// ListByOrder returns the route ordered by (sequence, id)
	ListByOrder(ctx context.Context, orderID int64) ([]*entity.OrderApprover, error)

	DeleteByOrder(ctx context.Context, orderID int64) error

	// UpdateState writes the approver state. It is the only privileged write
	// of the route and requires a grant for access.ScopeApproverState.
	UpdateState(ctx context.Context, grant access.Grant, id int64, state entity.ApproverState) error
}

// MessageRepository defines persistence operations for Message
type MessageRepository interface {
	Create(ctx context.Context, msg *entity.Message) error
	GetByID(ctx context.Context, id int64) (*entity.Message, error)
	ListByOrder(ctx context.Context, orderID int64) ([]*entity.Message, error)
}

// HistoryRepository defines persistence operations for OrderHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.OrderHistory) error
	ListByOrder(ctx context.Context, orderID int64) ([]*entity.OrderHistory, error)
}

// CurrencyRepository defines persistence operations for currencies and rates
type CurrencyRepository interface {
	SaveCurrency(ctx context.Context, currency *entity.Currency) error
	GetCurrency(ctx context.Context, code string) (*entity.Currency, error)
	CreateRate(ctx context.Context, rate *entity.CurrencyRate) error

	// FindRate returns the latest rate effective at or before at, preferring
	// a company-specific rate over a global one
	FindRate(ctx context.Context, code string, companyID int64, at time.Time) (*entity.CurrencyRate, error)
}

// TransactionManager manages database transactions
type TransactionManager interface {
	// WithTransaction runs fn inside a transaction. Nested calls join the
	// transaction already carried by ctx.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
