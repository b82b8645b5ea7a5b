package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/po-approval-route/internal/application/dispatcher"
	"github.com/garyjia/po-approval-route/internal/application/port"
	"github.com/garyjia/po-approval-route/internal/domain/access"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
)

type fakeExporter struct {
	rows []port.RouteRow
}

func (e *fakeExporter) Export(order *entity.PurchaseOrder, rows []port.RouteRow) ([]byte, error) {
	e.rows = rows
	return []byte("xlsx:" + order.Name), nil
}

type fixture struct {
	store     *memStore
	tx        *snapshotTxManager
	evaluator *fakeEvaluator
	sender    *fakeSender
	exporter  *fakeExporter

	directory     DirectoryService
	teams         TeamService
	notifications NotificationService
	approvals     ApprovalService
	exports       ExportService

	company *entity.Company
	vendor  *entity.Partner
	owner   *entity.User
	alice   *entity.User
	bob     *entity.User
	carol   *entity.User
	admin   *entity.User
}

// newFixture wires the services over an in-memory store. d may be nil.
func newFixture(t *testing.T, d dispatcher.Dispatcher) *fixture {
	t.Helper()

	store := newMemStore()
	tx := &snapshotTxManager{store: store}
	logger := &mockLogger{}

	companies := fakeCompanyRepo{store}
	partners := fakePartnerRepo{store}
	users := fakeUserRepo{store}
	employees := fakeEmployeeRepo{store}
	teamRepo := fakeTeamRepo{store}
	rules := fakeRuleRepo{store}
	orders := fakeOrderRepo{store}
	approvers := fakeApproverRepo{store}
	messages := fakeMessageRepo{store}
	history := fakeHistoryRepo{store}

	f := &fixture{
		store:     store,
		tx:        tx,
		evaluator: &fakeEvaluator{results: map[string]bool{}, evalErrs: map[string]error{}, compileErrs: map[string]error{}},
		sender:    &fakeSender{},
		exporter:  &fakeExporter{},
	}

	converter := fakeConverter{rates: map[string]decimal.Decimal{
		"USD": decimal.NewFromInt(1),
		"EUR": decimal.RequireFromString("0.5"),
	}}
	profiles := []port.ProfileSource{
		NewEmployeeProfileSource(employees),
		NewPartnerProfileSource(users, partners),
	}

	f.directory = NewDirectoryService(companies, partners, users, employees, fakeCurrencyRepo{store}, tx, logger)
	f.teams = NewTeamService(teamRepo, rules, companies, users, orders, f.evaluator, profiles, tx, logger)
	f.notifications = NewNotificationService(messages, partners, f.sender, logger)
	generator := NewRouteGenerator(rules, approvers, companies, users, converter, f.evaluator, logger)
	f.approvals = NewApprovalService(orders, approvers, teamRepo, companies, partners, users, history,
		generator, f.notifications, tx, d, logger)
	f.exports = NewExportService(orders, approvers, users, f.exporter, logger)

	if d != nil {
		f.notifications.Register(d)
	}

	ctx := context.Background()
	f.company = &entity.Company{Name: "Acme", CurrencyCode: "USD", ApprovalRoute: entity.ApprovalRouteOptional}
	require.NoError(t, f.directory.CreateCompany(ctx, f.company))

	f.vendor = &entity.Partner{Name: "Vendor Ltd", Email: "sales@vendor.test"}
	require.NoError(t, f.directory.CreatePartner(ctx, f.vendor))

	f.owner = f.newUser(t, "owner", "Olivia Owner", false)
	f.alice = f.newUser(t, "alice", "Alice", false)
	f.bob = f.newUser(t, "bob", "Bob", false)
	f.carol = f.newUser(t, "carol", "Carol", false)
	f.admin = f.newUser(t, "admin", "Administrator", true)

	return f
}

func (f *fixture) newUser(t *testing.T, login, name string, superuser bool) *entity.User {
	t.Helper()
	user := &entity.User{Login: login, Name: name, CompanyID: f.company.ID, Superuser: superuser}
	require.NoError(t, f.directory.CreateUser(context.Background(), user))
	return user
}

func (f *fixture) actor(u *entity.User) access.Actor {
	return access.FromUser(u)
}

func (f *fixture) newTeam(t *testing.T, lock bool, rules ...*entity.ApproverRule) *entity.Team {
	t.Helper()
	team := &entity.Team{
		Name:            "Purchasing",
		LeaderID:        f.owner.ID,
		CompanyID:       f.company.ID,
		LockAmountTotal: lock,
		Rules:           rules,
	}
	require.NoError(t, f.teams.CreateTeam(context.Background(), team))
	return team
}

func (f *fixture) newOrder(t *testing.T, amount string, team *entity.Team) *entity.PurchaseOrder {
	t.Helper()
	order := &entity.PurchaseOrder{
		CompanyID:   f.company.ID,
		PartnerID:   f.vendor.ID,
		AmountTotal: decimal.RequireFromString(amount),
	}
	if team != nil {
		order.TeamID = &team.ID
	}
	require.NoError(t, f.approvals.CreateOrder(context.Background(), order, f.actor(f.owner)))
	return order
}

func (f *fixture) pendingCount(orderID int64) int {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	count := 0
	for _, a := range f.store.approvers {
		if a.OrderID == orderID && a.State == entity.ApproverStatePending {
			count++
		}
	}
	return count
}

// rule builds an approver rule; an empty max leaves the band open
func rule(user *entity.User, sequence int, min, max string) *entity.ApproverRule {
	r := &entity.ApproverRule{
		Sequence:  sequence,
		UserID:    user.ID,
		Role:      user.Name + " approval",
		MinAmount: decimal.RequireFromString(min),
	}
	if max != "" {
		r.MaxAmount = decimal.NewNullDecimal(decimal.RequireFromString(max))
	}
	return r
}

func notificationsOf(messages []*entity.Message) []*entity.Message {
	var out []*entity.Message
	for _, m := range messages {
		if m.Kind == entity.MessageKindNotification {
			out = append(out, m)
		}
	}
	return out
}
