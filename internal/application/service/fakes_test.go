package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/po-approval-route/internal/application/port"
	"github.com/garyjia/po-approval-route/internal/domain/access"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
)

// memStore is an in-memory record store shared by the fake repositories.
// Records are copied on the way in and out so that only repository calls
// change stored state.
type memStore struct {
	mu sync.Mutex

	nextID     int64
	companies  map[int64]entity.Company
	partners   map[int64]entity.Partner
	users      map[int64]entity.User
	employees  map[int64]entity.Employee
	teams      map[int64]entity.Team
	rules      map[int64]entity.ApproverRule
	orders     map[int64]entity.PurchaseOrder
	approvers  map[int64]entity.OrderApprover
	messages   map[int64]entity.Message
	history    []entity.OrderHistory
	currencies map[string]entity.Currency
	rates      []entity.CurrencyRate
}

func newMemStore() *memStore {
	return &memStore{
		companies:  make(map[int64]entity.Company),
		partners:   make(map[int64]entity.Partner),
		users:      make(map[int64]entity.User),
		employees:  make(map[int64]entity.Employee),
		teams:      make(map[int64]entity.Team),
		rules:      make(map[int64]entity.ApproverRule),
		orders:     make(map[int64]entity.PurchaseOrder),
		approvers:  make(map[int64]entity.OrderApprover),
		messages:   make(map[int64]entity.Message),
		currencies: make(map[string]entity.Currency),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// snapshot copies the store. Slices inside records are never mutated in
// place, so copying the maps is enough.
func (s *memStore) snapshot() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &memStore{
		nextID:     s.nextID,
		companies:  copyMap(s.companies),
		partners:   copyMap(s.partners),
		users:      copyMap(s.users),
		employees:  copyMap(s.employees),
		teams:      copyMap(s.teams),
		rules:      copyMap(s.rules),
		orders:     copyMap(s.orders),
		approvers:  copyMap(s.approvers),
		messages:   copyMap(s.messages),
		history:    append([]entity.OrderHistory(nil), s.history...),
		currencies: copyMap(s.currencies),
		rates:      append([]entity.CurrencyRate(nil), s.rates...),
	}
}

func (s *memStore) restore(snap *memStore) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID = snap.nextID
	s.companies = snap.companies
	s.partners = snap.partners
	s.users = snap.users
	s.employees = snap.employees
	s.teams = snap.teams
	s.rules = snap.rules
	s.orders = snap.orders
	s.approvers = snap.approvers
	s.messages = snap.messages
	s.history = snap.history
	s.currencies = snap.currencies
	s.rates = snap.rates
}

type txKey struct{}

// snapshotTxManager restores the store when the outermost transaction fails
type snapshotTxManager struct {
	store   *memStore
	commits int
}

func (m *snapshotTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	snap := m.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.store.restore(snap)
		return err
	}
	m.commits++
	return nil
}

type fakeCompanyRepo struct{ s *memStore }

func (r fakeCompanyRepo) Create(ctx context.Context, company *entity.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	company.ID = r.s.id()
	r.s.companies[company.ID] = *company
	return nil
}

func (r fakeCompanyRepo) GetByID(ctx context.Context, id int64) (*entity.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.companies[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r fakeCompanyRepo) UpdateApprovalRoute(ctx context.Context, id int64, mode entity.ApprovalRouteMode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.companies[id]
	c.ApprovalRoute = mode
	r.s.companies[id] = c
	return nil
}

type fakePartnerRepo struct{ s *memStore }

func (r fakePartnerRepo) Create(ctx context.Context, partner *entity.Partner) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	partner.ID = r.s.id()
	r.s.partners[partner.ID] = *partner
	return nil
}

func (r fakePartnerRepo) GetByID(ctx context.Context, id int64) (*entity.Partner, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.partners[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type fakeUserRepo struct{ s *memStore }

func (r fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user.ID = r.s.id()
	r.s.users[user.ID] = *user
	return nil
}

func (r fakeUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

type fakeEmployeeRepo struct{ s *memStore }

func (r fakeEmployeeRepo) Create(ctx context.Context, employee *entity.Employee) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	employee.ID = r.s.id()
	r.s.employees[employee.UserID] = *employee
	return nil
}

func (r fakeEmployeeRepo) GetByUserID(ctx context.Context, userID int64) (*entity.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.employees[userID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

type fakeTeamRepo struct{ s *memStore }

func (r fakeTeamRepo) Create(ctx context.Context, team *entity.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	team.ID = r.s.id()
	stored := *team
	stored.Rules = nil
	stored.MemberIDs = append([]int64(nil), team.MemberIDs...)
	r.s.teams[team.ID] = stored
	return nil
}

func (r fakeTeamRepo) GetByID(ctx context.Context, id int64) (*entity.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[id]
	if !ok {
		return nil, nil
	}
	t.MemberIDs = append([]int64(nil), t.MemberIDs...)
	return &t, nil
}

func (r fakeTeamRepo) Update(ctx context.Context, team *entity.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.teams[team.ID]
	if !ok {
		return errors.New("team not found")
	}
	members := stored.MemberIDs
	stored = *team
	stored.Rules = nil
	stored.MemberIDs = members
	r.s.teams[team.ID] = stored
	return nil
}

func (r fakeTeamRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.TeamID != nil && *o.TeamID == id {
			return errors.New("FOREIGN KEY constraint failed")
		}
	}
	for ruleID, rule := range r.s.rules {
		if rule.TeamID == id {
			delete(r.s.rules, ruleID)
		}
	}
	delete(r.s.teams, id)
	return nil
}

func (r fakeTeamRepo) ListByCompany(ctx context.Context, companyID int64) ([]*entity.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var teams []*entity.Team
	for _, t := range r.s.teams {
		if t.CompanyID == companyID {
			t := t
			teams = append(teams, &t)
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	return teams, nil
}

func (r fakeTeamRepo) SetMembers(ctx context.Context, teamID int64, userIDs []int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := r.s.teams[teamID]
	t.MemberIDs = append([]int64(nil), userIDs...)
	r.s.teams[teamID] = t
	return nil
}

type fakeRuleRepo struct{ s *memStore }

func (r fakeRuleRepo) Create(ctx context.Context, rule *entity.ApproverRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rule.ID = r.s.id()
	r.s.rules[rule.ID] = *rule
	return nil
}

func (r fakeRuleRepo) GetByID(ctx context.Context, id int64) (*entity.ApproverRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rule, ok := r.s.rules[id]
	if !ok {
		return nil, nil
	}
	return &rule, nil
}

func (r fakeRuleRepo) Update(ctx context.Context, rule *entity.ApproverRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.rules[rule.ID] = *rule
	return nil
}

// Delete nulls the source link of materialized approvers
func (r fakeRuleRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.rules, id)
	for approverID, a := range r.s.approvers {
		if a.SourceRuleID != nil && *a.SourceRuleID == id {
			a.SourceRuleID = nil
			r.s.approvers[approverID] = a
		}
	}
	return nil
}

func (r fakeRuleRepo) ListByTeam(ctx context.Context, teamID int64) ([]*entity.ApproverRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rules []*entity.ApproverRule
	for _, rule := range r.s.rules {
		if rule.TeamID == teamID {
			rule := rule
			rules = append(rules, &rule)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	entity.SortRules(rules)
	return rules, nil
}

type fakeOrderRepo struct{ s *memStore }

func (r fakeOrderRepo) Create(ctx context.Context, order *entity.PurchaseOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	order.ID = r.s.id()
	stored := *order
	stored.Approvers = nil
	stored.FollowerIDs = append([]int64(nil), order.FollowerIDs...)
	r.s.orders[order.ID] = stored
	return nil
}

func (r fakeOrderRepo) GetByID(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, nil
	}
	o.FollowerIDs = append([]int64(nil), o.FollowerIDs...)
	return &o, nil
}

func (r fakeOrderRepo) Update(ctx context.Context, order *entity.PurchaseOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.orders[order.ID]
	if !ok {
		return errors.New("order not found")
	}
	followers := stored.FollowerIDs
	stored = *order
	stored.Approvers = nil
	stored.FollowerIDs = followers
	r.s.orders[order.ID] = stored
	return nil
}

func (r fakeOrderRepo) AddFollower(ctx context.Context, orderID, partnerID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o := r.s.orders[orderID]
	for _, id := range o.FollowerIDs {
		if id == partnerID {
			return nil
		}
	}
	o.FollowerIDs = append(append([]int64(nil), o.FollowerIDs...), partnerID)
	r.s.orders[orderID] = o
	return nil
}

func (r fakeOrderRepo) CountByTeam(ctx context.Context, teamID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, o := range r.s.orders {
		if o.TeamID != nil && *o.TeamID == teamID {
			count++
		}
	}
	return count, nil
}

type fakeApproverRepo struct{ s *memStore }

func (r fakeApproverRepo) Create(ctx context.Context, approver *entity.OrderApprover) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	approver.ID = r.s.id()
	r.s.approvers[approver.ID] = *approver
	return nil
}

func (r fakeApproverRepo) ListByOrder(ctx context.Context, orderID int64) ([]*entity.OrderApprover, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var approvers []*entity.OrderApprover
	for _, a := range r.s.approvers {
		if a.OrderID == orderID {
			a := a
			approvers = append(approvers, &a)
		}
	}
	sort.Slice(approvers, func(i, j int) bool { return approvers[i].ID < approvers[j].ID })
	entity.SortApprovers(approvers)
	return approvers, nil
}

func (r fakeApproverRepo) DeleteByOrder(ctx context.Context, orderID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, a := range r.s.approvers {
		if a.OrderID == orderID {
			delete(r.s.approvers, id)
		}
	}
	return nil
}

func (r fakeApproverRepo) UpdateState(ctx context.Context, grant access.Grant, id int64, state entity.ApproverState) error {
	if !grant.Allows(access.ScopeApproverState) {
		return port.ErrNotElevated
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.approvers[id]
	if !ok {
		return errors.New("approver not found")
	}
	a.State = state
	r.s.approvers[id] = a
	return nil
}

type fakeMessageRepo struct{ s *memStore }

func (r fakeMessageRepo) Create(ctx context.Context, msg *entity.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg.ID = r.s.id()
	msg.CreatedAt = time.Now()
	stored := *msg
	stored.RecipientIDs = append([]int64(nil), msg.RecipientIDs...)
	r.s.messages[msg.ID] = stored
	return nil
}

func (r fakeMessageRepo) GetByID(ctx context.Context, id int64) (*entity.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r fakeMessageRepo) ListByOrder(ctx context.Context, orderID int64) ([]*entity.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var messages []*entity.Message
	for _, m := range r.s.messages {
		if m.OrderID == orderID {
			m := m
			messages = append(messages, &m)
		}
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].ID < messages[j].ID })
	return messages, nil
}

type fakeHistoryRepo struct{ s *memStore }

func (r fakeHistoryRepo) Create(ctx context.Context, history *entity.OrderHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	history.ID = r.s.id()
	r.s.history = append(r.s.history, *history)
	return nil
}

func (r fakeHistoryRepo) ListByOrder(ctx context.Context, orderID int64) ([]*entity.OrderHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.OrderHistory
	for _, h := range r.s.history {
		if h.OrderID == orderID {
			h := h
			out = append(out, &h)
		}
	}
	return out, nil
}

type fakeCurrencyRepo struct{ s *memStore }

func (r fakeCurrencyRepo) SaveCurrency(ctx context.Context, currency *entity.Currency) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.currencies[currency.Code] = *currency
	return nil
}

func (r fakeCurrencyRepo) GetCurrency(ctx context.Context, code string) (*entity.Currency, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.currencies[code]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r fakeCurrencyRepo) CreateRate(ctx context.Context, rate *entity.CurrencyRate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rate.ID = r.s.id()
	r.s.rates = append(r.s.rates, *rate)
	return nil
}

func (r fakeCurrencyRepo) FindRate(ctx context.Context, code string, companyID int64, at time.Time) (*entity.CurrencyRate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *entity.CurrencyRate
	for i := range r.s.rates {
		rate := r.s.rates[i]
		if rate.CurrencyCode == code && !rate.EffectiveDate.After(at) {
			found = &rate
		}
	}
	return found, nil
}

// fakeConverter converts with fixed rates per unit of the base currency
type fakeConverter struct {
	rates map[string]decimal.Decimal
}

func (c fakeConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to string, companyID int64, at time.Time) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	fromRate, ok := c.rates[from]
	if !ok {
		fromRate = decimal.NewFromInt(1)
	}
	toRate, ok := c.rates[to]
	if !ok {
		toRate = decimal.NewFromInt(1)
	}
	return amount.Mul(toRate).Div(fromRate).Round(2), nil
}

// fakeEvaluator answers conditions from fixed tables. Unknown expressions
// are true.
type fakeEvaluator struct {
	results     map[string]bool
	evalErrs    map[string]error
	compileErrs map[string]error
}

func (e *fakeEvaluator) Compile(expression string) error {
	return e.compileErrs[expression]
}

func (e *fakeEvaluator) Evaluate(ctx context.Context, expression string, input port.ConditionInput) (bool, error) {
	if err, ok := e.evalErrs[expression]; ok {
		return false, err
	}
	if result, ok := e.results[expression]; ok {
		return result, nil
	}
	return true, nil
}

type sentMessage struct {
	partnerID int64
	subject   string
	body      string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(ctx context.Context, recipient *entity.Partner, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{partnerID: recipient.ID, subject: subject, body: body})
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeProfileSource struct {
	name   string
	titles map[int64]string
	err    error
}

func (f fakeProfileSource) Name() string { return f.name }

func (f fakeProfileSource) JobTitle(ctx context.Context, userID int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.titles[userID], nil
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}
