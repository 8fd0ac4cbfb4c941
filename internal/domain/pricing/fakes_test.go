package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
)

// In-memory collaborators shared across the package tests.

type fakeListRepo struct {
	lists map[uuid.UUID]*PriceList
	items map[uuid.UUID][]PriceListItem
	def   map[ListType]*PriceList
}

func newFakeListRepo() *fakeListRepo {
	return &fakeListRepo{
		lists: map[uuid.UUID]*PriceList{},
		items: map[uuid.UUID][]PriceListItem{},
		def:   map[ListType]*PriceList{},
	}
}

func (r *fakeListRepo) add(list *PriceList, items ...*PriceListItem) {
	r.lists[list.ID] = list
	for _, item := range items {
		r.items[list.ID] = append(r.items[list.ID], *item)
	}
	if list.IsDefault {
		r.def[list.ListType] = list
	}
}

func (r *fakeListRepo) FindByIDForTenant(_ context.Context, _, id uuid.UUID) (*PriceList, error) {
	list, ok := r.lists[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return list, nil
}

func (r *fakeListRepo) FindByIDs(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]PriceList, error) {
	var out []PriceList
	for _, id := range ids {
		if list, ok := r.lists[id]; ok {
			out = append(out, *list)
		}
	}
	return out, nil
}

func (r *fakeListRepo) FindDefault(_ context.Context, _ uuid.UUID, listType ListType) (*PriceList, error) {
	list, ok := r.def[listType]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return list, nil
}

func (r *fakeListRepo) FindItems(_ context.Context, listID uuid.UUID) ([]PriceListItem, error) {
	return r.items[listID], nil
}

func (r *fakeListRepo) Save(_ context.Context, list *PriceList) error {
	r.lists[list.ID] = list
	return nil
}

func (r *fakeListRepo) SaveItem(_ context.Context, item *PriceListItem) error {
	r.items[item.PriceListID] = append(r.items[item.PriceListID], *item)
	return nil
}

func (r *fakeListRepo) DeleteForTenant(_ context.Context, _, id uuid.UUID) error {
	delete(r.lists, id)
	delete(r.items, id)
	return nil
}

type fakeRuleRepo struct {
	rules []PricingRule
}

func (r *fakeRuleRepo) FindByIDForTenant(_ context.Context, _, id uuid.UUID) (*PricingRule, error) {
	for i := range r.rules {
		if r.rules[i].ID == id {
			return &r.rules[i], nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeRuleRepo) FindActiveForTenant(_ context.Context, _ uuid.UUID, _ time.Time) ([]PricingRule, error) {
	return r.rules, nil
}

func (r *fakeRuleRepo) Save(_ context.Context, rule *PricingRule) error {
	r.rules = append(r.rules, *rule)
	return nil
}

func (r *fakeRuleRepo) DeleteForTenant(_ context.Context, _, _ uuid.UUID) error {
	return nil
}

type fakeCustomers struct {
	contexts map[uuid.UUID]CustomerContext
}

func (f *fakeCustomers) GetCustomerContext(_ context.Context, customerID uuid.UUID) (CustomerContext, error) {
	return f.contexts[customerID], nil
}

type fakeCatalog struct {
	prices map[uuid.UUID]CatalogPrice
}

func (f *fakeCatalog) GetBasePrice(_ context.Context, productID uuid.UUID, _ *uuid.UUID) (CatalogPrice, error) {
	price, ok := f.prices[productID]
	if !ok {
		return CatalogPrice{}, shared.ErrNotFound
	}
	return price, nil
}

type fakeRates struct {
	rates map[string]decimal.Decimal
}

func (f *fakeRates) Rate(_ context.Context, from, to valueobject.Currency, _ time.Time) (decimal.Decimal, error) {
	rate, ok := f.rates[string(from)+"/"+string(to)]
	if !ok {
		return decimal.Decimal{}, ErrRateUnavailable
	}
	return rate, nil
}

type fakeHistory struct {
	firstOrder map[uuid.UUID]bool
	calls      int
}

func (f *fakeHistory) IsFirstOrder(_ context.Context, customerID uuid.UUID) (bool, error) {
	f.calls++
	return f.firstOrder[customerID], nil
}

// fakeUsageStore is a mutex-guarded usage counter with optional fault
// injection for the limiter's retry path.
type fakeUsageStore struct {
	mu        sync.Mutex
	counts    map[uuid.UUID]int64
	byCust    map[string]int64
	confirmed []RuleUsageRecord
	failWith  []error // consumed per TryReserve call before the real attempt
	usageErr  error   // returned by every CurrentUsage call when set
}

func newFakeUsageStore() *fakeUsageStore {
	return &fakeUsageStore{
		counts: map[uuid.UUID]int64{},
		byCust: map[string]int64{},
	}
}

func custKey(ruleID uuid.UUID, customerID *uuid.UUID) string {
	if customerID == nil {
		return ruleID.String()
	}
	return ruleID.String() + "/" + customerID.String()
}

func (s *fakeUsageStore) CurrentUsage(_ context.Context, rule *PricingRule, customerID *uuid.UUID) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usageErr != nil {
		return 0, 0, s.usageErr
	}
	return s.counts[rule.ID], s.byCust[custKey(rule.ID, customerID)], nil
}

func (s *fakeUsageStore) TryReserve(_ context.Context, rule *PricingRule, customerID *uuid.UUID) (*Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.failWith) > 0 {
		err := s.failWith[0]
		s.failWith = s.failWith[1:]
		if err != nil {
			return nil, err
		}
	}

	if rule.UsageLimit != nil && s.counts[rule.ID] >= *rule.UsageLimit {
		return nil, ErrLimitExceeded
	}
	if rule.PerCustomerLimit != nil && customerID != nil &&
		s.byCust[custKey(rule.ID, customerID)] >= *rule.PerCustomerLimit {
		return nil, ErrLimitExceeded
	}

	s.counts[rule.ID]++
	s.byCust[custKey(rule.ID, customerID)]++
	return &Reservation{
		ID:         uuid.New(),
		TenantID:   rule.TenantID,
		RuleID:     rule.ID,
		CustomerID: customerID,
	}, nil
}

func (s *fakeUsageStore) Release(_ context.Context, res *Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[res.RuleID]--
	s.byCust[custKey(res.RuleID, res.CustomerID)]--
	return nil
}

func (s *fakeUsageStore) Confirm(_ context.Context, res *Reservation, orderRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed = append(s.confirmed, *NewRuleUsageRecord(res.TenantID, res.RuleID, res.CustomerID, orderRef))
	return nil
}

// Test data helpers.

func vnd(amount int64) valueobject.Money {
	return valueobject.MustMoney(amount, valueobject.VND)
}

func ptr[T any](v T) *T { return &v }
