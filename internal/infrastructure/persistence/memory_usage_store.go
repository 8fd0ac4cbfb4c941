package persistence

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tymon3568/anthill-pricing/internal/domain/pricing"
)

// MemoryUsageStore keeps usage counters in process memory. It backs tests
// and single-node deployments that run without postgres; counters reset on
// restart, so production limits belong in GormUsageStore.
type MemoryUsageStore struct {
	mu        sync.Mutex
	counts    map[uuid.UUID]int64
	perCust   map[string]int64
	confirmed []pricing.RuleUsageRecord
}

// NewMemoryUsageStore creates an empty in-memory usage store
func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{
		counts:  make(map[uuid.UUID]int64),
		perCust: make(map[string]int64),
	}
}

func memCustKey(ruleID uuid.UUID, customerID *uuid.UUID) string {
	if customerID == nil {
		return ruleID.String() + "/-"
	}
	return ruleID.String() + "/" + customerID.String()
}

// CurrentUsage returns the rule's global and per-customer counters
func (s *MemoryUsageStore) CurrentUsage(ctx context.Context, rule *pricing.PricingRule, customerID *uuid.UUID) (int64, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var perCustomer int64
	if customerID != nil {
		perCustomer = s.perCust[memCustKey(rule.ID, customerID)]
	}
	return s.counts[rule.ID], perCustomer, nil
}

// TryReserve increments the counters if the rule's caps allow it
func (s *MemoryUsageStore) TryReserve(ctx context.Context, rule *pricing.PricingRule, customerID *uuid.UUID) (*pricing.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.UsageLimit != nil && s.counts[rule.ID] >= *rule.UsageLimit {
		return nil, pricing.ErrLimitExceeded
	}
	if rule.PerCustomerLimit != nil && customerID != nil &&
		s.perCust[memCustKey(rule.ID, customerID)] >= *rule.PerCustomerLimit {
		return nil, pricing.ErrLimitExceeded
	}

	s.counts[rule.ID]++
	if customerID != nil {
		s.perCust[memCustKey(rule.ID, customerID)]++
	}

	return &pricing.Reservation{
		ID:         uuid.New(),
		TenantID:   rule.TenantID,
		RuleID:     rule.ID,
		CustomerID: customerID,
	}, nil
}

// Release decrements the counters for an unconfirmed reservation
func (s *MemoryUsageStore) Release(ctx context.Context, res *pricing.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts[res.RuleID] > 0 {
		s.counts[res.RuleID]--
	}
	key := memCustKey(res.RuleID, res.CustomerID)
	if res.CustomerID != nil && s.perCust[key] > 0 {
		s.perCust[key]--
	}
	return nil
}

// Confirm records the reservation as an applied usage
func (s *MemoryUsageStore) Confirm(ctx context.Context, res *pricing.Reservation, orderRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record := pricing.NewRuleUsageRecord(res.TenantID, res.RuleID, res.CustomerID, orderRef)
	s.confirmed = append(s.confirmed, *record)
	return nil
}

// ConfirmedRecords returns a copy of the confirmed usage records
func (s *MemoryUsageStore) ConfirmedRecords() []pricing.RuleUsageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pricing.RuleUsageRecord, len(s.confirmed))
	copy(out, s.confirmed)
	return out
}
