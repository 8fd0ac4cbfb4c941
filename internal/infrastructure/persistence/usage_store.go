package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/tymon3568/anthill-pricing/internal/domain/pricing"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
)

// GormUsageStore persists rule usage counters in postgres. The global cap
// is enforced by a single conditional UPDATE on the rule row, so two
// concurrent reservations can never both take the last slot. The
// per-customer cap is checked against confirmed usage records before the
// increment; that window is accepted because per-customer limits are a
// fairness control, not an inventory guarantee.
type GormUsageStore struct {
	db *gorm.DB
}

// NewGormUsageStore creates a new GormUsageStore
func NewGormUsageStore(db *gorm.DB) *GormUsageStore {
	return &GormUsageStore{db: db}
}

// CurrentUsage returns the rule's global counter and, when customerID is
// set, the customer's confirmed usage count.
func (s *GormUsageStore) CurrentUsage(ctx context.Context, rule *pricing.PricingRule, customerID *uuid.UUID) (int64, int64, error) {
	var global int64
	err := s.db.WithContext(ctx).
		Model(&pricing.PricingRule{}).
		Select("usage_count").
		Where("tenant_id = ? AND id = ?", rule.TenantID, rule.ID).
		Scan(&global).Error
	if err != nil {
		return 0, 0, classifyStoreError(err)
	}

	var perCustomer int64
	if customerID != nil {
		err = s.db.WithContext(ctx).
			Model(&pricing.RuleUsageRecord{}).
			Where("tenant_id = ? AND rule_id = ? AND customer_id = ?",
				rule.TenantID, rule.ID, *customerID).
			Count(&perCustomer).Error
		if err != nil {
			return 0, 0, classifyStoreError(err)
		}
	}
	return global, perCustomer, nil
}

// TryReserve atomically increments the rule's usage counter if caps allow
func (s *GormUsageStore) TryReserve(ctx context.Context, rule *pricing.PricingRule, customerID *uuid.UUID) (*pricing.Reservation, error) {
	if rule.PerCustomerLimit != nil && customerID != nil {
		var used int64
		err := s.db.WithContext(ctx).
			Model(&pricing.RuleUsageRecord{}).
			Where("tenant_id = ? AND rule_id = ? AND customer_id = ?",
				rule.TenantID, rule.ID, *customerID).
			Count(&used).Error
		if err != nil {
			return nil, classifyStoreError(err)
		}
		if used >= *rule.PerCustomerLimit {
			return nil, pricing.ErrLimitExceeded
		}
	}

	result := s.db.WithContext(ctx).
		Model(&pricing.PricingRule{}).
		Where("tenant_id = ? AND id = ?", rule.TenantID, rule.ID).
		Where("usage_limit IS NULL OR usage_count < usage_limit").
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	if result.Error != nil {
		return nil, classifyStoreError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, pricing.ErrLimitExceeded
	}

	return &pricing.Reservation{
		ID:         uuid.New(),
		TenantID:   rule.TenantID,
		RuleID:     rule.ID,
		CustomerID: customerID,
	}, nil
}

// Release decrements the counter for an unconfirmed reservation
func (s *GormUsageStore) Release(ctx context.Context, res *pricing.Reservation) error {
	err := s.db.WithContext(ctx).
		Model(&pricing.PricingRule{}).
		Where("tenant_id = ? AND id = ? AND usage_count > 0", res.TenantID, res.RuleID).
		UpdateColumn("usage_count", gorm.Expr("usage_count - 1")).Error
	if err != nil {
		return classifyStoreError(err)
	}
	return nil
}

// Confirm writes the append-only usage record for a reservation
func (s *GormUsageStore) Confirm(ctx context.Context, res *pricing.Reservation, orderRef string) error {
	record := pricing.NewRuleUsageRecord(res.TenantID, res.RuleID, res.CustomerID, orderRef)
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return classifyStoreError(err)
	}
	return nil
}

// classifyStoreError maps driver failures onto the domain's error contract.
// Serialization and deadlock failures are retryable races; everything else
// from the driver means the store is unreachable.
func classifyStoreError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return shared.ErrConcurrencyConflict
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Join(pricing.ErrUsageStoreUnavailable, err)
}
