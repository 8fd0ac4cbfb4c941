package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tymon3568/anthill-pricing/internal/domain/pricing"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
)

// GormPricingRuleRepository implements PricingRuleRepository using GORM
type GormPricingRuleRepository struct {
	db *gorm.DB
}

// NewGormPricingRuleRepository creates a new GormPricingRuleRepository
func NewGormPricingRuleRepository(db *gorm.DB) *GormPricingRuleRepository {
	return &GormPricingRuleRepository{db: db}
}

// FindByIDForTenant finds a rule by ID within a tenant
func (r *GormPricingRuleRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*pricing.PricingRule, error) {
	var rule pricing.PricingRule
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// FindActiveForTenant finds all active rules whose validity window contains
// the given instant. Condition matching beyond the validity window happens
// in the domain; the query only prunes what SQL can prune cheaply.
func (r *GormPricingRuleRepository) FindActiveForTenant(ctx context.Context, tenantID uuid.UUID, at time.Time) ([]pricing.PricingRule, error) {
	var rules []pricing.PricingRule
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Where("valid_from IS NULL OR valid_from <= ?", at).
		Where("valid_to IS NULL OR valid_to >= ?", at).
		Order("priority ASC, created_at ASC").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// Save creates or updates a rule
func (r *GormPricingRuleRepository) Save(ctx context.Context, rule *pricing.PricingRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

// DeleteForTenant soft-deletes a rule
func (r *GormPricingRuleRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&pricing.PricingRule{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
