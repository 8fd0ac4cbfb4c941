package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PriceListRepository defines the interface for price list persistence
type PriceListRepository interface {
	// FindByIDForTenant finds a price list by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*PriceList, error)

	// FindByIDs finds multiple price lists by their IDs, preserving no order
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]PriceList, error)

	// FindDefault finds the active default list for a tenant and list type
	FindDefault(ctx context.Context, tenantID uuid.UUID, listType ListType) (*PriceList, error)

	// FindItems finds all items of a price list
	FindItems(ctx context.Context, listID uuid.UUID) ([]PriceListItem, error)

	// Save creates or updates a price list
	Save(ctx context.Context, list *PriceList) error

	// SaveItem creates or updates a price list item
	SaveItem(ctx context.Context, item *PriceListItem) error

	// DeleteForTenant soft-deletes a price list and removes its items
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}

// PricingRuleRepository defines the interface for pricing rule persistence
type PricingRuleRepository interface {
	// FindByIDForTenant finds a rule by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*PricingRule, error)

	// FindActiveForTenant finds all active rules whose validity window
	// contains the given instant
	FindActiveForTenant(ctx context.Context, tenantID uuid.UUID, at time.Time) ([]PricingRule, error)

	// Save creates or updates a rule
	Save(ctx context.Context, rule *PricingRule) error

	// DeleteForTenant soft-deletes a rule
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error
}
