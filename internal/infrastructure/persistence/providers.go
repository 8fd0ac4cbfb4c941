package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tymon3568/anthill-pricing/internal/domain/pricing"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
)

// ProductPrice is the engine's projection of catalog pricing data. One row
// per product, plus one row per variant that overrides it. The catalog
// service owns the source of truth and syncs this table.
type ProductPrice struct {
	shared.BaseEntity
	ProductID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_product_variant,priority:1"`
	VariantID  *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_product_variant,priority:2"`
	CategoryID *uuid.UUID `gorm:"type:uuid;index"`
	BasePrice  int64      `gorm:"not null"` // minor units
	CostPrice  *int64     `gorm:""`         // minor units
	Currency   string     `gorm:"type:varchar(3);not null"`
}

// TableName returns the table name for GORM
func (ProductPrice) TableName() string {
	return "product_prices"
}

// CustomerGroupMember is the projection of a customer's group memberships
type CustomerGroupMember struct {
	CustomerID uuid.UUID `gorm:"type:uuid;primaryKey"`
	GroupID    uuid.UUID `gorm:"type:uuid;primaryKey"`
}

// TableName returns the table name for GORM
func (CustomerGroupMember) TableName() string {
	return "customer_group_members"
}

// PriceListAssignment links a customer or a customer group to a price list
type PriceListAssignment struct {
	shared.BaseEntity
	CustomerID  *uuid.UUID `gorm:"type:uuid;index"`
	GroupID     *uuid.UUID `gorm:"type:uuid;index"`
	PriceListID uuid.UUID  `gorm:"type:uuid;not null"`
	Priority    int        `gorm:"not null;default:100"`
	ValidFrom   *time.Time `gorm:""`
	ValidTo     *time.Time `gorm:""`
}

// TableName returns the table name for GORM
func (PriceListAssignment) TableName() string {
	return "customer_price_list_assignments"
}

// CustomerOrderRef is the projection of a customer's confirmed orders,
// used only to answer the first-order rule condition
type CustomerOrderRef struct {
	CustomerID uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderRef   string    `gorm:"type:varchar(100);primaryKey"`
}

// TableName returns the table name for GORM
func (CustomerOrderRef) TableName() string {
	return "customer_order_refs"
}

// GormCatalogProvider resolves base and cost prices from the
// product_prices projection
type GormCatalogProvider struct {
	db *gorm.DB
}

// NewGormCatalogProvider creates a new GormCatalogProvider
func NewGormCatalogProvider(db *gorm.DB) *GormCatalogProvider {
	return &GormCatalogProvider{db: db}
}

// GetBasePrice returns the catalog price for a product or variant. A
// variant without its own row falls back to the product row.
func (p *GormCatalogProvider) GetBasePrice(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (pricing.CatalogPrice, error) {
	var row ProductPrice

	if variantID != nil {
		err := p.db.WithContext(ctx).
			Where("product_id = ? AND variant_id = ?", productID, *variantID).
			First(&row).Error
		if err == nil {
			return toCatalogPrice(row)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pricing.CatalogPrice{}, err
		}
	}

	err := p.db.WithContext(ctx).
		Where("product_id = ? AND variant_id IS NULL", productID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pricing.CatalogPrice{}, shared.ErrNotFound
		}
		return pricing.CatalogPrice{}, err
	}
	return toCatalogPrice(row)
}

func toCatalogPrice(row ProductPrice) (pricing.CatalogPrice, error) {
	base, err := valueobject.NewMoney(row.BasePrice, valueobject.Currency(row.Currency))
	if err != nil {
		return pricing.CatalogPrice{}, err
	}
	price := pricing.CatalogPrice{BasePrice: base, CategoryID: row.CategoryID}
	if row.CostPrice != nil {
		cost, err := valueobject.NewMoney(*row.CostPrice, valueobject.Currency(row.Currency))
		if err != nil {
			return pricing.CatalogPrice{}, err
		}
		price.CostPrice = &cost
	}
	return price, nil
}

// GormCustomerContextProvider resolves group memberships and price list
// assignments from the customer projections
type GormCustomerContextProvider struct {
	db *gorm.DB
}

// NewGormCustomerContextProvider creates a new GormCustomerContextProvider
func NewGormCustomerContextProvider(db *gorm.DB) *GormCustomerContextProvider {
	return &GormCustomerContextProvider{db: db}
}

// GetCustomerContext returns the customer's groups and assignments
func (p *GormCustomerContextProvider) GetCustomerContext(ctx context.Context, customerID uuid.UUID) (pricing.CustomerContext, error) {
	var memberships []CustomerGroupMember
	if err := p.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Find(&memberships).Error; err != nil {
		return pricing.CustomerContext{}, err
	}

	cc := pricing.CustomerContext{}
	for _, m := range memberships {
		cc.GroupIDs = append(cc.GroupIDs, m.GroupID)
	}

	var direct []PriceListAssignment
	if err := p.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("priority ASC").
		Find(&direct).Error; err != nil {
		return pricing.CustomerContext{}, err
	}
	cc.Assignments = toDomainAssignments(customerID, direct)

	if len(cc.GroupIDs) > 0 {
		var grouped []PriceListAssignment
		if err := p.db.WithContext(ctx).
			Where("group_id IN ?", cc.GroupIDs).
			Order("priority ASC").
			Find(&grouped).Error; err != nil {
			return pricing.CustomerContext{}, err
		}
		cc.GroupAssignments = toDomainAssignments(customerID, grouped)
	}

	return cc, nil
}

func toDomainAssignments(customerID uuid.UUID, rows []PriceListAssignment) []pricing.CustomerPriceListAssignment {
	out := make([]pricing.CustomerPriceListAssignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, pricing.CustomerPriceListAssignment{
			CustomerID:  customerID,
			PriceListID: row.PriceListID,
			Priority:    row.Priority,
			ValidFrom:   row.ValidFrom,
			ValidTo:     row.ValidTo,
		})
	}
	return out
}

// GormOrderHistoryProvider answers the first-order rule condition from
// the confirmed order projection
type GormOrderHistoryProvider struct {
	db *gorm.DB
}

// NewGormOrderHistoryProvider creates a new GormOrderHistoryProvider
func NewGormOrderHistoryProvider(db *gorm.DB) *GormOrderHistoryProvider {
	return &GormOrderHistoryProvider{db: db}
}

// IsFirstOrder reports whether the customer has no confirmed orders yet
func (p *GormOrderHistoryProvider) IsFirstOrder(ctx context.Context, customerID uuid.UUID) (bool, error) {
	var count int64
	if err := p.db.WithContext(ctx).
		Model(&CustomerOrderRef{}).
		Where("customer_id = ?", customerID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}
