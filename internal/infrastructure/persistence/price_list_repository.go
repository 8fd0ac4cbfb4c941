package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tymon3568/anthill-pricing/internal/domain/pricing"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
)

// GormPriceListRepository implements PriceListRepository using GORM
type GormPriceListRepository struct {
	db *gorm.DB
}

// NewGormPriceListRepository creates a new GormPriceListRepository
func NewGormPriceListRepository(db *gorm.DB) *GormPriceListRepository {
	return &GormPriceListRepository{db: db}
}

// FindByIDForTenant finds a price list by ID within a tenant
func (r *GormPriceListRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*pricing.PriceList, error) {
	var list pricing.PriceList
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&list).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &list, nil
}

// FindByIDs finds multiple price lists by their IDs
func (r *GormPriceListRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]pricing.PriceList, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var lists []pricing.PriceList
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&lists).Error; err != nil {
		return nil, err
	}
	return lists, nil
}

// FindDefault finds the active default list for a tenant and list type
func (r *GormPriceListRepository) FindDefault(ctx context.Context, tenantID uuid.UUID, listType pricing.ListType) (*pricing.PriceList, error) {
	var list pricing.PriceList
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND list_type = ? AND is_default = ? AND is_active = ?",
			tenantID, listType, true, true).
		First(&list).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &list, nil
}

// FindItems finds all items of a price list ordered for deterministic matching
func (r *GormPriceListRepository) FindItems(ctx context.Context, listID uuid.UUID) ([]pricing.PriceListItem, error) {
	var items []pricing.PriceListItem
	if err := r.db.WithContext(ctx).
		Where("price_list_id = ?", listID).
		Order("min_qty ASC, created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Save creates or updates a price list
func (r *GormPriceListRepository) Save(ctx context.Context, list *pricing.PriceList) error {
	return r.db.WithContext(ctx).Save(list).Error
}

// SaveItem creates or updates a price list item
func (r *GormPriceListRepository) SaveItem(ctx context.Context, item *pricing.PriceListItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// DeleteForTenant soft-deletes a price list and removes its items.
// Items are hard-deleted; history lives on the list row.
func (r *GormPriceListRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("tenant_id = ? AND id = ?", tenantID, id).
			Delete(&pricing.PriceList{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return tx.Where("price_list_id = ?", id).
			Delete(&pricing.PriceListItem{}).Error
	})
}
