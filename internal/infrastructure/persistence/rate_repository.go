package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tymon3568/anthill-pricing/internal/domain/pricing"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
)

// ExchangeRate is a dated quote for one currency pair. Rates are loaded
// by an external feed; the engine only ever reads them.
type ExchangeRate struct {
	shared.BaseEntity
	FromCurrency string          `gorm:"type:varchar(3);not null;uniqueIndex:idx_rate_pair_date,priority:1"`
	ToCurrency   string          `gorm:"type:varchar(3);not null;uniqueIndex:idx_rate_pair_date,priority:2"`
	Rate         decimal.Decimal `gorm:"type:decimal(20,10);not null"`
	ValidDate    time.Time       `gorm:"type:date;not null;uniqueIndex:idx_rate_pair_date,priority:3"`
}

// TableName returns the table name for GORM
func (ExchangeRate) TableName() string {
	return "exchange_rates"
}

// GormRateSource implements RateSource against the exchange_rates table.
// The effective rate for a date is the newest quote dated on or before it.
type GormRateSource struct {
	db *gorm.DB
}

// NewGormRateSource creates a new GormRateSource
func NewGormRateSource(db *gorm.DB) *GormRateSource {
	return &GormRateSource{db: db}
}

// Rate returns the exchange rate for the pair effective on the given date
func (r *GormRateSource) Rate(ctx context.Context, from, to valueobject.Currency, on time.Time) (decimal.Decimal, error) {
	var rate ExchangeRate
	err := r.db.WithContext(ctx).
		Where("from_currency = ? AND to_currency = ? AND valid_date <= ?",
			string(from), string(to), on.UTC().Truncate(24*time.Hour)).
		Order("valid_date DESC").
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Decimal{}, pricing.ErrRateUnavailable
		}
		return decimal.Decimal{}, err
	}
	return rate.Rate, nil
}
