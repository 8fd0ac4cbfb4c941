package pricing

import (
	"context"
	"time"

	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
)

// CurrencyConverter converts monetary amounts through an injected rate
// source. Conversion is always explicit; when no rate exists for the
// pair/date the converter fails with ErrRateUnavailable rather than
// assuming parity.
type CurrencyConverter struct {
	rates RateSource
}

// NewCurrencyConverter creates a new CurrencyConverter
func NewCurrencyConverter(rates RateSource) *CurrencyConverter {
	return &CurrencyConverter{rates: rates}
}

// Convert converts the amount to the target currency at the given date,
// rounding half away from zero to whole minor units
func (c *CurrencyConverter) Convert(ctx context.Context, m valueobject.Money, target valueobject.Currency, on time.Time) (valueobject.Money, error) {
	if m.Currency() == target {
		return m, nil
	}

	rate, err := c.rates.Rate(ctx, m.Currency(), target, on)
	if err != nil {
		return valueobject.Money{}, err
	}

	converted, err := valueobject.NewMoney(m.Decimal().Mul(rate).Round(0).IntPart(), target)
	if err != nil {
		return valueobject.Money{}, err
	}
	return converted, nil
}
