package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
)

func TestCurrencyConverter_Convert(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	rates := &fakeRates{rates: map[string]decimal.Decimal{
		"VND/USD": decimal.RequireFromString("0.00004"),
		"USD/VND": decimal.NewFromInt(25000),
	}}
	converter := NewCurrencyConverter(rates)

	t.Run("same currency is a no-op", func(t *testing.T) {
		got, err := converter.Convert(ctx, vnd(850000), valueobject.VND, now)
		require.NoError(t, err)
		assert.Equal(t, int64(850000), got.MinorUnits())
	})

	t.Run("converts through the rate source", func(t *testing.T) {
		got, err := converter.Convert(ctx, vnd(850000), valueobject.USD, now)
		require.NoError(t, err)
		assert.Equal(t, valueobject.USD, got.Currency())
		assert.Equal(t, int64(34), got.MinorUnits())
	})

	t.Run("rounds half away from zero", func(t *testing.T) {
		// 37500 * 0.00004 = 1.5, rounds to 2
		got, err := converter.Convert(ctx, vnd(37500), valueobject.USD, now)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.MinorUnits())
	})

	t.Run("missing rate is never defaulted to parity", func(t *testing.T) {
		eur := valueobject.Currency("EUR")
		_, err := converter.Convert(ctx, vnd(850000), eur, now)
		assert.ErrorIs(t, err, ErrRateUnavailable)
	})
}
