package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tymon3568/anthill-pricing/internal/domain/pricing"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
)

type countingRateSource struct {
	rates map[string]decimal.Decimal
	calls int
}

func (s *countingRateSource) Rate(ctx context.Context, from, to valueobject.Currency, on time.Time) (decimal.Decimal, error) {
	s.calls++
	rate, ok := s.rates[string(from)+"/"+string(to)]
	if !ok {
		return decimal.Decimal{}, pricing.ErrRateUnavailable
	}
	return rate, nil
}

func newRateSourceFixture(t *testing.T) (*RedisRateSource, *countingRateSource, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	upstream := &countingRateSource{rates: map[string]decimal.Decimal{
		"VND/USD": decimal.RequireFromString("0.00004"),
	}}
	return NewRedisRateSourceWithClient(client, upstream, time.Hour), upstream, mr
}

func TestRedisRateSource_Rate(t *testing.T) {
	on := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)

	t.Run("caches the upstream rate per pair and date", func(t *testing.T) {
		source, upstream, _ := newRateSourceFixture(t)

		for i := 0; i < 3; i++ {
			rate, err := source.Rate(context.Background(), valueobject.VND, valueobject.USD, on)
			require.NoError(t, err)
			assert.True(t, rate.Equal(decimal.RequireFromString("0.00004")))
		}

		assert.Equal(t, 1, upstream.calls)
	})

	t.Run("different dates hit upstream separately", func(t *testing.T) {
		source, upstream, _ := newRateSourceFixture(t)

		_, err := source.Rate(context.Background(), valueobject.VND, valueobject.USD, on)
		require.NoError(t, err)
		_, err = source.Rate(context.Background(), valueobject.VND, valueobject.USD, on.AddDate(0, 0, 1))
		require.NoError(t, err)

		assert.Equal(t, 2, upstream.calls)
	})

	t.Run("does not cache a rate miss", func(t *testing.T) {
		source, upstream, _ := newRateSourceFixture(t)

		_, err := source.Rate(context.Background(), valueobject.VND, valueobject.Currency("EUR"), on)
		require.ErrorIs(t, err, pricing.ErrRateUnavailable)

		upstream.rates["VND/EUR"] = decimal.RequireFromString("0.000038")

		rate, err := source.Rate(context.Background(), valueobject.VND, valueobject.Currency("EUR"), on)
		require.NoError(t, err)
		assert.True(t, rate.Equal(decimal.RequireFromString("0.000038")))
	})

	t.Run("drops a corrupt cache entry and refetches", func(t *testing.T) {
		source, upstream, mr := newRateSourceFixture(t)

		require.NoError(t, mr.Set(rateKey(valueobject.VND, valueobject.USD, on), "not-a-number"))

		rate, err := source.Rate(context.Background(), valueobject.VND, valueobject.USD, on)
		require.NoError(t, err)
		assert.True(t, rate.Equal(decimal.RequireFromString("0.00004")))
		assert.Equal(t, 1, upstream.calls)
	})

	t.Run("expired entries fall back to upstream", func(t *testing.T) {
		source, upstream, mr := newRateSourceFixture(t)

		_, err := source.Rate(context.Background(), valueobject.VND, valueobject.USD, on)
		require.NoError(t, err)

		mr.FastForward(2 * time.Hour)

		_, err = source.Rate(context.Background(), valueobject.VND, valueobject.USD, on)
		require.NoError(t, err)
		assert.Equal(t, 2, upstream.calls)
	})
}
