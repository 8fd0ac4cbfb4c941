package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/tymon3568/anthill-pricing/internal/domain/pricing"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
	"github.com/tymon3568/anthill-pricing/internal/infrastructure/config"
)

const rateKeyPrefix = "pricing:rate:"

// RedisRateSource caches exchange rate lookups in Redis in front of a
// slower RateSource. Keys carry the pair and the calendar date, so a
// conversion dated yesterday never sees today's quote. Cache failures
// fall through to the upstream source; a rate miss from upstream is not
// cached, so a late-arriving quote becomes visible immediately.
type RedisRateSource struct {
	client   *redis.Client
	upstream pricing.RateSource
	ttl      time.Duration
}

// NewRedisRateSource connects to Redis and wraps the upstream source
func NewRedisRateSource(cfg config.RedisConfig, upstream pricing.RateSource, ttl time.Duration) (*RedisRateSource, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRateSourceWithClient(client, upstream, ttl), nil
}

// NewRedisRateSourceWithClient wraps an existing Redis client. Useful for
// testing or when sharing a client across components.
func NewRedisRateSourceWithClient(client *redis.Client, upstream pricing.RateSource, ttl time.Duration) *RedisRateSource {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisRateSource{client: client, upstream: upstream, ttl: ttl}
}

// Rate returns the cached rate for the pair and date, falling back to the
// upstream source on a miss
func (s *RedisRateSource) Rate(ctx context.Context, from, to valueobject.Currency, on time.Time) (decimal.Decimal, error) {
	key := rateKey(from, to, on)

	cached, err := s.client.Get(ctx, key).Result()
	if err == nil {
		rate, parseErr := decimal.NewFromString(cached)
		if parseErr == nil {
			return rate, nil
		}
		// A corrupt entry is dropped and refetched.
		s.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) && ctx.Err() != nil {
		return decimal.Decimal{}, ctx.Err()
	}

	rate, err := s.upstream.Rate(ctx, from, to, on)
	if err != nil {
		return decimal.Decimal{}, err
	}

	// Best effort; a failed write only costs the next caller a lookup.
	s.client.Set(ctx, key, rate.String(), s.ttl)

	return rate, nil
}

// Close closes the Redis client
func (s *RedisRateSource) Close() error {
	return s.client.Close()
}

func rateKey(from, to valueobject.Currency, on time.Time) string {
	return rateKeyPrefix + string(from) + ":" + string(to) + ":" + on.UTC().Format("2006-01-02")
}
