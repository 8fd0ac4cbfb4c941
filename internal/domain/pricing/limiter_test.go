package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
)

func newLimitedRule(t *testing.T, usageLimit, perCustomer *int64) *PricingRule {
	t.Helper()
	rule, err := NewPricingRule(uuid.New(), "flash sale", RuleDiscountPercent)
	require.NoError(t, err)
	rule.UsageLimit = usageLimit
	rule.PerCustomerLimit = perCustomer
	return rule
}

func TestUsageLimiter_Check(t *testing.T) {
	ctx := context.Background()
	customerID := uuid.New()

	t.Run("unlimited rule always passes", func(t *testing.T) {
		rule := newLimitedRule(t, nil, nil)
		limiter := NewUsageLimiter(newFakeUsageStore(), 0)

		ok, err := limiter.Check(ctx, rule, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("global cap reached", func(t *testing.T) {
		rule := newLimitedRule(t, ptr(int64(2)), nil)
		store := newFakeUsageStore()
		store.counts[rule.ID] = 2
		limiter := NewUsageLimiter(store, 0)

		ok, err := limiter.Check(ctx, rule, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("per customer cap reached", func(t *testing.T) {
		rule := newLimitedRule(t, nil, ptr(int64(1)))
		store := newFakeUsageStore()
		store.byCust[custKey(rule.ID, &customerID)] = 1
		limiter := NewUsageLimiter(store, 0)

		ok, err := limiter.Check(ctx, rule, &customerID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("check never mutates counters", func(t *testing.T) {
		rule := newLimitedRule(t, ptr(int64(5)), nil)
		store := newFakeUsageStore()
		limiter := NewUsageLimiter(store, 0)

		for i := 0; i < 10; i++ {
			ok, err := limiter.Check(ctx, rule, nil)
			require.NoError(t, err)
			assert.True(t, ok)
		}
		assert.Zero(t, store.counts[rule.ID])
	})
}

func TestUsageLimiter_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("reserve increments and returns a reservation", func(t *testing.T) {
		rule := newLimitedRule(t, ptr(int64(3)), nil)
		store := newFakeUsageStore()
		limiter := NewUsageLimiter(store, 0)

		res, err := limiter.Reserve(ctx, rule, nil)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, rule.ID, res.RuleID)
		assert.Equal(t, int64(1), store.counts[rule.ID])
	})

	t.Run("exhausted cap fails fast", func(t *testing.T) {
		rule := newLimitedRule(t, ptr(int64(1)), nil)
		store := newFakeUsageStore()
		store.counts[rule.ID] = 1
		limiter := NewUsageLimiter(store, 0)

		_, err := limiter.Reserve(ctx, rule, nil)
		assert.ErrorIs(t, err, ErrLimitExceeded)
	})

	t.Run("lost races are retried", func(t *testing.T) {
		rule := newLimitedRule(t, ptr(int64(3)), nil)
		store := newFakeUsageStore()
		store.failWith = []error{shared.ErrConcurrencyConflict, shared.ErrConcurrencyConflict}
		limiter := NewUsageLimiter(store, 5)

		res, err := limiter.Reserve(ctx, rule, nil)
		require.NoError(t, err)
		assert.NotNil(t, res)
	})

	t.Run("too many lost races give up", func(t *testing.T) {
		rule := newLimitedRule(t, ptr(int64(3)), nil)
		store := newFakeUsageStore()
		store.failWith = []error{
			shared.ErrConcurrencyConflict,
			shared.ErrConcurrencyConflict,
			shared.ErrConcurrencyConflict,
		}
		limiter := NewUsageLimiter(store, 3)

		_, err := limiter.Reserve(ctx, rule, nil)
		assert.ErrorIs(t, err, ErrConcurrentLimitExceeded)
		assert.False(t, IsRetryable(err))
	})

	t.Run("store outage is wrapped as unavailable", func(t *testing.T) {
		rule := newLimitedRule(t, ptr(int64(3)), nil)
		store := newFakeUsageStore()
		store.failWith = []error{errors.New("connection refused")}
		limiter := NewUsageLimiter(store, 5)

		_, err := limiter.Reserve(ctx, rule, nil)
		assert.ErrorIs(t, err, ErrUsageStoreUnavailable)
		assert.True(t, IsRetryable(err))
	})

	t.Run("cancelled context stops the loop", func(t *testing.T) {
		rule := newLimitedRule(t, ptr(int64(3)), nil)
		limiter := NewUsageLimiter(newFakeUsageStore(), 5)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := limiter.Reserve(cancelled, rule, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestUsageLimiter_ReserveConcurrent(t *testing.T) {
	ctx := context.Background()
	rule := newLimitedRule(t, ptr(int64(10)), nil)
	store := newFakeUsageStore()
	limiter := NewUsageLimiter(store, 0)

	var wg sync.WaitGroup
	successes := make(chan *Reservation, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res, err := limiter.Reserve(ctx, rule, nil); err == nil {
				successes <- res
			}
		}()
	}
	wg.Wait()
	close(successes)

	var got int
	for range successes {
		got++
	}
	assert.Equal(t, 10, got)
	assert.Equal(t, int64(10), store.counts[rule.ID])
}

func TestUsageLimiter_ReleaseAndConfirm(t *testing.T) {
	ctx := context.Background()
	rule := newLimitedRule(t, ptr(int64(1)), nil)
	store := newFakeUsageStore()
	limiter := NewUsageLimiter(store, 0)

	res, err := limiter.Reserve(ctx, rule, nil)
	require.NoError(t, err)

	t.Run("released reservation frees the slot", func(t *testing.T) {
		require.NoError(t, limiter.Release(ctx, res))
		assert.Zero(t, store.counts[rule.ID])

		again, err := limiter.Reserve(ctx, rule, nil)
		require.NoError(t, err)

		t.Run("confirm writes the usage record", func(t *testing.T) {
			require.NoError(t, limiter.Confirm(ctx, again, "SO-2026-0042"))
			require.Len(t, store.confirmed, 1)
			assert.Equal(t, rule.ID, store.confirmed[0].RuleID)
			assert.Equal(t, "SO-2026-0042", store.confirmed[0].OrderRef)
		})
	})
}
