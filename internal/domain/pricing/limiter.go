package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
)

// DefaultReserveAttempts bounds the optimistic retry loop around the
// store's single compare-and-increment.
const DefaultReserveAttempts = 5

// UsageLimiter enforces a rule's global and per-customer usage caps via
// the UsageStore. Check never mutates (preview/quote path); Reserve does
// the atomic check-and-increment (order finalization path) with a bounded
// retry loop; after the last lost race it fails with
// ErrConcurrentLimitExceeded.
type UsageLimiter struct {
	store       UsageStore
	maxAttempts int
}

// NewUsageLimiter creates a limiter with the given retry bound;
// attempts < 1 falls back to DefaultReserveAttempts
func NewUsageLimiter(store UsageStore, maxAttempts int) *UsageLimiter {
	if maxAttempts < 1 {
		maxAttempts = DefaultReserveAttempts
	}
	return &UsageLimiter{store: store, maxAttempts: maxAttempts}
}

// Check reports whether the rule could still be applied for the customer.
// It reads counters without reserving anything.
func (l *UsageLimiter) Check(ctx context.Context, rule *PricingRule, customerID *uuid.UUID) (bool, error) {
	if rule.UsageLimit == nil && rule.PerCustomerLimit == nil {
		return true, nil
	}

	global, perCustomer, err := l.store.CurrentUsage(ctx, rule, customerID)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrUsageStoreUnavailable, err)
	}
	if rule.UsageLimit != nil && global >= *rule.UsageLimit {
		return false, nil
	}
	if rule.PerCustomerLimit != nil && customerID != nil && perCustomer >= *rule.PerCustomerLimit {
		return false, nil
	}
	return true, nil
}

// Reserve atomically increments the rule's usage counter, retrying lost
// optimistic races up to the configured bound.
func (l *UsageLimiter) Reserve(ctx context.Context, rule *PricingRule, customerID *uuid.UUID) (*Reservation, error) {
	var lastErr error
	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := l.store.TryReserve(ctx, rule, customerID)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, ErrLimitExceeded) {
			return nil, err
		}
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			lastErr = err
			continue
		}
		return nil, fmt.Errorf("%w: %s", ErrUsageStoreUnavailable, err)
	}
	return nil, fmt.Errorf("%w: gave up after %d attempts: %s", ErrConcurrentLimitExceeded, l.maxAttempts, lastErr)
}

// Release compensates an unconfirmed reservation
func (l *UsageLimiter) Release(ctx context.Context, res *Reservation) error {
	if err := l.store.Release(ctx, res); err != nil {
		return fmt.Errorf("%w: %s", ErrUsageStoreUnavailable, err)
	}
	return nil
}

// Confirm writes the append-only usage record for a reservation
func (l *UsageLimiter) Confirm(ctx context.Context, res *Reservation, orderRef string) error {
	if err := l.store.Confirm(ctx, res, orderRef); err != nil {
		return fmt.Errorf("%w: %s", ErrUsageStoreUnavailable, err)
	}
	return nil
}
