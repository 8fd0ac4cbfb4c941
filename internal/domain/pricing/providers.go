package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
)

// CatalogPrice is what the catalog knows about a product or variant's price
type CatalogPrice struct {
	BasePrice  valueobject.Money
	CostPrice  *valueobject.Money
	CategoryID *uuid.UUID
}

// CatalogProvider resolves base and cost prices from the product catalog.
// The engine treats cost price as an opaque input; how the catalog costs
// inventory (FIFO, AVCO) is not its concern.
type CatalogProvider interface {
	GetBasePrice(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (CatalogPrice, error)
}

// CustomerContext is a customer's group memberships and price list assignments
type CustomerContext struct {
	GroupIDs []uuid.UUID
	// Assignments are customer-specific, GroupAssignments come from the
	// customer's groups; both ordered by the provider or not at all,
	// the selector sorts by priority either way.
	Assignments      []CustomerPriceListAssignment
	GroupAssignments []CustomerPriceListAssignment
}

// CustomerContextProvider resolves customer master data the engine needs
type CustomerContextProvider interface {
	GetCustomerContext(ctx context.Context, customerID uuid.UUID) (CustomerContext, error)
}

// RateSource provides exchange rates. Implementations return
// ErrRateUnavailable when no rate exists for the pair/date; the converter
// never assumes 1:1.
type RateSource interface {
	Rate(ctx context.Context, from, to valueobject.Currency, on time.Time) (decimal.Decimal, error)
}

// OrderHistoryProvider answers the first-order-only rule condition
type OrderHistoryProvider interface {
	IsFirstOrder(ctx context.Context, customerID uuid.UUID) (bool, error)
}

// Reservation is a committed increment against a rule's usage counter.
// It stays releasable until confirmed; confirming writes the audit record.
type Reservation struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	RuleID     uuid.UUID
	CustomerID *uuid.UUID
}

// UsageStore persists rule usage counters and records. TryReserve performs
// ONE atomic conditional increment ("count = count + 1 where count < limit");
// the limiter owns the bounded retry loop around it.
//
// Error contract: ErrLimitExceeded when a cap is already reached,
// shared.ErrConcurrencyConflict when the attempt lost an optimistic race
// (retryable), ErrUsageStoreUnavailable when the store cannot be reached.
type UsageStore interface {
	// CurrentUsage returns the rule's global usage count and, when
	// customerID is set, the customer's confirmed usage count.
	CurrentUsage(ctx context.Context, rule *PricingRule, customerID *uuid.UUID) (global, perCustomer int64, err error)

	// TryReserve atomically increments the rule's usage counter if caps allow
	TryReserve(ctx context.Context, rule *PricingRule, customerID *uuid.UUID) (*Reservation, error)

	// Release decrements the counter for an unconfirmed reservation
	Release(ctx context.Context, res *Reservation) error

	// Confirm writes the append-only usage record for a reservation.
	// After confirmation the reservation must not be released.
	Confirm(ctx context.Context, res *Reservation, orderRef string) error
}
