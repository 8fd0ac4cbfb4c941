package pricing

import (
	"errors"

	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
)

// Pricing error taxonomy. All engine failures are typed so callers can tell
// retryable conditions (rate source or usage store briefly down) from terminal
// ones (bad data: cycles, broken formulas, missing cost prices).
var (
	// ErrCurrencyMismatch mirrors the value-object sentinel so callers only
	// need the pricing package to classify engine errors.
	ErrCurrencyMismatch = valueobject.ErrCurrencyMismatch

	// ErrRateUnavailable means no exchange rate exists for the pair/date.
	// Never defaulted to 1:1.
	ErrRateUnavailable = shared.NewDomainError("RATE_UNAVAILABLE", "No exchange rate available for the currency pair and date")

	// ErrPriceListCycle means a based-on chain of price lists loops back on itself
	ErrPriceListCycle = shared.NewDomainError("PRICE_LIST_CYCLE", "Price list inheritance chain contains a cycle")

	// ErrCostPriceRequired means a margin computation needs a cost price the catalog does not have
	ErrCostPriceRequired = shared.NewDomainError("COST_PRICE_REQUIRED", "Cost price is required for margin-based pricing")

	// ErrFormula means a formula item failed to parse or evaluate
	ErrFormula = shared.NewDomainError("FORMULA_ERROR", "Price formula failed to parse or evaluate")

	// ErrLimitExceeded means a rule's usage or per-customer cap is already reached
	ErrLimitExceeded = shared.NewDomainError("LIMIT_EXCEEDED", "Rule usage limit reached")

	// ErrConcurrentLimitExceeded means a reservation lost the optimistic race
	// too many times in a row
	ErrConcurrentLimitExceeded = shared.NewDomainError("CONCURRENT_LIMIT_EXCEEDED", "Rule usage limit reached under concurrent access")

	// ErrUsageStoreUnavailable means the usage counter store could not be reached
	ErrUsageStoreUnavailable = shared.NewDomainError("USAGE_STORE_UNAVAILABLE", "Usage counter store is unavailable")

	// ErrInvalidRequest means the price request itself is malformed (e.g. quantity <= 0)
	ErrInvalidRequest = shared.NewDomainError("INVALID_REQUEST", "Price request is invalid")
)

// IsRetryable reports whether the error names a transient condition the
// caller may retry, as opposed to a terminal data problem.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateUnavailable) || errors.Is(err, ErrUsageStoreUnavailable)
}
