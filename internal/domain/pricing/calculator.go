package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
)

// Notes the calculator attaches to a result for the audit trail
const (
	NoteFallbackBasePrice = "fallback_base_price"
	NoteClampedToZero     = "clamped_to_zero"
)

// PriceRequest asks for one product's effective price
type PriceRequest struct {
	TenantID       uuid.UUID
	ProductID      uuid.UUID
	VariantID      *uuid.UUID
	CustomerID *uuid.UUID
	Quantity   int64
	Date       *time.Time
	// OrderAmount is the order total accumulated so far, for rules whose
	// amount bounds apply to the whole order. Line-level callers leave it
	// nil; amount bounds then apply to the line amount.
	OrderAmount    *valueobject.Money
	TargetCurrency valueobject.Currency
	Mode           CalculationMode
}

// PriceResult is the full calculation outcome with its audit breakdown
type PriceResult struct {
	BasePrice  valueobject.Money `json:"base_price"`
	ListPrice  valueobject.Money `json:"list_price"`
	FinalPrice valueobject.Money `json:"final_price"`

	PriceListID   *uuid.UUID        `json:"price_list_id,omitempty"`
	PriceListName string            `json:"price_list_name,omitempty"`
	Discounts     []AppliedDiscount `json:"discounts,omitempty"`
	Notes         []string          `json:"notes,omitempty"`

	// Reservations are usage-counter holds taken in commit mode. The
	// caller confirms them when the order finalizes or releases them if
	// it is abandoned.
	Reservations []*Reservation `json:"-"`

	// SkippedRules lists rules whose conditions failed to evaluate, for
	// the application layer to log.
	SkippedRules []RuleSkip `json:"-"`
}

// Calculator wires the selector, resolver, evaluator and converter into
// the single entry point for price calculation.
type Calculator struct {
	catalog   CatalogProvider
	customers CustomerContextProvider
	selector  *PriceListSelector
	resolver  *BasePriceResolver
	evaluator *RuleEvaluator
	converter *CurrencyConverter
	limiter   *UsageLimiter

	// FinalRounding is applied to the price after all discounts; defaults
	// to no rounding.
	FinalRounding RoundingPolicy
}

// NewCalculator creates a new Calculator
func NewCalculator(
	catalog CatalogProvider,
	customers CustomerContextProvider,
	selector *PriceListSelector,
	resolver *BasePriceResolver,
	evaluator *RuleEvaluator,
	converter *CurrencyConverter,
	limiter *UsageLimiter,
) *Calculator {
	return &Calculator{
		catalog:       catalog,
		customers:     customers,
		selector:      selector,
		resolver:      resolver,
		evaluator:     evaluator,
		converter:     converter,
		limiter:       limiter,
		FinalRounding: NoRounding,
	}
}

// Calculate resolves the effective price for the request. In commit mode
// any usage reservations taken are released again if a later step fails,
// so a failed calculation never leaks usage counts.
func (c *Calculator) Calculate(ctx context.Context, req PriceRequest) (*PriceResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	at := time.Now()
	if req.Date != nil {
		at = *req.Date
	}

	catalogPrice, err := c.catalog.GetBasePrice(ctx, req.ProductID, req.VariantID)
	if err != nil {
		return nil, err
	}

	target := MatchTarget{
		ProductID:  req.ProductID,
		VariantID:  req.VariantID,
		CategoryID: catalogPrice.CategoryID,
	}

	result := &PriceResult{BasePrice: catalogPrice.BasePrice}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	listPrice, err := c.resolveListPrice(ctx, req, target, catalogPrice, at, result)
	if err != nil {
		return nil, err
	}
	result.ListPrice = listPrice

	groupIDs, err := c.customerGroups(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	eval, err := c.evaluator.Evaluate(ctx, EvaluationInput{
		TenantID:    req.TenantID,
		Target:      target,
		CustomerID:  req.CustomerID,
		GroupIDs:    groupIDs,
		Quantity:    req.Quantity,
		ListPrice:   listPrice,
		OrderAmount: req.OrderAmount,
		PriceListID: result.PriceListID,
		At:          at,
		Mode:        req.Mode,
	})
	if err != nil {
		return nil, err
	}
	result.Discounts = eval.Discounts
	result.Reservations = eval.Reservations
	result.SkippedRules = eval.SkippedRules
	if eval.ClampedToZero {
		result.Notes = append(result.Notes, NoteClampedToZero)
	}

	final, clamped := c.FinalRounding.Apply(eval.FinalUnitPrice)
	if clamped {
		result.Notes = append(result.Notes, NoteClampedToZero)
	}

	final, err = c.convert(ctx, final, req.TargetCurrency, at)
	if err != nil {
		c.releaseAll(ctx, result.Reservations)
		result.Reservations = nil
		return nil, err
	}
	result.FinalPrice = final

	if err := ctx.Err(); err != nil {
		c.releaseAll(ctx, result.Reservations)
		result.Reservations = nil
		return nil, err
	}

	return result, nil
}

// ConfirmReservations finalizes the usage holds of a committed calculation
func (c *Calculator) ConfirmReservations(ctx context.Context, reservations []*Reservation, orderRef string) error {
	for _, res := range reservations {
		if err := c.limiter.Confirm(ctx, res, orderRef); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseReservations gives back unconfirmed usage holds
func (c *Calculator) ReleaseReservations(ctx context.Context, reservations []*Reservation) error {
	var firstErr error
	for _, res := range reservations {
		if err := c.limiter.Release(ctx, res); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// resolveListPrice walks the candidate price lists in priority order and
// resolves the first one that matches the target. Lists that fail to
// resolve (cyclic chains, broken formulas, missing cost price) are noted
// and skipped so one bad list does not take pricing down.
func (c *Calculator) resolveListPrice(ctx context.Context, req PriceRequest, target MatchTarget, catalogPrice CatalogPrice, at time.Time, result *PriceResult) (valueobject.Money, error) {
	candidates, err := c.selector.SelectCandidates(ctx, req.TenantID, req.CustomerID, ListTypeSale, at)
	if err != nil {
		return valueobject.Money{}, err
	}

	in := ResolveInput{
		Target:    target,
		Quantity:  req.Quantity,
		BasePrice: catalogPrice.BasePrice,
		CostPrice: catalogPrice.CostPrice,
		At:        at,
	}

	for i := range candidates {
		list := &candidates[i]

		items, err := c.selector.Items(ctx, list.ID)
		if err != nil {
			return valueobject.Money{}, err
		}
		item := MatchItem(items, target, req.Quantity, at)
		if item == nil {
			continue
		}

		resolved, err := c.resolver.Resolve(ctx, list, item, in)
		if err != nil {
			if isSkippableResolveError(err) {
				result.Notes = append(result.Notes, fmt.Sprintf("price_list_skipped:%s:%s", list.Name, errorCode(err)))
				continue
			}
			return valueobject.Money{}, err
		}

		if resolved.ClampedToZero {
			result.Notes = append(result.Notes, NoteClampedToZero)
		}
		result.PriceListID = &list.ID
		result.PriceListName = list.Name
		return resolved.Price, nil
	}

	// No list priced this target; the raw catalog price stands.
	result.Notes = append(result.Notes, NoteFallbackBasePrice)
	return catalogPrice.BasePrice, nil
}

func (c *Calculator) customerGroups(ctx context.Context, customerID *uuid.UUID) ([]uuid.UUID, error) {
	if customerID == nil {
		return nil, nil
	}
	cc, err := c.customers.GetCustomerContext(ctx, *customerID)
	if err != nil {
		return nil, err
	}
	return cc.GroupIDs, nil
}

func (c *Calculator) convert(ctx context.Context, m valueobject.Money, target valueobject.Currency, at time.Time) (valueobject.Money, error) {
	if target == "" || target == m.Currency() {
		return m, nil
	}
	return c.converter.Convert(ctx, m, target, at)
}

func (c *Calculator) releaseAll(ctx context.Context, reservations []*Reservation) {
	// Best effort compensation; release failures surface via the original
	// error, not here.
	_ = c.ReleaseReservations(context.WithoutCancel(ctx), reservations)
}

func validateRequest(req PriceRequest) error {
	if req.TenantID == uuid.Nil {
		return fmt.Errorf("%w: tenant id is required", ErrInvalidRequest)
	}
	if req.ProductID == uuid.Nil {
		return fmt.Errorf("%w: product id is required", ErrInvalidRequest)
	}
	if req.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidRequest)
	}
	switch req.Mode {
	case "", ModePreview, ModeCommit:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, req.Mode)
	}
	return nil
}

// isSkippableResolveError reports whether a list resolution failure should
// demote to the next candidate instead of failing the calculation.
func isSkippableResolveError(err error) bool {
	return errors.Is(err, ErrPriceListCycle) ||
		errors.Is(err, ErrFormula) ||
		errors.Is(err, ErrCostPriceRequired)
}

func errorCode(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "error"
}
