package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
)

// ResolvedPrice is a concrete list price plus audit flags
type ResolvedPrice struct {
	Price valueobject.Money
	// ClampedToZero is set when rounding pushed the price negative and it
	// was clamped; the calculator surfaces it in the result notes.
	ClampedToZero bool
}

// ResolveInput carries everything a single resolution needs
type ResolveInput struct {
	Target    MatchTarget
	Quantity  int64
	BasePrice valueobject.Money
	CostPrice *valueobject.Money
	At        time.Time
}

// BasePriceResolver turns a matched price list item into a concrete price.
// Percentage/margin/formula items derive from the catalog base price, or,
// for lists based on another list, from the parent list's already-resolved
// price. Parent chains are walked with an explicit visited set so a cyclic
// chain fails with ErrPriceListCycle instead of recursing forever.
type BasePriceResolver struct {
	lists PriceListRepository
}

// NewBasePriceResolver creates a new BasePriceResolver
func NewBasePriceResolver(lists PriceListRepository) *BasePriceResolver {
	return &BasePriceResolver{lists: lists}
}

// Resolve computes the list price for a matched item
func (r *BasePriceResolver) Resolve(ctx context.Context, list *PriceList, item *PriceListItem, in ResolveInput) (ResolvedPrice, error) {
	visited := map[uuid.UUID]bool{}
	return r.resolve(ctx, list, item, in, visited)
}

func (r *BasePriceResolver) resolve(ctx context.Context, list *PriceList, item *PriceListItem, in ResolveInput, visited map[uuid.UUID]bool) (ResolvedPrice, error) {
	if visited[list.ID] {
		return ResolvedPrice{}, fmt.Errorf("%w: list %s revisited", ErrPriceListCycle, list.ID)
	}
	visited[list.ID] = true

	var price valueobject.Money

	switch item.Method {
	case ComputeFixed:
		price = valueobject.MustMoney(item.FixedAmount, valueobject.Currency(list.Currency))

	case ComputePercentage:
		base, err := r.referencePrice(ctx, list, in, visited)
		if err != nil {
			return ResolvedPrice{}, err
		}
		price = base.ApplyPercent(item.Percent)

	case ComputeMargin:
		if in.CostPrice == nil {
			return ResolvedPrice{}, fmt.Errorf("%w: item %s", ErrCostPriceRequired, item.ID)
		}
		if item.MarginPercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
			return ResolvedPrice{}, fmt.Errorf("%w: margin %s%% leaves no divisor", ErrCostPriceRequired, item.MarginPercent)
		}
		divisor := decimal.NewFromInt(1).Sub(item.MarginPercent.Div(decimal.NewFromInt(100)))
		price = in.CostPrice.MulDecimal(decimal.NewFromInt(1).Div(divisor))

	case ComputeFormula:
		base, err := r.referencePrice(ctx, list, in, visited)
		if err != nil {
			return ResolvedPrice{}, err
		}
		vars := FormulaVars{
			BasePrice: base.Decimal(),
			Quantity:  decimal.NewFromInt(in.Quantity),
		}
		if in.CostPrice != nil {
			vars.CostPrice = in.CostPrice.Decimal()
			vars.HasCost = true
		}
		val, err := EvaluateFormula(item.Formula, vars)
		if err != nil {
			return ResolvedPrice{}, err
		}
		price = valueobject.MustMoney(val.Round(0).IntPart(), base.Currency())

	default:
		return ResolvedPrice{}, fmt.Errorf("%w: unknown compute method %q", ErrInvalidRequest, item.Method)
	}

	rounded, clamped := item.Rounding.Apply(price)
	return ResolvedPrice{Price: rounded, ClampedToZero: clamped}, nil
}

// referencePrice is what a relative item adjusts: the catalog base price,
// or the parent list's resolved price when the list is based on another
// list. A parent without a matching item contributes the catalog base
// price adjusted by the parent's default adjustment percent.
func (r *BasePriceResolver) referencePrice(ctx context.Context, list *PriceList, in ResolveInput, visited map[uuid.UUID]bool) (valueobject.Money, error) {
	if list.BasedOn != BasisOtherList {
		return in.BasePrice, nil
	}
	if list.ParentListID == nil {
		return valueobject.Money{}, fmt.Errorf("%w: list %s is based on another list but has no parent", ErrPriceListCycle, list.ID)
	}
	if visited[*list.ParentListID] {
		return valueobject.Money{}, fmt.Errorf("%w: list %s revisited", ErrPriceListCycle, *list.ParentListID)
	}

	parent, err := r.lists.FindByIDForTenant(ctx, list.TenantID, *list.ParentListID)
	if err != nil {
		return valueobject.Money{}, err
	}

	items, err := r.lists.FindItems(ctx, parent.ID)
	if err != nil {
		return valueobject.Money{}, err
	}

	matched := MatchItem(items, in.Target, in.Quantity, in.At)
	if matched == nil {
		visited[parent.ID] = true
		return in.BasePrice.ApplyPercent(parent.DefaultAdjustmentPercent), nil
	}

	resolved, err := r.resolve(ctx, parent, matched, in, visited)
	if err != nil {
		return valueobject.Money{}, err
	}
	return resolved.Price, nil
}
