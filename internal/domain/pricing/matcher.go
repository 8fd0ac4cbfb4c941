package pricing

import (
	"time"

	"github.com/google/uuid"
)

// MatchTarget identifies what is being priced
type MatchTarget struct {
	ProductID  uuid.UUID
	VariantID  *uuid.UUID
	CategoryID *uuid.UUID
}

// MatchItem finds the single best-matching item for the target and
// quantity within one price list's items.
//
// Specificity order is variant > product > category > all; the first
// level that yields any match wins. Within that level the item with the
// highest MinQty still covering the quantity wins (tightest tier;
// buy more, pay less). Ties fall back to earliest creation for
// determinism. Returns nil when nothing matches; the caller then moves
// on to the next candidate list.
func MatchItem(items []PriceListItem, target MatchTarget, qty int64, at time.Time) *PriceListItem {
	levels := []AppliesTo{AppliesToVariant, AppliesToProduct, AppliesToCategory, AppliesToAll}

	for _, level := range levels {
		var best *PriceListItem
		for idx := range items {
			item := &items[idx]
			if item.AppliesTo != level {
				continue
			}
			if !itemTargets(item, target) {
				continue
			}
			if !item.CoversQuantity(qty) || !item.IsValidOn(at) {
				continue
			}
			if best == nil || item.MinQty > best.MinQty ||
				(item.MinQty == best.MinQty && item.CreatedAt.Before(best.CreatedAt)) {
				best = item
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}

func itemTargets(item *PriceListItem, target MatchTarget) bool {
	switch item.AppliesTo {
	case AppliesToVariant:
		return target.VariantID != nil && item.TargetID != nil && *item.TargetID == *target.VariantID
	case AppliesToProduct:
		return item.TargetID != nil && *item.TargetID == target.ProductID
	case AppliesToCategory:
		return target.CategoryID != nil && item.TargetID != nil && *item.TargetID == *target.CategoryID
	case AppliesToAll:
		return true
	default:
		return false
	}
}
