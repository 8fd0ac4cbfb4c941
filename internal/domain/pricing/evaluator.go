package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
)

// CalculationMode distinguishes non-mutating quotes from order finalization
type CalculationMode string

const (
	ModePreview CalculationMode = "preview"
	ModeCommit  CalculationMode = "commit"
)

// Skip reasons recorded on discounts that did not apply
const (
	ReasonBlockedByNonCombinable = "blocked_by_non_combinable"
	ReasonUsageLimitReached      = "usage_limit_reached"
)

// AppliedDiscount is one rule's contribution to the audit breakdown
type AppliedDiscount struct {
	RuleID   uuid.UUID          `json:"rule_id"`
	RuleName string             `json:"rule_name"`
	RuleType RuleType           `json:"rule_type"`
	Amount   valueobject.Money  `json:"amount"`
	Applied  bool               `json:"applied"`
	Reason   string             `json:"reason,omitempty"`
	// SideEffect describes free-item / buy-x-get-y outcomes the caller
	// must realize as order lines; the engine never adds lines itself.
	SideEffect string `json:"side_effect,omitempty"`
}

// EvaluationInput is the context rules are evaluated against
type EvaluationInput struct {
	TenantID    uuid.UUID
	Target      MatchTarget
	CustomerID  *uuid.UUID
	GroupIDs    []uuid.UUID
	Quantity  int64
	ListPrice valueobject.Money
	// OrderAmount is the order total supplied by the caller for rules
	// whose amount bounds apply to the whole order; when nil those bounds
	// fall back to the line amount.
	OrderAmount *valueobject.Money
	PriceListID *uuid.UUID
	At          time.Time
	Mode        CalculationMode
}

// EvaluationResult is the outcome of a rule evaluation pass
type EvaluationResult struct {
	FinalUnitPrice valueobject.Money
	Discounts      []AppliedDiscount
	// Reservations are the usage-counter increments taken in commit mode;
	// they stay releasable until the caller confirms the surrounding order.
	Reservations []*Reservation
	// ClampedToZero is set when a discount pushed the price below zero
	ClampedToZero bool
	// SkippedRules carries condition-evaluation failures for logging by
	// the application layer; the failing rules were skipped, not fatal.
	SkippedRules []RuleSkip
}

// RuleSkip describes a rule that failed to evaluate
type RuleSkip struct {
	RuleID uuid.UUID
	Name   string
	Err    error
}

// RuleEvaluator finds matching rules, resolves exclusive-group winners and
// applies their discounts in priority order, consulting the usage limiter
// before each application.
type RuleEvaluator struct {
	rules   PricingRuleRepository
	limiter *UsageLimiter
	history OrderHistoryProvider
}

// NewRuleEvaluator creates a new RuleEvaluator
func NewRuleEvaluator(rules PricingRuleRepository, limiter *UsageLimiter, history OrderHistoryProvider) *RuleEvaluator {
	return &RuleEvaluator{rules: rules, limiter: limiter, history: history}
}

// Evaluate runs the full rule pass against the input
func (e *RuleEvaluator) Evaluate(ctx context.Context, in EvaluationInput) (*EvaluationResult, error) {
	active, err := e.rules.FindActiveForTenant(ctx, in.TenantID, in.At)
	if err != nil {
		return nil, err
	}

	result := &EvaluationResult{FinalUnitPrice: in.ListPrice}

	matched, skipped := e.matchRules(ctx, active, in)
	result.SkippedRules = skipped
	if len(matched) == 0 {
		return result, nil
	}

	winners := selectGroupWinners(matched)
	if err := e.applyWinners(ctx, winners, in, result); err != nil {
		return nil, err
	}
	return result, nil
}

// matchRules filters active rules down to those whose conditions hold.
// A rule whose conditions fail to evaluate is skipped and reported.
func (e *RuleEvaluator) matchRules(ctx context.Context, active []PricingRule, in EvaluationInput) ([]*PricingRule, []RuleSkip) {
	ruleCtx := RuleContext{
		ProductID:   in.Target.ProductID,
		VariantID:   in.Target.VariantID,
		CategoryID:  in.Target.CategoryID,
		CustomerID:  in.CustomerID,
		GroupIDs:    in.GroupIDs,
		Quantity:    in.Quantity,
		LineAmount:  in.ListPrice.MultiplyQty(in.Quantity),
		OrderAmount: in.OrderAmount,
		PriceListID: in.PriceListID,
		At:          in.At,
	}
	if in.CustomerID != nil && e.history != nil {
		ruleCtx.IsFirstOrder = firstOrderMemo(ctx, e.history, *in.CustomerID)
	}

	var matched []*PricingRule
	var skipped []RuleSkip
	for i := range active {
		rule := &active[i]
		if !rule.IsValidOn(in.At) {
			continue
		}
		ok, err := rule.Matches(ruleCtx)
		if err != nil {
			skipped = append(skipped, RuleSkip{RuleID: rule.ID, Name: rule.Name, Err: err})
			continue
		}
		if ok {
			matched = append(matched, rule)
		}
	}
	return matched, skipped
}

// selectGroupWinners groups matched rules by exclusivity group and keeps
// the lowest-priority rule per group (ties broken by earliest creation,
// then lexicographic ID for full determinism). Losers are dropped here;
// only winners appear in the breakdown.
func selectGroupWinners(matched []*PricingRule) []*PricingRule {
	byGroup := make(map[string]*PricingRule)
	for _, rule := range matched {
		key := rule.GroupKey()
		current, ok := byGroup[key]
		if !ok || ruleWins(rule, current) {
			byGroup[key] = rule
		}
	}

	winners := make([]*PricingRule, 0, len(byGroup))
	for _, rule := range byGroup {
		winners = append(winners, rule)
	}
	sort.SliceStable(winners, func(i, j int) bool {
		return ruleWins(winners[i], winners[j])
	})
	return winners
}

func ruleWins(a, b *PricingRule) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// applyWinners walks the winners in priority order and applies each one
// the limiter admits. The first rule is always attempted; a non-combinable
// rule never stacks on an already-discounted price, while combinable
// winners keep stacking. A usage-store failure aborts the walk and gives
// back any reservations already taken.
func (e *RuleEvaluator) applyWinners(ctx context.Context, winners []*PricingRule, in EvaluationInput, result *EvaluationResult) error {
	running := in.ListPrice
	appliedAny := false

	for _, rule := range winners {
		if appliedAny && !rule.IsCombinable {
			result.Discounts = append(result.Discounts, AppliedDiscount{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				RuleType: rule.RuleType,
				Amount:   valueobject.Zero(running.Currency()),
				Applied:  false,
				Reason:   ReasonBlockedByNonCombinable,
			})
			continue
		}

		admitted, reservation, reason, err := e.admit(ctx, rule, in)
		if err != nil {
			e.releaseAll(ctx, result.Reservations)
			result.Reservations = nil
			return err
		}
		if !admitted {
			result.Discounts = append(result.Discounts, AppliedDiscount{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				RuleType: rule.RuleType,
				Amount:   valueobject.Zero(running.Currency()),
				Applied:  false,
				Reason:   reason,
			})
			continue
		}
		if reservation != nil {
			result.Reservations = append(result.Reservations, reservation)
		}

		next, discountAmount, sideEffect := applyRule(rule, running)
		clamped := false
		next, clamped = next.ClampNonNegative()
		if clamped {
			result.ClampedToZero = true
		}

		result.Discounts = append(result.Discounts, AppliedDiscount{
			RuleID:     rule.ID,
			RuleName:   rule.Name,
			RuleType:   rule.RuleType,
			Amount:     discountAmount,
			Applied:    true,
			SideEffect: sideEffect,
		})

		running = next
		appliedAny = true
	}

	result.FinalUnitPrice = running
	return nil
}

// admit consults the limiter: a non-mutating check in preview mode, an
// atomic reservation in commit mode. Cap rejections come back as a skip
// reason; anything else, a store outage above all, is an error that fails
// the whole evaluation.
func (e *RuleEvaluator) admit(ctx context.Context, rule *PricingRule, in EvaluationInput) (bool, *Reservation, string, error) {
	if in.Mode != ModeCommit {
		ok, err := e.limiter.Check(ctx, rule, in.CustomerID)
		if err != nil {
			return false, nil, "", err
		}
		if !ok {
			return false, nil, ReasonUsageLimitReached, nil
		}
		return true, nil, "", nil
	}

	res, err := e.limiter.Reserve(ctx, rule, in.CustomerID)
	switch {
	case err == nil:
		return true, res, "", nil
	case errors.Is(err, ErrLimitExceeded), errors.Is(err, ErrConcurrentLimitExceeded):
		return false, nil, ReasonUsageLimitReached, nil
	default:
		return false, nil, "", err
	}
}

func (e *RuleEvaluator) releaseAll(ctx context.Context, reservations []*Reservation) {
	// Best effort compensation; the original failure is what the caller sees.
	for _, res := range reservations {
		_ = e.limiter.Release(context.WithoutCancel(ctx), res)
	}
}

// applyRule computes the next running price, the discount amount for the
// breakdown and any side effect the caller must realize.
func applyRule(rule *PricingRule, running valueobject.Money) (valueobject.Money, valueobject.Money, string) {
	currency := running.Currency()

	switch rule.RuleType {
	case RuleDiscountPercent:
		discount := running.PercentOf(rule.DiscountPercent)
		next, _ := running.Subtract(discount)
		return next, discount, ""

	case RuleDiscountAmount:
		amount := rule.DiscountAmount
		if rule.MaxDiscountAmount != nil && amount > *rule.MaxDiscountAmount {
			amount = *rule.MaxDiscountAmount
		}
		discount := valueobject.MustMoney(amount, currency)
		next, _ := running.Subtract(discount)
		return next, discount, ""

	case RuleFixedPrice, RuleBundlePrice:
		// Overrides the running price; later combinable rules work
		// against this new baseline.
		next := valueobject.MustMoney(rule.FixedPrice, currency)
		discount, _ := running.Subtract(next)
		return next, discount, ""

	case RuleFreeItem:
		effect := "free_item"
		if rule.FreeProductID != nil {
			effect = fmt.Sprintf("free_item:%s", rule.FreeProductID)
		}
		return running, valueobject.Zero(currency), effect

	case RuleBuyXGetY:
		effect := fmt.Sprintf("buy_%d_get_%d", rule.BuyQty, rule.GetQty)
		if rule.FreeProductID != nil {
			effect = fmt.Sprintf("%s:%s", effect, rule.FreeProductID)
		}
		return running, valueobject.Zero(currency), effect

	default:
		return running, valueobject.Zero(currency), ""
	}
}

// firstOrderMemo resolves the first-order flag at most once per evaluation
func firstOrderMemo(ctx context.Context, history OrderHistoryProvider, customerID uuid.UUID) func() (bool, error) {
	var (
		resolved bool
		value    bool
		err      error
	)
	return func() (bool, error) {
		if !resolved {
			value, err = history.IsFirstOrder(ctx, customerID)
			resolved = true
		}
		return value, err
	}
}
