package pricing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
)

// RuleType identifies what a pricing rule does to the running price
type RuleType string

const (
	RuleDiscountPercent RuleType = "discount_percent"
	RuleDiscountAmount  RuleType = "discount_amount"
	RuleFixedPrice      RuleType = "fixed_price"
	RuleFreeItem        RuleType = "free_item"
	RuleBuyXGetY        RuleType = "buy_x_get_y"
	RuleBundlePrice     RuleType = "bundle_price"
)

// ApplyOn says whether a rule prices a single line or the whole order
type ApplyOn string

const (
	ApplyOnLine  ApplyOn = "line"
	ApplyOnOrder ApplyOn = "order"
)

// RuleConditions is the closed set of predicates a rule can carry.
// Every field is optional; nil/empty means "no constraint of this kind".
// Keeping it a fixed struct (rather than an open schema document) lets the
// evaluator check every condition kind exhaustively.
type RuleConditions struct {
	MinQty *int64 `json:"min_qty,omitempty"`
	MaxQty *int64 `json:"max_qty,omitempty"`

	// Line amount bounds in minor units of the list price currency
	MinAmount *int64 `json:"min_amount,omitempty"`
	MaxAmount *int64 `json:"max_amount,omitempty"`

	ProductIDs  []uuid.UUID `json:"product_ids,omitempty"`
	VariantIDs  []uuid.UUID `json:"variant_ids,omitempty"`
	CategoryIDs []uuid.UUID `json:"category_ids,omitempty"`

	CustomerIDs      []uuid.UUID `json:"customer_ids,omitempty"`
	CustomerGroupIDs []uuid.UUID `json:"customer_group_ids,omitempty"`

	PriceListIDs []uuid.UUID `json:"price_list_ids,omitempty"`

	Weekdays []time.Weekday `json:"weekdays,omitempty"`
	TimeFrom string         `json:"time_from,omitempty"` // "15:04", inclusive
	TimeTo   string         `json:"time_to,omitempty"`   // "15:04", inclusive

	FirstOrderOnly bool `json:"first_order_only,omitempty"`
}

// Value implements driver.Valuer so conditions persist as jsonb
func (c RuleConditions) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for jsonb retrieval
func (c *RuleConditions) Scan(value any) error {
	if value == nil {
		*c = RuleConditions{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RuleConditions", value)
	}
	return json.Unmarshal(data, c)
}

// PricingRule is a conditional discount or promotion applied on top of a
// resolved list price. Rules in the same exclusive group compete; at most
// one of them applies per calculation.
type PricingRule struct {
	shared.TenantAggregateRoot
	Name       string         `gorm:"type:varchar(200);not null"`
	RuleType   RuleType       `gorm:"type:varchar(20);not null"`
	Conditions RuleConditions `gorm:"type:jsonb"`

	DiscountPercent decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	DiscountAmount  int64           `gorm:"not null;default:0"` // minor units
	FixedPrice      int64           `gorm:"not null;default:0"` // minor units
	FreeProductID   *uuid.UUID      `gorm:"type:uuid"`
	BuyQty          int64           `gorm:"not null;default:0"`
	GetQty          int64           `gorm:"not null;default:0"`

	MaxDiscountAmount *int64 `gorm:""` // minor units; caps discount_amount rules
	UsageLimit        *int64 `gorm:""`
	PerCustomerLimit  *int64 `gorm:""`
	UsageCount        int64  `gorm:"not null;default:0"`

	ValidFrom      *time.Time     `gorm:"index"`
	ValidTo        *time.Time     `gorm:"index"`
	Priority       int            `gorm:"not null;default:100"` // lower wins within a group
	IsCombinable   bool           `gorm:"not null;default:false"`
	ExclusiveGroup *string        `gorm:"type:varchar(100);index"`
	ApplyOn        ApplyOn        `gorm:"type:varchar(10);not null;default:'line'"`
	IsActive       bool           `gorm:"not null;default:true"`
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (PricingRule) TableName() string {
	return "pricing_rules"
}

// NewPricingRule creates a new pricing rule
func NewPricingRule(tenantID uuid.UUID, name string, ruleType RuleType) (*PricingRule, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_RULE", "Rule name cannot be empty")
	}
	switch ruleType {
	case RuleDiscountPercent, RuleDiscountAmount, RuleFixedPrice, RuleFreeItem, RuleBuyXGetY, RuleBundlePrice:
	default:
		return nil, shared.NewDomainError("INVALID_RULE", "Unknown rule type: "+string(ruleType))
	}

	return &PricingRule{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		RuleType:            ruleType,
		Priority:            100,
		ApplyOn:             ApplyOnLine,
		IsActive:            true,
	}, nil
}

// IsValidOn reports whether the rule is active on the given instant
func (r *PricingRule) IsValidOn(at time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.ValidFrom != nil && at.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidTo != nil && at.After(*r.ValidTo) {
		return false
	}
	return true
}

// GroupKey returns the exclusivity group the rule competes in. Rules
// without a group are each their own singleton group keyed by ID.
func (r *PricingRule) GroupKey() string {
	if r.ExclusiveGroup != nil && *r.ExclusiveGroup != "" {
		return *r.ExclusiveGroup
	}
	return "rule:" + r.ID.String()
}

// RuleContext is the request context a rule's conditions are checked against
type RuleContext struct {
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	CategoryID  *uuid.UUID
	CustomerID  *uuid.UUID
	GroupIDs    []uuid.UUID
	Quantity    int64
	LineAmount  valueobject.Money
	OrderAmount *valueobject.Money
	PriceListID *uuid.UUID
	At          time.Time

	// IsFirstOrder is resolved lazily by the evaluator, only when some
	// candidate rule carries the first-order-only condition.
	IsFirstOrder func() (bool, error)
}

// Matches checks every condition against the context. A malformed
// condition (bad time format, unresolvable first-order flag) returns an
// error; the evaluator skips such rules rather than failing the request.
func (r *PricingRule) Matches(ctx RuleContext) (bool, error) {
	c := r.Conditions

	if c.MinQty != nil && ctx.Quantity < *c.MinQty {
		return false, nil
	}
	if c.MaxQty != nil && ctx.Quantity > *c.MaxQty {
		return false, nil
	}

	amount := ctx.LineAmount.MinorUnits()
	if r.ApplyOn == ApplyOnOrder && ctx.OrderAmount != nil {
		amount = ctx.OrderAmount.MinorUnits()
	}
	if c.MinAmount != nil && amount < *c.MinAmount {
		return false, nil
	}
	if c.MaxAmount != nil && amount > *c.MaxAmount {
		return false, nil
	}

	if len(c.ProductIDs) > 0 && !containsID(c.ProductIDs, ctx.ProductID) {
		return false, nil
	}
	if len(c.VariantIDs) > 0 && (ctx.VariantID == nil || !containsID(c.VariantIDs, *ctx.VariantID)) {
		return false, nil
	}
	if len(c.CategoryIDs) > 0 && (ctx.CategoryID == nil || !containsID(c.CategoryIDs, *ctx.CategoryID)) {
		return false, nil
	}

	if len(c.CustomerIDs) > 0 && (ctx.CustomerID == nil || !containsID(c.CustomerIDs, *ctx.CustomerID)) {
		return false, nil
	}
	if len(c.CustomerGroupIDs) > 0 && !containsAnyID(c.CustomerGroupIDs, ctx.GroupIDs) {
		return false, nil
	}

	if len(c.PriceListIDs) > 0 && (ctx.PriceListID == nil || !containsID(c.PriceListIDs, *ctx.PriceListID)) {
		return false, nil
	}

	if len(c.Weekdays) > 0 {
		found := false
		for _, d := range c.Weekdays {
			if ctx.At.Weekday() == d {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}

	if c.TimeFrom != "" || c.TimeTo != "" {
		ok, err := inTimeWindow(ctx.At, c.TimeFrom, c.TimeTo)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	if c.FirstOrderOnly {
		if ctx.IsFirstOrder == nil {
			return false, shared.NewDomainError("INVALID_RULE", "first_order_only rule requires order history")
		}
		first, err := ctx.IsFirstOrder()
		if err != nil {
			return false, err
		}
		if !first {
			return false, nil
		}
	}

	return true, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsAnyID(ids, candidates []uuid.UUID) bool {
	for _, c := range candidates {
		if containsID(ids, c) {
			return true
		}
	}
	return false
}

// inTimeWindow checks the clock time of at against an inclusive "15:04"
// window. A window wrapping midnight (from > to) is honored.
func inTimeWindow(at time.Time, from, to string) (bool, error) {
	minutes := at.Hour()*60 + at.Minute()

	fromMin, toMin := 0, 24*60-1
	if from != "" {
		t, err := time.Parse("15:04", from)
		if err != nil {
			return false, fmt.Errorf("invalid time_from %q: %w", from, err)
		}
		fromMin = t.Hour()*60 + t.Minute()
	}
	if to != "" {
		t, err := time.Parse("15:04", to)
		if err != nil {
			return false, fmt.Errorf("invalid time_to %q: %w", to, err)
		}
		toMin = t.Hour()*60 + t.Minute()
	}

	if fromMin <= toMin {
		return minutes >= fromMin && minutes <= toMin, nil
	}
	return minutes >= fromMin || minutes <= toMin, nil
}
