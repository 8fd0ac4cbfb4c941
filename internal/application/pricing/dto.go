package pricing

import (
	"time"

	"github.com/google/uuid"

	"github.com/tymon3568/anthill-pricing/internal/domain/pricing"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
)

// MoneyRequest is a monetary amount in API requests
type MoneyRequest struct {
	MinorUnits int64  `json:"minor_units" binding:"required"`
	Currency   string `json:"currency" binding:"required,len=3"`
}

// QuoteRequest asks for a non-binding price quote
type QuoteRequest struct {
	ProductID  uuid.UUID  `json:"product_id" binding:"required"`
	VariantID  *uuid.UUID `json:"variant_id"`
	CustomerID *uuid.UUID `json:"customer_id"`
	Quantity   int64      `json:"quantity" binding:"required,min=1"`
	Date       *time.Time `json:"date"`
	// OrderAmount is the order total accumulated so far; order-scoped
	// rules with amount bounds evaluate against it when present.
	OrderAmount *MoneyRequest `json:"order_amount"`
	Currency    string        `json:"currency" binding:"omitempty,len=3"`
}

// CommitRequest prices a line for a finalizing order. Usage-limited rule
// applications are reserved and confirmed against the order reference.
type CommitRequest struct {
	QuoteRequest
	OrderRef string `json:"order_ref" binding:"required,min=1,max=100"`
}

// MoneyResponse is a monetary amount in API responses
type MoneyResponse struct {
	MinorUnits int64  `json:"minor_units"`
	Currency   string `json:"currency"`
}

func toMoneyResponse(m valueobject.Money) MoneyResponse {
	return MoneyResponse{MinorUnits: m.MinorUnits(), Currency: string(m.Currency())}
}

// DiscountResponse is one rule's line in the price breakdown
type DiscountResponse struct {
	RuleID     uuid.UUID     `json:"rule_id"`
	RuleName   string        `json:"rule_name"`
	RuleType   string        `json:"rule_type"`
	Amount     MoneyResponse `json:"amount"`
	Applied    bool          `json:"applied"`
	Reason     string        `json:"reason,omitempty"`
	SideEffect string        `json:"side_effect,omitempty"`
}

// PriceResponse is the calculation outcome in API responses
type PriceResponse struct {
	BasePrice     MoneyResponse      `json:"base_price"`
	ListPrice     MoneyResponse      `json:"list_price"`
	FinalPrice    MoneyResponse      `json:"final_price"`
	PriceListID   *uuid.UUID         `json:"price_list_id,omitempty"`
	PriceListName string             `json:"price_list_name,omitempty"`
	Discounts     []DiscountResponse `json:"discounts"`
	Notes         []string           `json:"notes,omitempty"`
}

func toPriceResponse(result *pricing.PriceResult) *PriceResponse {
	resp := &PriceResponse{
		BasePrice:     toMoneyResponse(result.BasePrice),
		ListPrice:     toMoneyResponse(result.ListPrice),
		FinalPrice:    toMoneyResponse(result.FinalPrice),
		PriceListID:   result.PriceListID,
		PriceListName: result.PriceListName,
		Discounts:     make([]DiscountResponse, 0, len(result.Discounts)),
		Notes:         result.Notes,
	}
	for _, d := range result.Discounts {
		resp.Discounts = append(resp.Discounts, DiscountResponse{
			RuleID:     d.RuleID,
			RuleName:   d.RuleName,
			RuleType:   string(d.RuleType),
			Amount:     toMoneyResponse(d.Amount),
			Applied:    d.Applied,
			Reason:     d.Reason,
			SideEffect: d.SideEffect,
		})
	}
	return resp
}
