package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	VND Currency = "VND" // Vietnamese Dong (default)
	USD Currency = "USD" // US Dollar
	EUR Currency = "EUR" // Euro
	GBP Currency = "GBP" // British Pound
	JPY Currency = "JPY" // Japanese Yen
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = VND

// ErrCurrencyMismatch is returned when an operation mixes two currencies.
// Cross-currency math is never implicit; conversion is an explicit step.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// Money is a value object representing a monetary amount as an integer
// number of minor units (cents, dong, ...) in a single currency.
// It is immutable - all operations return new Money instances.
// Integer minor units keep arithmetic exact; fractional factors go through
// decimal math with explicit rounding, never binary floating point.
type Money struct {
	minorUnits int64
	currency   Currency
}

// NewMoney creates a new Money with the given minor-unit amount and currency
func NewMoney(minorUnits int64, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{
		minorUnits: minorUnits,
		currency:   currency,
	}, nil
}

// MustMoney creates a new Money, panicking on an empty currency.
// Intended for literals in tests and wiring code.
func MustMoney(minorUnits int64, currency Currency) Money {
	m, err := NewMoney(minorUnits, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{minorUnits: 0, currency: currency}
}

// MinorUnits returns the amount in minor units
func (m Money) MinorUnits() int64 {
	return m.minorUnits
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// Decimal returns the minor-unit amount as a decimal
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(m.minorUnits)
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.minorUnits == 0
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.minorUnits > 0
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.minorUnits < 0
}

// Add returns a new Money with the sum of both amounts
// Returns ErrCurrencyMismatch if currencies don't match
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return Money{
		minorUnits: m.minorUnits + other.minorUnits,
		currency:   m.currency,
	}, nil
}

// Subtract returns a new Money with the difference
// Returns ErrCurrencyMismatch if currencies don't match
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return Money{
		minorUnits: m.minorUnits - other.minorUnits,
		currency:   m.currency,
	}, nil
}

// MultiplyQty returns a new Money multiplied by an integer quantity
func (m Money) MultiplyQty(qty int64) Money {
	return Money{
		minorUnits: m.minorUnits * qty,
		currency:   m.currency,
	}
}

// MulDecimal returns a new Money multiplied by a decimal factor,
// rounded half away from zero to whole minor units.
func (m Money) MulDecimal(factor decimal.Decimal) Money {
	return Money{
		minorUnits: m.Decimal().Mul(factor).Round(0).IntPart(),
		currency:   m.currency,
	}
}

// ApplyPercent returns amount * (1 + percent/100), rounded half away
// from zero to whole minor units. Negative percentages reduce the amount.
func (m Money) ApplyPercent(percent decimal.Decimal) Money {
	factor := decimal.NewFromInt(1).Add(percent.Div(decimal.NewFromInt(100)))
	return m.MulDecimal(factor)
}

// PercentOf returns percent% of the amount, rounded half away from zero
// to whole minor units.
func (m Money) PercentOf(percent decimal.Decimal) Money {
	return m.MulDecimal(percent.Div(decimal.NewFromInt(100)))
}

// Negate returns a new Money with the sign reversed
func (m Money) Negate() Money {
	return Money{minorUnits: -m.minorUnits, currency: m.currency}
}

// ClampNonNegative returns the amount clamped to >= 0 and a flag
// reporting whether clamping happened.
func (m Money) ClampNonNegative() (Money, bool) {
	if m.minorUnits < 0 {
		return Zero(m.currency), true
	}
	return m, false
}

// Equals returns true if both Money values are equal (same amount and currency)
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.minorUnits == other.minorUnits
}

// Cmp compares two Money values: -1 if m < other, 0 if equal, 1 if m > other.
// Returns ErrCurrencyMismatch if currencies don't match.
func (m Money) Cmp(other Money) (int, error) {
	if m.currency != other.currency {
		return 0, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	switch {
	case m.minorUnits < other.minorUnits:
		return -1, nil
	case m.minorUnits > other.minorUnits:
		return 1, nil
	default:
		return 0, nil
	}
}

// String returns a string representation of the Money
func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.minorUnits, m.currency)
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MinorUnits int64    `json:"minor_units"`
		Currency   Currency `json:"currency"`
	}{
		MinorUnits: m.minorUnits,
		Currency:   m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler for deserialization purposes
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		MinorUnits int64    `json:"minor_units"`
		Currency   Currency `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	m.minorUnits = v.MinorUnits
	m.currency = v.Currency
	return nil
}
