package pricing

import (
	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
)

// RoundingMethod identifies how a resolved price is rounded
type RoundingMethod string

const (
	RoundNone    RoundingMethod = "none"
	RoundUp      RoundingMethod = "up"
	RoundDown    RoundingMethod = "down"
	RoundNearest RoundingMethod = "nearest"
	// RoundCharm rounds up to the unit, then subtracts one minor unit,
	// producing charm prices ending in ...9 (e.g. 149999 for unit 1000).
	RoundCharm RoundingMethod = "charm"
)

// RoundingPolicy applies a rounding method at a minor-unit granularity.
// Unit is the granularity in minor units (e.g. 1000 rounds to the nearest
// thousand minor units). A unit below 1 behaves as 1.
type RoundingPolicy struct {
	Method RoundingMethod `gorm:"column:rounding_method;type:varchar(10);not null;default:'none'"`
	Unit   int64          `gorm:"column:rounding_unit;not null;default:1"`
}

// NoRounding is the identity policy
var NoRounding = RoundingPolicy{Method: RoundNone, Unit: 1}

// Validate checks the policy is one of the known methods
func (p RoundingPolicy) Validate() error {
	switch p.Method {
	case RoundNone, RoundUp, RoundDown, RoundNearest, RoundCharm, "":
		return nil
	default:
		return shared.NewDomainError("INVALID_ROUNDING", "Unknown rounding method: "+string(p.Method))
	}
}

// Apply rounds the amount per the policy. The result is never negative;
// a negative outcome is clamped to zero and reported via the second
// return value so the audit trail can record it.
func (p RoundingPolicy) Apply(m valueobject.Money) (valueobject.Money, bool) {
	unit := p.Unit
	if unit < 1 {
		unit = 1
	}

	amount := m.MinorUnits()
	switch p.Method {
	case RoundUp:
		amount = ceilToUnit(amount, unit)
	case RoundDown:
		amount = floorToUnit(amount, unit)
	case RoundNearest:
		amount = nearestUnit(amount, unit)
	case RoundCharm:
		amount = ceilToUnit(amount, unit) - 1
	case RoundNone, "":
		// leave as-is
	}

	rounded, _ := valueobject.NewMoney(amount, m.Currency())
	return rounded.ClampNonNegative()
}

func ceilToUnit(amount, unit int64) int64 {
	if amount >= 0 {
		return ((amount + unit - 1) / unit) * unit
	}
	return -((-amount) / unit) * unit
}

func floorToUnit(amount, unit int64) int64 {
	if amount >= 0 {
		return (amount / unit) * unit
	}
	return -ceilToUnit(-amount, unit)
}

func nearestUnit(amount, unit int64) int64 {
	if amount >= 0 {
		return ((amount + unit/2) / unit) * unit
	}
	return -nearestUnit(-amount, unit)
}
