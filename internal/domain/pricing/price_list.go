package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
)

// ListType distinguishes sale and purchase price lists
type ListType string

const (
	ListTypeSale     ListType = "sale"
	ListTypePurchase ListType = "purchase"
)

// PriceBasis says what a price list's prices are derived from
type PriceBasis string

const (
	BasisFixed     PriceBasis = "fixed"      // items carry absolute amounts
	BasisBasePrice PriceBasis = "base_price" // items adjust the catalog base price
	BasisOtherList PriceBasis = "other_list" // items adjust another list's resolved price
)

// PriceList is a named, prioritized set of price overrides scoped by
// tenant, customer assignment, date window and currency.
// It is the aggregate root; items are child rows deleted with it.
type PriceList struct {
	shared.TenantAggregateRoot
	Name                     string          `gorm:"type:varchar(200);not null"`
	Currency                 string          `gorm:"type:varchar(3);not null"`
	ListType                 ListType        `gorm:"type:varchar(10);not null;default:'sale'"`
	BasedOn                  PriceBasis      `gorm:"type:varchar(12);not null;default:'fixed'"`
	ParentListID             *uuid.UUID      `gorm:"type:uuid;index"`
	DefaultAdjustmentPercent decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	ValidFrom                *time.Time      `gorm:"index"`
	ValidTo                  *time.Time      `gorm:"index"`
	Priority                 int             `gorm:"not null;default:100"` // lower = higher precedence
	IsDefault                bool            `gorm:"not null;default:false"`
	IsActive                 bool            `gorm:"not null;default:true"`
	DeletedAt                gorm.DeletedAt  `gorm:"index"`
}

// TableName returns the table name for GORM
func (PriceList) TableName() string {
	return "price_lists"
}

// NewPriceList creates a new price list
func NewPriceList(tenantID uuid.UUID, name, currency string, listType ListType) (*PriceList, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_PRICE_LIST", "Price list name cannot be empty")
	}
	if len(currency) != 3 {
		return nil, shared.NewDomainError("INVALID_PRICE_LIST", "Currency must be a 3-letter code")
	}
	if listType != ListTypeSale && listType != ListTypePurchase {
		return nil, shared.NewDomainError("INVALID_PRICE_LIST", "List type must be sale or purchase")
	}

	return &PriceList{
		TenantAggregateRoot:      shared.NewTenantAggregateRoot(tenantID),
		Name:                     name,
		Currency:                 currency,
		ListType:                 listType,
		BasedOn:                  BasisFixed,
		DefaultAdjustmentPercent: decimal.Zero,
		Priority:                 100,
		IsActive:                 true,
	}, nil
}

// BaseOnList derives this list's prices from another list's resolved prices
func (l *PriceList) BaseOnList(parentID uuid.UUID) error {
	if parentID == l.ID {
		return ErrPriceListCycle
	}
	l.BasedOn = BasisOtherList
	l.ParentListID = &parentID
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}

// SetValidity sets the validity window; open bounds mean unbounded
func (l *PriceList) SetValidity(from, to *time.Time) error {
	if from != nil && to != nil && to.Before(*from) {
		return shared.NewDomainError("INVALID_PRICE_LIST", "valid_to cannot precede valid_from")
	}
	l.ValidFrom = from
	l.ValidTo = to
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}

// IsValidOn reports whether the list is active on the given date
func (l *PriceList) IsValidOn(at time.Time) bool {
	if !l.IsActive {
		return false
	}
	if l.ValidFrom != nil && at.Before(*l.ValidFrom) {
		return false
	}
	if l.ValidTo != nil && at.After(*l.ValidTo) {
		return false
	}
	return true
}

// AppliesTo is the scope of a price list item
type AppliesTo string

const (
	AppliesToProduct  AppliesTo = "product"
	AppliesToVariant  AppliesTo = "variant"
	AppliesToCategory AppliesTo = "category"
	AppliesToAll      AppliesTo = "all"
)

// ComputeMethod is how an item computes its price
type ComputeMethod string

const (
	ComputeFixed      ComputeMethod = "fixed"
	ComputePercentage ComputeMethod = "percentage"
	ComputeMargin     ComputeMethod = "margin"
	ComputeFormula    ComputeMethod = "formula"
)

// PriceListItem is one line of a price list: a scope (what it prices),
// a quantity tier and a computation method. Quantity tiers for the same
// target may overlap; resolution picks the highest MinQty that still
// covers the requested quantity.
type PriceListItem struct {
	shared.BaseEntity
	PriceListID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	AppliesTo     AppliesTo       `gorm:"type:varchar(10);not null;default:'all'"`
	TargetID      *uuid.UUID      `gorm:"type:uuid;index"`
	MinQty        int64           `gorm:"not null;default:1"`
	MaxQty        *int64          `gorm:""`
	Method        ComputeMethod   `gorm:"type:varchar(12);not null;default:'fixed'"`
	FixedAmount   int64           `gorm:"not null;default:0"` // minor units in the list currency
	Percent       decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	MarginPercent decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	Formula       string          `gorm:"type:text"`
	Rounding      RoundingPolicy  `gorm:"embedded"`
	ValidFrom     *time.Time      `gorm:""`
	ValidTo       *time.Time      `gorm:""`
}

// TableName returns the table name for GORM
func (PriceListItem) TableName() string {
	return "price_list_items"
}

// NewPriceListItem creates a new price list item
func NewPriceListItem(listID uuid.UUID, appliesTo AppliesTo, targetID *uuid.UUID, minQty int64, method ComputeMethod) (*PriceListItem, error) {
	if minQty < 1 {
		return nil, shared.NewDomainError("INVALID_PRICE_ITEM", "min_qty must be at least 1")
	}
	switch appliesTo {
	case AppliesToProduct, AppliesToVariant, AppliesToCategory:
		if targetID == nil {
			return nil, shared.NewDomainError("INVALID_PRICE_ITEM", "target_id is required for scope "+string(appliesTo))
		}
	case AppliesToAll:
		if targetID != nil {
			return nil, shared.NewDomainError("INVALID_PRICE_ITEM", "target_id must be empty for scope all")
		}
	default:
		return nil, shared.NewDomainError("INVALID_PRICE_ITEM", "Unknown scope: "+string(appliesTo))
	}
	switch method {
	case ComputeFixed, ComputePercentage, ComputeMargin, ComputeFormula:
	default:
		return nil, shared.NewDomainError("INVALID_PRICE_ITEM", "Unknown compute method: "+string(method))
	}

	return &PriceListItem{
		BaseEntity:  shared.NewBaseEntity(),
		PriceListID: listID,
		AppliesTo:   appliesTo,
		TargetID:    targetID,
		MinQty:      minQty,
		Method:      method,
		Rounding:    NoRounding,
	}, nil
}

// SetQuantityRange bounds the tier; MaxQty nil means unbounded
func (i *PriceListItem) SetQuantityRange(minQty int64, maxQty *int64) error {
	if minQty < 1 {
		return shared.NewDomainError("INVALID_PRICE_ITEM", "min_qty must be at least 1")
	}
	if maxQty != nil && *maxQty < minQty {
		return shared.NewDomainError("INVALID_PRICE_ITEM", "max_qty cannot be below min_qty")
	}
	i.MinQty = minQty
	i.MaxQty = maxQty
	i.UpdatedAt = time.Now()
	return nil
}

// CoversQuantity reports whether the tier contains the quantity
func (i *PriceListItem) CoversQuantity(qty int64) bool {
	if qty < i.MinQty {
		return false
	}
	if i.MaxQty != nil && qty > *i.MaxQty {
		return false
	}
	return true
}

// IsValidOn reports whether the item's own validity window contains the date
func (i *PriceListItem) IsValidOn(at time.Time) bool {
	if i.ValidFrom != nil && at.Before(*i.ValidFrom) {
		return false
	}
	if i.ValidTo != nil && at.After(*i.ValidTo) {
		return false
	}
	return true
}

// CustomerPriceListAssignment links a customer (or customer group) to a
// price list with an ordering priority. Assignments are master data owned
// by the customer context; the engine only reads them.
type CustomerPriceListAssignment struct {
	CustomerID  uuid.UUID
	PriceListID uuid.UUID
	Priority    int // lower = tried first
	ValidFrom   *time.Time
	ValidTo     *time.Time
}

// IsValidOn reports whether the assignment applies on the given date
func (a CustomerPriceListAssignment) IsValidOn(at time.Time) bool {
	if a.ValidFrom != nil && at.Before(*a.ValidFrom) {
		return false
	}
	if a.ValidTo != nil && at.After(*a.ValidTo) {
		return false
	}
	return true
}
