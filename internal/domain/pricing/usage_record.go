package pricing

import (
	"github.com/google/uuid"

	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
)

// RuleUsageRecord is append-only evidence that a rule was applied to a
// confirmed order. Records back the per-customer cap and the audit trail;
// they are created exactly once per confirmed application and never
// mutated or deleted.
type RuleUsageRecord struct {
	shared.BaseEntity
	TenantID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	RuleID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_usage_rule_customer,priority:1"`
	CustomerID *uuid.UUID `gorm:"type:uuid;index:idx_usage_rule_customer,priority:2"`
	OrderRef   string     `gorm:"type:varchar(100);not null"`
}

// TableName returns the table name for GORM
func (RuleUsageRecord) TableName() string {
	return "pricing_rule_usage_records"
}

// NewRuleUsageRecord creates a usage record for a confirmed application
func NewRuleUsageRecord(tenantID, ruleID uuid.UUID, customerID *uuid.UUID, orderRef string) *RuleUsageRecord {
	return &RuleUsageRecord{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		RuleID:     ruleID,
		CustomerID: customerID,
		OrderRef:   orderRef,
	}
}
