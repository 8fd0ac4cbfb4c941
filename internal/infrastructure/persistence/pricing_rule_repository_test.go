package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tymon3568/anthill-pricing/internal/domain/shared"
)

func newMockPricingRuleRepository(t *testing.T) (*GormPricingRuleRepository, sqlmock.Sqlmock, *sql.DB) {
	gormDB, mock, mockDB := newMockGormDB(t)
	return NewGormPricingRuleRepository(gormDB), mock, mockDB
}

func TestGormPricingRuleRepository_FindByIDForTenant(t *testing.T) {
	t.Run("finds rule within tenant", func(t *testing.T) {
		repo, mock, mockDB := newMockPricingRuleRepository(t)
		defer mockDB.Close()

		ruleID := uuid.New()
		tenantID := uuid.New()

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "name", "rule_type", "priority", "is_active"}).
			AddRow(ruleID, tenantID, "VIP 5%", "discount_percent", 50, true)

		mock.ExpectQuery(`SELECT \* FROM "pricing_rules" WHERE \(tenant_id = \$1 AND id = \$2\) AND "pricing_rules"\."deleted_at" IS NULL ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, ruleID, 1).
			WillReturnRows(rows)

		rule, err := repo.FindByIDForTenant(context.Background(), tenantID, ruleID)

		assert.NoError(t, err)
		require.NotNil(t, rule)
		assert.Equal(t, "VIP 5%", rule.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for missing rule", func(t *testing.T) {
		repo, mock, mockDB := newMockPricingRuleRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "pricing_rules"`).
			WillReturnError(gorm.ErrRecordNotFound)

		rule, err := repo.FindByIDForTenant(context.Background(), uuid.New(), uuid.New())

		assert.Nil(t, rule)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPricingRuleRepository_FindActiveForTenant(t *testing.T) {
	t.Run("filters on active flag and validity window", func(t *testing.T) {
		repo, mock, mockDB := newMockPricingRuleRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		at := time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC)

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "name", "rule_type", "priority", "is_active"}).
			AddRow(uuid.New(), tenantID, "Seasonal", "discount_percent", 10, true).
			AddRow(uuid.New(), tenantID, "Clearance", "discount_amount", 20, true)

		mock.ExpectQuery(`SELECT \* FROM "pricing_rules" WHERE \(tenant_id = \$1 AND is_active = \$2\) AND \(valid_from IS NULL OR valid_from <= \$3\) AND \(valid_to IS NULL OR valid_to >= \$4\) AND "pricing_rules"\."deleted_at" IS NULL ORDER BY priority ASC, created_at ASC`).
			WithArgs(tenantID, true, at, at).
			WillReturnRows(rows)

		rules, err := repo.FindActiveForTenant(context.Background(), tenantID, at)

		assert.NoError(t, err)
		assert.Len(t, rules, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns empty slice when nothing matches", func(t *testing.T) {
		repo, mock, mockDB := newMockPricingRuleRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "pricing_rules"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		rules, err := repo.FindActiveForTenant(context.Background(), uuid.New(), time.Now())

		assert.NoError(t, err)
		assert.Empty(t, rules)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPricingRuleRepository_DeleteForTenant(t *testing.T) {
	t.Run("soft-deletes the rule", func(t *testing.T) {
		repo, mock, mockDB := newMockPricingRuleRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		ruleID := uuid.New()

		mock.ExpectExec(`UPDATE "pricing_rules" SET "deleted_at"=\$1 WHERE \(tenant_id = \$2 AND id = \$3\) AND "pricing_rules"\."deleted_at" IS NULL`).
			WithArgs(sqlmock.AnyArg(), tenantID, ruleID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.DeleteForTenant(context.Background(), tenantID, ruleID)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound when the rule does not exist", func(t *testing.T) {
		repo, mock, mockDB := newMockPricingRuleRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "pricing_rules" SET "deleted_at"=`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.DeleteForTenant(context.Background(), uuid.New(), uuid.New())

		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
