package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPriceList(t *testing.T) {
	tenantID := uuid.New()

	t.Run("valid list", func(t *testing.T) {
		list, err := NewPriceList(tenantID, "Retail", "VND", ListTypeSale)
		require.NoError(t, err)
		assert.Equal(t, BasisFixed, list.BasedOn)
		assert.True(t, list.IsActive)
		assert.False(t, list.IsDefault)
	})

	t.Run("rejections", func(t *testing.T) {
		tests := []struct {
			name     string
			listName string
			currency string
			listType ListType
		}{
			{"empty name", "", "VND", ListTypeSale},
			{"bad currency", "Retail", "DONG", ListTypeSale},
			{"bad list type", "Retail", "VND", ListType("internal")},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := NewPriceList(tenantID, tt.listName, tt.currency, tt.listType)
				assert.Error(t, err)
			})
		}
	})
}

func TestPriceList_Validity(t *testing.T) {
	list := newTestList(t, uuid.New(), "Seasonal")
	now := time.Now()
	from := now.Add(-24 * time.Hour)
	to := now.Add(24 * time.Hour)

	t.Run("window contains now", func(t *testing.T) {
		require.NoError(t, list.SetValidity(&from, &to))
		assert.True(t, list.IsValidOn(now))
		assert.False(t, list.IsValidOn(now.Add(-48*time.Hour)))
		assert.False(t, list.IsValidOn(now.Add(48*time.Hour)))
	})

	t.Run("inverted window rejected", func(t *testing.T) {
		assert.Error(t, list.SetValidity(&to, &from))
	})

	t.Run("inactive list is never valid", func(t *testing.T) {
		list.IsActive = false
		assert.False(t, list.IsValidOn(now))
	})
}

func TestNewPriceListItem(t *testing.T) {
	listID := uuid.New()
	targetID := uuid.New()

	t.Run("scoped item needs a target", func(t *testing.T) {
		_, err := NewPriceListItem(listID, AppliesToProduct, nil, 1, ComputeFixed)
		assert.Error(t, err)
	})

	t.Run("catch-all must not carry a target", func(t *testing.T) {
		_, err := NewPriceListItem(listID, AppliesToAll, &targetID, 1, ComputeFixed)
		assert.Error(t, err)
	})

	t.Run("min quantity below one rejected", func(t *testing.T) {
		_, err := NewPriceListItem(listID, AppliesToProduct, &targetID, 0, ComputeFixed)
		assert.Error(t, err)
	})

	t.Run("unknown compute method rejected", func(t *testing.T) {
		_, err := NewPriceListItem(listID, AppliesToProduct, &targetID, 1, ComputeMethod("auction"))
		assert.Error(t, err)
	})

	t.Run("quantity range must be ordered", func(t *testing.T) {
		item, err := NewPriceListItem(listID, AppliesToProduct, &targetID, 1, ComputeFixed)
		require.NoError(t, err)
		assert.Error(t, item.SetQuantityRange(10, ptr(int64(5))))
		require.NoError(t, item.SetQuantityRange(10, ptr(int64(20))))
		assert.True(t, item.CoversQuantity(15))
		assert.False(t, item.CoversQuantity(21))
	})
}
