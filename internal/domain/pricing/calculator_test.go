package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tymon3568/anthill-pricing/internal/domain/shared/valueobject"
)

type calcFixture struct {
	tenantID   uuid.UUID
	productID  uuid.UUID
	customerID uuid.UUID

	lists     *fakeListRepo
	rules     *fakeRuleRepo
	customers *fakeCustomers
	catalog   *fakeCatalog
	rates     *fakeRates
	store     *fakeUsageStore

	calc *Calculator
}

func newCalcFixture(t *testing.T) *calcFixture {
	t.Helper()
	f := &calcFixture{
		tenantID:   uuid.New(),
		productID:  uuid.New(),
		customerID: uuid.New(),
		lists:      newFakeListRepo(),
		rules:      &fakeRuleRepo{},
		customers:  &fakeCustomers{contexts: map[uuid.UUID]CustomerContext{}},
		rates:      &fakeRates{rates: map[string]decimal.Decimal{}},
		store:      newFakeUsageStore(),
	}
	f.catalog = &fakeCatalog{prices: map[uuid.UUID]CatalogPrice{
		f.productID: {BasePrice: vnd(1000000)},
	}}
	f.rebuild()
	return f
}

func (f *calcFixture) rebuild() {
	limiter := NewUsageLimiter(f.store, 0)
	f.calc = NewCalculator(
		f.catalog,
		f.customers,
		NewPriceListSelector(f.lists, f.customers),
		NewBasePriceResolver(f.lists),
		NewRuleEvaluator(f.rules, limiter, nil),
		NewCurrencyConverter(f.rates),
		limiter,
	)
}

func (f *calcFixture) addDefaultListWithPercent(t *testing.T, percent int64) *PriceList {
	t.Helper()
	list := newTestList(t, f.tenantID, "Retail")
	list.IsDefault = true
	item := newTestItem(t, list.ID, AppliesToProduct, &f.productID, 1)
	item.Method = ComputePercentage
	item.Percent = decimal.NewFromInt(percent)
	f.lists.add(list, item)
	return list
}

func (f *calcFixture) request(qty int64) PriceRequest {
	return PriceRequest{
		TenantID:  f.tenantID,
		ProductID: f.productID,
		Quantity:  qty,
		Mode:      ModePreview,
	}
}

func TestCalculator_Calculate(t *testing.T) {
	ctx := context.Background()

	t.Run("list price then rule discount", func(t *testing.T) {
		f := newCalcFixture(t)
		f.addDefaultListWithPercent(t, -15)
		rule := percentRule(t, f.tenantID, "member 5%", 5)
		f.rules.rules = []PricingRule{*rule}

		got, err := f.calc.Calculate(ctx, f.request(1))
		require.NoError(t, err)
		assert.Equal(t, int64(1000000), got.BasePrice.MinorUnits())
		assert.Equal(t, int64(850000), got.ListPrice.MinorUnits())
		assert.Equal(t, int64(807500), got.FinalPrice.MinorUnits())
		assert.Equal(t, "Retail", got.PriceListName)
		require.Len(t, got.Discounts, 1)
		assert.Equal(t, int64(42500), got.Discounts[0].Amount.MinorUnits())
	})

	t.Run("no matching list falls back to the catalog price", func(t *testing.T) {
		f := newCalcFixture(t)

		got, err := f.calc.Calculate(ctx, f.request(1))
		require.NoError(t, err)
		assert.Equal(t, int64(1000000), got.FinalPrice.MinorUnits())
		assert.Nil(t, got.PriceListID)
		assert.Contains(t, got.Notes, NoteFallbackBasePrice)
	})

	t.Run("quantity tiers never price higher for buying more", func(t *testing.T) {
		f := newCalcFixture(t)
		list := newTestList(t, f.tenantID, "Tiered")
		list.IsDefault = true
		t1 := newTestItem(t, list.ID, AppliesToProduct, &f.productID, 1)
		t1.FixedAmount = 100000
		t10 := newTestItem(t, list.ID, AppliesToProduct, &f.productID, 10)
		t10.FixedAmount = 90000
		t100 := newTestItem(t, list.ID, AppliesToProduct, &f.productID, 100)
		t100.FixedAmount = 80000
		f.lists.add(list, t1, t10, t100)

		var prev int64
		for i, qty := range []int64{1, 9, 10, 99, 100, 500} {
			got, err := f.calc.Calculate(ctx, f.request(qty))
			require.NoError(t, err)
			unit := got.FinalPrice.MinorUnits()
			if i > 0 {
				assert.LessOrEqual(t, unit, prev, "qty %d", qty)
			}
			prev = unit
		}
	})

	t.Run("broken list is skipped in favor of the next candidate", func(t *testing.T) {
		f := newCalcFixture(t)

		broken := newTestList(t, f.tenantID, "Margin")
		brokenItem := newTestItem(t, broken.ID, AppliesToProduct, &f.productID, 1)
		brokenItem.Method = ComputeMargin
		brokenItem.MarginPercent = decimal.NewFromInt(25)
		f.lists.add(broken, brokenItem)

		fallback := newTestList(t, f.tenantID, "Retail")
		fallback.IsDefault = true
		fallbackItem := newTestItem(t, fallback.ID, AppliesToProduct, &f.productID, 1)
		fallbackItem.FixedAmount = 950000
		f.lists.add(fallback, fallbackItem)

		f.customers.contexts[f.customerID] = CustomerContext{
			Assignments: []CustomerPriceListAssignment{
				{CustomerID: f.customerID, PriceListID: broken.ID, Priority: 1},
			},
		}

		req := f.request(1)
		req.CustomerID = &f.customerID
		// Catalog has no cost price, so the margin list cannot resolve.
		got, err := f.calc.Calculate(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, int64(950000), got.FinalPrice.MinorUnits())
		assert.Equal(t, "Retail", got.PriceListName)
		require.Len(t, got.Notes, 1)
		assert.Contains(t, got.Notes[0], "price_list_skipped:Margin")
	})

	t.Run("final price converts to the requested currency", func(t *testing.T) {
		f := newCalcFixture(t)
		f.rates.rates["VND/USD"] = decimal.RequireFromString("0.00004")

		req := f.request(1)
		req.TargetCurrency = valueobject.USD
		got, err := f.calc.Calculate(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, valueobject.USD, got.FinalPrice.Currency())
		assert.Equal(t, int64(40), got.FinalPrice.MinorUnits())
		// The breakdown stays in the pricing currency.
		assert.Equal(t, valueobject.VND, got.ListPrice.Currency())
	})

	t.Run("missing conversion rate fails the calculation", func(t *testing.T) {
		f := newCalcFixture(t)

		req := f.request(1)
		req.TargetCurrency = valueobject.USD
		_, err := f.calc.Calculate(ctx, req)
		assert.ErrorIs(t, err, ErrRateUnavailable)
	})

	t.Run("order amount gates order-scoped rules", func(t *testing.T) {
		f := newCalcFixture(t)
		rule := percentRule(t, f.tenantID, "big order 5%", 5)
		rule.ApplyOn = ApplyOnOrder
		rule.Conditions.MinAmount = ptr(int64(5000000))
		f.rules.rules = []PricingRule{*rule}

		// Without an order amount the bound applies to the line amount.
		got, err := f.calc.Calculate(ctx, f.request(1))
		require.NoError(t, err)
		assert.Equal(t, int64(1000000), got.FinalPrice.MinorUnits())
		assert.Empty(t, got.Discounts)

		req := f.request(1)
		order := vnd(6000000)
		req.OrderAmount = &order
		got, err = f.calc.Calculate(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, int64(950000), got.FinalPrice.MinorUnits())
	})

	t.Run("invalid requests are rejected up front", func(t *testing.T) {
		f := newCalcFixture(t)

		for name, mutate := range map[string]func(*PriceRequest){
			"zero quantity":     func(r *PriceRequest) { r.Quantity = 0 },
			"negative quantity": func(r *PriceRequest) { r.Quantity = -3 },
			"missing tenant":    func(r *PriceRequest) { r.TenantID = uuid.Nil },
			"missing product":   func(r *PriceRequest) { r.ProductID = uuid.Nil },
			"unknown mode":      func(r *PriceRequest) { r.Mode = "dry_run" },
		} {
			t.Run(name, func(t *testing.T) {
				req := f.request(1)
				mutate(&req)
				_, err := f.calc.Calculate(ctx, req)
				assert.ErrorIs(t, err, ErrInvalidRequest)
			})
		}
	})
}

func TestCalculator_Reservations(t *testing.T) {
	ctx := context.Background()

	newLimitedFixture := func(t *testing.T) (*calcFixture, *PricingRule) {
		f := newCalcFixture(t)
		rule := percentRule(t, f.tenantID, "limited 10%", 10)
		rule.UsageLimit = ptr(int64(3))
		f.rules.rules = []PricingRule{*rule}
		return f, rule
	}

	t.Run("preview is idempotent", func(t *testing.T) {
		f, rule := newLimitedFixture(t)
		for i := 0; i < 5; i++ {
			got, err := f.calc.Calculate(ctx, f.request(1))
			require.NoError(t, err)
			assert.Equal(t, int64(900000), got.FinalPrice.MinorUnits())
			assert.Empty(t, got.Reservations)
		}
		assert.Zero(t, f.store.counts[rule.ID])
	})

	t.Run("commit reserves and confirm finalizes", func(t *testing.T) {
		f, rule := newLimitedFixture(t)

		req := f.request(1)
		req.Mode = ModeCommit
		got, err := f.calc.Calculate(ctx, req)
		require.NoError(t, err)
		require.Len(t, got.Reservations, 1)
		assert.Equal(t, int64(1), f.store.counts[rule.ID])

		require.NoError(t, f.calc.ConfirmReservations(ctx, got.Reservations, "SO-2026-0007"))
		require.Len(t, f.store.confirmed, 1)
		assert.Equal(t, "SO-2026-0007", f.store.confirmed[0].OrderRef)
	})

	t.Run("release gives the slot back", func(t *testing.T) {
		f, rule := newLimitedFixture(t)

		req := f.request(1)
		req.Mode = ModeCommit
		got, err := f.calc.Calculate(ctx, req)
		require.NoError(t, err)

		require.NoError(t, f.calc.ReleaseReservations(ctx, got.Reservations))
		assert.Zero(t, f.store.counts[rule.ID])
	})

	t.Run("usage store outage fails the commit", func(t *testing.T) {
		f, rule := newLimitedFixture(t)
		f.store.failWith = []error{errors.New("connection refused")}

		req := f.request(1)
		req.Mode = ModeCommit
		_, err := f.calc.Calculate(ctx, req)
		require.ErrorIs(t, err, ErrUsageStoreUnavailable)
		assert.True(t, IsRetryable(err))
		assert.Zero(t, f.store.counts[rule.ID])
	})

	t.Run("failed conversion releases commit reservations", func(t *testing.T) {
		f, rule := newLimitedFixture(t)

		req := f.request(1)
		req.Mode = ModeCommit
		req.TargetCurrency = valueobject.USD // no rate configured
		_, err := f.calc.Calculate(ctx, req)
		require.ErrorIs(t, err, ErrRateUnavailable)
		assert.Zero(t, f.store.counts[rule.ID])
	})
}
