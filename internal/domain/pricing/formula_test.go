package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateFormula(t *testing.T) {
	vars := FormulaVars{
		BasePrice: decimal.NewFromInt(1000),
		CostPrice: decimal.NewFromInt(600),
		HasCost:   true,
		Quantity:  decimal.NewFromInt(5),
	}

	tests := []struct {
		name string
		expr string
		want string
	}{
		{"plain number", "42", "42"},
		{"base price variable", "base_price", "1000"},
		{"markup over cost", "cost_price * 1.25", "750"},
		{"parenthesized", "(base_price + cost_price) / 2", "800"},
		{"quantity break", "base_price - quantity * 10", "950"},
		{"unary minus", "-base_price + 1200", "200"},
		{"precedence", "base_price + 2 * 100", "1200"},
		{"nested parens", "((base_price))", "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateFormula(tt.expr, vars)
			require.NoError(t, err)
			want, _ := decimal.NewFromString(tt.want)
			assert.True(t, got.Equal(want), "got %s want %s", got, want)
		})
	}
}

func TestEvaluateFormula_Errors(t *testing.T) {
	vars := FormulaVars{
		BasePrice: decimal.NewFromInt(1000),
		Quantity:  decimal.NewFromInt(1),
	}

	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"division by zero", "base_price / 0"},
		{"division by zero expr", "base_price / (quantity - 1)"},
		{"unknown variable", "unit_cost * 2"},
		{"cost price unavailable", "cost_price * 1.2"},
		{"illegal character", "base_price ^ 2"},
		{"unbalanced paren", "(base_price + 1"},
		{"trailing garbage", "base_price 5"},
		{"dangling operator", "base_price +"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvaluateFormula(tt.expr, vars)
			assert.ErrorIs(t, err, ErrFormula)
		})
	}
}
