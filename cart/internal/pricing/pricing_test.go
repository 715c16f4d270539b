package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/shopnest/cart/cart/internal/store"
)

func testConfig() Config {
	return NewConfig(10.0, 0.05)
}

func TestComputeEmptyCartIsAllZero(t *testing.T) {
	summary := Compute(nil, 0, testConfig())

	assert.True(t, summary.Subtotal.IsZero())
	assert.True(t, summary.Shipping.IsZero())
	assert.True(t, summary.Tax.IsZero())
	assert.True(t, summary.Discount.IsZero())
	assert.True(t, summary.Total.IsZero())
}

func TestComputeShippingIsFlatWhenSubtotalPositive(t *testing.T) {
	items := []store.LineItem{
		{ID: "p1", UnitPrice: decimal.NewFromInt(1), Quantity: 1},
	}

	summary := Compute(items, 0, testConfig())
	assert.True(t, summary.Shipping.Equal(decimal.NewFromInt(10)))

	items = append(
		items,
		store.LineItem{ID: "p2", UnitPrice: decimal.NewFromInt(500), Quantity: 3},
	)
	summary = Compute(items, 0, testConfig())
	assert.True(t, summary.Shipping.Equal(decimal.NewFromInt(10)))
}

func TestComputeDiscountAppliesToSubtotalShippingAndTax(t *testing.T) {
	// subtotal 1000, shipping 250, tax 150: a 10 percent coupon discounts the
	// full 1400 pre-discount amount, so discount is 140 and total 1260
	cfg := Config{
		ShippingFee: decimal.NewFromInt(250),
		TaxRate:     decimal.NewFromFloat(0.15),
	}
	items := []store.LineItem{
		{ID: "p1", UnitPrice: decimal.NewFromInt(100), Quantity: 10},
	}

	summary := Compute(items, 10, cfg)

	assert.True(t, summary.Subtotal.Equal(decimal.NewFromInt(1000)), summary.Subtotal.String())
	assert.True(t, summary.Shipping.Equal(decimal.NewFromInt(250)), summary.Shipping.String())
	assert.True(t, summary.Tax.Equal(decimal.NewFromInt(150)), summary.Tax.String())
	assert.True(t, summary.Discount.Equal(decimal.NewFromInt(140)), summary.Discount.String())
	assert.True(t, summary.Total.Equal(decimal.NewFromInt(1260)), summary.Total.String())
}

func TestComputeZeroPercentMeansNoDiscount(t *testing.T) {
	items := []store.LineItem{
		{ID: "p1", UnitPrice: decimal.NewFromInt(100), Quantity: 2},
	}

	summary := Compute(items, 0, testConfig())

	assert.EqualValues(t, 0, summary.DiscountPercent)
	assert.True(t, summary.Discount.IsZero())
	assert.True(t, summary.Total.Equal(summary.Subtotal.Add(summary.Shipping).Add(summary.Tax)))
}

func TestComputeIsPure(t *testing.T) {
	items := []store.LineItem{
		{ID: "p1", UnitPrice: decimal.NewFromFloat(19.99), Quantity: 3},
		{ID: "p2", UnitPrice: decimal.NewFromFloat(5.5), Quantity: 2},
	}

	first := Compute(items, 15, testConfig())
	second := Compute(items, 15, testConfig())

	assert.EqualValues(t, first, second)
	assert.Len(t, items, 2)
}

func TestDisplayRoundsToTwoPlaces(t *testing.T) {
	items := []store.LineItem{
		{ID: "p1", UnitPrice: decimal.NewFromFloat(0.333), Quantity: 1},
	}

	summary := Compute(items, 10, testConfig()).Display()

	assert.EqualValues(t, 2, int(-summary.Tax.Exponent()))
	assert.True(t, summary.Subtotal.Equal(decimal.NewFromFloat(0.33)), summary.Subtotal.String())
}
