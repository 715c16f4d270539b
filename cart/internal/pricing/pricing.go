package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/shopnest/cart/cart/internal/store"
)

var oneHundred = decimal.NewFromInt(100)

// Config carries the summary constants. ShippingFee is flat per non-empty
// cart; TaxRate is a fraction of the subtotal.
type Config struct {
	ShippingFee decimal.Decimal
	TaxRate     decimal.Decimal
}

func NewConfig(shippingFee, taxRate float64) Config {
	return Config{
		ShippingFee: decimal.NewFromFloat(shippingFee),
		TaxRate:     decimal.NewFromFloat(taxRate),
	}
}

// Summary is the derived pricing tuple for a cart. Amounts keep full decimal
// precision; rounding to the display unit happens at presentation time so
// repeated recomputation cannot compound rounding error.
type Summary struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	Shipping        decimal.Decimal `json:"shipping"`
	Tax             decimal.Decimal `json:"tax"`
	DiscountPercent int             `json:"discount_percent"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
}

// Compute derives the summary from the item list and the active discount
// percent. It is pure: no side effects, identical output for identical input,
// callable on every change notification.
//
//	subtotal = sum(unitPrice * quantity)
//	shipping = flat fee when subtotal > 0, else 0
//	tax      = subtotal * taxRate
//	discount = (subtotal + shipping + tax) * percent / 100
//	total    = subtotal + shipping + tax - discount
func Compute(items []store.LineItem, discountPercent int, cfg Config) Summary {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(
			item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)),
		)
	}

	shipping := decimal.Zero
	if subtotal.IsPositive() {
		shipping = cfg.ShippingFee
	}

	tax := subtotal.Mul(cfg.TaxRate)

	preDiscount := subtotal.Add(shipping).Add(tax)
	discount := decimal.Zero
	if discountPercent > 0 {
		discount = preDiscount.Mul(decimal.NewFromInt(int64(discountPercent))).Div(oneHundred)
	}

	return Summary{
		Subtotal:        subtotal,
		Shipping:        shipping,
		Tax:             tax,
		DiscountPercent: discountPercent,
		Discount:        discount,
		Total:           preDiscount.Sub(discount),
	}
}

// Display rounds every amount to the currency's smallest display unit.
func (s Summary) Display() Summary {
	return Summary{
		Subtotal:        s.Subtotal.Round(2),
		Shipping:        s.Shipping.Round(2),
		Tax:             s.Tax.Round(2),
		DiscountPercent: s.DiscountPercent,
		Discount:        s.Discount.Round(2),
		Total:           s.Total.Round(2),
	}
}
