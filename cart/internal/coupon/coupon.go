package coupon

import (
	"fmt"
	"strings"

	inErrors "github.com/shopnest/cart/internal/errors"
)

// Coupon grants a percentage discount on the pre-discount total.
type Coupon struct {
	Code    string `json:"code"`
	Percent int    `json:"percent"`
}

// Table maps uppercase coupon codes to integer discount percents.
type Table map[string]int

// NewTable builds a lookup table from configuration, normalizing codes to
// uppercase and discarding percents outside 0-100.
func NewTable(coupons map[string]int) Table {
	table := Table{}
	for code, percent := range coupons {
		if percent < 0 || percent > 100 {
			continue
		}
		table[strings.ToUpper(code)] = percent
	}
	return table
}

// Lookup resolves a code case-insensitively. A miss returns ErrInvalidCoupon:
// a user-input condition the caller reports inline, never a system fault.
func (t Table) Lookup(code string) (Coupon, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	percent, ok := t[normalized]
	if !ok {
		return Coupon{}, fmt.Errorf("code=%s: %w", code, inErrors.ErrInvalidCoupon)
	}
	return Coupon{Code: normalized, Percent: percent}, nil
}
