package coupon

import (
	"testing"

	"github.com/stretchr/testify/assert"

	inErrors "github.com/shopnest/cart/internal/errors"
)

func TestLookupIsCaseInsensitive(t *testing.T) {
	table := NewTable(map[string]int{"SAVE10": 10})

	tests := []string{"SAVE10", "save10", "Save10", "  save10  "}
	for _, code := range tests {
		cp, err := table.Lookup(code)
		assert.NoError(t, err, code)
		assert.EqualValues(t, "SAVE10", cp.Code)
		assert.EqualValues(t, 10, cp.Percent)
	}
}

func TestLookupMissReturnsErrInvalidCoupon(t *testing.T) {
	table := NewTable(map[string]int{"SAVE10": 10})

	_, err := table.Lookup("SAVE99")
	assert.ErrorIs(t, err, inErrors.ErrInvalidCoupon)
}

func TestNewTableNormalizesCodesAndBounds(t *testing.T) {
	table := NewTable(map[string]int{
		"save15":   15,
		"TOOBIG":   101,
		"NEGATIVE": -1,
		"FREE":     100,
	})

	cp, err := table.Lookup("SAVE15")
	assert.NoError(t, err)
	assert.EqualValues(t, 15, cp.Percent)

	cp, err = table.Lookup("FREE")
	assert.NoError(t, err)
	assert.EqualValues(t, 100, cp.Percent)

	_, err = table.Lookup("TOOBIG")
	assert.ErrorIs(t, err, inErrors.ErrInvalidCoupon)
	_, err = table.Lookup("NEGATIVE")
	assert.ErrorIs(t, err, inErrors.ErrInvalidCoupon)
}
