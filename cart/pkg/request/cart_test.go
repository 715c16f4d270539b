package request

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestAddItemRequiresProductId(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	assert.Error(t, validate.StructCtx(context.Background(), AddItem{Quantity: 1}))
	assert.NoError(
		t,
		validate.StructCtx(context.Background(), AddItem{ProductId: "p1", Quantity: 1}),
	)
}

func TestSetQuantityAcceptsZero(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	assert.NoError(t, validate.StructCtx(context.Background(), SetQuantity{Quantity: 0}))
}

func TestConfirmCheckoutRequiresTxnIdAndBank(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	assert.Error(t, validate.StructCtx(context.Background(), ConfirmCheckout{TxnId: "txn-1"}))
	assert.Error(t, validate.StructCtx(context.Background(), ConfirmCheckout{Bank: "BCA"}))
	assert.NoError(
		t,
		validate.StructCtx(context.Background(), ConfirmCheckout{TxnId: "txn-1", Bank: "BCA"}),
	)
}
