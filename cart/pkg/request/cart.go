package request

import (
	"github.com/shopspring/decimal"
)

type AddItem struct {
	ProductId string          `validate:"required" json:"product_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Thumbnail string          `json:"thumbnail"`
	Quantity  int64           `json:"quantity"`
}

type SetQuantity struct {
	// zero and negative values are accepted and clamped by the store
	Quantity float64 `json:"quantity"`
}

type ApplyCoupon struct {
	Code string `validate:"required" json:"code"`
}

type ConfirmCheckout struct {
	TxnId string `validate:"required" json:"txn_id"`
	Bank  string `validate:"required" json:"bank"`
}
