package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Cart struct {
	UserID  uuid.UUID `json:"user_id"`
	Items   []Item    `json:"items"`
	Coupon  *Coupon   `json:"coupon,omitempty"`
	Summary Summary   `json:"summary"`
}

type Item struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
	Thumbnail string          `json:"thumbnail,omitempty"`
}

type Coupon struct {
	Code    string `json:"code"`
	Percent int    `json:"percent"`
}

type Summary struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	Shipping        decimal.Decimal `json:"shipping"`
	Tax             decimal.Decimal `json:"tax"`
	DiscountPercent int             `json:"discount_percent"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
}

type OrderSnapshot struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Items      []Item    `json:"items"`
	Summary    Summary   `json:"summary"`
	CouponCode string    `json:"coupon_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Order struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	TxnID     string          `json:"txn_id"`
	Bank      string          `json:"bank"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}
