package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopnest/cart/cart/internal/store"
)

// ErrNotFound reports that no document exists for the user. Callers treat it
// as an empty cart, not a failure.
var ErrNotFound = errors.New("cart document not found")

// Document is the durable shape of a cart: the full serialized line item
// list, the active coupon code (nil when none), a monotonic sequence number
// and the write timestamp. Every save carries the full document, never a
// delta, so a stale completion cannot clobber a newer state.
type Document struct {
	UserID    uuid.UUID        `json:"user_id"`
	Items     []store.LineItem `json:"items"`
	Coupon    *string          `json:"coupon,omitempty"`
	Seq       uint64           `json:"seq"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Adapter is the durable-storage collaborator keyed by user identity. Save is
// best-effort per mutation: it reports whether the write was applied, and a
// document with a sequence number at or below the stored one is skipped so
// the last issued write wins regardless of completion order.
type Adapter interface {
	Load(c context.Context, userID uuid.UUID) (Document, error)
	Save(c context.Context, doc Document) (applied bool, err error)
	Delete(c context.Context, userID uuid.UUID) error
}

// OrderStatusProcessing is the status every freshly confirmed order starts
// in. Settlement happens outside this service.
const OrderStatusProcessing = "Processing"

// OrderRecord is one entry of a user's durable order history, written by the
// checkout confirmation flow before the cart is cleared.
type OrderRecord struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	TxnID     string          `json:"txn_id"`
	Bank      string          `json:"bank"`
	Amount    decimal.Decimal `json:"amount"`
	Snapshot  json.RawMessage `json:"snapshot"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// OrderStore persists confirmed orders.
type OrderStore interface {
	InsertOrder(c context.Context, order OrderRecord) error
	FindOrdersByUserId(c context.Context, userID uuid.UUID) ([]OrderRecord, error)
}
