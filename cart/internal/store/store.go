package store

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/shopnest/cart/cart/internal/coupon"
	inErrors "github.com/shopnest/cart/internal/errors"
)

// LineItem is one product entry in a cart. UnitPrice is locked in at add-time
// and never re-fetched from the catalog.
type LineItem struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
	Thumbnail string          `json:"thumbnail,omitempty"`
}

// Product is the catalog-side input to AddItem.
type Product struct {
	ID        string
	Title     string
	UnitPrice decimal.Decimal
	Thumbnail string
}

// Store holds the line items and the active coupon for one user session.
// Items are keyed by product id so duplicates are structurally impossible;
// the order slice preserves insertion order for display. Store is not
// goroutine safe, callers serialize access per session.
type Store struct {
	items     map[string]*LineItem
	order     []string
	coupon    coupon.Coupon
	hasCoupon bool
}

func New() *Store {
	return &Store{items: map[string]*LineItem{}}
}

// AddItem inserts the product as a new line item with quantity equal to the
// delta, or increments the existing item's quantity, keeping the title, price
// and thumbnail captured when the item was first added.
func (s *Store) AddItem(p Product, quantityDelta int64) error {
	if p.ID == "" {
		return fmt.Errorf("product id is empty: %w", inErrors.ErrInvalidProduct)
	}
	if p.UnitPrice.IsNegative() {
		return fmt.Errorf(
			"product price=%s is negative: %w",
			p.UnitPrice.String(),
			inErrors.ErrInvalidProduct,
		)
	}
	if quantityDelta < 1 {
		quantityDelta = 1
	}

	if existing, ok := s.items[p.ID]; ok {
		existing.Quantity += quantityDelta
		return nil
	}
	s.items[p.ID] = &LineItem{
		ID:        p.ID,
		Title:     p.Title,
		UnitPrice: p.UnitPrice,
		Quantity:  quantityDelta,
		Thumbnail: p.Thumbnail,
	}
	s.order = append(s.order, p.ID)
	return nil
}

// SetQuantity stores max(1, floor(quantity)). Out-of-range input is clamped,
// not rejected.
func (s *Store) SetQuantity(id string, quantity float64) error {
	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("itemId=%s: %w", id, inErrors.ErrItemNotFound)
	}
	item.Quantity = ClampQuantity(quantity)
	return nil
}

// RemoveItem deletes the line item. Removing an absent id is a no-op: a
// concurrent removal from another tab is a normal race, not a fault.
func (s *Store) RemoveItem(id string) {
	if _, ok := s.items[id]; !ok {
		return
	}
	delete(s.items, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Replace rehydrates the store from an externally persisted item list. The
// document may have been written by older clients, so items are normalized
// (defaulted fields, duplicate ids merged) before they become authoritative.
func (s *Store) Replace(items []LineItem) {
	s.items = map[string]*LineItem{}
	s.order = nil
	for _, item := range Merge(Normalize(items)) {
		item := item
		s.items[item.ID] = &item
		s.order = append(s.order, item.ID)
	}
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []LineItem {
	items := make([]LineItem, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, *s.items[id])
	}
	return items
}

func (s *Store) IsEmpty() bool {
	return len(s.items) == 0
}

// ApplyCoupon sets the active coupon. At most one coupon is active at a time;
// applying replaces any previous one.
func (s *Store) ApplyCoupon(cp coupon.Coupon) {
	s.coupon = cp
	s.hasCoupon = true
}

// ClearCoupon returns the store to the explicit no-coupon state.
func (s *Store) ClearCoupon() {
	s.coupon = coupon.Coupon{}
	s.hasCoupon = false
}

// Coupon reports the active coupon. Absence is a distinct state, never an
// empty code left behind in storage.
func (s *Store) Coupon() (coupon.Coupon, bool) {
	return s.coupon, s.hasCoupon
}

// Clear empties the cart and drops the active coupon. Only checkout
// completion and logout call this.
func (s *Store) Clear() {
	s.items = map[string]*LineItem{}
	s.order = nil
	s.ClearCoupon()
}

// ClampQuantity applies the quantity clamp law: max(1, floor(q)), with
// non-finite input treated as 1.
func ClampQuantity(q float64) int64 {
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 1
	}
	floored := math.Floor(q)
	if floored < 1 {
		return 1
	}
	return int64(floored)
}

// Normalize applies the hydration defaults observed in legacy documents:
// untitled items get a placeholder title, malformed prices become zero and
// quantities are clamped to at least 1. Items without an id are dropped.
func Normalize(items []LineItem) []LineItem {
	normalized := make([]LineItem, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if item.Title == "" {
			item.Title = "Untitled"
		}
		if item.UnitPrice.IsNegative() {
			item.UnitPrice = decimal.Zero
		}
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		normalized = append(normalized, item)
	}
	return normalized
}

// Merge collapses duplicate ids by summing quantities, keeping the
// first-seen title, price and thumbnail and the first-seen position. It is a
// pure function and idempotent: merging an already merged list is a copy.
func Merge(items []LineItem) []LineItem {
	merged := make([]LineItem, 0, len(items))
	index := map[string]int{}
	for _, item := range items {
		if at, ok := index[item.ID]; ok {
			merged[at].Quantity += item.Quantity
			continue
		}
		index[item.ID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}
