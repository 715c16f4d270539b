package response

import (
	"github.com/google/uuid"

	"github.com/shopnest/cart/cart/internal/coupon"
	"github.com/shopnest/cart/cart/internal/persistence"
	"github.com/shopnest/cart/cart/internal/pricing"
	"github.com/shopnest/cart/cart/internal/store"
)

func NewOrder(record persistence.OrderRecord) Order {
	return Order{
		ID:        record.ID,
		UserID:    record.UserID,
		TxnID:     record.TxnID,
		Bank:      record.Bank,
		Amount:    record.Amount,
		Status:    record.Status,
		CreatedAt: record.CreatedAt,
	}
}

func NewItems(items []store.LineItem) []Item {
	mapped := make([]Item, len(items))
	for i, item := range items {
		mapped[i] = Item{
			ID:        item.ID,
			Title:     item.Title,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Thumbnail: item.Thumbnail,
		}
	}
	return mapped
}

func NewSummary(s pricing.Summary) Summary {
	rounded := s.Display()
	return Summary{
		Subtotal:        rounded.Subtotal,
		Shipping:        rounded.Shipping,
		Tax:             rounded.Tax,
		DiscountPercent: rounded.DiscountPercent,
		Discount:        rounded.Discount,
		Total:           rounded.Total,
	}
}

func NewCart(
	userID uuid.UUID,
	items []store.LineItem,
	cp coupon.Coupon,
	hasCoupon bool,
	summary pricing.Summary,
) Cart {
	cart := Cart{
		UserID:  userID,
		Items:   NewItems(items),
		Summary: NewSummary(summary),
	}
	if hasCoupon {
		cart.Coupon = &Coupon{Code: cp.Code, Percent: cp.Percent}
	}
	return cart
}
