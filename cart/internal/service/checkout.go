package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shopnest/cart/cart/internal/persistence"
	"github.com/shopnest/cart/cart/internal/pricing"
	"github.com/shopnest/cart/cart/pkg/response"
	inErrors "github.com/shopnest/cart/internal/errors"
	"github.com/shopnest/cart/internal/log"
	"github.com/shopnest/cart/internal/otel"
)

// BuildOrderSnapshot freezes the current cart into an immutable order
// snapshot for checkout. The snapshot is a deep copy, so later cart
// mutations never leak into it. An empty cart cannot be checked out.
func (s *CartService) BuildOrderSnapshot(
	c context.Context,
	userID uuid.UUID,
) (response.OrderSnapshot, error) {
	c, span := otel.Tracer.Start(c, "CartService BuildOrderSnapshot")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService BuildOrderSnapshot").
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyProcess, "building order snapshot").
		Logger()

	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.ensureLoaded(c, userID, sess)

	logger.Info().Msg("building order snapshot")
	if sess.cart.IsEmpty() {
		err := fmt.Errorf("failed building order snapshot with error=%w", inErrors.ErrCartEmpty)
		inErrors.HandleError(err, span)
		logger.Info().Err(err).Msg(err.Error())
		return response.OrderSnapshot{}, err
	}

	items := sess.cart.Items()
	cp, hasCoupon := sess.cart.Coupon()
	percent := 0
	couponCode := ""
	if hasCoupon {
		percent = cp.Percent
		couponCode = cp.Code
	}
	summary := pricing.Compute(items, percent, s.pricing)

	snapshot := response.OrderSnapshot{
		ID:         uuid.New(),
		UserID:     userID,
		Items:      response.NewItems(items),
		Summary:    response.NewSummary(summary),
		CouponCode: couponCode,
		CreatedAt:  time.Now(),
	}
	sess.pending = &snapshot
	logger.Info().
		Str(log.KeyOrderID, snapshot.ID.String()).
		Int(log.KeyCartItems, len(items)).
		Msg("built order snapshot")
	return snapshot, nil
}

// ConfirmCheckout records the pending snapshot as an order and clears the
// cart. The order row is written first; if that fails the cart is untouched
// so the confirmation can be retried.
func (s *CartService) ConfirmCheckout(
	c context.Context,
	userID uuid.UUID,
	txnID string,
	bank string,
) (response.Order, error) {
	c, span := otel.Tracer.Start(c, "CartService ConfirmCheckout")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService ConfirmCheckout").
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyTxnID, txnID).
		Str(log.KeyProcess, "confirming checkout").
		Logger()

	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.ensureLoaded(c, userID, sess)

	logger.Info().Msg("confirming checkout")
	if sess.pending == nil {
		err := fmt.Errorf("failed confirming checkout with error=%w", inErrors.ErrCartEmpty)
		inErrors.HandleError(err, span)
		logger.Info().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	snapshot := *sess.pending

	raw, err := json.Marshal(snapshot)
	if err != nil {
		err = fmt.Errorf("failed marshaling order snapshot with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}

	record := persistence.OrderRecord{
		ID:        snapshot.ID,
		UserID:    userID,
		TxnID:     txnID,
		Bank:      bank,
		Amount:    snapshot.Summary.Total,
		Snapshot:  raw,
		Status:    persistence.OrderStatusProcessing,
		CreatedAt: time.Now(),
	}

	logger = logger.With().Str(log.KeyProcess, "inserting order").Logger()
	logger.Info().Str(log.KeyOrderID, snapshot.ID.String()).Msg("inserting order")
	err = s.orders.InsertOrder(c, record)
	if err != nil {
		err = fmt.Errorf("failed inserting order with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Order{}, err
	}
	logger.Info().Str(log.KeyOrderID, snapshot.ID.String()).Msg("inserted order")

	logger = logger.With().Str(log.KeyProcess, "clearing cart").Logger()
	sess.cart.Clear()
	sess.pending = nil
	sess.appliedSeq = sess.nextSeq
	err = s.adapter.Delete(c, userID)
	if err != nil {
		err = fmt.Errorf("failed deleting persisted cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
	}

	s.notify(Notification{Cart: s.view(userID, sess), Dirty: false})
	return response.NewOrder(record), nil
}

// FindOrdersByUserId returns the user's recorded orders, newest first.
func (s *CartService) FindOrdersByUserId(
	c context.Context,
	userID uuid.UUID,
) ([]response.Order, error) {
	c, span := otel.Tracer.Start(c, "CartService FindOrdersByUserId")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService FindOrdersByUserId").
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyProcess, "finding orders").
		Logger()

	logger.Info().Msg("finding orders")
	records, err := s.orders.FindOrdersByUserId(c, userID)
	if err != nil {
		err = fmt.Errorf("failed finding orders with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Int("ordersCount", len(records)).Msg("found orders")

	orders := make([]response.Order, 0, len(records))
	for _, record := range records {
		orders = append(orders, response.NewOrder(record))
	}
	return orders, nil
}
