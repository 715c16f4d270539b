package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/shopnest/cart/cart/internal/coupon"
	"github.com/shopnest/cart/cart/internal/persistence"
	"github.com/shopnest/cart/cart/internal/pricing"
	"github.com/shopnest/cart/cart/internal/store"
	inErrors "github.com/shopnest/cart/internal/errors"
)

// fakeAdapter is an in-memory Adapter with the same last-issued-wins upsert
// rule as the postgres store. Saves can be gated per sequence number so tests
// can force completions to land out of order.
type fakeAdapter struct {
	mu      sync.Mutex
	docs    map[uuid.UUID]persistence.Document
	release map[uint64]chan struct{}
	loadDoc *persistence.Document
	loadErr error
	saveErr error
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		docs:    map[uuid.UUID]persistence.Document{},
		release: map[uint64]chan struct{}{},
	}
}

func (f *fakeAdapter) gate(seq uint64) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.release[seq] = ch
	return ch
}

func (f *fakeAdapter) Load(
	c context.Context,
	userID uuid.UUID,
) (persistence.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return persistence.Document{}, f.loadErr
	}
	if f.loadDoc != nil {
		return *f.loadDoc, nil
	}
	doc, ok := f.docs[userID]
	if !ok {
		return persistence.Document{}, persistence.ErrNotFound
	}
	return doc, nil
}

func (f *fakeAdapter) Save(
	c context.Context,
	doc persistence.Document,
) (bool, error) {
	f.mu.Lock()
	gate := f.release[doc.Seq]
	saveErr := f.saveErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if saveErr != nil {
		return false, saveErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.docs[doc.UserID]; ok && doc.Seq <= stored.Seq {
		return false, nil
	}
	f.docs[doc.UserID] = doc
	return true, nil
}

func (f *fakeAdapter) Delete(c context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, userID)
	return nil
}

func (f *fakeAdapter) saved(userID uuid.UUID) (persistence.Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[userID]
	return doc, ok
}

type fakeOrderStore struct {
	mu        sync.Mutex
	orders    []persistence.OrderRecord
	insertErr error
}

func (f *fakeOrderStore) InsertOrder(c context.Context, order persistence.OrderRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.orders = append(f.orders, order)
	return nil
}

func (f *fakeOrderStore) FindOrdersByUserId(
	c context.Context,
	userID uuid.UUID,
) ([]persistence.OrderRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	orders := []persistence.OrderRecord{}
	for _, order := range f.orders {
		if order.UserID == userID {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func newTestService(adapter *fakeAdapter, orders *fakeOrderStore) *CartService {
	return NewCartService(
		adapter,
		orders,
		nil,
		coupon.NewTable(map[string]int{"SAVE10": 10, "SAVE15": 15, "SAVE20": 20}),
		pricing.NewConfig(10.0, 0.05),
		2,
	)
}

func mouse() store.Product {
	return store.Product{ID: "p1", Title: "Mouse", UnitPrice: decimal.NewFromInt(100)}
}

func TestOutOfOrderSaveCompletionsLastIssuedWins(t *testing.T) {
	adapter := newFakeAdapter()
	svc := newTestService(adapter, &fakeOrderStore{})
	userId := uuid.New()
	c := context.Background()

	gate1 := adapter.gate(1)
	gate2 := adapter.gate(2)

	_, err := svc.AddItem(c, userId, mouse(), 1)
	assert.NoError(t, err)
	_, err = svc.AddItem(c, userId, mouse(), 1)
	assert.NoError(t, err)

	// the second mutation's save completes first
	close(gate2)
	assert.Eventually(t, func() bool {
		doc, ok := adapter.saved(userId)
		return ok && doc.Seq == 2
	}, time.Second, 5*time.Millisecond)

	// the first mutation's save completes late and must be discarded
	close(gate1)
	assert.Eventually(t, func() bool {
		sess := svc.session(userId)
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.appliedSeq == 2
	}, time.Second, 5*time.Millisecond)

	doc, ok := adapter.saved(userId)
	assert.True(t, ok)
	assert.EqualValues(t, 2, doc.Seq)
	assert.Len(t, doc.Items, 1)
	assert.EqualValues(t, 2, doc.Items[0].Quantity)
}

func TestSaveFailuresKeepOptimisticStateAndFlagDirty(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.saveErr = inErrors.ErrTransientStore
	svc := newTestService(adapter, &fakeOrderStore{})
	userId := uuid.New()
	c := context.Background()

	notifications := make(chan Notification, 16)
	svc.Subscribe(func(n Notification) { notifications <- n })

	_, err := svc.AddItem(c, userId, mouse(), 1)
	assert.NoError(t, err)
	_, err = svc.AddItem(c, userId, mouse(), 1)
	assert.NoError(t, err)

	// threshold is 2: the second failed save marks the session dirty
	assert.Eventually(t, func() bool {
		sess := svc.session(userId)
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.dirty
	}, time.Second, 5*time.Millisecond)

	cart := svc.FindCart(c, userId)
	assert.Len(t, cart.Items, 1)
	assert.EqualValues(t, 2, cart.Items[0].Quantity)

	sawDirty := false
	for done := false; !done; {
		select {
		case n := <-notifications:
			if n.Dirty {
				sawDirty = true
				done = true
			}
		case <-time.After(time.Second):
			done = true
		}
	}
	assert.True(t, sawDirty)

	_, ok := adapter.saved(userId)
	assert.False(t, ok)
}

func TestLoadNotFoundStartsEmpty(t *testing.T) {
	svc := newTestService(newFakeAdapter(), &fakeOrderStore{})

	cart := svc.FindCart(context.Background(), uuid.New())
	assert.Empty(t, cart.Items)
	assert.Nil(t, cart.Coupon)
	assert.True(t, cart.Summary.Total.IsZero())
}

func TestLoadCorruptedResetsToEmpty(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.loadErr = inErrors.ErrCartCorrupted
	svc := newTestService(adapter, &fakeOrderStore{})
	userId := uuid.New()
	c := context.Background()

	cart := svc.FindCart(c, userId)
	assert.Empty(t, cart.Items)

	// the session stays usable after the reset
	cart, err := svc.AddItem(c, userId, mouse(), 1)
	assert.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestLoadHydratesItemsAndCoupon(t *testing.T) {
	adapter := newFakeAdapter()
	code := "SAVE10"
	adapter.loadDoc = &persistence.Document{
		UserID: uuid.New(),
		Items: []store.LineItem{
			{ID: "p1", Title: "Mouse", UnitPrice: decimal.NewFromInt(100), Quantity: 1},
			{ID: "p1", Title: "Mouse", UnitPrice: decimal.NewFromInt(100), Quantity: 2},
		},
		Coupon: &code,
		Seq:    7,
	}
	svc := newTestService(adapter, &fakeOrderStore{})

	cart := svc.FindCart(context.Background(), uuid.New())

	assert.Len(t, cart.Items, 1)
	assert.EqualValues(t, 3, cart.Items[0].Quantity)
	if assert.NotNil(t, cart.Coupon) {
		assert.EqualValues(t, "SAVE10", cart.Coupon.Code)
	}
}

func TestApplyCouponUnknownCodeClearsCoupon(t *testing.T) {
	svc := newTestService(newFakeAdapter(), &fakeOrderStore{})
	userId := uuid.New()
	c := context.Background()

	_, err := svc.AddItem(c, userId, mouse(), 1)
	assert.NoError(t, err)

	cart, err := svc.ApplyCoupon(c, userId, "save10")
	assert.NoError(t, err)
	if assert.NotNil(t, cart.Coupon) {
		assert.EqualValues(t, "SAVE10", cart.Coupon.Code)
		assert.EqualValues(t, 10, cart.Coupon.Percent)
	}

	cart, err = svc.ApplyCoupon(c, userId, "SAVE99")
	assert.ErrorIs(t, err, inErrors.ErrInvalidCoupon)
	assert.Nil(t, cart.Coupon)
	assert.True(t, cart.Summary.Discount.IsZero())
	assert.Len(t, cart.Items, 1)
}

func TestBuildOrderSnapshotIsImmutable(t *testing.T) {
	svc := newTestService(newFakeAdapter(), &fakeOrderStore{})
	userId := uuid.New()
	c := context.Background()

	_, err := svc.AddItem(c, userId, mouse(), 1)
	assert.NoError(t, err)
	_, err = svc.ApplyCoupon(c, userId, "SAVE10")
	assert.NoError(t, err)

	snapshot, err := svc.BuildOrderSnapshot(c, userId)
	assert.NoError(t, err)
	assert.EqualValues(t, userId, snapshot.UserID)
	assert.EqualValues(t, "SAVE10", snapshot.CouponCode)
	assert.Len(t, snapshot.Items, 1)
	assert.EqualValues(t, 1, snapshot.Items[0].Quantity)

	// later mutations must not leak into the snapshot
	_, err = svc.AddItem(c, userId, mouse(), 5)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, snapshot.Items[0].Quantity)
}

func TestBuildOrderSnapshotEmptyCart(t *testing.T) {
	svc := newTestService(newFakeAdapter(), &fakeOrderStore{})

	_, err := svc.BuildOrderSnapshot(context.Background(), uuid.New())
	assert.ErrorIs(t, err, inErrors.ErrCartEmpty)
}

func TestConfirmCheckoutRecordsOrderAndClearsCart(t *testing.T) {
	adapter := newFakeAdapter()
	orderStore := &fakeOrderStore{}
	svc := newTestService(adapter, orderStore)
	userId := uuid.New()
	c := context.Background()

	_, err := svc.AddItem(c, userId, mouse(), 2)
	assert.NoError(t, err)
	snapshot, err := svc.BuildOrderSnapshot(c, userId)
	assert.NoError(t, err)

	order, err := svc.ConfirmCheckout(c, userId, "txn-1", "BCA")
	assert.NoError(t, err)
	assert.EqualValues(t, snapshot.ID, order.ID)
	assert.EqualValues(t, "txn-1", order.TxnID)
	assert.EqualValues(t, persistence.OrderStatusProcessing, order.Status)
	assert.True(t, order.Amount.Equal(snapshot.Summary.Total))

	cart := svc.FindCart(c, userId)
	assert.Empty(t, cart.Items)

	orders, err := svc.FindOrdersByUserId(c, userId)
	assert.NoError(t, err)
	assert.Len(t, orders, 1)

	// confirming again without a fresh snapshot fails
	_, err = svc.ConfirmCheckout(c, userId, "txn-2", "BCA")
	assert.ErrorIs(t, err, inErrors.ErrCartEmpty)
}

func TestConfirmCheckoutInsertFailureKeepsCart(t *testing.T) {
	orderStore := &fakeOrderStore{insertErr: inErrors.ErrTransientStore}
	svc := newTestService(newFakeAdapter(), orderStore)
	userId := uuid.New()
	c := context.Background()

	_, err := svc.AddItem(c, userId, mouse(), 1)
	assert.NoError(t, err)
	_, err = svc.BuildOrderSnapshot(c, userId)
	assert.NoError(t, err)

	_, err = svc.ConfirmCheckout(c, userId, "txn-1", "BCA")
	assert.ErrorIs(t, err, inErrors.ErrTransientStore)

	cart := svc.FindCart(c, userId)
	assert.Len(t, cart.Items, 1)
}
