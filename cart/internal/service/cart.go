package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shopnest/cart/cart/internal/catalog"
	"github.com/shopnest/cart/cart/internal/coupon"
	"github.com/shopnest/cart/cart/internal/persistence"
	"github.com/shopnest/cart/cart/internal/pricing"
	"github.com/shopnest/cart/cart/internal/store"
	"github.com/shopnest/cart/cart/pkg/response"
	inErrors "github.com/shopnest/cart/internal/errors"
	"github.com/shopnest/cart/internal/log"
	"github.com/shopnest/cart/internal/otel"
)

// Notification is handed to registered hooks after every successful
// mutation. Dirty reports that persistence has been failing past the retry
// threshold and the in-memory cart has unsaved changes.
type Notification struct {
	Cart  response.Cart
	Dirty bool
}

type Hook func(Notification)

// session is the in-memory cart for one user. The in-memory copy is the
// source of truth for the session; persistence is a best-effort mirror.
// nextSeq numbers save attempts, appliedSeq is the highest completed save
// accepted so far: a completion with a lower number is discarded so the last
// issued write wins regardless of completion order.
type session struct {
	mu           sync.Mutex
	cart         *store.Store
	loaded       bool
	nextSeq      uint64
	appliedSeq   uint64
	saveFailures int
	dirty        bool
	pending      *response.OrderSnapshot
}

type CartService struct {
	adapter persistence.Adapter
	orders  persistence.OrderStore
	catalog *catalog.Client
	coupons coupon.Table
	pricing pricing.Config

	saveRetryThreshold int

	mu       sync.Mutex
	sessions map[uuid.UUID]*session

	hookMu sync.RWMutex
	hooks  []Hook
}

func NewCartService(
	adapter persistence.Adapter,
	orders persistence.OrderStore,
	catalogClient *catalog.Client,
	coupons coupon.Table,
	pricingConfig pricing.Config,
	saveRetryThreshold int,
) *CartService {
	if saveRetryThreshold < 1 {
		saveRetryThreshold = 1
	}
	return &CartService{
		adapter:            adapter,
		orders:             orders,
		catalog:            catalogClient,
		coupons:            coupons,
		pricing:            pricingConfig,
		saveRetryThreshold: saveRetryThreshold,
		sessions:           map[uuid.UUID]*session{},
	}
}

// Subscribe registers a change-notification hook. Hooks run synchronously
// after each successful mutation with the current item list and summary, and
// must not call back into the service.
func (s *CartService) Subscribe(hook Hook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hooks = append(s.hooks, hook)
}

func (s *CartService) notify(n Notification) {
	s.hookMu.RLock()
	defer s.hookMu.RUnlock()
	for _, hook := range s.hooks {
		hook(n)
	}
}

func (s *CartService) session(userID uuid.UUID) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{cart: store.New()}
		s.sessions[userID] = sess
	}
	return sess
}

// ensureLoaded hydrates the session from the persistence adapter on first
// touch. NotFound means an empty cart. A corrupted document resets to an
// empty cart, degraded but functional. A transient failure serves the
// in-memory copy and leaves the session unloaded so the next access retries,
// unless local mutations already happened.
func (s *CartService) ensureLoaded(c context.Context, userID uuid.UUID, sess *session) {
	if sess.loaded || sess.nextSeq > 0 {
		return
	}

	c, span := otel.Tracer.Start(c, "CartService ensureLoaded")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService ensureLoaded").
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyProcess, "loading cart").
		Logger()

	logger.Info().Msg("loading cart")
	doc, err := s.adapter.Load(c, userID)
	switch {
	case err == nil:
	case errors.Is(err, persistence.ErrNotFound):
		logger.Info().Msg("no persisted cart, starting empty")
		sess.loaded = true
		return
	case errors.Is(err, inErrors.ErrCartCorrupted):
		err = fmt.Errorf("failed loading cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg("persisted cart is corrupted, resetting to empty")
		sess.cart.Clear()
		sess.loaded = true
		return
	default:
		err = fmt.Errorf("failed loading cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	logger.Info().Msg("loaded cart")

	logger = logger.With().Str(log.KeyProcess, "hydrating session").Logger()
	sess.cart.Replace(doc.Items)
	if doc.Coupon != nil {
		cp, err := s.coupons.Lookup(*doc.Coupon)
		if err != nil {
			logger.Info().
				Str(log.KeyCoupon, *doc.Coupon).
				Msg("persisted coupon no longer in table, dropping")
		} else {
			sess.cart.ApplyCoupon(cp)
		}
	}
	if doc.Seq > sess.appliedSeq {
		sess.nextSeq = doc.Seq
		sess.appliedSeq = doc.Seq
	}
	sess.loaded = true
	logger.Info().
		Int(log.KeyCartItems, len(doc.Items)).
		Uint64(log.KeySeq, doc.Seq).
		Msg("hydrated session")
}

func (s *CartService) view(userID uuid.UUID, sess *session) response.Cart {
	items := sess.cart.Items()
	cp, hasCoupon := sess.cart.Coupon()
	percent := 0
	if hasCoupon {
		percent = cp.Percent
	}
	summary := pricing.Compute(items, percent, s.pricing)
	return response.NewCart(userID, items, cp, hasCoupon, summary)
}

// persist mirrors the full current document to the adapter asynchronously.
// Each attempt carries its own sequence number; completions are applied in
// sequence order and stale ones discarded.
func (s *CartService) persist(c context.Context, sess *session, doc persistence.Document) {
	c = context.WithoutCancel(c)
	go func() {
		c, span := otel.Tracer.Start(c, "CartService persist")
		defer span.End()

		logger := zerolog.Ctx(c).
			With().
			Str(log.KeyTag, "CartService persist").
			Str(log.KeyUserID, doc.UserID.String()).
			Uint64(log.KeySeq, doc.Seq).
			Logger()

		applied, err := s.adapter.Save(c, doc)

		sess.mu.Lock()
		defer sess.mu.Unlock()
		if err != nil {
			sess.saveFailures++
			err = fmt.Errorf("failed saving cart with error=%w", err)
			inErrors.HandleError(err, span)
			logger.Error().
				Int("saveFailures", sess.saveFailures).
				Err(err).
				Msg(err.Error())
			if sess.saveFailures >= s.saveRetryThreshold && !sess.dirty {
				sess.dirty = true
				logger.Warn().Msg("save failures past threshold, marking cart dirty")
				s.notify(Notification{Cart: s.view(doc.UserID, sess), Dirty: true})
			}
			return
		}

		sess.saveFailures = 0
		if doc.Seq <= sess.appliedSeq {
			logger.Info().
				Uint64(log.KeySavedSeq, sess.appliedSeq).
				Msg("discarding stale save completion")
			return
		}
		sess.appliedSeq = doc.Seq
		if sess.dirty {
			sess.dirty = false
			s.notify(Notification{Cart: s.view(doc.UserID, sess), Dirty: false})
		}
		if !applied {
			logger.Info().Msg("save skipped by store, newer document already persisted")
			return
		}
		logger.Info().Msg("saved cart")
	}()
}

func (s *CartService) document(userID uuid.UUID, sess *session) persistence.Document {
	sess.nextSeq++
	doc := persistence.Document{
		UserID:    userID,
		Items:     sess.cart.Items(),
		Seq:       sess.nextSeq,
		UpdatedAt: time.Now(),
	}
	if cp, ok := sess.cart.Coupon(); ok {
		code := cp.Code
		doc.Coupon = &code
	}
	return doc
}

func (s *CartService) FindCart(c context.Context, userID uuid.UUID) response.Cart {
	c, span := otel.Tracer.Start(c, "CartService FindCart")
	defer span.End()

	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.ensureLoaded(c, userID, sess)
	view := s.view(userID, sess)
	zerolog.Ctx(c).
		Info().
		Str(log.KeyTag, "CartService FindCart").
		Str(log.KeyUserID, userID.String()).
		Int(log.KeyCartItems, len(view.Items)).
		Any(log.KeySummary, view.Summary).
		Msg("found cart")
	return view
}

func (s *CartService) AddItem(
	c context.Context,
	userID uuid.UUID,
	product store.Product,
	quantityDelta int64,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService AddItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService AddItem").
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyProductID, product.ID).
		Int64(log.KeyQuantity, quantityDelta).
		Logger()

	// a request carrying only the product id is resolved against the catalog
	if s.catalog != nil && product.Title == "" && product.UnitPrice.IsZero() {
		logger = logger.With().Str(log.KeyProcess, "resolving product").Logger()
		logger.Info().Msg("resolving product from catalog")
		c = logger.WithContext(c)
		resolved, err := s.catalog.FindProductById(c, product.ID)
		if err != nil {
			err = fmt.Errorf("failed resolving product with error=%w", err)
			inErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.Cart{}, err
		}
		product = resolved
		logger.Info().Msg("resolved product from catalog")
	}

	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.ensureLoaded(c, userID, sess)

	logger = logger.With().Str(log.KeyProcess, "adding item").Logger()
	logger.Info().Msg("adding item")
	err := sess.cart.AddItem(product, quantityDelta)
	if err != nil {
		err = fmt.Errorf("failed adding item with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("added item")

	view := s.view(userID, sess)
	s.persist(c, sess, s.document(userID, sess))
	s.notify(Notification{Cart: view, Dirty: sess.dirty})
	return view, nil
}

func (s *CartService) SetQuantity(
	c context.Context,
	userID uuid.UUID,
	itemID string,
	quantity float64,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService SetQuantity")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService SetQuantity").
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyItemID, itemID).
		Float64(log.KeyQuantity, quantity).
		Logger()

	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.ensureLoaded(c, userID, sess)

	logger = logger.With().Str(log.KeyProcess, "setting quantity").Logger()
	logger.Info().Msg("setting quantity")
	err := sess.cart.SetQuantity(itemID, quantity)
	if err != nil {
		err = fmt.Errorf("failed setting quantity with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("set quantity")

	view := s.view(userID, sess)
	s.persist(c, sess, s.document(userID, sess))
	s.notify(Notification{Cart: view, Dirty: sess.dirty})
	return view, nil
}

func (s *CartService) RemoveItem(
	c context.Context,
	userID uuid.UUID,
	itemID string,
) response.Cart {
	c, span := otel.Tracer.Start(c, "CartService RemoveItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService RemoveItem").
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyItemID, itemID).
		Str(log.KeyProcess, "removing item").
		Logger()

	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.ensureLoaded(c, userID, sess)

	logger.Info().Msg("removing item")
	sess.cart.RemoveItem(itemID)
	logger.Info().Msg("removed item")

	view := s.view(userID, sess)
	s.persist(c, sess, s.document(userID, sess))
	s.notify(Notification{Cart: view, Dirty: sess.dirty})
	return view
}

// ApplyCoupon resolves the code against the coupon table. A miss clears any
// active coupon and returns ErrInvalidCoupon for the caller to report inline.
func (s *CartService) ApplyCoupon(
	c context.Context,
	userID uuid.UUID,
	code string,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService ApplyCoupon")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService ApplyCoupon").
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyCoupon, code).
		Str(log.KeyProcess, "applying coupon").
		Logger()

	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.ensureLoaded(c, userID, sess)

	logger.Info().Msg("applying coupon")
	cp, err := s.coupons.Lookup(code)
	if err != nil {
		err = fmt.Errorf("failed applying coupon with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Info().Err(err).Msg(err.Error())
		sess.cart.ClearCoupon()
		view := s.view(userID, sess)
		s.persist(c, sess, s.document(userID, sess))
		s.notify(Notification{Cart: view, Dirty: sess.dirty})
		return view, err
	}
	sess.cart.ApplyCoupon(cp)
	logger.Info().Msg("applied coupon")

	view := s.view(userID, sess)
	s.persist(c, sess, s.document(userID, sess))
	s.notify(Notification{Cart: view, Dirty: sess.dirty})
	return view, nil
}

func (s *CartService) RemoveCoupon(c context.Context, userID uuid.UUID) response.Cart {
	c, span := otel.Tracer.Start(c, "CartService RemoveCoupon")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService RemoveCoupon").
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyProcess, "removing coupon").
		Logger()

	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.ensureLoaded(c, userID, sess)

	logger.Info().Msg("removing coupon")
	sess.cart.ClearCoupon()
	logger.Info().Msg("removed coupon")

	view := s.view(userID, sess)
	s.persist(c, sess, s.document(userID, sess))
	s.notify(Notification{Cart: view, Dirty: sess.dirty})
	return view
}

// Clear empties the cart and the remote document. Only the checkout
// confirmation and logout paths call this.
func (s *CartService) Clear(c context.Context, userID uuid.UUID) error {
	c, span := otel.Tracer.Start(c, "CartService Clear")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService Clear").
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyProcess, "clearing cart").
		Logger()

	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	logger.Info().Msg("clearing cart")
	sess.cart.Clear()
	sess.pending = nil
	sess.loaded = true
	sess.appliedSeq = sess.nextSeq
	logger.Info().Msg("cleared cart")

	logger = logger.With().Str(log.KeyProcess, "deleting persisted cart").Logger()
	logger.Info().Msg("deleting persisted cart")
	err := s.adapter.Delete(c, userID)
	if err != nil {
		err = fmt.Errorf("failed deleting persisted cart with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("deleted persisted cart")

	s.notify(Notification{Cart: s.view(userID, sess), Dirty: false})
	return nil
}
