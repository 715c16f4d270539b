package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/shopnest/cart/cart/internal/cache"
	inErrors "github.com/shopnest/cart/internal/errors"
	"github.com/shopnest/cart/internal/log"
	"github.com/shopnest/cart/internal/otel"
)

const (
	queryFindCart = `SELECT items, coupon, seq, updated_at FROM carts WHERE user_id = $1`
	queryUpsertCart = `INSERT INTO carts (user_id, items, coupon, seq, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE
SET items = EXCLUDED.items,
    coupon = EXCLUDED.coupon,
    seq = EXCLUDED.seq,
    updated_at = EXCLUDED.updated_at
WHERE carts.seq < EXCLUDED.seq`
	queryDeleteCart = `DELETE FROM carts WHERE user_id = $1`
	queryInsertOrder = `INSERT INTO orders (id, user_id, txn_id, bank, amount, snapshot, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	queryFindOrders = `SELECT id, user_id, txn_id, bank, amount, snapshot, status, created_at
FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
)

// PostgresStore is the production Adapter: one JSONB document per user in
// postgres as the durable copy, mirrored into a redis JSON cache on reads and
// applied writes. The upsert is conditional on the sequence number, which
// makes it idempotent and safe against out-of-order completions.
type PostgresStore struct {
	pool  *pgxpool.Pool
	cache *redis.Client
}

func NewPostgresStore(pool *pgxpool.Pool, cache *redis.Client) *PostgresStore {
	return &PostgresStore{pool: pool, cache: cache}
}

func (s *PostgresStore) Load(c context.Context, userID uuid.UUID) (Document, error) {
	c, span := otel.Tracer.Start(c, "PostgresStore Load")
	defer span.End()

	cacheKey := fmt.Sprintf(cache.KeyCarts, userID.String())

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "PostgresStore Load").
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyCacheKey, cacheKey).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "finding cart in cache").Logger()
	logger.Info().Msg("finding cart in cache")
	jsonCache, err := s.cache.JSONGet(c, cacheKey).Result()
	if err == nil && jsonCache != "" {
		logger.Info().Msg("found cart in cache")

		logger = logger.With().Str(log.KeyProcess, "unmarshaling cache").Logger()
		doc := Document{}
		err = json.Unmarshal([]byte(jsonCache), &doc)
		if err == nil {
			return doc, nil
		}
		err = fmt.Errorf("failed unmarshaling cache with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
	}

	logger = logger.With().Str(log.KeyProcess, "finding cart in db").Logger()
	logger.Info().Msg("finding cart in db")
	doc := Document{UserID: userID}
	var itemsRaw []byte
	err = s.pool.QueryRow(c, queryFindCart, userID).
		Scan(&itemsRaw, &doc.Coupon, &doc.Seq, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("userId=%s: %w", userID.String(), ErrNotFound)
	}
	if err != nil {
		err = fmt.Errorf(
			"failed finding cart in db with error=%w: %w",
			err,
			inErrors.ErrTransientStore,
		)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Document{}, err
	}
	logger.Info().Msg("found cart in db")

	logger = logger.With().Str(log.KeyProcess, "unmarshaling items").Logger()
	err = json.Unmarshal(itemsRaw, &doc.Items)
	if err != nil {
		err = fmt.Errorf(
			"failed unmarshaling items with error=%w: %w",
			err,
			inErrors.ErrCartCorrupted,
		)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return Document{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "inserting cart in cache").Logger()
	logger.Info().Msg("inserting cart in cache")
	err = s.cache.JSONSet(c, cacheKey, "$", doc).Err()
	if err != nil {
		err = fmt.Errorf("failed inserting cart in cache with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
	} else {
		logger.Info().Msg("inserted cart in cache")
	}

	return doc, nil
}

func (s *PostgresStore) Save(c context.Context, doc Document) (bool, error) {
	c, span := otel.Tracer.Start(c, "PostgresStore Save")
	defer span.End()

	cacheKey := fmt.Sprintf(cache.KeyCarts, doc.UserID.String())

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "PostgresStore Save").
		Str(log.KeyUserID, doc.UserID.String()).
		Uint64(log.KeySeq, doc.Seq).
		Str(log.KeyCacheKey, cacheKey).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "marshaling items").Logger()
	itemsRaw, err := json.Marshal(doc.Items)
	if err != nil {
		err = fmt.Errorf("failed marshaling items with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return false, err
	}

	logger = logger.With().Str(log.KeyProcess, "upserting cart to db").Logger()
	logger.Info().Msg("upserting cart to db")
	tag, err := s.pool.Exec(
		c,
		queryUpsertCart,
		doc.UserID,
		itemsRaw,
		doc.Coupon,
		doc.Seq,
		doc.UpdatedAt,
	)
	if err != nil {
		err = fmt.Errorf(
			"failed upserting cart to db with error=%w: %w",
			err,
			inErrors.ErrTransientStore,
		)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return false, err
	}
	if tag.RowsAffected() == 0 {
		logger.Info().Msg("skipped stale cart write")
		return false, nil
	}
	logger.Info().Msg("upserted cart to db")

	logger = logger.With().Str(log.KeyProcess, "inserting cart to cache").Logger()
	logger.Info().Msg("inserting cart to cache")
	err = s.cache.JSONSet(c, cacheKey, "$", doc).Err()
	if err != nil {
		err = fmt.Errorf("failed inserting cart to cache with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
	} else {
		logger.Info().Msg("inserted cart to cache")
	}

	return true, nil
}

func (s *PostgresStore) Delete(c context.Context, userID uuid.UUID) error {
	c, span := otel.Tracer.Start(c, "PostgresStore Delete")
	defer span.End()

	cacheKey := fmt.Sprintf(cache.KeyCarts, userID.String())

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "PostgresStore Delete").
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyCacheKey, cacheKey).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "deleting cart from db").Logger()
	logger.Info().Msg("deleting cart from db")
	_, err := s.pool.Exec(c, queryDeleteCart, userID)
	if err != nil {
		err = fmt.Errorf(
			"failed deleting cart from db with error=%w: %w",
			err,
			inErrors.ErrTransientStore,
		)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("deleted cart from db")

	logger = logger.With().Str(log.KeyProcess, "deleting cart from cache").Logger()
	logger.Info().Msg("deleting cart from cache")
	err = s.cache.JSONDel(c, cacheKey, "$").Err()
	if err != nil {
		err = fmt.Errorf("failed deleting cart from cache with error=%w", err)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
	} else {
		logger.Info().Msg("deleted cart from cache")
	}

	return nil
}

func (s *PostgresStore) InsertOrder(c context.Context, order OrderRecord) error {
	c, span := otel.Tracer.Start(c, "PostgresStore InsertOrder")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "PostgresStore InsertOrder").
		Str(log.KeyUserID, order.UserID.String()).
		Str(log.KeyOrderID, order.ID.String()).
		Str(log.KeyProcess, "inserting order to db").
		Logger()

	logger.Info().Msg("inserting order to db")
	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	amount := pgtype.Numeric{
		Int:              order.Amount.Coefficient(),
		Exp:              order.Amount.Exponent(),
		InfinityModifier: pgtype.Finite,
		Valid:            true,
	}
	_, err := s.pool.Exec(
		c,
		queryInsertOrder,
		order.ID,
		order.UserID,
		order.TxnID,
		order.Bank,
		amount,
		[]byte(order.Snapshot),
		order.Status,
		createdAt,
	)
	if err != nil {
		err = fmt.Errorf(
			"failed inserting order to db with error=%w: %w",
			err,
			inErrors.ErrTransientStore,
		)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("inserted order to db")

	return nil
}

func (s *PostgresStore) FindOrdersByUserId(
	c context.Context,
	userID uuid.UUID,
) ([]OrderRecord, error) {
	c, span := otel.Tracer.Start(c, "PostgresStore FindOrdersByUserId")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "PostgresStore FindOrdersByUserId").
		Str(log.KeyUserID, userID.String()).
		Str(log.KeyProcess, "finding orders in db").
		Logger()

	logger.Info().Msg("finding orders in db")
	rows, err := s.pool.Query(c, queryFindOrders, userID)
	if err != nil {
		err = fmt.Errorf(
			"failed finding orders in db with error=%w: %w",
			err,
			inErrors.ErrTransientStore,
		)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	defer rows.Close()

	orders := []OrderRecord{}
	for rows.Next() {
		order := OrderRecord{}
		var snapshotRaw []byte
		var amount pgtype.Numeric
		err = rows.Scan(
			&order.ID,
			&order.UserID,
			&order.TxnID,
			&order.Bank,
			&amount,
			&snapshotRaw,
			&order.Status,
			&order.CreatedAt,
		)
		if err != nil {
			err = fmt.Errorf("failed scanning order with error=%w", err)
			inErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return nil, err
		}
		order.Amount = decimal.NewFromBigInt(amount.Int, amount.Exp)
		order.Snapshot = json.RawMessage(snapshotRaw)
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf(
			"failed iterating orders with error=%w: %w",
			err,
			inErrors.ErrTransientStore,
		)
		inErrors.HandleError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Info().Msgf("found %d orders in db", len(orders))

	return orders, nil
}
