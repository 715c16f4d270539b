package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	testRedis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/shopnest/cart/cart/internal/store"
)

func setup(
	t *testing.T,
	c context.Context,
) (*PostgresStore, *pgxpool.Pool, *redis.Client, *postgres.PostgresContainer, *testRedis.RedisContainer) {
	pgContainer, err := postgres.Run(
		c,
		"postgres:16.6-alpine3.21",
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.WithDatabase("postgres"),
		postgres.BasicWaitStrategies(),
		postgres.WithInitScripts(
			filepath.Join("..", "..", "..", "migrations", "000001_create_carts_table.up.sql"),
			filepath.Join("..", "..", "..", "migrations", "000002_create_orders_table.up.sql"),
		),
	)
	if err != nil {
		t.Fatalf("failed running postgres container with error: %s", err)
	}

	pgConnStr, err := pgContainer.ConnectionString(c)
	if err != nil {
		t.Fatalf("failed getting postgres connection string with error: %s", err)
	}

	pgConfig, err := pgxpool.ParseConfig(pgConnStr)
	if err != nil {
		t.Fatalf("failed parsing pgconfig with error: %s", err)
	}

	pool, err := pgxpool.NewWithConfig(c, pgConfig)
	if err != nil {
		t.Fatalf("failed creating postgres pool with error: %s", err)
	}
	if err = pool.Ping(c); err != nil {
		t.Fatalf("failed ping postgres pool with error: %s", err)
	}

	// redis-stack ships the JSON commands the cart cache uses
	redisContainer, err := testRedis.Run(c, "redis/redis-stack-server:7.4.0-v3")
	if err != nil {
		t.Fatalf("failed running redis container with error: %s", err)
	}

	redisConnStr, err := redisContainer.ConnectionString(c)
	if err != nil {
		t.Fatalf("failed getting redis connection string with error: %s", err)
	}

	redisOpt, err := redis.ParseURL(redisConnStr)
	if err != nil {
		t.Fatalf("failed parsing redis connection string with error: %s", err)
	}

	redisClient := redis.NewClient(redisOpt)
	if err = redisClient.Ping(c).Err(); err != nil {
		t.Fatalf("failed ping redis client with error: %s", err)
	}

	return NewPostgresStore(pool, redisClient), pool, redisClient, pgContainer, redisContainer
}

func teardown(
	t *testing.T,
	pool *pgxpool.Pool,
	redisClient *redis.Client,
	pgContainer *postgres.PostgresContainer,
	redisContainer *testRedis.RedisContainer,
) {
	redisClient.Close()
	pool.Close()
	if err := testcontainers.TerminateContainer(pgContainer); err != nil {
		t.Fatalf("failed to terminate container: %s", err)
	}
	if err := testcontainers.TerminateContainer(redisContainer); err != nil {
		t.Fatalf("failed to terminate container: %s", err)
	}
}

func documentFixture(userID uuid.UUID, seq uint64, quantity int64) Document {
	code := "SAVE10"
	return Document{
		UserID: userID,
		Items: []store.LineItem{
			{
				ID:        "p1",
				Title:     "Mouse",
				UnitPrice: decimal.NewFromInt(100),
				Quantity:  quantity,
			},
		},
		Coupon:    &code,
		Seq:       seq,
		UpdatedAt: time.Now().UTC(),
	}
}

func TestPostgresStoreCart(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := context.Background()
	postgresStore, pool, redisClient, pgContainer, redisContainer := setup(t, c)
	defer teardown(t, pool, redisClient, pgContainer, redisContainer)

	t.Run("given no document should return ErrNotFound", func(t *testing.T) {
		_, err := postgresStore.Load(c, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("given saved document should load it back", func(t *testing.T) {
		userId := uuid.New()
		doc := documentFixture(userId, 1, 2)

		applied, err := postgresStore.Save(c, doc)
		assert.NoError(t, err)
		assert.True(t, applied)

		loaded, err := postgresStore.Load(c, userId)
		assert.NoError(t, err)
		assert.EqualValues(t, userId, loaded.UserID)
		assert.EqualValues(t, 1, loaded.Seq)
		assert.Len(t, loaded.Items, 1)
		assert.EqualValues(t, 2, loaded.Items[0].Quantity)
		if assert.NotNil(t, loaded.Coupon) {
			assert.EqualValues(t, "SAVE10", *loaded.Coupon)
		}
	})

	t.Run("given stale sequence number should skip the write", func(t *testing.T) {
		userId := uuid.New()

		applied, err := postgresStore.Save(c, documentFixture(userId, 2, 5))
		assert.NoError(t, err)
		assert.True(t, applied)

		// a save issued earlier but completing later must not clobber
		applied, err = postgresStore.Save(c, documentFixture(userId, 1, 1))
		assert.NoError(t, err)
		assert.False(t, applied)

		loaded, err := postgresStore.Load(c, userId)
		assert.NoError(t, err)
		assert.EqualValues(t, 2, loaded.Seq)
		assert.EqualValues(t, 5, loaded.Items[0].Quantity)
	})

	t.Run("given equal sequence number should skip the write", func(t *testing.T) {
		userId := uuid.New()

		applied, err := postgresStore.Save(c, documentFixture(userId, 3, 1))
		assert.NoError(t, err)
		assert.True(t, applied)

		applied, err = postgresStore.Save(c, documentFixture(userId, 3, 9))
		assert.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("given deleted document should return ErrNotFound", func(t *testing.T) {
		userId := uuid.New()

		applied, err := postgresStore.Save(c, documentFixture(userId, 1, 1))
		assert.NoError(t, err)
		assert.True(t, applied)

		assert.NoError(t, postgresStore.Delete(c, userId))

		_, err = postgresStore.Load(c, userId)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPostgresStoreOrders(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := context.Background()
	postgresStore, pool, redisClient, pgContainer, redisContainer := setup(t, c)
	defer teardown(t, pool, redisClient, pgContainer, redisContainer)

	userId := uuid.New()
	order := OrderRecord{
		ID:        uuid.New(),
		UserID:    userId,
		TxnID:     "txn-1",
		Bank:      "BCA",
		Amount:    decimal.RequireFromString("1260.50"),
		Snapshot:  []byte(`{"items":[]}`),
		Status:    OrderStatusProcessing,
		CreatedAt: time.Now().UTC(),
	}

	assert.NoError(t, postgresStore.InsertOrder(c, order))

	orders, err := postgresStore.FindOrdersByUserId(c, userId)
	assert.NoError(t, err)
	if assert.Len(t, orders, 1) {
		assert.EqualValues(t, order.ID, orders[0].ID)
		assert.EqualValues(t, "txn-1", orders[0].TxnID)
		assert.EqualValues(t, OrderStatusProcessing, orders[0].Status)
		assert.True(t, orders[0].Amount.Equal(order.Amount), orders[0].Amount.String())
	}

	orders, err = postgresStore.FindOrdersByUserId(c, uuid.New())
	assert.NoError(t, err)
	assert.Empty(t, orders)
}
