package pending

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altamontana/booking-api/internal/config"
	"github.com/altamontana/booking-api/internal/model"
)

func setupStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, config.PendingConfig{Prefix: "pending_booking", TTL: time.Hour}), mr
}

func samplePending(buyOrder string) model.PendingBooking {
	return model.PendingBooking{
		BuyOrder: buyOrder,
		Experience: model.ExperienceSnapshot{
			ID:    7,
			Title: "Cajón del Maipo",
			Price: decimal.NewFromInt(125000),
		},
		CustomerName:  "Ana",
		CustomerEmail: "ana@example.com",
		Participants:  2,
		CreatedAt:     time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC),
	}
}

func TestRedisStore_SaveLoadDelete(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, samplePending("ORD123")))
	assert.True(t, mr.Exists("pending_booking:ORD123"))
	assert.Equal(t, time.Hour, mr.TTL("pending_booking:ORD123"))

	got, err := store.Load(ctx, "ORD123")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.CustomerName)
	assert.Equal(t, 2, got.Participants)
	assert.True(t, got.Experience.Price.Equal(decimal.NewFromInt(125000)))

	require.NoError(t, store.Delete(ctx, "ORD123"))
	_, err = store.Load(ctx, "ORD123")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_KeyedByBuyOrder(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, samplePending("ORD-A")))

	_, err := store.Load(ctx, "ORD-B")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Load(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Expiry(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, samplePending("ORD1")))
	mr.FastForward(2 * time.Hour)

	_, err := store.Load(ctx, "ORD1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_RejectsMissingBuyOrder(t *testing.T) {
	store, _ := setupStore(t)
	assert.Error(t, store.Save(context.Background(), model.PendingBooking{}))
}
