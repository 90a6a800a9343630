// Package pending keeps the customer's booking between the redirect to the
// payment provider and the return, keyed by buy order.
package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/altamontana/booking-api/internal/config"
	"github.com/altamontana/booking-api/internal/model"
)

// ErrNotFound is returned by Load when no entry exists for the buy order.
var ErrNotFound = errors.New("pending booking not found")

// Store saves, loads and removes pending bookings.  Implementations must
// only ever return the entry saved under the requested buy order.
type Store interface {
	Save(ctx context.Context, pb model.PendingBooking) error
	Load(ctx context.Context, buyOrder string) (model.PendingBooking, error)
	Delete(ctx context.Context, buyOrder string) error
}

// RedisStore keeps entries as JSON strings with a TTL.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb *redis.Client, cfg config.PendingConfig) *RedisStore {
	prefix := strings.TrimSuffix(cfg.Prefix, ":")
	if prefix == "" {
		prefix = "pending_booking"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(buyOrder string) string {
	return s.prefix + ":" + buyOrder
}

func (s *RedisStore) Save(ctx context.Context, pb model.PendingBooking) error {
	if pb.BuyOrder == "" {
		return errors.New("pending booking without buy order")
	}
	bs, err := json.Marshal(pb)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(pb.BuyOrder), bs, s.ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context, buyOrder string) (model.PendingBooking, error) {
	if buyOrder == "" {
		return model.PendingBooking{}, ErrNotFound
	}
	bs, err := s.rdb.Get(ctx, s.key(buyOrder)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.PendingBooking{}, ErrNotFound
	}
	if err != nil {
		return model.PendingBooking{}, err
	}
	var pb model.PendingBooking
	if err := json.Unmarshal(bs, &pb); err != nil {
		return model.PendingBooking{}, fmt.Errorf("decode pending booking %s: %w", buyOrder, err)
	}
	if pb.BuyOrder != buyOrder {
		return model.PendingBooking{}, ErrNotFound
	}
	return pb, nil
}

func (s *RedisStore) Delete(ctx context.Context, buyOrder string) error {
	return s.rdb.Del(ctx, s.key(buyOrder)).Err()
}

// NopStore is used when Redis is unavailable; every lookup misses and the
// durable booking row takes over.
type NopStore struct{}

func (NopStore) Save(context.Context, model.PendingBooking) error { return nil }
func (NopStore) Load(context.Context, string) (model.PendingBooking, error) {
	return model.PendingBooking{}, ErrNotFound
}
func (NopStore) Delete(context.Context, string) error { return nil }
