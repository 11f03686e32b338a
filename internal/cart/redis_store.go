package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mg-gouda/e-commerce-sub000/internal/domain"
)

// GuestCartTTL is the sliding expiry for guest carts: refreshed on every
// mutation, so an abandoned cart disappears a day after its last touch.
const GuestCartTTL = 24 * time.Hour

type RedisGuestStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuestStore(client *redis.Client) *RedisGuestStore {
	return &RedisGuestStore{
		client: client,
		ttl:    GuestCartTTL,
	}
}

func (r *RedisGuestStore) Get(ctx context.Context, sessionID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, guestKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var c domain.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	return &c, nil
}

func (r *RedisGuestStore) Put(ctx context.Context, sessionID string, c *domain.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	if err := r.client.Set(ctx, guestKey(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisGuestStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, guestKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func guestKey(sessionID string) string {
	return fmt.Sprintf("cart:session:%s", sessionID)
}
