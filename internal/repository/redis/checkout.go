package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
)

const (
	checkoutKeyPrefix  = "checkout:"
	checkoutLockPrefix = "checkout-lock:"
)

// CheckoutRepository stores pending checkouts until the payment outcome
// arrives. Entries expire at PendingCheckout.ExpiresAt, or after the default
// TTL when no expiry is set.
type CheckoutRepository struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewCheckoutRepository creates a new Redis-backed checkout store.
func NewCheckoutRepository(client *redis.Client, ttl time.Duration) *CheckoutRepository {
	return &CheckoutRepository{client: client, ttl: ttl, now: time.Now}
}

// Save writes pc, overwriting any checkout with the same ID.
func (r *CheckoutRepository) Save(ctx context.Context, pc *domain.PendingCheckout) error {
	data, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("marshal checkout: %w", err)
	}

	ttl := r.ttl
	if !pc.ExpiresAt.IsZero() {
		ttl = pc.ExpiresAt.Sub(r.now())
		if ttl <= 0 {
			return apperrors.InvalidInput("checkout has already expired")
		}
	}

	if err := r.client.Set(ctx, checkoutKeyPrefix+pc.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set checkout: %w", err)
	}
	return nil
}

// Get loads a pending checkout. Expired and unknown IDs are both NotFound.
func (r *CheckoutRepository) Get(ctx context.Context, id string) (*domain.PendingCheckout, error) {
	data, err := r.client.Get(ctx, checkoutKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("checkout", id)
		}
		return nil, fmt.Errorf("redis get checkout: %w", err)
	}

	var pc domain.PendingCheckout
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("unmarshal checkout: %w", err)
	}
	return &pc, nil
}

// Delete removes a pending checkout. Deleting a missing ID is not an error.
func (r *CheckoutRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, checkoutKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del checkout: %w", err)
	}
	return nil
}

// Lock claims the right to complete checkout id for ttl. It reports false
// while another completion holds the claim.
func (r *CheckoutRepository) Lock(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, checkoutLockPrefix+id, r.now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx checkout lock: %w", err)
	}
	return ok, nil
}

// Unlock releases a claim taken with Lock.
func (r *CheckoutRepository) Unlock(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, checkoutLockPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del checkout lock: %w", err)
	}
	return nil
}
