package repository

import (
	"context"
	"time"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
)

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create inserts a new order and its items into the store atomically.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by its unique identifier, including items.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// ListByBuyer returns the buyer's orders, newest first.
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)

	// ListAll returns every order, newest first.
	ListAll(ctx context.Context) ([]domain.Order, error)

	// UpdateStatus overwrites the status of an order.
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error
}

// CatalogRepository reads the products and accounts that orders reference.
type CatalogRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// GetProducts returns the products that still exist, keyed by id.
	GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error)

	GetBuyer(ctx context.Context, id string) (*domain.Buyer, error)

	// GetBuyers returns the buyers that exist, keyed by id.
	GetBuyers(ctx context.Context, ids []string) (map[string]domain.Buyer, error)
}

// CartRepository defines the interface for cart persistence operations.
type CartRepository interface {
	// Get retrieves a cart by its buyer ID.
	Get(ctx context.Context, buyerID string) (*domain.Cart, error)

	// Save persists a cart, overwriting any existing cart for the buyer.
	Save(ctx context.Context, cart *domain.Cart) error

	// Delete removes a buyer's cart. Deleting a missing cart is not an error.
	Delete(ctx context.Context, buyerID string) error
}

// CheckoutRepository holds pending checkouts until the gateway reports back.
type CheckoutRepository interface {
	Save(ctx context.Context, pc *domain.PendingCheckout) error
	Get(ctx context.Context, id string) (*domain.PendingCheckout, error)
	Delete(ctx context.Context, id string) error

	// Lock claims checkout id for one completion attempt; false means the
	// claim is already held. Unlock releases it.
	Lock(ctx context.Context, id string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, id string) error
}

// SentLog records which notifications have been claimed for delivery.
type SentLog interface {
	// Claim marks key as sent and reports whether this call made the claim.
	// A false result means another attempt already owns the key.
	Claim(ctx context.Context, key string) (bool, error)
}
