package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	"github.com/VictorEZCodes/clothing-shop/internal/repository"
	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
)

// MaxLinesPerCart is the maximum number of distinct products a cart may hold.
const MaxLinesPerCart = 50

// CartService owns each buyer's cart between requests.
type CartService struct {
	repo    repository.CartRepository
	catalog repository.CatalogRepository
	logger  *slog.Logger
	now     func() time.Time
}

// NewCartService creates a new cart service.
func NewCartService(repo repository.CartRepository, catalog repository.CatalogRepository, logger *slog.Logger) *CartService {
	return &CartService{
		repo:    repo,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}
}

// Get retrieves the cart for a buyer. If no cart exists, returns an empty cart.
func (s *CartService) Get(ctx context.Context, buyerID string) (*domain.Cart, error) {
	if buyerID == "" {
		return nil, apperrors.InvalidInput("buyer id is required")
	}

	cart, err := s.repo.Get(ctx, buyerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.NewCart(buyerID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

// AddItem puts productID in the cart at qty, replacing the quantity of an
// existing line. The unit price is taken from the catalog.
func (s *CartService) AddItem(ctx context.Context, buyerID, productID string, qty int) (*domain.Cart, error) {
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	cart, err := s.Get(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if _, exists := cart.FindLine(productID); !exists && len(cart.Lines) >= MaxLinesPerCart {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cart cannot hold more than %d products", MaxLinesPerCart))
	}

	cart.AddItem(*product, qty)
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "cart item set",
		slog.String("buyer_id", buyerID),
		slog.String("product_id", productID),
		slog.Int("quantity", domain.ClampQuantity(qty)),
	)
	return cart, nil
}

// UpdateQuantity changes the quantity of a line already in the cart, clamped
// to at least one.
func (s *CartService) UpdateQuantity(ctx context.Context, buyerID, productID string, qty int) (*domain.Cart, error) {
	cart, err := s.Get(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if !cart.UpdateQuantity(productID, qty) {
		return nil, apperrors.NotFound("cart item", productID)
	}
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem deletes a line. Removing a product not in the cart is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, buyerID, productID string) (*domain.Cart, error) {
	cart, err := s.Get(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if _, ok := cart.FindLine(productID); !ok {
		return cart, nil
	}
	cart.RemoveItem(productID)
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Clear empties the buyer's cart.
func (s *CartService) Clear(ctx context.Context, buyerID string) error {
	if buyerID == "" {
		return apperrors.InvalidInput("buyer id is required")
	}
	if err := s.repo.Delete(ctx, buyerID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *CartService) save(ctx context.Context, cart *domain.Cart) error {
	cart.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, cart); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}
