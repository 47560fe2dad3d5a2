// Package mock provides a payment gateway that confirms every attempt.
// It is intended for development and testing.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	"github.com/VictorEZCodes/clothing-shop/internal/provider/payment"
	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
)

// Gateway remembers initialized attempts and confirms them in full.
type Gateway struct {
	mu       sync.Mutex
	attempts map[string]payment.InitializeInput
	declined map[string]bool
}

// NewGateway creates a new mock gateway.
func NewGateway() *Gateway {
	return &Gateway{
		attempts: make(map[string]payment.InitializeInput),
		declined: make(map[string]bool),
	}
}

// Name returns the provider name.
func (g *Gateway) Name() string {
	return "mock"
}

// Decline makes a later Verify of reference fail.
func (g *Gateway) Decline(reference string) {
	g.mu.Lock()
	g.declined[reference] = true
	g.mu.Unlock()
}

// Initialize records the attempt and returns a local authorization URL.
func (g *Gateway) Initialize(_ context.Context, input *payment.InitializeInput) (*payment.Session, error) {
	if input.Reference == "" {
		return nil, apperrors.InvalidInput("payment reference is required")
	}

	g.mu.Lock()
	g.attempts[input.Reference] = *input
	g.mu.Unlock()

	return &payment.Session{
		Reference:        input.Reference,
		AuthorizationURL: "https://checkout.mock.local/pay/" + input.Reference,
		AccessCode:       "mock_" + input.Reference,
	}, nil
}

// Verify confirms any initialized reference for its full amount. A
// reference that was never initialized is confirmed with a zero amount, so
// callers exercising the amount-mismatch path can do so.
func (g *Gateway) Verify(_ context.Context, reference string) (*domain.PaymentConfirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.declined[reference] {
		return nil, apperrors.PaymentFailed(fmt.Sprintf("payment %s was declined", reference))
	}
	attempt := g.attempts[reference]
	return &domain.PaymentConfirmation{
		Reference:   reference,
		AmountMinor: attempt.AmountMinor,
		Currency:    attempt.Currency,
	}, nil
}
