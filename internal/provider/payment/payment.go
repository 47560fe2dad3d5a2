// Package payment defines the boundary to the external payment processor.
package payment

import (
	"context"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
)

// InitializeInput opens a payment attempt for a checkout.
type InitializeInput struct {
	AmountMinor int64
	Currency    string
	Email       string
	Reference   string
	Metadata    map[string]string
}

// Session is an opened payment attempt. The buyer completes it on the
// gateway's hosted page at AuthorizationURL.
type Session struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
}

// Gateway is implemented by every payment processor integration.
type Gateway interface {
	// Name returns the provider name, e.g. "mock" or "paystack".
	Name() string

	// Initialize opens a payment attempt for the given amount.
	Initialize(ctx context.Context, input *InitializeInput) (*Session, error)

	// Verify confirms that the attempt identified by reference was paid.
	// Unpaid or abandoned attempts fail with a payment-failed error.
	Verify(ctx context.Context, reference string) (*domain.PaymentConfirmation, error)
}
