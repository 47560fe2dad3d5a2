// Package paystack implements payment.Gateway against the Paystack
// transactions API. Amounts are exchanged in kobo.
package paystack

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	"github.com/VictorEZCodes/clothing-shop/internal/provider/payment"
	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
	"github.com/VictorEZCodes/clothing-shop/pkg/httpclient"
)

// DefaultBaseURL is the Paystack API root.
const DefaultBaseURL = "https://api.paystack.co"

// Config configures the Paystack gateway.
type Config struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
}

// Gateway is a Paystack-backed payment.Gateway.
type Gateway struct {
	http   *httpclient.CircuitBreakerClient
	cfg    Config
	header http.Header
}

// New creates a Paystack gateway using the given HTTP client.
func New(cfg Config, client *httpclient.CircuitBreakerClient) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Gateway{
		http:   client,
		cfg:    cfg,
		header: http.Header{"Authorization": []string{"Bearer " + cfg.SecretKey}},
	}
}

// Name returns the provider name.
func (g *Gateway) Name() string {
	return "paystack"
}

type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type initializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	GatewayResponse string `json:"gateway_response"`
}

// Initialize opens a transaction and returns its hosted checkout URL.
func (g *Gateway) Initialize(ctx context.Context, input *payment.InitializeInput) (*payment.Session, error) {
	req := initializeRequest{
		Email:       input.Email,
		Amount:      input.AmountMinor,
		Currency:    input.Currency,
		Reference:   input.Reference,
		CallbackURL: g.cfg.CallbackURL,
		Metadata:    input.Metadata,
	}

	var resp envelope[initializeData]
	if err := g.http.DoJSON(ctx, http.MethodPost, g.cfg.BaseURL+"/transaction/initialize", g.header, req, &resp); err != nil {
		return nil, fmt.Errorf("initialize paystack transaction %s: %w", input.Reference, err)
	}
	if !resp.Status {
		return nil, apperrors.PaymentFailed("payment could not be started: " + resp.Message)
	}

	ref := resp.Data.Reference
	if ref == "" {
		ref = input.Reference
	}
	return &payment.Session{
		Reference:        ref,
		AuthorizationURL: resp.Data.AuthorizationURL,
		AccessCode:       resp.Data.AccessCode,
	}, nil
}

// Verify checks the transaction and returns its confirmed amount. Any
// transaction status other than "success" is a failed payment.
func (g *Gateway) Verify(ctx context.Context, reference string) (*domain.PaymentConfirmation, error) {
	var resp envelope[verifyData]
	endpoint := g.cfg.BaseURL + "/transaction/verify/" + url.PathEscape(reference)
	if err := g.http.DoJSON(ctx, http.MethodGet, endpoint, g.header, nil, &resp); err != nil {
		if httpclient.IsUpstreamStatus(err, http.StatusNotFound) {
			return nil, apperrors.PaymentFailed(fmt.Sprintf("payment %s is unknown to the gateway", reference))
		}
		return nil, fmt.Errorf("verify paystack transaction %s: %w", reference, err)
	}
	if !resp.Status {
		return nil, apperrors.PaymentFailed(fmt.Sprintf("payment %s could not be verified: %s", reference, resp.Message))
	}
	if resp.Data.Status != "success" {
		reason := resp.Data.GatewayResponse
		if reason == "" {
			reason = resp.Data.Status
		}
		return nil, apperrors.PaymentFailed(fmt.Sprintf("payment %s was not completed: %s", reference, reason))
	}

	ref := resp.Data.Reference
	if ref == "" {
		ref = reference
	}
	return &domain.PaymentConfirmation{
		Reference:   ref,
		AmountMinor: resp.Data.Amount,
		Currency:    resp.Data.Currency,
	}, nil
}
