package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate is the number of Quote units per Base unit.
type ExchangeRate struct {
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	Value     decimal.Decimal `json:"value"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// PaymentConfirmation is the gateway's proof of a completed payment.
type PaymentConfirmation struct {
	Reference   string `json:"reference"`
	AmountMinor int64  `json:"amountMinor"`
	Currency    string `json:"currency"`
}

// PaymentOutcome is the result a gateway callback reports.
type PaymentOutcome string

const (
	PaymentSucceeded PaymentOutcome = "success"
	PaymentCancelled PaymentOutcome = "cancelled"
)

// PaymentEvent is the asynchronous success or cancel signal for a checkout.
type PaymentEvent struct {
	Outcome   PaymentOutcome `json:"status"`
	Reference string         `json:"reference"`
}

// PendingCheckout is the server-side snapshot of a started checkout, kept
// until the gateway reports an outcome or the snapshot expires.
type PendingCheckout struct {
	ID               string          `json:"id"`
	BuyerID          string          `json:"buyerId"`
	BuyerEmail       string          `json:"buyerEmail"`
	Items            []OrderItem     `json:"items"`
	ShippingDetails  ShippingDetails `json:"shippingDetails"`
	Total            decimal.Decimal `json:"total"`
	SourceCurrency   string          `json:"sourceCurrency"`
	Rate             decimal.Decimal `json:"rate"`
	AmountMinor      int64           `json:"amountMinor"`
	Currency         string          `json:"currency"`
	Reference        string          `json:"reference"`
	AuthorizationURL string          `json:"authorizationUrl,omitempty"`
	Gateway          string          `json:"gateway"`
	CreatedAt        time.Time       `json:"createdAt"`
	ExpiresAt        time.Time       `json:"expiresAt"`
}

// Quote is a cart total converted for display.
type Quote struct {
	Total          decimal.Decimal `json:"total"`
	SourceCurrency string          `json:"sourceCurrency"`
	Rate           decimal.Decimal `json:"rate"`
	AmountMinor    int64           `json:"amountMinor"`
	AmountMajor    decimal.Decimal `json:"amountMajor"`
	Currency       string          `json:"currency"`
	RateFetchedAt  time.Time       `json:"rateFetchedAt"`
}
