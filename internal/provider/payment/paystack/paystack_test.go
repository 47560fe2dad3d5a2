package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VictorEZCodes/clothing-shop/internal/provider/payment"
	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
	"github.com/VictorEZCodes/clothing-shop/pkg/httpclient"
)

var _ payment.Gateway = (*Gateway)(nil)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	base := httpclient.New(httpclient.Config{Timeout: 2 * time.Second, MaxConnsPerHost: 2})
	cb := httpclient.NewCircuitBreakerClient(base, httpclient.DefaultCircuitBreakerConfig("paystack-"+t.Name()), logger)

	return New(Config{
		BaseURL:     server.URL + "/",
		SecretKey:   "sk_test_123",
		CallbackURL: "https://shop.example.com/checkout/callback",
	}, cb)
}

func TestInitialize_Success(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "buyer@example.com", body["email"])
		assert.Equal(t, float64(3000000), body["amount"])
		assert.Equal(t, "NGN", body["currency"])
		assert.Equal(t, "chk_ref-1", body["reference"])
		assert.Equal(t, "https://shop.example.com/checkout/callback", body["callback_url"])

		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"chk_ref-1"}}`))
	})

	session, err := g.Initialize(context.Background(), &payment.InitializeInput{
		AmountMinor: 3000000, Currency: "NGN", Email: "buyer@example.com", Reference: "chk_ref-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "chk_ref-1", session.Reference)
	assert.Equal(t, "https://checkout.paystack.com/abc", session.AuthorizationURL)
	assert.Equal(t, "abc", session.AccessCode)
	assert.Equal(t, "paystack", g.Name())
}

func TestInitialize_StatusFalse(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid Email Address Passed"}`))
	})

	_, err := g.Initialize(context.Background(), &payment.InitializeInput{AmountMinor: 1, Reference: "r"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPaymentFailed))
	assert.Contains(t, err.Error(), "Invalid Email Address Passed")
}

func TestInitialize_Unauthorized(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	})

	_, err := g.Initialize(context.Background(), &payment.InitializeInput{AmountMinor: 1, Reference: "r"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail))
	assert.Contains(t, err.Error(), "Invalid key")
}

func TestVerify_Success(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/transaction/verify/ref-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"status":"success","reference":"ref-1","amount":3000000,"currency":"NGN","gateway_response":"Successful"}}`))
	})

	conf, err := g.Verify(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "ref-1", conf.Reference)
	assert.Equal(t, int64(3000000), conf.AmountMinor)
	assert.Equal(t, "NGN", conf.Currency)
}

func TestVerify_Abandoned(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"status":"abandoned","reference":"ref-2","amount":3000000,"gateway_response":"The transaction was not completed"}}`))
	})

	_, err := g.Verify(context.Background(), "ref-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPaymentFailed))
	assert.Contains(t, err.Error(), "not completed")
}

func TestVerify_UnknownReference(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
	})

	_, err := g.Verify(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPaymentFailed))
}

func TestVerify_ServerError(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := g.Verify(context.Background(), "ref-3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail))
}

func TestNew_Defaults(t *testing.T) {
	g := New(Config{SecretKey: "sk"}, nil)
	assert.Equal(t, DefaultBaseURL, g.cfg.BaseURL)
}
