package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VictorEZCodes/clothing-shop/pkg/httputil"
)

func fixedClockStore(cfg RateLimitConfig, now *time.Time) *visitorStore {
	s := newVisitorStore(cfg)
	s.nowFunc = func() time.Time { return *now }
	return s
}

func requestFrom(remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
	req.RemoteAddr = remote
	return req
}

func TestRateLimit_BurstThen429(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := fixedClockStore(RateLimitConfig{RPS: 1, Burst: 2}, &now)
	var logs bytes.Buffer
	h := rateLimit(store, "test", newTestLogger(&logs))(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("10.0.0.1:5000"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("10.0.0.1:5000"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "RATE_LIMITED", resp.Error.Code)
	assert.Contains(t, logs.String(), "rate limit exceeded")
	assert.Contains(t, logs.String(), "ip:10.0.0.1")

	// One token refills after a second.
	now = now.Add(time.Second)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_CallersHaveSeparateBuckets(t *testing.T) {
	now := time.Now()
	store := fixedClockStore(RateLimitConfig{RPS: 1, Burst: 1}, &now)
	h := rateLimit(store, "test", newTestLogger(&bytes.Buffer{}))(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestFrom("10.0.0.2:5000"))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Two users behind one address are limited independently.
	for _, user := range []string{"buyer-1", "buyer-2"} {
		req := requestFrom("10.0.0.1:5000")
		req = req.WithContext(WithClaims(req.Context(), &Claims{UserID: user}))
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, user)
	}
	assert.Equal(t, 4, store.len())
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	h := RateLimit(RateLimitConfig{Name: "off"}, newTestLogger(&bytes.Buffer{}))(okHandler())
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("10.0.0.1:5000"))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestVisitorStore_SweepsIdleCallers(t *testing.T) {
	now := time.Now()
	store := fixedClockStore(RateLimitConfig{RPS: 5, Burst: 5, IdleTTL: time.Minute}, &now)

	store.allow("ip:10.0.0.1")
	store.allow("ip:10.0.0.2")
	assert.Equal(t, 2, store.len())

	now = now.Add(2 * time.Minute)
	store.allow("ip:10.0.0.3")
	assert.Equal(t, 1, store.len())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.1:1", "203.0.113.9"},
		{"garbage forwarded falls through", map[string]string{"X-Forwarded-For": "nope", "X-Real-IP": "198.51.100.4"}, "10.0.0.1:1", "198.51.100.4"},
		{"no port", nil, "192.0.2.7", "192.0.2.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
