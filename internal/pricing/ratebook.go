package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
)

// RateSource fetches the current rate of quote per unit of base.
type RateSource interface {
	Latest(ctx context.Context, base, quote string) (domain.ExchangeRate, error)
}

// RateBook holds the single exchange rate used for checkout. It starts empty;
// Current fails with a rate-unavailable error until the first Refresh
// succeeds. A failed Refresh keeps the previous rate.
type RateBook struct {
	source RateSource
	base   string
	quote  string
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	rate *domain.ExchangeRate

	refreshes *prometheus.CounterVec
	age       prometheus.GaugeFunc
}

// NewRateBook creates an empty book converting base into quote.
func NewRateBook(source RateSource, base, quote string, logger *slog.Logger) *RateBook {
	b := &RateBook{
		source: source,
		base:   strings.ToUpper(base),
		quote:  strings.ToUpper(quote),
		logger: logger,
		now:    time.Now,
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_rate_refresh_total",
			Help: "Exchange rate refresh attempts by result.",
		}, []string{"result"}),
	}
	b.age = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "exchange_rate_age_seconds",
		Help: "Seconds since the exchange rate was last fetched, -1 before the first fetch.",
	}, b.ageSeconds)
	return b
}

// Base returns the source currency code.
func (b *RateBook) Base() string { return b.base }

// Quote returns the settlement currency code.
func (b *RateBook) Quote() string { return b.quote }

// Describe implements prometheus.Collector.
func (b *RateBook) Describe(ch chan<- *prometheus.Desc) {
	b.refreshes.Describe(ch)
	b.age.Describe(ch)
}

// Collect implements prometheus.Collector.
func (b *RateBook) Collect(ch chan<- prometheus.Metric) {
	b.refreshes.Collect(ch)
	b.age.Collect(ch)
}

func (b *RateBook) ageSeconds() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.rate == nil {
		return -1
	}
	return b.now().Sub(b.rate.FetchedAt).Seconds()
}

// Current returns the last fetched rate. Staleness is not checked.
func (b *RateBook) Current() (domain.ExchangeRate, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.rate == nil {
		return domain.ExchangeRate{}, apperrors.RateUnavailable(
			fmt.Sprintf("no %s/%s exchange rate has been fetched yet; please retry shortly", b.base, b.quote))
	}
	return *b.rate, nil
}

// Set installs rate directly, bypassing the source.
func (b *RateBook) Set(rate domain.ExchangeRate) {
	if rate.FetchedAt.IsZero() {
		rate.FetchedAt = b.now().UTC()
	}
	b.mu.Lock()
	b.rate = &rate
	b.mu.Unlock()
}

// Refresh pulls a new rate from the source and installs it.
func (b *RateBook) Refresh(ctx context.Context) (domain.ExchangeRate, error) {
	rate, err := b.source.Latest(ctx, b.base, b.quote)
	if err == nil && !rate.Value.IsPositive() {
		err = fmt.Errorf("feed returned non-positive %s rate %s", b.quote, rate.Value)
	}
	if err != nil {
		b.refreshes.WithLabelValues("error").Inc()
		b.logger.WarnContext(ctx, "exchange rate refresh failed",
			slog.String("base", b.base),
			slog.String("quote", b.quote),
			slog.String("error", err.Error()),
		)
		return domain.ExchangeRate{}, fmt.Errorf("refresh %s/%s rate: %w", b.base, b.quote, err)
	}

	b.Set(rate)
	b.refreshes.WithLabelValues("success").Inc()
	b.logger.DebugContext(ctx, "exchange rate refreshed",
		slog.String("base", b.base),
		slog.String("quote", b.quote),
		slog.String("rate", rate.Value.String()),
	)
	return b.Current()
}

// CurrentOrRefresh tries one refresh and falls back to the held rate when
// the feed is unavailable. It fails only if no rate was ever fetched.
func (b *RateBook) CurrentOrRefresh(ctx context.Context) (domain.ExchangeRate, error) {
	if rate, err := b.Refresh(ctx); err == nil {
		return rate, nil
	}
	return b.Current()
}

// Run refreshes the rate every interval until ctx is cancelled. The first
// refresh happens immediately.
func (b *RateBook) Run(ctx context.Context, interval time.Duration) error {
	_, _ = b.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = b.Refresh(ctx)
		}
	}
}

// Check reports whether a rate is available, for readiness checks.
func (b *RateBook) Check(context.Context) error {
	_, err := b.Current()
	return err
}
