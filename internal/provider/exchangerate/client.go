// Package exchangerate reads the latest rate from an exchangerate-api style
// feed: GET <base url>/latest/<BASE> returning {"rates":{"<QUOTE>":n}}.
package exchangerate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
	"github.com/VictorEZCodes/clothing-shop/pkg/httpclient"
)

// DefaultBaseURL is the public v4 endpoint used by the storefront.
const DefaultBaseURL = "https://api.exchangerate-api.com/v4"

// latestResponse accepts both the v4 shape (base, rates) and the v6 shape
// (result, base_code, conversion_rates).
type latestResponse struct {
	Result          string                     `json:"result"`
	ErrorType       string                     `json:"error-type"`
	Base            string                     `json:"base"`
	BaseCode        string                     `json:"base_code"`
	TimeLastUpdated int64                      `json:"time_last_updated"`
	Rates           map[string]decimal.Decimal `json:"rates"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
}

// Client implements pricing.RateSource.
type Client struct {
	http    *httpclient.CircuitBreakerClient
	baseURL string
	now     func() time.Time
}

// New creates a feed client. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, http *httpclient.CircuitBreakerClient) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    http,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Latest returns the number of quote units per base unit. FetchedAt is the
// local time of the fetch, not the feed's publication time.
func (c *Client) Latest(ctx context.Context, base, quote string) (domain.ExchangeRate, error) {
	base, quote = strings.ToUpper(base), strings.ToUpper(quote)

	var body latestResponse
	endpoint := c.baseURL + "/latest/" + url.PathEscape(base)
	if err := c.http.DoJSON(ctx, http.MethodGet, endpoint, nil, nil, &body); err != nil {
		return domain.ExchangeRate{}, fmt.Errorf("fetch %s rates: %w", base, err)
	}

	if body.Result == "error" {
		return domain.ExchangeRate{}, apperrors.ServiceUnavailable(
			fmt.Sprintf("exchange rate feed error: %s", body.ErrorType))
	}

	rates := body.Rates
	if len(rates) == 0 {
		rates = body.ConversionRates
	}
	value, ok := rates[quote]
	if !ok {
		return domain.ExchangeRate{}, apperrors.ServiceUnavailable(
			fmt.Sprintf("exchange rate feed has no %s rate for %s", quote, base))
	}

	return domain.ExchangeRate{
		Base:      base,
		Quote:     quote,
		Value:     value,
		FetchedAt: c.now().UTC(),
	}, nil
}
