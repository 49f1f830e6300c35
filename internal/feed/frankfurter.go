package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const frankfurterBaseURL = "https://api.frankfurter.app"

// FrankfurterSource fetches forex rates from the free frankfurter.app API.
// A single USD-based request covers every currency pair; cross rates are
// derived from the two USD legs.
type FrankfurterSource struct {
	client  *resty.Client
	limiter *rate.Limiter
}

// NewFrankfurterSource creates a frankfurter.app forex source
func NewFrankfurterSource(baseURL string) *FrankfurterSource {
	if baseURL == "" {
		baseURL = frankfurterBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &FrankfurterSource{
		client: client,
		// the API asks for no more than a handful of requests per minute
		limiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
}

// Name identifies the source in logs
func (s *FrankfurterSource) Name() string {
	return "frankfurter"
}

type frankfurterLatest struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// Fetch resolves requested BASE/QUOTE pairs from a single USD-based snapshot
func (s *FrankfurterSource) Fetch(ctx context.Context, symbols []string) (map[string]float64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var latest frankfurterLatest
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("from", "USD").
		SetResult(&latest).
		Get("/latest")
	if err != nil {
		return nil, fmt.Errorf("frankfurter latest request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("frankfurter latest request: status %d", resp.StatusCode())
	}

	usdPer := func(currency string) (float64, bool) {
		if currency == "USD" {
			return 1, true
		}
		r, ok := latest.Rates[currency]
		if !ok || r == 0 {
			return 0, false
		}
		return r, true
	}

	result := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		base, quote, found := strings.Cut(symbol, "/")
		if !found {
			continue
		}
		baseRate, okB := usdPer(base)
		quoteRate, okQ := usdPer(quote)
		if !okB || !okQ || baseRate == 0 {
			continue
		}
		// rates are quote-currency per USD, so BASE/QUOTE = quoteRate/baseRate
		result[symbol] = quoteRate / baseRate
	}
	return result, nil
}
