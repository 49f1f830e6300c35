package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	binanceBaseURL = "https://api.binance.com/api/v3"

	// Binance allows 1200 request weight per minute; the ticker endpoint is
	// cheap but we stay far below the limit anyway.
	binanceRatePerSec = 5
)

// BinanceSource fetches spot prices for crypto assets from the Binance
// public ticker endpoint. Registry symbols use the SLASH/QUOTE form
// (BTC/USD) and are mapped to Binance USDT pairs.
type BinanceSource struct {
	client  *resty.Client
	limiter *rate.Limiter
}

// NewBinanceSource creates a Binance REST price source
func NewBinanceSource(baseURL string) *BinanceSource {
	if baseURL == "" {
		baseURL = binanceBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &BinanceSource{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(binanceRatePerSec), binanceRatePerSec),
	}
}

// Name identifies the source in logs
func (s *BinanceSource) Name() string {
	return "binance"
}

type binanceTicker struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Fetch pulls the full ticker list once and picks out the requested symbols
func (s *BinanceSource) Fetch(ctx context.Context, symbols []string) (map[string]float64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var tickers []binanceTicker
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&tickers).
		Get("/ticker/price")
	if err != nil {
		return nil, fmt.Errorf("binance ticker request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("binance ticker request: status %d", resp.StatusCode())
	}

	byPair := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		price, err := strconv.ParseFloat(t.Price, 64)
		if err != nil {
			continue
		}
		byPair[t.Symbol] = price
	}

	result := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		if price, ok := byPair[toBinancePair(symbol)]; ok {
			result[symbol] = price
		}
	}
	return result, nil
}

// toBinancePair maps BTC/USD to BTCUSDT
func toBinancePair(symbol string) string {
	base, quote, found := strings.Cut(symbol, "/")
	if !found {
		return symbol
	}
	if quote == "USD" {
		quote = "USDT"
	}
	return base + quote
}
