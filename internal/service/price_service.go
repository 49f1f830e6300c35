package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/binopt-server/internal/config"
	"github.com/binopt-server/internal/feed"
	"github.com/binopt-server/internal/models"
	"github.com/binopt-server/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	// fast tick moves are a fraction of the per-asset volatility so the
	// feed stays alive without swamping the slower source refreshes
	simTickDamping = 0.25

	redisQuoteTTL = 10 * time.Second
)

// Quote is the ephemeral per-asset price snapshot. It is overwritten on
// every update and never persisted.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Trend         string  `json:"trend"`
	Timestamp     int64   `json:"timestamp"`
}

// Pricer is the read model the trade engine consumes
type Pricer interface {
	CurrentPrice(symbol string) decimal.Decimal
}

// PriceService owns the current price per asset symbol. Prices come from
// per-class live sources on independent refresh intervals; any class whose
// fetch fails falls back to a bounded random walk seeded from the last
// known price. A faster simulation tick perturbs all prices between
// refreshes. CurrentPrice never fails: live quote, then last known, then
// the registry base price.
type PriceService struct {
	assetRepo *repository.AssetRepository
	redis     *redis.Client
	notifier  Notifier
	sim       *feed.Simulator
	cfg       config.FeedConfig

	sources map[models.AssetClass]feed.Source

	mu     sync.RWMutex
	quotes map[string]Quote
	assets map[string]models.Asset

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPriceService creates a PriceService. redisClient and notifier may be
// nil; the service then skips the cache mirror or the event push.
func NewPriceService(assetRepo *repository.AssetRepository, redisClient *redis.Client, notifier Notifier, cfg config.FeedConfig) *PriceService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &PriceService{
		assetRepo: assetRepo,
		redis:     redisClient,
		notifier:  notifier,
		sim:       feed.NewSimulator(time.Now().UnixNano()),
		cfg:       cfg,
		sources:   make(map[models.AssetClass]feed.Source),
		quotes:    make(map[string]Quote),
		assets:    make(map[string]models.Asset),
	}
}

// RegisterSource attaches a live feed for one asset class. Classes without
// a source are simulation-only.
func (s *PriceService) RegisterSource(class models.AssetClass, source feed.Source) {
	s.sources[class] = source
}

// Start loads the registry, seeds quotes from base prices, and launches
// the refresh and simulation loops.
func (s *PriceService) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	assets, err := s.assetRepo.GetActive()
	if err != nil {
		return fmt.Errorf("load assets: %w", err)
	}

	s.mu.Lock()
	now := time.Now().UnixMilli()
	for _, asset := range assets {
		s.assets[asset.Symbol] = asset
		base, _ := asset.BasePrice.Round(6).Float64()
		s.quotes[asset.Symbol] = Quote{
			Symbol:    asset.Symbol,
			Price:     base,
			Trend:     "neutral",
			Timestamp: now,
		}
	}
	s.mu.Unlock()

	for class, source := range s.sources {
		s.wg.Add(1)
		go s.refreshLoop(class, source, s.refreshIntervalFor(class))
	}

	s.wg.Add(1)
	go s.simLoop()

	logrus.Infof("[PriceService] started with %d assets, %d live sources", len(assets), len(s.sources))
	return nil
}

// Stop shuts down the refresh loops
func (s *PriceService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	logrus.Infof("[PriceService] stopped")
}

func (s *PriceService) refreshIntervalFor(class models.AssetClass) time.Duration {
	switch class {
	case models.AssetClassForex:
		return s.cfg.ForexRefresh()
	default:
		return s.cfg.CryptoRefresh()
	}
}

func (s *PriceService) refreshLoop(class models.AssetClass, source feed.Source, interval time.Duration) {
	defer s.wg.Done()

	// first refresh right away so trades don't sit on base prices
	s.refreshClass(class, source)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.refreshClass(class, source)
		case <-s.ctx.Done():
			return
		}
	}
}

// refreshClass pulls live prices for one class. On any fetch error the
// whole class is walked by the simulator instead, so the feed never stalls.
func (s *PriceService) refreshClass(class models.AssetClass, source feed.Source) {
	symbols := s.symbolsFor(class)
	if len(symbols) == 0 {
		return
	}

	fetchCtx, cancel := context.WithTimeout(s.ctx, 15*time.Second)
	prices, err := source.Fetch(fetchCtx, symbols)
	cancel()

	if err != nil {
		logrus.Warnf("[PriceService] %s fetch failed, simulating %s: %v", source.Name(), class, err)
		for _, symbol := range symbols {
			s.simulateSymbol(symbol, 1)
		}
		return
	}

	for _, symbol := range symbols {
		if price, ok := prices[symbol]; ok && price > 0 {
			s.applyPrice(symbol, price)
		} else {
			s.simulateSymbol(symbol, 1)
		}
	}
}

// simLoop keeps the feed alive between refreshes: every tick, each price
// moves with a random chance, bounded by a damped per-asset volatility.
func (s *PriceService) simLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SimTick())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.RLock()
			symbols := make([]string, 0, len(s.assets))
			for symbol := range s.assets {
				symbols = append(symbols, symbol)
			}
			s.mu.RUnlock()

			for _, symbol := range symbols {
				s.maybeSimulateSymbol(symbol, simTickDamping, s.cfg.SimMoveChance)
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *PriceService) symbolsFor(class models.AssetClass) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var symbols []string
	for symbol, asset := range s.assets {
		if asset.Class == class {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

// maybeSimulateSymbol rolls the move chance and, when it lands, walks one
// price with damped volatility. Symbols that do not move keep their quote
// untouched so no spurious update is announced.
func (s *PriceService) maybeSimulateSymbol(symbol string, damping, chance float64) {
	s.mu.RLock()
	quote, okQ := s.quotes[symbol]
	asset, okA := s.assets[symbol]
	s.mu.RUnlock()
	if !okQ || !okA {
		return
	}

	next := s.sim.MaybeStep(quote.Price, asset.Volatility*damping, chance)
	if next == quote.Price {
		return
	}
	s.applyPrice(symbol, next)
}

// simulateSymbol walks one price from its last known value, bounded by the
// asset's volatility scaled by damping.
func (s *PriceService) simulateSymbol(symbol string, damping float64) {
	s.mu.RLock()
	quote, okQ := s.quotes[symbol]
	asset, okA := s.assets[symbol]
	s.mu.RUnlock()
	if !okQ || !okA {
		return
	}

	next := s.sim.Step(quote.Price, asset.Volatility*damping)
	s.applyPrice(symbol, next)
}

// applyPrice rounds, stores, mirrors, and announces one price update.
// Rounding policy: price and change to 6 decimal places, change percent
// to 3.
func (s *PriceService) applyPrice(symbol string, price float64) {
	price = roundTo(price, 6)

	s.mu.Lock()
	prev, ok := s.quotes[symbol]
	if !ok {
		s.mu.Unlock()
		return
	}

	change := roundTo(price-prev.Price, 6)
	changePercent := 0.0
	if prev.Price != 0 {
		changePercent = roundTo(change/prev.Price*100, 3)
	}

	trend := "neutral"
	if change > 0 {
		trend = "up"
	} else if change < 0 {
		trend = "down"
	}

	quote := Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePercent,
		Trend:         trend,
		Timestamp:     time.Now().UnixMilli(),
	}
	s.quotes[symbol] = quote
	s.mu.Unlock()

	s.mirrorQuote(quote)
	s.notifier.Broadcast(EventPriceUpdate, quote)
}

// mirrorQuote writes the quote into Redis with a short TTL and publishes
// it on the price_updates channel for out-of-process subscribers.
func (s *PriceService) mirrorQuote(quote Quote) {
	if s.redis == nil {
		return
	}

	key := fmt.Sprintf("price:%s", quote.Symbol)
	s.redis.HSet(s.ctx, key, map[string]interface{}{
		"price":          quote.Price,
		"change":         quote.Change,
		"change_percent": quote.ChangePercent,
		"trend":          quote.Trend,
		"timestamp":      quote.Timestamp,
	})
	s.redis.Expire(s.ctx, key, redisQuoteTTL)
	s.redis.Publish(s.ctx, "price_updates", fmt.Sprintf("%s:%.6f", quote.Symbol, quote.Price))
}

// CurrentPrice returns the price for a symbol as a 6-decimal value. It
// never fails: last known quote first, then the registry base price, then
// zero for a symbol the registry has never seen.
func (s *PriceService) CurrentPrice(symbol string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if quote, ok := s.quotes[symbol]; ok {
		return decimal.NewFromFloat(quote.Price).Round(6)
	}
	if asset, ok := s.assets[symbol]; ok {
		return asset.BasePrice.Round(6)
	}
	return decimal.Zero
}

// GetQuote returns the full quote for one symbol
func (s *PriceService) GetQuote(symbol string) (Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quote, ok := s.quotes[symbol]
	return quote, ok
}

// Snapshot returns the current quote for every tracked asset
func (s *PriceService) Snapshot() []Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quotes := make([]Quote, 0, len(s.quotes))
	for _, quote := range s.quotes {
		quotes = append(quotes, quote)
	}
	return quotes
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
