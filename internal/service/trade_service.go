package service

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/binopt-server/internal/config"
	"github.com/binopt-server/internal/models"
	"github.com/binopt-server/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrInvalidSymbol       = errors.New("unknown or inactive asset symbol")
	ErrInvalidDirection    = errors.New("direction must be CALL or PUT")
	ErrInvalidStake        = errors.New("stake is below the minimum")
	ErrInvalidDuration     = errors.New("duration must be between 1 and 60 minutes")
	ErrInsufficientFunds   = errors.New("insufficient balance")
	ErrTradeNotFound       = errors.New("trade not found")
	ErrCancelWindowExpired = errors.New("cancellation window has expired")
)

const (
	payoutBase        = 80.0
	payoutRandomSpan  = 10.0
	payoutLengthBonus = 5.0
)

// TradeService orchestrates the trade lifecycle: creation against a live
// price, the expiry sweep that settles OPEN trades, and the time-boxed
// cancellation path. All money movement goes through the ledger's atomic
// conditional updates, and every status transition is claimed with a
// compare-and-swap so settle and cancel can never both act on a trade.
type TradeService struct {
	userRepo  *repository.UserRepository
	tradeRepo *repository.TradeRepository
	assetRepo *repository.AssetRepository
	pricer    Pricer
	notifier  Notifier
	cfg       config.TradingConfig
}

// NewTradeService creates a TradeService. notifier may be nil.
func NewTradeService(
	userRepo *repository.UserRepository,
	tradeRepo *repository.TradeRepository,
	assetRepo *repository.AssetRepository,
	pricer Pricer,
	notifier Notifier,
	cfg config.TradingConfig,
) *TradeService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &TradeService{
		userRepo:  userRepo,
		tradeRepo: tradeRepo,
		assetRepo: assetRepo,
		pricer:    pricer,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// CreateTradeRequest carries the parameters of a new trade
type CreateTradeRequest struct {
	Symbol          string
	Direction       models.TradeDirection
	Stake           decimal.Decimal
	DurationMinutes int
}

// Create validates the request, debits the stake, and records the OPEN
// trade. The debit happens last before the insert, so a failed debit
// leaves no state behind; a failed insert is compensated with a refund.
func (s *TradeService) Create(userID uint, req *CreateTradeRequest) (*models.Trade, error) {
	asset, err := s.assetRepo.GetBySymbol(req.Symbol)
	if err != nil || !asset.IsActive {
		return nil, ErrInvalidSymbol
	}
	if !req.Direction.Valid() {
		return nil, ErrInvalidDirection
	}
	if req.Stake.LessThan(decimal.NewFromFloat(s.cfg.MinStake)) {
		return nil, ErrInvalidStake
	}
	if req.DurationMinutes < s.cfg.MinDurationMinutes || req.DurationMinutes > s.cfg.MaxDurationMinutes {
		return nil, ErrInvalidDuration
	}

	if _, err := s.userRepo.ValidateFunds(userID, req.Stake); err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("validate funds: %w", err)
	}

	entryPrice := s.pricer.CurrentPrice(req.Symbol)
	payout := computePayout(req.DurationMinutes)

	if err := s.userRepo.Debit(userID, req.Stake); err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("debit stake: %w", err)
	}

	now := time.Now()
	trade := &models.Trade{
		Reference:        uuid.NewString(),
		UserID:           userID,
		AssetSymbol:      req.Symbol,
		Direction:        req.Direction,
		StakeAmount:      req.Stake,
		PayoutPercentage: payout,
		EntryPrice:       entryPrice,
		Status:           models.TradeStatusOpen,
		StartTime:        now,
		ExpiryTime:       now.Add(time.Duration(req.DurationMinutes) * time.Minute),
	}

	if err := s.tradeRepo.Create(trade); err != nil {
		// stake was already taken; give it back before reporting failure
		if refundErr := s.userRepo.Credit(userID, req.Stake); refundErr != nil {
			logrus.Errorf("[TradeService] refund after failed insert for user %d: %v", userID, refundErr)
		}
		return nil, fmt.Errorf("insert trade: %w", err)
	}

	logrus.Infof("[TradeService] trade %d opened: user=%d %s %s stake=%s payout=%d%% expiry=%s",
		trade.ID, userID, trade.AssetSymbol, trade.Direction, trade.StakeAmount, payout,
		trade.ExpiryTime.Format(time.RFC3339))

	s.notifier.NotifyUser(userID, EventTradeCreated, trade)
	return trade, nil
}

// computePayout fixes the payout percentage at entry: a base of 80, a
// small bonus for longer durations capped at 5, and a random spread in
// [0,10) for per-trade variability.
func computePayout(durationMinutes int) int {
	bonus := math.Min(float64(durationMinutes)/60.0, payoutLengthBonus)
	return int(math.Round(payoutBase + bonus + rand.Float64()*payoutRandomSpan))
}

// SettleExpired settles every OPEN trade whose expiry has passed. Each row
// is processed independently: a failure is logged and the row stays OPEN
// for the next sweep. Returns the number of trades settled.
func (s *TradeService) SettleExpired(now time.Time) (int, error) {
	trades, err := s.tradeRepo.FindExpiredOpen(now)
	if err != nil {
		return 0, fmt.Errorf("find expired trades: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	settled := 0
	for i := range trades {
		if err := s.settleOne(&trades[i]); err != nil {
			logrus.Errorf("[TradeService] settle trade %d: %v", trades[i].ID, err)
			continue
		}
		settled++
	}
	return settled, nil
}

// settleOne decides the outcome and claims the row before any money moves:
// only the caller whose conditional update flips OPEN to a terminal status
// pays out, so a concurrent sweep or cancel is a harmless no-op here. Claim
// and payout commit together; a failed credit rolls the claim back and the
// trade stays OPEN for the next sweep.
func (s *TradeService) settleOne(trade *models.Trade) error {
	closePrice := s.pricer.CurrentPrice(trade.AssetSymbol)

	// a close exactly at entry is a LOSS for both directions
	win := (trade.Direction == models.DirectionCall && closePrice.GreaterThan(trade.EntryPrice)) ||
		(trade.Direction == models.DirectionPut && closePrice.LessThan(trade.EntryPrice))

	status := models.TradeStatusLoss
	profitLoss := trade.StakeAmount.Neg()
	if win {
		status = models.TradeStatusWin
		profitLoss = trade.PayoutAmount()
	}

	claimed := false
	err := s.tradeRepo.Transaction(func(tx *gorm.DB) error {
		var txErr error
		claimed, txErr = s.tradeRepo.WithTx(tx).SettleIfOpen(trade.ID, status, closePrice, profitLoss)
		if txErr != nil {
			return fmt.Errorf("settlement update: %w", txErr)
		}
		if !claimed || !win {
			return nil
		}
		credit := trade.StakeAmount.Add(profitLoss)
		if txErr := s.userRepo.WithTx(tx).Credit(trade.UserID, credit); txErr != nil {
			return fmt.Errorf("credit payout: %w", txErr)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !claimed {
		// already settled or cancelled elsewhere
		return nil
	}

	trade.Status = status
	trade.ClosePrice = &closePrice
	trade.ProfitLoss = profitLoss

	logrus.Infof("[TradeService] trade %d settled: %s entry=%s close=%s pnl=%s",
		trade.ID, status, trade.EntryPrice, closePrice, profitLoss)

	s.notifier.NotifyUser(trade.UserID, EventTradeResult, trade)
	return nil
}

// Cancel refunds and removes an OPEN trade within the grace window. The
// conditional delete runs before the refund, in one transaction: if the
// sweep settles the trade first the delete claims nothing, and a failed
// refund rolls the delete back.
func (s *TradeService) Cancel(tradeID, userID uint) error {
	trade, err := s.tradeRepo.GetByIDForUser(tradeID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			return ErrTradeNotFound
		}
		return fmt.Errorf("load trade: %w", err)
	}
	if !trade.IsOpen() {
		return ErrTradeNotFound
	}
	if time.Since(trade.StartTime) > s.cfg.CancelWindow() {
		return ErrCancelWindowExpired
	}

	claimed := false
	err = s.tradeRepo.Transaction(func(tx *gorm.DB) error {
		var txErr error
		claimed, txErr = s.tradeRepo.WithTx(tx).DeleteIfCancellable(tradeID, userID)
		if txErr != nil {
			return txErr
		}
		if !claimed {
			return nil
		}
		if txErr := s.userRepo.WithTx(tx).Credit(userID, trade.StakeAmount); txErr != nil {
			return fmt.Errorf("refund stake: %w", txErr)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cancel trade: %w", err)
	}
	if !claimed {
		// lost the race against the settlement sweep
		return ErrTradeNotFound
	}

	logrus.Infof("[TradeService] trade %d cancelled by user %d, refunded %s", tradeID, userID, trade.StakeAmount)
	return nil
}

// GetTrade returns one trade scoped to its owner
func (s *TradeService) GetTrade(tradeID, userID uint) (*models.Trade, error) {
	trade, err := s.tradeRepo.GetByIDForUser(tradeID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	return trade, nil
}

// ListTrades returns a page of the user's trades, newest first
func (s *TradeService) ListTrades(userID uint, status models.TradeStatus, limit, offset int) ([]models.Trade, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.tradeRepo.GetByUser(userID, status, limit, offset)
}

// GetStats returns the user's aggregate trading performance
func (s *TradeService) GetStats(userID uint) (*repository.TradeStats, error) {
	return s.tradeRepo.Stats(userID)
}
