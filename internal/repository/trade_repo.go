package repository

import (
	"errors"
	"time"

	"github.com/binopt-server/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrTradeNotFound = errors.New("trade not found")

// TradeRepository handles trade data access. State transitions are
// conditional single-statement writes guarded by status = OPEN, so the
// settlement sweep and a user cancel racing on the same row resolve to
// exactly one winner.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new TradeRepository
func NewTradeRepository(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *TradeRepository) WithTx(tx *gorm.DB) *TradeRepository {
	return &TradeRepository{db: tx}
}

// Transaction runs fn inside a database transaction
func (r *TradeRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// Create inserts a new trade
func (r *TradeRepository) Create(trade *models.Trade) error {
	return r.db.Create(trade).Error
}

// GetByID retrieves a trade by ID
func (r *TradeRepository) GetByID(id uint) (*models.Trade, error) {
	var trade models.Trade
	result := r.db.First(&trade, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, result.Error
	}
	return &trade, nil
}

// GetByIDForUser retrieves a trade by ID scoped to its owner
func (r *TradeRepository) GetByIDForUser(id, userID uint) (*models.Trade, error) {
	var trade models.Trade
	result := r.db.Where("id = ? AND user_id = ?", id, userID).First(&trade)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, result.Error
	}
	return &trade, nil
}

// GetByUser retrieves trades for a user, newest first, optionally filtered
// by status
func (r *TradeRepository) GetByUser(userID uint, status models.TradeStatus, limit, offset int) ([]models.Trade, int64, error) {
	query := r.db.Model(&models.Trade{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var trades []models.Trade
	result := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&trades)
	return trades, total, result.Error
}

// FindExpiredOpen returns OPEN trades whose expiry has passed
func (r *TradeRepository) FindExpiredOpen(now time.Time) ([]models.Trade, error) {
	var trades []models.Trade
	result := r.db.
		Where("status = ? AND expiry_time <= ?", models.TradeStatusOpen, now).
		Order("expiry_time ASC").
		Find(&trades)
	return trades, result.Error
}

// SettleIfOpen applies the settlement outcome if and only if the row is
// still OPEN. It reports whether this call claimed the row; false means a
// concurrent sweep or cancel got there first.
func (r *TradeRepository) SettleIfOpen(id uint, status models.TradeStatus, closePrice, profitLoss decimal.Decimal) (bool, error) {
	result := r.db.Model(&models.Trade{}).
		Where("id = ? AND status = ?", id, models.TradeStatusOpen).
		Updates(map[string]interface{}{
			"status":      status,
			"close_price": closePrice,
			"profit_loss": profitLoss,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DeleteIfCancellable removes the trade if it is still OPEN and owned by
// the user. Soft delete keeps the row for support queries while hiding it
// from every store read. The claimed result distinguishes "already
// settled" from "not found" for the caller.
func (r *TradeRepository) DeleteIfCancellable(id, userID uint) (bool, error) {
	result := r.db.
		Where("id = ? AND user_id = ? AND status = ?", id, userID, models.TradeStatusOpen).
		Delete(&models.Trade{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TradeStats aggregates a user's settled trading performance
type TradeStats struct {
	TotalTrades int64           `json:"total_trades"`
	OpenTrades  int64           `json:"open_trades"`
	Wins        int64           `json:"wins"`
	Losses      int64           `json:"losses"`
	WinRate     float64         `json:"win_rate"`
	NetProfit   decimal.Decimal `json:"net_profit"`
	TotalStaked decimal.Decimal `json:"total_staked"`
}

// Stats computes per-user aggregates via SQL
func (r *TradeRepository) Stats(userID uint) (*TradeStats, error) {
	var row struct {
		Total       int64
		Open        int64
		Wins        int64
		Losses      int64
		NetProfit   decimal.Decimal
		TotalStaked decimal.Decimal
	}

	err := r.db.Model(&models.Trade{}).
		Select(`COUNT(*) as total,
			COALESCE(SUM(CASE WHEN status = 'OPEN' THEN 1 ELSE 0 END), 0) as open,
			COALESCE(SUM(CASE WHEN status = 'WIN' THEN 1 ELSE 0 END), 0) as wins,
			COALESCE(SUM(CASE WHEN status = 'LOSS' THEN 1 ELSE 0 END), 0) as losses,
			COALESCE(SUM(CASE WHEN status != 'OPEN' THEN profit_loss ELSE 0 END), 0) as net_profit,
			COALESCE(SUM(stake_amount), 0) as total_staked`).
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	stats := &TradeStats{
		TotalTrades: row.Total,
		OpenTrades:  row.Open,
		Wins:        row.Wins,
		Losses:      row.Losses,
		NetProfit:   row.NetProfit,
		TotalStaked: row.TotalStaked,
	}
	if settled := row.Wins + row.Losses; settled > 0 {
		stats.WinRate = float64(row.Wins) / float64(settled)
	}
	return stats, nil
}
