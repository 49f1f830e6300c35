package repository

import (
	"testing"
	"time"

	"github.com/binopt-server/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTrade(t *testing.T, repo *TradeRepository, userID uint, expiry time.Time) *models.Trade {
	t.Helper()
	trade := &models.Trade{
		Reference:        uuid.New().String(),
		UserID:           userID,
		AssetSymbol:      "BTC/USD",
		Direction:        models.DirectionCall,
		StakeAmount:      decimal.NewFromInt(100),
		PayoutPercentage: 83,
		EntryPrice:       decimal.NewFromFloat(43000.5),
		Status:           models.TradeStatusOpen,
		StartTime:        expiry.Add(-time.Minute),
		ExpiryTime:       expiry,
	}
	require.NoError(t, repo.Create(trade))
	return trade
}

func TestFindExpiredOpen(t *testing.T) {
	repo := NewTradeRepository(newTestDB(t))
	now := time.Now()

	expired := newTestTrade(t, repo, 1, now.Add(-time.Second))
	boundary := newTestTrade(t, repo, 1, now)
	future := newTestTrade(t, repo, 1, now.Add(time.Minute))
	settled := newTestTrade(t, repo, 1, now.Add(-time.Hour))
	claimed, err := repo.SettleIfOpen(settled.ID, models.TradeStatusLoss, decimal.NewFromInt(1), decimal.NewFromInt(-100))
	require.NoError(t, err)
	require.True(t, claimed)

	due, err := repo.FindExpiredOpen(now)
	require.NoError(t, err)

	ids := make([]uint, 0, len(due))
	for _, tr := range due {
		ids = append(ids, tr.ID)
	}
	assert.Contains(t, ids, expired.ID)
	assert.Contains(t, ids, boundary.ID, "expiry exactly at now is due")
	assert.NotContains(t, ids, future.ID)
	assert.NotContains(t, ids, settled.ID)
}

func TestSettleIfOpenClaimsOnce(t *testing.T) {
	repo := NewTradeRepository(newTestDB(t))
	trade := newTestTrade(t, repo, 1, time.Now().Add(-time.Second))

	closePrice := decimal.NewFromFloat(43100.25)
	claimed, err := repo.SettleIfOpen(trade.ID, models.TradeStatusWin, closePrice, decimal.NewFromInt(83))
	require.NoError(t, err)
	assert.True(t, claimed)

	// second attempt must lose the race
	claimed, err = repo.SettleIfOpen(trade.ID, models.TradeStatusLoss, closePrice, decimal.NewFromInt(-100))
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err := repo.GetByID(trade.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusWin, got.Status)
	require.NotNil(t, got.ClosePrice)
	assert.True(t, got.ClosePrice.Equal(closePrice))
	assert.True(t, got.ProfitLoss.Equal(decimal.NewFromInt(83)))
}

func TestDeleteIfCancellable(t *testing.T) {
	repo := NewTradeRepository(newTestDB(t))
	trade := newTestTrade(t, repo, 1, time.Now().Add(time.Minute))

	// wrong owner cannot cancel
	claimed, err := repo.DeleteIfCancellable(trade.ID, 2)
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = repo.DeleteIfCancellable(trade.ID, 1)
	require.NoError(t, err)
	assert.True(t, claimed)

	// soft-deleted row is invisible to reads
	_, err = repo.GetByID(trade.ID)
	assert.ErrorIs(t, err, ErrTradeNotFound)

	// repeating the cancel claims nothing
	claimed, err = repo.DeleteIfCancellable(trade.ID, 1)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestDeleteIfCancellableRejectsSettled(t *testing.T) {
	repo := NewTradeRepository(newTestDB(t))
	trade := newTestTrade(t, repo, 1, time.Now().Add(-time.Second))

	claimed, err := repo.SettleIfOpen(trade.ID, models.TradeStatusLoss, decimal.NewFromInt(1), decimal.NewFromInt(-100))
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = repo.DeleteIfCancellable(trade.ID, 1)
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err := repo.GetByID(trade.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusLoss, got.Status)
}

func TestGetByUserFilterAndOrder(t *testing.T) {
	repo := NewTradeRepository(newTestDB(t))
	now := time.Now()

	first := newTestTrade(t, repo, 1, now.Add(time.Minute))
	second := newTestTrade(t, repo, 1, now.Add(2*time.Minute))
	// nudge created_at so ordering is deterministic
	require.NoError(t, repo.db.Model(second).UpdateColumn("created_at", now.Add(time.Second)).Error)
	require.NoError(t, repo.db.Model(first).UpdateColumn("created_at", now).Error)
	newTestTrade(t, repo, 2, now.Add(time.Minute))

	claimed, err := repo.SettleIfOpen(first.ID, models.TradeStatusWin, decimal.NewFromInt(1), decimal.NewFromInt(83))
	require.NoError(t, err)
	require.True(t, claimed)

	trades, total, err := repo.GetByUser(1, "", 50, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, trades, 2)
	assert.Equal(t, second.ID, trades[0].ID, "newest first")

	open, total, err := repo.GetByUser(1, models.TradeStatusOpen, 50, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, open, 1)
	assert.Equal(t, second.ID, open[0].ID)
}

func TestStats(t *testing.T) {
	repo := NewTradeRepository(newTestDB(t))
	now := time.Now()

	win := newTestTrade(t, repo, 1, now.Add(-time.Minute))
	loss := newTestTrade(t, repo, 1, now.Add(-time.Minute))
	newTestTrade(t, repo, 1, now.Add(time.Minute)) // stays open

	claimed, err := repo.SettleIfOpen(win.ID, models.TradeStatusWin, decimal.NewFromInt(1), decimal.NewFromInt(83))
	require.NoError(t, err)
	require.True(t, claimed)
	claimed, err = repo.SettleIfOpen(loss.ID, models.TradeStatusLoss, decimal.NewFromInt(1), decimal.NewFromInt(-100))
	require.NoError(t, err)
	require.True(t, claimed)

	stats, err := repo.Stats(1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalTrades)
	assert.EqualValues(t, 1, stats.OpenTrades)
	assert.EqualValues(t, 1, stats.Wins)
	assert.EqualValues(t, 1, stats.Losses)
	assert.InDelta(t, 0.5, stats.WinRate, 1e-9)
	assert.True(t, stats.NetProfit.Equal(decimal.NewFromInt(-17)), "got %s", stats.NetProfit)
	assert.True(t, stats.TotalStaked.Equal(decimal.NewFromInt(300)), "got %s", stats.TotalStaked)
}

func TestStatsEmpty(t *testing.T) {
	repo := NewTradeRepository(newTestDB(t))

	stats, err := repo.Stats(42)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.TotalTrades)
	assert.Zero(t, stats.WinRate)
	assert.True(t, stats.NetProfit.IsZero())
}
