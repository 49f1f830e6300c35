package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/binopt-server/internal/config"
	"github.com/binopt-server/internal/middleware"
	"github.com/binopt-server/internal/models"
	"github.com/binopt-server/internal/repository"
	"github.com/binopt-server/internal/service"
	"github.com/binopt-server/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type staticPricer struct {
	price decimal.Decimal
}

func (p staticPricer) CurrentPrice(symbol string) decimal.Decimal {
	return p.price
}

type handlerFixture struct {
	router    *gin.Engine
	db        *gorm.DB
	userRepo  *repository.UserRepository
	tradeRepo *repository.TradeRepository
	user      *models.User
}

// fakeAuth injects the user ID the way the JWT middleware would
func fakeAuth(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, userID)
		c.Next()
	}
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Asset{}, &models.Trade{}))

	require.NoError(t, db.Create(&models.Asset{
		Symbol:        "BTC/USD",
		Name:          "Bitcoin",
		Class:         models.AssetClassCrypto,
		BasePrice:     decimal.NewFromInt(43000),
		Volatility:    0.02,
		DefaultPayout: 85,
	}).Error)

	userRepo := repository.NewUserRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	assetRepo := repository.NewAssetRepository(db)

	user := &models.User{
		Username:     "trader",
		Email:        "trader@example.com",
		PasswordHash: "x",
		Balance:      decimal.NewFromInt(10000),
		ReferralCode: "TESTCODE",
	}
	require.NoError(t, userRepo.Create(user))

	cfg := config.TradingConfig{
		MinStake:            1,
		MinDurationMinutes:  1,
		MaxDurationMinutes:  60,
		CancelWindowSeconds: 30,
	}
	tradeService := service.NewTradeService(
		userRepo, tradeRepo, assetRepo,
		staticPricer{price: decimal.NewFromInt(43000)}, nil, cfg,
	)

	router := gin.New()
	api := router.Group("/api/v1")
	NewTradeHandler(tradeService).RegisterRoutes(api, fakeAuth(user.ID))

	return &handlerFixture{
		router:    router,
		db:        db,
		userRepo:  userRepo,
		tradeRepo: tradeRepo,
		user:      user,
	}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var envelope response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func TestCreateTradeEndpoint(t *testing.T) {
	f := newHandlerFixture(t)

	w, envelope := f.do(t, http.MethodPost, "/api/v1/trades", gin.H{
		"symbol":           "BTC/USD",
		"direction":        "CALL",
		"stake":            100,
		"duration_minutes": 5,
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, response.CodeOK, envelope.Code)

	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, "OPEN", data["status"])
	assert.Equal(t, "BTC/USD", data["asset_symbol"])
	assert.NotEmpty(t, data["reference"])

	balance, err := f.userRepo.Balance(f.user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(9900)))
}

func TestCreateTradeEndpointValidation(t *testing.T) {
	f := newHandlerFixture(t)

	// malformed body
	w, envelope := f.do(t, http.MethodPost, "/api/v1/trades", gin.H{"symbol": "BTC/USD"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeValidation, envelope.Code)

	// domain rejection
	w, envelope = f.do(t, http.MethodPost, "/api/v1/trades", gin.H{
		"symbol":           "BTC/USD",
		"direction":        "SIDEWAYS",
		"stake":            100,
		"duration_minutes": 5,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeValidation, envelope.Code)
}

func TestCreateTradeEndpointInsufficientFunds(t *testing.T) {
	f := newHandlerFixture(t)

	w, envelope := f.do(t, http.MethodPost, "/api/v1/trades", gin.H{
		"symbol":           "BTC/USD",
		"direction":        "PUT",
		"stake":            10001,
		"duration_minutes": 5,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeInsufficientFunds, envelope.Code)
}

func TestCancelTradeEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	trade := f.plantTrade(t, time.Now())

	w, envelope := f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/trades/%d", trade.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeOK, envelope.Code)

	// refunded and gone
	balance, err := f.userRepo.Balance(f.user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(10000)))

	w, envelope = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/trades/%d", trade.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.CodeNotFound, envelope.Code)
}

func TestCancelTradeEndpointWindowExpired(t *testing.T) {
	f := newHandlerFixture(t)
	trade := f.plantTrade(t, time.Now().Add(-31*time.Second))

	w, envelope := f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/trades/%d", trade.ID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeCancelWindowExpired, envelope.Code)
}

func TestCancelTradeEndpointBadID(t *testing.T) {
	f := newHandlerFixture(t)

	w, envelope := f.do(t, http.MethodDelete, "/api/v1/trades/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeValidation, envelope.Code)
}

func TestListTradesEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	f.plantTrade(t, time.Now())
	f.plantTrade(t, time.Now())

	w, envelope := f.do(t, http.MethodGet, "/api/v1/trades?status=OPEN", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	data := envelope.Data.(map[string]interface{})
	assert.EqualValues(t, 2, data["total"])
	assert.Len(t, data["items"], 2)

	w, _ = f.do(t, http.MethodGet, "/api/v1/trades?status=BOGUS", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	f := newHandlerFixture(t)
	f.plantTrade(t, time.Now())

	w, envelope := f.do(t, http.MethodGet, "/api/v1/trades/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	data := envelope.Data.(map[string]interface{})
	assert.EqualValues(t, 1, data["total_trades"])
	assert.EqualValues(t, 1, data["open_trades"])
}

// plantTrade inserts an OPEN trade with the stake already debited
func (f *handlerFixture) plantTrade(t *testing.T, start time.Time) *models.Trade {
	t.Helper()
	require.NoError(t, f.userRepo.Debit(f.user.ID, decimal.NewFromInt(100)))
	trade := &models.Trade{
		Reference:        uuid.NewString(),
		UserID:           f.user.ID,
		AssetSymbol:      "BTC/USD",
		Direction:        models.DirectionCall,
		StakeAmount:      decimal.NewFromInt(100),
		PayoutPercentage: 83,
		EntryPrice:       decimal.NewFromInt(43000),
		Status:           models.TradeStatusOpen,
		StartTime:        start,
		ExpiryTime:       start.Add(5 * time.Minute),
	}
	require.NoError(t, f.tradeRepo.Create(trade))
	return trade
}
