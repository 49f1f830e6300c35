package handler

import (
	"errors"
	"strconv"

	"github.com/binopt-server/internal/middleware"
	"github.com/binopt-server/internal/models"
	"github.com/binopt-server/internal/service"
	"github.com/binopt-server/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TradeHandler handles trade API requests
type TradeHandler struct {
	tradeService *service.TradeService
}

// NewTradeHandler creates a new TradeHandler
func NewTradeHandler(tradeService *service.TradeService) *TradeHandler {
	return &TradeHandler{tradeService: tradeService}
}

// RegisterRoutes registers trade routes behind the auth middleware
func (h *TradeHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	trades := rg.Group("/trades", authMiddleware)
	{
		trades.POST("", h.Create)
		trades.GET("", h.List)
		trades.GET("/stats", h.Stats)
		trades.GET("/:id", h.Get)
		trades.DELETE("/:id", h.Cancel)
	}
}

// Create opens a new trade
// POST /api/v1/trades
func (h *TradeHandler) Create(c *gin.Context) {
	var req struct {
		Symbol          string  `json:"symbol" binding:"required"`
		Direction       string  `json:"direction" binding:"required"`
		Stake           float64 `json:"stake" binding:"required,gt=0"`
		DurationMinutes int     `json:"duration_minutes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	trade, err := h.tradeService.Create(middleware.GetUserID(c), &service.CreateTradeRequest{
		Symbol:          req.Symbol,
		Direction:       models.TradeDirection(req.Direction),
		Stake:           decimal.NewFromFloat(req.Stake),
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		h.handleTradeError(c, err)
		return
	}

	response.Created(c, trade)
}

// Cancel cancels an OPEN trade within the grace window
// DELETE /api/v1/trades/:id
func (h *TradeHandler) Cancel(c *gin.Context) {
	tradeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid trade id")
		return
	}

	if err := h.tradeService.Cancel(uint(tradeID), middleware.GetUserID(c)); err != nil {
		h.handleTradeError(c, err)
		return
	}

	response.Success(c, gin.H{"cancelled": true})
}

// Get returns one trade
// GET /api/v1/trades/:id
func (h *TradeHandler) Get(c *gin.Context) {
	tradeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid trade id")
		return
	}

	trade, err := h.tradeService.GetTrade(uint(tradeID), middleware.GetUserID(c))
	if err != nil {
		h.handleTradeError(c, err)
		return
	}

	response.Success(c, trade)
}

// List returns a page of the user's trades
// GET /api/v1/trades?status=OPEN&limit=50&offset=0
func (h *TradeHandler) List(c *gin.Context) {
	status := models.TradeStatus(c.Query("status"))
	switch status {
	case "", models.TradeStatusOpen, models.TradeStatusWin, models.TradeStatusLoss:
	default:
		response.BadRequest(c, "invalid status filter")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	trades, total, err := h.tradeService.ListTrades(middleware.GetUserID(c), status, limit, offset)
	if err != nil {
		response.InternalError(c, "failed to list trades")
		return
	}

	response.SuccessPaginated(c, trades, total, limit, offset)
}

// Stats returns the user's aggregate performance
// GET /api/v1/trades/stats
func (h *TradeHandler) Stats(c *gin.Context) {
	stats, err := h.tradeService.GetStats(middleware.GetUserID(c))
	if err != nil {
		response.InternalError(c, "failed to compute stats")
		return
	}

	response.Success(c, stats)
}

// handleTradeError maps service errors onto distinct API responses
func (h *TradeHandler) handleTradeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSymbol),
		errors.Is(err, service.ErrInvalidDirection),
		errors.Is(err, service.ErrInvalidStake),
		errors.Is(err, service.ErrInvalidDuration):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrInsufficientFunds):
		response.BadRequestCode(c, response.CodeInsufficientFunds, err.Error())
	case errors.Is(err, service.ErrCancelWindowExpired):
		response.BadRequestCode(c, response.CodeCancelWindowExpired, err.Error())
	case errors.Is(err, service.ErrTradeNotFound):
		response.NotFound(c, err.Error())
	default:
		response.InternalError(c, "operation failed")
	}
}
