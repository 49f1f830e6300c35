package handler

import (
	"github.com/binopt-server/internal/service"
	"github.com/binopt-server/pkg/response"
	"github.com/gin-gonic/gin"
)

// PriceHandler handles price API requests
type PriceHandler struct {
	priceService *service.PriceService
}

// NewPriceHandler creates a new PriceHandler
func NewPriceHandler(priceService *service.PriceService) *PriceHandler {
	return &PriceHandler{priceService: priceService}
}

// RegisterRoutes registers price routes (public)
func (h *PriceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/prices", h.Prices)
}

// Prices returns current quotes. Symbols contain a slash (BTC/USD), so a
// single quote is requested via query parameter rather than path.
// GET /api/v1/prices           -> all quotes
// GET /api/v1/prices?symbol=X  -> one quote
func (h *PriceHandler) Prices(c *gin.Context) {
	if symbol := c.Query("symbol"); symbol != "" {
		quote, ok := h.priceService.GetQuote(symbol)
		if !ok {
			response.NotFound(c, "unknown symbol")
			return
		}
		response.Success(c, quote)
		return
	}

	response.Success(c, h.priceService.Snapshot())
}
