package handler

import (
	"github.com/binopt-server/internal/models"
	"github.com/binopt-server/internal/repository"
	"github.com/binopt-server/pkg/response"
	"github.com/gin-gonic/gin"
)

// AssetHandler serves the tradable asset registry
type AssetHandler struct {
	assetRepo *repository.AssetRepository
}

// NewAssetHandler creates a new AssetHandler
func NewAssetHandler(assetRepo *repository.AssetRepository) *AssetHandler {
	return &AssetHandler{assetRepo: assetRepo}
}

// RegisterRoutes registers asset routes (public)
func (h *AssetHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/assets", h.List)
}

// List returns active tradable assets, optionally filtered by class
// GET /api/v1/assets?class=crypto
func (h *AssetHandler) List(c *gin.Context) {
	var (
		assets []models.Asset
		err    error
	)
	switch class := models.AssetClass(c.Query("class")); class {
	case "":
		assets, err = h.assetRepo.GetActive()
	case models.AssetClassCrypto, models.AssetClassForex, models.AssetClassCommodity:
		assets, err = h.assetRepo.GetActiveByClass(class)
	default:
		response.BadRequest(c, "invalid asset class")
		return
	}
	if err != nil {
		response.InternalError(c, "failed to list assets")
		return
	}
	response.Success(c, assets)
}
