package repository

import (
	"errors"

	"github.com/binopt-server/internal/models"
	"gorm.io/gorm"
)

var ErrAssetNotFound = errors.New("asset not found")

// AssetRepository handles asset registry data access
type AssetRepository struct {
	db *gorm.DB
}

// NewAssetRepository creates a new AssetRepository
func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Create creates a new asset
func (r *AssetRepository) Create(asset *models.Asset) error {
	return r.db.Create(asset).Error
}

// GetBySymbol retrieves an asset by symbol
func (r *AssetRepository) GetBySymbol(symbol string) (*models.Asset, error) {
	var asset models.Asset
	result := r.db.Where("symbol = ?", symbol).First(&asset)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, result.Error
	}
	return &asset, nil
}

// GetActive retrieves all active assets
func (r *AssetRepository) GetActive() ([]models.Asset, error) {
	var assets []models.Asset
	result := r.db.Where("is_active = ?", true).Order("symbol ASC").Find(&assets)
	return assets, result.Error
}

// GetActiveByClass retrieves active assets for one asset class
func (r *AssetRepository) GetActiveByClass(class models.AssetClass) ([]models.Asset, error) {
	var assets []models.Asset
	result := r.db.Where("is_active = ? AND class = ?", true, class).Order("symbol ASC").Find(&assets)
	return assets, result.Error
}

// Update updates an asset
func (r *AssetRepository) Update(asset *models.Asset) error {
	return r.db.Save(asset).Error
}

// SeedDefaults inserts the default registry when the table is empty
func (r *AssetRepository) SeedDefaults() error {
	var count int64
	if err := r.db.Model(&models.Asset{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	assets := models.DefaultAssets()
	return r.db.Create(&assets).Error
}
