package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AssetClass groups assets by the price feed that serves them
type AssetClass string

const (
	AssetClassCrypto    AssetClass = "crypto"
	AssetClassForex     AssetClass = "forex"
	AssetClassCommodity AssetClass = "commodity"
)

// Asset represents a tradable instrument in the registry.
// DefaultPayout is display metadata only; the payout applied to a trade
// is computed at creation and stored on the trade row.
type Asset struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Symbol        string          `gorm:"uniqueIndex;size:20;not null" json:"symbol"`
	Name          string          `gorm:"size:50;not null" json:"name"`
	Class         AssetClass      `gorm:"size:20;not null;index" json:"class"`
	BasePrice     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"base_price"`
	Volatility    float64         `gorm:"type:decimal(10,6);not null" json:"volatility"`
	DefaultPayout int             `gorm:"default:80" json:"default_payout"`
	IsActive      bool            `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName specifies the table name for Asset model
func (Asset) TableName() string {
	return "assets"
}

// DefaultAssets seeds the registry on first boot.
func DefaultAssets() []Asset {
	return []Asset{
		{Symbol: "BTC/USD", Name: "Bitcoin", Class: AssetClassCrypto, BasePrice: decimal.NewFromInt(45000), Volatility: 0.02, DefaultPayout: 85},
		{Symbol: "ETH/USD", Name: "Ethereum", Class: AssetClassCrypto, BasePrice: decimal.NewFromInt(2500), Volatility: 0.025, DefaultPayout: 85},
		{Symbol: "SOL/USD", Name: "Solana", Class: AssetClassCrypto, BasePrice: decimal.NewFromInt(140), Volatility: 0.03, DefaultPayout: 83},
		{Symbol: "EUR/USD", Name: "Euro / US Dollar", Class: AssetClassForex, BasePrice: decimal.NewFromFloat(1.085), Volatility: 0.001, DefaultPayout: 80},
		{Symbol: "GBP/USD", Name: "Pound / US Dollar", Class: AssetClassForex, BasePrice: decimal.NewFromFloat(1.27), Volatility: 0.0012, DefaultPayout: 80},
		{Symbol: "USD/JPY", Name: "US Dollar / Yen", Class: AssetClassForex, BasePrice: decimal.NewFromFloat(148.5), Volatility: 0.0015, DefaultPayout: 80},
		{Symbol: "XAU/USD", Name: "Gold", Class: AssetClassCommodity, BasePrice: decimal.NewFromInt(2350), Volatility: 0.008, DefaultPayout: 82},
		{Symbol: "XAG/USD", Name: "Silver", Class: AssetClassCommodity, BasePrice: decimal.NewFromFloat(28.4), Volatility: 0.012, DefaultPayout: 82},
	}
}
