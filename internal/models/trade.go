package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradeDirection represents the direction of a binary option trade
type TradeDirection string

const (
	DirectionCall TradeDirection = "CALL"
	DirectionPut  TradeDirection = "PUT"
)

// Valid reports whether the direction is one of the two supported values
func (d TradeDirection) Valid() bool {
	return d == DirectionCall || d == DirectionPut
}

// TradeStatus represents the trade lifecycle state. A trade is OPEN from
// creation until exactly one settlement (WIN/LOSS) or cancellation
// terminates it. Cancellation soft-deletes the row instead of storing a
// terminal status.
type TradeStatus string

const (
	TradeStatusOpen TradeStatus = "OPEN"
	TradeStatusWin  TradeStatus = "WIN"
	TradeStatusLoss TradeStatus = "LOSS"
)

// Trade represents a timed CALL/PUT trade against a single asset
type Trade struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	Reference        string           `gorm:"size:40;index" json:"reference"`
	UserID           uint             `gorm:"index;not null" json:"user_id"`
	AssetSymbol      string           `gorm:"size:20;not null;index" json:"asset_symbol"`
	Direction        TradeDirection   `gorm:"size:4;not null" json:"direction"`
	StakeAmount      decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"stake_amount"`
	PayoutPercentage int              `gorm:"not null" json:"payout_percentage"`
	EntryPrice       decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"entry_price"`
	ClosePrice       *decimal.Decimal `gorm:"type:decimal(20,8)" json:"close_price,omitempty"`
	ProfitLoss       decimal.Decimal  `gorm:"type:decimal(20,8);default:0" json:"profit_loss"`
	Status           TradeStatus      `gorm:"size:10;not null;default:'OPEN';index" json:"status"`
	StartTime        time.Time        `gorm:"not null;index" json:"start_time"`
	ExpiryTime       time.Time        `gorm:"not null;index" json:"expiry_time"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	DeletedAt        gorm.DeletedAt   `gorm:"index" json:"-"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}

// TableName specifies the table name for Trade model
func (Trade) TableName() string {
	return "trades"
}

// IsOpen returns true while the trade is awaiting settlement
func (t *Trade) IsOpen() bool {
	return t.Status == TradeStatusOpen
}

// Expired reports whether the trade has passed its expiry at the given time
func (t *Trade) Expired(now time.Time) bool {
	return !t.ExpiryTime.After(now)
}

// PayoutAmount returns the profit credited on a WIN (stake * payout / 100)
func (t *Trade) PayoutAmount() decimal.Decimal {
	return t.StakeAmount.Mul(decimal.NewFromInt(int64(t.PayoutPercentage))).Div(decimal.NewFromInt(100))
}
