package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User represents a registered user with a demo trading balance
type User struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Username     string          `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email        string          `gorm:"uniqueIndex;size:100;not null" json:"email"`
	PasswordHash string          `gorm:"size:255;not null" json:"-"`
	Balance      decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"balance"`
	ReferralCode string          `gorm:"uniqueIndex;size:16" json:"referral_code"`
	ReferredBy   *uint           `gorm:"index" json:"referred_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`

	// Relations
	Trades []Trade `gorm:"foreignKey:UserID" json:"trades,omitempty"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
