package repository

import (
	"errors"
	"fmt"

	"github.com/binopt-server/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// UserRepository handles user data access and is the balance ledger.
// Every balance mutation is a single conditional UPDATE so concurrent
// trades for the same user can never produce a lost update or a negative
// balance.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// Create creates a new user
func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	result := r.db.First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// GetByUsernameOrEmail retrieves a user by username or email
func (r *UserRepository) GetByUsernameOrEmail(identifier string) (*models.User, error) {
	var user models.User
	result := r.db.Where("username = ? OR email = ?", identifier, identifier).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// GetByReferralCode retrieves a user by referral code
func (r *UserRepository) GetByReferralCode(code string) (*models.User, error) {
	var user models.User
	result := r.db.Where("referral_code = ?", code).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// ExistsByUsername checks if a username is taken
func (r *UserRepository) ExistsByUsername(username string) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

// ExistsByEmail checks if an email is taken
func (r *UserRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// Balance returns the current balance for a user
func (r *UserRepository) Balance(userID uint) (decimal.Decimal, error) {
	user, err := r.GetByID(userID)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// ValidateFunds checks that the user can cover the amount without mutating
// anything. The returned balance lets callers build a user-facing message.
func (r *UserRepository) ValidateFunds(userID uint, amount decimal.Decimal) (decimal.Decimal, error) {
	balance, err := r.Balance(userID)
	if err != nil {
		return decimal.Zero, err
	}
	if balance.LessThan(amount) {
		return balance, ErrInsufficientFunds
	}
	return balance, nil
}

// Debit atomically subtracts amount from the user's balance. The
// balance >= amount guard is part of the statement, so a concurrent debit
// can never drive the balance negative.
func (r *UserRepository) Debit(userID uint, amount decimal.Decimal) error {
	result := r.db.Model(&models.User{}).
		Where("id = ? AND balance >= ?", userID, amount).
		UpdateColumn("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return fmt.Errorf("debit user %d: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		// Either the user is gone or the guard rejected the debit
		var count int64
		if err := r.db.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return fmt.Errorf("debit user %d: %w", userID, err)
		}
		if count == 0 {
			return ErrUserNotFound
		}
		return ErrInsufficientFunds
	}
	return nil
}

// Credit atomically adds amount to the user's balance
func (r *UserRepository) Credit(userID uint, amount decimal.Decimal) error {
	result := r.db.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		return fmt.Errorf("credit user %d: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
