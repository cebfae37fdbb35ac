package repository

import (
	"github.com/ManuelReschke/DocuChat/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByReferralCode(code string) (*models.User, error)
	ListBySubscriptionID(externalID string) ([]models.User, error)
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// PaymentRepository defines the interface for payment history lookups
type PaymentRepository interface {
	ListByUserID(userID uint, offset, limit int) ([]models.Payment, error)
	CountByUserID(userID uint) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User    UserRepository
	Payment PaymentRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Payment: NewPaymentRepository(db),
	}
}
