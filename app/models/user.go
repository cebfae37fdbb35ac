package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ROLE_USER  = "user"
	ROLE_ADMIN = "admin"
)

// Cached subscription status exposed on the user row. "banned" is sticky
// and survives any webhook-driven projection until an admin unbans.
const (
	SubscriptionStatusFree     = "free"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusBanned   = "banned"
)

type User struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	Name               string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email              string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Role               string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	PlanID             *uint          `gorm:"index" json:"plan_id"`
	PlanName           string         `gorm:"type:varchar(100);not null;default:'free'" json:"plan_name"`
	SubscriptionID     *string        `gorm:"type:varchar(191);index" json:"subscription_id"`
	SubscriptionStatus string         `gorm:"type:varchar(32);not null;default:'free';index" json:"subscription_status"`
	IsBanned           bool           `gorm:"not null;default:false" json:"is_banned"`
	BanReason          string         `gorm:"type:varchar(255);default:null" json:"ban_reason,omitempty"`
	ReferredBy         *uint          `gorm:"index" json:"referred_by,omitempty"`
	AffiliateID        *string        `gorm:"type:varchar(64);uniqueIndex" json:"affiliate_id,omitempty"`
	ReferralCode       *string        `gorm:"type:varchar(32);uniqueIndex" json:"referral_code,omitempty"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func NewUser(name string, email string) (*User, error) {
	u := &User{
		Name:               name,
		Email:              email,
		Role:               ROLE_USER,
		PlanName:           PlanNameFree,
		SubscriptionStatus: SubscriptionStatusFree,
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

// HasActivePlan reports whether the cached projection grants paid access.
func (u *User) HasActivePlan() bool {
	return !u.IsBanned && u.PlanID != nil && u.SubscriptionStatus == SubscriptionStatusActive
}

// IsAffiliate reports whether the user was enrolled in the affiliate program.
func (u *User) IsAffiliate() bool {
	return u.ReferralCode != nil && *u.ReferralCode != ""
}
