package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CommissionStatusPending = "pending"
	CommissionStatusPaid    = "paid"
)

// AffiliateCommission is owed to AffiliateID for a subscription bought by a
// referred user. At most one per (referred user, subscription).
type AffiliateCommission struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	AffiliateID    uint            `gorm:"not null;index" json:"affiliate_id"`
	ReferredUserID uint            `gorm:"not null;index:ux_affiliate_commissions_referral,unique,priority:1" json:"referred_user_id"`
	SubscriptionID uint            `gorm:"not null;index:ux_affiliate_commissions_referral,unique,priority:2" json:"subscription_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Percentage     int             `gorm:"not null" json:"percentage"`
	Status         string          `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	PaidAt         *time.Time      `gorm:"default:null" json:"paid_at,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
