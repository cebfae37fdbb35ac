package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger status values as reported by the payment provider. Anything the
// provider adds later is stored verbatim.
const (
	LedgerStatusActive            = "active"
	LedgerStatusTrialing          = "trialing"
	LedgerStatusPastDue           = "past_due"
	LedgerStatusCanceled          = "canceled"
	LedgerStatusIncomplete        = "incomplete"
	LedgerStatusIncompleteExpired = "incomplete_expired"
	LedgerStatusUnpaid            = "unpaid"
	LedgerStatusPaused            = "paused"
)

// Subscription is the authoritative ledger row, one per provider
// subscription identifier.
type Subscription struct {
	ID                     uint                `gorm:"primaryKey" json:"id"`
	ExternalSubscriptionID string              `gorm:"type:varchar(191);not null;uniqueIndex" json:"external_subscription_id"`
	UserID                 uint                `gorm:"not null;index" json:"user_id"`
	PlanID                 uint                `gorm:"not null;index" json:"plan_id"`
	Status                 string              `gorm:"type:varchar(32);not null;index" json:"status"`
	BillingInterval        PlanInterval        `gorm:"type:varchar(16);not null" json:"billing_interval"`
	StartDate              time.Time           `gorm:"not null" json:"start_date"`
	EndDate                *time.Time          `gorm:"default:null" json:"end_date,omitempty"`
	AffiliateCommission    decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"affiliate_commission"`
	ReferralCode           *string             `gorm:"type:varchar(32)" json:"referral_code,omitempty"`
	CreatedAt              time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Subscription) IsActive() bool {
	return s.Status == LedgerStatusActive
}
