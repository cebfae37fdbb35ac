package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is an append-only record of a completed checkout.
type Payment struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Status          string          `gorm:"type:varchar(32);not null" json:"status"`
	StripePaymentID string          `gorm:"type:varchar(191);not null;index" json:"stripe_payment_id"`
	StripePriceID   string          `gorm:"type:varchar(191)" json:"stripe_price_id"`
	Email           string          `gorm:"type:varchar(200)" json:"email"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
