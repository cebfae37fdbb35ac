package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const PlanNameFree = "free"

// PlanInterval is the billing cadence of a plan or ledger row.
type PlanInterval string

const (
	PlanIntervalMonthly  PlanInterval = "monthly"
	PlanIntervalYearly   PlanInterval = "yearly"
	PlanIntervalLifetime PlanInterval = "lifetime"
)

// ParsePlanInterval accepts the stored values and the Stripe recurring
// intervals "month" and "year".
func ParsePlanInterval(raw string) (PlanInterval, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "monthly", "month":
		return PlanIntervalMonthly, true
	case "yearly", "year", "annual":
		return PlanIntervalYearly, true
	case "lifetime":
		return PlanIntervalLifetime, true
	default:
		return "", false
	}
}

func (i PlanInterval) Valid() bool {
	switch i {
	case PlanIntervalMonthly, PlanIntervalYearly, PlanIntervalLifetime:
		return true
	}
	return false
}

// Plan is a purchasable tier. StripePriceID is set once at provisioning and
// never rewritten afterwards. Zero quotas mean unlimited for plan holders.
type Plan struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Name             string          `gorm:"type:varchar(100);not null" json:"name"`
	Price            decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Interval         PlanInterval    `gorm:"column:billing_interval;type:varchar(16);not null;default:'monthly'" json:"interval"`
	StripePriceID    *string         `gorm:"type:varchar(191);uniqueIndex" json:"stripe_price_id,omitempty"`
	FileCount        int             `gorm:"not null;default:0" json:"file_count"`
	EssayWriterCount int             `gorm:"not null;default:0" json:"essay_writer_count"`
	EssayGraderCount int             `gorm:"not null;default:0" json:"essay_grader_count"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"`
}

// PriceRef returns the external price identifier or an empty string.
func (p *Plan) PriceRef() string {
	if p == nil || p.StripePriceID == nil {
		return ""
	}
	return *p.StripePriceID
}
