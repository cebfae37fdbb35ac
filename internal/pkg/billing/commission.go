package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ManuelReschke/DocuChat/app/models"
	"github.com/ManuelReschke/DocuChat/internal/pkg/metrics"
	"github.com/ManuelReschke/DocuChat/internal/pkg/referralcode"
)

const DefaultCommissionPercent = 30

const referralCodeLength = 8

// TrackInput binds a referred user to the affiliate owning ReferralCode.
// When SubscriptionID is set a pending commission is booked for it.
type TrackInput struct {
	ReferralCode   string
	UserID         uint
	SubscriptionID *uint
}

type TrackResult struct {
	AffiliateID uint
	Commission  *models.AffiliateCommission
}

// Referrer is the part of the commission engine the reconciler needs.
type Referrer interface {
	Track(ctx context.Context, in TrackInput) (*TrackResult, error)
}

// CommissionEngine handles referral binding and commission booking.
type CommissionEngine struct {
	db      *gorm.DB
	percent int
}

func NewCommissionEngine(db *gorm.DB, percent int) *CommissionEngine {
	if percent <= 0 || percent > 100 {
		percent = DefaultCommissionPercent
	}
	return &CommissionEngine{db: db, percent: percent}
}

// CommissionAmount is price * percent / 100 rounded to cents.
func CommissionAmount(price decimal.Decimal, percent int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(percent))).Div(decimal.NewFromInt(100)).Round(2)
}

// Track binds the referral. The first successful call for a user wins; any
// later call fails with ErrAlreadyReferred and leaves no trace.
func (e *CommissionEngine) Track(ctx context.Context, in TrackInput) (*TrackResult, error) {
	code := strings.TrimSpace(in.ReferralCode)
	if code == "" {
		e.observe(ErrInvalidReferralCode)
		return nil, ErrInvalidReferralCode
	}
	if in.UserID == 0 {
		e.observe(ErrUserNotFound)
		return nil, ErrUserNotFound
	}

	result := &TrackResult{}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var affiliate models.User
		if err := tx.Where("referral_code = ?", code).First(&affiliate).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidReferralCode
			}
			return err
		}
		if affiliate.ID == in.UserID {
			return ErrSelfReferral
		}

		var referred models.User
		if err := tx.Select("id", "referred_by").First(&referred, in.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if referred.ReferredBy != nil {
			return ErrAlreadyReferred
		}

		// The IS NULL guard makes concurrent attempts race on the row, not on
		// the read above.
		res := tx.Model(&models.User{}).
			Where("id = ? AND referred_by IS NULL", in.UserID).
			Update("referred_by", affiliate.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyReferred
		}
		result.AffiliateID = affiliate.ID

		if in.SubscriptionID == nil {
			return nil
		}
		commission, err := e.book(tx, affiliate.ID, in.UserID, *in.SubscriptionID, code)
		if err != nil {
			return err
		}
		result.Commission = commission
		return nil
	})
	e.observe(err)
	if err != nil {
		return nil, err
	}

	if result.Commission != nil {
		log.Infof("[Affiliate] user %d referred by %d, commission %s booked for subscription %d",
			in.UserID, result.AffiliateID, result.Commission.Amount.StringFixed(2), result.Commission.SubscriptionID)
	} else {
		log.Infof("[Affiliate] user %d referred by %d", in.UserID, result.AffiliateID)
	}
	return result, nil
}

func (e *CommissionEngine) book(tx *gorm.DB, affiliateID, userID, subscriptionID uint, code string) (*models.AffiliateCommission, error) {
	var sub models.Subscription
	if err := tx.First(&sub, subscriptionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	if sub.UserID != userID {
		return nil, ErrSubscriptionMismatch
	}

	var plan models.Plan
	if err := tx.Unscoped().First(&plan, sub.PlanID).Error; err != nil {
		return nil, fmt.Errorf("load plan %d for commission: %w", sub.PlanID, err)
	}

	amount := CommissionAmount(plan.Price, e.percent)
	commission := &models.AffiliateCommission{
		AffiliateID:    affiliateID,
		ReferredUserID: userID,
		SubscriptionID: sub.ID,
		Amount:         amount,
		Percentage:     e.percent,
		Status:         models.CommissionStatusPending,
	}
	if err := tx.Create(commission).Error; err != nil {
		return nil, err
	}

	if err := tx.Model(&models.Subscription{}).Where("id = ?", sub.ID).Updates(map[string]interface{}{
		"affiliate_commission": amount,
		"referral_code":        code,
	}).Error; err != nil {
		return nil, err
	}
	return commission, nil
}

func (e *CommissionEngine) observe(err error) {
	switch {
	case err == nil:
		metrics.ObserveCommission("tracked")
	case errors.Is(err, ErrAlreadyReferred):
		metrics.ObserveCommission("already_referred")
	case errors.Is(err, ErrInvalidReferralCode), errors.Is(err, ErrSelfReferral):
		metrics.ObserveCommission("invalid_code")
	default:
		metrics.ObserveCommission("error")
	}
}

// Enroll gives a user an affiliate id and a referral code. Calling it again
// returns the existing enrollment.
func (e *CommissionEngine) Enroll(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if user.IsAffiliate() && user.AffiliateID != nil {
			return nil
		}

		affiliateID := uuid.NewString()
		code := NewReferralCode()
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"affiliate_id":  affiliateID,
			"referral_code": code,
		}).Error; err != nil {
			return err
		}
		user.AffiliateID = &affiliateID
		user.ReferralCode = &code
		log.Infof("[Affiliate] enrolled user %d with code %s", userID, code)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListCommissions returns commissions owed to an affiliate, newest first.
func (e *CommissionEngine) ListCommissions(ctx context.Context, affiliateID uint) ([]models.AffiliateCommission, error) {
	var out []models.AffiliateCommission
	err := e.db.WithContext(ctx).Where("affiliate_id = ?", affiliateID).Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

// NewReferralCode returns a random code. If the system entropy source fails
// it falls back to the hex digits of a random UUID.
func NewReferralCode() string {
	code, err := referralcode.Generate(referralCodeLength)
	if err == nil {
		return code
	}
	log.Warnf("[Affiliate] secure referral code generation failed: %v", err)
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:referralCodeLength])
}
