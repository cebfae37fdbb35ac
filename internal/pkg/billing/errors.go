package billing

import "errors"

var (
	ErrWebhookSecretMissing  = errors.New("billing: webhook secret is not configured")
	ErrInvalidSignature      = errors.New("billing: invalid webhook signature")
	ErrInvalidReferralCode   = errors.New("billing: invalid referral code")
	ErrAlreadyReferred       = errors.New("billing: user was already referred")
	ErrSelfReferral          = errors.New("billing: users cannot refer themselves")
	ErrUserNotFound          = errors.New("billing: user not found")
	ErrPlanNotFound          = errors.New("billing: plan not found")
	ErrPlanNotProvisioned    = errors.New("billing: plan has no external price")
	ErrSubscriptionNotFound  = errors.New("billing: subscription not found")
	ErrSubscriptionMismatch  = errors.New("billing: subscription belongs to another user")
	ErrPriceIDImmutable      = errors.New("billing: plan price id is already provisioned")
	ErrInvalidPlanInterval   = errors.New("billing: plan interval must be monthly, yearly or lifetime")
	ErrCheckoutDisabled      = errors.New("billing: checkout is not configured")
	ErrMissingCheckoutFields = errors.New("billing: checkout metadata is incomplete")
)
