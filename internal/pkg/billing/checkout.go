package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/ManuelReschke/DocuChat/app/models"
)

// Metadata keys attached to checkout sessions.
const (
	MetadataUserID       = "userId"
	MetadataPlanID       = "planId"
	MetadataPlanName     = "planName"
	MetadataReferralCode = "referralCode"
)

// CheckoutMetadata is what a checkout session carries back to the webhook.
type CheckoutMetadata struct {
	UserID       uint
	PlanID       uint
	PlanName     string
	ReferralCode string
}

func (m CheckoutMetadata) Map() map[string]string {
	out := map[string]string{
		MetadataUserID:   strconv.FormatUint(uint64(m.UserID), 10),
		MetadataPlanID:   strconv.FormatUint(uint64(m.PlanID), 10),
		MetadataPlanName: m.PlanName,
	}
	if code := strings.TrimSpace(m.ReferralCode); code != "" {
		out[MetadataReferralCode] = code
	}
	return out
}

// ParseCheckoutMetadata requires user and plan id; the rest is optional.
func ParseCheckoutMetadata(md map[string]string) (CheckoutMetadata, error) {
	userID, err := parseID(md[MetadataUserID])
	if err != nil {
		return CheckoutMetadata{}, fmt.Errorf("%w: %s: %v", ErrMissingCheckoutFields, MetadataUserID, err)
	}
	planID, err := parseID(md[MetadataPlanID])
	if err != nil {
		return CheckoutMetadata{}, fmt.Errorf("%w: %s: %v", ErrMissingCheckoutFields, MetadataPlanID, err)
	}
	return CheckoutMetadata{
		UserID:       userID,
		PlanID:       planID,
		PlanName:     strings.TrimSpace(md[MetadataPlanName]),
		ReferralCode: strings.TrimSpace(md[MetadataReferralCode]),
	}, nil
}

func parseID(raw string) (uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("missing")
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return uint(v), nil
}

// SessionCreator creates hosted checkout sessions.
type SessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// CheckoutService starts subscription checkouts for registry plans.
type CheckoutService struct {
	sessions   SessionCreator
	plans      PlanLookup
	successURL string
	cancelURL  string
}

// NewCheckoutService accepts a nil client; sessions then fail with
// ErrCheckoutDisabled.
func NewCheckoutService(api *client.API, plans PlanLookup, cfg Config) *CheckoutService {
	var sessions SessionCreator
	if api != nil {
		sessions = api.CheckoutSessions
	}
	return NewCheckoutServiceWithCreator(sessions, plans, cfg)
}

func NewCheckoutServiceWithCreator(sessions SessionCreator, plans PlanLookup, cfg Config) *CheckoutService {
	return &CheckoutService{
		sessions:   sessions,
		plans:      plans,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}
}

// CreateSession opens a subscription checkout with the metadata the
// reconciler expects on completion.
func (s *CheckoutService) CreateSession(ctx context.Context, user *models.User, planID uint, referralCode string) (*stripe.CheckoutSession, error) {
	if s.sessions == nil {
		return nil, ErrCheckoutDisabled
	}
	if user == nil || user.ID == 0 {
		return nil, ErrUserNotFound
	}
	plan, ok, err := s.plans.PlanByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPlanNotFound
	}
	if plan.PriceRef() == "" {
		return nil, ErrPlanNotProvisioned
	}

	md := CheckoutMetadata{
		UserID:       user.ID,
		PlanID:       plan.ID,
		PlanName:     plan.Name,
		ReferralCode: referralCode,
	}.Map()

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(md[MetadataUserID]),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.PriceRef()),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: md,
		},
	}
	if user.Email != "" {
		params.CustomerEmail = stripe.String(user.Email)
	}
	for k, v := range md {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	return s.sessions.New(params)
}

// SubscriptionFetcher loads a provider subscription by id.
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

// StripeSubscriptionFetcher reads subscriptions through the Stripe API.
type StripeSubscriptionFetcher struct {
	api *client.API
}

func NewStripeSubscriptionFetcher(api *client.API) *StripeSubscriptionFetcher {
	return &StripeSubscriptionFetcher{api: api}
}

func (f *StripeSubscriptionFetcher) FetchSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	return f.api.Subscriptions.Get(id, params)
}

// NewStripeClient returns nil when no secret key is configured.
func NewStripeClient(cfg Config) *client.API {
	if cfg.StripeSecretKey == "" {
		return nil
	}
	return client.New(cfg.StripeSecretKey, nil)
}
