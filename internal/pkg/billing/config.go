package billing

import (
	"strings"
	"time"

	"github.com/ManuelReschke/DocuChat/internal/pkg/env"
)

const defaultWebhookTolerance = 5 * time.Minute

// Config holds the billing settings read from the environment.
type Config struct {
	StripeSecretKey   string
	WebhookSecret     string
	WebhookTolerance  time.Duration
	CommissionPercent int
	SuccessURL        string
	CancelURL         string
}

// LoadConfig reads the billing configuration. A missing webhook secret is not
// an error here; the reconciler rejects every delivery until it is set.
func LoadConfig() Config {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:8080"), "/")
	return Config{
		StripeSecretKey:   strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		WebhookSecret:     strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		WebhookTolerance:  env.GetEnvDuration("STRIPE_WEBHOOK_TOLERANCE", defaultWebhookTolerance),
		CommissionPercent: env.GetEnvInt("AFFILIATE_COMMISSION_PERCENT", DefaultCommissionPercent),
		SuccessURL:        env.GetEnv("CHECKOUT_SUCCESS_URL", base+"/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         env.GetEnv("CHECKOUT_CANCEL_URL", base+"/billing/cancel"),
	}
}
