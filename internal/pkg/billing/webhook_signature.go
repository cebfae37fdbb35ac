package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// VerifyStripeEvent checks the Stripe-Signature header against the raw body
// and decodes the event. An empty secret rejects everything.
func VerifyStripeEvent(payload []byte, signatureHeader, webhookSecret string, tolerance time.Duration) (stripe.Event, error) {
	secret := strings.TrimSpace(webhookSecret)
	if secret == "" {
		return stripe.Event{}, ErrWebhookSecretMissing
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing header", ErrInvalidSignature)
	}
	if tolerance <= 0 {
		tolerance = defaultWebhookTolerance
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}
