package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/DocuChat/internal/pkg/billing"
)

const stripeSignatureHeader = "Stripe-Signature"

// WebhookHandler processes one verified provider delivery.
type WebhookHandler interface {
	Handle(ctx context.Context, payload []byte, signatureHeader string) (billing.Result, error)
}

type WebhookController struct {
	handler WebhookHandler
}

func NewWebhookController(handler WebhookHandler) *WebhookController {
	return &WebhookController{handler: handler}
}

// HandleStripeWebhook receives Stripe billing events.
// Signature failures answer 400 so Stripe stops retrying a forged payload,
// processing failures answer 500 so Stripe retries.
func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	if len(rawBody) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "empty_payload"})
	}
	signature := c.Get(stripeSignatureHeader)

	ctx, cancel := context.WithTimeout(c.UserContext(), defaultRequestTimeout)
	defer cancel()

	res, err := wc.handler.Handle(ctx, rawBody, signature)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) || errors.Is(err, billing.ErrWebhookSecretMissing) {
			log.Warnf("[StripeWebhook] rejected delivery from %s: %v", GetClientIP(c), err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		}
		log.Errorf("[StripeWebhook] processing failed event=%s type=%s: %v", res.EventID, res.EventType, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}

	return c.JSON(fiber.Map{"received": true, "outcome": res.Outcome})
}
