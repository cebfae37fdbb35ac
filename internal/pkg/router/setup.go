package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/DocuChat/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies carries the controllers and guards the routes are bound to.
type Dependencies struct {
	Webhooks   *controllers.WebhookController
	Affiliates *controllers.AffiliateController
	Billing    *controllers.BillingController
	Admin      *controllers.AdminBillingController

	InternalToken string

	// LimiterStorage backs the API rate limiter; nil keeps counters in memory.
	LimiterStorage fiber.Storage
	LimiterMax     int
	LimiterWindow  time.Duration
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// Public routes first so the webhook and health endpoints never pass
	// through the internal API guards.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
