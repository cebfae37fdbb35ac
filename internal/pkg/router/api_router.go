package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/DocuChat/app/controllers"
	"github.com/ManuelReschke/DocuChat/internal/pkg/middleware"
)

const (
	defaultLimiterMax    = 120
	defaultLimiterWindow = time.Minute
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", h.limiter())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1", middleware.InternalToken(h.deps.InternalToken))

	v1.Get("/plans", h.deps.Billing.HandleListPlans)
	v1.Post("/checkout/session", h.deps.Billing.HandleCreateCheckoutSession)
	v1.Get("/users/:id/billing", h.deps.Billing.HandleUserBilling)

	v1.Post("/affiliate/track", h.deps.Affiliates.HandleTrack)
	v1.Post("/affiliate/enroll", h.deps.Affiliates.HandleEnroll)
	v1.Get("/affiliate/:id/commissions", h.deps.Affiliates.HandleListCommissions)

	admin := v1.Group("/admin")
	admin.Get("/billing/drift", h.deps.Admin.HandleDrift)
	admin.Post("/users/:id/ban", h.deps.Admin.HandleBanUser)
	admin.Post("/users/:id/unban", h.deps.Admin.HandleUnbanUser)
	admin.Post("/plans", h.deps.Admin.HandleCreatePlan)
	admin.Post("/plans/:id/price", h.deps.Admin.HandleProvisionPrice)
}

func (h ApiRouter) limiter() fiber.Handler {
	limit := h.deps.LimiterMax
	if limit <= 0 {
		limit = defaultLimiterMax
	}
	window := h.deps.LimiterWindow
	if window <= 0 {
		window = defaultLimiterWindow
	}
	return limiter.New(limiter.Config{
		Max:          limit,
		Expiration:   window,
		Storage:      h.deps.LimiterStorage,
		KeyGenerator: controllers.GetClientIP,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		},
	})
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
