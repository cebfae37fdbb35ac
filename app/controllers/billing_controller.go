package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"

	"github.com/ManuelReschke/DocuChat/app/models"
	"github.com/ManuelReschke/DocuChat/app/repository"
	"github.com/ManuelReschke/DocuChat/internal/pkg/billing"
	"github.com/ManuelReschke/DocuChat/internal/pkg/entitlements"
)

// PlanCatalog exposes the plan registry reads.
type PlanCatalog interface {
	List(ctx context.Context) ([]models.Plan, error)
	PlanByID(ctx context.Context, id uint) (*models.Plan, bool, error)
}

// CheckoutSessionCreator opens hosted checkout sessions.
type CheckoutSessionCreator interface {
	CreateSession(ctx context.Context, user *models.User, planID uint, referralCode string) (*stripe.CheckoutSession, error)
}

// SubscriptionHistory reads a user's ledger rows.
type SubscriptionHistory interface {
	ListByUser(ctx context.Context, userID uint) ([]models.Subscription, error)
}

type BillingController struct {
	plans    PlanCatalog
	checkout CheckoutSessionCreator
	history  SubscriptionHistory
	users    repository.UserRepository
	payments repository.PaymentRepository
}

func NewBillingController(plans PlanCatalog, checkout CheckoutSessionCreator, history SubscriptionHistory, repos *repository.Repositories) *BillingController {
	return &BillingController{
		plans:    plans,
		checkout: checkout,
		history:  history,
		users:    repos.User,
		payments: repos.Payment,
	}
}

type checkoutRequest struct {
	UserID       uint   `json:"userId" validate:"required,gt=0"`
	PlanID       uint   `json:"planId" validate:"required,gt=0"`
	ReferralCode string `json:"referralCode" validate:"omitempty,max=32"`
}

func planJSON(p models.Plan) fiber.Map {
	return fiber.Map{
		"id":               p.ID,
		"name":             p.Name,
		"price":            p.Price.StringFixed(2),
		"interval":         p.Interval,
		"priceId":          p.StripePriceID,
		"fileCount":        p.FileCount,
		"essayWriterCount": p.EssayWriterCount,
		"essayGraderCount": p.EssayGraderCount,
	}
}

// HandleListPlans returns the public plan catalogue.
func (bc *BillingController) HandleListPlans(c *fiber.Ctx) error {
	plans, err := bc.plans.List(c.UserContext())
	if err != nil {
		log.Errorf("[Billing] list plans failed: %v", err)
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load plans")
	}
	items := make([]fiber.Map, 0, len(plans))
	for _, p := range plans {
		items = append(items, planJSON(p))
	}
	return c.JSON(fiber.Map{"plans": items})
}

// HandleCreateCheckoutSession starts a Stripe checkout for a user and plan.
func (bc *BillingController) HandleCreateCheckoutSession(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := parseAndValidate(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "userId and planId are required")
	}

	user, err := bc.users.GetByID(req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "user_not_found", "User not found")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}
	if user.IsBanned {
		return errorJSON(c, fiber.StatusForbidden, "user_banned", "User is banned")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), defaultRequestTimeout)
	defer cancel()

	session, err := bc.checkout.CreateSession(ctx, user, req.PlanID, req.ReferralCode)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrCheckoutDisabled):
			return errorJSON(c, fiber.StatusServiceUnavailable, "checkout_disabled", "Checkout is not configured")
		case errors.Is(err, billing.ErrPlanNotFound):
			return errorJSON(c, fiber.StatusNotFound, "plan_not_found", "Plan not found")
		case errors.Is(err, billing.ErrPlanNotProvisioned):
			return errorJSON(c, fiber.StatusConflict, "plan_not_provisioned", "Plan has no Stripe price")
		}
		log.Errorf("[Billing] checkout session for user %d plan %d failed: %v", req.UserID, req.PlanID, err)
		return errorJSON(c, fiber.StatusBadGateway, "checkout_failed", "Failed to create checkout session")
	}

	return c.JSON(fiber.Map{"sessionId": session.ID, "url": session.URL})
}

// HandleUserBilling returns the cached billing state of a user together
// with the quotas it grants, the ledger history and the most recent payments.
func (bc *BillingController) HandleUserBilling(c *fiber.Ctx) error {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "Invalid user id")
	}

	user, err := bc.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "user_not_found", "User not found")
		}
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	var plan *models.Plan
	if user.PlanID != nil {
		p, found, err := bc.plans.PlanByID(c.UserContext(), *user.PlanID)
		if err != nil {
			return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load plan")
		}
		if found {
			plan = p
		}
	}

	subs, err := bc.history.ListByUser(c.UserContext(), user.ID)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subscriptions")
	}
	subItems := make([]fiber.Map, 0, len(subs))
	for _, s := range subs {
		subItems = append(subItems, fiber.Map{
			"subscriptionId": s.ExternalSubscriptionID,
			"planId":         s.PlanID,
			"status":         s.Status,
			"interval":       s.BillingInterval,
			"startDate":      formatTimePtr(&s.StartDate),
			"endDate":        formatTimePtr(s.EndDate),
		})
	}

	payments, err := bc.payments.ListByUserID(user.ID, 0, 20)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load payments")
	}
	paymentItems := make([]fiber.Map, 0, len(payments))
	for _, p := range payments {
		paymentItems = append(paymentItems, fiber.Map{
			"id":        p.ID,
			"amount":    p.Amount.StringFixed(2),
			"status":    p.Status,
			"reference": p.StripePaymentID,
			"createdAt": formatTimePtr(&p.CreatedAt),
		})
	}

	return c.JSON(fiber.Map{
		"userId":             user.ID,
		"planId":             user.PlanID,
		"planName":           user.PlanName,
		"subscriptionId":     user.SubscriptionID,
		"subscriptionStatus": user.SubscriptionStatus,
		"banned":             user.IsBanned,
		"quotas":             entitlements.EvaluateAll(user, plan),
		"subscriptions":      subItems,
		"payments":           paymentItems,
	})
}
