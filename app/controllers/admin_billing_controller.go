package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/DocuChat/app/models"
	"github.com/ManuelReschke/DocuChat/internal/pkg/billing"
	"github.com/ManuelReschke/DocuChat/internal/pkg/jobqueue"
)

// DriftReporter runs and remembers projection audits.
type DriftReporter interface {
	RunAudit(ctx context.Context) (*jobqueue.AuditReport, error)
	LastAudit() *jobqueue.AuditReport
}

// AccountModerator applies admin bans.
type AccountModerator interface {
	Ban(ctx context.Context, userID uint, reason string) error
	Unban(ctx context.Context, userID uint) error
}

// PlanAdmin creates plans and binds them to Stripe prices.
type PlanAdmin interface {
	Create(ctx context.Context, plan *models.Plan) error
	ProvisionPriceID(ctx context.Context, planID uint, priceID string) error
}

type AdminBillingController struct {
	audits    DriftReporter
	moderator AccountModerator
	plans     PlanAdmin
}

func NewAdminBillingController(audits DriftReporter, moderator AccountModerator, plans PlanAdmin) *AdminBillingController {
	return &AdminBillingController{audits: audits, moderator: moderator, plans: plans}
}

type banRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

type createPlanRequest struct {
	Name             string `json:"name" validate:"required,max=100"`
	Price            string `json:"price" validate:"required"`
	Interval         string `json:"interval" validate:"omitempty,oneof=monthly yearly lifetime"`
	PriceID          string `json:"priceId" validate:"omitempty,max=191"`
	FileCount        int    `json:"fileCount" validate:"gte=0"`
	EssayWriterCount int    `json:"essayWriterCount" validate:"gte=0"`
	EssayGraderCount int    `json:"essayGraderCount" validate:"gte=0"`
}

type provisionPriceRequest struct {
	PriceID string `json:"priceId" validate:"required,max=191"`
}

// HandleDrift returns the last projection audit. ?refresh=true runs a new one.
func (ac *AdminBillingController) HandleDrift(c *fiber.Ctx) error {
	report := ac.audits.LastAudit()
	if report == nil || c.QueryBool("refresh") {
		ctx, cancel := context.WithTimeout(c.UserContext(), defaultRequestTimeout)
		defer cancel()

		var err error
		report, err = ac.audits.RunAudit(ctx)
		if err != nil {
			log.Errorf("[AdminBilling] audit failed: %v", err)
			return errorJSON(c, fiber.StatusInternalServerError, "audit_failed", "Billing audit failed")
		}
	}

	drifts := report.Drifts
	if drifts == nil {
		drifts = []billing.Drift{}
	}
	return c.JSON(fiber.Map{
		"ranAt":  formatTimePtr(&report.RanAt),
		"count":  len(drifts),
		"drifts": drifts,
	})
}

func (ac *AdminBillingController) HandleBanUser(c *fiber.Ctx) error {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "Invalid user id")
	}
	var req banRequest
	if len(c.Body()) > 0 {
		if err := parseAndValidate(c, &req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "Invalid ban request")
		}
	}

	if err := ac.moderator.Ban(c.UserContext(), userID, req.Reason); err != nil {
		return ac.moderationError(c, userID, err)
	}
	log.Infof("[AdminBilling] banned user %d", userID)
	return c.JSON(fiber.Map{"success": true, "userId": userID, "banned": true})
}

func (ac *AdminBillingController) HandleUnbanUser(c *fiber.Ctx) error {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "Invalid user id")
	}
	if err := ac.moderator.Unban(c.UserContext(), userID); err != nil {
		return ac.moderationError(c, userID, err)
	}
	log.Infof("[AdminBilling] unbanned user %d", userID)
	return c.JSON(fiber.Map{"success": true, "userId": userID, "banned": false})
}

func (ac *AdminBillingController) moderationError(c *fiber.Ctx, userID uint, err error) error {
	if errors.Is(err, billing.ErrUserNotFound) {
		return errorJSON(c, fiber.StatusNotFound, "user_not_found", "User not found")
	}
	log.Errorf("[AdminBilling] moderation of user %d failed: %v", userID, err)
	return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update user")
}

// HandleCreatePlan adds a plan to the catalogue.
func (ac *AdminBillingController) HandleCreatePlan(c *fiber.Ctx) error {
	var req createPlanRequest
	if err := parseAndValidate(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", err.Error())
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "price must be a decimal")
	}

	plan := &models.Plan{
		Name:             req.Name,
		Price:            price,
		Interval:         models.PlanInterval(req.Interval),
		FileCount:        req.FileCount,
		EssayWriterCount: req.EssayWriterCount,
		EssayGraderCount: req.EssayGraderCount,
	}
	if req.PriceID != "" {
		plan.StripePriceID = &req.PriceID
	}

	if err := ac.plans.Create(c.UserContext(), plan); err != nil {
		log.Warnf("[AdminBilling] create plan %q failed: %v", req.Name, err)
		return errorJSON(c, fiber.StatusBadRequest, "invalid_plan", err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(planJSON(*plan))
}

// HandleProvisionPrice binds a plan to its Stripe price exactly once.
func (ac *AdminBillingController) HandleProvisionPrice(c *fiber.Ctx) error {
	planID, ok := parseIDParam(c, "id")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "Invalid plan id")
	}
	var req provisionPriceRequest
	if err := parseAndValidate(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "priceId is required")
	}

	err := ac.plans.ProvisionPriceID(c.UserContext(), planID, req.PriceID)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"success": true, "planId": planID, "priceId": req.PriceID})
	case errors.Is(err, billing.ErrPlanNotFound):
		return errorJSON(c, fiber.StatusNotFound, "plan_not_found", "Plan not found")
	case errors.Is(err, billing.ErrPriceIDImmutable):
		return errorJSON(c, fiber.StatusConflict, "price_id_immutable", "Plan already has a different Stripe price")
	default:
		log.Errorf("[AdminBilling] provision price for plan %d failed: %v", planID, err)
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to provision price")
	}
}
