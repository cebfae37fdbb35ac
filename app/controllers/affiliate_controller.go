package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/DocuChat/app/models"
	"github.com/ManuelReschke/DocuChat/internal/pkg/billing"
)

// AffiliateService is the commission engine surface used over HTTP.
type AffiliateService interface {
	Track(ctx context.Context, in billing.TrackInput) (*billing.TrackResult, error)
	Enroll(ctx context.Context, userID uint) (*models.User, error)
	ListCommissions(ctx context.Context, affiliateID uint) ([]models.AffiliateCommission, error)
}

type AffiliateController struct {
	affiliates AffiliateService
}

func NewAffiliateController(affiliates AffiliateService) *AffiliateController {
	return &AffiliateController{affiliates: affiliates}
}

type trackRequest struct {
	ReferralCode   string `json:"referralCode" validate:"required,max=32"`
	UserID         uint   `json:"userId" validate:"required,gt=0"`
	SubscriptionID *uint  `json:"subscriptionId" validate:"omitempty,gt=0"`
}

type enrollRequest struct {
	UserID uint `json:"userId" validate:"required,gt=0"`
}

func trackFailure(c *fiber.Ctx, status int, reason string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "reason": reason})
}

// HandleTrack binds a referred user to an affiliate and, given a
// subscription, books a pending commission.
func (ac *AffiliateController) HandleTrack(c *fiber.Ctx) error {
	var req trackRequest
	if err := parseAndValidate(c, &req); err != nil {
		return trackFailure(c, fiber.StatusBadRequest, "invalid_request")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), defaultRequestTimeout)
	defer cancel()

	res, err := ac.affiliates.Track(ctx, billing.TrackInput{
		ReferralCode:   req.ReferralCode,
		UserID:         req.UserID,
		SubscriptionID: req.SubscriptionID,
	})
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrInvalidReferralCode):
		return trackFailure(c, fiber.StatusBadRequest, "invalid_code")
	case errors.Is(err, billing.ErrSelfReferral):
		return trackFailure(c, fiber.StatusBadRequest, "self_referral")
	case errors.Is(err, billing.ErrSubscriptionMismatch):
		return trackFailure(c, fiber.StatusBadRequest, "subscription_mismatch")
	case errors.Is(err, billing.ErrAlreadyReferred):
		return trackFailure(c, fiber.StatusConflict, "already_referred")
	case errors.Is(err, billing.ErrUserNotFound):
		return trackFailure(c, fiber.StatusNotFound, "user_not_found")
	case errors.Is(err, billing.ErrSubscriptionNotFound):
		return trackFailure(c, fiber.StatusNotFound, "subscription_not_found")
	default:
		log.Errorf("[Affiliate] track failed for user %d: %v", req.UserID, err)
		return trackFailure(c, fiber.StatusInternalServerError, "internal_error")
	}

	out := fiber.Map{"success": true, "affiliateId": res.AffiliateID}
	if res.Commission != nil {
		out["commissionId"] = res.Commission.ID
		out["amount"] = res.Commission.Amount.StringFixed(2)
	}
	return c.JSON(out)
}

// HandleEnroll makes a user an affiliate.
func (ac *AffiliateController) HandleEnroll(c *fiber.Ctx) error {
	var req enrollRequest
	if err := parseAndValidate(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "userId is required")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), defaultRequestTimeout)
	defer cancel()

	user, err := ac.affiliates.Enroll(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, billing.ErrUserNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "user_not_found", "User not found")
		}
		log.Errorf("[Affiliate] enroll failed for user %d: %v", req.UserID, err)
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to enroll affiliate")
	}

	return c.JSON(fiber.Map{
		"userId":       user.ID,
		"affiliateId":  user.AffiliateID,
		"referralCode": user.ReferralCode,
	})
}

// HandleListCommissions lists the commissions owed to an affiliate.
func (ac *AffiliateController) HandleListCommissions(c *fiber.Ctx) error {
	affiliateID, ok := parseIDParam(c, "id")
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "Invalid affiliate id")
	}

	commissions, err := ac.affiliates.ListCommissions(c.UserContext(), affiliateID)
	if err != nil {
		log.Errorf("[Affiliate] list commissions for %d failed: %v", affiliateID, err)
		return errorJSON(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load commissions")
	}

	items := make([]fiber.Map, 0, len(commissions))
	for _, cm := range commissions {
		items = append(items, fiber.Map{
			"id":             cm.ID,
			"referredUserId": cm.ReferredUserID,
			"subscriptionId": cm.SubscriptionID,
			"amount":         cm.Amount.StringFixed(2),
			"percentage":     cm.Percentage,
			"status":         cm.Status,
			"paidAt":         formatTimePtr(cm.PaidAt),
			"createdAt":      formatTimePtr(&cm.CreatedAt),
		})
	}
	return c.JSON(fiber.Map{"commissions": items})
}
