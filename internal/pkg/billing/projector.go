package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/DocuChat/app/models"
)

// Projection is the billing state cached on a user row.
type Projection struct {
	PlanID         uint
	PlanName       string
	SubscriptionID string
	Status         ExternalStatus
}

// Projector writes the denormalized billing fields on users. It is only
// driven by the reconciler and admin actions.
type Projector struct {
	db *gorm.DB
}

func NewProjector(db *gorm.DB) *Projector {
	return &Projector{db: db}
}

func (p *Projector) WithTx(tx *gorm.DB) *Projector {
	return &Projector{db: tx}
}

// statusExpr keeps "banned" on banned users whatever the provider says.
func statusExpr(status string) interface{} {
	return gorm.Expr("CASE WHEN is_banned THEN ? ELSE ? END", models.SubscriptionStatusBanned, status)
}

// Project overwrites the cached plan and subscription of one user. Callers
// check that the user exists; a replay that changes nothing is not an error.
func (p *Projector) Project(ctx context.Context, userID uint, proj Projection) error {
	if userID == 0 || proj.PlanID == 0 || strings.TrimSpace(proj.SubscriptionID) == "" {
		return errors.New("user id, plan id and subscription id are required")
	}
	return p.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"plan_id":             proj.PlanID,
			"plan_name":           proj.PlanName,
			"subscription_id":     proj.SubscriptionID,
			"subscription_status": statusExpr(proj.Status.UserStatus()),
		}).Error
}

// ProjectSnapshot is Project for provider snapshots of an existing
// subscription. Only users without a subscription, or already pointing at
// this one, are updated, so a late event for an older subscription never
// replaces a newer one. It returns how many users were updated.
func (p *Projector) ProjectSnapshot(ctx context.Context, userID uint, proj Projection) (int64, error) {
	if userID == 0 || proj.PlanID == 0 || strings.TrimSpace(proj.SubscriptionID) == "" {
		return 0, errors.New("user id, plan id and subscription id are required")
	}
	res := p.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND (subscription_id IS NULL OR subscription_id = ?)", userID, proj.SubscriptionID).
		Updates(map[string]interface{}{
			"plan_id":             proj.PlanID,
			"plan_name":           proj.PlanName,
			"subscription_id":     proj.SubscriptionID,
			"subscription_status": statusExpr(proj.Status.UserStatus()),
		})
	return res.RowsAffected, res.Error
}

// ResetBySubscription drops every user whose cached subscription is
// externalID back to the free tier and returns how many users matched.
func (p *Projector) ResetBySubscription(ctx context.Context, externalID string) (int64, error) {
	res := p.db.WithContext(ctx).Model(&models.User{}).
		Where("subscription_id = ?", externalID).
		Updates(map[string]interface{}{
			"plan_id":             nil,
			"plan_name":           models.PlanNameFree,
			"subscription_id":     nil,
			"subscription_status": statusExpr(models.SubscriptionStatusCanceled),
		})
	return res.RowsAffected, res.Error
}

// Ban blocks the user. The cached plan is kept so an unban restores it.
func (p *Projector) Ban(ctx context.Context, userID uint, reason string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(tx, userID); err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"is_banned":           true,
			"ban_reason":          strings.TrimSpace(reason),
			"subscription_status": models.SubscriptionStatusBanned,
		}).Error
	})
}

// Unban lifts a ban and re-derives the cached status from the ledger row the
// user points at.
func (p *Projector) Unban(ctx context.Context, userID uint) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		status := models.SubscriptionStatusFree
		if user.SubscriptionID != nil && user.PlanID != nil {
			sub, ok, err := NewLedger(tx).Find(ctx, *user.SubscriptionID)
			if err != nil {
				return err
			}
			status = models.SubscriptionStatusCanceled
			if ok {
				status = ParseExternalStatus(sub.Status).UserStatus()
			}
		} else {
			// No pointer left: free unless the user ever held a subscription.
			var count int64
			if err := tx.Model(&models.Subscription{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				status = models.SubscriptionStatusCanceled
			}
		}

		log.Infof("[Projector] unbanning user %d, restored status %s", userID, status)
		return tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"is_banned":           false,
			"ban_reason":          "",
			"subscription_status": status,
		}).Error
	})
}

func ensureUser(tx *gorm.DB, userID uint) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}
