package billing

import (
	"context"
	"sort"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/DocuChat/app/models"
)

// Drift is a user whose cached subscription disagrees with the ledger.
type Drift struct {
	UserID               uint   `json:"userId"`
	CachedSubscriptionID string `json:"cachedSubscriptionId"`
	CachedStatus         string `json:"cachedStatus"`
	LedgerSubscriptionID string `json:"ledgerSubscriptionId"`
}

// ProjectionAuditor compares cached user state with the ledger. It only
// reports; nothing is healed.
type ProjectionAuditor struct {
	db     *gorm.DB
	ledger *Ledger
}

func NewProjectionAuditor(db *gorm.DB) *ProjectionAuditor {
	return &ProjectionAuditor{db: db, ledger: NewLedger(db)}
}

// Audit flags users pointing at a subscription other than their most recent
// active ledger row, and users with an active row but no cached pointer.
// Banned users are compared like everyone else.
func (a *ProjectionAuditor) Audit(ctx context.Context) ([]Drift, error) {
	latest, err := a.ledger.LatestActiveByUser(ctx)
	if err != nil {
		return nil, err
	}

	query := a.db.WithContext(ctx).Model(&models.User{}).
		Select("id", "subscription_id", "subscription_status")
	ids := make([]uint, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		query = query.Where("subscription_id IS NOT NULL OR id IN ?", ids)
	} else {
		query = query.Where("subscription_id IS NOT NULL")
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}

	drifts := make([]Drift, 0)
	for _, u := range users {
		cached := ""
		if u.SubscriptionID != nil {
			cached = *u.SubscriptionID
		}
		expected := latest[u.ID]
		if cached == expected {
			continue
		}
		// A cached pointer to a subscription that is no longer active is
		// fine as long as the user has nothing active in the ledger.
		if expected == "" && u.SubscriptionStatus != models.SubscriptionStatusActive {
			continue
		}
		drifts = append(drifts, Drift{
			UserID:               u.ID,
			CachedSubscriptionID: cached,
			CachedStatus:         u.SubscriptionStatus,
			LedgerSubscriptionID: expected,
		})
	}

	sort.Slice(drifts, func(i, j int) bool { return drifts[i].UserID < drifts[j].UserID })
	for _, d := range drifts {
		log.Warnf("[BillingAudit] user %d caches subscription %q (%s), ledger says %q",
			d.UserID, d.CachedSubscriptionID, d.CachedStatus, d.LedgerSubscriptionID)
	}
	return drifts, nil
}
