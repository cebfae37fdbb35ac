package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/DocuChat/app/models"
)

// LedgerEntry is the desired state of one ledger row.
type LedgerEntry struct {
	ExternalSubscriptionID string
	UserID                 uint
	PlanID                 uint
	Status                 ExternalStatus
	Interval               models.PlanInterval
	StartDate              time.Time
	EndDate                *time.Time
}

// Ledger owns the subscriptions table. Rows are keyed by the external
// subscription id and are never deleted.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// WithTx returns a ledger bound to an open transaction.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx}
}

// Activate inserts an active row, or on a replay only re-marks the existing
// row active and clears its end date.
func (l *Ledger) Activate(ctx context.Context, e LedgerEntry) (*models.Subscription, error) {
	e.Status = ActiveStatus()
	e.EndDate = nil
	return l.upsert(ctx, e, clause.Assignments(map[string]interface{}{
		"status":     models.LedgerStatusActive,
		"end_date":   nil,
		"updated_at": time.Now(),
	}))
}

// ApplySnapshot inserts or fully overwrites the mutable columns of a row with
// the provider snapshot.
func (l *Ledger) ApplySnapshot(ctx context.Context, e LedgerEntry) (*models.Subscription, error) {
	return l.upsert(ctx, e, clause.AssignmentColumns([]string{
		"plan_id",
		"status",
		"billing_interval",
		"start_date",
		"end_date",
		"updated_at",
	}))
}

func (l *Ledger) upsert(ctx context.Context, e LedgerEntry, updates clause.Set) (*models.Subscription, error) {
	externalID := strings.TrimSpace(e.ExternalSubscriptionID)
	if externalID == "" {
		return nil, errors.New("external subscription id is required")
	}
	if e.UserID == 0 || e.PlanID == 0 {
		return nil, errors.New("user id and plan id are required")
	}
	if e.Interval == "" {
		e.Interval = models.PlanIntervalMonthly
	}
	if !e.Interval.Valid() {
		return nil, ErrInvalidPlanInterval
	}

	sub := &models.Subscription{
		ExternalSubscriptionID: externalID,
		UserID:                 e.UserID,
		PlanID:                 e.PlanID,
		Status:                 e.Status.Raw(),
		BillingInterval:        e.Interval,
		StartDate:              e.StartDate,
		EndDate:                e.EndDate,
	}
	if err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_subscription_id"}},
		DoUpdates: updates,
	}).Create(sub).Error; err != nil {
		return nil, err
	}

	// Ensure the stored state is returned after upsert.
	var stored models.Subscription
	if err := l.db.WithContext(ctx).Where("external_subscription_id = ?", externalID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// Close marks every row for the identifier canceled and returns how many
// rows matched.
func (l *Ledger) Close(ctx context.Context, externalID string, at time.Time) (int64, error) {
	res := l.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("external_subscription_id = ?", externalID).
		Updates(map[string]interface{}{
			"status":   models.LedgerStatusCanceled,
			"end_date": at,
		})
	return res.RowsAffected, res.Error
}

func (l *Ledger) Find(ctx context.Context, externalID string) (*models.Subscription, bool, error) {
	var sub models.Subscription
	err := l.db.WithContext(ctx).Where("external_subscription_id = ?", externalID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &sub, true, nil
}

func (l *Ledger) ListByUser(ctx context.Context, userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := l.db.WithContext(ctx).Where("user_id = ?", userID).Order("start_date DESC, id DESC").Find(&subs).Error
	return subs, err
}

// LatestActiveByUser maps each user with an active row to the external id
// of their most recently started active subscription.
func (l *Ledger) LatestActiveByUser(ctx context.Context) (map[uint]string, error) {
	var subs []models.Subscription
	err := l.db.WithContext(ctx).
		Select("user_id", "external_subscription_id", "start_date", "id").
		Where("status = ?", models.LedgerStatusActive).
		Order("user_id ASC, start_date DESC, id DESC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}

	latest := make(map[uint]string, len(subs))
	for _, sub := range subs {
		if _, seen := latest[sub.UserID]; !seen {
			latest[sub.UserID] = sub.ExternalSubscriptionID
		}
	}
	return latest, nil
}
