package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/DocuChat/app/models"
)

// DeliveryLog persists verified webhook deliveries for auditing.
type DeliveryLog interface {
	Record(ctx context.Context, in DeliveryInput) (*models.BillingWebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint, outcome Outcome, processingErr error) error
}

type gormDeliveryLog struct {
	db *gorm.DB
}

// NewDeliveryLog creates a delivery log backed by GORM.
func NewDeliveryLog(db *gorm.DB) DeliveryLog {
	return &gormDeliveryLog{db: db}
}

// Record stores the delivery or, for a redelivery, bumps its attempt count.
func (r *gormDeliveryLog) Record(ctx context.Context, in DeliveryInput) (*models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256(in.Payload)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		ObjectID:        strings.TrimSpace(in.ObjectID),
		PayloadJSON:     string(in.Payload),
		Attempts:        1,
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(event).Error; err != nil {
		return nil, err
	}

	var stored models.BillingWebhookEvent
	if err := r.db.WithContext(ctx).Where("provider = ? AND provider_event_id = ?", provider, eventID).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormDeliveryLog) MarkProcessed(ctx context.Context, id uint, outcome Outcome, processingErr error) error {
	if id == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"outcome":          string(outcome),
		"processed_at":     &now,
		"processing_error": errMsg,
	}).Error
}
