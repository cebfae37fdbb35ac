package billing

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/DocuChat/app/models"
)

const testWebhookSecret = "whsec_test_secret"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every pooled connection would otherwise get its own empty database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Plan{},
		&models.User{},
		&models.Subscription{},
		&models.Payment{},
		&models.AffiliateCommission{},
		&models.BillingWebhookEvent{},
	))
	return db
}

func seedPlan(t *testing.T, db *gorm.DB, name, price, priceID string) *models.Plan {
	t.Helper()
	plan := &models.Plan{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Interval: models.PlanIntervalMonthly,
	}
	if priceID != "" {
		plan.StripePriceID = &priceID
	}
	require.NoError(t, db.Create(plan).Error)
	return plan
}

func seedUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user, err := models.NewUser(name, name+"@example.com")
	require.NoError(t, err)
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedAffiliate(t *testing.T, db *gorm.DB, name, code string) *models.User {
	t.Helper()
	user := seedUser(t, db, name)
	affiliateID := "aff-" + name
	require.NoError(t, db.Model(user).Updates(map[string]interface{}{
		"referral_code": code,
		"affiliate_id":  affiliateID,
	}).Error)
	user.ReferralCode = &code
	user.AffiliateID = &affiliateID
	return user
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, id).Error)
	return u
}

func eventPayload(t *testing.T, id, eventType string, created time.Time, object map[string]interface{}) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"created":     created.Unix(),
		"data":        map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	return payload
}

func signatureFor(payload []byte, secret string) string {
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))
}

func checkoutObject(sessionID, subID string, userID, planID uint, referralCode string) map[string]interface{} {
	metadata := map[string]interface{}{
		MetadataUserID:   fmt.Sprint(userID),
		MetadataPlanID:   fmt.Sprint(planID),
		MetadataPlanName: "Pro",
	}
	if referralCode != "" {
		metadata[MetadataReferralCode] = referralCode
	}
	return map[string]interface{}{
		"id":               sessionID,
		"object":           "checkout.session",
		"mode":             "subscription",
		"subscription":     subID,
		"amount_total":     1999,
		"payment_intent":   "pi_" + sessionID,
		"payment_status":   "paid",
		"customer_details": map[string]interface{}{"email": "buyer@example.com"},
		"metadata":         metadata,
	}
}

func subscriptionObject(subID, status, priceID string, periodStart, periodEnd time.Time) map[string]interface{} {
	return map[string]interface{}{
		"id":                   subID,
		"object":               "subscription",
		"status":               status,
		"current_period_start": periodStart.Unix(),
		"current_period_end":   periodEnd.Unix(),
		"items": map[string]interface{}{
			"object": "list",
			"data": []interface{}{
				map[string]interface{}{
					"id":     "si_" + subID,
					"object": "subscription_item",
					"price": map[string]interface{}{
						"id":        priceID,
						"object":    "price",
						"recurring": map[string]interface{}{"interval": "month"},
					},
				},
			},
		},
	}
}

// memoryPlanCache is a PlanCache used to observe cache traffic.
type memoryPlanCache struct {
	mu    sync.Mutex
	items map[string]models.Plan
	hits  int
}

func newMemoryPlanCache() *memoryPlanCache {
	return &memoryPlanCache{items: map[string]models.Plan{}}
}

func (c *memoryPlanCache) Get(_ context.Context, key string) (*models.Plan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.hits++
	return &p, true
}

func (c *memoryPlanCache) Set(_ context.Context, key string, plan *models.Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = *plan
}

func (c *memoryPlanCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
}
