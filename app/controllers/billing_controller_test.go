package controllers

import (
	"errors"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/ManuelReschke/DocuChat/app/models"
	"github.com/ManuelReschke/DocuChat/app/repository"
	"github.com/ManuelReschke/DocuChat/internal/pkg/billing"
)

func uintPtr(v uint) *uint { return &v }

func newBillingApp(plans *fakePlans, checkout *fakeCheckout, users *fakeUsers, payments *fakePayments) *fiber.App {
	return newBillingAppWithHistory(plans, checkout, &fakeHistory{}, users, payments)
}

func newBillingAppWithHistory(plans *fakePlans, checkout *fakeCheckout, history *fakeHistory, users *fakeUsers, payments *fakePayments) *fiber.App {
	app := fiber.New()
	bc := NewBillingController(plans, checkout, history, &repository.Repositories{User: users, Payment: payments})
	app.Get("/plans", bc.HandleListPlans)
	app.Post("/checkout/session", bc.HandleCreateCheckoutSession)
	app.Get("/users/:id/billing", bc.HandleUserBilling)
	return app
}

func testPlans() *fakePlans {
	price := "price_pro"
	return &fakePlans{plans: []models.Plan{
		{ID: 1, Name: "pro", Price: decimal.RequireFromString("19.99"), Interval: models.PlanIntervalMonthly, StripePriceID: &price, FileCount: 10},
	}}
}

func TestHandleListPlans(t *testing.T) {
	app := newBillingApp(testPlans(), &fakeCheckout{}, &fakeUsers{}, &fakePayments{})

	status, body := doJSON(t, app, fiber.MethodGet, "/plans", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	plans := body["plans"].([]interface{})
	require.Len(t, plans, 1)
	plan := plans[0].(map[string]interface{})
	assert.Equal(t, "pro", plan["name"])
	assert.Equal(t, "19.99", plan["price"])
	assert.Equal(t, "price_pro", plan["priceId"])
}

func TestHandleCreateCheckoutSession(t *testing.T) {
	users := &fakeUsers{users: map[uint]*models.User{
		5: {ID: 5, Email: "a@example.com"},
		6: {ID: 6, IsBanned: true},
	}}
	checkout := &fakeCheckout{session: &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1"}}
	app := newBillingApp(testPlans(), checkout, users, &fakePayments{})

	status, body := doJSON(t, app, fiber.MethodPost, "/checkout/session", `{"userId":5,"planId":1,"referralCode":"ABCD1234"}`, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "cs_1", body["sessionId"])
	assert.Equal(t, "https://checkout.stripe.com/cs_1", body["url"])
	assert.Equal(t, "ABCD1234", checkout.gotCode)

	status, body = doJSON(t, app, fiber.MethodPost, "/checkout/session", `{"userId":99,"planId":1}`, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "user_not_found", body["error"])

	status, body = doJSON(t, app, fiber.MethodPost, "/checkout/session", `{"userId":6,"planId":1}`, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "user_banned", body["error"])

	status, _ = doJSON(t, app, fiber.MethodPost, "/checkout/session", `{"userId":5}`, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestHandleCreateCheckoutSession_ErrorMapping(t *testing.T) {
	users := &fakeUsers{users: map[uint]*models.User{5: {ID: 5}}}
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{billing.ErrCheckoutDisabled, fiber.StatusServiceUnavailable, "checkout_disabled"},
		{billing.ErrPlanNotFound, fiber.StatusNotFound, "plan_not_found"},
		{billing.ErrPlanNotProvisioned, fiber.StatusConflict, "plan_not_provisioned"},
		{errors.New("stripe down"), fiber.StatusBadGateway, "checkout_failed"},
	}
	for _, tt := range tests {
		app := newBillingApp(testPlans(), &fakeCheckout{err: tt.err}, users, &fakePayments{})
		status, body := doJSON(t, app, fiber.MethodPost, "/checkout/session", `{"userId":5,"planId":1}`, nil)
		assert.Equal(t, tt.status, status, tt.code)
		assert.Equal(t, tt.code, body["error"])
	}
}

func TestHandleUserBilling(t *testing.T) {
	sub := "sub_1"
	users := &fakeUsers{users: map[uint]*models.User{
		5: {ID: 5, PlanID: uintPtr(1), PlanName: "pro", SubscriptionID: &sub, SubscriptionStatus: models.SubscriptionStatusActive},
	}}
	payments := &fakePayments{payments: []models.Payment{{ID: 1, UserID: 5, Amount: decimal.RequireFromString("19.99"), Status: "paid", StripePaymentID: "pi_1"}}}
	history := &fakeHistory{subs: []models.Subscription{{
		ExternalSubscriptionID: "sub_1",
		UserID:                 5,
		PlanID:                 1,
		Status:                 models.LedgerStatusActive,
		BillingInterval:        models.PlanIntervalMonthly,
		StartDate:              time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}}}
	app := newBillingAppWithHistory(testPlans(), &fakeCheckout{}, history, users, payments)

	status, body := doJSON(t, app, fiber.MethodGet, "/users/5/billing", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "pro", body["planName"])
	assert.Equal(t, "sub_1", body["subscriptionId"])

	quotas := body["quotas"].(map[string]interface{})
	files := quotas["files"].(map[string]interface{})
	assert.Equal(t, true, files["allowed"])
	assert.EqualValues(t, 10, files["limit"])
	writer := quotas["essay_writer"].(map[string]interface{})
	assert.Equal(t, true, writer["unlimited"])

	subs := body["subscriptions"].([]interface{})
	require.Len(t, subs, 1)
	first := subs[0].(map[string]interface{})
	assert.Equal(t, "sub_1", first["subscriptionId"])
	assert.Equal(t, "2024-03-01T00:00:00Z", first["startDate"])
	assert.Nil(t, first["endDate"])

	items := body["payments"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "19.99", items[0].(map[string]interface{})["amount"])

	status, _ = doJSON(t, app, fiber.MethodGet, "/users/42/billing", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
