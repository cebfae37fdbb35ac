package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"

	"github.com/ManuelReschke/DocuChat/app/models"
	"github.com/ManuelReschke/DocuChat/internal/pkg/billing"
	"github.com/ManuelReschke/DocuChat/internal/pkg/jobqueue"
)

func doJSON(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

type fakeWebhookHandler struct {
	res        billing.Result
	err        error
	gotPayload []byte
	gotHeader  string
}

func (f *fakeWebhookHandler) Handle(_ context.Context, payload []byte, header string) (billing.Result, error) {
	f.gotPayload = payload
	f.gotHeader = header
	return f.res, f.err
}

type fakeAffiliates struct {
	trackRes    *billing.TrackResult
	trackErr    error
	gotTrack    billing.TrackInput
	enrolled    *models.User
	enrollErr   error
	commissions []models.AffiliateCommission
}

func (f *fakeAffiliates) Track(_ context.Context, in billing.TrackInput) (*billing.TrackResult, error) {
	f.gotTrack = in
	return f.trackRes, f.trackErr
}

func (f *fakeAffiliates) Enroll(_ context.Context, userID uint) (*models.User, error) {
	if f.enrollErr != nil {
		return nil, f.enrollErr
	}
	return f.enrolled, nil
}

func (f *fakeAffiliates) ListCommissions(_ context.Context, _ uint) ([]models.AffiliateCommission, error) {
	return f.commissions, nil
}

type fakeUsers struct {
	users map[uint]*models.User
}

func (f *fakeUsers) Create(user *models.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUsers) GetByID(id uint) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) GetByEmail(string) (*models.User, error) { return nil, gorm.ErrRecordNotFound }

func (f *fakeUsers) GetByReferralCode(string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) ListBySubscriptionID(string) ([]models.User, error) { return nil, nil }

func (f *fakeUsers) List(int, int) ([]models.User, error) { return nil, nil }

func (f *fakeUsers) Count() (int64, error) { return int64(len(f.users)), nil }

type fakePayments struct {
	payments []models.Payment
}

func (f *fakePayments) ListByUserID(uint, int, int) ([]models.Payment, error) {
	return f.payments, nil
}

func (f *fakePayments) CountByUserID(uint) (int64, error) { return int64(len(f.payments)), nil }

type fakePlans struct {
	plans        []models.Plan
	created      *models.Plan
	provisionErr error
}

func (f *fakePlans) List(context.Context) ([]models.Plan, error) { return f.plans, nil }

func (f *fakePlans) PlanByID(_ context.Context, id uint) (*models.Plan, bool, error) {
	for i := range f.plans {
		if f.plans[i].ID == id {
			return &f.plans[i], true, nil
		}
	}
	return nil, false, nil
}

func (f *fakePlans) Create(_ context.Context, plan *models.Plan) error {
	plan.ID = uint(len(f.plans) + 1)
	f.created = plan
	return nil
}

func (f *fakePlans) ProvisionPriceID(context.Context, uint, string) error { return f.provisionErr }

type fakeCheckout struct {
	session *stripe.CheckoutSession
	err     error
	gotCode string
}

func (f *fakeCheckout) CreateSession(_ context.Context, _ *models.User, _ uint, code string) (*stripe.CheckoutSession, error) {
	f.gotCode = code
	return f.session, f.err
}

type fakeAudits struct {
	last *jobqueue.AuditReport
	next *jobqueue.AuditReport
	runs int
}

func (f *fakeAudits) RunAudit(context.Context) (*jobqueue.AuditReport, error) {
	f.runs++
	f.last = f.next
	return f.next, nil
}

func (f *fakeAudits) LastAudit() *jobqueue.AuditReport { return f.last }

type fakeModerator struct {
	banned map[uint]string
	known  map[uint]bool
}

func (f *fakeModerator) Ban(_ context.Context, id uint, reason string) error {
	if !f.known[id] {
		return billing.ErrUserNotFound
	}
	f.banned[id] = reason
	return nil
}

func (f *fakeModerator) Unban(_ context.Context, id uint) error {
	if !f.known[id] {
		return billing.ErrUserNotFound
	}
	delete(f.banned, id)
	return nil
}

type fakeHistory struct {
	subs []models.Subscription
}

func (f *fakeHistory) ListByUser(context.Context, uint) ([]models.Subscription, error) {
	return f.subs, nil
}
