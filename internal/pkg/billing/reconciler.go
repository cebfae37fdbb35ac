package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"

	"github.com/ManuelReschke/DocuChat/app/models"
	"github.com/ManuelReschke/DocuChat/internal/pkg/metrics"
)

// Archiver keeps a copy of raw webhook payloads outside the database.
type Archiver interface {
	Archive(ctx context.Context, eventID, eventType string, payload []byte) error
}

// ReconcilerOptions carries the optional collaborators of a Reconciler.
type ReconcilerOptions struct {
	WebhookSecret string
	Tolerance     time.Duration
	Referrals     Referrer
	Fetcher       SubscriptionFetcher
	Archiver      Archiver
	Deliveries    DeliveryLog
}

// Reconciler turns verified Stripe events into ledger rows, user projections
// and payments. Every handled transition is idempotent under redelivery.
type Reconciler struct {
	db         *gorm.DB
	plans      PlanLookup
	ledger     *Ledger
	projector  *Projector
	secret     string
	tolerance  time.Duration
	referrals  Referrer
	fetcher    SubscriptionFetcher
	archiver   Archiver
	deliveries DeliveryLog
	now        func() time.Time
}

func NewReconciler(db *gorm.DB, plans PlanLookup, opts ReconcilerOptions) *Reconciler {
	deliveries := opts.Deliveries
	if deliveries == nil {
		deliveries = NewDeliveryLog(db)
	}
	return &Reconciler{
		db:         db,
		plans:      plans,
		ledger:     NewLedger(db),
		projector:  NewProjector(db),
		secret:     opts.WebhookSecret,
		tolerance:  opts.Tolerance,
		referrals:  opts.Referrals,
		fetcher:    opts.Fetcher,
		archiver:   opts.Archiver,
		deliveries: deliveries,
		now:        time.Now,
	}
}

// Handle verifies and applies one delivery. Only signature problems and
// transient failures return an error; everything else is acknowledged.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, signatureHeader string) (Result, error) {
	started := r.now()

	event, err := VerifyStripeEvent(payload, signatureHeader, r.secret, r.tolerance)
	if err != nil {
		log.Warnf("[Webhook] rejected delivery: %v", err)
		return Result{}, err
	}

	res := Result{EventID: event.ID, EventType: string(event.Type)}
	delivery, err := r.deliveries.Record(ctx, DeliveryInput{
		Provider:        models.WebhookProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		ObjectID:        eventObjectID(event),
		Payload:         payload,
	})
	if err != nil {
		res.Outcome = OutcomeFailed
		metrics.ObserveWebhook(res.EventType, string(res.Outcome), time.Since(started))
		return res, fmt.Errorf("record webhook delivery: %w", err)
	}

	if r.archiver != nil {
		if err := r.archiver.Archive(ctx, event.ID, string(event.Type), payload); err != nil {
			log.Warnf("[Webhook] archive of event %s failed: %v", event.ID, err)
		}
	}

	res, procErr := r.dispatch(ctx, event, res)
	if procErr != nil {
		res.Outcome = OutcomeFailed
	}
	res.Took = time.Since(started)

	if err := r.deliveries.MarkProcessed(ctx, delivery.ID, res.Outcome, procErr); err != nil {
		log.Warnf("[Webhook] failed to mark event %s processed: %v", event.ID, err)
	}
	metrics.ObserveWebhook(res.EventType, string(res.Outcome), res.Took)

	if procErr != nil {
		log.Errorf("[Webhook] event %s (%s) failed: %v", event.ID, event.Type, procErr)
		return res, procErr
	}
	return res, nil
}

func (r *Reconciler) dispatch(ctx context.Context, event stripe.Event, res Result) (Result, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return r.drop(res, "event has no data object"), nil
	}

	switch string(event.Type) {
	case EventCheckoutCompleted:
		return r.handleCheckoutCompleted(ctx, event, res)
	case EventSubscriptionUpdated:
		return r.handleSubscriptionUpdated(ctx, event, res)
	case EventSubscriptionDeleted:
		return r.handleSubscriptionDeleted(ctx, event, res)
	default:
		res.Outcome = OutcomeIgnored
		log.Infof("[Webhook] ignoring event %s of type %s", event.ID, event.Type)
		return res, nil
	}
}

func (r *Reconciler) drop(res Result, reason string) Result {
	res.Outcome = OutcomeDropped
	res.Reason = reason
	log.Warnf("[Webhook] dropping %s event %s: %s", res.EventType, res.EventID, reason)
	return res
}

func (r *Reconciler) processed(res Result) Result {
	res.Outcome = OutcomeProcessed
	return res
}

func (r *Reconciler) handleCheckoutCompleted(ctx context.Context, event stripe.Event, res Result) (Result, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return r.drop(res, "malformed checkout session: "+err.Error()), nil
	}

	meta, err := ParseCheckoutMetadata(session.Metadata)
	if err != nil {
		return r.drop(res, fmt.Sprintf("session %s: %v", session.ID, err)), nil
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		return r.drop(res, fmt.Sprintf("session %s has no subscription", session.ID)), nil
	}
	subID := session.Subscription.ID

	plan, ok, err := r.plans.PlanByID(ctx, meta.PlanID)
	if err != nil {
		return res, fmt.Errorf("load plan %d: %w", meta.PlanID, err)
	}
	if !ok {
		return r.drop(res, fmt.Sprintf("plan %d no longer exists (user %d, subscription %s)", meta.PlanID, meta.UserID, subID)), nil
	}
	if meta.PlanName != "" && meta.PlanName != plan.Name {
		log.Infof("[Webhook] session %s names plan %q, registry says %q", session.ID, meta.PlanName, plan.Name)
	}

	var user models.User
	if err := r.db.WithContext(ctx).Select("id", "email").First(&user, meta.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.drop(res, fmt.Sprintf("user %d not found (subscription %s)", meta.UserID, subID)), nil
		}
		return res, fmt.Errorf("load user %d: %w", meta.UserID, err)
	}

	start := r.checkoutStart(ctx, event, session.Subscription)
	interval := subscriptionInterval(session.Subscription, plan.Interval)

	var ledgerRow *models.Subscription
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.projector.WithTx(tx).Project(ctx, user.ID, Projection{
			PlanID:         plan.ID,
			PlanName:       plan.Name,
			SubscriptionID: subID,
			Status:         ActiveStatus(),
		}); err != nil {
			return fmt.Errorf("project user: %w", err)
		}

		row, err := r.ledger.WithTx(tx).Activate(ctx, LedgerEntry{
			ExternalSubscriptionID: subID,
			UserID:                 user.ID,
			PlanID:                 plan.ID,
			Interval:               interval,
			StartDate:              start,
		})
		if err != nil {
			return fmt.Errorf("activate ledger row: %w", err)
		}
		ledgerRow = row

		payment := &models.Payment{
			UserID:          user.ID,
			Amount:          decimal.New(session.AmountTotal, -2),
			Status:          paymentStatus(session),
			StripePaymentID: paymentReference(session),
			StripePriceID:   plan.PriceRef(),
			Email:           checkoutEmail(session, user.Email),
		}
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("record payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	log.Infof("[Webhook] activated subscription %s for user %d on plan %s", subID, user.ID, plan.Name)

	if meta.ReferralCode != "" && r.referrals != nil {
		if err := r.trackReferral(ctx, meta, ledgerRow); err != nil {
			return res, err
		}
	}
	return r.processed(res), nil
}

// trackReferral runs after the checkout commit. Rejected referrals are
// acknowledged; any other failure is returned so the delivery is retried.
// A retry re-applies the checkout idempotently and tracks again.
func (r *Reconciler) trackReferral(ctx context.Context, meta CheckoutMetadata, row *models.Subscription) error {
	in := TrackInput{ReferralCode: meta.ReferralCode, UserID: meta.UserID}
	if row != nil {
		in.SubscriptionID = &row.ID
	}
	_, err := r.referrals.Track(ctx, in)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAlreadyReferred), errors.Is(err, ErrInvalidReferralCode), errors.Is(err, ErrSelfReferral):
		log.Infof("[Webhook] referral %q for user %d not applied: %v", meta.ReferralCode, meta.UserID, err)
		return nil
	default:
		return fmt.Errorf("track referral %q for user %d: %w", meta.ReferralCode, meta.UserID, err)
	}
}

func (r *Reconciler) checkoutStart(ctx context.Context, event stripe.Event, sub *stripe.Subscription) time.Time {
	if sub != nil && sub.CurrentPeriodStart > 0 {
		return time.Unix(sub.CurrentPeriodStart, 0).UTC()
	}
	if r.fetcher != nil && sub != nil {
		full, err := r.fetcher.FetchSubscription(ctx, sub.ID)
		if err != nil {
			log.Warnf("[Webhook] could not fetch subscription %s: %v", sub.ID, err)
		} else if full != nil && full.CurrentPeriodStart > 0 {
			return time.Unix(full.CurrentPeriodStart, 0).UTC()
		}
	}
	if event.Created > 0 {
		return time.Unix(event.Created, 0).UTC()
	}
	return r.now().UTC()
}

func (r *Reconciler) handleSubscriptionUpdated(ctx context.Context, event stripe.Event, res Result) (Result, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return r.drop(res, "malformed subscription: "+err.Error()), nil
	}
	if sub.ID == "" {
		return r.drop(res, "subscription without id"), nil
	}

	row, ok, err := r.ledger.Find(ctx, sub.ID)
	if err != nil {
		return res, fmt.Errorf("load ledger row %s: %w", sub.ID, err)
	}
	if !ok {
		return r.drop(res, fmt.Sprintf("no ledger row for subscription %s", sub.ID)), nil
	}

	priceID := subscriptionPriceID(&sub)
	if priceID == "" {
		return r.drop(res, fmt.Sprintf("subscription %s has no price", sub.ID)), nil
	}
	plan, ok, err := r.plans.PlanByPriceID(ctx, priceID)
	if err != nil {
		return res, fmt.Errorf("load plan for price %s: %w", priceID, err)
	}
	if !ok {
		return r.drop(res, fmt.Sprintf("price %s maps to no plan (subscription %s, user %d)", priceID, sub.ID, row.UserID)), nil
	}

	status := ParseExternalStatus(string(sub.Status))
	interval := subscriptionInterval(&sub, plan.Interval)
	start := row.StartDate
	if sub.CurrentPeriodStart > 0 {
		start = time.Unix(sub.CurrentPeriodStart, 0).UTC()
	}

	var projected int64
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := r.projector.WithTx(tx).ProjectSnapshot(ctx, row.UserID, Projection{
			PlanID:         plan.ID,
			PlanName:       plan.Name,
			SubscriptionID: sub.ID,
			Status:         status,
		})
		if err != nil {
			return fmt.Errorf("project user: %w", err)
		}
		projected = n
		if _, err := r.ledger.WithTx(tx).ApplySnapshot(ctx, LedgerEntry{
			ExternalSubscriptionID: sub.ID,
			UserID:                 row.UserID,
			PlanID:                 plan.ID,
			Status:                 status,
			Interval:               interval,
			StartDate:              start,
			EndDate:                subscriptionEnd(&sub),
		}); err != nil {
			return fmt.Errorf("apply ledger snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	if projected == 0 {
		log.Infof("[Webhook] subscription %s is %s; user %d tracks another subscription, ledger only", sub.ID, status, row.UserID)
		return r.processed(res), nil
	}
	log.Infof("[Webhook] subscription %s for user %d is %s on plan %s", sub.ID, row.UserID, status, plan.Name)
	return r.processed(res), nil
}

func (r *Reconciler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event, res Result) (Result, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return r.drop(res, "malformed subscription: "+err.Error()), nil
	}
	if sub.ID == "" {
		return r.drop(res, "subscription without id"), nil
	}

	_, known, err := r.ledger.Find(ctx, sub.ID)
	if err != nil {
		return res, fmt.Errorf("load ledger row %s: %w", sub.ID, err)
	}

	endedAt := r.now().UTC()
	switch {
	case sub.EndedAt > 0:
		endedAt = time.Unix(sub.EndedAt, 0).UTC()
	case sub.CanceledAt > 0:
		endedAt = time.Unix(sub.CanceledAt, 0).UTC()
	case event.Created > 0:
		endedAt = time.Unix(event.Created, 0).UTC()
	}

	var resetUsers int64
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := r.ledger.WithTx(tx).Close(ctx, sub.ID, endedAt); err != nil {
			return fmt.Errorf("close ledger row: %w", err)
		}
		n, err := r.projector.WithTx(tx).ResetBySubscription(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("reset users: %w", err)
		}
		resetUsers = n
		return nil
	})
	if err != nil {
		return res, err
	}

	if !known {
		if resetUsers == 0 {
			return r.drop(res, fmt.Sprintf("no ledger row for subscription %s", sub.ID)), nil
		}
		log.Warnf("[Webhook] subscription %s deleted without ledger row, reset %d users", sub.ID, resetUsers)
	}
	log.Infof("[Webhook] subscription %s canceled, %d users reset to free", sub.ID, resetUsers)
	return r.processed(res), nil
}

// eventObjectID is the subscription id the event is about when known,
// otherwise the id of the data object.
func eventObjectID(event stripe.Event) string {
	if event.Data == nil || event.Data.Object == nil {
		return ""
	}
	if string(event.Type) == EventCheckoutCompleted {
		if id, ok := event.Data.Object["subscription"].(string); ok && id != "" {
			return id
		}
	}
	if id, ok := event.Data.Object["id"].(string); ok {
		return id
	}
	return ""
}

func subscriptionItem(sub *stripe.Subscription) *stripe.SubscriptionItem {
	if sub == nil || sub.Items == nil {
		return nil
	}
	for _, item := range sub.Items.Data {
		if item != nil && item.Price != nil {
			return item
		}
	}
	return nil
}

func subscriptionPriceID(sub *stripe.Subscription) string {
	if item := subscriptionItem(sub); item != nil {
		return strings.TrimSpace(item.Price.ID)
	}
	return ""
}

// subscriptionInterval maps the price's recurring interval onto a plan
// interval. Cadences plans cannot express fall back to the plan's own.
func subscriptionInterval(sub *stripe.Subscription, fallback models.PlanInterval) models.PlanInterval {
	item := subscriptionItem(sub)
	if item == nil || item.Price.Recurring == nil {
		return fallback
	}
	raw := string(item.Price.Recurring.Interval)
	interval, ok := models.ParsePlanInterval(raw)
	if !ok || interval == models.PlanIntervalLifetime {
		log.Warnf("[Webhook] subscription %s has unsupported interval %q, using %s", sub.ID, raw, fallback)
		return fallback
	}
	return interval
}

// subscriptionEnd is nil while the subscription runs open-ended.
func subscriptionEnd(sub *stripe.Subscription) *time.Time {
	var ts int64
	switch {
	case sub.EndedAt > 0:
		ts = sub.EndedAt
	case sub.CancelAt > 0:
		ts = sub.CancelAt
	default:
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

// paymentReference prefers the payment intent, then the invoice, then the
// session itself.
func paymentReference(session stripe.CheckoutSession) string {
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		return session.PaymentIntent.ID
	}
	if session.Invoice != nil && session.Invoice.ID != "" {
		return session.Invoice.ID
	}
	return session.ID
}

func paymentStatus(session stripe.CheckoutSession) string {
	if s := strings.TrimSpace(string(session.PaymentStatus)); s != "" {
		return s
	}
	return "paid"
}

func checkoutEmail(session stripe.CheckoutSession, fallback string) string {
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		return session.CustomerDetails.Email
	}
	if session.CustomerEmail != "" {
		return session.CustomerEmail
	}
	return fallback
}
