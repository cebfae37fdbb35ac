package billing

import "time"

const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Outcome is how a verified event was acknowledged.
type Outcome string

const (
	// OutcomeProcessed: state was written (or already matched).
	OutcomeProcessed Outcome = "processed"
	// OutcomeIgnored: event type is not handled.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeDropped: handled type, but the event cannot be applied.
	OutcomeDropped Outcome = "dropped"
	// OutcomeFailed: a transient error; the provider should redeliver.
	OutcomeFailed Outcome = "failed"
)

// Result describes a reconciled webhook delivery.
type Result struct {
	EventID   string        `json:"eventId"`
	EventType string        `json:"eventType"`
	Outcome   Outcome       `json:"outcome"`
	Reason    string        `json:"reason,omitempty"`
	Took      time.Duration `json:"-"`
}

// DeliveryInput is the normalized input for the delivery log.
type DeliveryInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	ObjectID        string
	Payload         []byte
}
