package billing

import (
	"strings"

	"github.com/ManuelReschke/DocuChat/app/models"
)

// StatusKind enumerates the provider subscription states we know about.
type StatusKind int

const (
	StatusUnknown StatusKind = iota
	StatusActive
	StatusTrialing
	StatusPastDue
	StatusCanceled
	StatusIncomplete
	StatusIncompleteExpired
	StatusUnpaid
	StatusPaused
)

var statusKinds = map[string]StatusKind{
	models.LedgerStatusActive:            StatusActive,
	models.LedgerStatusTrialing:          StatusTrialing,
	models.LedgerStatusPastDue:           StatusPastDue,
	models.LedgerStatusCanceled:          StatusCanceled,
	models.LedgerStatusIncomplete:        StatusIncomplete,
	models.LedgerStatusIncompleteExpired: StatusIncompleteExpired,
	models.LedgerStatusUnpaid:            StatusUnpaid,
	models.LedgerStatusPaused:            StatusPaused,
}

// ExternalStatus is a provider subscription status. Unknown values keep
// their raw spelling so the ledger stores what the provider sent.
type ExternalStatus struct {
	kind StatusKind
	raw  string
}

func ParseExternalStatus(raw string) ExternalStatus {
	norm := strings.ToLower(strings.TrimSpace(raw))
	if kind, ok := statusKinds[norm]; ok {
		return ExternalStatus{kind: kind, raw: norm}
	}
	if norm == "" {
		norm = "unknown"
	}
	return ExternalStatus{kind: StatusUnknown, raw: norm}
}

func ActiveStatus() ExternalStatus {
	return ExternalStatus{kind: StatusActive, raw: models.LedgerStatusActive}
}

func (s ExternalStatus) Kind() StatusKind { return s.kind }

// Raw is the value persisted in the ledger.
func (s ExternalStatus) Raw() string {
	if s.raw == "" {
		return "unknown"
	}
	return s.raw
}

func (s ExternalStatus) String() string { return s.Raw() }

func (s ExternalStatus) IsActive() bool { return s.kind == StatusActive }

// UserStatus collapses the provider state into the cached user status.
// Only a strictly active subscription grants access; trialing and past_due
// map to canceled as well.
func (s ExternalStatus) UserStatus() string {
	if s.kind == StatusActive {
		return models.SubscriptionStatusActive
	}
	return models.SubscriptionStatusCanceled
}
