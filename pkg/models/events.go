package models

import (
	"encoding/json"
	"time"
)

// CommEvent is an inbound communication event from the telephony/mail
// provider, consumed from the comm-events topic. One event is processed
// by one cooperative task; re-delivery is safe because the ledger is
// idempotent by EventID.
type CommEvent struct {
	EventID      string          `json:"event_id" validate:"required"`
	Type         InteractionType `json:"type" validate:"required"`
	Direction    string          `json:"direction,omitempty"`
	FromPhone    string          `json:"from_phone,omitempty"`
	ToPhone      string          `json:"to_phone,omitempty"`
	FromEmail    string          `json:"from_email,omitempty"`
	ToEmail      string          `json:"to_email,omitempty"`
	Summary      *string         `json:"summary,omitempty"`
	Sentiment    *string         `json:"sentiment,omitempty"`
	LeadScore    *int64          `json:"lead_score,omitempty"`
	OccurredAt   *time.Time      `json:"occurred_at,omitempty"`
	ThreadID     *string         `json:"thread_id,omitempty"`
	Subject      *string         `json:"subject,omitempty"`
	Preview      *string         `json:"preview,omitempty"`
	Participants []string        `json:"participants,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// ContactIdentifier returns the identifier to resolve the counterparty
// with: the remote phone for calls/messages, the remote email for mail.
// Outbound events resolve the "to" side, inbound the "from" side.
func (e *CommEvent) ContactIdentifier() (value string, idType IdentifierType) {
	outbound := e.Direction == "outgoing" || e.Direction == "outbound"
	switch e.Type {
	case InteractionTypeMail:
		if outbound {
			return e.ToEmail, IdentifierTypeEmail
		}
		return e.FromEmail, IdentifierTypeEmail
	default:
		if outbound {
			return e.ToPhone, IdentifierTypePhone
		}
		return e.FromPhone, IdentifierTypePhone
	}
}

// MerchantGapEvent is published when a reconciliation pass leaves a
// record without a resolvable merchant UUID, for out-of-band repair.
type MerchantGapEvent struct {
	Gap        MerchantUUIDGap `json:"gap"`
	DetectedAt time.Time       `json:"detected_at"`
}
