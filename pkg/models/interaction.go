package models

import (
	"encoding/json"
	"time"
)

// InteractionType identifies the kind of communication event.
type InteractionType string

const (
	InteractionTypeCall    InteractionType = "call"
	InteractionTypeMessage InteractionType = "message"
	InteractionTypeMail    InteractionType = "mail"
)

// Valid reports whether t is one of the known interaction types.
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionTypeCall, InteractionTypeMessage, InteractionTypeMail:
		return true
	}
	return false
}

// Interaction is one ledger row per interaction id. The id is the
// idempotency key: a second write with the same id updates in place and
// never duplicates the row or re-increments aggregate counters.
type Interaction struct {
	ID              string          `json:"id" db:"id"`
	ProfileID       string          `json:"profile_id" db:"profile_id"`
	InteractionType InteractionType `json:"interaction_type" db:"interaction_type"`
	Direction       *string         `json:"direction,omitempty" db:"direction"`
	Summary         *string         `json:"summary,omitempty" db:"summary"`
	Sentiment       *string         `json:"sentiment,omitempty" db:"sentiment"`
	LeadScore       *int64          `json:"lead_score,omitempty" db:"lead_score"`
	OccurredAt      *time.Time      `json:"occurred_at,omitempty" db:"occurred_at"`
	ExternalPageID  *string         `json:"external_page_id,omitempty" db:"external_page_id"`
	SourceEventID   *string         `json:"source_event_id,omitempty" db:"source_event_id"`
	MailThreadID    *string         `json:"mail_thread_id,omitempty" db:"mail_thread_id"`
	Metadata        json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// InteractionRecord is the input for recording an interaction.
type InteractionRecord struct {
	ID              string          `json:"id" validate:"required"`
	ProfileID       string          `json:"profile_id" validate:"required"`
	InteractionType InteractionType `json:"interaction_type" validate:"required"`
	Direction       *string         `json:"direction,omitempty"`
	Summary         *string         `json:"summary,omitempty"`
	Sentiment       *string         `json:"sentiment,omitempty"`
	LeadScore       *int64          `json:"lead_score,omitempty"`
	OccurredAt      *time.Time      `json:"occurred_at,omitempty"`
	ExternalPageID  *string         `json:"external_page_id,omitempty"`
	SourceEventID   *string         `json:"source_event_id,omitempty"`
	MailThreadID    *string         `json:"mail_thread_id,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// MailThread is the per-thread ledger row, keyed by thread_id.
type MailThread struct {
	ThreadID           string          `json:"thread_id" db:"thread_id"`
	ProfileID          string          `json:"profile_id" db:"profile_id"`
	Subject            *string         `json:"subject,omitempty" db:"subject"`
	LastMessagePreview *string         `json:"last_message_preview,omitempty" db:"last_message_preview"`
	LastMessageAt      *time.Time      `json:"last_message_at,omitempty" db:"last_message_at"`
	MessageCount       int64           `json:"message_count" db:"message_count"`
	Participants       json.RawMessage `json:"participants,omitempty" db:"participants"`
	Metadata           json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// MailThreadUpsert is the input for inserting/merging a mail thread.
// MessageCount is tri-state: a nil pointer leaves the stored count
// untouched, a pointer (including to zero) overwrites it.
type MailThreadUpsert struct {
	ThreadID           string          `json:"thread_id" validate:"required"`
	ProfileID          string          `json:"profile_id" validate:"required"`
	Subject            *string         `json:"subject,omitempty"`
	LastMessagePreview *string         `json:"last_message_preview,omitempty"`
	LastMessageAt      *time.Time      `json:"last_message_at,omitempty"`
	MessageCount       *int64          `json:"message_count,omitempty"`
	Participants       json.RawMessage `json:"participants,omitempty"`
	Metadata           json.RawMessage `json:"metadata,omitempty"`
}
