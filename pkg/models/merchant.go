package models

import (
	"encoding/json"
	"time"
)

// MerchantInfo is the resolved identity for a profile: the durable
// merchant UUID (nil until one can be resolved) and the display name.
type MerchantInfo struct {
	UUID *string `json:"uuid,omitempty"`
	Name string  `json:"name"`
}

// CanonicalMerchantRecord maps a normalized merchant name to its durable
// UUID. Derived from the single authoritative collection; one UUID per
// normalized name.
type CanonicalMerchantRecord struct {
	NormalizedName string `json:"normalized_name"`
	UUID           string `json:"uuid"`
	SourcePageID   string `json:"source_page_id"`
}

// MerchantUUIDGap is a record that references a merchant but has no
// resolvable UUID. Produced by the reconciler, consumed by repair.
type MerchantUUIDGap struct {
	CollectionName   string `json:"collection_name"`
	CollectionID     string `json:"collection_id"`
	RecordID         string `json:"record_id"`
	MerchantNameHint string `json:"merchant_name_hint,omitempty"`
}

// MerchantAggregate is the per-merchant ledger row, keyed by profile_id.
// Created on first interaction, upserted on every subsequent one, never
// deleted by clover.
type MerchantAggregate struct {
	ProfileID           string          `json:"profile_id" db:"profile_id"`
	UUID                *string         `json:"uuid,omitempty" db:"uuid"`
	Name                string          `json:"name" db:"name"`
	NormalizedPhone     *string         `json:"normalized_phone,omitempty" db:"normalized_phone"`
	NormalizedEmail     *string         `json:"normalized_email,omitempty" db:"normalized_email"`
	Status              *string         `json:"status,omitempty" db:"status"`
	Segment             *string         `json:"segment,omitempty" db:"segment"`
	Owner               *string         `json:"owner,omitempty" db:"owner"`
	FirstInteractionAt  *time.Time      `json:"first_interaction_at,omitempty" db:"first_interaction_at"`
	LastInteractionAt   *time.Time      `json:"last_interaction_at,omitempty" db:"last_interaction_at"`
	TotalCalls          int64           `json:"total_calls" db:"total_calls"`
	TotalMessages       int64           `json:"total_messages" db:"total_messages"`
	TotalMail           int64           `json:"total_mail" db:"total_mail"`
	LastInteractionType *string         `json:"last_interaction_type,omitempty" db:"last_interaction_type"`
	LastSummary         *string         `json:"last_summary,omitempty" db:"last_summary"`
	LastSyncedAt        *time.Time      `json:"last_synced_at,omitempty" db:"last_synced_at"`
	Metadata            json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// MerchantAggregateUpsert is the input for creating/updating an
// aggregate row from a freshly fetched profile plus the interaction
// being recorded.
type MerchantAggregateUpsert struct {
	ProfileID           string          `json:"profile_id" validate:"required"`
	UUID                *string         `json:"uuid,omitempty"`
	Name                string          `json:"name"`
	NormalizedPhone     *string         `json:"normalized_phone,omitempty"`
	NormalizedEmail     *string         `json:"normalized_email,omitempty"`
	Status              *string         `json:"status,omitempty"`
	Segment             *string         `json:"segment,omitempty"`
	Owner               *string         `json:"owner,omitempty"`
	FirstInteractionAt  *time.Time      `json:"first_interaction_at,omitempty"`
	LastInteractionAt   *time.Time      `json:"last_interaction_at,omitempty"`
	LastInteractionType *string         `json:"last_interaction_type,omitempty"`
	LastSummary         *string         `json:"last_summary,omitempty"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
}

// ReconcileResult is the outcome of a full reconciliation pass.
type ReconcileResult struct {
	Updated int               `json:"updated"`
	Missing []MerchantUUIDGap `json:"missing"`
}
