package models

import "time"

// IdentifierType distinguishes the two contact identifier kinds used as
// cache key components.
type IdentifierType string

const (
	IdentifierTypePhone IdentifierType = "phone"
	IdentifierTypeEmail IdentifierType = "email"
)

// Valid reports whether t is one of the known identifier types.
func (t IdentifierType) Valid() bool {
	return t == IdentifierTypePhone || t == IdentifierTypeEmail
}

// CacheEntry is the structured value stored in both cache tiers. A
// legacy plain-string entry (just the profile id, no UUID) is still
// accepted on read and treated as {ProfileID: value, MerchantUUID: nil}.
type CacheEntry struct {
	ProfileID    string     `json:"profile_id"`
	MerchantUUID *string    `json:"merchant_uuid,omitempty"`
	MerchantName string     `json:"merchant_name,omitempty"`
	CachedAt     *time.Time `json:"cached_at,omitempty"`
}
