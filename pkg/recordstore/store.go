// Package recordstore abstracts the page-oriented external record
// store that owns merchant profiles and the collections that reference
// them. HTTPStore talks to the real store; InMemoryStore backs tests
// and local development.
package recordstore

import (
	"context"
)

// FilterKind selects the match strategy for a query filter.
type FilterKind string

const (
	// FilterPhoneEquals is an exact match against a phone-typed field.
	FilterPhoneEquals FilterKind = "phone_equals"
	// FilterTextContains is a contains match against a free-text field.
	// Slower and looser than a typed match; used as a fallback for
	// legacy records stored as free text.
	FilterTextContains FilterKind = "text_contains"
	// FilterTitleEquals is an exact match against the title field.
	FilterTitleEquals FilterKind = "title_equals"
	// FilterEmailEquals is an exact match against an email-typed field.
	FilterEmailEquals FilterKind = "email_equals"
)

// Filter is a single-field query predicate.
type Filter struct {
	Field string     `json:"field"`
	Kind  FilterKind `json:"kind"`
	Value string     `json:"value"`
}

// Sort orders query results by a single field.
type Sort struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// QueryOptions carries optional pagination and ordering parameters.
type QueryOptions struct {
	Sort     *Sort
	PageSize int
	Cursor   string
}

// QueryResult is one page of query results.
type QueryResult struct {
	Results    []Record `json:"results"`
	HasMore    bool     `json:"has_more"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// Record is a single page-store record. Property values are strings,
// string slices (relations, multi-selects) or nil.
type Record struct {
	ID           string         `json:"id"`
	CollectionID string         `json:"collection_id"`
	Properties   map[string]any `json:"properties"`
}

// StringProp returns the named property as a string, or "" when the
// property is absent or not string-shaped.
func (r *Record) StringProp(name string) string {
	switch v := r.Properties[name].(type) {
	case string:
		return v
	case *string:
		if v != nil {
			return *v
		}
	}
	return ""
}

// RelationProp returns the record ids a relation property points at.
func (r *Record) RelationProp(name string) []string {
	switch v := r.Properties[name].(type) {
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				ids = append(ids, s)
			}
		}
		return ids
	}
	return nil
}

// Store is the record store surface clover consumes.
type Store interface {
	GetRecord(ctx context.Context, id string) (*Record, error)
	QueryCollection(ctx context.Context, collectionID string, filter *Filter, opts *QueryOptions) (*QueryResult, error)
	UpdateRecordProperties(ctx context.Context, id string, properties map[string]any) error
	CreateRecord(ctx context.Context, collectionID string, properties map[string]any) (*Record, error)
}
