package recordstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// InMemoryStore is a Store backed by process memory. It implements the
// same filter and pagination semantics as the real page store and is
// used for tests and local development.
type InMemoryStore struct {
	mu          sync.RWMutex
	records     map[string]*Record   // by record id
	collections map[string][]string  // collection id -> record ids, insertion order

	// failures holds record ids whose writes should fail, for tests
	// exercising degraded paths.
	failures map[string]error
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:     make(map[string]*Record),
		collections: make(map[string][]string),
		failures:    make(map[string]error),
	}
}

// Seed inserts a record with a known id, bypassing CreateRecord.
func (s *InMemoryStore) Seed(collectionID, id string, properties map[string]any) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &Record{ID: id, CollectionID: collectionID, Properties: cloneProps(properties)}
	s.records[id] = rec
	s.collections[collectionID] = append(s.collections[collectionID], id)
	return rec
}

// FailWrites makes UpdateRecordProperties fail for the given record id.
func (s *InMemoryStore) FailWrites(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id] = err
}

// GetRecord returns the record or nil when absent.
func (s *InMemoryStore) GetRecord(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

// QueryCollection evaluates the filter over the collection in insertion
// order with cursor pagination.
func (s *InMemoryStore) QueryCollection(_ context.Context, collectionID string, filter *Filter, opts *QueryOptions) (*QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pageSize := 100
	start := 0
	if opts != nil {
		if opts.PageSize > 0 {
			pageSize = opts.PageSize
		}
		if opts.Cursor != "" {
			n, err := strconv.Atoi(opts.Cursor)
			if err != nil {
				return nil, fmt.Errorf("invalid cursor %q", opts.Cursor)
			}
			start = n
		}
	}

	matched := make([]*Record, 0)
	for _, id := range s.collections[collectionID] {
		rec := s.records[id]
		if filter == nil || matches(rec, filter) {
			matched = append(matched, rec)
		}
	}

	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	if start > len(matched) {
		start = len(matched)
	}

	result := &QueryResult{HasMore: end < len(matched)}
	for _, rec := range matched[start:end] {
		result.Results = append(result.Results, *cloneRecord(rec))
	}
	if result.HasMore {
		result.NextCursor = strconv.Itoa(end)
	}
	return result, nil
}

// UpdateRecordProperties merges properties into an existing record.
func (s *InMemoryStore) UpdateRecordProperties(_ context.Context, id string, properties map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failures[id]; ok {
		return err
	}
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("record %s not found", id)
	}
	for k, v := range properties {
		rec.Properties[k] = v
	}
	return nil
}

// CreateRecord appends a new record to the collection.
func (s *InMemoryStore) CreateRecord(_ context.Context, collectionID string, properties map[string]any) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &Record{ID: uuid.New().String(), CollectionID: collectionID, Properties: cloneProps(properties)}
	s.records[rec.ID] = rec
	s.collections[collectionID] = append(s.collections[collectionID], rec.ID)
	return cloneRecord(rec), nil
}

func matches(rec *Record, filter *Filter) bool {
	value := rec.StringProp(filter.Field)
	switch filter.Kind {
	case FilterPhoneEquals, FilterTitleEquals, FilterEmailEquals:
		return value == filter.Value
	case FilterTextContains:
		return filter.Value != "" && strings.Contains(value, filter.Value)
	}
	return false
}

func cloneProps(properties map[string]any) map[string]any {
	out := make(map[string]any, len(properties))
	for k, v := range properties {
		out[k] = v
	}
	return out
}

func cloneRecord(rec *Record) *Record {
	return &Record{ID: rec.ID, CollectionID: rec.CollectionID, Properties: cloneProps(rec.Properties)}
}
