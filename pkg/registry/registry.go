// Package registry implements the canonical merchant registry: the
// single source of truth mapping normalized merchant name to durable
// merchant UUID, derived from one authoritative record collection.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/recordstore"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Config identifies the authoritative collection and its fields.
type Config struct {
	CollectionID string
	NameField    string
	UUIDField    string
	PageSize     int
}

// Registry loads and caches the name->UUID map once per process. It is
// an explicitly constructed object, not a module singleton; tests can
// hold multiple independent instances and Reset between cases.
type Registry struct {
	logger ectologger.Logger
	store  recordstore.Store
	config Config

	mu     sync.Mutex
	loaded map[string]models.CanonicalMerchantRecord
}

// New creates a registry over the given record store.
func New(logger ectologger.Logger, store recordstore.Store, config Config) (*Registry, error) {
	if config.CollectionID == "" {
		return nil, fmt.Errorf("registry: collection id is required")
	}
	if config.NameField == "" {
		config.NameField = "Name"
	}
	if config.UUIDField == "" {
		config.UUIDField = "Merchant UUID"
	}
	if config.PageSize <= 0 {
		config.PageSize = 100
	}
	return &Registry{
		logger: logger,
		store:  store,
		config: config,
	}, nil
}

// Load paginates the authoritative collection and returns the
// normalized-name -> canonical record map. The map is cached after the
// first successful load. Records missing a UUID get one minted from
// their own record id and persisted back; a persistence failure is
// logged and the record stays missing for this pass.
func (r *Registry) Load(ctx context.Context) (map[string]models.CanonicalMerchantRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "registry.Registry.Load")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded != nil {
		return r.loaded, nil
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"collection_id": r.config.CollectionID,
	})

	records := make(map[string]models.CanonicalMerchantRecord)
	cursor := ""
	for {
		page, err := r.store.QueryCollection(ctx, r.config.CollectionID, nil, &recordstore.QueryOptions{
			PageSize: r.config.PageSize,
			Cursor:   cursor,
		})
		if err != nil {
			log.WithError(err).Error("Failed to load canonical merchant collection")
			return nil, fmt.Errorf("registry: load collection %s: %w", r.config.CollectionID, err)
		}

		for i := range page.Results {
			rec := &page.Results[i]
			name := normalizers.MerchantName(rec.StringProp(r.config.NameField))
			if name == "" {
				continue
			}

			id := rec.StringProp(r.config.UUIDField)
			if id == "" {
				id = MintUUID(rec.ID)
				if err := r.store.UpdateRecordProperties(ctx, rec.ID, map[string]any{
					r.config.UUIDField: id,
				}); err != nil {
					// Treated as still missing for this pass; a later
					// load or reconciliation pass retries the backfill.
					log.WithError(err).WithFields(map[string]any{
						"record_id": rec.ID,
					}).Warn("Failed to backfill merchant UUID on canonical record")
					continue
				}
				log.WithFields(map[string]any{
					"record_id": rec.ID,
					"uuid":      id,
				}).Info("Backfilled merchant UUID on canonical record")
			}

			records[name] = models.CanonicalMerchantRecord{
				NormalizedName: name,
				UUID:           id,
				SourcePageID:   rec.ID,
			}
		}

		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	log.WithFields(map[string]any{"merchants": len(records)}).Info("Loaded canonical merchant registry")
	r.loaded = records
	return r.loaded, nil
}

// LookupByName resolves a merchant name to its canonical UUID. Returns
// "" on empty input, empty normalized form, or a miss.
func (r *Registry) LookupByName(ctx context.Context, name string) (string, error) {
	normalized := normalizers.MerchantName(name)
	if normalized == "" {
		return "", nil
	}

	records, err := r.Load(ctx)
	if err != nil {
		return "", err
	}

	if rec, ok := records[normalized]; ok {
		return rec.UUID, nil
	}
	return "", nil
}

// Reset discards the cached map so the next Load re-reads the
// collection. Intended for tests and long-lived operator tooling.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = nil
}

// MintUUID derives a stable merchant UUID token from a source record
// id: its lowercase alphanumeric form. Id-derived, not random, so every
// run mints the same token for the same record.
func MintUUID(recordID string) string {
	return normalizers.MerchantName(recordID)
}
