// Package cache implements the three-tier identity lookup: in-process
// edge cache, regional key-value store, then origin resolution against
// the record store. Tiers are probed strictly in order; hits promote
// toward the edge, misses fall through.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// EdgeTier is the fast, short-TTL, per-process tier.
type EdgeTier interface {
	Match(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RegionalTier is the shared, longer-TTL tier. Its TTL outlives the
// edge TTL so an edge failure degrades to a regional hit, not an
// origin call, on every miss.
type RegionalTier interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Origin resolves an identifier when both cache tiers miss.
type Origin interface {
	FindProfile(ctx context.Context, identifier string, idType models.IdentifierType) (string, error)
	GetMerchantInfo(ctx context.Context, profileID string) (*models.MerchantInfo, error)
}

// Config carries the two independent TTLs.
type Config struct {
	EdgeTTL     time.Duration
	RegionalTTL time.Duration
}

// MultiTier is the three-tier identity cache.
type MultiTier struct {
	logger   ectologger.Logger
	edge     EdgeTier
	regional RegionalTier
	origin   Origin
	config   Config

	// pending tracks in-flight best-effort writes so shutdown (and
	// tests) can wait for them.
	pending sync.WaitGroup
}

// NewMultiTier creates the cache. Zero TTLs get serviceable defaults.
func NewMultiTier(logger ectologger.Logger, edge EdgeTier, regional RegionalTier, origin Origin, config Config) *MultiTier {
	if config.EdgeTTL <= 0 {
		config.EdgeTTL = 5 * time.Minute
	}
	if config.RegionalTTL <= 0 {
		config.RegionalTTL = time.Hour
	}
	return &MultiTier{
		logger:   logger,
		edge:     edge,
		regional: regional,
		origin:   origin,
		config:   config,
	}
}

// Lookup resolves an identifier to its cache entry, probing edge, then
// regional, then origin. A negative origin result is returned as nil
// and never cached, so a record-store fix is visible on the next
// attempt.
func (c *MultiTier) Lookup(ctx context.Context, identifier string, idType models.IdentifierType) (*models.CacheEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "cache.MultiTier.Lookup")
	defer span.End()

	if Normalize(identifier, idType) == "" {
		return nil, nil
	}

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"identifier": identifier,
		"type":       idType,
	})

	edgeKey := EdgeKey(identifier, idType)
	regionalKey := RegionalKey(identifier, idType)

	// Tier 1: edge
	if value, ok, err := c.edge.Match(ctx, edgeKey); err != nil {
		log.WithError(err).Warn("Edge tier match failed")
	} else if ok {
		metrics.CacheLookupsTotal.WithLabelValues("edge", "hit").Inc()
		entry := DecodeEntry(value)
		return &entry, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("edge", "miss").Inc()

	// Tier 2: regional, with async promotion to edge
	if value, ok, err := c.regional.Get(ctx, regionalKey); err != nil {
		log.WithError(err).Warn("Regional tier get failed")
	} else if ok {
		metrics.CacheLookupsTotal.WithLabelValues("regional", "hit").Inc()
		entry := DecodeEntry(value)
		c.async(func() {
			if err := c.edge.Put(context.WithoutCancel(ctx), edgeKey, value, c.config.EdgeTTL); err != nil {
				log.WithError(err).Warn("Edge promotion failed")
			}
		})
		return &entry, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("regional", "miss").Inc()

	// Tier 3: origin
	profileID, err := c.origin.FindProfile(ctx, identifier, idType)
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("origin", "error").Inc()
		return nil, err
	}
	if profileID == "" {
		metrics.CacheLookupsTotal.WithLabelValues("origin", "miss").Inc()
		return nil, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("origin", "hit").Inc()

	now := time.Now().UTC()
	entry := models.CacheEntry{ProfileID: profileID, CachedAt: &now}
	if info, err := c.origin.GetMerchantInfo(ctx, profileID); err != nil {
		log.WithError(err).Warn("Merchant info resolution failed, caching profile id only")
	} else if info != nil {
		entry.MerchantUUID = info.UUID
		entry.MerchantName = info.Name
	}

	c.writeThrough(ctx, edgeKey, regionalKey, entry, log)
	return &entry, nil
}

// writeThrough stores the entry in both tiers in parallel. Both writes
// complete before Lookup returns, but a failure of either is only
// logged.
func (c *MultiTier) writeThrough(ctx context.Context, edgeKey, regionalKey string, entry models.CacheEntry, log ectologger.Logger) {
	value, err := EncodeEntry(entry)
	if err != nil {
		log.WithError(err).Error("Failed to encode cache entry")
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := c.edge.Put(ctx, edgeKey, value, c.config.EdgeTTL); err != nil {
			log.WithError(err).Warn("Edge write-through failed")
		}
	}()
	go func() {
		defer wg.Done()
		if err := c.regional.Put(ctx, regionalKey, value, c.config.RegionalTTL); err != nil {
			log.WithError(err).Warn("Regional write-through failed")
		}
	}()
	wg.Wait()
}

// Invalidate removes the identifier's entry from both tiers. Called
// whenever upstream relationship data changes.
func (c *MultiTier) Invalidate(ctx context.Context, identifier string, idType models.IdentifierType) error {
	ctx, span := tracing.StartSpan(ctx, "cache.MultiTier.Invalidate")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"identifier": identifier,
		"type":       idType,
	})

	if err := c.edge.Delete(ctx, EdgeKey(identifier, idType)); err != nil {
		log.WithError(err).Warn("Edge invalidation failed")
	}
	if err := c.regional.Delete(ctx, RegionalKey(identifier, idType)); err != nil {
		log.WithError(err).Warn("Regional invalidation failed")
		return err
	}
	return nil
}

// WarmMapping is one known identifier -> entry pair for bulk warm-up.
type WarmMapping struct {
	Identifier string                `json:"identifier"`
	Type       models.IdentifierType `json:"type"`
	Entry      models.CacheEntry     `json:"entry"`
}

// WarmUp bulk-populates both tiers, independent of the read path.
// Every mapping is attempted even when some fail; returns how many were
// written to at least the regional tier.
func (c *MultiTier) WarmUp(ctx context.Context, mappings []WarmMapping) int {
	ctx, span := tracing.StartSpan(ctx, "cache.MultiTier.WarmUp")
	defer span.End()

	log := c.logger.WithContext(ctx)

	warmed := 0
	for _, m := range mappings {
		if Normalize(m.Identifier, m.Type) == "" || m.Entry.ProfileID == "" {
			continue
		}
		entry := m.Entry
		if entry.CachedAt == nil {
			now := time.Now().UTC()
			entry.CachedAt = &now
		}
		value, err := EncodeEntry(entry)
		if err != nil {
			log.WithError(err).WithFields(map[string]any{"identifier": m.Identifier}).Warn("Failed to encode warm-up entry")
			continue
		}

		ok := true
		if err := c.regional.Put(ctx, RegionalKey(m.Identifier, m.Type), value, c.config.RegionalTTL); err != nil {
			log.WithError(err).WithFields(map[string]any{"identifier": m.Identifier}).Warn("Regional warm-up write failed")
			ok = false
		}
		if err := c.edge.Put(ctx, EdgeKey(m.Identifier, m.Type), value, c.config.EdgeTTL); err != nil {
			log.WithError(err).WithFields(map[string]any{"identifier": m.Identifier}).Warn("Edge warm-up write failed")
		}
		if ok {
			warmed++
		}
	}

	log.WithFields(map[string]any{"warmed": warmed, "requested": len(mappings)}).Info("Cache warm-up complete")
	return warmed
}

// Flush waits for pending async promotions. For shutdown and tests.
func (c *MultiTier) Flush() {
	c.pending.Wait()
}

func (c *MultiTier) async(fn func()) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		fn()
	}()
}

// EncodeEntry serializes an entry for tier storage.
func EncodeEntry(entry models.CacheEntry) (string, error) {
	b, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeEntry parses a tier value. Legacy entries were written as the
// bare profile id string; those still decode, with no merchant UUID.
func DecodeEntry(value string) models.CacheEntry {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") {
		var entry models.CacheEntry
		if err := json.Unmarshal([]byte(trimmed), &entry); err == nil && entry.ProfileID != "" {
			return entry
		}
	}
	return models.CacheEntry{ProfileID: value}
}
