// Package reconciler repairs merchant UUIDs across every record
// collection that references merchants. Collections are processed
// independently: a failure partway through one neither rolls back its
// prior writes nor blocks the remaining collections. Repair is
// at-least-once and non-transactional; cross-store consistency is
// eventual.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/recordstore"
	"github.com/Ramsey-B/clover/pkg/registry"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Collection describes one record collection to reconcile. A collection
// resolves merchants either through a relation to the profile
// collection (RelationField) or through a free-text merchant name
// (NameField); both may be set, relation wins.
type Collection struct {
	Name          string
	CollectionID  string
	UUIDField     string
	RelationField string
	NameField     string
}

// MerchantInfoSource resolves a profile id to merchant identity. The
// profile resolver satisfies this.
type MerchantInfoSource interface {
	GetMerchantInfo(ctx context.Context, profileID string) (*models.MerchantInfo, error)
}

// GapPublisher receives gap events for out-of-band repair tooling.
type GapPublisher interface {
	PublishGap(ctx context.Context, event models.MerchantGapEvent) error
}

// Reconciler walks the configured collections and repairs missing or
// mismatched merchant UUIDs.
type Reconciler struct {
	logger      ectologger.Logger
	store       recordstore.Store
	registry    *registry.Registry
	infos       MerchantInfoSource
	collections []Collection
	publisher   GapPublisher
	pageSize    int

	mu   sync.Mutex
	last *models.ReconcileResult
}

// New creates a reconciler. publisher may be nil.
func New(
	logger ectologger.Logger,
	store recordstore.Store,
	reg *registry.Registry,
	infos MerchantInfoSource,
	collections []Collection,
	publisher GapPublisher,
) (*Reconciler, error) {
	for _, col := range collections {
		if col.CollectionID == "" || col.UUIDField == "" {
			return nil, fmt.Errorf("reconciler: collection %q needs a collection id and uuid field", col.Name)
		}
		if col.RelationField == "" && col.NameField == "" {
			return nil, fmt.Errorf("reconciler: collection %q needs a relation field or a name field", col.Name)
		}
	}
	return &Reconciler{
		logger:      logger,
		store:       store,
		registry:    reg,
		infos:       infos,
		collections: collections,
		publisher:   publisher,
		pageSize:    100,
	}, nil
}

// Reconcile runs a full pass over every collection and returns the
// number of records updated plus the gaps it could not resolve.
func (r *Reconciler) Reconcile(ctx context.Context) (*models.ReconcileResult, error) {
	ctx, span := tracing.StartSpan(ctx, "reconciler.Reconciler.Reconcile")
	defer span.End()

	result := &models.ReconcileResult{Missing: []models.MerchantUUIDGap{}}
	for _, col := range r.collections {
		updated, missing := r.reconcileCollection(ctx, col)
		result.Updated += updated
		result.Missing = append(result.Missing, missing...)
	}

	metrics.ReconcileRunsTotal.Inc()
	metrics.ReconcileUpdatedTotal.Add(float64(result.Updated))
	metrics.ReconcileGapsTotal.Add(float64(len(result.Missing)))

	r.mu.Lock()
	r.last = result
	r.mu.Unlock()

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"updated": result.Updated,
		"missing": len(result.Missing),
	}).Info("Reconciliation pass complete")
	return result, nil
}

// LastResult returns the most recent pass result, or nil before the
// first pass completes.
func (r *Reconciler) LastResult() *models.ReconcileResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Reconciler) reconcileCollection(ctx context.Context, col Collection) (int, []models.MerchantUUIDGap) {
	ctx, span := tracing.StartSpan(ctx, "reconciler.Reconciler.reconcileCollection")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"collection":    col.Name,
		"collection_id": col.CollectionID,
	})

	updated := 0
	missing := []models.MerchantUUIDGap{}

	cursor := ""
	for {
		page, err := r.store.QueryCollection(ctx, col.CollectionID, nil, &recordstore.QueryOptions{
			PageSize: r.pageSize,
			Cursor:   cursor,
		})
		if err != nil {
			// Writes already made stand; remaining collections still run.
			log.WithError(err).Error("Failed to page collection, abandoning remainder of this collection")
			return updated, missing
		}

		for i := range page.Results {
			rec := &page.Results[i]

			resolved, nameHint := r.resolveUUID(ctx, col, rec)
			current := rec.StringProp(col.UUIDField)

			if resolved == "" {
				gap := models.MerchantUUIDGap{
					CollectionName:   col.Name,
					CollectionID:     col.CollectionID,
					RecordID:         rec.ID,
					MerchantNameHint: nameHint,
				}
				missing = append(missing, gap)
				r.publishGap(ctx, gap)
				continue
			}

			if resolved == current {
				continue
			}

			if err := r.store.UpdateRecordProperties(ctx, rec.ID, map[string]any{
				col.UUIDField: resolved,
			}); err != nil {
				log.WithError(err).WithFields(map[string]any{"record_id": rec.ID}).Warn("Failed to write merchant UUID, surfacing as gap")
				gap := models.MerchantUUIDGap{
					CollectionName:   col.Name,
					CollectionID:     col.CollectionID,
					RecordID:         rec.ID,
					MerchantNameHint: nameHint,
				}
				missing = append(missing, gap)
				r.publishGap(ctx, gap)
				continue
			}
			updated++
		}

		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	log.WithFields(map[string]any{"updated": updated, "missing": len(missing)}).Info("Reconciled collection")
	return updated, missing
}

// resolveUUID determines the record's resolvable UUID: relation to the
// profile collection first, then registry lookup by name. Also returns
// the best-effort merchant name hint for gap reporting.
func (r *Reconciler) resolveUUID(ctx context.Context, col Collection, rec *recordstore.Record) (string, string) {
	nameHint := ""
	if col.NameField != "" {
		nameHint = rec.StringProp(col.NameField)
	}

	if col.RelationField != "" {
		for _, profileID := range rec.RelationProp(col.RelationField) {
			info, err := r.infos.GetMerchantInfo(ctx, profileID)
			if err != nil {
				r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"record_id":  rec.ID,
					"profile_id": profileID,
				}).Warn("Merchant info lookup failed during reconciliation")
				continue
			}
			if info == nil {
				continue
			}
			if nameHint == "" {
				nameHint = info.Name
			}
			if info.UUID != nil && *info.UUID != "" {
				return *info.UUID, nameHint
			}
		}
	}

	if nameHint != "" && r.registry != nil {
		id, err := r.registry.LookupByName(ctx, nameHint)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"record_id": rec.ID,
			}).Warn("Registry lookup failed during reconciliation")
			return "", nameHint
		}
		return id, nameHint
	}

	return "", nameHint
}

// RepairGap re-attempts resolution for a single gap using the same
// per-collection strategy, writing the UUID on success. Returns the
// resolved UUID or "" when the gap still cannot be closed.
func (r *Reconciler) RepairGap(ctx context.Context, gap models.MerchantUUIDGap) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "reconciler.Reconciler.RepairGap")
	defer span.End()

	var col *Collection
	for i := range r.collections {
		if r.collections[i].Name == gap.CollectionName || r.collections[i].CollectionID == gap.CollectionID {
			col = &r.collections[i]
			break
		}
	}
	if col == nil {
		return "", fmt.Errorf("reconciler: unknown collection %q", gap.CollectionName)
	}

	rec, err := r.store.GetRecord(ctx, gap.RecordID)
	if err != nil {
		return "", fmt.Errorf("reconciler: get record %s: %w", gap.RecordID, err)
	}
	if rec == nil {
		return "", nil
	}

	resolved, _ := r.resolveUUID(ctx, *col, rec)
	if resolved == "" && gap.MerchantNameHint != "" && r.registry != nil {
		resolved, err = r.registry.LookupByName(ctx, gap.MerchantNameHint)
		if err != nil {
			return "", err
		}
	}
	if resolved == "" {
		return "", nil
	}

	if resolved != rec.StringProp(col.UUIDField) {
		if err := r.store.UpdateRecordProperties(ctx, rec.ID, map[string]any{
			col.UUIDField: resolved,
		}); err != nil {
			return "", fmt.Errorf("reconciler: write repaired uuid: %w", err)
		}
	}
	return resolved, nil
}

func (r *Reconciler) publishGap(ctx context.Context, gap models.MerchantUUIDGap) {
	if r.publisher == nil {
		return
	}
	event := models.MerchantGapEvent{Gap: gap, DetectedAt: time.Now().UTC()}
	if err := r.publisher.PublishGap(ctx, event); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"record_id": gap.RecordID,
		}).Warn("Failed to publish merchant gap event")
	}
}
