// Package merchantaggregate persists the per-merchant ledger rows.
// Every write is a single INSERT .. ON CONFLICT statement; the database
// is the serialization point for concurrent writers.
package merchantaggregate

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles merchant aggregate persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new merchant aggregate repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const aggregateColumns = `profile_id, uuid, name, normalized_phone, normalized_email, status, segment, owner,
	first_interaction_at, last_interaction_at, total_calls, total_messages, total_mail,
	last_interaction_type, last_summary, last_synced_at, metadata, created_at, updated_at`

// Upsert inserts or updates the aggregate row for a profile.
//
// Merge rules on conflict:
//   - first_interaction_at takes the minimum, null meaning no constraint
//   - last_interaction_at/-type/-summary move together and only when the
//     incoming timestamp is >= the stored one (ties prefer the incoming
//     value)
//   - metadata is replaced only when the incoming value is non-null
//   - name, phones, status, segment, owner overwrite unconditionally
func (r *Repository) Upsert(ctx context.Context, req models.MerchantAggregateUpsert) (*models.MerchantAggregate, error) {
	ctx, span := tracing.StartSpan(ctx, "merchantaggregate.Repository.Upsert")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"profile_id": req.ProfileID,
	})

	now := time.Now().UTC()
	query := `
		INSERT INTO merchant_aggregates (` + aggregateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, 0, 0, $11, $12, $13, $14, $13, $13)
		ON CONFLICT (profile_id)
		DO UPDATE SET
			uuid = COALESCE(EXCLUDED.uuid, merchant_aggregates.uuid),
			name = EXCLUDED.name,
			normalized_phone = EXCLUDED.normalized_phone,
			normalized_email = EXCLUDED.normalized_email,
			status = EXCLUDED.status,
			segment = EXCLUDED.segment,
			owner = EXCLUDED.owner,
			first_interaction_at = LEAST(
				COALESCE(merchant_aggregates.first_interaction_at, EXCLUDED.first_interaction_at),
				COALESCE(EXCLUDED.first_interaction_at, merchant_aggregates.first_interaction_at)
			),
			last_interaction_at = CASE
				WHEN EXCLUDED.last_interaction_at IS NOT NULL
					AND (merchant_aggregates.last_interaction_at IS NULL
						OR EXCLUDED.last_interaction_at >= merchant_aggregates.last_interaction_at)
				THEN EXCLUDED.last_interaction_at
				ELSE merchant_aggregates.last_interaction_at
			END,
			last_interaction_type = CASE
				WHEN EXCLUDED.last_interaction_at IS NOT NULL
					AND (merchant_aggregates.last_interaction_at IS NULL
						OR EXCLUDED.last_interaction_at >= merchant_aggregates.last_interaction_at)
				THEN EXCLUDED.last_interaction_type
				ELSE merchant_aggregates.last_interaction_type
			END,
			last_summary = CASE
				WHEN EXCLUDED.last_interaction_at IS NOT NULL
					AND (merchant_aggregates.last_interaction_at IS NULL
						OR EXCLUDED.last_interaction_at >= merchant_aggregates.last_interaction_at)
				THEN EXCLUDED.last_summary
				ELSE merchant_aggregates.last_summary
			END,
			metadata = COALESCE(EXCLUDED.metadata, merchant_aggregates.metadata),
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + aggregateColumns

	var row models.MerchantAggregate
	err := r.db.GetContext(ctx, &row, query,
		req.ProfileID, req.UUID, req.Name, req.NormalizedPhone, req.NormalizedEmail,
		req.Status, req.Segment, req.Owner,
		req.FirstInteractionAt, req.LastInteractionAt,
		req.LastInteractionType, req.LastSummary, now, req.Metadata,
	)
	if err != nil {
		log.WithError(err).Error("Failed to upsert merchant aggregate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert merchant aggregate")
	}
	return &row, nil
}

// ApplyInteraction folds one interaction into the aggregate row,
// creating a minimal row when none exists yet. Counters increment only
// when incrementCounter is true (the interaction row was newly
// inserted); the last_* trio follows the same latest-wins rule as
// Upsert either way.
func (r *Repository) ApplyInteraction(
	ctx context.Context,
	profileID string,
	interactionType models.InteractionType,
	occurredAt *time.Time,
	summary *string,
	incrementCounter bool,
) error {
	ctx, span := tracing.StartSpan(ctx, "merchantaggregate.Repository.ApplyInteraction")
	defer span.End()

	now := time.Now().UTC()
	query := `
		INSERT INTO merchant_aggregates (
			profile_id, name, first_interaction_at, last_interaction_at,
			total_calls, total_messages, total_mail,
			last_interaction_type, last_summary, created_at, updated_at
		) VALUES (
			$1, '', $4, $4,
			CASE WHEN $2::boolean AND $3 = 'call' THEN 1 ELSE 0 END,
			CASE WHEN $2::boolean AND $3 = 'message' THEN 1 ELSE 0 END,
			CASE WHEN $2::boolean AND $3 = 'mail' THEN 1 ELSE 0 END,
			$3, $5, $6, $6
		)
		ON CONFLICT (profile_id)
		DO UPDATE SET
			total_calls = merchant_aggregates.total_calls
				+ CASE WHEN $2::boolean AND $3 = 'call' THEN 1 ELSE 0 END,
			total_messages = merchant_aggregates.total_messages
				+ CASE WHEN $2::boolean AND $3 = 'message' THEN 1 ELSE 0 END,
			total_mail = merchant_aggregates.total_mail
				+ CASE WHEN $2::boolean AND $3 = 'mail' THEN 1 ELSE 0 END,
			first_interaction_at = LEAST(
				COALESCE(merchant_aggregates.first_interaction_at, $4),
				COALESCE($4, merchant_aggregates.first_interaction_at)
			),
			last_interaction_at = CASE
				WHEN $4::timestamptz IS NOT NULL
					AND (merchant_aggregates.last_interaction_at IS NULL
						OR $4 >= merchant_aggregates.last_interaction_at)
				THEN $4
				ELSE merchant_aggregates.last_interaction_at
			END,
			last_interaction_type = CASE
				WHEN $4::timestamptz IS NOT NULL
					AND (merchant_aggregates.last_interaction_at IS NULL
						OR $4 >= merchant_aggregates.last_interaction_at)
				THEN $3
				ELSE merchant_aggregates.last_interaction_type
			END,
			last_summary = CASE
				WHEN $4::timestamptz IS NOT NULL
					AND (merchant_aggregates.last_interaction_at IS NULL
						OR $4 >= merchant_aggregates.last_interaction_at)
				THEN $5
				ELSE merchant_aggregates.last_summary
			END,
			updated_at = $6`

	_, err := r.db.ExecContext(ctx, query,
		profileID, incrementCounter, string(interactionType), occurredAt, summary, now,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"profile_id": profileID,
		}).Error("Failed to apply interaction to merchant aggregate")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update merchant aggregate")
	}
	return nil
}

// Get retrieves an aggregate row by profile id, nil when absent.
func (r *Repository) Get(ctx context.Context, profileID string) (*models.MerchantAggregate, error) {
	ctx, span := tracing.StartSpan(ctx, "merchantaggregate.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("profile_id", "uuid", "name", "normalized_phone", "normalized_email", "status", "segment", "owner",
		"first_interaction_at", "last_interaction_at", "total_calls", "total_messages", "total_mail",
		"last_interaction_type", "last_summary", "last_synced_at", "metadata", "created_at", "updated_at")
	sb.From("merchant_aggregates")
	sb.Where(sb.Equal("profile_id", profileID))
	sb.Limit(1)

	query, args := sb.Build()
	var row models.MerchantAggregate
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"profile_id": profileID,
		}).Error("Failed to get merchant aggregate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merchant aggregate")
	}
	return &row, nil
}
