// Package interaction persists individual interaction rows. The
// interaction id is the idempotency key: re-delivered events update the
// existing row in place and are reported as not-inserted so counters
// are incremented exactly once.
package interaction

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

// Repository handles interaction persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new interaction repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const interactionColumns = `id, profile_id, interaction_type, direction, summary, sentiment, lead_score,
	occurred_at, external_page_id, source_event_id, mail_thread_id, metadata, created_at, updated_at`

// UpsertResult carries the written row and whether it was newly
// inserted (as opposed to updated in place).
type UpsertResult struct {
	Interaction *models.Interaction
	IsNew       bool
}

// Upsert writes an interaction row, idempotent by id. On update,
// incoming nulls keep the existing value so partial re-deliveries never
// erase earlier data.
func (r *Repository) Upsert(ctx context.Context, req models.InteractionRecord) (*UpsertResult, error) {
	ctx, span := tracing.StartSpan(ctx, "interaction.Repository.Upsert")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"interaction_id": req.ID,
		"profile_id":     req.ProfileID,
		"type":           req.InteractionType,
	})

	now := time.Now().UTC()
	query := `
		INSERT INTO interactions (` + interactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (id)
		DO UPDATE SET
			profile_id = EXCLUDED.profile_id,
			interaction_type = EXCLUDED.interaction_type,
			direction = COALESCE(EXCLUDED.direction, interactions.direction),
			summary = COALESCE(EXCLUDED.summary, interactions.summary),
			sentiment = COALESCE(EXCLUDED.sentiment, interactions.sentiment),
			lead_score = COALESCE(EXCLUDED.lead_score, interactions.lead_score),
			occurred_at = COALESCE(EXCLUDED.occurred_at, interactions.occurred_at),
			external_page_id = COALESCE(EXCLUDED.external_page_id, interactions.external_page_id),
			source_event_id = COALESCE(EXCLUDED.source_event_id, interactions.source_event_id),
			mail_thread_id = COALESCE(EXCLUDED.mail_thread_id, interactions.mail_thread_id),
			metadata = COALESCE(EXCLUDED.metadata, interactions.metadata),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + interactionColumns + `, (xmax = 0) AS inserted`

	var row struct {
		models.Interaction
		Inserted bool `db:"inserted"`
	}
	err := r.db.GetContext(ctx, &row, query,
		req.ID, req.ProfileID, string(req.InteractionType), req.Direction, req.Summary,
		req.Sentiment, req.LeadScore, req.OccurredAt, req.ExternalPageID,
		req.SourceEventID, req.MailThreadID, req.Metadata, now,
	)
	if err != nil {
		log.WithError(err).Error("Failed to upsert interaction")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert interaction")
	}

	if row.Inserted {
		log.Debug("Inserted interaction")
	} else {
		log.Debug("Updated interaction in place")
	}
	return &UpsertResult{Interaction: &row.Interaction, IsNew: row.Inserted}, nil
}

// Get retrieves an interaction by id, nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*models.Interaction, error) {
	ctx, span := tracing.StartSpan(ctx, "interaction.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "profile_id", "interaction_type", "direction", "summary", "sentiment", "lead_score",
		"occurred_at", "external_page_id", "source_event_id", "mail_thread_id", "metadata", "created_at", "updated_at")
	sb.From("interactions")
	sb.Where(sb.Equal("id", id))
	sb.Limit(1)

	query, args := sb.Build()
	var row models.Interaction
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"interaction_id": id}).Error("Failed to get interaction")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get interaction")
	}
	return &row, nil
}

// ListByProfile returns the most recent interactions for a profile.
func (r *Repository) ListByProfile(ctx context.Context, profileID string, limit int) ([]models.Interaction, error) {
	ctx, span := tracing.StartSpan(ctx, "interaction.Repository.ListByProfile")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "profile_id", "interaction_type", "direction", "summary", "sentiment", "lead_score",
		"occurred_at", "external_page_id", "source_event_id", "mail_thread_id", "metadata", "created_at", "updated_at")
	sb.From("interactions")
	sb.Where(sb.Equal("profile_id", profileID))
	sb.OrderBy("occurred_at DESC NULLS LAST")
	sb.Limit(limit)

	query, args := sb.Build()
	var rows []models.Interaction
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"profile_id": profileID}).Error("Failed to list interactions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list interactions")
	}
	return rows, nil
}
