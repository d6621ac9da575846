// Package mailthread persists mail thread rows keyed by thread id.
package mailthread

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

// Repository handles mail thread persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new mail thread repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const threadColumns = `thread_id, profile_id, subject, last_message_preview, last_message_at,
	message_count, participants, metadata, created_at, updated_at`

// Upsert inserts or merges a mail thread row.
//
// Merge rules on conflict: last_message_at keeps the maximum;
// participants and metadata keep the existing value when the incoming
// one is absent; message_count is only overwritten when the incoming
// value was explicitly provided (a nil pointer leaves it untouched, a
// pointer to zero still overwrites).
func (r *Repository) Upsert(ctx context.Context, req models.MailThreadUpsert) (*models.MailThread, error) {
	ctx, span := tracing.StartSpan(ctx, "mailthread.Repository.Upsert")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"thread_id":  req.ThreadID,
		"profile_id": req.ProfileID,
	})

	now := time.Now().UTC()
	countProvided := req.MessageCount != nil

	query := `
		INSERT INTO mail_threads (` + threadColumns + `)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, 0), $7, $8, $9, $9)
		ON CONFLICT (thread_id)
		DO UPDATE SET
			profile_id = EXCLUDED.profile_id,
			subject = COALESCE(EXCLUDED.subject, mail_threads.subject),
			last_message_preview = COALESCE(EXCLUDED.last_message_preview, mail_threads.last_message_preview),
			last_message_at = GREATEST(
				COALESCE(mail_threads.last_message_at, EXCLUDED.last_message_at),
				COALESCE(EXCLUDED.last_message_at, mail_threads.last_message_at)
			),
			message_count = CASE WHEN $10::boolean THEN COALESCE($6, 0) ELSE mail_threads.message_count END,
			participants = COALESCE(EXCLUDED.participants, mail_threads.participants),
			metadata = COALESCE(EXCLUDED.metadata, mail_threads.metadata),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + threadColumns

	var row models.MailThread
	err := r.db.GetContext(ctx, &row, query,
		req.ThreadID, req.ProfileID, req.Subject, req.LastMessagePreview, req.LastMessageAt,
		req.MessageCount, req.Participants, req.Metadata, now, countProvided,
	)
	if err != nil {
		log.WithError(err).Error("Failed to upsert mail thread")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert mail thread")
	}
	return &row, nil
}

// Get retrieves a mail thread by id, nil when absent.
func (r *Repository) Get(ctx context.Context, threadID string) (*models.MailThread, error) {
	ctx, span := tracing.StartSpan(ctx, "mailthread.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("thread_id", "profile_id", "subject", "last_message_preview", "last_message_at",
		"message_count", "participants", "metadata", "created_at", "updated_at")
	sb.From("mail_threads")
	sb.Where(sb.Equal("thread_id", threadID))
	sb.Limit(1)

	query, args := sb.Build()
	var row models.MailThread
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"thread_id": threadID}).Error("Failed to get mail thread")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get mail thread")
	}
	return &row, nil
}
