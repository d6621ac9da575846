// Package ledger is the idempotent interaction ledger: merchant
// aggregate rows, interaction rows, and mail threads in the relational
// store. All conflict resolution lives in the upsert statements; the
// ledger holds no locks and spans no transactions.
package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/clover/internal/repositories/interaction"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// AggregateStore is the merchant aggregate surface the ledger needs.
type AggregateStore interface {
	Upsert(ctx context.Context, req models.MerchantAggregateUpsert) (*models.MerchantAggregate, error)
	ApplyInteraction(ctx context.Context, profileID string, interactionType models.InteractionType, occurredAt *time.Time, summary *string, incrementCounter bool) error
}

// InteractionStore is the interaction row surface the ledger needs.
type InteractionStore interface {
	Upsert(ctx context.Context, req models.InteractionRecord) (*interaction.UpsertResult, error)
}

// ThreadStore is the mail thread surface the ledger needs.
type ThreadStore interface {
	Upsert(ctx context.Context, req models.MailThreadUpsert) (*models.MailThread, error)
}

// Ledger exposes the three ledger operations.
type Ledger struct {
	logger       ectologger.Logger
	aggregates   AggregateStore
	interactions InteractionStore
	threads      ThreadStore
	validate     *validator.Validate
}

// New creates a ledger over the given stores.
func New(logger ectologger.Logger, aggregates AggregateStore, interactions InteractionStore, threads ThreadStore) *Ledger {
	return &Ledger{
		logger:       logger,
		aggregates:   aggregates,
		interactions: interactions,
		threads:      threads,
		validate:     validator.New(),
	}
}

// UpsertMerchantAggregate inserts or updates the per-merchant row.
func (l *Ledger) UpsertMerchantAggregate(ctx context.Context, req models.MerchantAggregateUpsert) (*models.MerchantAggregate, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Ledger.UpsertMerchantAggregate")
	defer span.End()

	if err := l.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("ledger: invalid aggregate upsert: %w", err)
	}
	return l.aggregates.Upsert(ctx, req)
}

// RecordInteraction writes the interaction row idempotently by id and
// folds it into the merchant aggregate. Counters increment exactly once
// per interaction id, at first insert; re-deliveries update the row in
// place and still propagate the latest-wins fields.
func (l *Ledger) RecordInteraction(ctx context.Context, req models.InteractionRecord) (*models.Interaction, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Ledger.RecordInteraction")
	defer span.End()

	if err := l.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("ledger: invalid interaction record: %w", err)
	}
	if !req.InteractionType.Valid() {
		return nil, fmt.Errorf("ledger: unknown interaction type %q", req.InteractionType)
	}

	result, err := l.interactions.Upsert(ctx, req)
	if err != nil {
		return nil, err
	}

	metrics.InteractionsRecordedTotal.WithLabelValues(string(req.InteractionType), strconv.FormatBool(result.IsNew)).Inc()

	if err := l.aggregates.ApplyInteraction(ctx, req.ProfileID, req.InteractionType, req.OccurredAt, req.Summary, result.IsNew); err != nil {
		// The interaction row is already durable; aggregate drift is
		// repaired by the next interaction or reconciliation pass.
		l.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"interaction_id": req.ID,
			"profile_id":     req.ProfileID,
		}).Warn("Interaction recorded but aggregate update failed")
	}

	return result.Interaction, nil
}

// UpsertMailThread inserts or merges a mail thread row.
func (l *Ledger) UpsertMailThread(ctx context.Context, req models.MailThreadUpsert) (*models.MailThread, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Ledger.UpsertMailThread")
	defer span.End()

	if err := l.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("ledger: invalid mail thread upsert: %w", err)
	}
	return l.threads.Upsert(ctx, req)
}
