// Package processor turns inbound communication events into ledger
// rows and record-store interaction pages. Each event runs through
// named workflow steps; a missing merchant link degrades the event, it
// never fails it.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/recordstore"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/workflow"
)

// ProfileLookup resolves a contact identifier to its cached profile.
type ProfileLookup interface {
	Lookup(ctx context.Context, identifier string, idType models.IdentifierType) (*models.CacheEntry, error)
}

// InteractionLedger is the ledger surface the processor writes to.
type InteractionLedger interface {
	UpsertMerchantAggregate(ctx context.Context, req models.MerchantAggregateUpsert) (*models.MerchantAggregate, error)
	RecordInteraction(ctx context.Context, req models.InteractionRecord) (*models.Interaction, error)
	UpsertMailThread(ctx context.Context, req models.MailThreadUpsert) (*models.MailThread, error)
}

// Config names the record-store collection and fields the processor
// writes interaction pages into.
type Config struct {
	InteractionsCollectionID string
	TitleField               string
	TypeField                string
	ProfileField             string
	MerchantUUIDField        string
	OccurredAtField          string
	EventIDField             string
}

func (c *Config) applyDefaults() {
	if c.TitleField == "" {
		c.TitleField = "Name"
	}
	if c.TypeField == "" {
		c.TypeField = "Type"
	}
	if c.ProfileField == "" {
		c.ProfileField = "Profile"
	}
	if c.MerchantUUIDField == "" {
		c.MerchantUUIDField = "Merchant UUID"
	}
	if c.OccurredAtField == "" {
		c.OccurredAtField = "Occurred At"
	}
	if c.EventIDField == "" {
		c.EventIDField = "Event ID"
	}
}

// Processor is the comm-event pipeline.
type Processor struct {
	logger ectologger.Logger
	lookup ProfileLookup
	ledger InteractionLedger
	store  recordstore.Store
	runner workflow.Runner
	config Config
}

// NewProcessor creates the pipeline. Page creation is skipped entirely
// when InteractionsCollectionID is empty.
func NewProcessor(
	logger ectologger.Logger,
	lookup ProfileLookup,
	ledger InteractionLedger,
	store recordstore.Store,
	runner workflow.Runner,
	config Config,
) *Processor {
	config.applyDefaults()
	return &Processor{
		logger: logger,
		lookup: lookup,
		ledger: ledger,
		store:  store,
		runner: runner,
		config: config,
	}
}

// ProcessMessage handles one consumed comm event end to end.
func (p *Processor) ProcessMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.ProcessMessage")
	defer span.End()

	event := msg.CommEvent
	if event == nil {
		if err := msg.ParseCommEvent(); err != nil {
			metrics.EventsProcessedTotal.WithLabelValues("unknown", "invalid").Inc()
			return fmt.Errorf("processor: unparseable event: %w", err)
		}
		event = msg.CommEvent
	}
	event.EventID = msg.GetEventID()

	err := p.ProcessEvent(ctx, event)
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.EventsProcessedTotal.WithLabelValues(string(event.Type), status).Inc()
	return err
}

// ProcessEvent resolves the event's counterparty and records it. The
// returned error covers only the ledger write; resolution and page
// failures degrade with a log line.
func (p *Processor) ProcessEvent(ctx context.Context, event *models.CommEvent) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.ProcessEvent")
	defer span.End()

	if !event.Type.Valid() {
		return fmt.Errorf("processor: unknown event type %q", event.Type)
	}

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_id": event.EventID,
		"type":     event.Type,
	})

	identifier, idType := event.ContactIdentifier()
	if identifier == "" {
		log.Warn("Event carries no contact identifier, skipping")
		return nil
	}

	resolved, err := p.runner.RunStep(ctx, "resolve-profile", func(ctx context.Context) (any, error) {
		return p.lookup.Lookup(ctx, identifier, idType)
	})
	if err != nil {
		// Resolution outage degrades to an unmatched event rather than
		// blocking the topic behind a store incident.
		log.WithError(err).Warn("Profile resolution failed, recording as unmatched")
		resolved = (*models.CacheEntry)(nil)
	}
	entry, _ := resolved.(*models.CacheEntry)
	if entry == nil {
		log.Info("No profile matched contact identifier")
		return nil
	}

	if upsert, ok := p.buildAggregateUpsert(entry, identifier, idType); ok {
		if _, err := p.runner.RunStep(ctx, "sync-merchant-aggregate", func(ctx context.Context) (any, error) {
			return p.ledger.UpsertMerchantAggregate(ctx, upsert)
		}); err != nil {
			// ApplyInteraction creates a minimal row either way; the
			// identity enrichment catches up on the next event.
			log.WithError(err).Warn("Merchant aggregate identity sync failed")
		}
	}

	if _, err := p.runner.RunStep(ctx, "record-interaction", func(ctx context.Context) (any, error) {
		return p.ledger.RecordInteraction(ctx, p.buildRecord(event, entry))
	}); err != nil {
		return err
	}

	if event.Type == models.InteractionTypeMail && event.ThreadID != nil && *event.ThreadID != "" {
		if _, err := p.runner.RunStep(ctx, "upsert-mail-thread", func(ctx context.Context) (any, error) {
			return p.ledger.UpsertMailThread(ctx, p.buildThreadUpsert(event, entry))
		}); err != nil {
			return err
		}
	}

	if p.config.InteractionsCollectionID != "" {
		if _, err := p.runner.RunStep(ctx, "create-interaction-page", func(ctx context.Context) (any, error) {
			return p.createInteractionPage(ctx, event, entry)
		}); err != nil {
			// The ledger row is durable; the page is a projection and can
			// be rebuilt, so its failure does not fail the event.
			log.WithError(err).Warn("Interaction page creation failed")
		}
	}

	return nil
}

// buildAggregateUpsert projects the resolved identity onto the ledger
// row. Legacy cache entries carry only a profile id; those have nothing
// to sync, and writing them would blank an already-enriched row.
func (p *Processor) buildAggregateUpsert(entry *models.CacheEntry, identifier string, idType models.IdentifierType) (models.MerchantAggregateUpsert, bool) {
	if entry.MerchantName == "" && entry.MerchantUUID == nil {
		return models.MerchantAggregateUpsert{}, false
	}

	upsert := models.MerchantAggregateUpsert{
		ProfileID: entry.ProfileID,
		UUID:      entry.MerchantUUID,
		Name:      entry.MerchantName,
	}
	switch idType {
	case models.IdentifierTypeEmail:
		if normalized := normalizers.Email(identifier); normalized != "" {
			upsert.NormalizedEmail = &normalized
		}
	default:
		if normalized := normalizers.Phone(identifier); normalized != "" {
			upsert.NormalizedPhone = &normalized
		}
	}
	return upsert, true
}

func (p *Processor) buildRecord(event *models.CommEvent, entry *models.CacheEntry) models.InteractionRecord {
	var direction *string
	if event.Direction != "" {
		d := event.Direction
		direction = &d
	}
	eventID := event.EventID
	return models.InteractionRecord{
		ID:              event.EventID,
		ProfileID:       entry.ProfileID,
		InteractionType: event.Type,
		Direction:       direction,
		Summary:         event.Summary,
		Sentiment:       event.Sentiment,
		LeadScore:       event.LeadScore,
		OccurredAt:      event.OccurredAt,
		SourceEventID:   &eventID,
		MailThreadID:    event.ThreadID,
		Metadata:        event.Metadata,
	}
}

func (p *Processor) buildThreadUpsert(event *models.CommEvent, entry *models.CacheEntry) models.MailThreadUpsert {
	return models.MailThreadUpsert{
		ThreadID:           *event.ThreadID,
		ProfileID:          entry.ProfileID,
		Subject:            event.Subject,
		LastMessagePreview: event.Preview,
		LastMessageAt:      event.OccurredAt,
		Participants:       encodeParticipants(event.Participants),
		Metadata:           event.Metadata,
	}
}

func (p *Processor) createInteractionPage(ctx context.Context, event *models.CommEvent, entry *models.CacheEntry) (*recordstore.Record, error) {
	// Re-deliveries find the existing page by event id and update it.
	existing, err := p.store.QueryCollection(ctx, p.config.InteractionsCollectionID, &recordstore.Filter{
		Field: p.config.EventIDField,
		Kind:  recordstore.FilterTextContains,
		Value: event.EventID,
	}, &recordstore.QueryOptions{PageSize: 1})
	if err != nil {
		return nil, err
	}

	properties := map[string]any{
		p.config.TitleField:   p.pageTitle(event),
		p.config.TypeField:    string(event.Type),
		p.config.ProfileField: []string{entry.ProfileID},
		p.config.EventIDField: event.EventID,
	}
	if entry.MerchantUUID != nil {
		properties[p.config.MerchantUUIDField] = *entry.MerchantUUID
	}
	if event.OccurredAt != nil {
		properties[p.config.OccurredAtField] = event.OccurredAt.UTC().Format(time.RFC3339)
	}

	if len(existing.Results) > 0 {
		record := existing.Results[0]
		if err := p.store.UpdateRecordProperties(ctx, record.ID, properties); err != nil {
			return nil, err
		}
		return &record, nil
	}
	return p.store.CreateRecord(ctx, p.config.InteractionsCollectionID, properties)
}

func encodeParticipants(participants []string) json.RawMessage {
	if len(participants) == 0 {
		return nil
	}
	b, err := json.Marshal(participants)
	if err != nil {
		return nil
	}
	return b
}

func (p *Processor) pageTitle(event *models.CommEvent) string {
	if event.Type == models.InteractionTypeMail && event.Subject != nil && *event.Subject != "" {
		return *event.Subject
	}
	if event.Summary != nil && *event.Summary != "" {
		return *event.Summary
	}
	return fmt.Sprintf("%s %s", event.Direction, event.Type)
}
