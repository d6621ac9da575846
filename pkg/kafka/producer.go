package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	requiredAcks := kafka.RequiredAcks(cfg.RequiredAcks)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           requiredAcks,
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishGap publishes a merchant UUID gap for out-of-band repair. It
// satisfies the reconciler's GapPublisher.
func (p *Producer) PublishGap(ctx context.Context, event models.MerchantGapEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishGap")
	defer span.End()

	if event.DetectedAt.IsZero() {
		event.DetectedAt = time.Now().UTC()
	}
	gap := event.Gap

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(gap.RecordID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("merchant.uuid_gap")},
			{Key: "collection", Value: []byte(gap.CollectionName)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish gap event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"record_id":  gap.RecordID,
		"collection": gap.CollectionName,
	}).Debug("Published gap event")

	return nil
}
