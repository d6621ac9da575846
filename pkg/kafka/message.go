package kafka

import (
	"encoding/json"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Trace context (extracted from Kafka headers)
	TraceParent string
	TraceState  string

	// Parsed content
	CommEvent *models.CommEvent
}

// ParseCommEvent parses the message value as a communication event.
func (m *IncomingMessage) ParseCommEvent() error {
	var event models.CommEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return err
	}
	m.CommEvent = &event
	return nil
}

// GetEventID returns the event id, falling back to the message key for
// producers that key by event id but omit it from the body.
func (m *IncomingMessage) GetEventID() string {
	if m.CommEvent != nil && m.CommEvent.EventID != "" {
		return m.CommEvent.EventID
	}
	return m.Key
}

// GetEventType returns the interaction type from the parsed event or
// the event_type header.
func (m *IncomingMessage) GetEventType() string {
	if m.CommEvent != nil && m.CommEvent.Type != "" {
		return string(m.CommEvent.Type)
	}
	return m.Headers["event_type"]
}
