package kafka

import (
	"encoding/json"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with its parsed batch envelope.
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Envelope is the parsed batch, populated by ParseBatchEnvelope.
	Envelope *models.BatchEnvelope
}

// ParseBatchEnvelope parses the message value as a mapped inventory batch.
func (m *IncomingMessage) ParseBatchEnvelope() error {
	var env models.BatchEnvelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	m.Envelope = &env
	return nil
}

// BatchID returns the envelope batch ID, falling back to the message key so
// unkeyed test batches still get a usable identifier in logs.
func (m *IncomingMessage) BatchID() string {
	if m.Envelope != nil && m.Envelope.BatchID != "" {
		return m.Envelope.BatchID
	}
	return m.Key
}

// Integration returns the upstream integration that produced the batch.
func (m *IncomingMessage) Integration() string {
	if m.Envelope != nil {
		return m.Envelope.Source.Integration
	}
	return ""
}
