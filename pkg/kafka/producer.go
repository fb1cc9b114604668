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

// Producer emits merged tags and batch summaries for downstream rendering.
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

// TagEvent is one merged tag ready for label rendering.
type TagEvent struct {
	BatchID     string            `json:"batch_id"`
	RecordIndex int               `json:"record_index"`
	Tag         *models.MergedTag `json:"tag"`
	Timestamp   time.Time         `json:"timestamp"`
}

// BatchSummaryEvent closes out a batch with its counters.
type BatchSummaryEvent struct {
	BatchID   string            `json:"batch_id"`
	Stats     models.BatchStats `json:"stats"`
	Errored   []int             `json:"errored_indexes,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// PublishTagEvents publishes the tags for one batch, keyed by product ID so
// updates to the same product land on the same partition in order.
func (p *Producer) PublishTagEvents(ctx context.Context, events []*TagEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishTagEvents")
	defer span.End()

	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now().UTC()
		}

		data, err := json.Marshal(event)
		if err != nil {
			return err
		}

		key := event.BatchID
		if event.Tag != nil && event.Tag.ProductID != "" {
			key = event.Tag.ProductID
		}

		messages[i] = kafka.Message{
			Topic: p.topic,
			Key:   []byte(key),
			Value: data,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte("tag.merged")},
				{Key: "batch_id", Value: []byte(event.BatchID)},
				{Key: "source", Value: []byte(tagSource(event.Tag))},
			},
		}
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_size": len(events),
		}).Error("Failed to publish tag events")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_size": len(events),
	}).Debug("Published tag events")

	return nil
}

// PublishBatchSummary publishes the closing summary for a processed batch.
func (p *Producer) PublishBatchSummary(ctx context.Context, event *BatchSummaryEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishBatchSummary")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.BatchID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("batch.completed")},
			{Key: "batch_id", Value: []byte(event.BatchID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish batch summary")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id": event.BatchID,
		"matched":  event.Stats.Matched,
		"created":  event.Stats.Created,
		"updated":  event.Stats.Updated,
		"errored":  event.Stats.Errored,
	}).Debug("Published batch summary")

	return nil
}

func tagSource(tag *models.MergedTag) string {
	if tag == nil {
		return ""
	}
	return string(tag.Source)
}
