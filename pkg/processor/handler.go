package processor

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// TagPublisher emits the per-record tags and the closing summary for a
// batch. *kafka.Producer satisfies it.
type TagPublisher interface {
	PublishTagEvents(ctx context.Context, events []*kafka.TagEvent) error
	PublishBatchSummary(ctx context.Context, event *kafka.BatchSummaryEvent) error
}

// Handler is the Kafka-facing entry point: it validates inbound batch
// envelopes, hands them to the coordinator, and publishes the results.
type Handler struct {
	logger    ectologger.Logger
	validate  *validator.Validate
	batches   *Coordinator
	publisher TagPublisher
}

func NewHandler(logger ectologger.Logger, batches *Coordinator, publisher TagPublisher) *Handler {
	return &Handler{
		logger:    logger,
		validate:  validator.New(),
		batches:   batches,
		publisher: publisher,
	}
}

// HandleMessage processes one inbound batch message. A returned error means
// the message should not be committed and will be redelivered; malformed
// envelopes are logged and swallowed since redelivery cannot fix them.
func (h *Handler) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Handler.HandleMessage")
	defer span.End()

	log := h.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":    msg.Topic,
		"offset":   msg.Offset,
		"key":      msg.Key,
		"trace_id": tracing.GetTraceID(ctx),
	})

	if msg.Envelope == nil {
		if err := msg.ParseBatchEnvelope(); err != nil {
			log.WithError(err).Error("Failed to parse batch envelope, skipping")
			return nil
		}
	}
	env := *msg.Envelope

	if err := h.validate.Struct(env); err != nil {
		log.WithError(err).WithFields(map[string]any{
			"batch_id": env.BatchID,
		}).Error("Invalid batch envelope, skipping")
		return nil
	}

	result, err := h.batches.ProcessBatch(ctx, env)
	if err != nil {
		// Store outage. Leave the message uncommitted so the batch is
		// retried once the store recovers.
		return err
	}

	return h.publishResult(ctx, result)
}

func (h *Handler) publishResult(ctx context.Context, result *models.BatchResult) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Handler.publishResult")
	defer span.End()

	if h.publisher == nil {
		return nil
	}

	events := make([]*kafka.TagEvent, 0, len(result.Records))
	errored := make([]int, 0)
	for i := range result.Records {
		rec := &result.Records[i]
		if rec.Status == models.RecordStatusFailed {
			errored = append(errored, rec.Index)
			continue
		}
		if rec.Tag == nil {
			continue
		}
		events = append(events, &kafka.TagEvent{
			BatchID:     result.BatchID,
			RecordIndex: rec.Index,
			Tag:         rec.Tag,
		})
	}

	if err := h.publisher.PublishTagEvents(ctx, events); err != nil {
		return err
	}

	return h.publisher.PublishBatchSummary(ctx, &kafka.BatchSummaryEvent{
		BatchID: result.BatchID,
		Stats:   result.Stats,
		Errored: errored,
	})
}
