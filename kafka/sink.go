package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/pipeline"
	"github.com/kbukum/entitypipe/source"
)

// MessageWriter is the part of *kafkago.Writer a Sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Sink publishes one event per entity. It does not keep state, so every
// operation succeeds once the broker accepts the batch; Delete events carry
// the entity as it was handed in.
type Sink[E any] struct {
	writer MessageWriter
	key    func(E) string
	source string
	log    *logger.Logger
	now    func() time.Time
}

var _ source.DataSink[any, source.Operation] = (*Sink[any])(nil)

// NewSink returns a sink writing through w. key picks the partition key of
// an entity; name is recorded as the event source.
func NewSink[E any](w MessageWriter, name string, key func(E) string, log *logger.Logger) *Sink[E] {
	if log == nil {
		log = logger.Nop()
	}
	return &Sink[E]{writer: w, key: key, source: name, log: log.WithComponent("kafka.sink"), now: time.Now}
}

// EventType returns the event type written for op, e.g. "entity.created".
func EventType(op source.Operation) string {
	switch op {
	case source.Create:
		return "entity.created"
	case source.Update:
		return "entity.updated"
	case source.Upsert:
		return "entity.upserted"
	case source.Delete:
		return "entity.deleted"
	}
	return "entity." + strings.ToLower(op.String())
}

func (s *Sink[E]) Process(ctx context.Context, items []E, op source.Operation, pctx *pipeline.Context) ([]E, error) {
	switch op {
	case source.Create, source.Update, source.Upsert, source.Delete:
	default:
		return nil, errors.UnsupportedOperation(op.String())
	}
	if len(items) == 0 {
		return nil, nil
	}

	msgs := make([]kafkago.Message, 0, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("kafka encode entity: %w", err)
		}
		msg, err := Event{
			ID:          uuid.NewString(),
			Type:        EventType(op),
			Source:      s.source,
			Operation:   op.String(),
			Key:         s.key(item),
			ExecutionID: pctx.ID(),
			Timestamp:   s.now().UTC(),
			Data:        data,
		}.message()
		if err != nil {
			return nil, fmt.Errorf("kafka encode event: %w", err)
		}
		msgs = append(msgs, msg)
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return nil, fmt.Errorf("kafka publish: %w", err)
	}
	s.log.WithContext(pctx.Bind(ctx)).Debug("Published entity events", logger.Fields(
		logger.FieldCount, len(msgs),
		logger.FieldOperation, op.String(),
	))
	return items, nil
}
