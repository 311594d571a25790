package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/entitypipe/condition"
	"github.com/kbukum/entitypipe/pipeline"
	"github.com/kbukum/entitypipe/source"
	"github.com/kbukum/entitypipe/stream"
)

// MessageReader is the part of *kafkago.Reader a Source needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Source reads entity events back as a producer input. Each Fetch drains
// up to Config.FetchMax messages, waiting at most Config.FetchWait, and
// returns the entities of every event but deletes.
type Source[E any] struct {
	reader MessageReader
	gates  *condition.Registry
	max    int
	wait   time.Duration
	commit bool
}

var _ source.DataSource[any] = (*Source[any])(nil)

// NewSource returns a source over r. Offsets are committed only when
// cfg.GroupID is set.
func NewSource[E any](r MessageReader, cfg Config, gates *condition.Registry) *Source[E] {
	cfg.ApplyDefaults()
	return &Source[E]{reader: r, gates: gates, max: cfg.FetchMax, wait: cfg.FetchWait, commit: cfg.GroupID != ""}
}

func (s *Source[E]) Fetch(ctx context.Context, query string, _ *pipeline.Context) ([]E, error) {
	msgs, err := s.drain(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]E, 0, len(msgs))
	for _, msg := range msgs {
		ev, err := DecodeEvent(msg)
		if err != nil {
			return nil, fmt.Errorf("kafka decode event at offset %d: %w", msg.Offset, err)
		}
		if ev.Operation == source.Delete.String() {
			continue
		}
		var item E
		if err := json.Unmarshal(ev.Data, &item); err != nil {
			return nil, fmt.Errorf("kafka decode entity %s: %w", ev.Key, err)
		}
		items = append(items, item)
	}

	if s.commit && len(msgs) > 0 {
		if err := s.reader.CommitMessages(ctx, msgs...); err != nil {
			return nil, fmt.Errorf("kafka commit: %w", err)
		}
	}
	return source.Filter(s.gates, items, query)
}

func (s *Source[E]) drain(ctx context.Context) ([]kafkago.Message, error) {
	wctx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()

	msgs := stream.Take(stream.FromFunc(func(context.Context) stream.Iterator[kafkago.Message] {
		return &messageIter{reader: s.reader, parent: ctx}
	}), s.max)
	out, err := stream.Collect(wctx, msgs)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// messageIter reads messages until the fetch wait runs out. The wait
// expiring ends the stream; the parent context ending is an error.
type messageIter struct {
	reader MessageReader
	parent context.Context
}

func (it *messageIter) Next(ctx context.Context) (kafkago.Message, bool, error) {
	msg, err := it.reader.FetchMessage(ctx)
	if err != nil {
		if it.parent.Err() == nil && ctx.Err() != nil {
			return kafkago.Message{}, false, nil
		}
		return kafkago.Message{}, false, fmt.Errorf("kafka fetch: %w", err)
	}
	return msg, true, nil
}

func (it *messageIter) Close() error { return nil }
