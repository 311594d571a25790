package kafka

import (
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// Header names carried by every entity event.
const (
	HeaderEventID     = "event-id"
	HeaderEventType   = "event-type"
	HeaderExecutionID = "execution-id"
	HeaderContentType = "content-type"
)

// Event is the envelope of an entity written to or read from a topic.
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Source      string          `json:"source"`
	Operation   string          `json:"operation"`
	Key         string          `json:"key"`
	ExecutionID string          `json:"execution_id,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Data        json.RawMessage `json:"data"`
}

func (e Event) message() (kafkago.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafkago.Message{}, err
	}
	return kafkago.Message{
		Key:   []byte(e.Key),
		Value: value,
		Time:  e.Timestamp,
		Headers: []kafkago.Header{
			{Key: HeaderEventID, Value: []byte(e.ID)},
			{Key: HeaderEventType, Value: []byte(e.Type)},
			{Key: HeaderExecutionID, Value: []byte(e.ExecutionID)},
			{Key: HeaderContentType, Value: []byte("application/json")},
		},
	}, nil
}

// DecodeEvent parses the value of a message written by a Sink.
func DecodeEvent(msg kafkago.Message) (Event, error) {
	var e Event
	err := json.Unmarshal(msg.Value, &e)
	return e, err
}
