package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
)

// EventMeta is the canonical metadata carried on Kafka messages across services.
type EventMeta struct {
	EventID   string
	EventType string
}

// Headers renders meta as message headers.
func (m EventMeta) Headers() []kafka.Header {
	return []kafka.Header{
		{Key: HeaderEventID, Value: []byte(m.EventID)},
		{Key: HeaderEventType, Value: []byte(m.EventType)},
	}
}

// ExtractEventMeta falls back to the message key and topic when a producer
// did not set the headers.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	eventID := HeaderValue(msg.Headers, HeaderEventID)
	eventType := HeaderValue(msg.Headers, HeaderEventType)
	if eventID == "" {
		eventID = string(msg.Key)
	}
	if eventType == "" {
		eventType = msg.Topic
	}
	return EventMeta{EventID: eventID, EventType: eventType}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
