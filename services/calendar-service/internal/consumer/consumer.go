package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/deltacal/libs/kafkax"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox deduplicates deliveries by event id.
type Inbox interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
}

type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	inbox   Inbox
	handler Handler
	tracer  trace.Tracer
}

type Config struct {
	Brokers []string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	c := &Consumer{
		logger:  logger,
		inbox:   inbox,
		handler: handler,
		tracer:  otel.Tracer("kafka"),
	}
	if len(cfg.Brokers) > 0 {
		c.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
	}
	return c
}

func (c *Consumer) Run(ctx context.Context) {
	if c.reader == nil {
		c.logger.Warn("consumer disabled (no kafka brokers configured)")
		return
	}
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.process(ctx, msg)
	}
}

// process records msg in the inbox and hands it to the handler once.
// Failures are logged; the offset is committed either way.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	ctx, span := c.tracer.Start(kafkax.ExtractTraceContext(ctx, msg), "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	fresh, err := c.inbox.Record(ctx, meta.EventID, meta.EventType)
	if err != nil {
		c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "inbox")
		return
	}
	if !fresh {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return
	}

	if err := c.handler(ctx, msg); err != nil {
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler")
	}
}
