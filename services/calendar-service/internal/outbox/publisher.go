package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/deltacal/libs/db"
	"github.com/md-rashed-zaman/deltacal/libs/kafkax"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Publisher struct {
	pool      *db.Pool
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	Brokers   []string
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		pool:      pool,
		repo:      repo,
		logger:    logger,
		brokers:   cfg.Brokers,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

// Run relays pending outbox rows to Kafka until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.publishBatch(ctx, writer)
			if err != nil {
				p.logger.Error("outbox publish failed", "err", err)
				continue
			}
			if n > 0 {
				p.logger.Debug("outbox batch published", "count", n)
			}
		}
	}
}

func (p *Publisher) publishBatch(ctx context.Context, writer MessageWriter) (int, error) {
	var published int
	err := p.pool.InTx(ctx, func(tx pgx.Tx) error {
		records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
		if err != nil || len(records) == 0 {
			return err
		}

		msgs := make([]kafka.Message, len(records))
		ids := make([]int64, len(records))
		for i, r := range records {
			msgs[i] = Message(ctx, r)
			ids[i] = r.ID
		}
		if err := writer.WriteMessages(ctx, msgs...); err != nil {
			return err
		}
		published = len(records)
		return p.repo.MarkPublished(ctx, tx, ids)
	})
	return published, err
}

// Message renders an outbox row as a Kafka message on the topic named by
// its event type, keyed by aggregate so one picker's picks stay ordered.
func Message(ctx context.Context, r Record) kafka.Message {
	meta := kafkax.EventMeta{EventID: r.EventID, EventType: r.EventType}
	return kafka.Message{
		Topic:   r.EventType,
		Key:     []byte(r.AggregateID),
		Value:   r.Payload,
		Headers: kafkax.InjectTraceHeaders(r.Trace.Into(ctx), meta.Headers()),
	}
}
