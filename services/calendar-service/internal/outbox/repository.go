package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	otelx "github.com/md-rashed-zaman/deltacal/libs/otel"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert stores evt inside tx together with the caller's trace context.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, evt Event) error {
	tc := otelx.CurrentTraceContext(ctx)
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, tc.Parent, tc.State)
	return err
}

type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Trace         otelx.TraceContext
	CreatedAt     time.Time
}

// FetchUnpublished locks up to limit pending rows so concurrent publishers
// skip each other.
func (r *Repository) FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var rcd Record
		err := row.Scan(&rcd.ID, &rcd.EventID, &rcd.AggregateType, &rcd.AggregateID, &rcd.EventType,
			&rcd.Payload, &rcd.Trace.Parent, &rcd.Trace.State, &rcd.CreatedAt)
		return rcd, err
	})
}

func (r *Repository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}
