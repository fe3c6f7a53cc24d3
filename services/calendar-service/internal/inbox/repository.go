package inbox

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/deltacal/libs/db"
)

const uniqueViolation = "23505"

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record marks an event as seen. It reports false for an event that was
// already recorded.
func (r *Repository) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return false, nil
	}
	return false, err
}
