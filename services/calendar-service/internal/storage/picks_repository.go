package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/deltacal/libs/db"
	"github.com/md-rashed-zaman/deltacal/services/calendar-service/internal/model"
	"github.com/md-rashed-zaman/deltacal/services/calendar-service/internal/outbox"
)

type PickRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewPickRepository(pool *db.Pool, outboxRepo *outbox.Repository) *PickRepository {
	return &PickRepository{pool: pool, outbox: outboxRepo}
}

// PickedEvent is the payload of calendar.date.picked.v1.
type PickedEvent struct {
	PickID   string `json:"pick_id"`
	PickerID string `json:"picker_id"`
	Preset   string `json:"preset"`
	PickedAt string `json:"picked_at"`
	DateOnly bool   `json:"date_only"`
}

func NewPickedEvent(p model.Pick) PickedEvent {
	return PickedEvent{
		PickID:   p.ID,
		PickerID: p.PickerID,
		Preset:   p.Preset,
		PickedAt: p.PickedAt.UTC().Format(time.RFC3339),
		DateOnly: p.DateOnly,
	}
}

// RecordPick stores p and its outbox event in one transaction. An empty
// p.ID is filled in.
func (r *PickRepository) RecordPick(ctx context.Context, p model.Pick) (model.Pick, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	payload, err := json.Marshal(NewPickedEvent(p))
	if err != nil {
		return model.Pick{}, err
	}

	err = r.pool.InTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO picks (id, picker_id, preset, picked_at, date_only)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`, p.ID, p.PickerID, p.Preset, p.PickedAt, p.DateOnly).Scan(&p.CreatedAt)
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: outbox.AggregatePick,
			AggregateID:   p.PickerID,
			EventType:     outbox.EventDatePicked,
			Payload:       payload,
		})
	})
	if err != nil {
		return model.Pick{}, err
	}
	return p, nil
}

func (r *PickRepository) ListByPicker(ctx context.Context, pickerID string, limit int) ([]model.Pick, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, picker_id, preset, picked_at, date_only, created_at
		FROM picks
		WHERE picker_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, pickerID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Pick, error) {
		var p model.Pick
		err := row.Scan(&p.ID, &p.PickerID, &p.Preset, &p.PickedAt, &p.DateOnly, &p.CreatedAt)
		p.PickedAt = p.PickedAt.UTC()
		return p, err
	})
}
