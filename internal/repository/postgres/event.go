package postgres

import (
	"context"
	"encoding/json"
	"time"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/logger"

	"github.com/google/uuid"
)

type eventRepository struct {
	db queryer
}

func (r *eventRepository) Append(ctx context.Context, e *domain.RentalEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	attrs, err := json.Marshal(e.Attributes)
	if err != nil {
		return err
	}
	if e.Attributes == nil {
		attrs = []byte("{}")
	}

	query := `INSERT INTO rental_events (id, rental_id, customer_id, type, from_status, to_status, actor, attributes, occurred_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	logger.DatabaseCall("INSERT", "rental_events", "rentalID", e.RentalID, "type", e.Type)
	_, err = r.db.ExecContext(ctx, query, e.ID, e.RentalID, e.CustomerID, e.Type, e.FromStatus, e.ToStatus, e.Actor, attrs, e.OccurredAt)
	logger.DatabaseResult("INSERT", 1, err, "eventID", e.ID)
	return mapError(err)
}

func (r *eventRepository) ListByRental(ctx context.Context, rentalID int64) ([]domain.RentalEvent, error) {
	query := `SELECT id, rental_id, customer_id, type, from_status, to_status, actor, attributes, occurred_at
	          FROM rental_events WHERE rental_id = $1 ORDER BY occurred_at, id`
	rows, err := r.db.QueryContext(ctx, query, rentalID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var events []domain.RentalEvent
	for rows.Next() {
		var (
			e     domain.RentalEvent
			attrs []byte
		)
		if err := rows.Scan(&e.ID, &e.RentalID, &e.CustomerID, &e.Type, &e.FromStatus, &e.ToStatus, &e.Actor, &attrs, &e.OccurredAt); err != nil {
			return nil, err
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &e.Attributes); err != nil {
				return nil, err
			}
		}
		if len(e.Attributes) == 0 {
			e.Attributes = nil
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
