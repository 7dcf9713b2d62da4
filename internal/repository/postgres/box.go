package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/logger"

	"github.com/lib/pq"
)

const boxColumns = `id, barcode, size, condition, status, location, created_at, updated_at`

type boxRepository struct {
	db queryer
}

func scanBox(row rowScanner) (*domain.Box, error) {
	b := &domain.Box{}
	if err := row.Scan(&b.ID, &b.Barcode, &b.Size, &b.Condition, &b.Status, &b.Location, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return b, nil
}

func scanBoxes(rows *sql.Rows) ([]domain.Box, error) {
	defer rows.Close()
	var boxes []domain.Box
	for rows.Next() {
		b, err := scanBox(rows)
		if err != nil {
			return nil, err
		}
		boxes = append(boxes, *b)
	}
	return boxes, rows.Err()
}

func (r *boxRepository) Create(ctx context.Context, b *domain.Box) error {
	query := `INSERT INTO boxes (barcode, size, condition, status, location, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, b.Barcode, b.Size, b.Condition, b.Status, b.Location, time.Now()).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.InvalidInput("barcode %s is already registered", b.Barcode)
	}
	return mapError(err)
}

func (r *boxRepository) GetByID(ctx context.Context, id int64) (*domain.Box, error) {
	b, err := scanBox(r.db.QueryRowContext(ctx, `SELECT `+boxColumns+` FROM boxes WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("box %d", id))
	}
	return b, nil
}

func (r *boxRepository) GetByIDs(ctx context.Context, ids []int64) ([]domain.Box, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+boxColumns+` FROM boxes WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, mapError(err)
	}
	boxes, err := scanBoxes(rows)
	if err != nil {
		return nil, mapError(err)
	}
	if len(boxes) != len(ids) {
		return nil, fmt.Errorf("%d of %d boxes missing: %w", len(ids)-len(boxes), len(ids), domain.ErrNotFound)
	}
	return boxes, nil
}

func (r *boxRepository) GetByBarcode(ctx context.Context, barcode string) (*domain.Box, error) {
	b, err := scanBox(r.db.QueryRowContext(ctx, `SELECT `+boxColumns+` FROM boxes WHERE barcode = $1`, barcode))
	if err != nil {
		return nil, notFoundOr(err, "box "+barcode)
	}
	return b, nil
}

func (r *boxRepository) Update(ctx context.Context, b *domain.Box) error {
	query := `UPDATE boxes SET barcode=$1, size=$2, condition=$3, status=$4, location=$5, updated_at=$6 WHERE id=$7`
	now := time.Now()
	res, err := r.db.ExecContext(ctx, query, b.Barcode, b.Size, b.Condition, b.Status, b.Location, now, b.ID)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("box %d: %w", b.ID, domain.ErrNotFound)
	}
	b.UpdatedAt = now
	return nil
}

func (r *boxRepository) ListByStatus(ctx context.Context, statuses []domain.BoxStatus) ([]domain.Box, error) {
	query := `SELECT ` + boxColumns + ` FROM boxes`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status = ANY($1)`
		args = append(args, pq.Array(boxStatusStrings(statuses)))
	}
	query += ` ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	boxes, err := scanBoxes(rows)
	return boxes, mapError(err)
}

// LockSize takes a transaction scoped advisory lock keyed by size. Every
// allocator of that size queues here before it counts or claims boxes.
func (r *boxRepository) LockSize(ctx context.Context, size domain.BoxSize) error {
	logger.DatabaseCall("LOCK", "boxes", "size", size)
	_, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "boxes:"+string(size))
	logger.DatabaseResult("LOCK", 0, err, "size", size)
	return mapError(err)
}

func (r *boxRepository) CountInService(ctx context.Context, size domain.BoxSize) (int32, error) {
	var n int32
	query := `SELECT count(*) FROM boxes WHERE size = $1 AND status NOT IN ('maintenance', 'damaged')`
	err := r.db.QueryRowContext(ctx, query, size).Scan(&n)
	return n, mapError(err)
}

func (r *boxRepository) ListInServiceForUpdate(ctx context.Context, size domain.BoxSize) ([]domain.Box, error) {
	query := `SELECT ` + boxColumns + ` FROM boxes
	          WHERE size = $1 AND status NOT IN ('maintenance', 'damaged')
	          ORDER BY created_at, id FOR UPDATE`
	logger.DatabaseCall("SELECT FOR UPDATE", "boxes", "size", size)
	rows, err := r.db.QueryContext(ctx, query, size)
	if err != nil {
		logger.DatabaseResult("SELECT FOR UPDATE", 0, err)
		return nil, mapError(err)
	}
	boxes, err := scanBoxes(rows)
	logger.DatabaseResult("SELECT FOR UPDATE", int64(len(boxes)), err)
	return boxes, mapError(err)
}

func (r *boxRepository) SetStatus(ctx context.Context, ids []int64, status domain.BoxStatus) error {
	if len(ids) == 0 {
		return nil
	}
	res, err := r.db.ExecContext(ctx, `UPDATE boxes SET status = $1, updated_at = $2 WHERE id = ANY($3)`,
		status, time.Now(), pq.Array(ids))
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return fmt.Errorf("updated %d of %d boxes: %w", n, len(ids), domain.ErrNotFound)
	}
	return nil
}
