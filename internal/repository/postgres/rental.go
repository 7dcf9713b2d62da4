package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/logger"

	"github.com/lib/pq"
)

const rentalColumns = `id, customer_id, status, box_size, box_count, period_rate, boxes_amount, discount_amount,
	total_amount, guarantee_amount, line_items, delivery_date, return_date, delivery_address, pickup_address,
	notes, tracking_code, master_code, assigned_box_ids, price_frozen_at, paid_at, delivered_at, picked_up_at,
	finished_at, cancelled_at, cancel_reason, guarantee_refundable, version, created_at, updated_at`

type rentalRepository struct {
	db queryer
}

func scanRental(row rowScanner) (*domain.Rental, error) {
	var (
		rt    domain.Rental
		items []byte
		ids   pq.Int64Array
	)
	err := row.Scan(&rt.ID, &rt.CustomerID, &rt.Status, &rt.BoxSize, &rt.BoxCount, &rt.PeriodRate,
		&rt.BoxesAmount, &rt.DiscountAmount, &rt.TotalAmount, &rt.GuaranteeAmount, &items,
		&rt.DeliveryDate, &rt.ReturnDate, &rt.DeliveryAddress, &rt.PickupAddress, &rt.Notes,
		&rt.TrackingCode, &rt.MasterCode, &ids, &rt.PriceFrozenAt, &rt.PaidAt, &rt.DeliveredAt,
		&rt.PickedUpAt, &rt.FinishedAt, &rt.CancelledAt, &rt.CancelReason, &rt.GuaranteeRefundable,
		&rt.Version, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &rt.LineItems); err != nil {
			return nil, fmt.Errorf("decode line items of rental %d: %w", rt.ID, err)
		}
	}
	if len(ids) > 0 {
		rt.AssignedBoxIDs = []int64(ids)
	}
	return &rt, nil
}

func scanRentals(rows *sql.Rows) ([]domain.Rental, error) {
	defer rows.Close()
	var rentals []domain.Rental
	for rows.Next() {
		rt, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		rentals = append(rentals, *rt)
	}
	return rentals, rows.Err()
}

func encodeLineItems(items []domain.LineItem) ([]byte, error) {
	if items == nil {
		items = []domain.LineItem{}
	}
	return json.Marshal(items)
}

// boxIDs keeps the NOT NULL array column from receiving NULL.
func boxIDs(ids []int64) pq.Int64Array {
	if ids == nil {
		return pq.Int64Array{}
	}
	return pq.Int64Array(ids)
}

func (r *rentalRepository) Create(ctx context.Context, rt *domain.Rental) error {
	items, err := encodeLineItems(rt.LineItems)
	if err != nil {
		return err
	}
	query := `INSERT INTO rentals (customer_id, status, box_size, box_count, period_rate, boxes_amount,
	              discount_amount, total_amount, guarantee_amount, line_items, delivery_date, return_date,
	              delivery_address, pickup_address, notes, tracking_code, master_code, assigned_box_ids,
	              version, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, 1, $19, $19)
	          RETURNING id, version, created_at, updated_at`
	logger.DatabaseCall("INSERT", "rentals", "customerID", rt.CustomerID, "size", rt.BoxSize, "count", rt.BoxCount)
	err = r.db.QueryRowContext(ctx, query, rt.CustomerID, rt.Status, rt.BoxSize, rt.BoxCount, rt.PeriodRate,
		rt.BoxesAmount, rt.DiscountAmount, rt.TotalAmount, rt.GuaranteeAmount, items, rt.DeliveryDate,
		rt.ReturnDate, rt.DeliveryAddress, rt.PickupAddress, rt.Notes, rt.TrackingCode, rt.MasterCode,
		boxIDs(rt.AssignedBoxIDs), time.Now()).
		Scan(&rt.ID, &rt.Version, &rt.CreatedAt, &rt.UpdatedAt)
	logger.DatabaseResult("INSERT", 1, err, "rentalID", rt.ID)
	return mapError(err)
}

func (r *rentalRepository) getOne(ctx context.Context, what, where string, arg any) (*domain.Rental, error) {
	rt, err := scanRental(r.db.QueryRowContext(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE `+where, arg))
	if err != nil {
		return nil, notFoundOr(err, what)
	}
	return rt, nil
}

func (r *rentalRepository) GetByID(ctx context.Context, id int64) (*domain.Rental, error) {
	return r.getOne(ctx, fmt.Sprintf("rental %d", id), `id = $1`, id)
}

func (r *rentalRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Rental, error) {
	return r.getOne(ctx, fmt.Sprintf("rental %d", id), `id = $1 FOR UPDATE`, id)
}

func (r *rentalRepository) GetByTrackingCode(ctx context.Context, code string) (*domain.Rental, error) {
	return r.getOne(ctx, "rental by tracking code", `tracking_code = $1`, code)
}

func (r *rentalRepository) GetByMasterCode(ctx context.Context, code string) (*domain.Rental, error) {
	return r.getOne(ctx, "rental by master code", `master_code = $1`, code)
}

func (r *rentalRepository) TrackingCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM rentals WHERE tracking_code = $1)`, code).Scan(&exists)
	return exists, mapError(err)
}

func (r *rentalRepository) Update(ctx context.Context, rt *domain.Rental) error {
	items, err := encodeLineItems(rt.LineItems)
	if err != nil {
		return err
	}
	query := `UPDATE rentals SET status=$1, box_size=$2, box_count=$3, period_rate=$4, boxes_amount=$5,
	              discount_amount=$6, total_amount=$7, guarantee_amount=$8, line_items=$9, delivery_date=$10,
	              return_date=$11, delivery_address=$12, pickup_address=$13, notes=$14, tracking_code=$15,
	              master_code=$16, assigned_box_ids=$17, price_frozen_at=$18, paid_at=$19, delivered_at=$20,
	              picked_up_at=$21, finished_at=$22, cancelled_at=$23, cancel_reason=$24,
	              guarantee_refundable=$25, version=version+1, updated_at=$26
	          WHERE id=$27 AND version=$28`
	now := time.Now()
	logger.DatabaseCall("UPDATE", "rentals", "rentalID", rt.ID, "version", rt.Version, "status", rt.Status)
	res, err := r.db.ExecContext(ctx, query, rt.Status, rt.BoxSize, rt.BoxCount, rt.PeriodRate, rt.BoxesAmount,
		rt.DiscountAmount, rt.TotalAmount, rt.GuaranteeAmount, items, rt.DeliveryDate, rt.ReturnDate,
		rt.DeliveryAddress, rt.PickupAddress, rt.Notes, rt.TrackingCode, rt.MasterCode, boxIDs(rt.AssignedBoxIDs),
		rt.PriceFrozenAt, rt.PaidAt, rt.DeliveredAt, rt.PickedUpAt, rt.FinishedAt, rt.CancelledAt,
		rt.CancelReason, rt.GuaranteeRefundable, now, rt.ID, rt.Version)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "rentalID", rt.ID)
		return mapError(err)
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "rentalID", rt.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM rentals WHERE id = $1)`, rt.ID).Scan(&exists); err != nil {
			return mapError(err)
		}
		if !exists {
			return fmt.Errorf("rental %d: %w", rt.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("rental %d changed since version %d: %w", rt.ID, rt.Version, domain.ErrConcurrentModification)
	}
	rt.Version++
	rt.UpdatedAt = now
	return nil
}

func (r *rentalRepository) list(ctx context.Context, where string, args ...any) ([]domain.Rental, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	rentals, err := scanRentals(rows)
	return rentals, mapError(err)
}

func (r *rentalRepository) ListOverlapping(ctx context.Context, size domain.BoxSize, start, end time.Time, statuses []domain.RentalStatus) ([]domain.Rental, error) {
	return r.list(ctx, `box_size = $1 AND status = ANY($2) AND delivery_date < $3 AND return_date > $4`,
		size, pq.Array(rentalStatusStrings(statuses)), end, start)
}

func (r *rentalRepository) ListByStatus(ctx context.Context, statuses []domain.RentalStatus) ([]domain.Rental, error) {
	return r.list(ctx, `status = ANY($1)`, pq.Array(rentalStatusStrings(statuses)))
}

func (r *rentalRepository) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Rental, error) {
	return r.list(ctx, `customer_id = $1`, customerID)
}
