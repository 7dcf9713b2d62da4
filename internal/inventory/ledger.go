// Package inventory answers whether boxes can be promised for a window and
// moves concrete boxes between the free pool and rentals.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/logger"
)

type BoxStore interface {
	LockSize(ctx context.Context, size domain.BoxSize) error
	CountInService(ctx context.Context, size domain.BoxSize) (int32, error)
	ListInServiceForUpdate(ctx context.Context, size domain.BoxSize) ([]domain.Box, error)
	SetStatus(ctx context.Context, ids []int64, status domain.BoxStatus) error
	GetByIDs(ctx context.Context, ids []int64) ([]domain.Box, error)
	Update(ctx context.Context, box *domain.Box) error
	ListByStatus(ctx context.Context, statuses []domain.BoxStatus) ([]domain.Box, error)
}

type RentalReader interface {
	ListOverlapping(ctx context.Context, size domain.BoxSize, start, end time.Time, statuses []domain.RentalStatus) ([]domain.Rental, error)
	ListByStatus(ctx context.Context, statuses []domain.RentalStatus) ([]domain.Rental, error)
}

// CommittedStatuses hold inventory against other rentals' windows.
var CommittedStatuses = []domain.RentalStatus{
	domain.RentalStatusPaid,
	domain.RentalStatusDelivered,
	domain.RentalStatusPickedUp,
}

type Query struct {
	Size     domain.BoxSize `json:"size"`
	BoxCount int32          `json:"box_count"`
	Start    time.Time      `json:"start"`
	End      time.Time      `json:"end"`
	// ExcludeRentalID leaves one rental out of the arithmetic, so a rental
	// re-checking itself does not collide with its own window.
	ExcludeRentalID int64 `json:"-"`
}

func (q Query) Validate() error {
	if !q.Size.Valid() {
		return domain.InvalidInput("unknown box size %q", q.Size)
	}
	if q.BoxCount < 1 {
		return domain.InvalidInput("box count must be at least 1")
	}
	if !q.End.After(q.Start) {
		return domain.InvalidInput("window end must be after window start")
	}
	return nil
}

type Conflict struct {
	RentalID     int64               `json:"rental_id"`
	Status       domain.RentalStatus `json:"status"`
	BoxCount     int32               `json:"box_count"`
	DeliveryDate time.Time           `json:"delivery_date"`
	ReturnDate   time.Time           `json:"return_date"`
	// Committed is false for overlapping rentals listed for display only.
	Committed bool `json:"committed"`
}

// Availability keeps the raw arithmetic. AvailableCount goes negative when a
// size is overcommitted.
type Availability struct {
	Size               domain.BoxSize `json:"size"`
	Requested          int32          `json:"requested"`
	TotalOfSize        int32          `json:"total_of_size"`
	Committed          int32          `json:"committed"`
	AvailableCount     int32          `json:"available_count"`
	ConflictingRentals []Conflict     `json:"conflicting_rentals"`
}

// Display clamps AvailableCount at zero.
func (a *Availability) Display() int32 {
	if a.AvailableCount < 0 {
		return 0
	}
	return a.AvailableCount
}

// Public returns a copy without the conflicting rentals, for anonymous
// callers.
func (a *Availability) Public() *Availability {
	out := *a
	out.ConflictingRentals = []Conflict{}
	return &out
}

func (a *Availability) CanAllocate() bool {
	return a.AvailableCount >= a.Requested
}

func (a *Availability) err() error {
	return &domain.InsufficientInventoryError{Size: a.Size, Requested: a.Requested, Available: a.AvailableCount}
}

type Ledger struct {
	boxes        BoxStore
	rentals      RentalReader
	countPending bool
	log          *slog.Logger
}

type Option func(*Ledger)

// CountPendingAsCommitted makes pending rentals hold inventory too.
func CountPendingAsCommitted(on bool) Option {
	return func(l *Ledger) { l.countPending = on }
}

// NewLedger binds a ledger to one set of repositories, normally those of a
// single unit of work.
func NewLedger(boxes BoxStore, rentals RentalReader, opts ...Option) *Ledger {
	l := &Ledger{boxes: boxes, rentals: rentals, log: logger.WithComponent("ledger")}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) committed(status domain.RentalStatus) bool {
	switch status {
	case domain.RentalStatusPaid, domain.RentalStatusDelivered, domain.RentalStatusPickedUp:
		return true
	case domain.RentalStatusPending:
		return l.countPending
	}
	return false
}

// CheckAvailability is a read. It takes no locks and its answer may be stale
// by the time the caller acts on it.
func (l *Ledger) CheckAvailability(ctx context.Context, q Query) (*Availability, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	total, err := l.boxes.CountInService(ctx, q.Size)
	if err != nil {
		return nil, fmt.Errorf("count %s boxes: %w", q.Size, err)
	}

	statuses := append([]domain.RentalStatus{domain.RentalStatusPending}, CommittedStatuses...)
	overlapping, err := l.rentals.ListOverlapping(ctx, q.Size, q.Start, q.End, statuses)
	if err != nil {
		return nil, fmt.Errorf("list overlapping rentals: %w", err)
	}

	a := &Availability{Size: q.Size, Requested: q.BoxCount, TotalOfSize: total, ConflictingRentals: []Conflict{}}
	for _, rt := range overlapping {
		if rt.ID == q.ExcludeRentalID {
			continue
		}
		c := Conflict{
			RentalID:     rt.ID,
			Status:       rt.Status,
			BoxCount:     rt.BoxCount,
			DeliveryDate: rt.DeliveryDate,
			ReturnDate:   rt.ReturnDate,
			Committed:    l.committed(rt.Status),
		}
		if c.Committed {
			a.Committed += rt.BoxCount
		}
		a.ConflictingRentals = append(a.ConflictingRentals, c)
	}
	a.AvailableCount = a.TotalOfSize - a.Committed
	return a, nil
}

// AssignBoxes claims q.BoxCount in-service boxes of q.Size, oldest first,
// that no committed rental overlapping the window holds. A box may serve
// several rentals whose windows do not overlap. Boxes that were free become
// unavailable; boxes already held elsewhere keep their status. It must run
// inside a unit of work.
func (l *Ledger) AssignBoxes(ctx context.Context, q Query) ([]int64, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := l.boxes.LockSize(ctx, q.Size); err != nil {
		return nil, err
	}
	boxes, err := l.boxes.ListInServiceForUpdate(ctx, q.Size)
	if err != nil {
		return nil, err
	}
	overlapping, err := l.rentals.ListOverlapping(ctx, q.Size, q.Start, q.End, CommittedStatuses)
	if err != nil {
		return nil, fmt.Errorf("list overlapping rentals: %w", err)
	}
	taken := make(map[int64]bool)
	for _, rt := range overlapping {
		if rt.ID == q.ExcludeRentalID {
			continue
		}
		for _, id := range rt.AssignedBoxIDs {
			taken[id] = true
		}
	}

	var ids, claimed []int64
	var free int32
	for _, b := range boxes {
		if taken[b.ID] {
			continue
		}
		free++
		if int32(len(ids)) < q.BoxCount {
			ids = append(ids, b.ID)
			if b.Status == domain.BoxStatusAvailable {
				claimed = append(claimed, b.ID)
			}
		}
	}
	if int32(len(ids)) < q.BoxCount {
		return nil, &domain.InsufficientInventoryError{Size: q.Size, Requested: q.BoxCount, Available: free}
	}
	if err := l.boxes.SetStatus(ctx, claimed, domain.BoxStatusUnavailable); err != nil {
		return nil, err
	}
	return ids, nil
}

// Commit re-checks the window arithmetic for q under the size lock and then
// assigns concrete boxes. This is the only path that turns a quote into a
// reservation.
func (l *Ledger) Commit(ctx context.Context, q Query) ([]int64, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := l.boxes.LockSize(ctx, q.Size); err != nil {
		return nil, err
	}
	a, err := l.CheckAvailability(ctx, q)
	if err != nil {
		return nil, err
	}
	if !a.CanAllocate() {
		l.log.Info("allocation refused", "size", q.Size, "requested", q.BoxCount,
			"available", a.AvailableCount, "total", a.TotalOfSize, "committed", a.Committed)
		return nil, a.err()
	}
	ids, err := l.AssignBoxes(ctx, q)
	if err != nil {
		return nil, err
	}
	l.log.Debug("boxes assigned", "size", q.Size, "box_ids", ids)
	return ids, nil
}

// ReleaseBoxes gives up rentalID's hold on ids. A box no other committed
// rental holds returns to the pool; one still held elsewhere keeps its
// status. Boxes listed in damaged, or whose condition already says
// needs_repair, leave service instead.
func (l *Ledger) ReleaseBoxes(ctx context.Context, rentalID int64, ids []int64, damaged []int64) error {
	if len(ids) == 0 {
		return nil
	}
	boxes, err := l.boxes.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load boxes to release: %w", err)
	}
	holders, err := l.rentals.ListByStatus(ctx, CommittedStatuses)
	if err != nil {
		return fmt.Errorf("list committed rentals: %w", err)
	}
	heldElsewhere := make(map[int64]bool)
	for _, rt := range holders {
		if rt.ID == rentalID {
			continue
		}
		for _, id := range rt.AssignedBoxIDs {
			heldElsewhere[id] = true
		}
	}

	isDamaged := make(map[int64]bool, len(damaged))
	for _, id := range damaged {
		isDamaged[id] = true
	}

	var free []int64
	for i := range boxes {
		b := &boxes[i]
		switch {
		case isDamaged[b.ID]:
			b.Condition = domain.BoxConditionNeedsRepair
			b.Status = domain.BoxStatusDamaged
		case b.Condition == domain.BoxConditionNeedsRepair:
			b.Status = domain.BoxStatusMaintenance
		case b.Status == domain.BoxStatusDamaged || b.Status == domain.BoxStatusMaintenance:
			continue
		case heldElsewhere[b.ID]:
			continue
		default:
			free = append(free, b.ID)
			continue
		}
		if err := l.boxes.Update(ctx, b); err != nil {
			return err
		}
		l.log.Info("box withdrawn from service", "box_id", b.ID, "status", b.Status)
	}
	return l.boxes.SetStatus(ctx, free, domain.BoxStatusAvailable)
}

// MarkDelivered tags boxes as out at the customer's site.
func (l *Ledger) MarkDelivered(ctx context.Context, ids []int64) error {
	return l.boxes.SetStatus(ctx, ids, domain.BoxStatusDelivered)
}

// MarkReturned tags boxes as back in the warehouse but still held by their
// rental until it finishes.
func (l *Ledger) MarkReturned(ctx context.Context, ids []int64) error {
	return l.boxes.SetStatus(ctx, ids, domain.BoxStatusUnavailable)
}
