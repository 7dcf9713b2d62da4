// Package lifecycle owns a rental's status and the inventory side effects of
// moving between statuses.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/inventory"
)

var transitions = map[domain.RentalStatus][]domain.RentalStatus{
	domain.RentalStatusPending:   {domain.RentalStatusPaid, domain.RentalStatusCancelled},
	domain.RentalStatusPaid:      {domain.RentalStatusDelivered, domain.RentalStatusCancelled},
	domain.RentalStatusDelivered: {domain.RentalStatusPickedUp, domain.RentalStatusCancelled},
	domain.RentalStatusPickedUp:  {domain.RentalStatusFinished, domain.RentalStatusCancelled},
}

// Next lists the statuses reachable from s through the regular flow.
func Next(s domain.RentalStatus) []domain.RentalStatus {
	return append([]domain.RentalStatus(nil), transitions[s]...)
}

func CanTransition(from, to domain.RentalStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// holdsBoxes reports whether a rental in s keeps custody of concrete boxes.
func holdsBoxes(s domain.RentalStatus) bool {
	switch s {
	case domain.RentalStatusPaid, domain.RentalStatusDelivered, domain.RentalStatusPickedUp:
		return true
	}
	return false
}

type Inventory interface {
	Commit(ctx context.Context, q inventory.Query) ([]int64, error)
	ReleaseBoxes(ctx context.Context, rentalID int64, ids []int64, damaged []int64) error
	MarkDelivered(ctx context.Context, ids []int64) error
	MarkReturned(ctx context.Context, ids []int64) error
}

// CodeIssuer gives a rental its tracking and master codes if it lacks them.
type CodeIssuer interface {
	EnsureCodes(ctx context.Context, rental *domain.Rental) (issued bool, err error)
}

type Transition struct {
	To domain.RentalStatus
	// Reason is recorded on cancellation.
	Reason string
	// DamagedBoxIDs are boxes found damaged on return inspection. Only
	// meaningful when finishing a rental.
	DamagedBoxIDs []int64
}

type Outcome struct {
	From        domain.RentalStatus
	To          domain.RentalStatus
	Changed     bool
	CodesIssued bool
	Assigned    []int64
	Released    []int64
}

type Machine struct {
	inv   Inventory
	codes CodeIssuer
	now   func() time.Time
}

func NewMachine(inv Inventory, codes CodeIssuer, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{inv: inv, codes: codes, now: now}
}

// Apply moves rt along the regular flow. Asking for the status rt already
// has succeeds without side effects. On error rt may be partially modified
// and the caller must discard its unit of work.
func (m *Machine) Apply(ctx context.Context, rt *domain.Rental, t Transition) (Outcome, error) {
	out := Outcome{From: rt.Status, To: t.To}
	if !t.To.Valid() {
		return out, domain.InvalidInput("unknown rental status %q", t.To)
	}
	if rt.Status == t.To {
		return out, nil
	}
	if !CanTransition(rt.Status, t.To) {
		return out, &domain.InvalidTransitionError{From: rt.Status, To: t.To}
	}
	return m.enter(ctx, rt, t, out)
}

// Override forces rt into any status, terminal ones included, applying the
// inventory effects the target status implies.
func (m *Machine) Override(ctx context.Context, rt *domain.Rental, t Transition) (Outcome, error) {
	out := Outcome{From: rt.Status, To: t.To}
	if !t.To.Valid() {
		return out, domain.InvalidInput("unknown rental status %q", t.To)
	}
	if rt.Status == t.To {
		return out, nil
	}
	return m.enter(ctx, rt, t, out)
}

func (m *Machine) enter(ctx context.Context, rt *domain.Rental, t Transition, out Outcome) (Outcome, error) {
	if err := validateDamaged(rt, t); err != nil {
		return out, err
	}
	now := m.now()

	// A finished rental keeps its box list for the record but no longer
	// holds those boxes.
	holding := holdsBoxes(rt.Status) && len(rt.AssignedBoxIDs) > 0
	switch {
	case holdsBoxes(t.To) && !holding:
		ids, err := m.inv.Commit(ctx, inventory.Query{
			Size:            rt.BoxSize,
			BoxCount:        rt.BoxCount,
			Start:           rt.DeliveryDate,
			End:             rt.ReturnDate,
			ExcludeRentalID: rt.ID,
		})
		if err != nil {
			return out, err
		}
		rt.AssignedBoxIDs = ids
		out.Assigned = ids
	case !holdsBoxes(t.To) && holding:
		if err := m.inv.ReleaseBoxes(ctx, rt.ID, rt.AssignedBoxIDs, t.DamagedBoxIDs); err != nil {
			return out, fmt.Errorf("release boxes: %w", err)
		}
		out.Released = rt.AssignedBoxIDs
		if t.To != domain.RentalStatusFinished {
			rt.AssignedBoxIDs = nil
		}
	}

	switch t.To {
	case domain.RentalStatusPaid:
		issued, err := m.codes.EnsureCodes(ctx, rt)
		if err != nil {
			return out, fmt.Errorf("issue tracking codes: %w", err)
		}
		out.CodesIssued = issued
		if out.Assigned == nil {
			if err := m.inv.MarkReturned(ctx, rt.AssignedBoxIDs); err != nil {
				return out, err
			}
		}
		if rt.PriceFrozenAt == nil {
			rt.PriceFrozenAt = &now
		}
		rt.PaidAt = &now
	case domain.RentalStatusDelivered:
		if err := m.inv.MarkDelivered(ctx, rt.AssignedBoxIDs); err != nil {
			return out, err
		}
		rt.DeliveredAt = &now
	case domain.RentalStatusPickedUp:
		if err := m.inv.MarkReturned(ctx, rt.AssignedBoxIDs); err != nil {
			return out, err
		}
		rt.PickedUpAt = &now
	case domain.RentalStatusFinished:
		rt.FinishedAt = &now
		rt.GuaranteeRefundable = true
	case domain.RentalStatusCancelled:
		rt.CancelledAt = &now
		rt.CancelReason = t.Reason
	}
	// Cancelled and pending rentals never carry boxes, even when entered
	// from finished, which keeps its list for the record.
	if t.To == domain.RentalStatusCancelled || t.To == domain.RentalStatusPending {
		rt.AssignedBoxIDs = nil
	}

	rt.Status = t.To
	out.Changed = true
	return out, nil
}

func validateDamaged(rt *domain.Rental, t Transition) error {
	if len(t.DamagedBoxIDs) == 0 {
		return nil
	}
	if t.To != domain.RentalStatusFinished {
		return domain.InvalidInput("damaged boxes can only be reported when finishing a rental")
	}
	held := make(map[int64]bool, len(rt.AssignedBoxIDs))
	for _, id := range rt.AssignedBoxIDs {
		held[id] = true
	}
	for _, id := range t.DamagedBoxIDs {
		if !held[id] {
			return domain.InvalidInput("box %d is not assigned to rental %d", id, rt.ID)
		}
	}
	return nil
}
