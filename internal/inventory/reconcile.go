package inventory

import (
	"context"
	"sort"

	"boxrental-backend/internal/domain"
)

type DriftKind string

const (
	// DriftOrphaned is a reserved box no active rental holds.
	DriftOrphaned DriftKind = "orphaned"
	// DriftUnreserved is a box an active rental holds while the box reads
	// available.
	DriftUnreserved DriftKind = "unreserved"
	// DriftDoubleAssigned is a box held by active rentals whose windows
	// overlap. Holders with disjoint windows share a box legitimately.
	DriftDoubleAssigned DriftKind = "double_assigned"
	// DriftShortAssigned is an active rental holding fewer boxes than it
	// booked.
	DriftShortAssigned DriftKind = "short_assigned"
)

type Drift struct {
	Kind      DriftKind `json:"kind"`
	BoxID     int64     `json:"box_id,omitempty"`
	RentalIDs []int64   `json:"rental_ids,omitempty"`
}

// Reconcile compares box statuses with the assignments of active rentals and
// reports every disagreement. It changes nothing.
func (l *Ledger) Reconcile(ctx context.Context) ([]Drift, error) {
	active, err := l.rentals.ListByStatus(ctx, CommittedStatuses)
	if err != nil {
		return nil, err
	}
	boxes, err := l.boxes.ListByStatus(ctx, nil)
	if err != nil {
		return nil, err
	}

	holders := make(map[int64][]domain.Rental)
	var drift []Drift
	for _, rt := range active {
		if int32(len(rt.AssignedBoxIDs)) < rt.BoxCount {
			drift = append(drift, Drift{Kind: DriftShortAssigned, RentalIDs: []int64{rt.ID}})
		}
		for _, id := range rt.AssignedBoxIDs {
			holders[id] = append(holders[id], rt)
		}
	}

	for _, b := range boxes {
		held := holders[b.ID]
		clash := clashing(held)
		switch {
		case len(clash) > 0:
			drift = append(drift, Drift{Kind: DriftDoubleAssigned, BoxID: b.ID, RentalIDs: clash})
		case len(held) > 0 && b.Status == domain.BoxStatusAvailable:
			drift = append(drift, Drift{Kind: DriftUnreserved, BoxID: b.ID, RentalIDs: rentalIDs(held)})
		case len(held) == 0 && (b.Status == domain.BoxStatusUnavailable || b.Status == domain.BoxStatusDelivered):
			drift = append(drift, Drift{Kind: DriftOrphaned, BoxID: b.ID})
		}
	}

	sort.SliceStable(drift, func(i, j int) bool {
		if drift[i].Kind != drift[j].Kind {
			return drift[i].Kind < drift[j].Kind
		}
		return drift[i].BoxID < drift[j].BoxID
	})
	return drift, nil
}

// clashing returns the ids of rentals in held whose windows overlap another
// rental in held.
func clashing(held []domain.Rental) []int64 {
	var ids []int64
	for i, a := range held {
		for j, b := range held {
			if i != j && a.DeliveryDate.Before(b.ReturnDate) && b.DeliveryDate.Before(a.ReturnDate) {
				ids = append(ids, a.ID)
				break
			}
		}
	}
	return ids
}

func rentalIDs(rentals []domain.Rental) []int64 {
	ids := make([]int64, len(rentals))
	for i, rt := range rentals {
		ids[i] = rt.ID
	}
	return ids
}
