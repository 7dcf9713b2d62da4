package inventory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/repository"
	"boxrental-backend/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jan(d int) time.Time {
	return time.Date(2027, time.January, d, 0, 0, 0, 0, time.UTC)
}

func seedBoxes(t *testing.T, repos repository.Repositories, size domain.BoxSize, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		b := &domain.Box{Barcode: fmt.Sprintf("%s-%03d", size, i), Size: size,
			Condition: domain.BoxConditionGood, Status: domain.BoxStatusAvailable}
		require.NoError(t, repos.Boxes.Create(context.Background(), b))
		ids = append(ids, b.ID)
	}
	return ids
}

var codeSeq int

func seedRental(t *testing.T, repos repository.Repositories, status domain.RentalStatus, count int32, start, end time.Time) *domain.Rental {
	t.Helper()
	codeSeq++
	rt := &domain.Rental{CustomerID: 1, Status: status, BoxSize: domain.BoxSizeMedium, BoxCount: count,
		DeliveryDate: start, ReturnDate: end, TrackingCode: fmt.Sprintf("CODE%06d", codeSeq)}
	require.NoError(t, repos.Rentals.Create(context.Background(), rt))
	return rt
}

func TestCheckAvailability_Validation(t *testing.T) {
	store := memory.NewStore()
	repos := store.Repos()
	l := NewLedger(repos.Boxes, repos.Rentals)
	ctx := context.Background()

	tests := []struct {
		name string
		q    Query
	}{
		{"Unknown size", Query{Size: "huge", BoxCount: 1, Start: jan(1), End: jan(2)}},
		{"Zero boxes", Query{Size: domain.BoxSizeMedium, BoxCount: 0, Start: jan(1), End: jan(2)}},
		{"Empty window", Query{Size: domain.BoxSizeMedium, BoxCount: 1, Start: jan(2), End: jan(2)}},
		{"Inverted window", Query{Size: domain.BoxSizeMedium, BoxCount: 1, Start: jan(3), End: jan(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.CheckAvailability(ctx, tt.q)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestCheckAvailability_Arithmetic(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repos()
	seedBoxes(t, repos, domain.BoxSizeMedium, 10)
	seedBoxes(t, repos, domain.BoxSizeSmall, 3)

	paid := seedRental(t, repos, domain.RentalStatusPaid, 6, jan(1), jan(8))
	pending := seedRental(t, repos, domain.RentalStatusPending, 2, jan(3), jan(6))
	seedRental(t, repos, domain.RentalStatusCancelled, 9, jan(1), jan(8))
	seedRental(t, repos, domain.RentalStatusFinished, 9, jan(1), jan(8))

	t.Run("Overlap counts committed rentals only", func(t *testing.T) {
		l := NewLedger(repos.Boxes, repos.Rentals)
		a, err := l.CheckAvailability(ctx, Query{Size: domain.BoxSizeMedium, BoxCount: 5, Start: jan(5), End: jan(10)})
		require.NoError(t, err)
		assert.Equal(t, int32(10), a.TotalOfSize)
		assert.Equal(t, int32(6), a.Committed)
		assert.Equal(t, int32(4), a.AvailableCount)
		assert.False(t, a.CanAllocate())
		require.Len(t, a.ConflictingRentals, 2)
		assert.Equal(t, paid.ID, a.ConflictingRentals[0].RentalID)
		assert.True(t, a.ConflictingRentals[0].Committed)
		assert.Equal(t, pending.ID, a.ConflictingRentals[1].RentalID)
		assert.False(t, a.ConflictingRentals[1].Committed)
	})

	t.Run("Pending can be counted as committed", func(t *testing.T) {
		l := NewLedger(repos.Boxes, repos.Rentals, CountPendingAsCommitted(true))
		a, err := l.CheckAvailability(ctx, Query{Size: domain.BoxSizeMedium, BoxCount: 1, Start: jan(5), End: jan(10)})
		require.NoError(t, err)
		assert.Equal(t, int32(8), a.Committed)
	})

	t.Run("Touching windows do not overlap", func(t *testing.T) {
		l := NewLedger(repos.Boxes, repos.Rentals)
		a, err := l.CheckAvailability(ctx, Query{Size: domain.BoxSizeMedium, BoxCount: 10, Start: jan(8), End: jan(15)})
		require.NoError(t, err)
		assert.Equal(t, int32(10), a.AvailableCount)
		assert.Empty(t, a.ConflictingRentals)
	})

	t.Run("Excluded rental is ignored", func(t *testing.T) {
		l := NewLedger(repos.Boxes, repos.Rentals)
		a, err := l.CheckAvailability(ctx, Query{Size: domain.BoxSizeMedium, BoxCount: 10, Start: jan(1), End: jan(8), ExcludeRentalID: paid.ID})
		require.NoError(t, err)
		assert.Equal(t, int32(10), a.AvailableCount)
	})

	t.Run("Other sizes are independent", func(t *testing.T) {
		l := NewLedger(repos.Boxes, repos.Rentals)
		a, err := l.CheckAvailability(ctx, Query{Size: domain.BoxSizeSmall, BoxCount: 3, Start: jan(1), End: jan(8)})
		require.NoError(t, err)
		assert.Equal(t, int32(3), a.AvailableCount)
	})

	t.Run("Overcommitted sizes keep the raw count", func(t *testing.T) {
		seedRental(t, repos, domain.RentalStatusDelivered, 7, jan(2), jan(4))
		l := NewLedger(repos.Boxes, repos.Rentals)
		a, err := l.CheckAvailability(ctx, Query{Size: domain.BoxSizeMedium, BoxCount: 1, Start: jan(2), End: jan(3)})
		require.NoError(t, err)
		assert.Equal(t, int32(-3), a.AvailableCount)
		assert.Equal(t, int32(0), a.Display())
	})
}

func TestCommit_ExampleScenario(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedBoxes(t, store.Repos(), domain.BoxSizeMedium, 10)

	commit := func(q Query) ([]int64, error) {
		var ids []int64
		err := store.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
			var err error
			ids, err = NewLedger(repos.Boxes, repos.Rentals).Commit(ctx, q)
			return err
		})
		return ids, err
	}

	// Rental A: 6 boxes for [Jan 1, Jan 8).
	a, err := NewLedger(store.Repos().Boxes, store.Repos().Rentals).CheckAvailability(ctx,
		Query{Size: domain.BoxSizeMedium, BoxCount: 6, Start: jan(1), End: jan(8)})
	require.NoError(t, err)
	assert.Equal(t, int32(10), a.AvailableCount)

	idsA, err := commit(Query{Size: domain.BoxSizeMedium, BoxCount: 6, Start: jan(1), End: jan(8)})
	require.NoError(t, err)
	require.Len(t, idsA, 6)
	rentalA := seedRental(t, store.Repos(), domain.RentalStatusPaid, 6, jan(1), jan(8))
	rentalA.AssignedBoxIDs = idsA
	require.NoError(t, store.Repos().Rentals.Update(ctx, rentalA))

	// Rental B: 5 boxes for [Jan 5, Jan 10) does not fit.
	_, err = commit(Query{Size: domain.BoxSizeMedium, BoxCount: 5, Start: jan(5), End: jan(10)})
	var insufficient *domain.InsufficientInventoryError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int32(4), insufficient.Available)

	n, _ := store.Repos().Boxes.CountInService(ctx, domain.BoxSizeMedium)
	assert.Equal(t, int32(10), n)
	free, _ := store.Repos().Boxes.ListByStatus(ctx, []domain.BoxStatus{domain.BoxStatusAvailable})
	assert.Len(t, free, 4, "a refused commit leaves no boxes claimed")

	// Reduced to 4 it fits exactly.
	idsB, err := commit(Query{Size: domain.BoxSizeMedium, BoxCount: 4, Start: jan(5), End: jan(10)})
	require.NoError(t, err)
	assert.Len(t, idsB, 4)
	assert.NotContains(t, idsB, idsA[0])
	seedRental(t, store.Repos(), domain.RentalStatusPaid, 4, jan(5), jan(10))

	after, err := NewLedger(store.Repos().Boxes, store.Repos().Rentals).CheckAvailability(ctx,
		Query{Size: domain.BoxSizeMedium, BoxCount: 1, Start: jan(5), End: jan(8)})
	require.NoError(t, err)
	assert.Equal(t, int32(0), after.AvailableCount)
}

func TestAssignBoxes_OldestFirst(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ids := seedBoxes(t, store.Repos(), domain.BoxSizeLarge, 4)

	var got []int64
	err := store.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		got, err = NewLedger(repos.Boxes, repos.Rentals).AssignBoxes(ctx,
			Query{Size: domain.BoxSizeLarge, BoxCount: 2, Start: jan(1), End: jan(8)})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, ids[:2], got)

	boxes, _ := store.Repos().Boxes.GetByIDs(ctx, got)
	for _, b := range boxes {
		assert.Equal(t, domain.BoxStatusUnavailable, b.Status)
	}
}

func TestAssignBoxes_DisjointWindowsShareBoxes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ids := seedBoxes(t, store.Repos(), domain.BoxSizeMedium, 4)

	commit := func(q Query) ([]int64, error) {
		var got []int64
		err := store.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
			var err error
			got, err = NewLedger(repos.Boxes, repos.Rentals).Commit(ctx, q)
			return err
		})
		return got, err
	}
	hold := func(status domain.RentalStatus, start, end time.Time, boxes []int64) *domain.Rental {
		rt := seedRental(t, store.Repos(), status, int32(len(boxes)), start, end)
		rt.AssignedBoxIDs = boxes
		require.NoError(t, store.Repos().Rentals.Update(ctx, rt))
		return rt
	}

	late, err := commit(Query{Size: domain.BoxSizeMedium, BoxCount: 4, Start: jan(20), End: jan(27)})
	require.NoError(t, err)
	assert.Equal(t, ids, late)
	lateRental := hold(domain.RentalStatusPaid, jan(20), jan(27), late)

	t.Run("Quote and commit agree for an earlier window", func(t *testing.T) {
		a, err := NewLedger(store.Repos().Boxes, store.Repos().Rentals).CheckAvailability(ctx,
			Query{Size: domain.BoxSizeMedium, BoxCount: 4, Start: jan(1), End: jan(8)})
		require.NoError(t, err)
		assert.Equal(t, int32(4), a.AvailableCount)
	})

	early, err := commit(Query{Size: domain.BoxSizeMedium, BoxCount: 4, Start: jan(1), End: jan(8)})
	require.NoError(t, err)
	assert.Equal(t, ids, early, "boxes held for a later window serve an earlier one")
	earlyRental := hold(domain.RentalStatusPaid, jan(1), jan(8), early)

	t.Run("Overlapping window is refused with the free count", func(t *testing.T) {
		_, err := commit(Query{Size: domain.BoxSizeMedium, BoxCount: 1, Start: jan(22), End: jan(25)})
		var insufficient *domain.InsufficientInventoryError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, int32(0), insufficient.Available)
	})

	t.Run("Shared boxes are not drift", func(t *testing.T) {
		drift, err := NewLedger(store.Repos().Boxes, store.Repos().Rentals).Reconcile(ctx)
		require.NoError(t, err)
		assert.Empty(t, drift)
	})

	t.Run("Releasing one holder keeps boxes reserved for the other", func(t *testing.T) {
		repos := store.Repos()
		require.NoError(t, NewLedger(repos.Boxes, repos.Rentals).ReleaseBoxes(ctx, earlyRental.ID, early, nil))
		boxes, err := repos.Boxes.GetByIDs(ctx, ids)
		require.NoError(t, err)
		for _, b := range boxes {
			assert.Equal(t, domain.BoxStatusUnavailable, b.Status)
		}

		earlyRental.Status = domain.RentalStatusFinished
		require.NoError(t, repos.Rentals.Update(ctx, earlyRental))
		require.NoError(t, NewLedger(repos.Boxes, repos.Rentals).ReleaseBoxes(ctx, lateRental.ID, late, nil))
		boxes, err = repos.Boxes.GetByIDs(ctx, ids)
		require.NoError(t, err)
		for _, b := range boxes {
			assert.Equal(t, domain.BoxStatusAvailable, b.Status)
		}
	})
}

func TestReleaseBoxes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repos()
	ids := seedBoxes(t, repos, domain.BoxSizeSmall, 3)
	require.NoError(t, repos.Boxes.SetStatus(ctx, ids, domain.BoxStatusUnavailable))

	worn, _ := repos.Boxes.GetByID(ctx, ids[2])
	worn.Condition = domain.BoxConditionNeedsRepair
	require.NoError(t, repos.Boxes.Update(ctx, worn))

	l := NewLedger(repos.Boxes, repos.Rentals)
	require.NoError(t, l.ReleaseBoxes(ctx, 1, ids, []int64{ids[1]}))

	boxes, err := repos.Boxes.GetByIDs(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, domain.BoxStatusAvailable, boxes[0].Status)
	assert.Equal(t, domain.BoxStatusDamaged, boxes[1].Status)
	assert.Equal(t, domain.BoxConditionNeedsRepair, boxes[1].Condition)
	assert.Equal(t, domain.BoxStatusMaintenance, boxes[2].Status)

	n, _ := repos.Boxes.CountInService(ctx, domain.BoxSizeSmall)
	assert.Equal(t, int32(1), n)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repos()
	ids := seedBoxes(t, repos, domain.BoxSizeMedium, 4)

	rt := seedRental(t, repos, domain.RentalStatusPaid, 2, jan(1), jan(8))
	rt.AssignedBoxIDs = []int64{ids[0], ids[1]}
	require.NoError(t, repos.Rentals.Update(ctx, rt))
	// ids[0] properly reserved, ids[1] still reads available, ids[2] reserved by nobody.
	require.NoError(t, repos.Boxes.SetStatus(ctx, []int64{ids[0], ids[2]}, domain.BoxStatusUnavailable))

	drift, err := NewLedger(repos.Boxes, repos.Rentals).Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, drift, 2)
	assert.Equal(t, Drift{Kind: DriftOrphaned, BoxID: ids[2]}, drift[0])
	assert.Equal(t, Drift{Kind: DriftUnreserved, BoxID: ids[1], RentalIDs: []int64{rt.ID}}, drift[1])

	t.Run("Overlapping holders of one box", func(t *testing.T) {
		other := seedRental(t, repos, domain.RentalStatusDelivered, 1, jan(5), jan(12))
		other.AssignedBoxIDs = []int64{ids[0]}
		require.NoError(t, repos.Rentals.Update(ctx, other))

		drift, err := NewLedger(repos.Boxes, repos.Rentals).Reconcile(ctx)
		require.NoError(t, err)
		require.Len(t, drift, 3)
		assert.Equal(t, Drift{Kind: DriftDoubleAssigned, BoxID: ids[0], RentalIDs: []int64{rt.ID, other.ID}}, drift[0])
	})
}
