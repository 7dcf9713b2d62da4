package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestStore_WithinRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("boom")

	err := s.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		require.NoError(t, repos.Boxes.Create(ctx, &domain.Box{Barcode: "B-1", Size: domain.BoxSizeMedium, Status: domain.BoxStatusAvailable}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Repos().Boxes.GetByBarcode(ctx, "B-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_WithinCommits(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	err := s.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Boxes.Create(ctx, &domain.Box{Barcode: "B-1", Size: domain.BoxSizeMedium, Status: domain.BoxStatusAvailable})
	})
	require.NoError(t, err)

	box, err := s.Repos().Boxes.GetByBarcode(ctx, "B-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), box.ID)
}

func TestStore_RollbackKeepsWritesOutsideUnit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("boom")
	held := make(chan struct{})
	release := make(chan struct{})
	failed := make(chan error, 1)

	go func() {
		failed <- s.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
			close(held)
			<-release
			return boom
		})
	}()
	<-held

	created := make(chan error, 1)
	go func() {
		created <- s.Repos().Boxes.Create(ctx, &domain.Box{Barcode: "S-1", Size: domain.BoxSizeSmall, Status: domain.BoxStatusAvailable})
	}()

	select {
	case <-created:
		require.Fail(t, "write outside a unit of work finished while one was open")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	assert.ErrorIs(t, <-failed, boom)
	require.NoError(t, <-created)

	box, err := s.Repos().Boxes.GetByBarcode(ctx, "S-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BoxSizeSmall, box.Size)
	n, err := s.Repos().Boxes.CountInService(ctx, domain.BoxSizeSmall)
	require.NoError(t, err)
	assert.Equal(t, int32(1), n)
}

func TestStore_LockTimeout(t *testing.T) {
	s := NewStore(WithLockTimeout(20 * time.Millisecond))
	held := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = s.Within(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := s.Within(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		return nil
	})
	close(release)
	assert.ErrorIs(t, err, domain.ErrAllocationTimeout)
}

func TestBoxRepository_AllocationOrder(t *testing.T) {
	ctx := context.Background()
	base := day(1)
	clock := base
	s := NewStore(WithClock(func() time.Time { return clock }))
	boxes := s.Repos().Boxes

	for i, barcode := range []string{"M-3", "M-1", "M-2"} {
		clock = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, boxes.Create(ctx, &domain.Box{Barcode: barcode, Size: domain.BoxSizeMedium, Status: domain.BoxStatusAvailable}))
	}
	require.NoError(t, boxes.Create(ctx, &domain.Box{Barcode: "S-1", Size: domain.BoxSizeSmall, Status: domain.BoxStatusAvailable}))
	require.NoError(t, boxes.Create(ctx, &domain.Box{Barcode: "M-9", Size: domain.BoxSizeMedium, Status: domain.BoxStatusMaintenance}))

	got, err := boxes.ListInServiceForUpdate(ctx, domain.BoxSizeMedium)
	require.NoError(t, err)
	require.Len(t, got, 3, "maintenance boxes are left out")
	assert.Equal(t, "M-3", got[0].Barcode)
	assert.Equal(t, "M-1", got[1].Barcode)
	assert.Equal(t, "M-2", got[2].Barcode)

	n, err := boxes.CountInService(ctx, domain.BoxSizeMedium)
	require.NoError(t, err)
	assert.Equal(t, int32(3), n)

	require.NoError(t, boxes.SetStatus(ctx, []int64{got[0].ID}, domain.BoxStatusUnavailable))
	n, _ = boxes.CountInService(ctx, domain.BoxSizeMedium)
	assert.Equal(t, int32(3), n, "reserved boxes stay in service")

	assert.ErrorIs(t, boxes.SetStatus(ctx, []int64{999}, domain.BoxStatusAvailable), domain.ErrNotFound)
}

func TestRentalRepository_VersionedUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rentals := s.Repos().Rentals

	rt := &domain.Rental{CustomerID: 1, Status: domain.RentalStatusPending, BoxSize: domain.BoxSizeMedium, BoxCount: 2,
		DeliveryDate: day(1), ReturnDate: day(8), TrackingCode: "ABCDEFGH23"}
	require.NoError(t, rentals.Create(ctx, rt))
	assert.Equal(t, int64(1), rt.Version)

	first, _ := rentals.GetByID(ctx, rt.ID)
	second, _ := rentals.GetByID(ctx, rt.ID)

	first.Notes = "first writer"
	require.NoError(t, rentals.Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Notes = "second writer"
	assert.ErrorIs(t, rentals.Update(ctx, second), domain.ErrConcurrentModification)

	stored, _ := rentals.GetByID(ctx, rt.ID)
	assert.Equal(t, "first writer", stored.Notes)

	exists, err := rentals.TrackingCodeExists(ctx, "ABCDEFGH23")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRentalRepository_ListOverlapping(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rentals := s.Repos().Rentals

	mk := func(start, end int, status domain.RentalStatus) {
		require.NoError(t, rentals.Create(ctx, &domain.Rental{BoxSize: domain.BoxSizeMedium, BoxCount: 1,
			Status: status, DeliveryDate: day(start), ReturnDate: day(end)}))
	}
	mk(1, 8, domain.RentalStatusPaid)
	// Touches the window at its end only.
	mk(8, 15, domain.RentalStatusPaid)
	mk(5, 12, domain.RentalStatusCancelled)
	mk(3, 6, domain.RentalStatusDelivered)

	got, err := rentals.ListOverlapping(ctx, domain.BoxSizeMedium, day(2), day(8),
		[]domain.RentalStatus{domain.RentalStatusPaid, domain.RentalStatusDelivered, domain.RentalStatusPickedUp})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(4), got[1].ID)
}
