package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/events"
	"boxrental-backend/internal/inventory"
	"boxrental-backend/internal/pricing"
	"boxrental-backend/internal/ratelimit"
	"boxrental-backend/internal/repository/memory"
	"boxrental-backend/internal/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	staff    = domain.Caller{UserID: 7, Role: domain.RoleStaff}
	admin    = domain.Caller{UserID: 1, Role: domain.RoleAdmin}
	testNow  = time.Date(2026, time.December, 20, 9, 0, 0, 0, time.UTC)
	nationID = "12.345.678-5"
)

func day(d int) time.Time {
	return time.Date(2027, time.January, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	recorder *events.Recorder
}

func newFixture(t *testing.T, limiter Limiter) *fixture {
	t.Helper()
	store := memory.NewStore(memory.WithClock(func() time.Time { return testNow }))
	gen, err := tracking.NewGenerator(0)
	require.NoError(t, err)
	bus := events.NewBus(events.Synchronous())
	rec := &events.Recorder{}
	bus.Subscribe(rec)
	svc := New(store, pricing.DefaultTable(), gen, limiter, bus, Options{Now: func() time.Time { return testNow }})
	return &fixture{svc: svc, store: store, recorder: rec}
}

func (f *fixture) boxes(t *testing.T, size domain.BoxSize, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		box, err := f.svc.RegisterBox(context.Background(), staff, RegisterBoxRequest{
			Barcode: fmt.Sprintf("%s-%03d", size, i), Size: size,
		})
		require.NoError(t, err)
		ids = append(ids, box.ID)
	}
	return ids
}

func (f *fixture) book(t *testing.T, count int32, start, end time.Time) *domain.Rental {
	t.Helper()
	rt, err := f.svc.CreateRental(context.Background(), staff, CreateRentalRequest{
		Customer:        &NewCustomer{Name: "Ana Rojas", Email: "ana@example.com", NationalID: nationID},
		Size:            domain.BoxSizeMedium,
		BoxCount:        count,
		DeliveryDate:    start,
		ReturnDate:      end,
		DeliveryAddress: "Av. Siempre Viva 742",
	})
	require.NoError(t, err)
	return rt
}

func (f *fixture) move(t *testing.T, id int64, to domain.RentalStatus) *domain.Rental {
	t.Helper()
	rt, err := f.svc.UpdateStatus(context.Background(), staff, StatusChange{RentalID: id, To: to})
	require.NoError(t, err)
	return rt
}

func TestCreateRental(t *testing.T) {
	f := newFixture(t, nil)
	f.boxes(t, domain.BoxSizeMedium, 4)

	rt := f.book(t, 2, day(1), day(8))

	assert.Equal(t, domain.RentalStatusPending, rt.Status)
	assert.Equal(t, int64(5990), rt.TotalAmount)
	assert.Equal(t, int64(5990), rt.BoxesAmount)
	assert.Equal(t, 2*pricing.DefaultDepositPerBox, rt.GuaranteeAmount)
	assert.Len(t, rt.TrackingCode, tracking.DefaultCodeLength)
	assert.Equal(t, "5678-"+rt.TrackingCode, rt.MasterCode)
	assert.Equal(t, rt.DeliveryAddress, rt.PickupAddress)
	assert.Empty(t, rt.AssignedBoxIDs)
	assert.Equal(t, []domain.EventType{domain.EventRentalCreated, domain.EventTrackingCodeIssued}, f.recorder.Types())

	t.Run("Same national id reuses the customer", func(t *testing.T) {
		again := f.book(t, 1, day(10), day(17))
		assert.Equal(t, rt.CustomerID, again.CustomerID)
		assert.NotEqual(t, rt.TrackingCode, again.TrackingCode)
	})

	t.Run("Invalid window", func(t *testing.T) {
		_, err := f.svc.CreateRental(context.Background(), staff, CreateRentalRequest{
			CustomerID: rt.CustomerID, Size: domain.BoxSizeMedium, BoxCount: 1,
			DeliveryDate: day(5), ReturnDate: day(5),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("Customer cannot book for someone else", func(t *testing.T) {
		other := domain.Caller{UserID: rt.CustomerID + 1, Role: domain.RoleCustomer}
		_, err := f.svc.CreateRental(context.Background(), other, CreateRentalRequest{
			CustomerID: rt.CustomerID, Size: domain.BoxSizeMedium, BoxCount: 1,
			DeliveryDate: day(1), ReturnDate: day(8),
		})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("Refused when committed inventory is short", func(t *testing.T) {
		f.move(t, rt.ID, domain.RentalStatusPaid)
		_, err := f.svc.CreateRental(context.Background(), staff, CreateRentalRequest{
			CustomerID: rt.CustomerID, Size: domain.BoxSizeMedium, BoxCount: 3,
			DeliveryDate: day(3), ReturnDate: day(6),
		})
		var short *domain.InsufficientInventoryError
		require.ErrorAs(t, err, &short)
		assert.Equal(t, int32(2), short.Available)
	})
}

func TestAllocationScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.boxes(t, domain.BoxSizeMedium, 10)

	a := f.book(t, 6, day(1), day(8))
	a = f.move(t, a.ID, domain.RentalStatusPaid)
	assert.Len(t, a.AssignedBoxIDs, 6)

	avail, err := f.svc.CheckAvailability(ctx, inventory.Query{Size: domain.BoxSizeMedium, BoxCount: 5, Start: day(3), End: day(10)})
	require.NoError(t, err)
	assert.Equal(t, int32(4), avail.AvailableCount)
	assert.False(t, avail.CanAllocate())

	b := f.book(t, 4, day(3), day(10))
	b = f.move(t, b.ID, domain.RentalStatusPaid)
	assert.Len(t, b.AssignedBoxIDs, 4)

	avail, err = f.svc.CheckAvailability(ctx, inventory.Query{Size: domain.BoxSizeMedium, BoxCount: 1, Start: day(3), End: day(10)})
	require.NoError(t, err)
	assert.Equal(t, int32(0), avail.AvailableCount)

	t.Run("Non overlapping window is unaffected", func(t *testing.T) {
		avail, err := f.svc.CheckAvailability(ctx, inventory.Query{Size: domain.BoxSizeMedium, BoxCount: 10, Start: day(10), End: day(12)})
		require.NoError(t, err)
		assert.True(t, avail.CanAllocate())
	})
}

func TestUpdateStatus_LastBoxRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.boxes(t, domain.BoxSizeMedium, 1)

	const contenders = 8
	ids := make([]int64, contenders)
	for i := range ids {
		ids[i] = f.book(t, 1, day(1), day(8)).ID
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		won     int
		refused int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := f.svc.UpdateStatus(ctx, staff, StatusChange{RentalID: id, To: domain.RentalStatusPaid})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case assert.ErrorIs(t, err, domain.ErrInsufficientInventory):
				refused++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, contenders-1, refused)

	paid, err := f.svc.ListRentals(ctx, staff, []domain.RentalStatus{domain.RentalStatusPaid})
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Len(t, paid[0].AssignedBoxIDs, 1)

	drift, err := f.svc.Reconcile(ctx, staff)
	require.NoError(t, err)
	assert.Empty(t, drift)
}

func TestUpdateStatus_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	boxIDs := f.boxes(t, domain.BoxSizeMedium, 2)

	rt := f.book(t, 2, day(1), day(8))
	rt = f.move(t, rt.ID, domain.RentalStatusPaid)
	require.NotNil(t, rt.PriceFrozenAt)
	assert.ElementsMatch(t, boxIDs, rt.AssignedBoxIDs)

	rt = f.move(t, rt.ID, domain.RentalStatusDelivered)
	box, err := f.store.Repos().Boxes.GetByID(ctx, boxIDs[0])
	require.NoError(t, err)
	assert.Equal(t, domain.BoxStatusDelivered, box.Status)

	rt = f.move(t, rt.ID, domain.RentalStatusPickedUp)
	rt, err = f.svc.UpdateStatus(ctx, staff, StatusChange{
		RentalID: rt.ID, To: domain.RentalStatusFinished, DamagedBoxIDs: []int64{boxIDs[1]},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusFinished, rt.Status)

	boxes, err := f.store.Repos().Boxes.GetByIDs(ctx, boxIDs)
	require.NoError(t, err)
	assert.Equal(t, domain.BoxStatusAvailable, boxes[0].Status)
	assert.Equal(t, domain.BoxStatusDamaged, boxes[1].Status)

	t.Run("Terminal rentals refuse further moves", func(t *testing.T) {
		_, err := f.svc.UpdateStatus(ctx, staff, StatusChange{RentalID: rt.ID, To: domain.RentalStatusCancelled})
		assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	})

	t.Run("History is recorded", func(t *testing.T) {
		history, err := f.svc.ListEvents(ctx, staff, rt.ID)
		require.NoError(t, err)
		var changes int
		for _, evt := range history {
			if evt.Type == domain.EventRentalStatusChanged {
				changes++
			}
		}
		assert.Equal(t, 4, changes)
	})
}

func TestUpdateStatus_StaleVersion(t *testing.T) {
	f := newFixture(t, nil)
	f.boxes(t, domain.BoxSizeMedium, 1)
	rt := f.book(t, 1, day(1), day(8))

	_, err := f.svc.UpdateStatus(context.Background(), staff, StatusChange{
		RentalID: rt.ID, To: domain.RentalStatusPaid, ExpectedVersion: rt.Version + 1,
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
}

func TestUpdateStatus_RetryWithOriginalVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.boxes(t, domain.BoxSizeMedium, 1)
	rt := f.book(t, 1, day(1), day(8))
	req := StatusChange{RentalID: rt.ID, To: domain.RentalStatusPaid, ExpectedVersion: rt.Version}

	first, err := f.svc.UpdateStatus(ctx, staff, req)
	require.NoError(t, err)
	require.Equal(t, domain.RentalStatusPaid, first.Status)

	t.Run("Repeated request is absorbed", func(t *testing.T) {
		again, err := f.svc.UpdateStatus(ctx, staff, req)
		require.NoError(t, err)
		assert.Equal(t, domain.RentalStatusPaid, again.Status)
		assert.Equal(t, first.Version, again.Version)
		assert.Equal(t, first.AssignedBoxIDs, again.AssignedBoxIDs)

		history, err := f.svc.ListEvents(ctx, staff, rt.ID)
		require.NoError(t, err)
		var changes int
		for _, evt := range history {
			if evt.Type == domain.EventRentalStatusChanged {
				changes++
			}
		}
		assert.Equal(t, 1, changes)
	})

	t.Run("Stale version still guards a real change", func(t *testing.T) {
		_, err := f.svc.UpdateStatus(ctx, staff, StatusChange{
			RentalID: rt.ID, To: domain.RentalStatusDelivered, ExpectedVersion: rt.Version,
		})
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	})
}

func TestUpdateStatus_DisjointWindowsShareBoxes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	boxIDs := f.boxes(t, domain.BoxSizeMedium, 4)

	late := f.book(t, 4, day(20), day(27))
	late = f.move(t, late.ID, domain.RentalStatusPaid)
	require.ElementsMatch(t, boxIDs, late.AssignedBoxIDs)

	avail, err := f.svc.CheckAvailability(ctx, inventory.Query{Size: domain.BoxSizeMedium, BoxCount: 4, Start: day(1), End: day(8)})
	require.NoError(t, err)
	assert.Equal(t, int32(4), avail.AvailableCount)

	early := f.book(t, 4, day(1), day(8))
	early = f.move(t, early.ID, domain.RentalStatusPaid)
	assert.ElementsMatch(t, boxIDs, early.AssignedBoxIDs)

	early = f.move(t, early.ID, domain.RentalStatusDelivered)
	early = f.move(t, early.ID, domain.RentalStatusPickedUp)
	f.move(t, early.ID, domain.RentalStatusFinished)

	boxes, err := f.store.Repos().Boxes.GetByIDs(ctx, boxIDs)
	require.NoError(t, err)
	for _, b := range boxes {
		assert.Equal(t, domain.BoxStatusUnavailable, b.Status, "still reserved for the later rental")
	}

	drift, err := f.svc.Reconcile(ctx, staff)
	require.NoError(t, err)
	assert.Empty(t, drift)

	t.Run("Overlapping window stays refused", func(t *testing.T) {
		_, err := f.svc.CreateRental(ctx, staff, CreateRentalRequest{
			Customer:        &NewCustomer{Name: "Ana Rojas", Email: "ana@example.com", NationalID: nationID},
			Size:            domain.BoxSizeMedium,
			BoxCount:        1,
			DeliveryDate:    day(25),
			ReturnDate:      day(30),
			DeliveryAddress: "Av. Siempre Viva 742",
		})
		var insufficient *domain.InsufficientInventoryError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, int32(0), insufficient.Available)
	})
}

func TestPriceFrozenAfterPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.boxes(t, domain.BoxSizeMedium, 4)

	paid := f.book(t, 2, day(1), day(8))
	paid = f.move(t, paid.ID, domain.RentalStatusPaid)
	pending := f.book(t, 2, day(1), day(8))

	raised := map[int32]map[int32]int64{
		7:  {2: 7990, 5: 11990, 10: 19990, 15: 26990},
		14: {2: 9990, 5: 15990, 10: 27990, 15: 37990},
		30: {2: 15990, 5: 25990, 10: 46990, 15: 64990},
	}
	table, err := pricing.NewTable(raised, nil, pricing.DefaultDepositPerBox)
	require.NoError(t, err)
	f.svc.SetPricingTable(table)

	got, err := f.svc.GetRental(ctx, staff, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5990), got.TotalAmount)

	_, err = f.svc.AmendRental(ctx, staff, AmendRentalRequest{RentalID: paid.ID, Discount: ptr(int64(100))})
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	got, err = f.svc.GetRental(ctx, staff, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5990), got.TotalAmount, "stored amounts never follow the table")

	amended, err := f.svc.AmendRental(ctx, staff, AmendRentalRequest{RentalID: pending.ID, Discount: ptr(int64(990))})
	require.NoError(t, err)
	assert.Equal(t, int64(7000), amended.TotalAmount)
	assert.Equal(t, int64(990), amended.DiscountAmount)
}

func TestAmendRental(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.boxes(t, domain.BoxSizeMedium, 3)

	other := f.book(t, 2, day(1), day(8))
	f.move(t, other.ID, domain.RentalStatusPaid)
	rt := f.book(t, 1, day(1), day(8))

	t.Run("Growth beyond free inventory is refused", func(t *testing.T) {
		_, err := f.svc.AmendRental(ctx, staff, AmendRentalRequest{RentalID: rt.ID, BoxCount: ptr(int32(2))})
		assert.ErrorIs(t, err, domain.ErrInsufficientInventory)
	})

	t.Run("Moving the window clears the conflict", func(t *testing.T) {
		got, err := f.svc.AmendRental(ctx, staff, AmendRentalRequest{
			RentalID: rt.ID, ExpectedVersion: rt.Version,
			BoxCount: ptr(int32(3)), DeliveryDate: ptr(day(10)), ReturnDate: ptr(day(17)),
		})
		require.NoError(t, err)
		assert.Equal(t, int32(3), got.BoxCount)
		assert.Equal(t, rt.Version+1, got.Version)
	})

	t.Run("Stale version", func(t *testing.T) {
		_, err := f.svc.AmendRental(ctx, staff, AmendRentalRequest{RentalID: rt.ID, ExpectedVersion: rt.Version})
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	})
}

func TestCustomerAuthorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.boxes(t, domain.BoxSizeMedium, 2)
	rt := f.book(t, 1, day(1), day(8))

	owner := domain.Caller{UserID: rt.CustomerID, Role: domain.RoleCustomer}
	stranger := domain.Caller{UserID: rt.CustomerID + 100, Role: domain.RoleCustomer}

	_, err := f.svc.GetRental(ctx, stranger, rt.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.UpdateStatus(ctx, owner, StatusChange{RentalID: rt.ID, To: domain.RentalStatusPaid})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.OverrideStatus(ctx, staff, StatusChange{RentalID: rt.ID, To: domain.RentalStatusFinished})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.AddNote(ctx, owner, rt.ID, "hello")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	mine, err := f.svc.ListRentals(ctx, owner, nil)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	cancelled, err := f.svc.UpdateStatus(ctx, owner, StatusChange{RentalID: rt.ID, To: domain.RentalStatusCancelled, Reason: "plans changed"})
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusCancelled, cancelled.Status)
	assert.Equal(t, "plans changed", cancelled.CancelReason)
}

func TestOverrideStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	boxIDs := f.boxes(t, domain.BoxSizeMedium, 2)
	rt := f.book(t, 2, day(1), day(8))

	rt, err := f.svc.OverrideStatus(ctx, admin, StatusChange{RentalID: rt.ID, To: domain.RentalStatusDelivered, Reason: "backfill"})
	require.NoError(t, err)
	assert.ElementsMatch(t, boxIDs, rt.AssignedBoxIDs)

	rt, err = f.svc.OverrideStatus(ctx, admin, StatusChange{RentalID: rt.ID, To: domain.RentalStatusPending})
	require.NoError(t, err)
	assert.Empty(t, rt.AssignedBoxIDs)

	boxes, err := f.store.Repos().Boxes.GetByIDs(ctx, boxIDs)
	require.NoError(t, err)
	for _, b := range boxes {
		assert.Equal(t, domain.BoxStatusAvailable, b.Status)
	}

	last := f.recorder.Events()[len(f.recorder.Events())-1]
	assert.Equal(t, "true", last.Attributes["override"])
	assert.Equal(t, domain.RentalStatusDelivered, last.FromStatus)

	t.Run("Cancelling a finished rental clears its boxes", func(t *testing.T) {
		done := f.book(t, 2, day(10), day(15))
		for _, to := range []domain.RentalStatus{domain.RentalStatusPaid, domain.RentalStatusDelivered,
			domain.RentalStatusPickedUp, domain.RentalStatusFinished} {
			done = f.move(t, done.ID, to)
		}
		require.NotEmpty(t, done.AssignedBoxIDs)

		done, err := f.svc.OverrideStatus(ctx, admin, StatusChange{RentalID: done.ID, To: domain.RentalStatusCancelled, Reason: "billing error"})
		require.NoError(t, err)
		assert.Equal(t, domain.RentalStatusCancelled, done.Status)
		assert.Empty(t, done.AssignedBoxIDs)

		drift, err := f.svc.Reconcile(ctx, staff)
		require.NoError(t, err)
		assert.Empty(t, drift)
	})
}

func TestTrackRental(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ratelimit.NewKeyed(60, 3))
	f.boxes(t, domain.BoxSizeMedium, 1)
	rt := f.book(t, 1, day(1), day(8))

	view, err := f.svc.TrackRental(ctx, "10.0.0.1", "5678", rt.TrackingCode)
	require.NoError(t, err)
	assert.Equal(t, domain.RentalStatusPending, view.Status)
	assert.Equal(t, "Pending payment", view.StatusLabel)

	_, err = f.svc.TrackRental(ctx, "10.0.0.1", "0000", rt.TrackingCode)
	assert.ErrorIs(t, err, domain.ErrCredentialMismatch)

	_, err = f.svc.TrackRental(ctx, "10.0.0.1", "5678", "ZZZZZZZZZZ")
	assert.ErrorIs(t, err, domain.ErrCredentialMismatch)

	_, err = f.svc.TrackRental(ctx, "10.0.0.1", "5678", rt.TrackingCode)
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	_, err = f.svc.TrackRental(ctx, "10.0.0.2", "5678", rt.TrackingCode)
	assert.NoError(t, err)

	t.Run("Master code lookup is staff only", func(t *testing.T) {
		got, err := f.svc.LookupByMasterCode(ctx, staff, rt.MasterCode)
		require.NoError(t, err)
		assert.Equal(t, rt.ID, got.ID)

		_, err = f.svc.LookupByMasterCode(ctx, staff, "9999-"+rt.TrackingCode)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = f.svc.LookupByMasterCode(ctx, domain.Caller{UserID: rt.CustomerID, Role: domain.RoleCustomer}, rt.MasterCode)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestAddNote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.boxes(t, domain.BoxSizeMedium, 1)
	rt := f.book(t, 1, day(1), day(8))
	f.move(t, rt.ID, domain.RentalStatusCancelled)

	got, err := f.svc.AddNote(ctx, staff, rt.ID, "customer called back")
	require.NoError(t, err)
	assert.Equal(t, "[2026-12-20 09:00 staff:7] customer called back", got.Notes)

	_, err = f.svc.AddNote(ctx, staff, rt.ID, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSetBoxMaintenance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	ids := f.boxes(t, domain.BoxSizeMedium, 2)
	rt := f.book(t, 1, day(1), day(8))
	rt = f.move(t, rt.ID, domain.RentalStatusPaid)
	held := rt.AssignedBoxIDs[0]
	free := ids[0]
	if free == held {
		free = ids[1]
	}

	_, err := f.svc.SetBoxMaintenance(ctx, staff, held, ActionMaintenance)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	box, err := f.svc.SetBoxMaintenance(ctx, staff, free, ActionDamaged)
	require.NoError(t, err)
	assert.Equal(t, domain.BoxStatusDamaged, box.Status)
	assert.Equal(t, domain.BoxConditionNeedsRepair, box.Condition)

	avail, err := f.svc.CheckAvailability(ctx, inventory.Query{Size: domain.BoxSizeMedium, BoxCount: 1, Start: day(20), End: day(22)})
	require.NoError(t, err)
	assert.Equal(t, int32(1), avail.TotalOfSize)

	box, err = f.svc.SetBoxMaintenance(ctx, staff, free, ActionReturnToService)
	require.NoError(t, err)
	assert.Equal(t, domain.BoxStatusAvailable, box.Status)
	assert.Equal(t, domain.BoxConditionGood, box.Condition)

	_, err = f.svc.SetBoxMaintenance(ctx, staff, free, ActionReturnToService)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	_, err = f.svc.SetBoxMaintenance(ctx, staff, free, "scrap")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuote(t *testing.T) {
	f := newFixture(t, nil)
	f.boxes(t, domain.BoxSizeSmall, 5)

	res, err := f.svc.Quote(context.Background(), QuoteRequest{
		Size: domain.BoxSizeSmall, BoxCount: 5, DeliveryDate: day(1), ReturnDate: day(15),
		Items: []pricing.ItemRequest{{Name: "cart", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(13876), res.BoxesAmount)
	assert.Equal(t, int64(13876+5000), res.TotalAmount)
	assert.True(t, res.Availability.CanAllocate())
}

func ptr[T any](v T) *T {
	return &v
}
