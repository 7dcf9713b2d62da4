package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/events"
	"boxrental-backend/internal/inventory"
	"boxrental-backend/internal/lifecycle"
	"boxrental-backend/internal/logger"
	"boxrental-backend/internal/pricing"
	"boxrental-backend/internal/repository"
	"boxrental-backend/internal/tracking"

	"github.com/google/uuid"
)

type Options struct {
	CountPendingAsCommitted bool
	Now                     func() time.Time
}

// Service implements RentalService and InventoryService over one store.
type Service struct {
	store     repository.Store
	table     atomic.Pointer[pricing.Table]
	codes     *tracking.Generator
	limiter   Limiter
	publisher events.Publisher
	opts      Options
}

var (
	_ RentalService    = (*Service)(nil)
	_ InventoryService = (*Service)(nil)
)

func New(store repository.Store, table *pricing.Table, codes *tracking.Generator, limiter Limiter, publisher events.Publisher, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Service{store: store, codes: codes, limiter: limiter, publisher: publisher, opts: opts}
	s.table.Store(table)
	return s
}

// SetPricingTable swaps the table used for new quotes. Existing rentals keep
// the amounts they were created with.
func (s *Service) SetPricingTable(t *pricing.Table) {
	s.table.Store(t)
}

func (s *Service) PricingTable() *pricing.Table {
	return s.table.Load()
}

func (s *Service) ledger(repos repository.Repositories) *inventory.Ledger {
	return inventory.NewLedger(repos.Boxes, repos.Rentals, inventory.CountPendingAsCommitted(s.opts.CountPendingAsCommitted))
}

func (s *Service) machine(repos repository.Repositories) *lifecycle.Machine {
	return lifecycle.NewMachine(s.ledger(repos), &codeIssuer{gen: s.codes, rentals: repos.Rentals, customers: repos.Customers}, s.opts.Now)
}

// within runs fn in a unit of work and publishes the events it collected
// once the unit of work has committed.
func (s *Service) within(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories, emit func(domain.RentalEvent)) error) error {
	var pending []domain.RentalEvent
	err := s.store.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		pending = pending[:0]
		emit := func(evt domain.RentalEvent) { pending = append(pending, evt) }
		if err := fn(ctx, repos, emit); err != nil {
			return err
		}
		for i := range pending {
			if err := repos.Events.Append(ctx, &pending[i]); err != nil {
				return fmt.Errorf("record %s event: %w", pending[i].Type, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.publisher != nil && len(pending) > 0 {
		s.publisher.Publish(ctx, pending...)
	}
	return nil
}

func (s *Service) event(rt *domain.Rental, typ domain.EventType, caller domain.Caller, attrs map[string]string) domain.RentalEvent {
	return domain.RentalEvent{
		ID:         uuid.NewString(),
		RentalID:   rt.ID,
		CustomerID: rt.CustomerID,
		Type:       typ,
		ToStatus:   rt.Status,
		Actor:      caller.String(),
		Attributes: attrs,
		OccurredAt: s.opts.Now(),
	}
}

func validateWindow(size domain.BoxSize, count int32, start, end time.Time) error {
	if !size.Valid() {
		return domain.InvalidInput("unknown box size %q", size)
	}
	if count < 1 {
		return domain.InvalidInput("box count must be at least 1")
	}
	if start.IsZero() || end.IsZero() {
		return domain.InvalidInput("delivery and return dates are required")
	}
	if domain.DaysBetween(start, end) < 1 {
		return domain.InvalidInput("return date must be at least one day after delivery date")
	}
	return nil
}

func (s *Service) quote(size domain.BoxSize, count int32, start, end time.Time, discount int64, items []pricing.ItemRequest) (pricing.Quote, error) {
	if err := validateWindow(size, count, start, end); err != nil {
		return pricing.Quote{}, err
	}
	return s.table.Load().Quote(pricing.QuoteRequest{
		BoxCount: count,
		Days:     domain.DaysBetween(start, end),
		Discount: discount,
		Items:    items,
	})
}

func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*QuoteResult, error) {
	q, err := s.quote(req.Size, req.BoxCount, req.DeliveryDate, req.ReturnDate, req.Discount, req.Items)
	if err != nil {
		return nil, err
	}
	a, err := s.CheckAvailability(ctx, inventory.Query{Size: req.Size, BoxCount: req.BoxCount, Start: req.DeliveryDate, End: req.ReturnDate})
	if err != nil {
		return nil, err
	}
	return &QuoteResult{Quote: q, Availability: a}, nil
}

func (s *Service) CheckAvailability(ctx context.Context, q inventory.Query) (*inventory.Availability, error) {
	return s.ledger(s.store.Repos()).CheckAvailability(ctx, q)
}

func applyQuote(rt *domain.Rental, q pricing.Quote) {
	rt.BoxCount = q.BoxCount
	rt.PeriodRate = q.PeriodRate
	rt.BoxesAmount = q.BoxesAmount
	rt.DiscountAmount = q.Discount
	rt.LineItems = q.LineItems
	rt.TotalAmount = q.TotalAmount
	rt.GuaranteeAmount = q.GuaranteeAmount
}

func (s *Service) CreateRental(ctx context.Context, caller domain.Caller, req CreateRentalRequest) (*domain.Rental, error) {
	const method = "Service.CreateRental"
	logger.EnterMethod(method, "caller", caller.String(), "size", req.Size, "count", req.BoxCount)

	if !caller.IsStaff() {
		if req.Customer != nil || req.CustomerID != caller.UserID || caller.Role != domain.RoleCustomer {
			logger.ExitMethodWithError(method, domain.ErrForbidden)
			return nil, fmt.Errorf("%w: customers may only book for themselves", domain.ErrForbidden)
		}
	}

	q, err := s.quote(req.Size, req.BoxCount, req.DeliveryDate, req.ReturnDate, req.Discount, req.Items)
	if err != nil {
		logger.ExitMethodWithError(method, err)
		return nil, err
	}

	rt := &domain.Rental{
		Status:          domain.RentalStatusPending,
		BoxSize:         req.Size,
		DeliveryDate:    req.DeliveryDate,
		ReturnDate:      req.ReturnDate,
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		PickupAddress:   strings.TrimSpace(req.PickupAddress),
		Notes:           strings.TrimSpace(req.Notes),
	}
	applyQuote(rt, q)
	if rt.PickupAddress == "" {
		rt.PickupAddress = rt.DeliveryAddress
	}

	err = s.within(ctx, func(ctx context.Context, repos repository.Repositories, emit func(domain.RentalEvent)) error {
		a, err := s.ledger(repos).CheckAvailability(ctx, inventory.Query{
			Size: rt.BoxSize, BoxCount: rt.BoxCount, Start: rt.DeliveryDate, End: rt.ReturnDate,
		})
		if err != nil {
			return err
		}
		if !a.CanAllocate() {
			return &domain.InsufficientInventoryError{Size: rt.BoxSize, Requested: rt.BoxCount, Available: a.AvailableCount}
		}

		customer, err := resolveCustomer(ctx, repos.Customers, req)
		if err != nil {
			return err
		}
		rt.CustomerID = customer.ID

		issuer := &codeIssuer{gen: s.codes, rentals: repos.Rentals, customers: repos.Customers}
		if _, err := issuer.issue(ctx, rt, customer); err != nil {
			return err
		}
		if err := repos.Rentals.Create(ctx, rt); err != nil {
			return err
		}
		emit(s.event(rt, domain.EventRentalCreated, caller, map[string]string{
			"box_size":  string(rt.BoxSize),
			"box_count": strconv.Itoa(int(rt.BoxCount)),
			"total":     strconv.FormatInt(rt.TotalAmount, 10),
		}))
		emit(s.event(rt, domain.EventTrackingCodeIssued, caller, map[string]string{"tracking_code": rt.TrackingCode}))
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError(method, err)
		return nil, err
	}

	logger.WithRental(rt.ID).Info("rental created", "customer_id", rt.CustomerID, "size", rt.BoxSize,
		"count", rt.BoxCount, "total", rt.TotalAmount, "caller", caller.String())
	logger.ExitMethod(method, "rentalID", rt.ID)
	return rt, nil
}

func resolveCustomer(ctx context.Context, customers repository.CustomerRepository, req CreateRentalRequest) (*domain.Customer, error) {
	if req.Customer == nil {
		if req.CustomerID == 0 {
			return nil, domain.InvalidInput("customer is required")
		}
		return customers.GetByID(ctx, req.CustomerID)
	}

	nc := req.Customer
	if strings.TrimSpace(nc.Name) == "" {
		return nil, domain.InvalidInput("customer name is required")
	}
	if _, err := tracking.DeriveIdentityFragment(nc.NationalID); err != nil {
		return nil, err
	}
	existing, err := customers.GetByNationalID(ctx, nc.NationalID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	c := &domain.Customer{
		Name:       strings.TrimSpace(nc.Name),
		Email:      strings.TrimSpace(nc.Email),
		Phone:      strings.TrimSpace(nc.Phone),
		NationalID: nc.NationalID,
	}
	if err := customers.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func itemRequests(items []domain.LineItem) []pricing.ItemRequest {
	out := make([]pricing.ItemRequest, len(items))
	for i, li := range items {
		out[i] = pricing.ItemRequest{Name: li.Name, Quantity: li.Quantity}
	}
	return out
}

func (s *Service) AmendRental(ctx context.Context, caller domain.Caller, req AmendRentalRequest) (*domain.Rental, error) {
	const method = "Service.AmendRental"
	logger.EnterMethod(method, "caller", caller.String(), "rentalID", req.RentalID)

	var rt *domain.Rental
	err := s.within(ctx, func(ctx context.Context, repos repository.Repositories, emit func(domain.RentalEvent)) error {
		var err error
		rt, err = repos.Rentals.GetForUpdate(ctx, req.RentalID)
		if err != nil {
			return err
		}
		if err := authorizeOwner(caller, rt); err != nil {
			return err
		}
		if err := checkVersion(rt, req.ExpectedVersion); err != nil {
			return err
		}
		if rt.Status != domain.RentalStatusPending || rt.PriceFrozenAt != nil {
			return fmt.Errorf("%w: only pending rentals can be amended, rental %d is %s",
				domain.ErrInvalidStateTransition, rt.ID, rt.Status)
		}

		count, start, end := rt.BoxCount, rt.DeliveryDate, rt.ReturnDate
		discount, items := rt.DiscountAmount, itemRequests(rt.LineItems)
		if req.BoxCount != nil {
			count = *req.BoxCount
		}
		if req.DeliveryDate != nil {
			start = *req.DeliveryDate
		}
		if req.ReturnDate != nil {
			end = *req.ReturnDate
		}
		if req.Discount != nil {
			discount = *req.Discount
		}
		if req.Items != nil {
			items = *req.Items
		}

		q, err := s.quote(rt.BoxSize, count, start, end, discount, items)
		if err != nil {
			return err
		}
		a, err := s.ledger(repos).CheckAvailability(ctx, inventory.Query{
			Size: rt.BoxSize, BoxCount: count, Start: start, End: end, ExcludeRentalID: rt.ID,
		})
		if err != nil {
			return err
		}
		if !a.CanAllocate() {
			return &domain.InsufficientInventoryError{Size: rt.BoxSize, Requested: count, Available: a.AvailableCount}
		}

		applyQuote(rt, q)
		rt.DeliveryDate, rt.ReturnDate = start, end
		if req.DeliveryAddress != nil {
			rt.DeliveryAddress = strings.TrimSpace(*req.DeliveryAddress)
		}
		if req.PickupAddress != nil {
			rt.PickupAddress = strings.TrimSpace(*req.PickupAddress)
		}
		if err := repos.Rentals.Update(ctx, rt); err != nil {
			return err
		}
		emit(s.event(rt, domain.EventRentalAmended, caller, map[string]string{
			"box_count": strconv.Itoa(int(rt.BoxCount)),
			"total":     strconv.FormatInt(rt.TotalAmount, 10),
		}))
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError(method, err, "rentalID", req.RentalID)
		return nil, err
	}
	logger.ExitMethod(method, "rentalID", rt.ID, "version", rt.Version)
	return rt, nil
}

func (s *Service) GetRental(ctx context.Context, caller domain.Caller, id int64) (*domain.Rental, error) {
	rt, err := s.store.Repos().Rentals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(caller, rt); err != nil {
		return nil, err
	}
	return rt, nil
}

func (s *Service) ListRentals(ctx context.Context, caller domain.Caller, statuses []domain.RentalStatus) ([]domain.Rental, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, domain.InvalidInput("unknown rental status %q", st)
		}
	}
	repos := s.store.Repos()
	if !caller.IsStaff() {
		all, err := repos.Rentals.ListByCustomer(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		if len(statuses) == 0 {
			return all, nil
		}
		want := make(map[domain.RentalStatus]bool, len(statuses))
		for _, st := range statuses {
			want[st] = true
		}
		var out []domain.Rental
		for _, rt := range all {
			if want[rt.Status] {
				out = append(out, rt)
			}
		}
		return out, nil
	}
	if len(statuses) == 0 {
		for _, info := range domain.Statuses() {
			statuses = append(statuses, info.Status)
		}
	}
	return repos.Rentals.ListByStatus(ctx, statuses)
}

func (s *Service) UpdateStatus(ctx context.Context, caller domain.Caller, req StatusChange) (*domain.Rental, error) {
	return s.changeStatus(ctx, caller, req, false)
}

func (s *Service) OverrideStatus(ctx context.Context, caller domain.Caller, req StatusChange) (*domain.Rental, error) {
	if !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: status override requires an administrator", domain.ErrForbidden)
	}
	return s.changeStatus(ctx, caller, req, true)
}

func (s *Service) changeStatus(ctx context.Context, caller domain.Caller, req StatusChange, override bool) (*domain.Rental, error) {
	const method = "Service.changeStatus"
	logger.EnterMethod(method, "caller", caller.String(), "rentalID", req.RentalID, "to", req.To, "override", override)

	var (
		rt  *domain.Rental
		out lifecycle.Outcome
	)
	err := s.within(ctx, func(ctx context.Context, repos repository.Repositories, emit func(domain.RentalEvent)) error {
		var err error
		rt, err = repos.Rentals.GetForUpdate(ctx, req.RentalID)
		if err != nil {
			return err
		}
		if err := authorizeTransition(caller, rt, req.To); err != nil {
			return err
		}
		// A retry of a change that already landed carries a stale version
		// and must still read as success.
		if rt.Status == req.To {
			return nil
		}
		if err := checkVersion(rt, req.ExpectedVersion); err != nil {
			return err
		}

		m := s.machine(repos)
		t := lifecycle.Transition{To: req.To, Reason: strings.TrimSpace(req.Reason), DamagedBoxIDs: req.DamagedBoxIDs}
		if override {
			out, err = m.Override(ctx, rt, t)
		} else {
			out, err = m.Apply(ctx, rt, t)
		}
		if err != nil || !out.Changed {
			return err
		}
		if err := repos.Rentals.Update(ctx, rt); err != nil {
			return err
		}

		attrs := map[string]string{}
		if override {
			attrs["override"] = "true"
		}
		if t.Reason != "" {
			attrs["reason"] = t.Reason
		}
		if len(t.DamagedBoxIDs) > 0 {
			attrs["damaged_box_ids"] = joinIDs(t.DamagedBoxIDs)
		}
		if len(out.Assigned) > 0 {
			attrs["assigned_box_ids"] = joinIDs(out.Assigned)
		}
		evt := s.event(rt, domain.EventRentalStatusChanged, caller, attrs)
		evt.FromStatus = out.From
		emit(evt)
		if out.CodesIssued {
			emit(s.event(rt, domain.EventTrackingCodeIssued, caller, map[string]string{"tracking_code": rt.TrackingCode}))
		}
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError(method, err, "rentalID", req.RentalID, "to", req.To)
		return nil, err
	}

	if out.Changed {
		logger.WithRental(rt.ID).Info("rental status changed", "from", out.From, "to", out.To,
			"caller", caller.String(), "override", override, "version", rt.Version)
	}
	logger.ExitMethod(method, "rentalID", rt.ID, "changed", out.Changed)
	return rt, nil
}

func (s *Service) AddNote(ctx context.Context, caller domain.Caller, rentalID int64, note string) (*domain.Rental, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, domain.InvalidInput("note must not be empty")
	}
	if !caller.IsStaff() {
		return nil, fmt.Errorf("%w: only staff may annotate rentals", domain.ErrForbidden)
	}

	var rt *domain.Rental
	err := s.within(ctx, func(ctx context.Context, repos repository.Repositories, emit func(domain.RentalEvent)) error {
		var err error
		rt, err = repos.Rentals.GetForUpdate(ctx, rentalID)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("[%s %s] %s", s.opts.Now().UTC().Format("2006-01-02 15:04"), caller.String(), note)
		if rt.Notes == "" {
			rt.Notes = line
		} else {
			rt.Notes += "\n" + line
		}
		if err := repos.Rentals.Update(ctx, rt); err != nil {
			return err
		}
		emit(s.event(rt, domain.EventRentalNoteAdded, caller, map[string]string{"note": note}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (s *Service) ListEvents(ctx context.Context, caller domain.Caller, rentalID int64) ([]domain.RentalEvent, error) {
	if !caller.IsStaff() {
		return nil, fmt.Errorf("%w: event history is staff only", domain.ErrForbidden)
	}
	repos := s.store.Repos()
	if _, err := repos.Rentals.GetByID(ctx, rentalID); err != nil {
		return nil, err
	}
	return repos.Events.ListByRental(ctx, rentalID)
}

// RemindReturnDue records and publishes a return_due event for a delivered
// rental. A return date already announced is skipped, so the reminder job
// can run any number of times. It reports whether a reminder went out.
func (s *Service) RemindReturnDue(ctx context.Context, caller domain.Caller, rentalID int64) (bool, error) {
	if !caller.IsStaff() {
		return false, fmt.Errorf("%w: return reminders are staff only", domain.ErrForbidden)
	}

	sent := false
	err := s.within(ctx, func(ctx context.Context, repos repository.Repositories, emit func(domain.RentalEvent)) error {
		rt, err := repos.Rentals.GetForUpdate(ctx, rentalID)
		if err != nil {
			return err
		}
		if rt.Status != domain.RentalStatusDelivered {
			return nil
		}
		returnDate := rt.ReturnDate.Format("2006-01-02")
		history, err := repos.Events.ListByRental(ctx, rt.ID)
		if err != nil {
			return err
		}
		for _, evt := range history {
			if evt.Type == domain.EventRentalReturnDue && evt.Attributes["return_date"] == returnDate {
				return nil
			}
		}
		emit(s.event(rt, domain.EventRentalReturnDue, caller, map[string]string{
			"return_date": returnDate,
			"overdue":     strconv.FormatBool(rt.ReturnDate.Before(s.opts.Now())),
		}))
		sent = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if sent {
		logger.WithRental(rentalID).Info("return reminder sent")
	}
	return sent, nil
}

func (s *Service) TrackRental(ctx context.Context, clientKey, fragment, code string) (*domain.RentalView, error) {
	if s.limiter != nil && !s.limiter.Allow(clientKey) {
		logger.Warn("tracking lookup throttled", "client", clientKey)
		return nil, domain.ErrRateLimited
	}
	repos := s.store.Repos()
	rt, err := tracking.NewVerifier(repos.Rentals, repos.Customers).Verify(ctx, fragment, code)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialMismatch) {
			logger.Info("tracking lookup did not match", "client", clientKey)
		}
		return nil, err
	}
	view := rt.View()
	return &view, nil
}

func (s *Service) LookupByMasterCode(ctx context.Context, caller domain.Caller, masterCode string) (*domain.Rental, error) {
	if !caller.IsStaff() {
		return nil, fmt.Errorf("%w: master code lookup is staff only", domain.ErrForbidden)
	}
	repos := s.store.Repos()
	rt, err := tracking.NewVerifier(repos.Rentals, repos.Customers).VerifyMaster(ctx, masterCode)
	if errors.Is(err, domain.ErrCredentialMismatch) {
		return nil, fmt.Errorf("master code %q: %w", masterCode, domain.ErrNotFound)
	}
	return rt, err
}

func authorizeOwner(caller domain.Caller, rt *domain.Rental) error {
	if caller.IsStaff() {
		return nil
	}
	if caller.Role == domain.RoleCustomer && caller.UserID == rt.CustomerID {
		return nil
	}
	// Other customers' rentals look absent rather than forbidden.
	return fmt.Errorf("rental %d: %w", rt.ID, domain.ErrNotFound)
}

// authorizeTransition lets staff drive the lifecycle and lets a customer
// cancel their own rental while it is still pending.
func authorizeTransition(caller domain.Caller, rt *domain.Rental, to domain.RentalStatus) error {
	if caller.IsStaff() {
		return nil
	}
	if err := authorizeOwner(caller, rt); err != nil {
		return err
	}
	if to == domain.RentalStatusCancelled && (rt.Status == domain.RentalStatusPending || rt.Status == domain.RentalStatusCancelled) {
		return nil
	}
	return fmt.Errorf("%w: customers may only cancel pending rentals", domain.ErrForbidden)
}

func checkVersion(rt *domain.Rental, expected int64) error {
	if expected != 0 && rt.Version != expected {
		return fmt.Errorf("rental %d is at version %d, request was based on %d: %w",
			rt.ID, rt.Version, expected, domain.ErrConcurrentModification)
	}
	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
