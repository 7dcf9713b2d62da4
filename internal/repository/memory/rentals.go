package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"boxrental-backend/internal/domain"

	"github.com/google/uuid"
)

type rentalRepository struct {
	s session
}

func (r *rentalRepository) Create(ctx context.Context, rental *domain.Rental) error {
	return r.s.write(func(d *state) error {
		for _, existing := range d.rentals {
			if rental.TrackingCode != "" && existing.TrackingCode == rental.TrackingCode {
				return fmt.Errorf("%w: tracking code already issued", domain.ErrConcurrentModification)
			}
		}
		d.nextRentalID++
		rental.ID = d.nextRentalID
		rental.Version = 1
		now := r.s.now()
		rental.CreatedAt = now
		rental.UpdatedAt = now
		d.rentals[rental.ID] = copyRental(*rental)
		return nil
	})
}

func (r *rentalRepository) GetByID(ctx context.Context, id int64) (*domain.Rental, error) {
	return r.find(func(rt *domain.Rental) bool { return rt.ID == id }, id)
}

// GetForUpdate needs no row lock beyond the store-wide one held by Within.
func (r *rentalRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Rental, error) {
	return r.GetByID(ctx, id)
}

func (r *rentalRepository) GetByTrackingCode(ctx context.Context, code string) (*domain.Rental, error) {
	return r.find(func(rt *domain.Rental) bool { return rt.TrackingCode == code }, code)
}

func (r *rentalRepository) GetByMasterCode(ctx context.Context, code string) (*domain.Rental, error) {
	return r.find(func(rt *domain.Rental) bool { return rt.MasterCode == code }, code)
}

func (r *rentalRepository) TrackingCodeExists(ctx context.Context, code string) (bool, error) {
	_, err := r.GetByTrackingCode(ctx, code)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (r *rentalRepository) Update(ctx context.Context, rental *domain.Rental) error {
	return r.s.write(func(d *state) error {
		stored, ok := d.rentals[rental.ID]
		if !ok {
			return notFound("rental", rental.ID)
		}
		if stored.Version != rental.Version {
			return fmt.Errorf("rental %d at version %d, write based on %d: %w",
				rental.ID, stored.Version, rental.Version, domain.ErrConcurrentModification)
		}
		rental.Version++
		rental.UpdatedAt = r.s.now()
		d.rentals[rental.ID] = copyRental(*rental)
		return nil
	})
}

func (r *rentalRepository) ListOverlapping(ctx context.Context, size domain.BoxSize, start, end time.Time, statuses []domain.RentalStatus) ([]domain.Rental, error) {
	want := statusSet(statuses)
	return r.list(func(rt *domain.Rental) bool {
		return rt.BoxSize == size && want[rt.Status] && rt.Overlaps(start, end)
	}), nil
}

func (r *rentalRepository) ListByStatus(ctx context.Context, statuses []domain.RentalStatus) ([]domain.Rental, error) {
	want := statusSet(statuses)
	return r.list(func(rt *domain.Rental) bool { return want[rt.Status] }), nil
}

func (r *rentalRepository) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Rental, error) {
	return r.list(func(rt *domain.Rental) bool { return rt.CustomerID == customerID }), nil
}

func (r *rentalRepository) find(match func(*domain.Rental) bool, key any) (*domain.Rental, error) {
	var found *domain.Rental
	r.s.read(func(d *state) {
		for _, rt := range d.rentals {
			if match(&rt) {
				c := copyRental(rt)
				found = &c
				return
			}
		}
	})
	if found == nil {
		return nil, notFound("rental", key)
	}
	return found, nil
}

func (r *rentalRepository) list(match func(*domain.Rental) bool) []domain.Rental {
	var out []domain.Rental
	r.s.read(func(d *state) {
		for _, rt := range d.rentals {
			if match(&rt) {
				out = append(out, copyRental(rt))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func statusSet(statuses []domain.RentalStatus) map[domain.RentalStatus]bool {
	set := make(map[domain.RentalStatus]bool, len(statuses))
	for _, st := range statuses {
		set[st] = true
	}
	return set
}

type customerRepository struct {
	s session
}

func (r *customerRepository) Create(ctx context.Context, c *domain.Customer) error {
	return r.s.write(func(d *state) error {
		for _, existing := range d.customers {
			if existing.NationalID == c.NationalID {
				return domain.InvalidInput("a customer with this national id already exists")
			}
		}
		d.nextCustomerID++
		c.ID = d.nextCustomerID
		if c.CreatedAt.IsZero() {
			c.CreatedAt = r.s.now()
		}
		d.customers[c.ID] = *c
		return nil
	})
}

func (r *customerRepository) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	var (
		c  domain.Customer
		ok bool
	)
	r.s.read(func(d *state) { c, ok = d.customers[id] })
	if !ok {
		return nil, notFound("customer", id)
	}
	return &c, nil
}

func (r *customerRepository) GetByNationalID(ctx context.Context, nationalID string) (*domain.Customer, error) {
	var found *domain.Customer
	r.s.read(func(d *state) {
		for _, c := range d.customers {
			if c.NationalID == nationalID {
				c := c
				found = &c
				return
			}
		}
	})
	if found == nil {
		return nil, notFound("customer", "by national id")
	}
	return found, nil
}

type eventRepository struct {
	s session
}

func (r *eventRepository) Append(ctx context.Context, evt *domain.RentalEvent) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = r.s.now()
	}
	return r.s.write(func(d *state) error {
		d.events = append(d.events, *evt)
		return nil
	})
}

func (r *eventRepository) ListByRental(ctx context.Context, rentalID int64) ([]domain.RentalEvent, error) {
	var out []domain.RentalEvent
	r.s.read(func(d *state) {
		for _, e := range d.events {
			if e.RentalID == rentalID {
				out = append(out, e)
			}
		}
	})
	return out, nil
}
