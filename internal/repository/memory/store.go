// Package memory keeps the whole store in process. It backs tests, local
// development and the boxctl dry-run mode.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/repository"
)

type state struct {
	boxes          map[int64]domain.Box
	rentals        map[int64]domain.Rental
	customers      map[int64]domain.Customer
	events         []domain.RentalEvent
	nextBoxID      int64
	nextRentalID   int64
	nextCustomerID int64
}

func newState() *state {
	return &state{
		boxes:     make(map[int64]domain.Box),
		rentals:   make(map[int64]domain.Rental),
		customers: make(map[int64]domain.Customer),
	}
}

func (s *state) clone() *state {
	c := &state{
		boxes:          make(map[int64]domain.Box, len(s.boxes)),
		rentals:        make(map[int64]domain.Rental, len(s.rentals)),
		customers:      make(map[int64]domain.Customer, len(s.customers)),
		events:         make([]domain.RentalEvent, len(s.events)),
		nextBoxID:      s.nextBoxID,
		nextRentalID:   s.nextRentalID,
		nextCustomerID: s.nextCustomerID,
	}
	for id, b := range s.boxes {
		c.boxes[id] = b
	}
	for id, r := range s.rentals {
		c.rentals[id] = copyRental(r)
	}
	for id, cu := range s.customers {
		c.customers[id] = cu
	}
	copy(c.events, s.events)
	return c
}

// Store runs one unit of work at a time. Writes through Repos outside a unit
// of work wait for the one in progress so a rollback cannot erase them.
// Reads through Repos may observe writes of a unit of work in progress.
type Store struct {
	// sem is a one-slot semaphore so waiting for the write lock honors
	// context cancellation.
	sem         chan struct{}
	lockTimeout time.Duration

	mu   sync.RWMutex
	data *state
	now  func() time.Time
}

type Option func(*Store)

// WithLockTimeout bounds how long Within waits for a concurrent unit of work.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithClock overrides the time source used for created/updated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		sem:  make(chan struct{}, 1),
		data: newState(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Repos() repository.Repositories {
	return s.repos(false)
}

func (s *Store) repos(inUnit bool) repository.Repositories {
	c := session{Store: s, inUnit: inUnit}
	return repository.Repositories{
		Boxes:     &boxRepository{s: c},
		Rentals:   &rentalRepository{s: c},
		Customers: &customerRepository{s: c},
		Events:    &eventRepository{s: c},
	}
}

// session is the store as seen by one set of repositories.
type session struct {
	*Store
	// inUnit marks repositories handed out by Within, which already holds
	// the semaphore.
	inUnit bool
}

func (c session) write(fn func(d *state) error) error {
	if !c.inUnit {
		c.sem <- struct{}{}
		defer func() { <-c.sem }()
	}
	return c.Store.write(fn)
}

func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer func() { <-s.sem }()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	err := fn(ctx, s.repos(true))
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) acquire(ctx context.Context) error {
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for store lock: %v", domain.ErrAllocationTimeout, ctx.Err())
	}
}

func (s *Store) read(fn func(d *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func (s *Store) write(fn func(d *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func copyRental(r domain.Rental) domain.Rental {
	if r.LineItems != nil {
		r.LineItems = append([]domain.LineItem(nil), r.LineItems...)
	}
	if r.AssignedBoxIDs != nil {
		r.AssignedBoxIDs = append([]int64(nil), r.AssignedBoxIDs...)
	}
	return r
}

func notFound(kind string, key any) error {
	return fmt.Errorf("%s %v: %w", kind, key, domain.ErrNotFound)
}
