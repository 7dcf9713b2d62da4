package repository

import (
	"context"
	"time"

	"boxrental-backend/internal/domain"
)

// Lookups return domain.ErrNotFound (possibly wrapped) for missing records.

type BoxRepository interface {
	Create(ctx context.Context, box *domain.Box) error
	GetByID(ctx context.Context, id int64) (*domain.Box, error)
	GetByIDs(ctx context.Context, ids []int64) ([]domain.Box, error)
	GetByBarcode(ctx context.Context, barcode string) (*domain.Box, error)
	Update(ctx context.Context, box *domain.Box) error
	ListByStatus(ctx context.Context, statuses []domain.BoxStatus) ([]domain.Box, error)

	// Allocation primitives. LockSize serializes allocators of one size until
	// the enclosing unit of work ends.
	LockSize(ctx context.Context, size domain.BoxSize) error
	CountInService(ctx context.Context, size domain.BoxSize) (int32, error)
	// ListInServiceForUpdate returns every in-service box of size, oldest
	// first, locked until the enclosing unit of work ends.
	ListInServiceForUpdate(ctx context.Context, size domain.BoxSize) ([]domain.Box, error)
	SetStatus(ctx context.Context, ids []int64, status domain.BoxStatus) error
}

type RentalRepository interface {
	Create(ctx context.Context, rental *domain.Rental) error
	GetByID(ctx context.Context, id int64) (*domain.Rental, error)
	// GetForUpdate locks the rental row until the enclosing unit of work ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Rental, error)
	GetByTrackingCode(ctx context.Context, code string) (*domain.Rental, error)
	GetByMasterCode(ctx context.Context, code string) (*domain.Rental, error)
	TrackingCodeExists(ctx context.Context, code string) (bool, error)
	// Update stores rental only if the stored version still equals
	// rental.Version and then bumps it; otherwise it returns
	// domain.ErrConcurrentModification.
	Update(ctx context.Context, rental *domain.Rental) error
	// ListOverlapping returns rentals of size in one of statuses whose window
	// overlaps [start, end).
	ListOverlapping(ctx context.Context, size domain.BoxSize, start, end time.Time, statuses []domain.RentalStatus) ([]domain.Rental, error)
	ListByStatus(ctx context.Context, statuses []domain.RentalStatus) ([]domain.Rental, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]domain.Rental, error)
}

type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
	GetByNationalID(ctx context.Context, nationalID string) (*domain.Customer, error)
}

type EventRepository interface {
	Append(ctx context.Context, evt *domain.RentalEvent) error
	ListByRental(ctx context.Context, rentalID int64) ([]domain.RentalEvent, error)
}

// Repositories bundles the repositories bound to one connection or
// transaction.
type Repositories struct {
	Boxes     BoxRepository
	Rentals   RentalRepository
	Customers CustomerRepository
	Events    EventRepository
}

// Store is the persistence boundary of the engine.
type Store interface {
	// Repos returns repositories for plain reads outside a unit of work.
	Repos() Repositories
	// Within runs fn atomically. Everything fn writes through repos is
	// committed when fn returns nil and discarded otherwise.
	Within(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
