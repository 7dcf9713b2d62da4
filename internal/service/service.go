package service

import (
	"context"
	"time"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/inventory"
	"boxrental-backend/internal/pricing"
)

// RentalService is the public entry point of the engine. Every call that
// acts on behalf of someone takes the caller explicitly.
type RentalService interface {
	Quote(ctx context.Context, req QuoteRequest) (*QuoteResult, error)
	CheckAvailability(ctx context.Context, q inventory.Query) (*inventory.Availability, error)
	CreateRental(ctx context.Context, caller domain.Caller, req CreateRentalRequest) (*domain.Rental, error)
	AmendRental(ctx context.Context, caller domain.Caller, req AmendRentalRequest) (*domain.Rental, error)
	GetRental(ctx context.Context, caller domain.Caller, id int64) (*domain.Rental, error)
	ListRentals(ctx context.Context, caller domain.Caller, statuses []domain.RentalStatus) ([]domain.Rental, error)
	UpdateStatus(ctx context.Context, caller domain.Caller, req StatusChange) (*domain.Rental, error)
	OverrideStatus(ctx context.Context, caller domain.Caller, req StatusChange) (*domain.Rental, error)
	AddNote(ctx context.Context, caller domain.Caller, rentalID int64, note string) (*domain.Rental, error)
	ListEvents(ctx context.Context, caller domain.Caller, rentalID int64) ([]domain.RentalEvent, error)
	TrackRental(ctx context.Context, clientKey, fragment, code string) (*domain.RentalView, error)
	LookupByMasterCode(ctx context.Context, caller domain.Caller, masterCode string) (*domain.Rental, error)
	RemindReturnDue(ctx context.Context, caller domain.Caller, rentalID int64) (bool, error)
}

type InventoryService interface {
	RegisterBox(ctx context.Context, caller domain.Caller, req RegisterBoxRequest) (*domain.Box, error)
	SetBoxMaintenance(ctx context.Context, caller domain.Caller, boxID int64, action MaintenanceAction) (*domain.Box, error)
	Reconcile(ctx context.Context, caller domain.Caller) ([]inventory.Drift, error)
}

// Limiter decides whether a client may make another anonymous lookup.
type Limiter interface {
	Allow(key string) bool
}

type QuoteRequest struct {
	Size         domain.BoxSize        `json:"size"`
	BoxCount     int32                 `json:"box_count"`
	DeliveryDate time.Time             `json:"delivery_date"`
	ReturnDate   time.Time             `json:"return_date"`
	Discount     int64                 `json:"discount"`
	Items        []pricing.ItemRequest `json:"items"`
}

// QuoteResult prices a configuration and reports advisory availability. It
// reserves nothing.
type QuoteResult struct {
	pricing.Quote
	Availability *inventory.Availability `json:"availability"`
}

type NewCustomer struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	NationalID string `json:"national_id"`
}

type CreateRentalRequest struct {
	// CustomerID names an existing customer. Staff may instead pass
	// Customer, which is matched by national id or created.
	CustomerID      int64                 `json:"customer_id"`
	Customer        *NewCustomer          `json:"customer,omitempty"`
	Size            domain.BoxSize        `json:"size"`
	BoxCount        int32                 `json:"box_count"`
	DeliveryDate    time.Time             `json:"delivery_date"`
	ReturnDate      time.Time             `json:"return_date"`
	DeliveryAddress string                `json:"delivery_address"`
	PickupAddress   string                `json:"pickup_address"`
	Notes           string                `json:"notes"`
	Discount        int64                 `json:"discount"`
	Items           []pricing.ItemRequest `json:"items"`
}

// AmendRentalRequest changes a pending rental. Nil fields keep their value.
type AmendRentalRequest struct {
	RentalID        int64                  `json:"-"`
	ExpectedVersion int64                  `json:"expected_version"`
	BoxCount        *int32                 `json:"box_count,omitempty"`
	DeliveryDate    *time.Time             `json:"delivery_date,omitempty"`
	ReturnDate      *time.Time             `json:"return_date,omitempty"`
	DeliveryAddress *string                `json:"delivery_address,omitempty"`
	PickupAddress   *string                `json:"pickup_address,omitempty"`
	Discount        *int64                 `json:"discount,omitempty"`
	Items           *[]pricing.ItemRequest `json:"items,omitempty"`
}

type StatusChange struct {
	RentalID int64               `json:"-"`
	To       domain.RentalStatus `json:"to"`
	// ExpectedVersion, when non-zero, must match the stored version.
	ExpectedVersion int64   `json:"expected_version"`
	Reason          string  `json:"reason"`
	DamagedBoxIDs   []int64 `json:"damaged_box_ids"`
}

type RegisterBoxRequest struct {
	Barcode   string              `json:"barcode"`
	Size      domain.BoxSize      `json:"size"`
	Condition domain.BoxCondition `json:"condition"`
	Location  string              `json:"location"`
}

type MaintenanceAction string

const (
	ActionMaintenance     MaintenanceAction = "maintenance"
	ActionDamaged         MaintenanceAction = "damaged"
	ActionReturnToService MaintenanceAction = "return_to_service"
)
