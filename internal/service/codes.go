package service

import (
	"context"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/repository"
	"boxrental-backend/internal/tracking"
)

// codeIssuer gives rentals their tracking and master codes inside a unit of
// work.
type codeIssuer struct {
	gen       *tracking.Generator
	rentals   repository.RentalRepository
	customers repository.CustomerRepository
}

func (c *codeIssuer) EnsureCodes(ctx context.Context, rt *domain.Rental) (bool, error) {
	customer, err := c.customers.GetByID(ctx, rt.CustomerID)
	if err != nil {
		return false, err
	}
	return c.issue(ctx, rt, customer)
}

// issue fills in a missing tracking code and keeps the master code in step
// with it. It reports whether a new tracking code was generated.
func (c *codeIssuer) issue(ctx context.Context, rt *domain.Rental, customer *domain.Customer) (bool, error) {
	fragment, err := tracking.DeriveIdentityFragment(customer.NationalID)
	if err != nil {
		return false, err
	}
	issued := false
	if rt.TrackingCode == "" {
		code, err := c.gen.Generate(ctx, c.rentals)
		if err != nil {
			return false, err
		}
		rt.TrackingCode = code
		issued = true
	}
	rt.MasterCode = tracking.MasterCode(fragment, rt.TrackingCode)
	return issued, nil
}
