package grpc

import (
	"context"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/inventory"
	"boxrental-backend/internal/service"

	"google.golang.org/protobuf/types/known/structpb"
)

type RentalHandler struct {
	rentalSvc service.RentalService
}

func NewRentalHandler(rentalSvc service.RentalService) *RentalHandler {
	return &RentalHandler{rentalSvc: rentalSvc}
}

type idRequest struct {
	ID int64 `json:"id"`
}

func (h *RentalHandler) ListStatuses(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return encodeField("statuses", domain.Statuses())
}

func (h *RentalHandler) CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var q inventory.Query
	if err := decode(req, &q); err != nil {
		return nil, err
	}
	a, err := h.rentalSvc.CheckAvailability(ctx, q)
	if err != nil {
		return nil, err
	}
	return encode(a.Public())
}

func (h *RentalHandler) Quote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in service.QuoteRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	q, err := h.rentalSvc.Quote(ctx, in)
	if err != nil {
		return nil, err
	}
	q.Availability = q.Availability.Public()
	return encode(q)
}

func (h *RentalHandler) TrackRental(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		Fragment     string `json:"fragment"`
		TrackingCode string `json:"tracking_code"`
	}
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	view, err := h.rentalSvc.TrackRental(ctx, clientKey(ctx), in.Fragment, in.TrackingCode)
	if err != nil {
		return nil, err
	}
	return encode(view)
}

func (h *RentalHandler) CreateRental(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := GetCallerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var in service.CreateRentalRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	rt, err := h.rentalSvc.CreateRental(ctx, caller, in)
	if err != nil {
		return nil, err
	}
	return encode(rt)
}

func (h *RentalHandler) GetRental(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := GetCallerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var in idRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	rt, err := h.rentalSvc.GetRental(ctx, caller, in.ID)
	if err != nil {
		return nil, err
	}
	return encode(rt)
}

func (h *RentalHandler) ListRentals(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := GetCallerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var in struct {
		Statuses []domain.RentalStatus `json:"statuses"`
	}
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	rentals, err := h.rentalSvc.ListRentals(ctx, caller, in.Statuses)
	if err != nil {
		return nil, err
	}
	if rentals == nil {
		rentals = []domain.Rental{}
	}
	return encodeField("rentals", rentals)
}

func (h *RentalHandler) AmendRental(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := GetCallerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var in struct {
		idRequest
		service.AmendRentalRequest
	}
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	in.AmendRentalRequest.RentalID = in.ID
	rt, err := h.rentalSvc.AmendRental(ctx, caller, in.AmendRentalRequest)
	if err != nil {
		return nil, err
	}
	return encode(rt)
}

func (h *RentalHandler) decodeStatusChange(req *structpb.Struct) (service.StatusChange, error) {
	var in struct {
		idRequest
		service.StatusChange
	}
	if err := decode(req, &in); err != nil {
		return service.StatusChange{}, err
	}
	in.StatusChange.RentalID = in.ID
	return in.StatusChange, nil
}

func (h *RentalHandler) UpdateStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := GetCallerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	change, err := h.decodeStatusChange(req)
	if err != nil {
		return nil, err
	}
	rt, err := h.rentalSvc.UpdateStatus(ctx, caller, change)
	if err != nil {
		return nil, err
	}
	return encode(rt)
}

func (h *RentalHandler) OverrideStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := GetCallerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	change, err := h.decodeStatusChange(req)
	if err != nil {
		return nil, err
	}
	rt, err := h.rentalSvc.OverrideStatus(ctx, caller, change)
	if err != nil {
		return nil, err
	}
	return encode(rt)
}

func (h *RentalHandler) AddNote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := GetCallerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var in struct {
		idRequest
		Note string `json:"note"`
	}
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	rt, err := h.rentalSvc.AddNote(ctx, caller, in.ID, in.Note)
	if err != nil {
		return nil, err
	}
	return encode(rt)
}

func (h *RentalHandler) ListEvents(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := GetCallerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var in idRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	evts, err := h.rentalSvc.ListEvents(ctx, caller, in.ID)
	if err != nil {
		return nil, err
	}
	if evts == nil {
		evts = []domain.RentalEvent{}
	}
	return encodeField("events", evts)
}

func (h *RentalHandler) LookupByMasterCode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := GetCallerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var in struct {
		MasterCode string `json:"master_code"`
	}
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	rt, err := h.rentalSvc.LookupByMasterCode(ctx, caller, in.MasterCode)
	if err != nil {
		return nil, err
	}
	return encode(rt)
}
