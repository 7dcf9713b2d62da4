package grpc

import (
	"context"

	"boxrental-backend/internal/inventory"
	"boxrental-backend/internal/service"

	"google.golang.org/protobuf/types/known/structpb"
)

type InventoryHandler struct {
	inventorySvc service.InventoryService
}

func NewInventoryHandler(inventorySvc service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventorySvc: inventorySvc}
}

func (h *InventoryHandler) RegisterBox(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := GetCallerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var in service.RegisterBoxRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	box, err := h.inventorySvc.RegisterBox(ctx, caller, in)
	if err != nil {
		return nil, err
	}
	return encode(box)
}

func (h *InventoryHandler) SetBoxMaintenance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := GetCallerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var in struct {
		BoxID  int64                     `json:"box_id"`
		Action service.MaintenanceAction `json:"action"`
	}
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	box, err := h.inventorySvc.SetBoxMaintenance(ctx, caller, in.BoxID, in.Action)
	if err != nil {
		return nil, err
	}
	return encode(box)
}

func (h *InventoryHandler) Reconcile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := GetCallerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	drift, err := h.inventorySvc.Reconcile(ctx, caller)
	if err != nil {
		return nil, err
	}
	if drift == nil {
		drift = []inventory.Drift{}
	}
	return encodeField("drift", drift)
}
