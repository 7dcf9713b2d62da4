package service

import (
	"context"
	"fmt"
	"strings"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/inventory"
	"boxrental-backend/internal/logger"
	"boxrental-backend/internal/repository"
)

func (s *Service) RegisterBox(ctx context.Context, caller domain.Caller, req RegisterBoxRequest) (*domain.Box, error) {
	if !caller.IsStaff() {
		return nil, fmt.Errorf("%w: only staff may register boxes", domain.ErrForbidden)
	}
	barcode := strings.TrimSpace(req.Barcode)
	if barcode == "" {
		return nil, domain.InvalidInput("barcode is required")
	}
	if !req.Size.Valid() {
		return nil, domain.InvalidInput("unknown box size %q", req.Size)
	}
	if req.Condition == "" {
		req.Condition = domain.BoxConditionGood
	}
	if !req.Condition.Valid() {
		return nil, domain.InvalidInput("unknown box condition %q", req.Condition)
	}

	box := &domain.Box{
		Barcode:   barcode,
		Size:      req.Size,
		Condition: req.Condition,
		Status:    domain.BoxStatusAvailable,
		Location:  strings.TrimSpace(req.Location),
	}
	if box.Condition == domain.BoxConditionNeedsRepair {
		box.Status = domain.BoxStatusMaintenance
	}
	err := s.store.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return repos.Boxes.Create(ctx, box)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("box registered", "box_id", box.ID, "barcode", box.Barcode, "size", box.Size, "caller", caller.String())
	return box, nil
}

// SetBoxMaintenance moves a box in or out of the rentable fleet. Boxes held by
// a rental cannot be pulled; damage found on return goes through finishing
// the rental instead.
func (s *Service) SetBoxMaintenance(ctx context.Context, caller domain.Caller, boxID int64, action MaintenanceAction) (*domain.Box, error) {
	if !caller.IsStaff() {
		return nil, fmt.Errorf("%w: only staff may change box status", domain.ErrForbidden)
	}

	var box *domain.Box
	err := s.store.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		box, err = repos.Boxes.GetByID(ctx, boxID)
		if err != nil {
			return err
		}
		if err := repos.Boxes.LockSize(ctx, box.Size); err != nil {
			return err
		}

		switch action {
		case ActionMaintenance, ActionDamaged:
			if box.Status == domain.BoxStatusUnavailable || box.Status == domain.BoxStatusDelivered {
				return fmt.Errorf("%w: box %d is assigned to a rental", domain.ErrInvalidStateTransition, box.ID)
			}
			box.Status = domain.BoxStatusMaintenance
			if action == ActionDamaged {
				box.Status = domain.BoxStatusDamaged
				box.Condition = domain.BoxConditionNeedsRepair
			}
		case ActionReturnToService:
			if box.Status.InService() {
				return fmt.Errorf("%w: box %d is already in service", domain.ErrInvalidStateTransition, box.ID)
			}
			box.Status = domain.BoxStatusAvailable
			if box.Condition == domain.BoxConditionNeedsRepair {
				box.Condition = domain.BoxConditionGood
			}
		default:
			return domain.InvalidInput("unknown maintenance action %q", action)
		}
		return repos.Boxes.Update(ctx, box)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("box status changed", "box_id", box.ID, "status", box.Status, "action", action, "caller", caller.String())
	return box, nil
}

func (s *Service) Reconcile(ctx context.Context, caller domain.Caller) ([]inventory.Drift, error) {
	if !caller.IsStaff() {
		return nil, fmt.Errorf("%w: reconciliation is staff only", domain.ErrForbidden)
	}
	drift, err := s.ledger(s.store.Repos()).Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	if len(drift) > 0 {
		logger.Warn("inventory drift detected", "count", len(drift))
	}
	return drift, nil
}
