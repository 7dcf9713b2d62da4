package jobs

import (
	"context"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/logger"
)

// ReconcileInventory reports boxes whose status disagrees with the rentals
// holding them. It never repairs anything.
func (jr *JobRunner) ReconcileInventory() {
	jr.runWithRecovery("ReconcileInventory", jr.reconcileInventory)
}

func (jr *JobRunner) reconcileInventory(ctx context.Context) (int, error) {
	drift, err := jr.inventory.Reconcile(ctx, domain.SystemCaller)
	if err != nil {
		return 0, err
	}
	for _, d := range drift {
		logger.Warn("Inventory drift", "kind", d.Kind, "box_id", d.BoxID, "rental_ids", d.RentalIDs)
	}
	return len(drift), nil
}
