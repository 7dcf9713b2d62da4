package jobs

import (
	"context"
	"fmt"
	"time"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/logger"
	"boxrental-backend/internal/service"
)

const stalePendingReason = "payment not received"

// ExpireStalePending cancels pending rentals that were never paid, either
// because they sat unpaid past the configured age or because their delivery
// date has already arrived.
func (jr *JobRunner) ExpireStalePending() {
	jr.runWithRecovery("ExpireStalePending", jr.expireStalePending)
}

func (jr *JobRunner) expireStalePending(ctx context.Context) (int, error) {
	pending, err := jr.rentals.ListRentals(ctx, domain.SystemCaller, []domain.RentalStatus{domain.RentalStatusPending})
	if err != nil {
		return 0, fmt.Errorf("list pending rentals: %w", err)
	}

	now := jr.now()
	cutoff := now.Add(-time.Duration(jr.config.Scheduler.StalePendingHours) * time.Hour)
	expired := 0
	for _, rt := range pending {
		if rt.CreatedAt.After(cutoff) && rt.DeliveryDate.After(now) {
			continue
		}
		_, err := jr.rentals.UpdateStatus(ctx, domain.SystemCaller, service.StatusChange{
			RentalID:        rt.ID,
			To:              domain.RentalStatusCancelled,
			ExpectedVersion: rt.Version,
			Reason:          stalePendingReason,
		})
		if err != nil {
			// Someone acted on the rental since we listed it.
			logger.Warn("Failed to expire pending rental", "rental_id", rt.ID, "error", err)
			continue
		}
		expired++
		logger.Debug("Expired pending rental", "rental_id", rt.ID, "created_at", rt.CreatedAt)
	}
	return expired, nil
}

// SendReturnReminders announces delivered rentals whose return date falls
// within the reminder lead time. Each return date is announced once.
func (jr *JobRunner) SendReturnReminders() {
	jr.runWithRecovery("SendReturnReminders", jr.sendReturnReminders)
}

func (jr *JobRunner) sendReturnReminders(ctx context.Context) (int, error) {
	delivered, err := jr.rentals.ListRentals(ctx, domain.SystemCaller, []domain.RentalStatus{domain.RentalStatusDelivered})
	if err != nil {
		return 0, fmt.Errorf("list delivered rentals: %w", err)
	}

	horizon := jr.now().Add(time.Duration(jr.config.Scheduler.ReminderLeadHours) * time.Hour)
	sent := 0
	for _, rt := range delivered {
		if rt.ReturnDate.After(horizon) {
			continue
		}
		ok, err := jr.rentals.RemindReturnDue(ctx, domain.SystemCaller, rt.ID)
		if err != nil {
			logger.Warn("Failed to send return reminder", "rental_id", rt.ID, "error", err)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}
