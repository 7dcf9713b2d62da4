package jobs

import (
	"context"
	"time"

	"boxrental-backend/internal/config"
	"boxrental-backend/internal/logger"
	"boxrental-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	rentals   service.RentalService
	inventory service.InventoryService
	config    *config.Config
	now       func() time.Time
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(rentals service.RentalService, inv service.InventoryService, cfg *config.Config) *JobRunner {
	return &JobRunner{
		rentals:   rentals,
		inventory: inv,
		config:    cfg,
		now:       time.Now,
	}
}

func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) (int, error)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	n, err := jobFunc(context.Background())
	if err != nil {
		logger.Error("Job failed", "job", jobName, "processed", n, "error", err)
		return
	}
	logger.Info("Job completed", "job", jobName, "processed", n)
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.ExpireStalePending()
	jr.SendReturnReminders()
	jr.ReconcileInventory()
}
