package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"boxrental-backend/internal/app"
	"boxrental-backend/internal/config"
	"boxrental-backend/internal/jobs"
	"boxrental-backend/internal/logger"
	"boxrental-backend/internal/scheduler"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'expire-stale-pending', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Box Rental Cronjob Runner...", "log_level", cfg.Log.Level)

	engine, err := app.New(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize engine", "error", err)
		log.Fatalf("Failed to initialize engine: %v", err)
	}
	defer engine.Close()

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(engine.Service, engine.Service, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if !runJobOnce(jobRunner, *runOnce) {
			engine.Close()
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		logger.Error("Failed to initialize scheduler", "error", err)
		engine.Close()
		os.Exit(1)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and reports whether the name was known
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) bool {
	switch jobName {
	case "expire-stale-pending":
		jobRunner.ExpireStalePending()
	case "send-return-reminders":
		jobRunner.SendReturnReminders()
	case "reconcile-inventory":
		jobRunner.ReconcileInventory()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - expire-stale-pending\n")
		fmt.Printf("  - send-return-reminders\n")
		fmt.Printf("  - reconcile-inventory\n")
		fmt.Printf("  - all\n")
		return false
	}
	return true
}
