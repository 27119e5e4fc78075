package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"carrental-backend/internal/app"
	"carrental-backend/internal/config"
	"carrental-backend/internal/jobs"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/scheduler"
)

const allStoreJobs = "all-store"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'reconcile-payments', 'expire-unpaid', 'all-store')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	var logOpts []logger.Option
	if cfg.Log.File != "" {
		logOpts = append(logOpts, logger.WithFile(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays))
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format, logOpts...)
	logger.Info("Starting Car Rental Cronjob Runner...", "log_level", cfg.Log.Level)

	if *runOnce != "" && *runOnce != allStoreJobs && !knownJob(*runOnce) {
		logger.Error("Unknown job name", "job", *runOnce)
		printUsage()
		os.Exit(1)
	}

	// The server owns the callback inbox while it runs; open it here only
	// for an explicit one-off inbox job.
	withInbox := slices.Contains(jobs.InboxJobs, *runOnce)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, app.Options{WithInbox: withInbox})
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	jobServices := &jobs.Services{
		Orders:   application.Orders,
		Payments: application.Payments,
		Coupons:  application.Coupons,
	}

	// Initialize Job Runner
	var cbInbox jobs.CallbackInbox
	if application.Inbox != nil {
		cbInbox = application.Inbox
	}
	jobRunner := jobs.NewJobRunner(application.Store, jobServices, cbInbox, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if *runOnce == allStoreJobs {
			jobRunner.RunAllStoreJobs()
		} else {
			jobRunner.RunOnce(*runOnce)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner, jobs.StoreJobs...)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

func knownJob(name string) bool {
	return slices.Contains(jobs.StoreJobs, name) || slices.Contains(jobs.InboxJobs, name)
}

func printUsage() {
	fmt.Printf("Available jobs:\n")
	for _, name := range jobs.StoreJobs {
		fmt.Printf("  - %s\n", name)
	}
	for _, name := range jobs.InboxJobs {
		fmt.Printf("  - %s (stop the server first; it holds the callback inbox)\n", name)
	}
	fmt.Printf("  - %s\n", allStoreJobs)
}
