package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sort"
	"syscall"

	"github.com/anonto42/campus-hub/backend/internal/jobs"
	"github.com/anonto42/campus-hub/backend/internal/router"
	"github.com/anonto42/campus-hub/backend/pkg/config"
	"github.com/anonto42/campus-hub/backend/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	once := flag.String("once", "", "run one task immediately and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	zlog, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to initialize databases", zap.Error(err))
	}
	defer db.CloseDB()

	app, err := router.Build(ctx, cfg, db, zlog)
	if err != nil {
		zlog.Fatal("Failed to wire application", zap.Error(err))
	}
	scheduler, err := jobs.NewScheduler(cfg.Timezone, zlog)
	if err != nil {
		zlog.Fatal("Failed to build scheduler", zap.Error(err))
	}
	specs := map[string]string{
		jobs.TaskPurgeNotifications: cfg.SweepCleanupCron,
		jobs.TaskDeactivateJobs:     cfg.SweepCleanupCron,
		jobs.TaskDeadlineReminders:  cfg.SweepReminderCron,
		jobs.TaskReconcileBookmarks: cfg.SweepReconcileCron,
	}
	for name, task := range app.Sweeper.Tasks() {
		if err := scheduler.Register(name, specs[name], task); err != nil {
			zlog.Fatal("Failed to register task", zap.String("task", name), zap.Error(err))
		}
	}

	if *once != "" {
		if err := scheduler.RunNow(ctx, *once); err != nil {
			names := scheduler.Names()
			sort.Strings(names)
			zlog.Fatal("Task failed", zap.String("task", *once), zap.Strings("tasks", names), zap.Error(err))
		}
		return
	}

	scheduler.Start()
	zlog.Info("Sweeper running")
	<-ctx.Done()
	scheduler.Stop()
	zlog.Info("Sweeper stopped")
}
