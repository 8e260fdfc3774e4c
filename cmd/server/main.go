package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/handlers"
	"github.com/anonto42/campus-hub/backend/internal/middleware"
	"github.com/anonto42/campus-hub/backend/internal/router"
	"github.com/anonto42/campus-hub/backend/pkg/config"
	"github.com/anonto42/campus-hub/backend/pkg/firebase"
	"github.com/anonto42/campus-hub/backend/pkg/logger"
	"github.com/anonto42/campus-hub/backend/validators"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
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

	// Initialize database connections
	db, err := config.InitDB(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to initialize databases", zap.Error(err))
	}
	defer db.CloseDB()

	app, err := router.Build(ctx, cfg, db, zlog)
	if err != nil {
		zlog.Fatal("Failed to wire application", zap.Error(err))
	}

	authenticators := []middleware.Authenticator{middleware.JWTAuthenticator(cfg.JWTSecret)}
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, zlog)
	switch {
	case errors.Is(err, firebase.ErrNotConfigured):
		zlog.Info("Firebase not configured, accepting JWT only")
	case err != nil:
		zlog.Fatal("Failed to initialize Firebase", zap.Error(err))
	default:
		authenticators = append(authenticators, middleware.FirebaseAuthenticator(firebaseApp, app.Users))
	}

	app.Dispatcher.Start(ctx, cfg.DispatchWorkers, cfg.DispatchQueueSize)
	defer app.Dispatcher.Stop()

	if app.Relay != nil {
		go func() {
			if err := app.Relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error("Redis relay stopped", zap.Error(err))
			}
		}()
	}

	checks := map[string]handlers.Pinger{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.Postgres.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if db.Mongo != nil {
		checks["mongo"] = func(ctx context.Context) error { return db.Mongo.Ping(ctx, nil) }
	}
	if db.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return db.Redis.Ping(ctx).Err() }
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e, cfg, zlog)
	router.SetupRoutes(e, app, cfg, checks, authenticators, zlog)

	go func() {
		zlog.Info("Server starting", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server shutdown failed", zap.Error(err))
	}
}
