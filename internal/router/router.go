package router

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anonto42/campus-hub/backend/internal/handlers"
	"github.com/anonto42/campus-hub/backend/internal/jobs"
	"github.com/anonto42/campus-hub/backend/internal/mailer"
	"github.com/anonto42/campus-hub/backend/internal/middleware"
	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/internal/realtime"
	"github.com/anonto42/campus-hub/backend/internal/repositories"
	"github.com/anonto42/campus-hub/backend/internal/services"
	"github.com/anonto42/campus-hub/backend/pkg/config"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App is the wired engine shared by the API server and the sweeper.
type App struct {
	Users         repositories.UserRepository
	Notifications repositories.NotificationRepository
	Targets       repositories.TargetRepository

	Bookmarks  *services.BookmarkIndex
	Ledger     *services.InteractionLedger
	Scoring    *services.ScoringEngine
	Dispatcher *services.Dispatcher
	Activity   *services.Activity
	Sweeper    *jobs.Sweeper

	Hub   *realtime.Hub
	Relay *realtime.RedisRelay
}

// Migrate creates or updates the relational tables.
func Migrate(pgdb *gorm.DB) error {
	return pgdb.AutoMigrate(
		&models.User{},
		&models.ActorStats{},
		&models.PointLog{},
		&models.Badge{},
		&models.Notification{},
		&models.SavedItem{},
		&models.Application{},
	)
}

// Build migrates the stores and wires repositories and services.
func Build(ctx context.Context, cfg *config.Config, db *config.DB, logger *zap.Logger) (*App, error) {
	if err := Migrate(db.Postgres); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("PostgreSQL auto-migrations completed")

	cutoff, err := cfg.Cutoff()
	if err != nil {
		return nil, err
	}

	// --- Initialize Repositories ---
	var targets repositories.TargetRepository
	if db.Mongo != nil {
		targets = repositories.NewMongoTargetRepository(db.Mongo.Database(cfg.MongoDatabase))
	} else {
		logger.Warn("MONGO_URI not set, content targets are kept in memory")
		targets = repositories.NewMemoryTargetRepository()
	}
	if err := targets.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ensure target indexes: %w", err)
	}

	userRepo := repositories.NewPostgresUserRepository(db.Postgres)
	notificationRepo := repositories.NewPostgresNotificationRepository(db.Postgres)
	statsRepo := repositories.NewPostgresStatsRepository(db.Postgres)
	savedRepo := repositories.NewPostgresSavedItemRepository(db.Postgres)
	applicationRepo := repositories.NewPostgresApplicationRepository(db.Postgres)

	// --- Delivery channels ---
	hub := realtime.NewHub(logger)
	app := &App{
		Users:         userRepo,
		Notifications: notificationRepo,
		Targets:       targets,
		Hub:           hub,
	}
	var push services.PushChannel = hub
	if db.Redis != nil {
		app.Relay = realtime.NewRedisRelay(db.Redis, hub, logger)
		push = app.Relay
	}

	var mail services.Mailer
	if cfg.SMTPHost != "" {
		smtp, err := mailer.NewSMTPMailer(mailer.Config{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUsername,
			Password:  cfg.SMTPPassword,
			From:      cfg.SMTPFrom,
			PerMinute: cfg.EmailPerMinute,
		}, logger)
		if err != nil {
			return nil, err
		}
		mail = smtp
	} else {
		logger.Warn("SMTP_HOST not set, emails are only logged")
		mail = mailer.NewLogMailer(logger)
	}

	// --- Services ---
	app.Bookmarks = services.NewBookmarkIndex(savedRepo, logger)
	app.Ledger = services.NewInteractionLedger(targets, app.Bookmarks, logger)
	app.Scoring = services.NewScoringEngine(statsRepo, userRepo, services.DefaultBadgeRules(cutoff), logger)
	app.Dispatcher = services.NewDispatcher(notificationRepo, userRepo, push, mail, logger)
	app.Scoring.SetBadgeListener(app.Dispatcher)
	app.Ledger.Subscribe(app.Scoring)
	app.Activity = services.NewActivity(app.Scoring, app.Dispatcher, targets, applicationRepo, cfg.ClientURL, logger)
	app.Sweeper = jobs.NewSweeper(notificationRepo, targets, app.Activity, app.Ledger, logger)

	return app, nil
}

// SetupRoutes configures all application routes
func SetupRoutes(e *echo.Echo, app *App, cfg *config.Config, checks map[string]handlers.Pinger, authenticators []middleware.Authenticator, logger *zap.Logger) {
	// Health check - always accessible
	e.GET("/health", handlers.NewHealthHandler(checks).HealthCheck)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Campus Hub engagement engine"})
	})

	allowedOrigin := "*"
	if cfg.IsProduction() {
		allowedOrigin = cfg.ClientURL
	}
	e.GET("/ws", realtime.NewServer(app.Hub, allowedOrigin, logger).Handle)

	// --- Protected routes ---
	api := e.Group("/api/v1")
	api.Use(middleware.Authenticate(authenticators...))

	engagementHandler := handlers.NewEngagementHandler(app.Ledger, app.Bookmarks, app.Targets)
	engagementHandler.RegisterEngagementRoutes(api)

	notificationHandler := handlers.NewNotificationHandler(app.Notifications, app.Dispatcher)
	notificationHandler.RegisterNotificationRoutes(api)

	userHandler := handlers.NewUserHandler(app.Users, app.Scoring)
	userHandler.RegisterProfileRoutes(api)

	activityHandler := handlers.NewActivityHandler(app.Activity)
	activityHandler.RegisterActivityRoutes(api)

	admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	notificationHandler.RegisterAdminRoutes(admin)
	userHandler.RegisterAdminRoutes(admin)

	logger.Info("All routes configured")
}
