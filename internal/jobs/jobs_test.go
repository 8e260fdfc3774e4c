package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/mailer"
	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/internal/repositories"
	"github.com/anonto42/campus-hub/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type sweeperEnv struct {
	sweeper       *Sweeper
	targets       *repositories.MemoryTargetRepository
	notifications repositories.NotificationRepository
	bookmarks     *services.BookmarkIndex
	applications  *repositories.PostgresApplicationRepository
}

func setupTest(t *testing.T) *sweeperEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.ActorStats{}, &models.PointLog{}, &models.Badge{},
		&models.Notification{}, &models.SavedItem{}, &models.Application{},
	))

	log := zap.NewNop()
	targets := repositories.NewMemoryTargetRepository()
	users := repositories.NewPostgresUserRepository(db)
	notifications := repositories.NewPostgresNotificationRepository(db)
	applications := repositories.NewPostgresApplicationRepository(db)
	bookmarks := services.NewBookmarkIndex(repositories.NewPostgresSavedItemRepository(db), log)
	ledger := services.NewInteractionLedger(targets, bookmarks, log)
	scoring := services.NewScoringEngine(repositories.NewPostgresStatsRepository(db), users, nil, log)
	dispatcher := services.NewDispatcher(notifications, users, nil, mailer.NewLogMailer(log), log)
	activity := services.NewActivity(scoring, dispatcher, targets, applications, "https://campus.test", log)

	return &sweeperEnv{
		sweeper:       NewSweeper(notifications, targets, activity, ledger, log),
		targets:       targets,
		notifications: notifications,
		bookmarks:     bookmarks,
		applications:  applications,
	}
}

func TestPurgeExpiredNotifications(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()
	now := time.Now()

	require.NoError(t, env.notifications.Create(ctx, &models.Notification{RecipientID: "u1", Type: models.NotificationSystem, Title: "old", CreatedAt: now.Add(-31 * 24 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour)}))
	require.NoError(t, env.notifications.Create(ctx, &models.Notification{RecipientID: "u1", Type: models.NotificationSystem, Title: "new", CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}))

	deleted, err := env.sweeper.PurgeExpiredNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = env.sweeper.PurgeExpiredNotifications(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestDeactivateExpiredJobs(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()

	past := time.Now().Add(-time.Hour)
	require.NoError(t, env.targets.CreateTarget(ctx, models.KindJob, &models.InteractionTarget{ApplicationDeadline: &past}))
	require.NoError(t, env.targets.CreateTarget(ctx, models.KindJob, &models.InteractionTarget{}))

	n, err := env.sweeper.DeactivateExpiredJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSendDeadlineRemindersOnce(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()

	fixed := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	env.sweeper.now = func() time.Time { return fixed }
	remind := fixed.Add(2 * 24 * time.Hour)
	require.NoError(t, env.applications.Create(ctx, &models.Application{UserID: "u1", JobID: "j1", JobTitle: "Analyst", ReminderSet: true, ReminderDate: &remind}))

	sent, err := env.sweeper.SendDeadlineReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	sent, err = env.sweeper.SendDeadlineReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestReconcileBookmarksAcrossKinds(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()

	course := &models.InteractionTarget{}
	job := &models.InteractionTarget{}
	require.NoError(t, env.targets.CreateTarget(ctx, models.KindCourse, course))
	require.NoError(t, env.targets.CreateTarget(ctx, models.KindJob, job))
	courseRef := models.TargetRef{Kind: models.KindCourse, ID: course.ID.Hex()}
	jobRef := models.TargetRef{Kind: models.KindJob, ID: job.ID.Hex()}

	_, err := env.bookmarks.UpsertSaved(ctx, "u1", courseRef)
	require.NoError(t, err)
	require.NoError(t, env.targets.SetBookmarkers(ctx, jobRef, []string{"ghost"}))

	fixed, err := env.sweeper.ReconcileBookmarks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fixed)

	got, err := env.targets.GetTarget(ctx, courseRef)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, got.Bookmarkers)
}

func TestSweeperTaskNames(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	tasks := env.sweeper.Tasks()
	for _, name := range []string{TaskPurgeNotifications, TaskDeadlineReminders, TaskDeactivateJobs, TaskReconcileBookmarks} {
		assert.Contains(t, tasks, name)
	}
}

func TestSchedulerRegisterAndRunNow(t *testing.T) {
	t.Parallel()
	s, err := NewScheduler("UTC", zap.NewNop())
	require.NoError(t, err)

	var runs atomic.Int32
	task := func(context.Context) error {
		runs.Add(1)
		return nil
	}
	require.NoError(t, s.Register("count", "0 0 * * *", task))
	assert.Error(t, s.Register("count", "0 0 * * *", task))
	assert.Error(t, s.Register("broken", "not a spec", task))
	assert.Error(t, s.Register("nil", "0 0 * * *", nil))
	assert.Equal(t, []string{"count"}, s.Names())

	require.NoError(t, s.RunNow(t.Context(), "count"))
	assert.Equal(t, int32(1), runs.Load())
	assert.Error(t, s.RunNow(t.Context(), "missing"))

	boom := errors.New("boom")
	require.NoError(t, s.Register("failing", "0 0 * * *", func(context.Context) error { return boom }))
	assert.ErrorIs(t, s.RunNow(t.Context(), "failing"), boom)
}

func TestSchedulerFiresOnSchedule(t *testing.T) {
	t.Parallel()
	s, err := NewScheduler("", zap.NewNop())
	require.NoError(t, err)

	var runs atomic.Int32
	require.NoError(t, s.Register("tick", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestSchedulerRejectsUnknownTimezone(t *testing.T) {
	t.Parallel()
	_, err := NewScheduler("Mars/Olympus", zap.NewNop())
	assert.Error(t, err)
}
