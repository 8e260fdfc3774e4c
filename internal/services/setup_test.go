package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/mailer"
	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/internal/repositories"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errChannelDown = errors.New("channel down")

type recordingPush struct {
	mu        sync.Mutex
	pushed    []*models.Notification
	online    map[string]bool
	err       error
	panicking bool
}

func (p *recordingPush) Push(_ context.Context, recipientID string, n *models.Notification) (bool, error) {
	if p.panicking {
		panic("push exploded")
	}
	if p.err != nil {
		return false, p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, n)
	return p.online[recipientID], nil
}

func (p *recordingPush) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pushed)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}

type testEnv struct {
	db            *gorm.DB
	targets       *repositories.MemoryTargetRepository
	users         *repositories.PostgresUserRepository
	stats         *repositories.PostgresStatsRepository
	saved         *repositories.PostgresSavedItemRepository
	notifications repositories.NotificationRepository
	applications  *repositories.PostgresApplicationRepository

	push *recordingPush
	mail *recordingMailer

	bookmarks  *BookmarkIndex
	ledger     *InteractionLedger
	scoring    *ScoringEngine
	dispatcher *Dispatcher
	activity   *Activity
}

var testCutoff = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func setupTest(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.ActorStats{},
		&models.PointLog{},
		&models.Badge{},
		&models.Notification{},
		&models.SavedItem{},
		&models.Application{},
	))

	log := zap.NewNop()
	env := &testEnv{
		db:            db,
		targets:       repositories.NewMemoryTargetRepository(),
		users:         repositories.NewPostgresUserRepository(db),
		stats:         repositories.NewPostgresStatsRepository(db),
		saved:         repositories.NewPostgresSavedItemRepository(db),
		notifications: repositories.NewPostgresNotificationRepository(db),
		applications:  repositories.NewPostgresApplicationRepository(db),
		push:          &recordingPush{online: map[string]bool{}},
		mail:          &recordingMailer{},
	}
	env.bookmarks = NewBookmarkIndex(env.saved, log)
	env.ledger = NewInteractionLedger(env.targets, env.bookmarks, log)
	env.scoring = NewScoringEngine(env.stats, env.users, DefaultBadgeRules(testCutoff), log)
	env.dispatcher = NewDispatcher(env.notifications, env.users, env.push, env.mail, log)
	env.scoring.SetBadgeListener(env.dispatcher)
	env.ledger.Subscribe(env.scoring)
	env.activity = NewActivity(env.scoring, env.dispatcher, env.targets, env.applications, "https://campus.test", log)
	return env
}

func (e *testEnv) createUser(t *testing.T, email string, createdAt time.Time) *models.User {
	t.Helper()
	user := &models.User{
		Name:                    email,
		Email:                   email,
		NotificationPreferences: models.DefaultNotificationPreferences(),
		CreatedAt:               createdAt,
	}
	require.NoError(t, e.users.CreateUser(t.Context(), user))
	return user
}

func (e *testEnv) createTarget(t *testing.T, kind models.TargetKind, authorID string) models.TargetRef {
	t.Helper()
	target := &models.InteractionTarget{AuthorID: authorID, Title: "Target"}
	require.NoError(t, e.targets.CreateTarget(t.Context(), kind, target))
	return models.TargetRef{Kind: kind, ID: target.ID.Hex()}
}

func (e *testEnv) points(t *testing.T, actorID string) int64 {
	t.Helper()
	stats, err := e.stats.GetStats(t.Context(), actorID)
	if errors.Is(err, repositories.ErrNotFound) {
		return 0
	}
	require.NoError(t, err)
	return stats.Points
}
