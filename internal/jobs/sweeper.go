package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/internal/repositories"
	"github.com/anonto42/campus-hub/backend/internal/services"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const (
	TaskPurgeNotifications = "purge-notifications"
	TaskDeadlineReminders  = "deadline-reminders"
	TaskDeactivateJobs     = "deactivate-jobs"
	TaskReconcileBookmarks = "reconcile-bookmarks"
)

// Sweeper holds the periodic maintenance operations. Each one is idempotent
// and keeps no state between runs.
type Sweeper struct {
	notifications repositories.NotificationRepository
	targets       repositories.TargetRepository
	activity      *services.Activity
	ledger        *services.InteractionLedger
	logger        *zap.Logger
	now           func() time.Time
}

func NewSweeper(notifications repositories.NotificationRepository, targets repositories.TargetRepository, activity *services.Activity, ledger *services.InteractionLedger, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		notifications: notifications,
		targets:       targets,
		activity:      activity,
		ledger:        ledger,
		logger:        logger.Named("sweeper"),
		now:           time.Now,
	}
}

// PurgeExpiredNotifications deletes notifications past their expiry.
func (s *Sweeper) PurgeExpiredNotifications(ctx context.Context) (int64, error) {
	n, err := s.notifications.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge expired notifications: %w", err)
	}
	s.logger.Info("Purged expired notifications", zap.Int64("deleted", n))
	return n, nil
}

// SendDeadlineReminders sends the reminders due within the next week.
func (s *Sweeper) SendDeadlineReminders(ctx context.Context) (int, error) {
	sent, err := s.activity.SendDeadlineReminders(ctx, s.now())
	if err != nil {
		return sent, err
	}
	s.logger.Info("Sent deadline reminders", zap.Int("sent", sent))
	return sent, nil
}

// DeactivateExpiredJobs hides job listings whose application deadline has passed.
func (s *Sweeper) DeactivateExpiredJobs(ctx context.Context) (int64, error) {
	n, err := s.targets.DeactivateExpired(ctx, models.KindJob, s.now())
	if err != nil {
		return 0, fmt.Errorf("deactivate expired jobs: %w", err)
	}
	s.logger.Info("Marked jobs as inactive", zap.Int64("jobs", n))
	return n, nil
}

// ReconcileBookmarks rewrites stale bookmarker sets of every kind from the saved item index.
func (s *Sweeper) ReconcileBookmarks(ctx context.Context) (int, error) {
	p := pool.NewWithResults[int]().WithContext(ctx).WithMaxGoroutines(4)
	for _, kind := range models.TargetKinds() {
		p.Go(func(ctx context.Context) (int, error) {
			fixed, err := s.ledger.ReconcileKind(ctx, kind)
			if err != nil {
				s.logger.Error("Bookmark reconcile failed", zap.String("kind", string(kind)), zap.Error(err))
			}
			return fixed, err
		})
	}
	results, err := p.Wait()

	total := 0
	for _, fixed := range results {
		total += fixed
	}
	s.logger.Info("Reconciled bookmarker sets", zap.Int("fixed", total))
	return total, err
}

// Tasks maps task names to their run functions.
func (s *Sweeper) Tasks() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		TaskPurgeNotifications: func(ctx context.Context) error {
			_, err := s.PurgeExpiredNotifications(ctx)
			return err
		},
		TaskDeadlineReminders: func(ctx context.Context) error {
			_, err := s.SendDeadlineReminders(ctx)
			return err
		},
		TaskDeactivateJobs: func(ctx context.Context) error {
			_, err := s.DeactivateExpiredJobs(ctx)
			return err
		},
		TaskReconcileBookmarks: func(ctx context.Context) error {
			_, err := s.ReconcileBookmarks(ctx)
			return err
		},
	}
}
