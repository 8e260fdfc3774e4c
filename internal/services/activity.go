package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/internal/repositories"
	"go.uber.org/zap"
)

// Notifier is the dispatch side used by content activity
type Notifier interface {
	Dispatch(ctx context.Context, recipientID string, typ models.NotificationType, p Payload) (*models.Notification, error)
}

// Activity applies the scoring and notification side-effects of content actions
// whose CRUD lives elsewhere.
type Activity struct {
	scoring      *ScoringEngine
	notifier     Notifier
	targets      repositories.TargetRepository
	applications repositories.ApplicationRepository
	clientURL    string
	logger       *zap.Logger
}

func NewActivity(scoring *ScoringEngine, notifier Notifier, targets repositories.TargetRepository, applications repositories.ApplicationRepository, clientURL string, logger *zap.Logger) *Activity {
	return &Activity{
		scoring:      scoring,
		notifier:     notifier,
		targets:      targets,
		applications: applications,
		clientURL:    clientURL,
		logger:       logger.Named("activity"),
	}
}

func (a *Activity) target(ctx context.Context, ref models.TargetRef) (*models.InteractionTarget, error) {
	if err := validRef(ref); err != nil {
		return nil, err
	}
	t, err := a.targets.GetTarget(ctx, ref)
	if err != nil {
		return nil, translate(err)
	}
	return t, nil
}

func (a *Activity) notify(ctx context.Context, recipientID string, typ models.NotificationType, p Payload) {
	if _, err := a.notifier.Dispatch(ctx, recipientID, typ, p); err != nil {
		a.logger.Warn("Activity notification not persisted", zap.String("recipient", recipientID), zap.Error(err))
	}
}

func (a *Activity) contribution(ctx context.Context, actorID string, reason Reason) (int64, error) {
	if _, err := a.scoring.IncrementStat(ctx, actorID, models.StatContributionsMade, 1); err != nil {
		return 0, err
	}
	return a.scoring.Award(ctx, actorID, reason)
}

// PostCreated scores a new forum post.
func (a *Activity) PostCreated(ctx context.Context, actorID string) (int64, error) {
	return a.contribution(ctx, actorID, ReasonPost)
}

// ResourceUploaded scores a new resource upload.
func (a *Activity) ResourceUploaded(ctx context.Context, actorID string) (int64, error) {
	return a.contribution(ctx, actorID, ReasonUpload)
}

// ResourceDownloaded counts a download towards the actor's reading stats.
func (a *Activity) ResourceDownloaded(ctx context.Context, actorID string, ref models.TargetRef) (*models.ActorStats, error) {
	if _, err := a.target(ctx, ref); err != nil {
		return nil, err
	}
	return a.scoring.IncrementStat(ctx, actorID, models.StatResourcesDownloaded, 1)
}

// ResourceRated rewards the uploader whenever the resource's average rating is 4 or above.
func (a *Activity) ResourceRated(ctx context.Context, ref models.TargetRef, averageRating float64) (bool, error) {
	resource, err := a.target(ctx, ref)
	if err != nil {
		return false, err
	}
	if averageRating < 4 || resource.AuthorID == "" {
		return false, nil
	}
	if _, err := a.scoring.Award(ctx, resource.AuthorID, ReasonHighRating); err != nil {
		return false, err
	}
	return true, nil
}

// AnswerPosted scores an answer and tells the post author about it.
func (a *Activity) AnswerPosted(ctx context.Context, actorID string, postRef models.TargetRef) (int64, error) {
	post, err := a.target(ctx, postRef)
	if err != nil {
		return 0, err
	}
	points, err := a.scoring.Award(ctx, actorID, ReasonAnswer)
	if err != nil {
		return 0, err
	}
	if post.AuthorID != "" && post.AuthorID != actorID {
		a.notify(ctx, post.AuthorID, models.NotificationCommunity, Payload{
			Title:        "New answer on your post",
			Message:      "Someone answered your post: " + post.Title,
			RelatedID:    postRef.ID,
			RelatedModel: "ForumPost",
			ActionURL:    a.clientURL + "/forum/" + postRef.ID,
			Icon:         "comment",
		})
	}
	return points, nil
}

// AnswerAccepted rewards the answer author. Only the post author may accept.
func (a *Activity) AnswerAccepted(ctx context.Context, actorID string, postRef, answerRef models.TargetRef) error {
	post, err := a.target(ctx, postRef)
	if err != nil {
		return err
	}
	if post.AuthorID != actorID {
		return ErrForbidden
	}
	answer, err := a.target(ctx, answerRef)
	if err != nil {
		return err
	}
	if answer.AuthorID == "" {
		return fmt.Errorf("%w: answer has no author", ErrValidation)
	}

	if _, err := a.scoring.Award(ctx, answer.AuthorID, ReasonAcceptedAnswer); err != nil {
		return err
	}
	if _, err := a.scoring.IncrementStat(ctx, answer.AuthorID, models.StatHelpfulAnswers, 1); err != nil {
		return err
	}
	a.notify(ctx, answer.AuthorID, models.NotificationCommunity, Payload{
		Title:        "Your answer was accepted!",
		Message:      "Your answer was marked as the accepted solution.",
		RelatedID:    postRef.ID,
		RelatedModel: "ForumPost",
		ActionURL:    a.clientURL + "/forum/" + postRef.ID,
		Icon:         "check",
	})
	return nil
}

// JobApplied records a single application per actor and job.
func (a *Activity) JobApplied(ctx context.Context, actorID string, jobID string, reminderDate *time.Time) (*models.Application, error) {
	ref := models.TargetRef{Kind: models.KindJob, ID: jobID}
	job, err := a.target(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !job.Active() {
		return nil, fmt.Errorf("%w: job is no longer accepting applications", ErrValidation)
	}

	app := &models.Application{
		UserID:       actorID,
		JobID:        jobID,
		JobTitle:     job.Title,
		Deadline:     job.ApplicationDeadline,
		ReminderSet:  reminderDate != nil,
		ReminderDate: reminderDate,
	}
	if err := a.applications.Create(ctx, app); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: already applied", ErrConflict)
		}
		return nil, err
	}

	a.notify(ctx, actorID, models.NotificationJob, Payload{
		Title:        "Application recorded",
		Message:      "You applied for " + job.Title,
		RelatedID:    jobID,
		RelatedModel: "Job",
		ActionURL:    a.clientURL + "/jobs/" + jobID,
	})
	return app, nil
}

// SendDeadlineReminders notifies applicants whose reminder falls within the
// next week. Each reminder is claimed by clearing its flag first, so a
// reminder is sent at most once even when runs overlap.
func (a *Activity) SendDeadlineReminders(ctx context.Context, now time.Time) (int, error) {
	due, err := a.applications.DueReminders(ctx, now, now.Add(7*24*time.Hour))
	if err != nil {
		return 0, fmt.Errorf("load due reminders: %w", err)
	}

	sent := 0
	for _, app := range due {
		claimed, err := a.applications.ClearReminder(ctx, app.ID)
		if err != nil {
			return sent, fmt.Errorf("clear reminder %s: %w", app.ID, err)
		}
		if !claimed {
			continue
		}
		a.notify(ctx, app.UserID, models.NotificationReminder, Payload{
			Title:        "Application Deadline Reminder",
			Message:      reminderMessage(app, now),
			RelatedID:    app.JobID,
			RelatedModel: "Job",
			ActionURL:    a.clientURL + "/jobs/" + app.JobID,
			Icon:         "clock",
		})
		sent++
	}
	return sent, nil
}

func reminderMessage(app models.Application, now time.Time) string {
	title := app.JobTitle
	if title == "" {
		title = "Job"
	}
	if app.Deadline == nil {
		return "Reminder to follow up on your application for " + title
	}
	daysLeft := int(math.Ceil(app.Deadline.Sub(now).Hours() / 24))
	return fmt.Sprintf("Only %d days left to apply for %s", daysLeft, title)
}
