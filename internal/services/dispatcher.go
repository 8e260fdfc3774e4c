package services

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/mailer"
	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/internal/repositories"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

const NotificationTTL = 30 * 24 * time.Hour

// PushChannel delivers a persisted notification to a connected recipient.
// delivered is false when the recipient has no live connection.
type PushChannel interface {
	Push(ctx context.Context, recipientID string, n *models.Notification) (bool, error)
}

// Mailer sends one email
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// EmailPolicy decides which notification types may fan out to email
type EmailPolicy func(models.NotificationType) bool

// JobEmailsOnly is the platform email policy.
func JobEmailsOnly(t models.NotificationType) bool {
	return t == models.NotificationJob
}

// Payload is the content of a notification
type Payload struct {
	Title        string
	Message      string
	RelatedID    string
	RelatedModel string
	Icon         string
	ActionURL    string
}

// Dispatcher persists a notification and fans it out to push and email.
// Only the persist step can fail a dispatch.
type Dispatcher struct {
	notifications repositories.NotificationRepository
	users         repositories.UserRepository
	push          PushChannel
	mail          Mailer
	emailAllowed  EmailPolicy
	logger        *zap.Logger
	now           func() time.Time

	mu     sync.RWMutex
	queue  chan mailer.Message
	active conc.WaitGroup
}

func NewDispatcher(notifications repositories.NotificationRepository, users repositories.UserRepository, push PushChannel, mail Mailer, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		users:         users,
		push:          push,
		mail:          mail,
		emailAllowed:  JobEmailsOnly,
		logger:        logger.Named("dispatcher"),
		now:           time.Now,
	}
}

// Start runs workers that send queued emails. Without it emails are sent inline.
// Workers ignore cancellation of ctx so that Stop can still drain the queue
// after a shutdown signal.
func (d *Dispatcher) Start(ctx context.Context, workers, queueSize int) {
	if workers <= 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if queueSize <= 0 {
		queueSize = 100
	}
	queue := make(chan mailer.Message, queueSize)

	d.mu.Lock()
	d.queue = queue
	d.mu.Unlock()

	for i := 0; i < workers; i++ {
		d.active.Go(func() {
			for msg := range queue {
				d.sendEmail(ctx, msg)
			}
		})
	}
	d.logger.Info("Email workers started", zap.Int("workers", workers), zap.Int("queue", queueSize))
}

// Stop drains the email queue and waits for the workers.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	queue := d.queue
	d.queue = nil
	d.mu.Unlock()

	if queue != nil {
		close(queue)
	}
	d.active.Wait()
}

// Dispatch persists a notification for recipientID, then pushes it and, when
// policy and preferences allow, emails it. Push and email failures are logged only.
func (d *Dispatcher) Dispatch(ctx context.Context, recipientID string, typ models.NotificationType, p Payload) (*models.Notification, error) {
	if recipientID == "" {
		return nil, fmt.Errorf("%w: missing recipient", ErrValidation)
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown notification type %q", ErrValidation, typ)
	}
	if p.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	now := d.now()
	n := &models.Notification{
		RecipientID:  recipientID,
		Type:         typ,
		Title:        p.Title,
		Message:      p.Message,
		RelatedID:    p.RelatedID,
		RelatedModel: p.RelatedModel,
		Icon:         p.Icon,
		ActionURL:    p.ActionURL,
		CreatedAt:    now,
		ExpiresAt:    now.Add(NotificationTTL),
	}
	if err := d.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	d.pushNotification(ctx, n)
	d.emailNotification(ctx, n)
	return n, nil
}

func (d *Dispatcher) pushNotification(ctx context.Context, n *models.Notification) {
	if d.push == nil {
		return
	}
	var pc panics.Catcher
	pc.Try(func() {
		delivered, err := d.push.Push(ctx, n.RecipientID, n)
		if err != nil {
			d.logger.Warn("Real-time push failed", zap.String("recipient", n.RecipientID), zap.Uint("notification", n.ID), zap.Error(err))
			return
		}
		if !delivered {
			d.logger.Debug("Recipient offline", zap.String("recipient", n.RecipientID))
		}
	})
	if r := pc.Recovered(); r != nil {
		d.logger.Error("Push channel panicked", zap.String("recipient", n.RecipientID), zap.Error(r.AsError()))
	}
}

func (d *Dispatcher) emailNotification(ctx context.Context, n *models.Notification) {
	if d.mail == nil || n.ActionURL == "" || !d.emailAllowed(n.Type) {
		return
	}

	user, err := d.users.GetUserByID(ctx, n.RecipientID)
	if err != nil {
		d.logger.Warn("Skipping email, recipient lookup failed", zap.String("recipient", n.RecipientID), zap.Error(err))
		return
	}
	prefs := user.NotificationPreferences
	if !prefs.Email || !prefs.Allows(n.Type) || user.Email == "" {
		return
	}

	msg := mailer.Message{
		To:      user.Email,
		Subject: n.Title,
		HTML:    renderEmail(n),
	}

	d.mu.RLock()
	queued := d.queue != nil
	if queued {
		select {
		case d.queue <- msg:
		default:
			d.logger.Warn("Email queue full, dropping message", zap.String("to", msg.To), zap.String("subject", msg.Subject))
		}
	}
	d.mu.RUnlock()

	if !queued {
		d.sendEmail(context.WithoutCancel(ctx), msg)
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, msg mailer.Message) {
	var pc panics.Catcher
	pc.Try(func() {
		if err := d.mail.Send(ctx, msg); err != nil {
			d.logger.Warn("Notification email failed", zap.String("to", msg.To), zap.Error(err))
		}
	})
	if r := pc.Recovered(); r != nil {
		d.logger.Error("Mailer panicked", zap.String("to", msg.To), zap.Error(r.AsError()))
	}
}

func renderEmail(n *models.Notification) string {
	return fmt.Sprintf(`<p>%s</p><a href="%s">View Details</a>`,
		html.EscapeString(n.Message), html.EscapeString(n.ActionURL))
}

// BadgeEarned sends the system notification for a newly awarded badge.
func (d *Dispatcher) BadgeEarned(ctx context.Context, actorID string, badge models.Badge) error {
	_, err := d.Dispatch(ctx, actorID, models.NotificationSystem, Payload{
		Title:   "New Badge Earned!",
		Message: fmt.Sprintf("Congratulations! You've earned the %s badge.", badge.Name),
		Icon:    "trophy",
	})
	return err
}
