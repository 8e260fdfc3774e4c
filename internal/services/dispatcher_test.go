package services

import (
	"context"
	"testing"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobPayload() Payload {
	return Payload{
		Title:     "New job <posted>",
		Message:   "Backend intern & more",
		ActionURL: "https://campus.test/jobs/1",
	}
}

func TestDispatchPersistsForOfflineRecipient(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	env.dispatcher.now = func() time.Time { return now }

	n, err := env.dispatcher.Dispatch(ctx, "offline", models.NotificationCommunity, Payload{Title: "Hello"})
	require.NoError(t, err)
	assert.NotZero(t, n.ID)
	assert.Equal(t, now.Add(NotificationTTL), n.ExpiresAt)

	unread, err := env.notifications.GetUnread(ctx, "offline", 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.False(t, unread[0].IsRead)
	assert.Equal(t, 1, env.push.count())
}

func TestDispatchEmailPolicy(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()
	user := env.createUser(t, "student@example.com", time.Now())

	_, err := env.dispatcher.Dispatch(ctx, user.ID, models.NotificationJob, jobPayload())
	require.NoError(t, err)
	sent := env.mail.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "student@example.com", sent[0].To)
	assert.Equal(t, "New job <posted>", sent[0].Subject)
	assert.Equal(t, `<p>Backend intern &amp; more</p><a href="https://campus.test/jobs/1">View Details</a>`, sent[0].HTML)

	// other types never email
	_, err = env.dispatcher.Dispatch(ctx, user.ID, models.NotificationCommunity, jobPayload())
	require.NoError(t, err)
	// nothing to link to
	_, err = env.dispatcher.Dispatch(ctx, user.ID, models.NotificationJob, Payload{Title: "No link"})
	require.NoError(t, err)
	assert.Len(t, env.mail.messages(), 1)
}

func TestDispatchEmailRespectsPreferences(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()

	noEmail := env.createUser(t, "quiet@example.com", time.Now())
	prefs := models.DefaultNotificationPreferences()
	prefs.Email = false
	require.NoError(t, env.users.UpdatePreferences(ctx, noEmail.ID, prefs))

	noJobs := env.createUser(t, "nojobs@example.com", time.Now())
	prefs = models.DefaultNotificationPreferences()
	prefs.Jobs = false
	require.NoError(t, env.users.UpdatePreferences(ctx, noJobs.ID, prefs))

	for _, id := range []string{noEmail.ID, noJobs.ID, "unknown-user"} {
		_, err := env.dispatcher.Dispatch(ctx, id, models.NotificationJob, jobPayload())
		require.NoError(t, err)
	}
	assert.Empty(t, env.mail.messages())

	// still persisted for every recipient
	count, err := env.notifications.GetUnreadCount(ctx, noJobs.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDispatchSwallowsChannelFailures(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()
	user := env.createUser(t, "flaky@example.com", time.Now())

	env.push.err = errChannelDown
	env.mail.err = errChannelDown
	n, err := env.dispatcher.Dispatch(ctx, user.ID, models.NotificationJob, jobPayload())
	require.NoError(t, err)
	assert.NotZero(t, n.ID)

	env.push.err = nil
	env.push.panicking = true
	_, err = env.dispatcher.Dispatch(ctx, user.ID, models.NotificationJob, jobPayload())
	require.NoError(t, err)

	count, err := env.notifications.GetUnreadCount(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestDispatchValidatesInput(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()

	_, err := env.dispatcher.Dispatch(ctx, "", models.NotificationJob, Payload{Title: "x"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.dispatcher.Dispatch(ctx, "u1", models.NotificationType("promo"), Payload{Title: "x"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.dispatcher.Dispatch(ctx, "u1", models.NotificationJob, Payload{})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, env.push.count())
}

func TestDispatchQueuedEmailsDrainOnStop(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()
	user := env.createUser(t, "queued@example.com", time.Now())

	env.dispatcher.Start(ctx, 2, 8)
	for i := 0; i < 3; i++ {
		_, err := env.dispatcher.Dispatch(ctx, user.ID, models.NotificationJob, jobPayload())
		require.NoError(t, err)
	}
	env.dispatcher.Stop()

	assert.Len(t, env.mail.messages(), 3)
}

func TestQueuedEmailsSentAfterShutdownSignal(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()
	user := env.createUser(t, "shutdown@example.com", time.Now())

	serverCtx, stop := context.WithCancel(ctx)
	stop()
	env.dispatcher.Start(serverCtx, 1, 8)
	for i := 0; i < 2; i++ {
		_, err := env.dispatcher.Dispatch(ctx, user.ID, models.NotificationJob, jobPayload())
		require.NoError(t, err)
	}
	env.dispatcher.Stop()

	assert.Len(t, env.mail.messages(), 2)
}
