package services

import (
	"sync"
	"testing"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func badgeNames(badges []models.Badge) []string {
	names := make([]string, len(badges))
	for i, b := range badges {
		names[i] = b.Name
	}
	return names
}

func TestTopContributorAtFifty(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()
	user := env.createUser(t, "writer@example.com", time.Now())

	_, err := env.scoring.IncrementStat(ctx, user.ID, models.StatContributionsMade, 49)
	require.NoError(t, err)
	_, badges, err := env.scoring.Summary(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, badges)

	stats, err := env.scoring.IncrementStat(ctx, user.ID, models.StatContributionsMade, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), stats.ContributionsMade)

	_, badges, err = env.scoring.Summary(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"TOP_CONTRIBUTOR"}, badgeNames(badges))
	assert.Equal(t, "badge-top_contributor.png", badges[0].Icon)

	list, total, err := env.notifications.GetByRecipientID(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, models.NotificationSystem, list[0].Type)
	assert.Equal(t, "New Badge Earned!", list[0].Title)
	assert.Equal(t, "Congratulations! You've earned the TOP_CONTRIBUTOR badge.", list[0].Message)
}

func TestEarlyAdopterAwardedOnce(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()
	early := env.createUser(t, "early@example.com", testCutoff.Add(-24*time.Hour))
	late := env.createUser(t, "late@example.com", testCutoff.Add(24*time.Hour))

	awarded, err := env.scoring.EvaluateBadges(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"EARLY_ADOPTER"}, badgeNames(awarded))

	awarded, err = env.scoring.EvaluateBadges(ctx, early.ID)
	require.NoError(t, err)
	assert.Empty(t, awarded)

	awarded, err = env.scoring.EvaluateBadges(ctx, late.ID)
	require.NoError(t, err)
	assert.Empty(t, awarded)
}

func TestConcurrentScoringPastThresholdAwardsSingleBadge(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()
	user := env.createUser(t, "race@example.com", testCutoff.Add(time.Hour))

	_, err := env.scoring.IncrementStat(ctx, user.ID, models.StatContributionsMade, 49)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, err := env.scoring.IncrementStat(ctx, user.ID, models.StatContributionsMade, 1)
				assert.NoError(t, err)
				return
			}
			_, err := env.scoring.Award(ctx, user.ID, ReasonPost)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats, badges, err := env.scoring.Summary(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(54), stats.ContributionsMade)
	assert.Equal(t, int64(25), stats.Points)
	assert.Equal(t, []string{"TOP_CONTRIBUTOR"}, badgeNames(badges))

	count, err := env.notifications.GetUnreadCount(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestConcurrentEvaluationAwardsSingleBadge(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()
	user := env.createUser(t, "early-race@example.com", testCutoff.Add(-time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.scoring.EvaluateBadges(ctx, user.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, badges, err := env.scoring.Summary(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, badges, 1)
}

func TestAwardPointsWritesLedger(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()
	user := env.createUser(t, "ledger@example.com", time.Now())

	points, err := env.scoring.Award(ctx, user.ID, ReasonUpload)
	require.NoError(t, err)
	assert.Equal(t, int64(10), points)

	points, err = env.scoring.AwardPoints(ctx, user.ID, 7, Reason("moderation"))
	require.NoError(t, err)
	assert.Equal(t, int64(17), points)

	var logs []models.PointLog
	require.NoError(t, env.db.Where("user_id = ?", user.ID).Order("id").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, "upload", logs[0].Reason)
	assert.Equal(t, int64(7), logs[1].Points)
}

func TestAwardPointsUnknownActor(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()

	_, err := env.scoring.AwardPoints(ctx, "no-such-actor", 10, ReasonUpload)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = env.scoring.IncrementStat(ctx, "no-such-actor", models.StatResourcesDownloaded, 1)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = env.stats.GetStats(ctx, "no-such-actor")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	var logs int64
	require.NoError(t, env.db.Model(&models.PointLog{}).Where("user_id = ?", "no-such-actor").Count(&logs).Error)
	assert.Zero(t, logs)
}

func TestUpvoteForDeletedAuthorLeavesNoState(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()
	ref := env.createTarget(t, models.KindPost, "deleted-author")

	counts, err := env.ledger.ToggleVote(ctx, ref, "voter", models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Upvotes)

	_, err = env.stats.GetStats(ctx, "deleted-author")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestScoringRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	env := setupTest(t)
	ctx := t.Context()

	_, err := env.scoring.AwardPoints(ctx, "u1", 0, ReasonPost)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.scoring.AwardPoints(ctx, "u1", -5, ReasonPost)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.scoring.AwardPoints(ctx, "", 5, ReasonPost)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.scoring.Award(ctx, "u1", Reason("unknown"))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.scoring.IncrementStat(ctx, "u1", models.StatPoints, 1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.scoring.IncrementStat(ctx, "u1", models.StatHelpfulAnswers, 0)
	assert.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, env.points(t, "u1"))
}

func TestPointsForTable(t *testing.T) {
	t.Parallel()
	tests := map[Reason]int64{
		ReasonPost:           5,
		ReasonUpload:         10,
		ReasonAnswer:         5,
		ReasonUpvoteReceived: 2,
		ReasonAcceptedAnswer: 15,
		ReasonHighRating:     5,
		Reason("other"):      0,
	}
	for reason, want := range tests {
		assert.Equal(t, want, PointsFor(reason), string(reason))
	}
}
