package repositories_test

import (
	"testing"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTarget(t *testing.T, repo *repositories.MemoryTargetRepository, kind models.TargetKind, author string) models.TargetRef {
	t.Helper()
	target := &models.InteractionTarget{AuthorID: author, Title: "t"}
	require.NoError(t, repo.CreateTarget(t.Context(), kind, target))
	return models.TargetRef{Kind: kind, ID: target.ID.Hex()}
}

func TestMemoryTargetVoteSteps(t *testing.T) {
	t.Parallel()
	repo := repositories.NewMemoryTargetRepository()
	ctx := t.Context()
	ref := newTarget(t, repo, models.KindPost, "author")

	// nothing to remove or switch yet
	_, matched, err := repo.RemoveVote(ctx, ref, "u1", models.VoteUp)
	require.NoError(t, err)
	assert.False(t, matched)
	_, matched, err = repo.SwitchVote(ctx, ref, "u1", models.VoteUp)
	require.NoError(t, err)
	assert.False(t, matched)

	target, matched, err := repo.AddVote(ctx, ref, "u1", models.VoteUp)
	require.NoError(t, err)
	require.True(t, matched)
	assert.Equal(t, 1, target.Upvotes)
	assert.Equal(t, []string{"u1"}, target.Upvoters)

	// a second add by the same actor does not match
	_, matched, err = repo.AddVote(ctx, ref, "u1", models.VoteDown)
	require.NoError(t, err)
	assert.False(t, matched)

	target, matched, err = repo.SwitchVote(ctx, ref, "u1", models.VoteDown)
	require.NoError(t, err)
	require.True(t, matched)
	assert.Equal(t, 0, target.Upvotes)
	assert.Equal(t, 1, target.Downvotes)
	assert.Empty(t, target.Upvoters)
	assert.Equal(t, []string{"u1"}, target.Downvoters)

	target, matched, err = repo.RemoveVote(ctx, ref, "u1", models.VoteDown)
	require.NoError(t, err)
	require.True(t, matched)
	assert.Equal(t, 0, target.Downvotes)
	assert.Empty(t, target.Downvoters)
}

func TestMemoryTargetMissingAndInvalid(t *testing.T) {
	t.Parallel()
	repo := repositories.NewMemoryTargetRepository()
	ctx := t.Context()

	missing := models.TargetRef{Kind: models.KindPost, ID: primitive.NewObjectID().Hex()}
	exists, err := repo.Exists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, exists)

	_, matched, err := repo.AddVote(ctx, missing, "u1", models.VoteUp)
	require.NoError(t, err)
	assert.False(t, matched)

	_, err = repo.GetTarget(ctx, missing)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = repo.GetTarget(ctx, models.TargetRef{Kind: models.KindPost, ID: "not-an-id"})
	assert.ErrorIs(t, err, repositories.ErrInvalidID)
}

func TestMemoryTargetReturnsCopies(t *testing.T) {
	t.Parallel()
	repo := repositories.NewMemoryTargetRepository()
	ctx := t.Context()
	ref := newTarget(t, repo, models.KindResource, "author")

	target, _, err := repo.AddVote(ctx, ref, "u1", models.VoteUp)
	require.NoError(t, err)
	target.Upvoters[0] = "tampered"

	fresh, err := repo.GetTarget(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, fresh.Upvoters)
}

func TestMemoryTargetBookmarkersAndVisibility(t *testing.T) {
	t.Parallel()
	repo := repositories.NewMemoryTargetRepository()
	ctx := t.Context()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	expired := &models.InteractionTarget{AuthorID: "a", ApplicationDeadline: &past}
	open := &models.InteractionTarget{AuthorID: "a", ApplicationDeadline: &future}
	require.NoError(t, repo.CreateTarget(ctx, models.KindJob, expired))
	require.NoError(t, repo.CreateTarget(ctx, models.KindJob, open))
	expiredRef := models.TargetRef{Kind: models.KindJob, ID: expired.ID.Hex()}

	require.NoError(t, repo.AddBookmarker(ctx, expiredRef, "u1"))
	require.NoError(t, repo.AddBookmarker(ctx, expiredRef, "u1"))
	sets, err := repo.BookmarkerSets(ctx, models.KindJob)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{expired.ID.Hex(): {"u1"}}, sets)

	require.NoError(t, repo.SetBookmarkers(ctx, expiredRef, []string{"u2", "u3"}))
	require.NoError(t, repo.RemoveBookmarker(ctx, expiredRef, "u2"))
	got, err := repo.GetTarget(ctx, expiredRef)
	require.NoError(t, err)
	assert.Equal(t, []string{"u3"}, got.Bookmarkers)

	n, err := repo.DeactivateExpired(ctx, models.KindJob, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeactivateExpired(ctx, models.KindJob, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	ids := []string{open.ID.Hex(), "missing", expired.ID.Hex()}
	visible, err := repo.FilterActive(ctx, models.KindJob, ids)
	require.NoError(t, err)
	assert.Equal(t, []string{open.ID.Hex()}, visible)
}
