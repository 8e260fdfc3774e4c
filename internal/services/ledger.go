package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/internal/repositories"
	"github.com/cenkalti/backoff/v4"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// VoteChange describes what a vote toggle did to the actor's membership
type VoteChange string

const (
	VoteAdded    VoteChange = "added"
	VoteRemoved  VoteChange = "removed"
	VoteSwitched VoteChange = "switched"
)

type VoteCounts struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

// VoteEvent is emitted after a vote toggle has been applied
type VoteEvent struct {
	Target    models.TargetRef
	ActorID   string
	AuthorID  string
	Direction models.VoteDirection
	Change    VoteChange
	Counts    VoteCounts
}

// VoteObserver consumes vote events. Implementations handle their own failures.
type VoteObserver interface {
	VoteToggled(ctx context.Context, event VoteEvent)
}

// TargetState is one actor's view of a target
type TargetState struct {
	VoteCounts
	MyVote     models.VoteDirection `json:"my_vote,omitempty"`
	Bookmarked bool                 `json:"bookmarked"`
}

// errVoteRaced means no conditional update matched although the target exists;
// a concurrent toggle by the same actor changed its membership in between.
var errVoteRaced = errors.New("vote membership changed concurrently")

// InteractionLedger applies toggles to content targets. Counters and membership
// sets always move together in one conditional update.
type InteractionLedger struct {
	targets   repositories.TargetRepository
	bookmarks *BookmarkIndex
	observers []VoteObserver
	logger    *zap.Logger

	maxRetries uint64
}

func NewInteractionLedger(targets repositories.TargetRepository, bookmarks *BookmarkIndex, logger *zap.Logger) *InteractionLedger {
	return &InteractionLedger{
		targets:    targets,
		bookmarks:  bookmarks,
		logger:     logger.Named("ledger"),
		maxRetries: 5,
	}
}

// Subscribe registers an observer for vote events.
func (l *InteractionLedger) Subscribe(o VoteObserver) {
	l.observers = append(l.observers, o)
}

func countsOf(t *models.InteractionTarget) VoteCounts {
	return VoteCounts{Upvotes: t.Upvotes, Downvotes: t.Downvotes}
}

func validRef(ref models.TargetRef) error {
	if !ref.Kind.Valid() {
		return fmt.Errorf("%w: unknown target kind %q", ErrValidation, ref.Kind)
	}
	if ref.ID == "" {
		return fmt.Errorf("%w: missing target id", ErrValidation)
	}
	return nil
}

// ToggleVote removes the actor's vote when it already points in dir, moves it
// when it points the other way, and adds it otherwise.
func (l *InteractionLedger) ToggleVote(ctx context.Context, ref models.TargetRef, actorID string, dir models.VoteDirection) (VoteCounts, error) {
	if err := validRef(ref); err != nil {
		return VoteCounts{}, err
	}
	if !dir.Valid() {
		return VoteCounts{}, fmt.Errorf("%w: unknown vote direction %q", ErrValidation, dir)
	}

	type outcome struct {
		target *models.InteractionTarget
		change VoteChange
	}

	attempt := func() (outcome, error) {
		steps := []struct {
			change VoteChange
			apply  func(context.Context, models.TargetRef, string, models.VoteDirection) (*models.InteractionTarget, bool, error)
		}{
			{VoteRemoved, l.targets.RemoveVote},
			{VoteSwitched, l.targets.SwitchVote},
			{VoteAdded, l.targets.AddVote},
		}
		for _, step := range steps {
			target, matched, err := step.apply(ctx, ref, actorID, dir)
			if err != nil {
				return outcome{}, backoff.Permanent(translate(err))
			}
			if matched {
				return outcome{target: target, change: step.change}, nil
			}
		}

		exists, err := l.targets.Exists(ctx, ref)
		if err != nil {
			return outcome{}, backoff.Permanent(translate(err))
		}
		if !exists {
			return outcome{}, backoff.Permanent(ErrNotFound)
		}
		return outcome{}, errVoteRaced
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(5*time.Millisecond),
		backoff.WithMaxInterval(50*time.Millisecond),
	), l.maxRetries), ctx)

	res, err := backoff.RetryWithData(attempt, b)
	if err != nil {
		if errors.Is(err, errVoteRaced) {
			l.logger.Warn("Vote toggle kept racing", zap.Stringer("target", ref), zap.String("actor", actorID))
			return VoteCounts{}, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return VoteCounts{}, err
	}

	counts := countsOf(res.target)
	l.emit(ctx, VoteEvent{
		Target:    ref,
		ActorID:   actorID,
		AuthorID:  res.target.AuthorID,
		Direction: dir,
		Change:    res.change,
		Counts:    counts,
	})
	return counts, nil
}

func (l *InteractionLedger) emit(ctx context.Context, event VoteEvent) {
	for _, o := range l.observers {
		var pc panics.Catcher
		pc.Try(func() { o.VoteToggled(ctx, event) })
		if r := pc.Recovered(); r != nil {
			l.logger.Error("Vote observer panicked", zap.Stringer("target", event.Target), zap.Error(r.AsError()))
		}
	}
}

// ToggleBookmark flips the actor's bookmark. The saved item row decides the
// outcome; the target's bookmarker set is then brought in line with it.
func (l *InteractionLedger) ToggleBookmark(ctx context.Context, ref models.TargetRef, actorID string) (bool, error) {
	if err := validRef(ref); err != nil {
		return false, err
	}
	exists, err := l.targets.Exists(ctx, ref)
	if err != nil {
		return false, translate(err)
	}
	if !exists {
		return false, ErrNotFound
	}

	created, err := l.bookmarks.UpsertSaved(ctx, actorID, ref)
	if err != nil {
		return false, err
	}
	bookmarked := created
	if !created {
		if _, err := l.bookmarks.RemoveSaved(ctx, actorID, ref); err != nil {
			return false, err
		}
	}

	l.syncBookmarker(ctx, ref, actorID)
	return bookmarked, nil
}

// syncBookmarker copies the actor's current index membership onto the target.
// Reading the row again keeps the cache right when toggles interleave.
func (l *InteractionLedger) syncBookmarker(ctx context.Context, ref models.TargetRef, actorID string) {
	saved, err := l.bookmarks.IsSaved(ctx, actorID, ref)
	if err == nil {
		if saved {
			err = l.targets.AddBookmarker(ctx, ref, actorID)
		} else {
			err = l.targets.RemoveBookmarker(ctx, ref, actorID)
		}
	}
	if err == nil {
		return
	}
	l.logger.Warn("Bookmarker update failed, rewriting set from index",
		zap.Stringer("target", ref), zap.String("actor", actorID), zap.Error(err))
	if err := l.ReconcileBookmarks(ctx, ref); err != nil {
		l.logger.Warn("Bookmarker set left stale until reconcile",
			zap.Stringer("target", ref), zap.String("actor", actorID), zap.Error(err))
	}
}

// State reports the counts and the actor's own vote and bookmark on a target.
func (l *InteractionLedger) State(ctx context.Context, ref models.TargetRef, actorID string) (TargetState, error) {
	if err := validRef(ref); err != nil {
		return TargetState{}, err
	}
	target, err := l.targets.GetTarget(ctx, ref)
	if err != nil {
		return TargetState{}, translate(err)
	}
	saved, err := l.bookmarks.IsSaved(ctx, actorID, ref)
	if err != nil {
		return TargetState{}, err
	}

	state := TargetState{VoteCounts: countsOf(target), Bookmarked: saved}
	switch {
	case slices.Contains(target.Upvoters, actorID):
		state.MyVote = models.VoteUp
	case slices.Contains(target.Downvoters, actorID):
		state.MyVote = models.VoteDown
	}
	return state, nil
}

// ReconcileBookmarks rewrites one target's bookmarker set from the index.
func (l *InteractionLedger) ReconcileBookmarks(ctx context.Context, ref models.TargetRef) error {
	savers, err := l.bookmarks.Savers(ctx, ref)
	if err != nil {
		return err
	}
	return translate(l.targets.SetBookmarkers(ctx, ref, savers))
}

// ReconcileKind repairs every stale bookmarker set of one kind and returns how many were rewritten.
func (l *InteractionLedger) ReconcileKind(ctx context.Context, kind models.TargetKind) (int, error) {
	savers, err := l.bookmarks.SaversByKind(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("load saved items for %s: %w", kind, err)
	}
	cached, err := l.targets.BookmarkerSets(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("load bookmarker sets for %s: %w", kind, err)
	}

	ids := make(map[string]struct{}, len(savers)+len(cached))
	for id := range savers {
		ids[id] = struct{}{}
	}
	for id := range cached {
		ids[id] = struct{}{}
	}

	fixed := 0
	for id := range ids {
		want, have := savers[id], cached[id]
		if sameMembers(want, have) {
			continue
		}
		ref := models.TargetRef{Kind: kind, ID: id}
		err := l.targets.SetBookmarkers(ctx, ref, want)
		if errors.Is(err, repositories.ErrNotFound) || errors.Is(err, repositories.ErrInvalidID) {
			continue
		}
		if err != nil {
			return fixed, fmt.Errorf("reconcile %s: %w", ref, err)
		}
		fixed++
	}
	return fixed, nil
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := slices.Clone(a), slices.Clone(b)
	slices.Sort(sa)
	slices.Sort(sb)
	return slices.Equal(sa, sb)
}
