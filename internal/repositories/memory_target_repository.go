package repositories

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryTargetRepository is an in-process TargetRepository. Each method runs
// under one mutex, which gives it the same atomicity as a single MongoDB
// document update. Used in tests and when no MONGO_URI is configured.
type MemoryTargetRepository struct {
	mu   sync.Mutex
	docs map[models.TargetKind]map[string]*models.InteractionTarget
}

func NewMemoryTargetRepository() *MemoryTargetRepository {
	return &MemoryTargetRepository{docs: make(map[models.TargetKind]map[string]*models.InteractionTarget)}
}

func cloneTarget(t *models.InteractionTarget) *models.InteractionTarget {
	c := *t
	c.Upvoters = slices.Clone(t.Upvoters)
	c.Downvoters = slices.Clone(t.Downvoters)
	c.Bookmarkers = slices.Clone(t.Bookmarkers)
	return &c
}

func (r *MemoryTargetRepository) lookup(ref models.TargetRef) (*models.InteractionTarget, error) {
	if _, err := primitive.ObjectIDFromHex(ref.ID); err != nil {
		return nil, ErrInvalidID
	}
	t, ok := r.docs[ref.Kind][ref.ID]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (r *MemoryTargetRepository) CreateTarget(_ context.Context, kind models.TargetKind, target *models.InteractionTarget) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target.ID = primitive.NewObjectID()
	target.Upvotes, target.Downvotes = 0, 0
	target.Upvoters, target.Downvoters, target.Bookmarkers = []string{}, []string{}, []string{}
	if target.CreatedAt.IsZero() {
		target.CreatedAt = time.Now()
	}
	if r.docs[kind] == nil {
		r.docs[kind] = make(map[string]*models.InteractionTarget)
	}
	r.docs[kind][target.ID.Hex()] = cloneTarget(target)
	return nil
}

func (r *MemoryTargetRepository) GetTarget(_ context.Context, ref models.TargetRef) (*models.InteractionTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.lookup(ref)
	if err != nil {
		return nil, err
	}
	return cloneTarget(t), nil
}

func (r *MemoryTargetRepository) Exists(_ context.Context, ref models.TargetRef) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.lookup(ref)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func votePointers(t *models.InteractionTarget, dir models.VoteDirection) (*int, *[]string) {
	if dir == models.VoteUp {
		return &t.Upvotes, &t.Upvoters
	}
	return &t.Downvotes, &t.Downvoters
}

func (r *MemoryTargetRepository) mutate(ref models.TargetRef, apply func(t *models.InteractionTarget) bool) (*models.InteractionTarget, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.lookup(ref)
	if err == ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !apply(t) {
		return nil, false, nil
	}
	return cloneTarget(t), true, nil
}

func (r *MemoryTargetRepository) RemoveVote(_ context.Context, ref models.TargetRef, actorID string, dir models.VoteDirection) (*models.InteractionTarget, bool, error) {
	return r.mutate(ref, func(t *models.InteractionTarget) bool {
		count, set := votePointers(t, dir)
		if !slices.Contains(*set, actorID) || *count <= 0 {
			return false
		}
		*set = slices.DeleteFunc(*set, func(id string) bool { return id == actorID })
		*count--
		return true
	})
}

func (r *MemoryTargetRepository) SwitchVote(_ context.Context, ref models.TargetRef, actorID string, dir models.VoteDirection) (*models.InteractionTarget, bool, error) {
	return r.mutate(ref, func(t *models.InteractionTarget) bool {
		count, set := votePointers(t, dir)
		oppCount, oppSet := votePointers(t, dir.Opposite())
		if !slices.Contains(*oppSet, actorID) || slices.Contains(*set, actorID) || *oppCount <= 0 {
			return false
		}
		*oppSet = slices.DeleteFunc(*oppSet, func(id string) bool { return id == actorID })
		*oppCount--
		*set = append(*set, actorID)
		*count++
		return true
	})
}

func (r *MemoryTargetRepository) AddVote(_ context.Context, ref models.TargetRef, actorID string, dir models.VoteDirection) (*models.InteractionTarget, bool, error) {
	return r.mutate(ref, func(t *models.InteractionTarget) bool {
		if slices.Contains(t.Upvoters, actorID) || slices.Contains(t.Downvoters, actorID) {
			return false
		}
		count, set := votePointers(t, dir)
		*set = append(*set, actorID)
		*count++
		return true
	})
}

func (r *MemoryTargetRepository) update(ref models.TargetRef, apply func(t *models.InteractionTarget)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.lookup(ref)
	if err != nil {
		return err
	}
	apply(t)
	return nil
}

func (r *MemoryTargetRepository) AddBookmarker(_ context.Context, ref models.TargetRef, actorID string) error {
	return r.update(ref, func(t *models.InteractionTarget) {
		if !slices.Contains(t.Bookmarkers, actorID) {
			t.Bookmarkers = append(t.Bookmarkers, actorID)
		}
	})
}

func (r *MemoryTargetRepository) RemoveBookmarker(_ context.Context, ref models.TargetRef, actorID string) error {
	return r.update(ref, func(t *models.InteractionTarget) {
		t.Bookmarkers = slices.DeleteFunc(t.Bookmarkers, func(id string) bool { return id == actorID })
	})
}

func (r *MemoryTargetRepository) SetBookmarkers(_ context.Context, ref models.TargetRef, actorIDs []string) error {
	return r.update(ref, func(t *models.InteractionTarget) {
		t.Bookmarkers = append([]string{}, actorIDs...)
	})
}

func (r *MemoryTargetRepository) BookmarkerSets(_ context.Context, kind models.TargetKind) (map[string][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sets := make(map[string][]string)
	for id, t := range r.docs[kind] {
		if len(t.Bookmarkers) > 0 {
			sets[id] = slices.Clone(t.Bookmarkers)
		}
	}
	return sets, nil
}

func (r *MemoryTargetRepository) FilterActive(_ context.Context, kind models.TargetKind, ids []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		if t, ok := r.docs[kind][id]; ok && t.Active() {
			keep[id] = true
		}
	}
	return keepOrdered(ids, keep), nil
}

func (r *MemoryTargetRepository) DeactivateExpired(_ context.Context, kind models.TargetKind, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	inactive := false
	for _, t := range r.docs[kind] {
		if t.ApplicationDeadline != nil && t.ApplicationDeadline.Before(now) && t.Active() {
			t.IsActive = &inactive
			n++
		}
	}
	return n, nil
}

func (r *MemoryTargetRepository) EnsureIndexes(context.Context) error {
	return nil
}
