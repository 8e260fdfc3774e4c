package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/internal/repositories"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// Reason names why points were awarded
type Reason string

const (
	ReasonPost           Reason = "post"
	ReasonUpload         Reason = "upload"
	ReasonAnswer         Reason = "answer"
	ReasonUpvoteReceived Reason = "upvote_received"
	ReasonAcceptedAnswer Reason = "accepted_answer"
	ReasonHighRating     Reason = "high_rating"
)

var reasonPoints = map[Reason]int64{
	ReasonPost:           5,
	ReasonUpload:         10,
	ReasonAnswer:         5,
	ReasonUpvoteReceived: 2,
	ReasonAcceptedAnswer: 15,
	ReasonHighRating:     5,
}

// PointsFor returns the fixed award for a reason, or 0 for an unknown one.
func PointsFor(r Reason) int64 {
	return reasonPoints[r]
}

// BadgeFacts is what badge rules are evaluated against
type BadgeFacts struct {
	Stats            models.ActorStats
	AccountCreatedAt time.Time
	HasAccount       bool
}

// BadgeRule is one row of the badge table
type BadgeRule struct {
	Name      string
	Satisfied func(BadgeFacts) bool
}

func threshold(field models.StatField, min int64) func(BadgeFacts) bool {
	return func(f BadgeFacts) bool { return f.Stats.Value(field) >= min }
}

// DefaultBadgeRules is the platform badge table. Accounts created before cutoff are early adopters.
func DefaultBadgeRules(cutoff time.Time) []BadgeRule {
	return []BadgeRule{
		{Name: "EARLY_ADOPTER", Satisfied: func(f BadgeFacts) bool {
			return f.HasAccount && f.AccountCreatedAt.Before(cutoff)
		}},
		{Name: "TOP_CONTRIBUTOR", Satisfied: threshold(models.StatContributionsMade, 50)},
		{Name: "HELPFUL_MEMBER", Satisfied: threshold(models.StatHelpfulAnswers, 100)},
		{Name: "BOOKWORM", Satisfied: threshold(models.StatResourcesDownloaded, 100)},
	}
}

func badgeIcon(name string) string {
	return "badge-" + strings.ToLower(name) + ".png"
}

// BadgeListener is told about every badge right after it is persisted
type BadgeListener interface {
	BadgeEarned(ctx context.Context, actorID string, badge models.Badge) error
}

// ScoringEngine owns ActorStats, the points ledger and badge awards.
type ScoringEngine struct {
	stats    repositories.StatsRepository
	users    repositories.UserRepository
	rules    []BadgeRule
	listener BadgeListener
	logger   *zap.Logger
	now      func() time.Time
}

func NewScoringEngine(stats repositories.StatsRepository, users repositories.UserRepository, rules []BadgeRule, logger *zap.Logger) *ScoringEngine {
	return &ScoringEngine{
		stats:  stats,
		users:  users,
		rules:  rules,
		logger: logger.Named("scoring"),
		now:    time.Now,
	}
}

// SetBadgeListener wires the consumer of badge earned events.
func (s *ScoringEngine) SetBadgeListener(l BadgeListener) {
	s.listener = l
}

// AwardPoints adds amount to the actor's points and re-evaluates badges.
// Unknown actors are ErrNotFound and leave no point log behind.
func (s *ScoringEngine) AwardPoints(ctx context.Context, actorID string, amount int64, reason Reason) (int64, error) {
	if actorID == "" {
		return 0, fmt.Errorf("%w: missing actor", ErrValidation)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("%w: points amount must be positive", ErrValidation)
	}

	stats, err := s.stats.Increment(ctx, actorID, models.StatPoints, amount)
	if err != nil {
		return 0, fmt.Errorf("award %d points to %s: %w", amount, actorID, translate(err))
	}

	if err := s.stats.LogPoints(ctx, &models.PointLog{
		UserID:    actorID,
		Reason:    string(reason),
		Points:    amount,
		CreatedAt: s.now(),
	}); err != nil {
		s.logger.Warn("Failed to write point log", zap.String("actor", actorID), zap.Error(err))
	}

	s.evaluateAfterChange(ctx, actorID, stats)
	return stats.Points, nil
}

// Award grants the fixed amount of a known reason.
func (s *ScoringEngine) Award(ctx context.Context, actorID string, reason Reason) (int64, error) {
	amount := PointsFor(reason)
	if amount == 0 {
		return 0, fmt.Errorf("%w: unknown reason %q", ErrValidation, reason)
	}
	return s.AwardPoints(ctx, actorID, amount, reason)
}

// IncrementStat bumps one activity counter and re-evaluates badges.
func (s *ScoringEngine) IncrementStat(ctx context.Context, actorID string, field models.StatField, by int64) (*models.ActorStats, error) {
	if !field.Valid() || field == models.StatPoints {
		return nil, fmt.Errorf("%w: unknown stat %q", ErrValidation, field)
	}
	if by <= 0 {
		return nil, fmt.Errorf("%w: increment must be positive", ErrValidation)
	}
	stats, err := s.stats.Increment(ctx, actorID, field, by)
	if err != nil {
		return nil, fmt.Errorf("increment %s for %s: %w", field, actorID, translate(err))
	}
	s.evaluateAfterChange(ctx, actorID, stats)
	return stats, nil
}

func (s *ScoringEngine) evaluateAfterChange(ctx context.Context, actorID string, stats *models.ActorStats) {
	if _, err := s.evaluate(ctx, actorID, *stats); err != nil {
		s.logger.Error("Badge evaluation failed", zap.String("actor", actorID), zap.Error(err))
	}
}

// EvaluateBadges awards every satisfied badge the actor does not hold yet.
// Running it again is a no-op for badges already held.
func (s *ScoringEngine) EvaluateBadges(ctx context.Context, actorID string) ([]models.Badge, error) {
	stats, err := s.stats.GetStats(ctx, actorID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		stats = &models.ActorStats{UserID: actorID}
	case err != nil:
		return nil, err
	}
	return s.evaluate(ctx, actorID, *stats)
}

func (s *ScoringEngine) evaluate(ctx context.Context, actorID string, stats models.ActorStats) ([]models.Badge, error) {
	facts := BadgeFacts{Stats: stats}
	user, err := s.users.GetUserByID(ctx, actorID)
	switch {
	case err == nil:
		facts.HasAccount = true
		facts.AccountCreatedAt = user.CreatedAt
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, err
	}

	held, err := s.stats.ListBadges(ctx, actorID)
	if err != nil {
		return nil, err
	}
	owned := make(map[string]bool, len(held))
	for _, b := range held {
		owned[b.Name] = true
	}

	var awarded []models.Badge
	for _, rule := range s.rules {
		if owned[rule.Name] || !rule.Satisfied(facts) {
			continue
		}
		badge := models.Badge{
			UserID:   actorID,
			Name:     rule.Name,
			Icon:     badgeIcon(rule.Name),
			EarnedAt: s.now(),
		}
		// the unique (user_id, name) index settles concurrent evaluations
		created, err := s.stats.InsertBadge(ctx, &badge)
		if err != nil {
			return awarded, fmt.Errorf("insert badge %s: %w", rule.Name, err)
		}
		if !created {
			continue
		}
		s.logger.Info("Badge earned", zap.String("actor", actorID), zap.String("badge", rule.Name))
		awarded = append(awarded, badge)
		s.announce(ctx, actorID, badge)
	}
	return awarded, nil
}

func (s *ScoringEngine) announce(ctx context.Context, actorID string, badge models.Badge) {
	if s.listener == nil {
		return
	}
	var pc panics.Catcher
	pc.Try(func() {
		if err := s.listener.BadgeEarned(ctx, actorID, badge); err != nil {
			s.logger.Warn("Badge notification failed", zap.String("actor", actorID), zap.String("badge", badge.Name), zap.Error(err))
		}
	})
	if r := pc.Recovered(); r != nil {
		s.logger.Error("Badge listener panicked", zap.String("badge", badge.Name), zap.Error(r.AsError()))
	}
}

// VoteToggled awards the author for an upvote that was added or moved from down.
// Undoing the vote later does not take the points back.
func (s *ScoringEngine) VoteToggled(ctx context.Context, event VoteEvent) {
	if event.Direction != models.VoteUp || event.Change == VoteRemoved {
		return
	}
	if event.AuthorID == "" || event.AuthorID == event.ActorID {
		return
	}
	if _, err := s.Award(ctx, event.AuthorID, ReasonUpvoteReceived); err != nil {
		s.logger.Warn("Failed to award upvote points",
			zap.String("author", event.AuthorID), zap.Stringer("target", event.Target), zap.Error(err))
	}
}

// Summary returns the actor's stats and badges.
func (s *ScoringEngine) Summary(ctx context.Context, actorID string) (*models.ActorStats, []models.Badge, error) {
	stats, err := s.stats.GetStats(ctx, actorID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		stats = &models.ActorStats{UserID: actorID}
	case err != nil:
		return nil, nil, err
	}
	badges, err := s.stats.ListBadges(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	return stats, badges, nil
}
