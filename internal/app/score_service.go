package app

import (
	"context"
	"time"

	"kotoba-quiz-service/internal/domain"
)

// ScoreRepository persists submitted session results. Records are
// append-only; nothing in the normal flow updates or deletes them.
type ScoreRepository interface {
	Append(ctx context.Context, record domain.ScoreRecord) error
	List(ctx context.Context) ([]domain.ScoreRecord, error)
}

// UserStore owns the per-user points balance. AddPoints must apply the
// increment atomically (a single UPDATE, not read-then-write) and return
// the balance after the increment.
type UserStore interface {
	AddPoints(ctx context.Context, userID, userName string, delta int) (int, error)
}

// ScoreService contains the score submission and leaderboard use cases.
type ScoreService struct {
	scores ScoreRepository
	users  UserStore
	now    func() time.Time
}

func NewScoreService(scores ScoreRepository, users UserStore) *ScoreService {
	return &ScoreService{scores: scores, users: users, now: time.Now}
}

// NewScoreServiceWithClock is test-only for deterministic timestamps.
func NewScoreServiceWithClock(scores ScoreRepository, users UserStore, now func() time.Time) *ScoreService {
	return &ScoreService{scores: scores, users: users, now: now}
}

// Submit appends a ScoreRecord for a finished session and credits the
// user's points balance with one point per correct answer.
func (s *ScoreService) Submit(ctx context.Context, userID, userName, category string, score, total int) (domain.SubmitResult, error) {
	if total <= 0 || score < 0 || score > total {
		return domain.SubmitResult{}, domain.ErrInvalidScore
	}

	record := domain.ScoreRecord{
		UserID:    userID,
		UserName:  userName,
		Category:  category,
		Score:     score,
		Total:     total,
		CreatedAt: s.now(),
	}
	if err := s.scores.Append(ctx, record); err != nil {
		return domain.SubmitResult{}, err
	}

	balance, err := s.users.AddPoints(ctx, userID, userName, score)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	return domain.SubmitResult{PointsEarned: score, TotalPoints: balance}, nil
}

// Leaderboard recomputes the ranking from the full score history on every
// call; there is no materialized leaderboard state.
func (s *ScoreService) Leaderboard(ctx context.Context, requesterID string) (domain.Leaderboard, error) {
	records, err := s.scores.List(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return Aggregate(records, requesterID, LeaderboardSize), nil
}
