package app_test

import (
	"context"
	"testing"
	"time"

	"kotoba-quiz-service/internal/app"
	"kotoba-quiz-service/internal/domain"
	"kotoba-quiz-service/internal/infra/memory"
)

func newTestService() (*app.ScoreService, *memory.ScoreStore, *memory.UserStore) {
	scores := memory.NewScoreStore()
	users := memory.NewUserStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	service := app.NewScoreServiceWithClock(scores, users, func() time.Time { return now })
	return service, scores, users
}

func TestSubmitAwardsPoints(t *testing.T) {
	ctx := context.Background()
	service, scores, users := newTestService()

	result, err := service.Submit(ctx, "u1", "Alice", "N5_reading", 10, 10)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.PointsEarned != 10 || result.TotalPoints != 10 {
		t.Fatalf("expected 10 earned / 10 total, got %+v", result)
	}
	if users.Points("u1") != 10 {
		t.Fatalf("expected balance 10, got %d", users.Points("u1"))
	}

	// A second session keeps accumulating on the same balance.
	result, err = service.Submit(ctx, "u1", "Alice", "N5_lookalike", 4, 10)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.TotalPoints != 14 {
		t.Fatalf("expected balance 14, got %d", result.TotalPoints)
	}

	records, _ := scores.List(ctx)
	if len(records) != 2 {
		t.Fatalf("expected 2 append-only records, got %d", len(records))
	}
}

func TestSubmitRejectsOutOfRangeScore(t *testing.T) {
	ctx := context.Background()
	service, scores, _ := newTestService()

	cases := []struct{ score, total int }{
		{-1, 10},
		{11, 10},
		{0, 0},
	}
	for _, tc := range cases {
		if _, err := service.Submit(ctx, "u1", "Alice", "N5_reading", tc.score, tc.total); err != domain.ErrInvalidScore {
			t.Fatalf("score=%d total=%d: expected ErrInvalidScore, got %v", tc.score, tc.total, err)
		}
	}
	records, _ := scores.List(ctx)
	if len(records) != 0 {
		t.Fatalf("expected no records for rejected submissions, got %d", len(records))
	}
}

func TestLeaderboardReflectsSubmissions(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	mustSubmit := func(user, name, category string, score int) {
		t.Helper()
		if _, err := service.Submit(ctx, user, name, category, score, 10); err != nil {
			t.Fatalf("submit %s: %v", user, err)
		}
	}
	mustSubmit("u1", "Alice", "N5_reading", 7)
	mustSubmit("u1", "Alice", "N5_reading", 9)
	mustSubmit("u1", "Alice", "N5_grammar", 6)
	mustSubmit("u2", "Bob", "N5_reading", 10)

	lb, err := service.Leaderboard(ctx, "u1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(lb.Entries))
	}
	if lb.Entries[0].UserName != "Alice" || lb.Entries[0].TotalScore != 15 {
		t.Fatalf("expected Alice leading with 15, got %+v", lb.Entries[0])
	}
	if lb.PersonalBest == nil || *lb.PersonalBest != 15 {
		t.Fatalf("expected personal best 15, got %v", lb.PersonalBest)
	}
}
