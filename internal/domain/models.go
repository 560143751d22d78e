package domain

import (
	"fmt"
	"time"
)

// Mode identifies one of the three quiz variants.
type Mode string

const (
	// ModeReading asks for the phonetic reading of a prompt symbol (1 of 4).
	ModeReading Mode = "reading"
	// ModeLookalike asks to pick the prompt symbol out of visually similar ones (1 of 4).
	ModeLookalike Mode = "lookalike"
	// ModeConstruction asks to assemble word tokens into the correct sentence.
	ModeConstruction Mode = "construction"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeReading, ModeLookalike, ModeConstruction:
		return true
	}
	return false
}

// Level is a difficulty level, e.g. "N5".
type Level string

// Category is the composite key used to partition leaderboard scores,
// formatted as "<level>_<mode>" (e.g. "N5_reading").
func Category(level Level, mode Mode) string {
	return fmt.Sprintf("%s_%s", level, mode)
}

// QuizItem is one immutable entry of a question bank. Choice modes use
// Answer and Choices (the precomputed wrong-answer pool); construction
// mode uses Tokens as the canonical ordered sentence.
type QuizItem struct {
	Prompt  string   `json:"prompt" yaml:"prompt"`
	Answer  string   `json:"answer,omitempty" yaml:"answer,omitempty"`
	Choices []string `json:"choices,omitempty" yaml:"choices,omitempty"`
	Tokens  []string `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	Meaning string   `json:"meaning,omitempty" yaml:"meaning,omitempty"`
	Hint    string   `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// QuestionBank holds the read-only item list for one category.
type QuestionBank struct {
	Category string     `json:"category" yaml:"category"`
	Items    []QuizItem `json:"items" yaml:"items"`
}

// Outcome is the resolution state of a round.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeTimedOut  Outcome = "timed-out"
)

// Resolved reports whether the outcome is terminal.
func (o Outcome) Resolved() bool {
	return o == OutcomeCorrect || o == OutcomeIncorrect || o == OutcomeTimedOut
}

// RoundResult records one completed round for review.
type RoundResult struct {
	Number  int     `json:"number"`
	Prompt  string  `json:"prompt"`
	Answer  string  `json:"answer"`
	Given   string  `json:"given"`
	Outcome Outcome `json:"outcome"`
}

// SessionStats is derived, recomputed as rounds complete. CurrentStreak
// and Combo follow the same reset-on-miss rule; BestStreak is the session
// maximum of CurrentStreak.
type SessionStats struct {
	Answered      int `json:"answered"`
	Correct       int `json:"correct"`
	CurrentStreak int `json:"currentStreak"`
	BestStreak    int `json:"bestStreak"`
	Combo         int `json:"combo"`
}

// SessionResult is the final outcome of a finished 10-round session.
type SessionResult struct {
	Mode     Mode          `json:"mode"`
	Level    Level         `json:"level"`
	Category string        `json:"category"`
	Score    int           `json:"score"`
	Total    int           `json:"total"`
	Stats    SessionStats  `json:"stats"`
	Mistakes []RoundResult `json:"mistakes"`
}

// ScoreRecord is a persisted, append-only result of one submitted session.
type ScoreRecord struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Category  string    `json:"category"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
}

// SubmitResult reports the points awarded for one submission and the
// user's balance after the increment.
type SubmitResult struct {
	PointsEarned int `json:"pointsEarned"`
	TotalPoints  int `json:"totalPoints"`
}

// LeaderboardEntry is a derived ranking row: the sum of a user's best
// score in each distinct category they played.
type LeaderboardEntry struct {
	UserID           string    `json:"-"`
	UserName         string    `json:"user_name"`
	TotalScore       int       `json:"total_score"`
	CategoriesPlayed int       `json:"categories_played"`
	LastPlayedAt     time.Time `json:"-"`
}

// Leaderboard is the top ranking plus the requesting user's own total,
// which is reported even when they fall outside the top entries.
type Leaderboard struct {
	Entries      []LeaderboardEntry `json:"entries"`
	PersonalBest *int               `json:"personalBest"`
}
