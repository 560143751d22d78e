package memory

import (
	"context"
	"sync"

	"kotoba-quiz-service/internal/domain"
)

// ScoreStore is an in-memory, append-only implementation of
// app.ScoreRepository for tests and demo mode.
type ScoreStore struct {
	mu      sync.RWMutex
	nextID  int64
	records []domain.ScoreRecord
}

func NewScoreStore() *ScoreStore {
	return &ScoreStore{nextID: 1}
}

func (s *ScoreStore) Append(_ context.Context, record domain.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ID = s.nextID
	s.nextID++
	s.records = append(s.records, record)
	return nil
}

func (s *ScoreStore) List(_ context.Context) ([]domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ScoreRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// UserStore keeps points balances in memory. The increment runs under the
// store lock, mirroring the atomic UPDATE the Postgres implementation uses.
type UserStore struct {
	mu     sync.Mutex
	points map[string]int
	names  map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		points: make(map[string]int),
		names:  make(map[string]string),
	}
}

func (s *UserStore) AddPoints(_ context.Context, userID, userName string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[userID] += delta
	s.names[userID] = userName
	return s.points[userID], nil
}

// Points is a test helper exposing the current balance.
func (s *UserStore) Points(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points[userID]
}
