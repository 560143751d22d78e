package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"kotoba-quiz-service/internal/domain"
)

type scoreRow struct {
	bun.BaseModel `bun:"table:score_records,alias:sr"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    string    `bun:"user_id,notnull"`
	UserName  string    `bun:"user_name,notnull"`
	Category  string    `bun:"category,notnull"`
	Score     int       `bun:"score,notnull"`
	Total     int       `bun:"total,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// ScoreRepository persists score records through bun. The table is
// append-only; no update or delete paths exist.
type ScoreRepository struct {
	db *bun.DB
}

func NewScoreRepository(db *bun.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

func (r *ScoreRepository) Append(ctx context.Context, record domain.ScoreRecord) error {
	row := scoreRow{
		UserID:    record.UserID,
		UserName:  record.UserName,
		Category:  record.Category,
		Score:     record.Score,
		Total:     record.Total,
		CreatedAt: record.CreatedAt,
	}
	if _, err := r.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("append score record: %w", err)
	}
	return nil
}

func (r *ScoreRepository) List(ctx context.Context) ([]domain.ScoreRecord, error) {
	var rows []scoreRow
	if err := r.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list score records: %w", err)
	}
	records := make([]domain.ScoreRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, domain.ScoreRecord{
			ID:        row.ID,
			UserID:    row.UserID,
			UserName:  row.UserName,
			Category:  row.Category,
			Score:     row.Score,
			Total:     row.Total,
			CreatedAt: row.CreatedAt,
		})
	}
	return records, nil
}

// UserStore keeps points balances in the users table. The increment is a
// single upsert so concurrent submissions from the same user cannot lose
// an update.
type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) AddPoints(ctx context.Context, userID, userName string, delta int) (int, error) {
	var points int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, points) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			points = users.points + EXCLUDED.points,
			name = EXCLUDED.name
		RETURNING points
	`, userID, userName, delta).Scan(&points)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("add points: %w", err)
	}
	return points, nil
}
