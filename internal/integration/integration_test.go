package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"kotoba-quiz-service/internal/app"
	"kotoba-quiz-service/internal/domain"
	pgstore "kotoba-quiz-service/internal/infra/postgres"
	pgmigrations "kotoba-quiz-service/internal/infra/postgres/migrations"
	redisbank "kotoba-quiz-service/internal/infra/redis"
)

func TestSubmitAndLeaderboardEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := openBun(pgURL)
	defer db.Close()
	runMigrations(t, ctx, db)
	seedBank(t, ctx, db, sampleBank())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	// Bank flows through Postgres and the Redis cache.
	banks := redisbank.NewBankRepository(redisClient, pgstore.NewBankLoader(pool), 5*time.Minute)
	bank, err := banks.GetBank(ctx, "N5_reading")
	if err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if len(bank.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(bank.Items))
	}
	// Second read comes from Redis.
	if _, err := banks.GetBank(ctx, "N5_reading"); err != nil {
		t.Fatalf("cached get bank: %v", err)
	}

	service := app.NewScoreService(pgstore.NewScoreRepository(db), pgstore.NewUserStore(db))

	submit := func(user, name, category string, score int) domain.SubmitResult {
		t.Helper()
		result, err := service.Submit(ctx, user, name, category, score, 10)
		if err != nil {
			t.Fatalf("submit %s: %v", user, err)
		}
		return result
	}

	submit("u1", "Alice", "N5_reading", 7)
	result := submit("u1", "Alice", "N5_reading", 9)
	if result.TotalPoints != 16 {
		t.Fatalf("expected balance 16 after 7+9, got %d", result.TotalPoints)
	}
	submit("u1", "Alice", "N5_construction", 6)
	submit("u2", "Bob", "N5_reading", 10)

	lb, err := service.Leaderboard(ctx, "u1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", lb.Entries)
	}
	// Alice: best 9 in reading + 6 in construction = 15 over Bob's 10.
	if lb.Entries[0].UserName != "Alice" || lb.Entries[0].TotalScore != 15 || lb.Entries[0].CategoriesPlayed != 2 {
		t.Fatalf("expected Alice leading with 15/2, got %+v", lb.Entries[0])
	}
	if lb.PersonalBest == nil || *lb.PersonalBest != 15 {
		t.Fatalf("expected personal best 15, got %v", lb.PersonalBest)
	}
}

func openBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func runMigrations(t *testing.T, ctx context.Context, db *bun.DB) {
	t.Helper()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func seedBank(t *testing.T, ctx context.Context, db *bun.DB, bank domain.QuestionBank) {
	t.Helper()
	data, err := json.Marshal(bank)
	if err != nil {
		t.Fatalf("marshal bank: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO question_banks (category, data) VALUES (?, ?::jsonb) ON CONFLICT (category) DO UPDATE SET data=EXCLUDED.data`, bank.Category, string(data)); err != nil {
		t.Fatalf("insert bank: %v", err)
	}
}

func sampleBank() domain.QuestionBank {
	return domain.QuestionBank{
		Category: "N5_reading",
		Items: []domain.QuizItem{
			{Prompt: "水", Answer: "みず", Choices: []string{"みす", "すい", "み"}, Meaning: "water"},
			{Prompt: "火", Answer: "ひ", Choices: []string{"か", "ほ", "び"}, Meaning: "fire"},
		},
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
