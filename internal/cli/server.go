package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"kotoba-quiz-service/internal/app"
	"kotoba-quiz-service/internal/config"
	"kotoba-quiz-service/internal/domain"
	"kotoba-quiz-service/internal/infra/memory"
	pgstore "kotoba-quiz-service/internal/infra/postgres"
	redisbank "kotoba-quiz-service/internal/infra/redis"
	transport "kotoba-quiz-service/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	secret := cfg.Server.JWTSecret
	if secret == "" {
		secret = "dev-secret-change-me"
		log.Printf("warning: server.jwt_secret not configured, using dev secret")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleBanks())
	var scores app.ScoreRepository = memory.NewScoreStore()
	var users app.UserStore = memory.NewUserStore()

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		loader = pgstore.NewBankLoader(pool)

		db := openBun(cfg.Postgres.URL)
		defer db.Close()
		scores = pgstore.NewScoreRepository(db)
		users = pgstore.NewUserStore(db)
	}

	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	var banks transport.BankRepository
	if redisClient != nil {
		banks = redisbank.NewBankRepository(redisClient, loader, bankTTL)
	} else {
		banks = memory.NewBankRepository(loader, bankTTL)
	}

	service := app.NewScoreService(scores, users)
	handler := transport.NewHandler(service)
	playHandler := transport.NewPlayHandler(service, banks)
	auth := transport.NewAuthMiddleware(secret)
	router := transport.NewRouter(handler, playHandler, auth)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleBanks provides a minimal data set so the service runs without
// Postgres; production deployments seed question_banks instead.
func sampleBanks() map[string]domain.QuestionBank {
	return map[string]domain.QuestionBank{
		"N5_reading": {
			Category: "N5_reading",
			Items: []domain.QuizItem{
				{Prompt: "水", Answer: "みず", Choices: []string{"みす", "すい", "み", "こおり"}, Meaning: "water"},
				{Prompt: "火", Answer: "ひ", Choices: []string{"か", "ほ", "び", "はい"}, Meaning: "fire"},
				{Prompt: "山", Answer: "やま", Choices: []string{"さん", "かわ", "たに", "いし"}, Meaning: "mountain"},
				{Prompt: "学生", Answer: "がくせい", Choices: []string{"がっこう", "せんせい", "がくぶ", "せいと"}, Meaning: "student"},
			},
		},
		"N5_lookalike": {
			Category: "N5_lookalike",
			Items: []domain.QuizItem{
				{Prompt: "shi", Answer: "シ", Choices: []string{"ツ", "ソ", "ン", "ノ"}, Meaning: "katakana shi"},
				{Prompt: "wa", Answer: "ワ", Choices: []string{"ウ", "フ", "ク", "ヲ"}, Meaning: "katakana wa"},
				{Prompt: "me", Answer: "め", Choices: []string{"ぬ", "あ", "お", "の"}, Meaning: "hiragana me"},
			},
		},
		"N5_construction": {
			Category: "N5_construction",
			Items: []domain.QuizItem{
				{Prompt: "I am a student.", Tokens: []string{"私", "は", "学生", "です"}, Meaning: "watashi wa gakusei desu"},
				{Prompt: "This is water.", Tokens: []string{"これ", "は", "水", "です"}, Meaning: "kore wa mizu desu"},
				{Prompt: "I drink tea every day.", Tokens: []string{"毎日", "お茶", "を", "飲みます"}, Meaning: "mainichi ocha o nomimasu"},
			},
		},
	}
}
