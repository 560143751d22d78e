package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"

	"kotoba-quiz-service/internal/config"
	"kotoba-quiz-service/internal/domain"
)

// NewSeedCmd loads question-bank YAML files into Postgres. With no
// arguments it seeds every *.yaml file under the configured bank.dir.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [files...]",
		Short: "Load question-bank YAML files into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}

			files := args
			if len(files) == 0 {
				if cfg.Bank.Dir == "" {
					return fmt.Errorf("no files given and bank.dir not configured")
				}
				files, err = filepath.Glob(filepath.Join(cfg.Bank.Dir, "*.yaml"))
				if err != nil {
					return err
				}
			}
			if len(files) == 0 {
				return fmt.Errorf("no bank files to seed")
			}

			db := openBun(cfg.Postgres.URL)
			defer db.Close()

			for _, file := range files {
				if err := seedBankFile(cmd.Context(), db, file); err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
			}
			return nil
		},
	}
}

func seedBankFile(ctx context.Context, db *bun.DB, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var bank domain.QuestionBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return err
	}
	if bank.Category == "" {
		return fmt.Errorf("bank file missing category")
	}
	// An empty bank would stall every session at startup; refuse it here.
	if len(bank.Items) == 0 {
		return domain.ErrEmptyBank
	}

	payload, err := json.Marshal(bank)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO question_banks (category, data) VALUES (?, ?::jsonb)
		ON CONFLICT (category) DO UPDATE SET data = EXCLUDED.data
	`, bank.Category, string(payload)); err != nil {
		return err
	}
	log.Printf("seeded %s (%d items)", bank.Category, len(bank.Items))
	return nil
}
