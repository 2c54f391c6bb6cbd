package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"chatdesk/internal/shared/logger"
)

// Generator creates goose SQL migration files in the scripts directory.
type Generator struct {
	scriptsPath string
	logger      logger.Interface
}

func NewGenerator(scriptsPath string) *Generator {
	return &Generator{
		scriptsPath: scriptsPath,
		logger:      logger.NewLogger().With("component", "migration.generator"),
	}
}

// CreateMigration writes a timestamped file with empty Up and Down sections and returns its path.
func (g *Generator) CreateMigration(name string, now time.Time) (string, error) {
	if name == "" {
		return "", fmt.Errorf("migration name is required")
	}
	if err := os.MkdirAll(g.scriptsPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create scripts directory: %w", err)
	}

	fileName := fmt.Sprintf("%s_%s.sql", now.UTC().Format("20060102150405"), name)
	path := filepath.Join(g.scriptsPath, fileName)
	content := fmt.Sprintf(`-- Migration: %s
-- Created: %s

-- +goose Up
-- +goose StatementBegin
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- +goose StatementEnd
`, name, now.UTC().Format(time.RFC3339))

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write migration file: %w", err)
	}

	g.logger.Infow("migration file created", "path", path)
	return path, nil
}
