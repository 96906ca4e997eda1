package storage

import (
	"fmt"

	"message-board/internal/storage/migrations"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"
)

// Migrate brings the schema of the configured database to the latest embedded version
func Migrate(cfg Config) error {
	connConfig, err := pgx.ParseConfig(cfg.DSN())
	if err != nil {
		return fmt.Errorf("pgx.ParseConfig: %w", err)
	}

	db := stdlib.OpenDB(*connConfig)
	defer db.Close()

	return migrations.Up(db)
}
