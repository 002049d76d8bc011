package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/studygen-api/pkg/config"
)

// Schema creates the documents table when missing. Study materials are stored
// as JSONB so each record is written and read as a single row.
const Schema = `CREATE TABLE IF NOT EXISTS documents (
	id                TEXT PRIMARY KEY,
	file_name         TEXT NOT NULL,
	original_text     TEXT NOT NULL,
	flashcards        JSONB NOT NULL DEFAULT '[]',
	summary           TEXT NOT NULL DEFAULT '',
	cornell_notes     JSONB,
	multiple_choice   JSONB NOT NULL DEFAULT '[]',
	requested_formats JSONB NOT NULL DEFAULT '[]',
	model_type        TEXT NOT NULL DEFAULT '',
	is_mock_data      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_created_at_idx ON documents (created_at DESC);`

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
