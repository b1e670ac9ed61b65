package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// Migration is one forward-only schema step. Statements must be valid for
// both PostgreSQL and SQLite.
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS receipts (
				id VARCHAR(36) PRIMARY KEY,
				user_id TEXT NOT NULL,
				source VARCHAR(16) NOT NULL,
				storage_ref TEXT NOT NULL,
				content_hash VARCHAR(64) NOT NULL DEFAULT '',
				merchant TEXT NOT NULL DEFAULT '',
				amount NUMERIC(14,2) NOT NULL DEFAULT 0,
				tx_date VARCHAR(10) NOT NULL DEFAULT '',
				payment_method VARCHAR(16) NOT NULL DEFAULT '',
				items TEXT NOT NULL DEFAULT '[]',
				full_text TEXT NOT NULL DEFAULT '',
				predicted_category VARCHAR(32),
				manual_category VARCHAR(32),
				confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
				tax_eligible BOOLEAN NOT NULL DEFAULT FALSE,
				reasoning TEXT NOT NULL DEFAULT '',
				anomalies TEXT NOT NULL DEFAULT '[]',
				processed_at VARCHAR(32),
				processing_error TEXT NOT NULL DEFAULT '',
				created_at VARCHAR(32) NOT NULL,
				updated_at VARCHAR(32) NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_receipts_user_date ON receipts (user_id, tx_date)`,
			`CREATE INDEX IF NOT EXISTS idx_receipts_user_hash ON receipts (user_id, content_hash)`,
			`CREATE INDEX IF NOT EXISTS idx_receipts_created ON receipts (created_at)`,
		},
	},
	{
		Version:     2,
		Description: "Derived summaries",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS tax_summaries (
				user_id TEXT NOT NULL,
				year INTEGER NOT NULL,
				document TEXT NOT NULL,
				updated_at VARCHAR(32) NOT NULL,
				PRIMARY KEY (user_id, year)
			)`,
			`CREATE TABLE IF NOT EXISTS monthly_insights (
				user_id TEXT NOT NULL,
				month VARCHAR(7) NOT NULL,
				document TEXT NOT NULL,
				updated_at VARCHAR(32) NOT NULL,
				PRIMARY KEY (user_id, month)
			)`,
		},
	},
}

// Migrate brings the schema up to the latest version. Applied versions are
// recorded in schema_migrations, so running it again is a no-op.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at VARCHAR(32) NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			logger.Error("migration failed", "version", m.Version, "error", err)
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		logger.Info("migration applied", "version", m.Version, "description", m.Description)
	}
	return nil
}

func schemaVersion(ctx context.Context, db *DB) (int, error) {
	d := entsql.Dialect(db.Dialect)
	query, args := d.Select("version").
		From(d.Table("schema_migrations")).
		OrderBy(entsql.Desc("version")).
		Limit(1).
		Query()

	var v int
	err := db.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func applyMigration(ctx context.Context, db *DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	query, args := entsql.Dialect(db.Dialect).
		Insert("schema_migrations").
		Columns("version", "description", "applied_at").
		Values(m.Version, m.Description, formatTime(time.Now())).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	return tx.Commit()
}
