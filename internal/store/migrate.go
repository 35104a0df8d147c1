package store

import (
	"context"
	"fmt"
	"strings"
)

// migration is one schema step, applied exactly once and recorded in
// schema_version. The SQL is portable between SQLite and PostgreSQL.
type migration struct {
	Version     int
	Description string
	SQL         string
}

const schemaVersion = 2

var migrations = []migration{
	{
		Version:     1,
		Description: "base schema: users, patients, sales, tasks, appointments, faqs, staff",
		SQL: `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			name          TEXT,
			tenant_id     TEXT NOT NULL,
			role          TEXT NOT NULL DEFAULT 'user',
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS patients (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sales (
			id        TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			amount     DOUBLE PRECISION NOT NULL,
			product_id TEXT,
			channel    TEXT,
			sold_at    TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sales_tenant_date ON sales(tenant_id, sold_at);

		CREATE TABLE IF NOT EXISTS tasks (
			id         TEXT PRIMARY KEY,
			tenant_id  TEXT NOT NULL,
			title      TEXT NOT NULL,
			due_at     TIMESTAMP NOT NULL,
			completed  BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_tenant_due ON tasks(tenant_id, completed, due_at);

		CREATE TABLE IF NOT EXISTS appointments (
			id         TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL,
			starts_at  TIMESTAMP NOT NULL,
			ends_at    TIMESTAMP NOT NULL,
			reason     TEXT,
			status     TEXT NOT NULL DEFAULT 'pending'
		);
		CREATE INDEX IF NOT EXISTS idx_appointments_patient ON appointments(patient_id, starts_at);

		CREATE TABLE IF NOT EXISTS faqs (
			id       TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			answer   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS staff (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			role TEXT NOT NULL
		);
		`,
	},
	{
		Version:     2,
		Description: "conversation history",
		SQL: `
		CREATE TABLE IF NOT EXISTS conversations (
			id         TEXT PRIMARY KEY,
			scope      TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_scope ON conversations(scope, updated_at);

		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			seq             INTEGER NOT NULL,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			created_at      TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conversation_id, seq);
		`,
	},
}

// migrate applies all pending migrations, each inside its own transaction.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			description TEXT
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		s.logger.Info("applying migration", "version", m.Version, "description", m.Description, "driver", s.driver)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", m.Version, err)
		}
		for _, stmt := range splitSQL(m.SQL) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration v%d statement failed: %w\nSQL: %s", m.Version, err, truncate(stmt, 200))
			}
		}
		if _, err := tx.ExecContext(ctx, s.rebind(
			"INSERT INTO schema_version (version, description) VALUES (?, ?)"),
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.Version, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("query schema version: %w", err)
	}
	return v, nil
}

// splitSQL splits a multi-statement script on semicolons.
func splitSQL(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
