package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (namespace, key)
);
`

// SQLite is a Store backed by a single SQLite database file.
type SQLite struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(logger *slog.Logger, path string) (*SQLite, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// Credentials have a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	logger.Debug("opened store", "path", path)
	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, ErrClosed
	}
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM kv WHERE namespace = ? AND key = ?`, namespace, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SQLite) SetMany(ctx context.Context, namespace string, pairs map[string]string) error {
	if s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
	INSERT INTO kv (namespace, key, value, updated_at)
	VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(namespace, key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`
	for key, value := range pairs {
		if _, err := tx.ExecContext(ctx, query, namespace, key, value); err != nil {
			return fmt.Errorf("failed to set %s/%s: %w", namespace, key, err)
		}
	}
	return tx.Commit()
}

// Close closes the database connection & syncs it to persistent storage.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
