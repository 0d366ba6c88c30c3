// Package sqlkv stores key/value text in a single SQL table, on PostgreSQL (pgx) or SQLite.
package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const schemaLockID int64 = 2026101801

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func OpenDB(dialect Dialect, dsn string) (*sql.DB, error) {
	driver := "pgx"
	if dialect == DialectSQLite {
		driver = "sqlite3"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if dialect == DialectSQLite {
		// A single connection serializes writers and keeps ":memory:" databases shared.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if s.dialect == DialectPostgres {
		// Serialize bootstrap DDL across concurrent startups.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
			return fmt.Errorf("acquire schema lock: %w", err)
		}
	}

	const query = `
CREATE TABLE IF NOT EXISTS auditor_kv (
	kv_key TEXT PRIMARY KEY,
	kv_value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT kv_value FROM auditor_kv WHERE kv_key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrNotFound, "select kv", fmt.Errorf("key=%s", key))
		}
		return "", domain.WrapError(domain.ErrPersistence, "select kv", err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	const query = `
INSERT INTO auditor_kv (kv_key, kv_value, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (kv_key) DO UPDATE SET kv_value = excluded.kv_value, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return domain.WrapError(domain.ErrPersistence, "upsert kv", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auditor_kv WHERE kv_key = $1`, key); err != nil {
		return domain.WrapError(domain.ErrPersistence, "delete kv", err)
	}
	return nil
}
