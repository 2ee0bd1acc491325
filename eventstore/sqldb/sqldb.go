// Package sqldb opens the relational database shared by the event store and the stats
// aggregator and knows the few places where PostgreSQL and SQLite differ.
package sqldb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// ForUpdate is the row-locking suffix for SELECTs inside a transaction. SQLite locks the whole
// database on write so it needs none.
func (d Dialect) ForUpdate() string {
	if d == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

type DB struct {
	*sqlx.DB
	Dialect Dialect
}

// Open connects to a database URL. postgres:// and postgresql:// URLs go to PostgreSQL, anything
// else is taken as a SQLite file path (an optional sqlite:// prefix is stripped).
func Open(url string) (*DB, error) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		db, err := sqlx.Open("pgx", url)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return &DB{DB: db, Dialect: Postgres}, nil
	}

	path := strings.TrimPrefix(url, "sqlite://")
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite at '%s': %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return &DB{DB: db, Dialect: SQLite}, nil
}

// WithTx runs f inside a transaction, committing if it returns nil.
func (db *DB) WithTx(ctx context.Context, f func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// LockKey takes a transaction-scoped lock on an arbitrary key, serializing writers that touch
// the same replaceable address.
func (db *DB) LockKey(ctx context.Context, tx *sqlx.Tx, key string) error {
	if db.Dialect != Postgres {
		return nil
	}
	_, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key)
	return err
}

// IsUniqueViolation tells if err comes from a primary key or unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// In expands slice arguments of a query written with ? placeholders and rebinds it for the
// dialect.
func (db *DB) In(query string, args ...any) (string, []any, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return db.Rebind(query), args, nil
}
