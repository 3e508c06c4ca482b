package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const createQuotaTable = `
CREATE TABLE IF NOT EXISTS quota_window (
	identifier   TEXT PRIMARY KEY,
	window_start TIMESTAMPTZ NOT NULL,
	count        INTEGER NOT NULL
)`

// PostgresStore persists quota windows so counts survive restarts and are
// shared between gateway instances. The row lock serializes concurrent
// requests from one identifier.
type PostgresStore struct {
	db             *sqlx.DB
	limit          int
	windowDuration time.Duration
}

func NewPostgresStore(db *sqlx.DB, limit int, windowDuration time.Duration) (*PostgresStore, error) {
	if _, err := db.Exec(createQuotaTable); err != nil {
		return nil, fmt.Errorf("create quota table: %w", err)
	}
	return &PostgresStore{db: db, limit: limit, windowDuration: windowDuration}, nil
}

func (s *PostgresStore) Take(ctx context.Context, identifier string) (bool, error) {
	if s.limit <= 0 {
		return true, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var row struct {
		WindowStart time.Time `db:"window_start"`
		Count       int       `db:"count"`
	}
	err = tx.GetContext(ctx, &row,
		"SELECT window_start, count FROM quota_window WHERE identifier = $1 FOR UPDATE", identifier)

	admitted := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			"INSERT INTO quota_window (identifier, window_start, count) VALUES ($1, $2, 1)",
			identifier, time.Now().UTC())
		admitted = true
	case err != nil:
		return false, err
	case time.Since(row.WindowStart) >= s.windowDuration:
		_, err = tx.ExecContext(ctx,
			"UPDATE quota_window SET window_start = $2, count = 1 WHERE identifier = $1",
			identifier, time.Now().UTC())
		admitted = true
	case row.Count >= s.limit:
		// Rejected without incrementing
	default:
		_, err = tx.ExecContext(ctx,
			"UPDATE quota_window SET count = count + 1 WHERE identifier = $1", identifier)
		admitted = true
	}
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return admitted, nil
}
