package adapters

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// stdConn is satisfied by *sql.DB and *sqlx.DB.
type stdConn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// StdAdapter implements DBAdapter on a database/sql pool. *sql.Rows and sql.Result already
// satisfy DBRows and DBResult, so nothing is wrapped.
type StdAdapter struct {
	conn stdConn
}

// NewSQLAdapter creates an adapter for a *sql.DB, e.g. opened with lib/pq or modernc sqlite.
func NewSQLAdapter(db *sql.DB) *StdAdapter {
	return &StdAdapter{conn: db}
}

// NewSQLXAdapter creates an adapter for a *sqlx.DB.
func NewSQLXAdapter(db *sqlx.DB) *StdAdapter {
	return &StdAdapter{conn: db}
}

func (s *StdAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (s *StdAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	return s.conn.ExecContext(ctx, query)
}
