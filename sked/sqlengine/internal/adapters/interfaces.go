package adapters

import "context"

// DBAdapter runs fully interpolated SQL statements.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBRows is a forward-only cursor over query results.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	// Err returns the error, if any, that ended the iteration.
	Err() error
	Close() error
}

// DBResult reports the effect of a statement.
type DBResult interface {
	RowsAffected() (int64, error)
}
