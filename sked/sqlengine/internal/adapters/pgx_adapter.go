package adapters

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGXAdapter implements DBAdapter on pgxpool. Reads go to the replica when one is configured;
// writes, including the amendment INSERT ... SELECT, always go to the primary.
type PGXAdapter struct {
	primary *pgxpool.Pool
	replica *pgxpool.Pool
}

func NewPGXAdapter(primary *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{primary: primary}
}

func NewPGXAdapterWithReplica(primary *pgxpool.Pool, replica *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{primary: primary, replica: replica}
}

func (p *PGXAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := p.reader().Query(ctx, query)
	if err != nil {
		return nil, err
	}

	return pgxRows{Rows: rows}, nil
}

func (p *PGXAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	tag, err := p.primary.Exec(ctx, query)
	if err != nil {
		return nil, err
	}

	return pgxResult{CommandTag: tag}, nil
}

func (p *PGXAdapter) reader() *pgxpool.Pool {
	if p.replica != nil {
		return p.replica
	}

	return p.primary
}

// pgxRows reports the iteration error from Close, which pgx.Rows does not.
type pgxRows struct {
	pgx.Rows
}

func (r pgxRows) Close() error {
	r.Rows.Close()
	return r.Rows.Err()
}

type pgxResult struct {
	pgconn.CommandTag
}

func (r pgxResult) RowsAffected() (int64, error) {
	return r.CommandTag.RowsAffected(), nil
}
