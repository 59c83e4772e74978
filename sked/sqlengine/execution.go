package sqlengine

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/sked-go/sked/sqlengine/internal/adapters"
)

type toSQLer interface {
	ToSQL() (string, []any, error)
}

func (r *Repository) toSQL(stmt toSQLer) (string, error) {
	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		r.logError(logMsgBuildQueryFailed, toSQLErr)
		return "", errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// executeQuery executes the SQL query and returns rows with timing information.
func (r *Repository) executeQuery(ctx context.Context, sqlQuery string, action string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := r.db.Query(ctx, sqlQuery)
	r.logQueryWithDuration(sqlQuery, action, time.Since(start))

	if queryErr != nil {
		r.logError(logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, errors.Join(ErrQueryingFailed, queryErr)
	}

	return rows, nil
}

// executeStatement executes a write statement and returns the number of affected rows.
func (r *Repository) executeStatement(ctx context.Context, sqlQuery string, action string) (int64, error) {
	start := time.Now()
	result, execErr := r.db.Exec(ctx, sqlQuery)
	r.logQueryWithDuration(sqlQuery, action, time.Since(start))

	if execErr != nil {
		r.logError(logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return 0, errors.Join(ErrWritingFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		r.logError(logMsgDBExecFailed, rowsAffectedErr)
		return 0, errors.Join(ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, nil
}

// closeRows safely closes database rows and logs any errors.
func (r *Repository) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		r.logWarn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

/***** streaming rows *****/

// rowIterator streams scanned rows and implements sked.Iterator.
type rowIterator[T any] struct {
	repo   *Repository
	rows   adapters.DBRows
	scan   func(rows adapters.DBRows) (T, error)
	cur    T
	err    error
	closed bool
}

func newRowIterator[T any](repo *Repository, rows adapters.DBRows, scan func(adapters.DBRows) (T, error)) *rowIterator[T] {
	return &rowIterator[T]{repo: repo, rows: rows, scan: scan}
}

func (it *rowIterator[T]) Next() bool {
	if it.closed || it.err != nil {
		return false
	}

	if !it.rows.Next() {
		if rowsErr := it.rows.Err(); rowsErr != nil {
			it.err = errors.Join(ErrQueryingFailed, rowsErr)
		}

		return false
	}

	value, scanErr := it.scan(it.rows)
	if scanErr != nil {
		it.repo.logError(logMsgScanRowFailed, scanErr)
		it.err = scanErr

		return false
	}

	it.cur = value

	return true
}

func (it *rowIterator[T]) Value() T {
	return it.cur
}

func (it *rowIterator[T]) Err() error {
	return it.err
}

func (it *rowIterator[T]) Close() error {
	if it.closed {
		return nil
	}

	it.closed = true

	return it.rows.Close()
}

/***** JSON columns *****/

func encodeJSON[M ~map[string]V, V any](m M) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}

	data, err := jsoniter.ConfigFastest.Marshal(m)
	if err != nil {
		return "", errors.Join(ErrEncodingJSONFailed, err)
	}

	return string(data), nil
}

func decodeJSON[M ~map[string]V, V any](data []byte) (M, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var m M
	if err := jsoniter.ConfigFastest.Unmarshal(data, &m); err != nil {
		return nil, errors.Join(ErrDecodingJSONFailed, err)
	}

	if len(m) == 0 {
		return nil, nil
	}

	return m, nil
}
