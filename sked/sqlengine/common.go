package sqlengine

import "errors"

// ErrNilDatabaseConnection is returned when a nil database connection is provided.
var ErrNilDatabaseConnection = errors.New("database connection must not be nil")

// ErrEmptyTableName is returned when an empty table name is provided.
var ErrEmptyTableName = errors.New("table name must not be empty")

// ErrUnsupportedDialect is returned for dialects other than DialectPostgres and DialectSQLite.
var ErrUnsupportedDialect = errors.New("unsupported sql dialect")

// ErrNilClock is returned when WithClock receives nil.
var ErrNilClock = errors.New("clock must not be nil")

// ErrBuildingQueryFailed is returned when the goqu query builder fails to produce SQL.
var ErrBuildingQueryFailed = errors.New("building query failed")

// ErrQueryingFailed is returned when a select statement fails.
var ErrQueryingFailed = errors.New("querying the database failed")

// ErrScanningDBRowFailed is returned when a result row cannot be scanned.
var ErrScanningDBRowFailed = errors.New("scanning db row failed")

// ErrEncodingJSONFailed is returned when tags, fields or accrual values cannot be encoded.
var ErrEncodingJSONFailed = errors.New("encoding json column failed")

// ErrDecodingJSONFailed is returned when a stored JSON column cannot be decoded.
var ErrDecodingJSONFailed = errors.New("decoding json column failed")

// ErrWritingFailed is returned when an insert or DDL statement fails.
var ErrWritingFailed = errors.New("writing to the database failed")

// ErrGettingRowsAffectedFailed is returned when the affected row count is unavailable.
var ErrGettingRowsAffectedFailed = errors.New("getting rows affected failed")

// ErrUnknownEvent is returned when an amendment references an event that does not exist.
var ErrUnknownEvent = errors.New("amended event does not exist")

// ErrAlreadyAmended is returned when an amendment references an event that already has one.
var ErrAlreadyAmended = errors.New("event was already amended")

// ErrAlreadyMaterialized is returned when an occurrence of a template is stored twice for the same date.
var ErrAlreadyMaterialized = errors.New("occurrence was already materialized")

// ErrNotAnOccurrence is returned when Materialize receives something other than a virtual occurrence.
var ErrNotAnOccurrence = errors.New("event is not a virtual occurrence of a template")

// ErrInvalidTemplate is returned when a template's range or rule is invalid.
var ErrInvalidTemplate = errors.New("invalid recurring event template")
