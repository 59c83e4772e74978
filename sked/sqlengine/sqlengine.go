package sqlengine

import (
	"database/sql"
	"math"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/sked-go/sked/sqlengine/internal/adapters"
)

const (
	// DialectPostgres targets PostgreSQL through pgx, lib/pq or sqlx.
	DialectPostgres = "postgres"
	// DialectSQLite targets SQLite through modernc.org/sqlite.
	DialectSQLite = "sqlite3"

	defaultEventTableName    = "events"
	defaultTemplateTableName = "recurring_event_templates"
	defaultAccrualTableName  = "accruals"

	logMsgBuildQueryFailed   = "failed to build query"
	logMsgDBQueryFailed      = "database query execution failed"
	logMsgDBExecFailed       = "database execution failed"
	logMsgCloseRowsFailed    = "failed to close database rows"
	logMsgScanRowFailed      = "failed to scan database row"
	logMsgSQLExecuted        = "executed sql for: "
	logMsgEventAppended      = "event appended"
	logMsgTemplateAppended   = "recurring event template appended"
	logMsgAccrualSaved       = "accrual checkpoint saved"
	logMsgSchemaCreated      = "schema created"
	logAttrError             = "error"
	logAttrQuery             = "query"
	logAttrDurationMS        = "duration_ms"
	logAttrEventID           = "event_id"
	logAttrTemplateID        = "template_id"
	logAttrAmendedFrom       = "amended_from"
	logAttrDate              = "date"
	logAttrDialect           = "dialect"
	logActionQueryEvents     = "query events"
	logActionQueryTemplates  = "query templates"
	logActionQueryAccruals   = "query accruals"
	logActionAppendEvent     = "append event"
	logActionCheckEvent      = "check event"
	logActionAppendTemplate  = "append template"
	logActionSaveAccrual     = "save accrual"
	logActionCreateSchema    = "create schema"
	colID                    = "id"
	colOccurred              = "occurred"
	colCreatedMS             = "created_ms"
	colTags                  = "tags"
	colFields                = "fields"
	colAmendedFrom           = "amended_from"
	colSourceTemplate        = "source_template"
	colAmended               = "amended"
	colRule                  = "rule"
	colRangeLower            = "range_lower"
	colRangeUpper            = "range_upper"
	colFactory               = "factory"
	colAccruedUntil          = "accrued_until"
	colAmounts               = "amounts"
	aliasEvent               = "e"
	aliasAmendment           = "a"
)

// Logger interface for SQL query logging, operational messages, warnings, and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Repository persists the sked data model in one of the supported SQL dialects.
type Repository struct {
	db                adapters.DBAdapter
	dialect           string
	eventTableName    string
	templateTableName string
	accrualTableName  string
	clock             func() time.Time
	logger            Logger
}

// Option defines a functional option for configuring Repository.
type Option func(*Repository) error

// WithDialect selects the SQL dialect; DialectPostgres is the default.
func WithDialect(dialect string) Option {
	return func(r *Repository) error {
		switch dialect {
		case DialectPostgres, DialectSQLite:
			r.dialect = dialect
			return nil
		default:
			return ErrUnsupportedDialect
		}
	}
}

// WithEventTableName sets the table name for concrete events.
func WithEventTableName(tableName string) Option {
	return func(r *Repository) error {
		if tableName == "" {
			return ErrEmptyTableName
		}

		r.eventTableName = tableName

		return nil
	}
}

// WithTemplateTableName sets the table name for recurring event templates.
func WithTemplateTableName(tableName string) Option {
	return func(r *Repository) error {
		if tableName == "" {
			return ErrEmptyTableName
		}

		r.templateTableName = tableName

		return nil
	}
}

// WithAccrualTableName sets the table name for accrual checkpoints.
func WithAccrualTableName(tableName string) Option {
	return func(r *Repository) error {
		if tableName == "" {
			return ErrEmptyTableName
		}

		r.accrualTableName = tableName

		return nil
	}
}

// WithClock sets the clock used for creation timestamps.
func WithClock(clock func() time.Time) Option {
	return func(r *Repository) error {
		if clock == nil {
			return ErrNilClock
		}

		r.clock = clock

		return nil
	}
}

// WithLogger sets the logger for the Repository.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: appended events, templates and checkpoints (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(r *Repository) error {
		r.logger = logger
		return nil
	}
}

// NewRepositoryFromPGXPool creates a new Repository using a pgx Pool with optional configuration.
func NewRepositoryFromPGXPool(db *pgxpool.Pool, options ...Option) (*Repository, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newRepository(adapters.NewPGXAdapter(db), options)
}

// NewRepositoryFromPGXPoolAndReplica creates a new Repository that writes to primary and
// reads from replica.
func NewRepositoryFromPGXPoolAndReplica(primary *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*Repository, error) {
	if primary == nil || replica == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newRepository(adapters.NewPGXAdapterWithReplica(primary, replica), options)
}

// NewRepositoryFromSQLDB creates a new Repository using a sql.DB with optional configuration.
func NewRepositoryFromSQLDB(db *sql.DB, options ...Option) (*Repository, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newRepository(adapters.NewSQLAdapter(db), options)
}

// NewRepositoryFromSQLX creates a new Repository using a sqlx.DB with optional configuration.
func NewRepositoryFromSQLX(db *sqlx.DB, options ...Option) (*Repository, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newRepository(adapters.NewSQLXAdapter(db), options)
}

func newRepository(db adapters.DBAdapter, options []Option) (*Repository, error) {
	r := &Repository{
		db:                db,
		dialect:           DialectPostgres,
		eventTableName:    defaultEventTableName,
		templateTableName: defaultTemplateTableName,
		accrualTableName:  defaultAccrualTableName,
		clock:             time.Now,
	}

	for _, option := range options {
		if err := option(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Repository) builder() goqu.DialectWrapper {
	return goqu.Dialect(r.dialect)
}

// cast wraps a value in a dialect-specific type cast. PostgreSQL resolves untyped literals in
// INSERT ... SELECT as text, SQLite needs no cast.
func (r *Repository) cast(pgType string, value any) any {
	if r.dialect != DialectPostgres {
		return goqu.V(value)
	}

	return goqu.L("?::"+pgType, value)
}

func (r *Repository) now() time.Time {
	return r.clock().UTC().Truncate(time.Millisecond)
}

// logQueryWithDuration logs SQL statements with execution time at debug level if the logger is configured.
func (r *Repository) logQueryWithDuration(sqlQuery string, action string, duration time.Duration) {
	if r.logger != nil {
		r.logger.Debug(logMsgSQLExecuted+action, logAttrQuery, sqlQuery, logAttrDurationMS, toMilliseconds(duration))
	}
}

func (r *Repository) logOperation(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

func (r *Repository) logError(msg string, err error, args ...any) {
	if r.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		r.logger.Error(msg, allArgs...)
	}
}

func (r *Repository) logWarn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
