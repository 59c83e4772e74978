package config

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/AntonStoeckl/sked-go/sked/sqlengine"
)

var (
	ErrParsingDSNFailed   = errors.New("parsing dsn failed")
	ErrOpeningDBFailed    = errors.New("opening database failed")
	ErrPingingDBFailed    = errors.New("pinging database failed")
	ErrCreatingRepoFailed = errors.New("creating repository failed")
)

// PGXPoolConfig creates a pgxpool.Config for dsn with the pool limits of db.
func PGXPoolConfig(dsn string, db DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Join(ErrParsingDSNFailed, err)
	}

	poolConfig.MaxConns = int32(db.MaxOpenConns) //nolint:gosec
	poolConfig.MinConns = int32(db.MinConns)     //nolint:gosec
	poolConfig.MaxConnLifetime = db.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = db.ConnMaxIdleTime
	poolConfig.HealthCheckPeriod = db.ConnMaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = db.ConnectTimeout

	return poolConfig, nil
}

// OpenSQLDB opens and pings a *sql.DB for the "postgres" or "sqlite" driver.
func OpenSQLDB(ctx context.Context, db DatabaseConfig) (*sql.DB, error) {
	conn, err := sql.Open(sqlDriverName(db.Driver), db.DSN)
	if err != nil {
		return nil, errors.Join(ErrOpeningDBFailed, err)
	}

	configurePool(conn, db)

	if pingErr := ping(ctx, conn, db); pingErr != nil {
		_ = conn.Close()
		return nil, pingErr
	}

	return conn, nil
}

// OpenSQLX opens and pings a *sqlx.DB; "sqlx" itself uses the lib/pq driver.
func OpenSQLX(ctx context.Context, db DatabaseConfig) (*sqlx.DB, error) {
	conn, err := sqlx.Open(sqlDriverName(db.Driver), db.DSN)
	if err != nil {
		return nil, errors.Join(ErrOpeningDBFailed, err)
	}

	configurePool(conn.DB, db)

	if pingErr := ping(ctx, conn.DB, db); pingErr != nil {
		_ = conn.Close()
		return nil, pingErr
	}

	return conn, nil
}

// OpenRepository connects to the configured database and returns a sqlengine.Repository over it.
// The returned close function releases every pool that was opened.
func OpenRepository(
	ctx context.Context,
	db DatabaseConfig,
	options ...sqlengine.Option,
) (*sqlengine.Repository, func(), error) {

	options = append(tableOptions(db), options...)

	switch db.Driver {
	case DriverPGX:
		return openPGXRepository(ctx, db, options)

	case DriverPostgres, DriverSQLite:
		conn, err := OpenSQLDB(ctx, db)
		if err != nil {
			return nil, nil, err
		}

		repo, err := sqlengine.NewRepositoryFromSQLDB(conn, append([]sqlengine.Option{sqlengine.WithDialect(dialectOf(db.Driver))}, options...)...)
		if err != nil {
			_ = conn.Close()
			return nil, nil, errors.Join(ErrCreatingRepoFailed, err)
		}

		return repo, func() { _ = conn.Close() }, nil

	case DriverSQLX:
		conn, err := OpenSQLX(ctx, db)
		if err != nil {
			return nil, nil, err
		}

		repo, err := sqlengine.NewRepositoryFromSQLX(conn, options...)
		if err != nil {
			_ = conn.Close()
			return nil, nil, errors.Join(ErrCreatingRepoFailed, err)
		}

		return repo, func() { _ = conn.Close() }, nil

	default:
		return nil, nil, ErrUnsupportedDriver
	}
}

func openPGXRepository(
	ctx context.Context,
	db DatabaseConfig,
	options []sqlengine.Option,
) (*sqlengine.Repository, func(), error) {

	primary, err := newPGXPool(ctx, db.DSN, db)
	if err != nil {
		return nil, nil, err
	}

	if db.ReplicaDSN == "" {
		repo, repoErr := sqlengine.NewRepositoryFromPGXPool(primary, options...)
		if repoErr != nil {
			primary.Close()
			return nil, nil, errors.Join(ErrCreatingRepoFailed, repoErr)
		}

		return repo, primary.Close, nil
	}

	replica, err := newPGXPool(ctx, db.ReplicaDSN, db)
	if err != nil {
		primary.Close()
		return nil, nil, err
	}

	closeAll := func() {
		replica.Close()
		primary.Close()
	}

	repo, err := sqlengine.NewRepositoryFromPGXPoolAndReplica(primary, replica, options...)
	if err != nil {
		closeAll()
		return nil, nil, errors.Join(ErrCreatingRepoFailed, err)
	}

	return repo, closeAll, nil
}

func newPGXPool(ctx context.Context, dsn string, db DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := PGXPoolConfig(dsn, db)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Join(ErrOpeningDBFailed, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, db.ConnectTimeout)
	defer cancel()

	if pingErr := pool.Ping(pingCtx); pingErr != nil {
		pool.Close()
		return nil, errors.Join(ErrPingingDBFailed, pingErr)
	}

	return pool, nil
}

func configurePool(conn *sql.DB, db DatabaseConfig) {
	conn.SetMaxOpenConns(db.MaxOpenConns)
	conn.SetMaxIdleConns(db.MinConns)
	conn.SetConnMaxLifetime(db.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(db.ConnMaxIdleTime)
}

func ping(ctx context.Context, conn *sql.DB, db DatabaseConfig) error {
	pingCtx, cancel := context.WithTimeout(ctx, db.ConnectTimeout)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		return errors.Join(ErrPingingDBFailed, err)
	}

	return nil
}

func sqlDriverName(driver string) string {
	if driver == DriverSQLite {
		return "sqlite"
	}

	return "postgres"
}

func dialectOf(driver string) string {
	if driver == DriverSQLite {
		return sqlengine.DialectSQLite
	}

	return sqlengine.DialectPostgres
}

func tableOptions(db DatabaseConfig) []sqlengine.Option {
	options := make([]sqlengine.Option, 0, 3)

	if db.EventTable != "" {
		options = append(options, sqlengine.WithEventTableName(db.EventTable))
	}

	if db.TemplateTable != "" {
		options = append(options, sqlengine.WithTemplateTableName(db.TemplateTable))
	}

	if db.AccrualTable != "" {
		options = append(options, sqlengine.WithAccrualTableName(db.AccrualTable))
	}

	return options
}
