// Package config loads the sked runtime configuration and opens the database connections it names.
//
// Configuration comes from an optional YAML file; SKED_* environment variables override single
// values on top of it. Connections are created for one of the supported drivers:
//
//   - "pgx": a pgxpool.Pool, optionally with a read replica
//   - "postgres": a database/sql pool using lib/pq
//   - "sqlx": a sqlx pool using lib/pq
//   - "sqlite": a database/sql pool using modernc.org/sqlite
package config
