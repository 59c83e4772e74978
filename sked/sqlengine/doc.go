// Package sqlengine stores concrete events, recurring event templates and accrual checkpoints
// in PostgreSQL or SQLite and implements sked.EventRepository, sked.TemplateRepository and
// sked.AccrualStore on top of them.
//
// Queries are built with goqu and executed as interpolated SQL through one of three
// connection types: pgxpool.Pool, sql.DB (lib/pq or modernc.org/sqlite) and sqlx.DB.
// Result rows are streamed; an iterator holds its rows open until it is closed.
//
//	repo, err := sqlengine.NewRepositoryFromSQLDB(db, sqlengine.WithDialect(sqlengine.DialectSQLite))
//	if err != nil { ... }
//	if err := repo.CreateSchema(ctx); err != nil { ... }
//	engine, err := sked.NewEngine(repo, repo)
//
// Dates are stored as DATE columns, creation timestamps as unix milliseconds, and tags,
// fields and template factories as JSON.
package sqlengine
