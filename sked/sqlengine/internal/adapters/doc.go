// Package adapters provide database adapter implementations for the sked SQL repository.
//
// pgx.Pool, sql.DB and sqlx.DB are supported. All adapters execute fully interpolated
// SQL strings and expose the result rows through the common DBRows interface, so the
// repository streams rows lazily regardless of the connection type.
package adapters
