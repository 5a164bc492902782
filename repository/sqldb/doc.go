// Package sqldb implements tokenauth.Repository over database/sql.
//
// SQLite (modernc.org/sqlite) and PostgreSQL (pgx stdlib driver) are
// supported. Migrate applies the bundled users table migration with goose.
package sqldb
