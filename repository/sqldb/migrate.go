package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// Migrate applies the bundled migrations for dialect.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	const op = "sqldb.Migrate"

	var gooseDialect, dir string
	switch dialect {
	case SQLite:
		gooseDialect, dir = "sqlite3", "migrations/sqlite"
	case Postgres:
		gooseDialect, dir = "postgres", "migrations/postgres"
	default:
		return fmt.Errorf("%s: unknown dialect %q", op, dialect)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("%s: set dialect: %w", op, err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("%s: up: %w", op, err)
	}
	return nil
}
