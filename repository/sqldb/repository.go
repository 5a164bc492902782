package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrEthical07/tokenauth"
	"github.com/MrEthical07/tokenauth/internal/sqlquery"
)

// Dialect names the SQL flavor behind a *sql.DB.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Config describes the table a Repository works on.
type Config struct {
	// Table defaults to "users".
	Table string
	// Fillable lists the columns Create and UpdateByID write. Other keys are
	// dropped.
	Fillable []string
	Dialect  Dialect
}

// ErrInvalidColumn is returned when an attribute key is not a plain column
// name.
var ErrInvalidColumn = sqlquery.ErrInvalidIdentifier

var _ tokenauth.Repository = (*Repository)(nil)

// Repository is a tokenauth.Repository backed by database/sql. The table must
// have an integer "id" primary key.
type Repository struct {
	db       *sql.DB
	table    string
	fillable []string
	ph       sqlquery.Placeholder
}

// New validates cfg and returns a Repository using db.
func New(db *sql.DB, cfg Config) (*Repository, error) {
	const op = "sqldb.New"

	if db == nil {
		return nil, fmt.Errorf("%s: nil db", op)
	}
	if cfg.Table == "" {
		cfg.Table = "users"
	}
	if _, err := sqlquery.Ident(cfg.Table); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, col := range cfg.Fillable {
		if _, err := sqlquery.Ident(col); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	var ph sqlquery.Placeholder
	switch cfg.Dialect {
	case SQLite, "":
		ph = sqlquery.Question
	case Postgres:
		ph = sqlquery.Dollar
	default:
		return nil, fmt.Errorf("%s: unknown dialect %q", op, cfg.Dialect)
	}

	return &Repository{
		db:       db,
		table:    cfg.Table,
		fillable: append([]string(nil), cfg.Fillable...),
		ph:       ph,
	}, nil
}

func (r *Repository) Table() string { return r.table }

func (r *Repository) Fillable() []string { return append([]string(nil), r.fillable...) }

func (r *Repository) Create(ctx context.Context, fields map[string]any) (tokenauth.Record, error) {
	const op = "sqldb.Create"

	q, err := sqlquery.Insert(r.ph, r.table, sqlquery.Filter(fields, r.fillable))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, q.SQL, q.Args...).Scan(&id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rec, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: reload: %w", op, err)
	}
	return rec, nil
}

func (r *Repository) UpdateByID(ctx context.Context, id int64, fields map[string]any) (bool, error) {
	const op = "sqldb.UpdateByID"

	fields = sqlquery.Filter(fields, r.fillable)
	if len(fields) == 0 {
		return false, nil
	}

	q, err := sqlquery.UpdateByID(r.ph, r.table, id, fields)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	res, err := r.db.ExecContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return n > 0, nil
}

func (r *Repository) FindByID(ctx context.Context, id int64) (tokenauth.Record, error) {
	return r.findOne(ctx, "sqldb.FindByID", nil, nil, map[string]any{"id": id})
}

func (r *Repository) FindByAttribute(ctx context.Context, attrs map[string]any) (tokenauth.Record, error) {
	return r.findOne(ctx, "sqldb.FindByAttribute", nil, nil, attrs)
}

func (r *Repository) FindByCredentials(ctx context.Context, credentials, conditions map[string]any, columns []string) (tokenauth.Record, error) {
	return r.findOne(ctx, "sqldb.FindByCredentials", columns, credentials, conditions)
}

func (r *Repository) findOne(ctx context.Context, op string, columns []string, anyOf, allOf map[string]any) (tokenauth.Record, error) {
	q, err := sqlquery.SelectOne(r.ph, r.table, columns, anyOf, allOf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := r.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	rec, err := scanRecord(rows)
	if err != nil {
		if errors.Is(err, tokenauth.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

// scanRecord reads the first row into a Record. Byte slices become strings.
func scanRecord(rows *sql.Rows) (tokenauth.Record, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, tokenauth.ErrRecordNotFound
	}

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	rec := make(tokenauth.Record, len(cols))
	for i, col := range cols {
		if b, ok := values[i].([]byte); ok {
			rec[col] = string(b)
			continue
		}
		rec[col] = values[i]
	}
	return rec, nil
}
