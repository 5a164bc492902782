package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrEthical07/tokenauth"
	"github.com/MrEthical07/tokenauth/internal/sqlquery"
)

// ErrConflict is returned by Create on a unique constraint violation.
var ErrConflict = errors.New("conflict")

// Querier is the subset of *pgxpool.Pool the repository uses. A pgx.Tx also
// satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Config describes the users table.
type Config struct {
	Table        string
	Fillable     []string
	QueryTimeout time.Duration
}

var _ tokenauth.Repository = (*Repository)(nil)

type Repository struct {
	q        Querier
	table    string
	fillable []string
	timeout  time.Duration
}

func New(q Querier, cfg Config) (*Repository, error) {
	if q == nil {
		return nil, errors.New("postgres: nil querier")
	}
	if cfg.Table == "" {
		cfg.Table = "users"
	}
	if _, err := sqlquery.Ident(cfg.Table); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	for _, col := range cfg.Fillable {
		if _, err := sqlquery.Ident(col); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
	}
	return &Repository{
		q:        q,
		table:    cfg.Table,
		fillable: append([]string(nil), cfg.Fillable...),
		timeout:  cfg.QueryTimeout,
	}, nil
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Repository) Table() string { return r.table }

func (r *Repository) Fillable() []string { return append([]string(nil), r.fillable...) }

func (r *Repository) Create(ctx context.Context, fields map[string]any) (tokenauth.Record, error) {
	q, err := sqlquery.Insert(sqlquery.Dollar, r.table, sqlquery.Filter(fields, r.fillable))
	if err != nil {
		return nil, fmt.Errorf("user insert: %w", err)
	}

	qctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var id int64
	if err := r.q.QueryRow(qctx, q.SQL, q.Args...).Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("user insert: %w", err)
	}
	return r.FindByID(ctx, id)
}

func (r *Repository) UpdateByID(ctx context.Context, id int64, fields map[string]any) (bool, error) {
	fields = sqlquery.Filter(fields, r.fillable)
	if len(fields) == 0 {
		return false, nil
	}
	q, err := sqlquery.UpdateByID(sqlquery.Dollar, r.table, id, fields)
	if err != nil {
		return false, fmt.Errorf("user update: %w", err)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.q.Exec(ctx, q.SQL, q.Args...)
	if err != nil {
		return false, fmt.Errorf("user update: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) FindByID(ctx context.Context, id int64) (tokenauth.Record, error) {
	return r.selectOne(ctx, nil, nil, map[string]any{"id": id})
}

func (r *Repository) FindByAttribute(ctx context.Context, attrs map[string]any) (tokenauth.Record, error) {
	return r.selectOne(ctx, nil, nil, attrs)
}

func (r *Repository) FindByCredentials(ctx context.Context, credentials, conditions map[string]any, columns []string) (tokenauth.Record, error) {
	return r.selectOne(ctx, columns, credentials, conditions)
}

func (r *Repository) selectOne(ctx context.Context, columns []string, anyOf, allOf map[string]any) (tokenauth.Record, error) {
	q, err := sqlquery.SelectOne(sqlquery.Dollar, r.table, columns, anyOf, allOf)
	if err != nil {
		return nil, fmt.Errorf("user select: %w", err)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.q.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("user select: %w", err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tokenauth.ErrRecordNotFound
		}
		return nil, fmt.Errorf("user select: %w", err)
	}
	return tokenauth.Record(row), nil
}
