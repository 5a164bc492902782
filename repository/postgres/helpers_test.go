package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errNoDB = errors.New("no database")

type nopQuerier struct{}

func (*nopQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, errNoDB }

func (*nopQuerier) QueryRow(context.Context, string, ...any) pgx.Row { return errRow{} }

func (*nopQuerier) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNoDB
}

type errRow struct{}

func (errRow) Scan(...any) error { return errNoDB }
