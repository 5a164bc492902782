package sqldb

import (
	"context"
	"database/sql"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/MrEthical07/tokenauth"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(context.Background(), db, SQLite))

	repo, err := New(db, Config{Fillable: []string{"name", "email", "password", "role", "active"}})
	require.NoError(t, err)
	return repo
}

func createUser(t *testing.T, repo *Repository, fields map[string]any) tokenauth.Record {
	t.Helper()
	base := map[string]any{
		"name":     gofakeit.Name(),
		"email":    gofakeit.Email(),
		"password": "hash",
	}
	for k, v := range fields {
		base[k] = v
	}
	rec, err := repo.Create(context.Background(), base)
	require.NoError(t, err)
	return rec
}

func TestNewValidatesConfig(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = New(db, Config{Table: "users; drop"})
	assert.Error(t, err)
	_, err = New(db, Config{Fillable: []string{"bad col"}})
	assert.Error(t, err)
	_, err = New(db, Config{Dialect: "oracle"})
	assert.Error(t, err)
	_, err = New(nil, Config{})
	assert.Error(t, err)

	repo, err := New(db, Config{})
	require.NoError(t, err)
	assert.Equal(t, "users", repo.Table())
}

func TestCreateDropsUnfillable(t *testing.T) {
	repo := newTestRepository(t)

	rec := createUser(t, repo, map[string]any{"email": "ann@example.com", "id": 99, "created_at": "1999-01-01"})

	id, ok := rec.ID()
	require.True(t, ok)
	assert.NotEqual(t, int64(99), id)
	assert.Equal(t, "ann@example.com", rec.String("email"))
	assert.Equal(t, "user", rec.String("role"))
	assert.NotEqual(t, "1999-01-01", rec.String("created_at"))
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo := newTestRepository(t)

	createUser(t, repo, map[string]any{"email": "dup@example.com"})
	_, err := repo.Create(context.Background(), map[string]any{"email": "dup@example.com", "password": "x"})
	assert.Error(t, err)
}

func TestFindByID(t *testing.T) {
	repo := newTestRepository(t)
	rec := createUser(t, repo, nil)
	id, _ := rec.ID()

	got, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, rec.String("email"), got.String("email"))

	_, err = repo.FindByID(context.Background(), id+100)
	assert.ErrorIs(t, err, tokenauth.ErrRecordNotFound)
}

func TestFindByAttribute(t *testing.T) {
	repo := newTestRepository(t)
	createUser(t, repo, map[string]any{"email": "a@example.com", "role": "admin"})
	createUser(t, repo, map[string]any{"email": "b@example.com", "role": "user"})

	got, err := repo.FindByAttribute(context.Background(), map[string]any{"role": "user"})
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", got.String("email"))

	_, err = repo.FindByAttribute(context.Background(), map[string]any{"role": "user", "email": "a@example.com"})
	assert.ErrorIs(t, err, tokenauth.ErrRecordNotFound)

	_, err = repo.FindByAttribute(context.Background(), map[string]any{"no such": 1})
	assert.ErrorIs(t, err, ErrInvalidColumn)
}

func TestFindByCredentials(t *testing.T) {
	repo := newTestRepository(t)
	createUser(t, repo, map[string]any{"email": "c@example.com", "name": "carol", "active": 0})
	createUser(t, repo, map[string]any{"email": "d@example.com", "name": "dave", "active": 1})

	ctx := context.Background()

	got, err := repo.FindByCredentials(ctx, map[string]any{"email": "dave", "name": "dave"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "d@example.com", got.String("email"))

	_, err = repo.FindByCredentials(ctx, map[string]any{"email": "c@example.com"}, map[string]any{"active": 1}, nil)
	assert.ErrorIs(t, err, tokenauth.ErrRecordNotFound)

	got, err = repo.FindByCredentials(ctx, map[string]any{"email": "d@example.com"}, nil, []string{"id", "email"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "d@example.com", got.String("email"))
}

func TestUpdateByID(t *testing.T) {
	repo := newTestRepository(t)
	rec := createUser(t, repo, nil)
	id, _ := rec.ID()
	ctx := context.Background()

	ok, err := repo.UpdateByID(ctx, id, map[string]any{"password": "new-hash", "id": 500})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.String("password"))

	ok, err = repo.UpdateByID(ctx, id+1000, map[string]any{"password": "x"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.UpdateByID(ctx, id, map[string]any{"created_at": "x"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db, SQLite))
	require.NoError(t, Migrate(ctx, db, SQLite))
	assert.Error(t, Migrate(ctx, db, "oracle"))
}
