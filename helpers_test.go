package tokenauth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/tokenauth/password"
)

const testPassword = "s3cret!pw"

// memRepository is an in-memory Repository for service tests.
type memRepository struct {
	mu       sync.Mutex
	table    string
	fillable []string
	rows     map[int64]Record
	nextID   int64

	findByIDCalls int
	updates       int
}

func newMemRepository(fillable ...string) *memRepository {
	if len(fillable) == 0 {
		fillable = []string{"name", "email", "password", "role", "active"}
	}
	return &memRepository{table: "users", fillable: fillable, rows: map[int64]Record{}}
}

func (r *memRepository) Create(_ context.Context, fields map[string]any) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	row := Record(fields).Clone()
	row["id"] = r.nextID
	r.rows[r.nextID] = row
	return row.Clone(), nil
}

func (r *memRepository) UpdateByID(_ context.Context, id int64, fields map[string]any) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return false, nil
	}
	for k, v := range fields {
		row[k] = v
	}
	r.updates++
	return true, nil
}

func (r *memRepository) FindByID(_ context.Context, id int64) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findByIDCalls++
	row, ok := r.rows[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return row.Clone(), nil
}

func (r *memRepository) FindByAttribute(_ context.Context, attrs map[string]any) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := int64(1); id <= r.nextID; id++ {
		row, ok := r.rows[id]
		if ok && matchAll(row, attrs) {
			return row.Clone(), nil
		}
	}
	return nil, ErrRecordNotFound
}

func (r *memRepository) FindByCredentials(_ context.Context, credentials, conditions map[string]any, columns []string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := int64(1); id <= r.nextID; id++ {
		row, ok := r.rows[id]
		if !ok || !matchAny(row, credentials) || !matchAll(row, conditions) {
			continue
		}
		if columns == nil {
			return row.Clone(), nil
		}
		out, _ := row.Project(columns)
		return out, nil
	}
	return nil, ErrRecordNotFound
}

func (r *memRepository) Table() string      { return r.table }
func (r *memRepository) Fillable() []string { return r.fillable }

func (r *memRepository) row(id int64) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id].Clone()
}

func matchAny(row Record, attrs map[string]any) bool {
	for k, v := range attrs {
		if got, ok := row[k]; ok && fmt.Sprint(got) == fmt.Sprint(v) {
			return true
		}
	}
	return false
}

func matchAll(row Record, attrs map[string]any) bool {
	for k, v := range attrs {
		if got, ok := row[k]; !ok || fmt.Sprint(got) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

// testClock is a settable clock shared by the service and the token engine.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func noEnv(string) (string, bool) { return "", false }

func newTestHasher(t testing.TB) *password.Bcrypt {
	t.Helper()
	h, err := password.NewBcrypt(4)
	require.NoError(t, err)
	return h
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWTKey = "access-secret-for-tests"
	cfg.JWTRefreshKey = "refresh-secret-for-tests"
	cfg.AppKey = "app-key-for-tests"
	cfg.Metrics.Enabled = true
	return cfg
}

type jwtFixture struct {
	svc   *JWTService
	repo  *memRepository
	mr    *miniredis.Miniredis
	clock *testClock
	user  Record
}

type fixtureOption func(*Builder, *Config)

func newJWTFixture(t *testing.T, opts ...fixtureOption) *jwtFixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := newMemRepository()
	clock := newTestClock()
	hasher := newTestHasher(t)

	cfg := testConfig()
	b := New().
		WithRedis(rdb).
		WithRepository(repo).
		WithHasher(hasher).
		WithClock(clock.Now).
		WithLookupEnv(noEnv)
	for _, opt := range opts {
		opt(b, &cfg)
	}
	svc, err := b.WithConfig(cfg).BuildJWT()
	require.NoError(t, err)

	t.Cleanup(func() {
		svc.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &jwtFixture{
		svc:   svc,
		repo:  repo,
		mr:    mr,
		clock: clock,
		user:  seedUser(t, repo, hasher, testPassword),
	}
}

func seedUser(t testing.TB, repo *memRepository, hasher Hasher, plain string) Record {
	t.Helper()
	hash, err := hasher.Hash(plain)
	require.NoError(t, err)
	user, err := repo.Create(context.Background(), map[string]any{
		"name":     gofakeit.Name(),
		"email":    gofakeit.Email(),
		"password": hash,
		"role":     "member",
		"active":   true,
	})
	require.NoError(t, err)
	return user
}

func credentials(user Record, plain string) map[string]any {
	return map[string]any{"email": user.String("email"), "password": plain}
}
