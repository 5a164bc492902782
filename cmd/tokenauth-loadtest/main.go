// Command tokenauth-loadtest measures Authenticate and Refresh throughput of
// a JWTService backed by Redis (or miniredis) and an in-memory SQLite table.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/MrEthical07/tokenauth"
	"github.com/MrEthical07/tokenauth/internal/obs"
	"github.com/MrEthical07/tokenauth/password"
	"github.com/MrEthical07/tokenauth/repository/sqldb"
)

const seedPassword = "load#test1"

type options struct {
	users       int
	concurrency int
	ops         int
	redisAddr   string
}

// issued is one seeded user's token pair.
type issued struct {
	access  string
	refresh string
}

func main() {
	var opts options
	flag.IntVar(&opts.users, "users", 1000, "users to seed and log in")
	flag.IntVar(&opts.concurrency, "concurrency", 64, "concurrent workers")
	flag.IntVar(&opts.ops, "ops", 50000, "operations per phase")
	flag.StringVar(&opts.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "redis address; miniredis when empty")
	flag.Parse()

	logger, err := obs.NewLogger(obs.LogConfig{Level: "info", Pretty: true, App: "tokenauth-loadtest", Env: "local"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), logger, opts); err != nil {
		logger.Error("load test failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger, opts options) error {
	if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return fmt.Errorf("users, concurrency and ops must be positive")
	}

	client, closeRedis, err := openRedis(opts.redisAddr)
	if err != nil {
		return err
	}
	defer closeRedis()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	svc, err := newService(ctx, db, client)
	if err != nil {
		return err
	}
	defer svc.Close()

	start := time.Now()
	tokens, err := seed(ctx, svc, opts.users)
	if err != nil {
		return err
	}
	logger.Info("users seeded", zap.Int("users", opts.users), zap.Duration("took", time.Since(start)))

	phases := []struct {
		name string
		op   func(r *rand.Rand) error
	}{
		{"authenticate", func(r *rand.Rand) error {
			_, err := svc.Authenticate(ctx, tokens[r.Intn(len(tokens))].access)
			return err
		}},
		{"refresh", func(r *rand.Rand) error {
			_, err := svc.Refresh(ctx, tokens[r.Intn(len(tokens))].refresh, nil)
			return err
		}},
	}
	for _, p := range phases {
		s := runPhase(opts.ops, opts.concurrency, p.op)
		logger.Info("phase done",
			zap.String("phase", p.name),
			zap.Int("ops", s.ops),
			zap.Int64("failures", s.failures),
			zap.Float64("ops_per_sec", s.rate()),
			zap.Duration("p50", s.quantile(0.50)),
			zap.Duration("p95", s.quantile(0.95)),
			zap.Duration("p99", s.quantile(0.99)),
		)
	}
	return nil
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		return client, func() { _ = client.Close() }, nil
	}
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func newService(ctx context.Context, db *sql.DB, client redis.UniversalClient) (*tokenauth.JWTService, error) {
	if err := sqldb.Migrate(ctx, db, sqldb.SQLite); err != nil {
		return nil, err
	}
	repo, err := sqldb.New(db, sqldb.Config{Fillable: []string{"name", "email", "password"}})
	if err != nil {
		return nil, err
	}
	// Seeding cost is not what is measured.
	hasher, err := password.NewBcrypt(4)
	if err != nil {
		return nil, err
	}

	cfg := tokenauth.DefaultConfig()
	cfg.JWTKey = "loadtest-access-key"
	cfg.JWTRefreshKey = "loadtest-refresh-key"

	return tokenauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithRepository(repo).
		WithHasher(hasher).
		BuildJWT()
}

func seed(ctx context.Context, svc *tokenauth.JWTService, n int) ([]issued, error) {
	out := make([]issued, n)
	for i := range out {
		email := fmt.Sprintf("load%d@example.com", i)
		_, err := svc.Register(ctx, tokenauth.RegisterRequest{Fields: map[string]any{
			"name":     fmt.Sprintf("load user %d", i),
			"email":    email,
			"password": seedPassword,
		}})
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", email, err)
		}
		res, err := svc.Login(ctx, tokenauth.LoginRequest{Credentials: map[string]any{
			"email":    email,
			"password": seedPassword,
		}})
		if err != nil {
			return nil, fmt.Errorf("login %s: %w", email, err)
		}
		out[i] = issued{access: res.Auth.AccessToken, refresh: res.Auth.RefreshToken}
	}
	return out, nil
}

type phaseStats struct {
	elapsed  time.Duration
	ops      int
	failures int64
	sorted   []time.Duration
}

func (s phaseStats) rate() float64 {
	if s.elapsed <= 0 {
		return 0
	}
	return float64(s.ops) / s.elapsed.Seconds()
}

// quantile uses the nearest-rank method on the sorted samples.
func (s phaseStats) quantile(q float64) time.Duration {
	if len(s.sorted) == 0 {
		return 0
	}
	i := int(q * float64(len(s.sorted)-1))
	return s.sorted[min(max(i, 0), len(s.sorted)-1)]
}

// runPhase spreads ops calls over workers. Each worker keeps its own samples
// so the hot loop takes no lock.
func runPhase(ops, workers int, op func(r *rand.Rand) error) phaseStats {
	var (
		next     atomic.Int64
		failures atomic.Int64
		wg       sync.WaitGroup
	)
	perWorker := make([][]time.Duration, workers)

	start := time.Now()
	for w := range perWorker {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(w) + time.Now().UnixNano()))
			samples := make([]time.Duration, 0, ops/workers+1)
			for next.Add(1) <= int64(ops) {
				t0 := time.Now()
				if err := op(r); err != nil {
					failures.Add(1)
				}
				samples = append(samples, time.Since(t0))
			}
			perWorker[w] = samples
		}()
	}
	wg.Wait()

	all := slices.Concat(perWorker...)
	slices.Sort(all)
	return phaseStats{
		elapsed:  time.Since(start),
		ops:      len(all),
		failures: failures.Load(),
		sorted:   all,
	}
}
