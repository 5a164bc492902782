package revocation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/tokenauth/storage"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *storage.Redis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, storage.NewRedis(rdb, "")
}

// countingStore is a map-backed Storage without atomic pull. getHook runs
// between the read and the return of Get so tests can interleave callers.
type countingStore struct {
	mu       sync.Mutex
	values   map[string]string
	ttls     map[string]int64
	adds     int
	destroys int
	getHook  func()
}

func newCountingStore() *countingStore {
	return &countingStore{values: map[string]string{}, ttls: map[string]int64{}}
}

func (s *countingStore) Add(_ context.Context, key, value string, ttl int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adds++
	s.values[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *countingStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	v, ok := s.values[key]
	hook := s.getHook
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return v, ok, nil
}

func (s *countingStore) Has(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	return ok, nil
}

func (s *countingStore) Destroy(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroys++
	_, ok := s.values[key]
	delete(s.values, key)
	return ok, nil
}

func fixedNow(t time.Time) func() time.Time { return func() time.Time { return t } }
