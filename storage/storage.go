// Package storage defines the key-value contract used by the token blacklist and
// the token mapper, together with a Redis adapter.
//
// # What this package must NOT do
//
//   - Interpret stored values. Encoding belongs to the callers.
//   - Import tokenauth, jwt or revocation.
package storage

import (
	"context"
	"errors"
)

// ErrUnavailable wraps every backend failure returned by an adapter.
var ErrUnavailable = errors.New("storage unavailable")

// Storage is the key-value store behind the blacklist and the token mapper.
//
// ttlSeconds bounds the lifetime of an entry. Implementations must expire the
// entry after that many seconds and must reject non-positive values.
type Storage interface {
	Add(ctx context.Context, key, value string, ttlSeconds int64) error
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Has(ctx context.Context, key string) (bool, error)
	Destroy(ctx context.Context, key string) (bool, error)
}

// Puller is implemented by adapters that can read and delete a key in one
// atomic step.
type Puller interface {
	Pull(ctx context.Context, key string) (value string, found bool, err error)
}
