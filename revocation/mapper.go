package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/tokenauth/jwt"
	"github.com/MrEthical07/tokenauth/storage"
)

// MapperKeyPrefix namespaces mapper entries in the shared storage.
const MapperKeyPrefix = "sa_tokens_mapper:"

// TokenMapper maps an access token jti to the refresh token issued alongside it.
type TokenMapper struct {
	store storage.Storage
	now   func() time.Time
}

// NewTokenMapper returns a TokenMapper over store. A nil now uses time.Now.
func NewTokenMapper(store storage.Storage, now func() time.Time) *TokenMapper {
	if now == nil {
		now = time.Now
	}
	return &TokenMapper{store: store, now: now}
}

// MapperKey returns the storage key used for an access token jti.
func MapperKey(jti string) string { return MapperKeyPrefix + jti }

// Add stores refreshToken under the jti of access until access expires.
// It is a no-op when an entry already exists or access is already expired.
func (m *TokenMapper) Add(ctx context.Context, access jwt.Payload, refreshToken string) error {
	key := MapperKey(access.Jti)

	exists, err := m.store.Has(ctx, key)
	if err != nil {
		return fmt.Errorf("token mapper lookup: %w", err)
	}
	if exists {
		return nil
	}

	ttl := access.SecondsLeft(m.now())
	if ttl <= 0 {
		return nil
	}
	if err := m.store.Add(ctx, key, refreshToken, ttl); err != nil {
		return fmt.Errorf("token mapper add: %w", err)
	}
	return nil
}

// GetRefreshToken returns the refresh token mapped to jti.
func (m *TokenMapper) GetRefreshToken(ctx context.Context, jti string) (string, bool, error) {
	token, found, err := m.store.Get(ctx, MapperKey(jti))
	if err != nil {
		return "", false, fmt.Errorf("token mapper get: %w", err)
	}
	return token, found, nil
}

// PullRefreshToken returns the refresh token mapped to jti and removes the entry.
//
// ATOMICITY NOTE: when the storage implements storage.Puller the read and the
// delete happen in one step. Otherwise this is a get followed by a destroy and
// two concurrent callers may both receive the token.
func (m *TokenMapper) PullRefreshToken(ctx context.Context, jti string) (string, bool, error) {
	key := MapperKey(jti)

	if puller, ok := m.store.(storage.Puller); ok {
		token, found, err := puller.Pull(ctx, key)
		if err != nil {
			return "", false, fmt.Errorf("token mapper pull: %w", err)
		}
		return token, found, nil
	}

	token, found, err := m.store.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("token mapper get: %w", err)
	}
	if !found {
		return "", false, nil
	}
	if _, err := m.store.Destroy(ctx, key); err != nil {
		return "", false, fmt.Errorf("token mapper destroy: %w", err)
	}
	return token, true, nil
}
