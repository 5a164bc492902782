package revocation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrEthical07/tokenauth/jwt"
	"github.com/MrEthical07/tokenauth/storage"
)

type blacklistEntry struct {
	ValidUntil int64 `json:"valid_until"`
}

// Blacklist implements jwt.Blacklist. Entries are keyed by jti and expire
// together with the token they revoke.
type Blacklist struct {
	store storage.Storage
	now   func() time.Time
}

// NewBlacklist returns a Blacklist over store. A nil now uses time.Now.
func NewBlacklist(store storage.Storage, now func() time.Time) *Blacklist {
	if now == nil {
		now = time.Now
	}
	return &Blacklist{store: store, now: now}
}

// Add records p as revoked. It is a no-op returning true when p is already
// listed or already expired.
func (b *Blacklist) Add(ctx context.Context, p jwt.Payload) (bool, error) {
	listed, err := b.store.Has(ctx, p.Jti)
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	if listed {
		return true, nil
	}

	ttl := p.SecondsLeft(b.now())
	if ttl <= 0 {
		return true, nil
	}

	value, err := json.Marshal(blacklistEntry{ValidUntil: p.Exp})
	if err != nil {
		return false, fmt.Errorf("blacklist encode: %w", err)
	}
	if err := b.store.Add(ctx, p.Jti, string(value), ttl); err != nil {
		return false, fmt.Errorf("blacklist add: %w", err)
	}
	return true, nil
}

// Has reports whether the jti of p is blacklisted.
func (b *Blacklist) Has(ctx context.Context, p jwt.Payload) (bool, error) {
	listed, err := b.store.Has(ctx, p.Jti)
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	return listed, nil
}

// ValidUntil returns the exp recorded for jti, if listed.
func (b *Blacklist) ValidUntil(ctx context.Context, jti string) (time.Time, bool, error) {
	raw, found, err := b.store.Get(ctx, jti)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("blacklist lookup: %w", err)
	}
	if !found {
		return time.Time{}, false, nil
	}
	var entry blacklistEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return time.Time{}, false, fmt.Errorf("blacklist decode: %w", err)
	}
	return time.Unix(entry.ValidUntil, 0), true, nil
}

var _ jwt.Blacklist = (*Blacklist)(nil)
