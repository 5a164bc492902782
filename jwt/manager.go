package jwt

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/tokenauth/internal"
)

// Blacklist records revoked tokens by their jti.
//
// Add must be a no-op returning true when the token is already listed or
// already expired.
type Blacklist interface {
	Add(ctx context.Context, p Payload) (bool, error)
	Has(ctx context.Context, p Payload) (bool, error)
}

// Config configures a Manager.
//
// Keys may be left empty; Encode and Decode for that kind then fail with a
// TokenError wrapping ErrKeyNotConfigured.
type Config struct {
	AccessKey  []byte
	RefreshKey []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Blacklist is optional. Without it Decode never rejects revoked tokens
	// and Invalidate always fails.
	Blacklist Blacklist
	// Now defaults to time.Now.
	Now func() time.Time
}

// Manager signs and verifies tokens.
//
// Manager instances are immutable after NewManager and safe for concurrent use
// when the configured Blacklist is.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL < time.Second || cfg.RefreshTTL < time.Second {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{config: cfg}, nil
}

// Now returns the manager clock reading.
func (m *Manager) Now() time.Time { return m.config.Now() }

// TTL returns the lifetime configured for kind.
func (m *Manager) TTL(kind Kind) time.Duration {
	if kind == Refresh {
		return m.config.RefreshTTL
	}
	return m.config.AccessTTL
}

// BlacklistEnabled reports whether a blacklist was configured.
func (m *Manager) BlacklistEnabled() bool { return m.config.Blacklist != nil }

// BeginPayload starts a payload for sub with iat set to now and a fresh jti.
// The subject map is copied.
func (m *Manager) BeginPayload(sub map[string]any) (Draft, error) {
	now := m.config.Now()
	jti, err := internal.NewJTI(now)
	if err != nil {
		return Draft{}, NewTokenError("could not generate token id", err)
	}
	return Draft{Sub: maps.Clone(sub), Iat: now.Unix(), Jti: jti}, nil
}

// Finalize completes draft for kind: exp = iat + TTL(kind).
func (m *Manager) Finalize(draft Draft, kind Kind) Payload {
	return Payload{
		Sub: draft.Sub,
		Iat: draft.Iat,
		Exp: draft.Iat + int64(m.TTL(kind)/time.Second),
		Jti: draft.Jti,
	}
}

// Encode signs p with the HS256 key for kind.
func (m *Manager) Encode(p Payload, kind Kind) (string, error) {
	key := m.key(kind)
	if len(key) == 0 {
		return "", NewTokenError("could not sign token", fmt.Errorf("%w: %s", ErrKeyNotConfigured, kind))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, p)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", NewTokenError("could not sign token", err)
	}
	return signed, nil
}

// Decode verifies token with the key for kind and returns its payload.
//
// Signature, structure and expiry failures are TokenErrors. When
// checkBlacklist is set and a blacklist is configured, a revoked token fails
// with a TokenError wrapping ErrBlacklisted.
func (m *Manager) Decode(ctx context.Context, token string, kind Kind, checkBlacklist bool) (Payload, error) {
	key := m.key(kind)
	if len(key) == 0 {
		return Payload{}, NewTokenError("could not decode token", fmt.Errorf("%w: %s", ErrKeyNotConfigured, kind))
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
		// Numeric subject claims stay json.Number so 64-bit ids survive.
		jwt.WithJSONNumber(),
	)

	var claims Payload
	parsed, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return key, nil
	})
	if err != nil {
		return Payload{}, NewTokenError("could not decode token", err)
	}
	if !parsed.Valid {
		return Payload{}, NewTokenError("could not decode token", jwt.ErrTokenInvalidClaims)
	}

	if checkBlacklist && m.config.Blacklist != nil {
		listed, err := m.config.Blacklist.Has(ctx, claims)
		if err != nil {
			return Payload{}, NewTokenError("could not check token revocation", err)
		}
		if listed {
			return Payload{}, NewTokenError("token has been blacklisted", ErrBlacklisted)
		}
	}
	return claims, nil
}

// Invalidate decodes token without the blacklist check and blacklists it.
func (m *Manager) Invalidate(ctx context.Context, token string, kind Kind) (bool, error) {
	if m.config.Blacklist == nil {
		return false, NewTokenError("you must have the blacklist enabled to invalidate a token", ErrBlacklistDisabled)
	}

	p, err := m.Decode(ctx, token, kind, false)
	if err != nil {
		return false, err
	}
	return m.Blacklist(ctx, p)
}

// Blacklist adds an already decoded payload to the blacklist.
func (m *Manager) Blacklist(ctx context.Context, p Payload) (bool, error) {
	if m.config.Blacklist == nil {
		return false, NewTokenError("you must have the blacklist enabled to invalidate a token", ErrBlacklistDisabled)
	}
	ok, err := m.config.Blacklist.Add(ctx, p)
	if err != nil {
		return false, NewTokenError("could not blacklist token", err)
	}
	return ok, nil
}

func (m *Manager) key(kind Kind) []byte {
	if kind == Refresh {
		return m.config.RefreshKey
	}
	return m.config.AccessKey
}
