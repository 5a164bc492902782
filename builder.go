package tokenauth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/tokenauth/crypt"
	"github.com/MrEthical07/tokenauth/internal/rate"
	"github.com/MrEthical07/tokenauth/jwt"
	"github.com/MrEthical07/tokenauth/password"
	"github.com/MrEthical07/tokenauth/revocation"
	"github.com/MrEthical07/tokenauth/session"
	"github.com/MrEthical07/tokenauth/storage"
	"github.com/MrEthical07/tokenauth/validation"
)

// Environment variables that take precedence over configured key material.
const (
	EnvJWTKey        = "APP_JWT_KEY"
	EnvJWTRefreshKey = "APP_JWT_REFRESH_KEY"
	EnvAppKey        = "APP_KEY"
)

// Builder assembles a JWTService or a SessionService.
//
// A Builder is single use: the second Build call fails.
type Builder struct {
	config Config

	redis     redis.UniversalClient
	store     storage.Storage
	repo      Repository
	hasher    Hasher
	validator Validator
	cipher    Cipher
	messages  MessageCatalog
	logger    *zap.Logger
	now       func() time.Time
	auditSink AuditSink
	guard     StatefulGuard
	lookupEnv func(string) (string, bool)

	customStore bool
	built       bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config:    DefaultConfig(),
		lookupEnv: os.LookupEnv,
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis stores the blacklist and the token mapper in Redis. BuildSession
// also uses client for its default guard.
//
// Keys are unprefixed: a revoked token is stored under its bare jti and its
// mapping under "sa_tokens_mapper:<jti>", both in the root keyspace. On a
// shared database, pair it with WithStorage(storage.NewRedis(client, "myapp"))
// to namespace them. Storage set through WithStorage wins in either order.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	if !b.customStore {
		b.store = storage.NewRedis(client, "")
	}
	return b
}

// WithStorage sets the adapter backing the blacklist and the token mapper.
// Without storage, tokens cannot be revoked.
func (b *Builder) WithStorage(s storage.Storage) *Builder {
	b.store = s
	b.customStore = s != nil
	return b
}

func (b *Builder) WithRepository(repo Repository) *Builder {
	b.repo = repo
	return b
}

// WithHasher replaces the default argon2id hasher, which also verifies
// legacy bcrypt hashes.
func (b *Builder) WithHasher(h Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithValidator(v Validator) *Builder {
	b.validator = v
	return b
}

// WithCipher replaces the PASETO cipher derived from Config.AppKey.
func (b *Builder) WithCipher(c Cipher) *Builder {
	b.cipher = c
	return b
}

func (b *Builder) WithMessages(m MessageCatalog) *Builder {
	b.messages = m
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides time.Now for token timestamps, TTLs and reset token age.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithGuard sets the session guard used by BuildSession. Without one,
// BuildSession stores sessions in the Redis client given to WithRedis.
func (b *Builder) WithGuard(g StatefulGuard) *Builder {
	b.guard = g
	return b
}

// WithLookupEnv replaces os.LookupEnv when resolving key material.
func (b *Builder) WithLookupEnv(lookup func(string) (string, bool)) *Builder {
	b.lookupEnv = lookup
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// BuildJWT returns a JWTService.
func (b *Builder) BuildJWT() (*JWTService, error) {
	core, err := b.buildCore()
	if err != nil {
		return nil, err
	}
	cfg := core.cfg

	if cfg.JWTKey == "" || cfg.JWTRefreshKey == "" {
		core.logger.Warn("jwt signing keys are not configured; token issuance will fail")
	}

	var (
		blacklist jwt.Blacklist
		mapper    *revocation.TokenMapper
	)
	if b.store != nil {
		blacklist = revocation.NewBlacklist(b.store, core.now)
		mapper = revocation.NewTokenMapper(b.store, core.now)
	} else {
		core.logger.Warn("no storage configured; revoke, invalidate and logout are unavailable")
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessKey:  []byte(cfg.JWTKey),
		RefreshKey: []byte(cfg.JWTRefreshKey),
		AccessTTL:  cfg.accessTTL(),
		RefreshTTL: cfg.refreshTTL(),
		Blacklist:  blacklist,
		Now:        core.now,
	})
	if err != nil {
		core.Close()
		return nil, err
	}

	cipher := b.cipher
	if cipher == nil && cfg.AppKey != "" {
		key, err := crypt.DeriveKey(cfg.AppKey)
		if err != nil {
			core.Close()
			return nil, fmt.Errorf("app key: %w", err)
		}
		p, err := crypt.NewPaseto(key, "")
		if err != nil {
			core.Close()
			return nil, err
		}
		cipher = p
	}

	return &JWTService{authCore: core, tokens: tokens, mapper: mapper, cipher: cipher}, nil
}

// BuildSession returns a SessionService.
func (b *Builder) BuildSession() (*SessionService, error) {
	if b.guard == nil && b.redis == nil {
		return nil, errors.New("session guard or redis client required")
	}
	core, err := b.buildCore()
	if err != nil {
		return nil, err
	}

	guard := b.guard
	if guard == nil {
		guard = NewSessionGuard(session.NewStore(b.redis, session.Config{
			Prefix:      core.cfg.Session.Prefix,
			TTL:         core.cfg.Session.TTL,
			RememberTTL: core.cfg.Session.RememberTTL,
		}))
	}
	return &SessionService{authCore: core, guard: guard}, nil
}

func (b *Builder) buildCore() (*authCore, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.repo == nil {
		return nil, errors.New("repository required")
	}

	cfg := b.resolveKeys(b.config.withDefaults())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EnabledSocial {
		logger.Warn("enabled_social is set but social login is not supported")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	hasher := b.hasher
	if hasher == nil {
		primary, err := password.NewArgon2(password.DefaultArgon2Config())
		if err != nil {
			return nil, err
		}
		legacy, err := password.NewBcrypt(0)
		if err != nil {
			return nil, err
		}
		hasher = password.NewChain(primary, legacy)
	}

	validator := b.validator
	if validator == nil {
		validator = validation.New(repositoryExists(b.repo))
	}

	messages := b.messages
	if messages == nil {
		messages = MapCatalog(nil)
	}

	var throttle *rate.Limiter
	if cfg.Throttle.Enabled {
		if b.redis == nil {
			return nil, errors.New("login throttling requires a Redis client")
		}
		throttle = rate.New(b.redis, rate.Config{
			Prefix:      cfg.Throttle.Prefix,
			MaxAttempts: cfg.Throttle.MaxAttempts,
			Window:      cfg.Throttle.Window,
			PerIP:       cfg.Throttle.PerIP,
		})
	}

	b.built = true
	return &authCore{
		cfg:       cfg,
		repo:      b.repo,
		hasher:    hasher,
		validator: validator,
		messages:  messages,
		logger:    logger,
		now:       now,
		metrics:   NewMetrics(cfg.Metrics),
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		throttle:  throttle,
	}, nil
}

// resolveKeys applies key material from the environment over cfg.
func (b *Builder) resolveKeys(cfg Config) Config {
	lookup := b.lookupEnv
	if lookup == nil {
		return cfg
	}
	if v, ok := lookup(EnvJWTKey); ok && v != "" {
		cfg.JWTKey = v
	}
	if v, ok := lookup(EnvJWTRefreshKey); ok && v != "" {
		cfg.JWTRefreshKey = v
	}
	if v, ok := lookup(EnvAppKey); ok && v != "" {
		cfg.AppKey = v
	}
	return cfg
}
