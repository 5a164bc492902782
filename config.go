package tokenauth

import (
	"errors"
	"slices"
	"time"
)

// Config holds every tokenauth option. Durations expressed as integers are
// minutes.
type Config struct {
	// LoginUsername is the credential key carrying the submitted username.
	LoginUsername string
	// LoginPassword is the credential key and the stored attribute of the password hash.
	LoginPassword string
	// FieldCredentials are the attributes matched (OR) against the submitted username.
	FieldCredentials []string
	// TokenPayloadFields are copied from the user into the token subject.
	TokenPayloadFields []string
	// Model names the table or collection repositories are built against.
	Model string
	// TokenExpires is the password reset token lifetime.
	TokenExpires int

	JWTKey        string
	JWTRefreshKey string
	JWTTTL        int
	JWTRefreshTTL int

	// EnabledSocial is accepted for compatibility. Social login is not provided.
	EnabledSocial bool

	// AppKey seeds the default reset-token cipher when none is injected.
	AppKey string

	Session  SessionConfig
	Throttle ThrottleConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// SessionConfig tunes the session guard built from this configuration.
type SessionConfig struct {
	Prefix      string
	TTL         time.Duration
	RememberTTL time.Duration
}

// ThrottleConfig limits failed logins per username, and per client IP when
// PerIP is set. It needs a Redis client.
type ThrottleConfig struct {
	Enabled     bool
	Prefix      string
	MaxAttempts int
	Window      time.Duration
	PerIP       bool
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

const (
	defaultJWTTTL        = 60
	defaultJWTRefreshTTL = 20160
	defaultTokenExpires  = 5
)

// DefaultConfig returns the documented defaults. Keys are left empty.
func DefaultConfig() Config {
	return Config{
		LoginUsername:      "email",
		LoginPassword:      "password",
		FieldCredentials:   []string{"email"},
		TokenPayloadFields: []string{"id"},
		Model:              "users",
		TokenExpires:       defaultTokenExpires,
		JWTTTL:             defaultJWTTTL,
		JWTRefreshTTL:      defaultJWTRefreshTTL,
		Session: SessionConfig{
			Prefix:      "tokenauth:session",
			TTL:         2 * time.Hour,
			RememberTTL: 30 * 24 * time.Hour,
		},
		Throttle: ThrottleConfig{
			Prefix:      "tokenauth:throttle",
			MaxAttempts: 5,
			Window:      15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

// withDefaults fills zero-valued options from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LoginUsername == "" {
		c.LoginUsername = d.LoginUsername
	}
	if c.LoginPassword == "" {
		c.LoginPassword = d.LoginPassword
	}
	if len(c.FieldCredentials) == 0 {
		c.FieldCredentials = d.FieldCredentials
	}
	if len(c.TokenPayloadFields) == 0 {
		c.TokenPayloadFields = d.TokenPayloadFields
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.TokenExpires <= 0 {
		c.TokenExpires = d.TokenExpires
	}
	if c.JWTTTL <= 0 {
		c.JWTTTL = d.JWTTTL
	}
	if c.JWTRefreshTTL <= 0 {
		c.JWTRefreshTTL = d.JWTRefreshTTL
	}
	if c.Session.Prefix == "" {
		c.Session.Prefix = d.Session.Prefix
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = d.Session.TTL
	}
	if c.Session.RememberTTL <= 0 {
		c.Session.RememberTTL = d.Session.RememberTTL
	}
	if c.Throttle.Prefix == "" {
		c.Throttle.Prefix = d.Throttle.Prefix
	}
	if c.Throttle.MaxAttempts <= 0 {
		c.Throttle.MaxAttempts = d.Throttle.MaxAttempts
	}
	if c.Throttle.Window <= 0 {
		c.Throttle.Window = d.Throttle.Window
	}
	if c.Audit.BufferSize <= 0 {
		c.Audit.BufferSize = d.Audit.BufferSize
	}
	return c
}

func cloneConfig(c Config) Config {
	c.FieldCredentials = slices.Clone(c.FieldCredentials)
	c.TokenPayloadFields = slices.Clone(c.TokenPayloadFields)
	return c
}

// Validate reports the first invalid option.
func (c *Config) Validate() error {
	if c.LoginUsername == "" {
		return errors.New("login_username must not be empty")
	}
	if c.LoginPassword == "" {
		return errors.New("login_password must not be empty")
	}
	if len(c.FieldCredentials) == 0 {
		return errors.New("field_credentials must list at least one attribute")
	}
	if slices.Contains(c.FieldCredentials, "") {
		return errors.New("field_credentials must not contain empty names")
	}
	if len(c.TokenPayloadFields) == 0 {
		return errors.New("token_payload_fields must list at least one attribute")
	}
	if slices.Contains(c.TokenPayloadFields, c.LoginPassword) {
		return errors.New("token_payload_fields must not include the password attribute")
	}
	if c.JWTTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return errors.New("jwt_ttl and jwt_refresh_ttl must be > 0")
	}
	if c.TokenExpires <= 0 {
		return errors.New("token_expires must be > 0")
	}
	if c.Throttle.Enabled && (c.Throttle.MaxAttempts <= 0 || c.Throttle.Window <= 0) {
		return errors.New("throttle max_attempts and window must be > 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be > 0")
	}
	return nil
}

func (c *Config) accessTTL() time.Duration  { return time.Duration(c.JWTTTL) * time.Minute }
func (c *Config) refreshTTL() time.Duration { return time.Duration(c.JWTRefreshTTL) * time.Minute }
func (c *Config) resetTTL() time.Duration   { return time.Duration(c.TokenExpires) * time.Minute }
