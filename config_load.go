package tokenauth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// numericText holds a number as read from a file or the environment. JSON
// numbers and strings are both accepted so malformed values reach parsing
// instead of failing the whole load.
type numericText string

func (n *numericText) UnmarshalJSON(b []byte) error {
	*n = numericText(strings.Trim(string(b), `"`))
	return nil
}

// orDefault parses a positive integer, keeping def for anything else.
func (n numericText) orDefault(def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(string(n)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

type fileConfig struct {
	LoginUsername      string      `yaml:"login_username" json:"login_username" env:"AUTH_LOGIN_USERNAME"`
	LoginPassword      string      `yaml:"login_password" json:"login_password" env:"AUTH_LOGIN_PASSWORD"`
	FieldCredentials   []string    `yaml:"field_credentials" json:"field_credentials" env:"AUTH_FIELD_CREDENTIALS" env-separator:","`
	TokenPayloadFields []string    `yaml:"token_payload_fields" json:"token_payload_fields" env:"AUTH_TOKEN_PAYLOAD_FIELDS" env-separator:","`
	Model              string      `yaml:"model" json:"model" env:"AUTH_MODEL"`
	TokenExpires       numericText `yaml:"token_expires" json:"token_expires" env:"AUTH_TOKEN_EXPIRES"`
	JWTKey             string      `yaml:"jwt_key" json:"jwt_key" env:"APP_JWT_KEY"`
	JWTRefreshKey      string      `yaml:"jwt_refresh_key" json:"jwt_refresh_key" env:"APP_JWT_REFRESH_KEY"`
	JWTTTL             numericText `yaml:"jwt_ttl" json:"jwt_ttl" env:"APP_JWT_TTL"`
	JWTRefreshTTL      numericText `yaml:"jwt_refresh_ttl" json:"jwt_refresh_ttl" env:"APP_JWT_REFRESH_TTL"`
	EnabledSocial      bool        `yaml:"enabled_social" json:"enabled_social" env:"AUTH_ENABLED_SOCIAL"`
	AppKey             string      `yaml:"app_key" json:"app_key" env:"APP_KEY"`

	Session struct {
		Prefix      string        `yaml:"prefix" json:"prefix" env:"AUTH_SESSION_PREFIX"`
		TTL         time.Duration `yaml:"ttl" json:"ttl" env:"AUTH_SESSION_TTL"`
		RememberTTL time.Duration `yaml:"remember_ttl" json:"remember_ttl" env:"AUTH_SESSION_REMEMBER_TTL"`
	} `yaml:"session" json:"session"`

	Throttle struct {
		Enabled     bool          `yaml:"enabled" json:"enabled" env:"AUTH_THROTTLE_ENABLED"`
		Prefix      string        `yaml:"prefix" json:"prefix" env:"AUTH_THROTTLE_PREFIX"`
		MaxAttempts int           `yaml:"max_attempts" json:"max_attempts" env:"AUTH_THROTTLE_MAX_ATTEMPTS"`
		Window      time.Duration `yaml:"window" json:"window" env:"AUTH_THROTTLE_WINDOW"`
		PerIP       bool          `yaml:"per_ip" json:"per_ip" env:"AUTH_THROTTLE_PER_IP"`
	} `yaml:"throttle" json:"throttle"`

	Audit struct {
		Enabled    bool `yaml:"enabled" json:"enabled" env:"AUTH_AUDIT_ENABLED"`
		BufferSize int  `yaml:"buffer_size" json:"buffer_size" env:"AUTH_AUDIT_BUFFER_SIZE"`
		// BlockIfFull makes Emit wait for buffer space instead of dropping.
		BlockIfFull bool `yaml:"block_if_full" json:"block_if_full" env:"AUTH_AUDIT_BLOCK_IF_FULL"`
	} `yaml:"audit" json:"audit"`

	Metrics struct {
		Enabled                 bool `yaml:"enabled" json:"enabled" env:"AUTH_METRICS_ENABLED"`
		EnableLatencyHistograms bool `yaml:"latency_histograms" json:"latency_histograms" env:"AUTH_METRICS_LATENCY"`
	} `yaml:"metrics" json:"metrics"`
}

// LoadConfig reads a YAML or JSON file at path and then the environment,
// which overrides file values. An empty path reads the environment only.
// Missing options keep their defaults; a non-numeric lifetime keeps its
// default silently.
func LoadConfig(path string) (Config, error) {
	var fc fileConfig

	var err error
	if path == "" {
		err = cleanenv.ReadEnv(&fc)
	} else {
		err = cleanenv.ReadConfig(path, &fc)
	}
	if err != nil {
		return Config{}, fmt.Errorf("tokenauth: load config: %w", err)
	}

	cfg := fc.toConfig()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("tokenauth: load config: %w", err)
	}
	return cfg, nil
}

// MustLoadConfig is LoadConfig for program start-up; it panics on error.
func MustLoadConfig(path string) Config {
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (fc *fileConfig) toConfig() Config {
	cfg := Config{
		LoginUsername:      strings.TrimSpace(fc.LoginUsername),
		LoginPassword:      strings.TrimSpace(fc.LoginPassword),
		FieldCredentials:   trimAll(fc.FieldCredentials),
		TokenPayloadFields: trimAll(fc.TokenPayloadFields),
		Model:              fc.Model,
		TokenExpires:       fc.TokenExpires.orDefault(defaultTokenExpires),
		JWTKey:             fc.JWTKey,
		JWTRefreshKey:      fc.JWTRefreshKey,
		JWTTTL:             fc.JWTTTL.orDefault(defaultJWTTTL),
		JWTRefreshTTL:      fc.JWTRefreshTTL.orDefault(defaultJWTRefreshTTL),
		EnabledSocial:      fc.EnabledSocial,
		AppKey:             fc.AppKey,
		Session: SessionConfig{
			Prefix:      fc.Session.Prefix,
			TTL:         fc.Session.TTL,
			RememberTTL: fc.Session.RememberTTL,
		},
		Throttle: ThrottleConfig{
			Enabled:     fc.Throttle.Enabled,
			Prefix:      fc.Throttle.Prefix,
			MaxAttempts: fc.Throttle.MaxAttempts,
			Window:      fc.Throttle.Window,
			PerIP:       fc.Throttle.PerIP,
		},
		Audit: AuditConfig{
			Enabled:    fc.Audit.Enabled,
			BufferSize: fc.Audit.BufferSize,
			DropIfFull: !fc.Audit.BlockIfFull,
		},
		Metrics: MetricsConfig{
			Enabled:                 fc.Metrics.Enabled,
			EnableLatencyHistograms: fc.Metrics.EnableLatencyHistograms,
		},
	}
	return cfg.withDefaults()
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
