package tokenauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/tokenauth/internal/rate"
	"github.com/MrEthical07/tokenauth/validation"
)

// authCore holds what the JWT and session services share: credential
// checks, registration, metrics and audit.
type authCore struct {
	cfg       Config
	repo      Repository
	hasher    Hasher
	validator Validator
	messages  MessageCatalog
	logger    *zap.Logger
	now       func() time.Time
	metrics   *Metrics
	audit     *auditDispatcher
	// throttle is nil unless failed-login throttling is enabled.
	throttle *rate.Limiter
}

// Config returns a copy of the effective configuration.
func (c *authCore) Config() Config { return cloneConfig(c.cfg) }

// MetricsSnapshot returns the current counters. Empty when metrics are disabled.
func (c *authCore) MetricsSnapshot() MetricsSnapshot { return c.metrics.Snapshot() }

// AuditDropped returns how many audit events were dropped on a full buffer.
func (c *authCore) AuditDropped() uint64 { return c.audit.Dropped() }

// Close flushes pending audit events and stops the dispatcher.
func (c *authCore) Close() { c.audit.Close() }

func (c *authCore) emit(ctx context.Context, ev AuditEvent) {
	if c.audit == nil {
		return
	}
	ev.Timestamp = c.now()
	if ip := clientIPFromContext(ctx); ip != "" {
		ev.Metadata = withMetadata(ev.Metadata, "client_ip", ip)
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		ev.Metadata = withMetadata(ev.Metadata, "user_agent", ua)
	}
	c.audit.Emit(ctx, ev)
}

func withMetadata(m map[string]string, key, value string) map[string]string {
	if m == nil {
		m = make(map[string]string, 2)
	}
	m[key] = value
	return m
}

func (c *authCore) loginRules() validation.Rules {
	return validation.Rules{
		c.cfg.LoginUsername: {validation.Required()},
		c.cfg.LoginPassword: {validation.Required()},
	}
}

func (c *authCore) failedLogin() *ValidationError {
	msg := message(c.messages, MsgAuthFailed)
	return &ValidationError{Message: msg, Fields: validation.Errors{c.cfg.LoginUsername: msg}}
}

// attempt validates credentials, finds the user by any credential field and
// checks the password. The returned record has no password attribute.
func (c *authCore) attempt(ctx context.Context, credentials, conditions map[string]any) (Record, error) {
	const op = "tokenauth.attempt"

	if err := c.validate(ctx, credentials, c.loginRules()); err != nil {
		return nil, err
	}

	username := credentials[c.cfg.LoginUsername]
	name, ip := textValue(username), clientIPFromContext(ctx)
	if err := c.checkThrottle(ctx, name, ip); err != nil {
		return nil, err
	}

	match := make(map[string]any, len(c.cfg.FieldCredentials))
	for _, field := range c.cfg.FieldCredentials {
		match[field] = username
	}

	user, err := c.repo.FindByCredentials(ctx, match, conditions, nil)
	if errors.Is(err, ErrRecordNotFound) {
		c.logger.Debug("login rejected: no matching user", zap.String("op", op))
		c.recordFailure(ctx, name, ip)
		return nil, c.failedLogin()
	}
	if err != nil {
		return nil, fmt.Errorf("%s: find user: %w", op, err)
	}

	ok, err := c.hasher.Verify(textValue(credentials[c.cfg.LoginPassword]), user.String(c.cfg.LoginPassword))
	if err != nil {
		c.logger.Warn("stored password hash could not be checked", zap.String("op", op), zap.Error(err))
		c.recordFailure(ctx, name, ip)
		return nil, c.failedLogin()
	}
	if !ok {
		c.logger.Debug("login rejected: password mismatch", zap.String("op", op))
		c.recordFailure(ctx, name, ip)
		return nil, c.failedLogin()
	}
	c.resetThrottle(ctx, name, ip)
	c.upgradeHash(ctx, user, textValue(credentials[c.cfg.LoginPassword]))
	return user.Without(c.cfg.LoginPassword), nil
}

// checkThrottle refuses the attempt once the failure budget is spent. Redis
// failures let the attempt through.
func (c *authCore) checkThrottle(ctx context.Context, username, ip string) error {
	if c.throttle == nil {
		return nil
	}
	err := c.throttle.Check(ctx, username, ip)
	if errors.Is(err, rate.ErrRateLimited) {
		c.metrics.Inc(MetricLoginThrottled)
		c.logger.Info("login throttled", zap.String("op", "tokenauth.attempt"))
		return newAuthError(message(c.messages, MsgTooManyAttempts), ErrTooManyAttempts)
	}
	if err != nil {
		c.logger.Warn("login throttle check failed", zap.Error(err))
	}
	return nil
}

func (c *authCore) recordFailure(ctx context.Context, username, ip string) {
	if c.throttle == nil {
		return
	}
	if err := c.throttle.Fail(ctx, username, ip); err != nil {
		c.logger.Warn("failed login not recorded", zap.Error(err))
	}
}

func (c *authCore) resetThrottle(ctx context.Context, username, ip string) {
	if c.throttle == nil {
		return
	}
	if err := c.throttle.Reset(ctx, username, ip); err != nil {
		c.logger.Warn("login throttle not reset", zap.Error(err))
	}
}

// needsRehash reports whether the stored hash uses a legacy scheme or weaker
// parameters. Hashers may answer with or without an error; a hash that
// cannot be inspected is left alone.
func (c *authCore) needsRehash(encodedHash string) bool {
	switch u := c.hasher.(type) {
	case interface{ NeedsUpgrade(string) bool }:
		return u.NeedsUpgrade(encodedHash)
	case interface {
		NeedsUpgrade(string) (bool, error)
	}:
		stale, err := u.NeedsUpgrade(encodedHash)
		return err == nil && stale
	}
	return false
}

// upgradeHash rehashes the password with the primary scheme after a
// successful login. Failures are logged and never fail the login.
func (c *authCore) upgradeHash(ctx context.Context, user Record, password string) {
	if !c.needsRehash(user.String(c.cfg.LoginPassword)) {
		return
	}
	id, ok := user.ID()
	if !ok {
		return
	}
	hash, err := c.hasher.Hash(password)
	if err != nil {
		c.logger.Warn("password rehash failed", zap.Error(err))
		return
	}
	if _, err := c.repo.UpdateByID(ctx, id, map[string]any{c.cfg.LoginPassword: hash}); err != nil {
		c.logger.Warn("password rehash not persisted", zap.String("user_id", userID(user)), zap.Error(err))
	}
}

// validate runs rules and converts field failures into a ValidationError.
func (c *authCore) validate(ctx context.Context, data map[string]any, rules validation.Rules) error {
	errs, err := c.validator.Validate(ctx, data, rules)
	if err != nil {
		return fmt.Errorf("validate input: %w", err)
	}
	if len(errs) > 0 {
		return newValidationError(errs)
	}
	return nil
}

func (c *authCore) defaultRegisterRules(fields map[string]any) validation.Rules {
	rules := make(validation.Rules, len(c.cfg.FieldCredentials)+2)
	for _, field := range c.cfg.FieldCredentials {
		fieldRules := []validation.Rule{validation.Required()}
		if field == "email" {
			fieldRules = append(fieldRules, validation.Email())
		}
		rules[field] = append(fieldRules, validation.Unique(field))
	}
	if _, ok := fields["email"]; ok && rules["email"] == nil {
		rules["email"] = []validation.Rule{validation.Required(), validation.Email(), validation.Unique("email")}
	}
	rules[c.cfg.LoginPassword] = validation.PasswordRules()
	return rules
}

// register validates, hashes the password and creates the user.
func (c *authCore) register(ctx context.Context, req RegisterRequest) (Record, error) {
	const op = "tokenauth.register"

	rules := req.Rules
	if len(rules) == 0 {
		rules = c.defaultRegisterRules(req.Fields)
	}
	if err := c.validate(ctx, req.Fields, rules); err != nil {
		c.metrics.Inc(MetricRegisterRejected)
		return nil, err
	}

	fields := make(map[string]any, len(req.Fields))
	for k, v := range req.Fields {
		fields[k] = v
	}
	if raw, ok := fields[c.cfg.LoginPassword]; ok {
		hash, err := c.hasher.Hash(textValue(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: hash password: %w", op, err)
		}
		fields[c.cfg.LoginPassword] = hash
	}

	created, err := c.repo.Create(ctx, fields)
	if err != nil {
		return nil, fmt.Errorf("%s: create user: %w", op, err)
	}
	user := created.Without(c.cfg.LoginPassword)

	if req.OnCreated != nil {
		user, err = req.OnCreated(ctx, user)
		if err != nil {
			return nil, err
		}
	}

	c.metrics.Inc(MetricRegisterSuccess)
	c.emit(ctx, AuditEvent{EventType: AuditRegister, UserID: userID(created), Success: true})
	c.logger.Info("user registered", zap.String("op", op), zap.String("user_id", userID(created)))
	return user, nil
}

// repositoryExists backs Unique rules with FindByAttribute.
func repositoryExists(repo Repository) validation.ExistsFunc {
	return func(ctx context.Context, column string, value any) (bool, error) {
		_, err := repo.FindByAttribute(ctx, map[string]any{column: value})
		if errors.Is(err, ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
}

func textValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(v)
	}
}

func userID(r Record) string {
	if id, ok := r.ID(); ok {
		return strconv.FormatInt(id, 10)
	}
	return ""
}
