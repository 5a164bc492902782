package tokenauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/tokenauth/jwt"
	"github.com/MrEthical07/tokenauth/revocation"
	"github.com/MrEthical07/tokenauth/validation"
)

// TokenTypeBearer is the token_type of every issued pair.
const TokenTypeBearer = "bearer"

// JWTService authenticates with stateless access and refresh tokens.
//
// JWTService is safe for concurrent use when its Repository and storage are.
type JWTService struct {
	*authCore
	tokens *jwt.Manager
	mapper *revocation.TokenMapper
	cipher Cipher
}

// Tokens exposes the token engine.
func (s *JWTService) Tokens() *jwt.Manager { return s.tokens }

// Login checks credentials and issues an access and a refresh token sharing
// one jti. The access jti is mapped to the refresh token for cascading
// revocation.
func (s *JWTService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	res, err := s.login(ctx, req)
	if err != nil {
		s.metrics.Inc(MetricLoginFailure)
		s.emit(ctx, AuditEvent{EventType: AuditLogin, Success: false, Error: PublicMessage(err, "internal error")})
		return nil, err
	}
	s.metrics.Inc(MetricLoginSuccess)
	return res, nil
}

func (s *JWTService) login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	const op = "tokenauth.JWTService.Login"

	user, err := s.attempt(ctx, req.Credentials, req.Conditions)
	if err != nil {
		return nil, err
	}

	sub, missing := user.Project(s.cfg.TokenPayloadFields)
	if len(missing) > 0 {
		msg := fmt.Sprintf("The user record does not provide the token payload field(s): %s.", strings.Join(missing, ", "))
		fields := make(validation.Errors, len(missing))
		for _, f := range missing {
			fields[f] = msg
		}
		s.logger.Error("token payload misconfigured", zap.String("op", op), zap.Strings("missing", missing))
		return nil, &ValidationError{Message: msg, Fields: fields}
	}

	draft, err := s.tokens.BeginPayload(sub)
	if err != nil {
		return nil, err
	}
	access := s.tokens.Finalize(draft, jwt.Access)
	refresh := s.tokens.Finalize(draft, jwt.Refresh)

	item := user
	if req.OnResolved != nil {
		item, err = req.OnResolved(ctx, user.Clone(), draft.Jti)
		if err != nil {
			return nil, err
		}
	}

	accessToken, err := s.tokens.Encode(access, jwt.Access)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.Encode(refresh, jwt.Refresh)
	if err != nil {
		return nil, err
	}
	if s.mapper != nil {
		if err := s.mapper.Add(ctx, access, refreshToken); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	s.emit(ctx, AuditEvent{EventType: AuditLogin, UserID: userID(user), TokenID: draft.Jti, Success: true})
	s.logger.Info("login succeeded", zap.String("op", op), zap.String("user_id", userID(user)), zap.String("jti", draft.Jti))

	return &LoginResult{
		Item: item,
		Auth: TokenPair{
			RefreshToken: refreshToken,
			AccessToken:  accessToken,
			TokenType:    TokenTypeBearer,
			ExpiresAt:    access.Exp,
		},
	}, nil
}

// Refresh issues a new access token for a valid refresh token. The refresh
// token itself is returned unchanged and stays valid. Every failure is an
// *AuthError.
func (s *JWTService) Refresh(ctx context.Context, refreshToken string, onUser func(ctx context.Context, user Record) error) (*TokenPair, error) {
	pair, err := s.refresh(ctx, refreshToken, onUser)
	if err != nil {
		s.metrics.Inc(MetricRefreshFailure)
		s.emit(ctx, AuditEvent{EventType: AuditRefresh, Success: false, Error: PublicMessage(err, "internal error")})
		s.logger.Debug("refresh rejected", zap.Error(err))
		return nil, asAuthError(err, message(s.messages, MsgRefreshInvalid))
	}
	s.metrics.Inc(MetricRefreshSuccess)
	return pair, nil
}

func (s *JWTService) refresh(ctx context.Context, refreshToken string, onUser func(context.Context, Record) error) (*TokenPair, error) {
	invalid := message(s.messages, MsgRefreshInvalid)

	payload, err := s.tokens.Decode(ctx, refreshToken, jwt.Refresh, true)
	if err != nil {
		return nil, err
	}
	if payload.Expired(s.now()) {
		return nil, newAuthError(invalid, jwt.ErrExpired)
	}

	id, ok := Record(payload.Sub).ID()
	if !ok {
		return nil, newAuthError(invalid, errors.New("refresh token subject has no id"))
	}
	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, newAuthError(invalid, err)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if onUser != nil {
		if err := onUser(ctx, user.Without(s.cfg.LoginPassword)); err != nil {
			return nil, err
		}
	}

	draft, err := s.tokens.BeginPayload(payload.Sub)
	if err != nil {
		return nil, err
	}
	access := s.tokens.Finalize(draft, jwt.Access)
	accessToken, err := s.tokens.Encode(access, jwt.Access)
	if err != nil {
		return nil, err
	}
	if s.mapper != nil {
		if err := s.mapper.Add(ctx, access, refreshToken); err != nil {
			return nil, err
		}
	}

	s.emit(ctx, AuditEvent{EventType: AuditRefresh, UserID: userID(user), TokenID: draft.Jti, Success: true})
	return &TokenPair{
		RefreshToken: refreshToken,
		AccessToken:  accessToken,
		TokenType:    TokenTypeBearer,
		ExpiresAt:    access.Exp,
	}, nil
}

// Revoke blacklists each access token together with the refresh token issued
// alongside it. Any failure is a *JWTError.
func (s *JWTService) Revoke(ctx context.Context, accessTokens ...string) error {
	for _, token := range accessTokens {
		if err := s.revokeAccess(ctx, token); err != nil {
			s.emit(ctx, AuditEvent{EventType: AuditRevoke, Success: false, Error: PublicMessage(err, "internal error")})
			return jwt.NewTokenError(message(s.messages, MsgRevokeFailed), err)
		}
	}
	return nil
}

func (s *JWTService) revokeAccess(ctx context.Context, token string) error {
	p, err := s.tokens.Decode(ctx, token, jwt.Access, false)
	if err != nil {
		return err
	}
	if _, err := s.tokens.Blacklist(ctx, p); err != nil {
		return err
	}
	s.metrics.Inc(MetricTokenRevoked)
	s.emit(ctx, AuditEvent{EventType: AuditRevoke, UserID: userID(Record(p.Sub)), TokenID: p.Jti, Success: true})

	if s.mapper == nil {
		return nil
	}
	refreshToken, found, err := s.mapper.PullRefreshToken(ctx, p.Jti)
	if err != nil || !found {
		return err
	}
	if _, err := s.tokens.Invalidate(ctx, refreshToken, jwt.Refresh); err != nil && !errors.Is(err, jwt.ErrExpired) {
		return err
	}
	return nil
}

// Invalidate blacklists token. An empty token is accepted as a no-op.
func (s *JWTService) Invalidate(ctx context.Context, token string, kind jwt.Kind) error {
	if token == "" {
		return nil
	}
	if _, err := s.tokens.Invalidate(ctx, token, kind); err != nil {
		return err
	}
	s.metrics.Inc(MetricTokenInvalidated)
	s.emit(ctx, AuditEvent{EventType: AuditInvalidate, Success: true, Metadata: map[string]string{"kind": kind.String()}})
	return nil
}

// Authenticate returns the subject claims of a valid, non-revoked access
// token. Failures are *UnauthorizedError.
func (s *JWTService) Authenticate(ctx context.Context, accessToken string) (Record, error) {
	start := time.Now()
	defer func() { s.metrics.Observe(MetricAuthenticateLatency, time.Since(start)) }()

	unauthenticated := message(s.messages, MsgUnauthenticated)
	if accessToken == "" {
		s.metrics.Inc(MetricGuardRejected)
		return nil, &UnauthorizedError{Message: unauthenticated}
	}

	p, err := s.tokens.Decode(ctx, accessToken, jwt.Access, true)
	if err != nil {
		s.metrics.Inc(MetricGuardRejected)
		return nil, &UnauthorizedError{Message: PublicMessage(err, unauthenticated), Err: err}
	}
	return Record(p.Sub), nil
}

// Logout revokes the presented access token and its mapped refresh token.
// Failures are *JWTError.
func (s *JWTService) Logout(ctx context.Context, accessToken string) error {
	if err := s.revokeAccess(ctx, accessToken); err != nil {
		return jwt.NewTokenError(PublicMessage(err, message(s.messages, MsgRevokeFailed)), err)
	}
	return nil
}

// MappedRefreshToken returns the refresh token issued with a still valid
// access token.
func (s *JWTService) MappedRefreshToken(ctx context.Context, accessToken string) (string, bool, error) {
	if s.mapper == nil {
		return "", false, fmt.Errorf("token mapper: %w", ErrNotConfigured)
	}
	p, err := s.tokens.Decode(ctx, accessToken, jwt.Access, true)
	if err != nil {
		return "", false, err
	}
	return s.mapper.GetRefreshToken(ctx, p.Jti)
}
