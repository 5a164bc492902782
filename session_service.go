package tokenauth

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SessionService authenticates against a StatefulGuard instead of issuing
// tokens. It never touches the blacklist or the token mapper.
type SessionService struct {
	*authCore
	guard StatefulGuard
}

// Login checks credentials and logs the user into the guard. The returned
// record has no password attribute.
func (s *SessionService) Login(ctx context.Context, req SessionLoginRequest) (Record, error) {
	const op = "tokenauth.SessionService.Login"

	user, err := s.attempt(ctx, req.Credentials, req.Conditions)
	if err != nil {
		s.metrics.Inc(MetricLoginFailure)
		s.emit(ctx, AuditEvent{EventType: AuditSessionLogin, Success: false, Error: PublicMessage(err, "internal error")})
		return nil, err
	}
	if req.OnResolved != nil {
		if err := req.OnResolved(ctx, user.Clone()); err != nil {
			return nil, err
		}
	}
	if err := s.guard.Login(ctx, user, req.Remember); err != nil {
		return nil, fmt.Errorf("%s: guard login: %w", op, err)
	}

	s.metrics.Inc(MetricSessionLogin)
	s.emit(ctx, AuditEvent{EventType: AuditSessionLogin, UserID: userID(user), Success: true})
	s.logger.Info("session login", zap.String("op", op), zap.String("user_id", userID(user)), zap.Bool("remember", req.Remember))
	return user, nil
}

// Logout ends the guard session, invalidates it and returns the regenerated
// CSRF token.
func (s *SessionService) Logout(ctx context.Context) (string, error) {
	const op = "tokenauth.SessionService.Logout"

	if err := s.guard.Logout(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := s.guard.InvalidateSession(ctx); err != nil {
		return "", fmt.Errorf("%s: invalidate session: %w", op, err)
	}
	token, err := s.guard.RegenerateToken(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: regenerate token: %w", op, err)
	}

	s.metrics.Inc(MetricSessionLogout)
	s.emit(ctx, AuditEvent{EventType: AuditSessionLogout, Success: true})
	return token, nil
}

// Register creates the user and, when setGuard is set, logs them in.
func (s *SessionService) Register(ctx context.Context, req RegisterRequest, setGuard bool) (Record, error) {
	user, err := s.register(ctx, req)
	if err != nil {
		return nil, err
	}
	if setGuard {
		if err := s.guard.Login(ctx, user, false); err != nil {
			return nil, fmt.Errorf("tokenauth.SessionService.Register: guard login: %w", err)
		}
	}
	return user, nil
}
