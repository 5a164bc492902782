package tokenauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/MrEthical07/tokenauth/validation"
)

// resetClaims is the plaintext of a password reset token.
type resetClaims struct {
	ID        int64 `json:"id"`
	CreatedAt int64 `json:"created_at"`
}

// Register validates fields, hashes the password and creates the user.
func (s *JWTService) Register(ctx context.Context, req RegisterRequest) (Record, error) {
	return s.register(ctx, req)
}

// PostForgotPassword issues a password reset token for the user owning email.
// The token is handed to onToken, typically to be mailed, and returned.
func (s *JWTService) PostForgotPassword(ctx context.Context, email string, onToken func(ctx context.Context, token string, user Record) error) (string, error) {
	const op = "tokenauth.JWTService.PostForgotPassword"

	if !slices.Contains(s.repo.Fillable(), "email") {
		return "", newAuthError(message(s.messages, MsgEmailUnsupported), nil)
	}
	if s.cipher == nil {
		return "", newAuthError("Password reset is not available.", fmt.Errorf("reset token cipher: %w", ErrNotConfigured))
	}

	data := map[string]any{"email": email}
	rules := validation.Rules{"email": {validation.Required(), validation.Email()}}
	if err := s.validate(ctx, data, rules); err != nil {
		return "", err
	}

	user, err := s.repo.FindByAttribute(ctx, data)
	if errors.Is(err, ErrRecordNotFound) {
		msg := message(s.messages, MsgEmailInvalid)
		return "", &ValidationError{Message: msg, Fields: validation.Errors{"email": msg}}
	}
	if err != nil {
		return "", fmt.Errorf("%s: find user: %w", op, err)
	}
	id, ok := user.ID()
	if !ok {
		return "", fmt.Errorf("%s: user record has no numeric id", op)
	}

	plain, err := json.Marshal(resetClaims{ID: id, CreatedAt: s.now().Unix()})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	token, err := s.cipher.Encrypt(plain)
	if err != nil {
		return "", fmt.Errorf("%s: encrypt reset token: %w", op, err)
	}

	user = user.Without(s.cfg.LoginPassword)
	if onToken != nil {
		if err := onToken(ctx, token, user); err != nil {
			return "", err
		}
	}

	s.metrics.Inc(MetricPasswordResetRequest)
	s.emit(ctx, AuditEvent{EventType: AuditPasswordResetToken, UserID: userID(user), Success: true})
	return token, nil
}

// VerifyToken checks a password reset token and returns its user. The token
// expires TokenExpires minutes after it was issued. Every failure is an
// *AuthError.
func (s *JWTService) VerifyToken(ctx context.Context, token string, onUser func(ctx context.Context, user Record) error) (Record, error) {
	user, err := s.verifyToken(ctx, token)
	if err != nil {
		s.metrics.Inc(MetricPasswordResetTokenRejected)
		s.logger.Debug("reset token rejected", zap.Error(err))
		return nil, asAuthError(err, message(s.messages, MsgResetTokenInvalid))
	}
	if onUser != nil {
		if err := onUser(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *JWTService) verifyToken(ctx context.Context, token string) (Record, error) {
	invalid := message(s.messages, MsgResetTokenInvalid)
	if s.cipher == nil {
		return nil, newAuthError(invalid, fmt.Errorf("reset token cipher: %w", ErrNotConfigured))
	}

	plain, err := s.cipher.Decrypt(token)
	if err != nil {
		return nil, newAuthError(invalid, err)
	}
	var claims resetClaims
	if err := json.Unmarshal(plain, &claims); err != nil {
		return nil, newAuthError(invalid, err)
	}

	user, err := s.repo.FindByID(ctx, claims.ID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, newAuthError(invalid, err)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	elapsed := s.now().Unix() - claims.CreatedAt
	if elapsed >= int64(s.cfg.resetTTL().Seconds()) {
		return nil, newAuthError(invalid, errors.New("reset token expired"))
	}
	return user.Without(s.cfg.LoginPassword), nil
}

// ChangePassword sets a new password for the user selected by a reset token,
// by id with the old password, or both. Nothing is persisted unless every
// check passes. A request naming neither resolves no user and succeeds
// without writing.
func (s *JWTService) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	const op = "tokenauth.JWTService.ChangePassword"

	field := s.cfg.LoginPassword
	if err := s.validate(ctx, map[string]any{field: req.Password}, validation.Rules{field: validation.PasswordRules()}); err != nil {
		return err
	}
	if req.Token == "" && req.UserID == 0 {
		s.logger.Debug("password change without token or user id, nothing to update", zap.String("op", op))
		return nil
	}

	var user Record
	if req.Token != "" {
		u, err := s.VerifyToken(ctx, req.Token, nil)
		if err != nil {
			return err
		}
		user = u
	}
	if req.UserID != 0 {
		u, err := s.checkOldPassword(ctx, req.UserID, req.OldPassword)
		if err != nil {
			s.metrics.Inc(MetricPasswordChangeInvalidOld)
			s.emit(ctx, AuditEvent{EventType: AuditPasswordChange, UserID: fmt.Sprint(req.UserID), Success: false, Error: PublicMessage(err, "internal error")})
			return err
		}
		user = u
	}

	id, ok := user.ID()
	if !ok {
		return fmt.Errorf("%s: user record has no numeric id", op)
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("%s: hash password: %w", op, err)
	}

	attrs := Attributes{field: hash}
	if req.OnUpdate != nil {
		if err := req.OnUpdate(ctx, user.Clone(), attrs); err != nil {
			return err
		}
	}
	if _, err := s.repo.UpdateByID(ctx, id, attrs); err != nil {
		return fmt.Errorf("%s: update user: %w", op, err)
	}

	s.metrics.Inc(MetricPasswordChangeSuccess)
	s.emit(ctx, AuditEvent{EventType: AuditPasswordChange, UserID: userID(user), Success: true})
	s.logger.Info("password changed", zap.String("op", op), zap.String("user_id", userID(user)))
	return nil
}

func (s *JWTService) checkOldPassword(ctx context.Context, id int64, oldPassword string) (Record, error) {
	invalid := message(s.messages, MsgOldPasswordInvalid)

	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, newAuthError(invalid, err)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	ok, err := s.hasher.Verify(oldPassword, user.String(s.cfg.LoginPassword))
	if err != nil || !ok {
		return nil, newAuthError(invalid, err)
	}
	return user.Without(s.cfg.LoginPassword), nil
}
