package tokenauth

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types reported to an AuditSink.
const (
	AuditLogin              = "login"
	AuditRefresh            = "refresh"
	AuditRevoke             = "revoke"
	AuditInvalidate         = "invalidate"
	AuditRegister           = "register"
	AuditPasswordResetToken = "password_reset_request"
	AuditPasswordChange     = "password_change"
	AuditSessionLogin       = "session_login"
	AuditSessionLogout      = "session_logout"
)

// AuditEvent is the outcome of one auth operation. Passwords and token
// strings are never put in an event; TokenID holds the jti only.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	TokenID   string            `json:"token_id,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives events on the dispatcher goroutine, one at a time.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// AuditSinkFunc adapts a function to AuditSink.
type AuditSinkFunc func(ctx context.Context, event AuditEvent)

func (f AuditSinkFunc) Emit(ctx context.Context, event AuditEvent) { f(ctx, event) }

// NoOpSink discards events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ZapSink writes events as structured log entries: successes at Info,
// failures at Warn.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger.Named("audit")}
}

func (s *ZapSink) Emit(_ context.Context, ev AuditEvent) {
	fields := make([]zap.Field, 0, 6)
	fields = append(fields,
		zap.String("event_type", ev.EventType),
		zap.Time("at", ev.Timestamp),
	)
	if ev.UserID != "" {
		fields = append(fields, zap.String("user_id", ev.UserID))
	}
	if ev.TokenID != "" {
		fields = append(fields, zap.String("token_id", ev.TokenID))
	}
	if len(ev.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", ev.Metadata))
	}
	if ev.Success {
		s.logger.Info("auth event", fields...)
		return
	}
	s.logger.Warn("auth event failed", append(fields, zap.String("reason", ev.Error))...)
}

// JSONWriterSink writes newline-delimited JSON. Write errors are dropped.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		w = io.Discard
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, ev AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(ev)
}
