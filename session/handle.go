package session

import "context"

// Handle is the request-scoped view of one session.
type Handle struct {
	ID        string
	UserID    string
	CSRFToken string
	Remember  bool
}

// Authenticated reports whether a user is logged into the session.
func (h *Handle) Authenticated() bool {
	return h != nil && h.UserID != ""
}

type handleContextKey struct{}

// WithHandle attaches h to ctx.
func WithHandle(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, handleContextKey{}, h)
}

// HandleFromContext returns the handle attached by WithHandle.
func HandleFromContext(ctx context.Context) (*Handle, bool) {
	if ctx == nil {
		return nil, false
	}
	h, ok := ctx.Value(handleContextKey{}).(*Handle)
	return h, ok && h != nil
}
