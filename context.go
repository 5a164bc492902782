package tokenauth

import "context"

// clientMetaKey indexes request metadata stored on a context.
type clientMetaKey uint8

const (
	clientIPKey clientMetaKey = iota
	userAgentKey
)

// WithClientIP records the caller's address on ctx. Audit events and the
// per-IP login throttle read it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// WithUserAgent records the caller's User-Agent on ctx for audit events.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func clientIPFromContext(ctx context.Context) string  { return clientMeta(ctx, clientIPKey) }
func userAgentFromContext(ctx context.Context) string { return clientMeta(ctx, userAgentKey) }

func clientMeta(ctx context.Context, key clientMetaKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
