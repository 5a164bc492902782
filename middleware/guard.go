package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/tokenauth"
)

// Authenticator resolves the subject of an access token.
// *tokenauth.JWTService implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (tokenauth.Record, error)
}

type subjectContextKey struct{}

// SubjectFromContext returns the token subject stored by Guard or GinGuard.
func SubjectFromContext(ctx context.Context) (tokenauth.Record, bool) {
	sub, ok := ctx.Value(subjectContextKey{}).(tokenauth.Record)
	return sub, ok
}

// WithSubject attaches sub to ctx.
func WithSubject(ctx context.Context, sub tokenauth.Record) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, sub)
}

// Guard rejects requests without a valid "Authorization: Bearer" token
// with 401 and passes the token subject to next through the context.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			sub, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), sub)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
