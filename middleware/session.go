package middleware

import (
	"net/http"

	"github.com/MrEthical07/tokenauth/session"
)

// SessionCookie configures the cookie carrying the session id.
type SessionCookie struct {
	Name     string
	Path     string
	Secure   bool
	SameSite http.SameSite
}

// Sessions loads the session named by the cookie, attaches its handle to the
// request context and writes the cookie back before the response header,
// since Login and InvalidateSession rotate the id.
func Sessions(store *session.Store, cookie SessionCookie) func(http.Handler) http.Handler {
	if cookie.Name == "" {
		cookie.Name = "tokenauth_session"
	}
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	if cookie.SameSite == 0 {
		cookie.SameSite = http.SameSiteLaxMode
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(cookie.Name); err == nil {
				id = c.Value
			}

			h, err := store.Load(r.Context(), id)
			if err != nil {
				http.Error(w, "session unavailable", http.StatusServiceUnavailable)
				return
			}

			cw := &cookieWriter{ResponseWriter: w, handle: h, cookie: cookie}
			next.ServeHTTP(cw, r.WithContext(session.WithHandle(r.Context(), h)))
			cw.writeCookie()
		})
	}
}

// RequireUser rejects requests whose session has no logged-in user. It must
// run inside Sessions.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := session.HandleFromContext(r.Context())
		if !ok || !h.Authenticated() {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type cookieWriter struct {
	http.ResponseWriter
	handle  *session.Handle
	cookie  SessionCookie
	written bool
}

func (w *cookieWriter) writeCookie() {
	if w.written {
		return
	}
	w.written = true
	http.SetCookie(w.ResponseWriter, &http.Cookie{
		Name:     w.cookie.Name,
		Value:    w.handle.ID,
		Path:     w.cookie.Path,
		HttpOnly: true,
		Secure:   w.cookie.Secure,
		SameSite: w.cookie.SameSite,
	})
}

func (w *cookieWriter) WriteHeader(status int) {
	w.writeCookie()
	w.ResponseWriter.WriteHeader(status)
}

func (w *cookieWriter) Write(b []byte) (int, error) {
	w.writeCookie()
	return w.ResponseWriter.Write(b)
}

func (w *cookieWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
