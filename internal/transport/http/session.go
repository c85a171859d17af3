package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const DefaultSessionCookie = "checkin_session"

type sessionKey struct{}

// SessionOptions configures the cookie that scopes a browser's persisted state.
type SessionOptions struct {
	CookieName string
	Secure     bool
}

// Sessions makes sure every request carries a session ID, issuing a cookie when
// the browser has none. The cookie is SameSite=Lax so the provider's top-level
// redirect back to us still sends it.
func Sessions(opts SessionOptions, next http.Handler) http.Handler {
	if opts.CookieName == "" {
		opts.CookieName = DefaultSessionCookie
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(opts.CookieName); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     opts.CookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
	})
}

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionID returns the session attached by Sessions.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionKey{}).(string)
	return id, ok && id != ""
}

// requireSession answers 500 when a handler is mounted without the middleware.
func requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := SessionID(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternalError, "session missing")
	}
	return id, ok
}
