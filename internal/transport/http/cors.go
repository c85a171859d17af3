package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const preflightMaxAge = 10 * time.Minute

// corsPolicy answers cross-origin requests from the booking front-end. Listed
// origins get credentialed responses because the session cookie has to travel
// with them; a "*" entry allows any origin without credentials.
type corsPolicy struct {
	any     bool
	origins map[string]bool
}

func newCORSPolicy(origins []string) corsPolicy {
	p := corsPolicy{origins: make(map[string]bool, len(origins))}
	for _, o := range origins {
		switch o = strings.TrimRight(strings.TrimSpace(o), "/"); o {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[o] = true
		}
	}
	return p
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

func (p corsPolicy) decorate(h http.Header, origin string) bool {
	switch {
	case p.origins[origin]:
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
	case p.any:
		h.Set("Access-Control-Allow-Origin", "*")
	default:
		return false
	}
	return true
}

// CORS applies the allow-list. Disallowed preflights are refused; other
// requests from unknown origins pass through without CORS headers and the
// browser blocks the response.
func CORS(allowedOrigins []string, next http.Handler) http.Handler {
	policy := newCORSPolicy(allowedOrigins)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		ok := policy.decorate(w.Header(), origin)
		if !isPreflight(r) {
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			writeError(w, http.StatusForbidden, codeForbidden, "origin not allowed")
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Max-Age", strconv.Itoa(int(preflightMaxAge.Seconds())))
		w.WriteHeader(http.StatusNoContent)
	})
}
