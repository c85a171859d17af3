package http

import (
	"log"
	"net/http"
	"net/url"
	"runtime/debug"
	"time"
)

// RequestLogger logs one line per request. Only paths are logged: the provider
// appends the payment key to the return URL's query string, so neither the
// request query nor a redirect target's query ever reaches the log. A panic in
// a handler is logged with its stack and answered with a JSON 500.
func RequestLogger(next http.Handler, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseRecorder{ResponseWriter: w}

		defer func() {
			if p := recover(); p != nil {
				logger.Printf("panic method=%s path=%s: %v\n%s", r.Method, r.URL.Path, p, debug.Stack())
				if rw.status == 0 {
					writeError(rw, http.StatusInternalServerError, codeInternalError, "internal error")
				}
			}

			line := "request method=%s path=%s status=%d bytes=%d duration=%s"
			args := []any{r.Method, r.URL.Path, rw.code(), rw.bytes, time.Since(start)}
			if loc := redirectPath(rw.Header().Get("Location")); loc != "" {
				line += " location=%s"
				args = append(args, loc)
			}
			logger.Printf(line, args...)
		}()

		next.ServeHTTP(rw, r)
	})
}

// redirectPath strips the query from a Location header.
func redirectPath(loc string) string {
	if loc == "" {
		return ""
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "?"
	}
	return u.Path
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}
