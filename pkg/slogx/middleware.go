package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/iworkcore/pkg/idx"
)

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

// HTTPMiddleware attaches a request logger to the context and writes one
// http_request line once the handler returns.
func HTTPMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}

			// Reuse the caller's request ID so a trace spans services,
			// otherwise mint a ULID
			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = idx.New().String()
			}
			w.Header().Set(RequestIDHeader, reqID)

			// Every line logged while serving carries these fields
			logger := base.With(
				"req_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			// Handlers and services pick the logger up with FromContext
			next.ServeHTTP(rw, r.WithContext(WithContext(r.Context(), logger)))

			// One summary line per request, after the handler is done
			logger.Info("http_request",
				"status", rw.Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

// StatusRecorder remembers the status code written by a handler.
type StatusRecorder struct {
	http.ResponseWriter

	Status int
}

// WriteHeader records code before passing it on. Handlers that never call it
// leave the default 200 in place.
func (rw *StatusRecorder) WriteHeader(code int) {
	rw.Status = code
	rw.ResponseWriter.WriteHeader(code)
}
