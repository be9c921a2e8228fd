// Package middleware holds the HTTP middleware shared by every route group.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RequestLogger logs one line per request once the handler returns. Server
// errors are logged at error level.
func RequestLogger(log zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			rw := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)

			level := zerolog.InfoLevel
			if rw.Status() >= http.StatusInternalServerError {
				level = zerolog.ErrorLevel
			}
			entry := log.WithLevel(level).
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("route", r.Method+" "+r.URL.Path)
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				entry = entry.Str("pattern", rctx.RoutePattern())
			}
			if r.URL.RawQuery != "" {
				entry = entry.Str("query", r.URL.RawQuery)
			}
			entry.
				Str("client", ClientIP(r)).
				Str("agent", r.UserAgent()).
				Int("status", rw.Status()).
				Int("size", rw.BytesWritten()).
				Float64("latency_ms", float64(time.Since(began).Microseconds())/1000).
				Msg("Request served")
		})
	}
}
