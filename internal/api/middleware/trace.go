// Package middleware holds the HTTP middleware applied by the
// router.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/tverdon/offload-api/internal/api/shared"
)

// Trace attaches a trace ID to the request context and logs request
// start. Apply it early so every handler and error response can
// correlate its logs.
func Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())

		slog.Debug("request started",
			slog.String("trace_id", shared.GetTraceID(ctx)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
