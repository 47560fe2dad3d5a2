package middleware

import (
	"log/slog"
	"net/http"

	"github.com/VictorEZCodes/clothing-shop/pkg/logger"
)

// RequestLogger stores a request-scoped logger in context, enriched with
// correlation_id, trace_id and span_id. Handlers retrieve it with
// logger.FromContext(ctx). Auth adds user_id to it once the token is verified.
//
// Mount after RequestLogging (correlation id) and Tracing (span context).
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
