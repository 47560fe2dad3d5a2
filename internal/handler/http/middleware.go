package http

import (
	"net/http"
	"strings"

	"github.com/VictorEZCodes/clothing-shop/internal/domain"
	"github.com/VictorEZCodes/clothing-shop/pkg/middleware"
)

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// actorFrom returns the caller identity established by the Auth middleware.
func actorFrom(r *http.Request) domain.Actor {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return domain.Actor{}
	}
	return domain.Actor{UserID: claims.UserID, IsOperator: claims.IsAdmin}
}
