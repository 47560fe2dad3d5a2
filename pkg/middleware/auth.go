package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
	"github.com/VictorEZCodes/clothing-shop/pkg/httputil"
	"github.com/VictorEZCodes/clothing-shop/pkg/logger"
)

type contextKeyType string

const claimsKey contextKeyType = "auth_claims"

// Claims is the identity carried by a storefront access token.
type Claims struct {
	UserID  string `json:"userId"`
	IsAdmin bool   `json:"isAdmin"`
}

// TokenValidator verifies a bearer token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

var errMalformedClaims = errors.New("token claims are malformed")

// JWTValidator returns a TokenValidator for HS256 tokens signed with secret.
// Expiry is enforced when the token carries an exp claim.
func JWTValidator(secret []byte) TokenValidator {
	return func(tokenString string) (*Claims, error) {
		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}

		mc, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			return nil, errMalformedClaims
		}
		userID, _ := mc["userId"].(string)
		if userID == "" {
			return nil, errMalformedClaims
		}
		isAdmin, _ := mc["isAdmin"].(bool)

		return &Claims{UserID: userID, IsAdmin: isAdmin}, nil
	}
}

// SignToken issues an HS256 token with the userId/isAdmin claim shape that
// JWTValidator accepts. A zero ttl produces a token without expiry.
func SignToken(secret []byte, userID string, isAdmin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"userId":  userID,
		"isAdmin": isAdmin,
		"iat":     now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Auth verifies the bearer token on every request. A missing token is
// answered with 401; a token that is present but malformed, forged or
// expired is answered with 403.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if authHeader == "" {
				httputil.WriteAppError(w, r, apperrors.Unauthorized("access token required"))
				return
			}

			scheme, token, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
				httputil.WriteAppError(w, r, apperrors.Forbidden("invalid authorization header"))
				return
			}

			claims, err := validate(strings.TrimSpace(token))
			if err != nil {
				logger.FromContext(r.Context()).DebugContext(r.Context(), "token rejected",
					slog.String("error", err.Error()),
				)
				httputil.WriteAppError(w, r, apperrors.Forbidden("invalid or expired token"))
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = logger.WithUserID(ctx, claims.UserID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", claims.UserID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOperator rejects requests whose token lacks the isAdmin claim.
func RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsOperator(r.Context()) {
			httputil.WriteAppError(w, r, apperrors.Forbidden("operator privilege required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the verified claims, if Auth ran.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

// UserIDFromContext extracts the authenticated user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.UserID
	}
	return ""
}

// IsOperator reports whether the authenticated user holds operator privilege.
func IsOperator(ctx context.Context) bool {
	c, ok := ClaimsFromContext(ctx)
	return ok && c.IsAdmin
}
