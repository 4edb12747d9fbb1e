package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const AuthenticatedPrincipalContextKey = ContextKey("authenticatedPrincipal")

// AuthenticatedPrincipal is the identity a valid API token carries.
type AuthenticatedPrincipal struct {
	Subject     string
	WorkspaceID string
}

type apiClaims struct {
	WorkspaceID string `json:"workspace_id"`
	jwt.RegisteredClaims
}

// PrincipalFromContext extracts the principal set by JWTAuthMiddleware.
func PrincipalFromContext(ctx context.Context) (AuthenticatedPrincipal, bool) {
	principal, ok := ctx.Value(AuthenticatedPrincipalContextKey).(AuthenticatedPrincipal)
	return principal, ok
}

// JWTAuthMiddleware authenticates API requests with an HMAC-signed bearer
// token carrying the caller's workspace.
func JWTAuthMiddleware(secret string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(r.Context(), "Authorization header missing")
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(r.Context(), "Invalid Authorization header format")
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			claims := &apiClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				logger.WarnContext(r.Context(), "Token validation failed", "error", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}
			if claims.WorkspaceID == "" {
				logger.WarnContext(r.Context(), "Token carries no workspace")
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			principal := AuthenticatedPrincipal{
				Subject:     claims.Subject,
				WorkspaceID: claims.WorkspaceID,
			}
			ctx := context.WithValue(r.Context(), AuthenticatedPrincipalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
