package http

import (
	"context"
	"net/http"
	"strings"

	"fintrack/internal/auth"
)

type contextKey string

const claimsContextKey contextKey = "auth_claims"

// requireAuth verifies the bearer token and stores its claims in the
// request context. Requests without a valid token never reach the
// handler.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondUnauthorized(w, "missing bearer token")
			return
		}

		claims, err := s.issuer.Verify(strings.TrimSpace(token))
		if err != nil {
			respondUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authUserID returns the authenticated user id, or 0 when the request
// skipped the auth middleware.
func authUserID(ctx context.Context) int64 {
	if claims, ok := ctx.Value(claimsContextKey).(*auth.Claims); ok {
		return claims.UserID
	}
	return 0
}
