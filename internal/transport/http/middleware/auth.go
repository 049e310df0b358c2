package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-classroom-api/internal/domain"
	jwtinfra "github.com/go-classroom-api/internal/infrastructure/jwt"
)

type contextKey string

const (
	identityKey  contextKey = "identity"
	sessionIDKey contextKey = "session_id"
)

// Auth returns middleware that validates the Bearer JWT and injects the
// caller identity into the request context. The dispatch engine never sees
// tokens, only the resulting {userId, role} pair.
func Auth(provider *jwtinfra.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := provider.Verify(tokenStr)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			role, err := domain.ParseRole(claims.Role)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "unrecognized role")
				return
			}
			identity := domain.Identity{UserID: claims.UserID, Role: role}
			ctx := context.WithValue(r.Context(), identityKey, identity)
			ctx = context.WithValue(ctx, sessionIDKey, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity injects an identity directly; used by tests.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext extracts the caller identity from the request context.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	i, ok := ctx.Value(identityKey).(domain.Identity)
	return i, ok
}

// SessionIDFromContext extracts the session id carried in the bearer token.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(sessionIDKey).(string)
	return s, ok
}
