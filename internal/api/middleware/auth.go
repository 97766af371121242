package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/workforge/relay/internal/auth"
	"github.com/workforge/relay/internal/models"
)

type contextKey string

const UserContextKey contextKey = "user"

// AuthMiddleware resolves bearer tokens for the authenticated REST
// endpoints. The websocket path authenticates separately at announce.
type AuthMiddleware struct {
	resolver auth.Resolver
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(resolver auth.Resolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// RequireAuth verifies the Authorization bearer token and stores the
// resolved user on the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			jsonError(w, http.StatusUnauthorized, "bearer token required")
			return
		}

		user, err := m.resolver.Resolve(r.Context(), token)
		if err != nil {
			var authErr *auth.Error
			if errors.As(err, &authErr) {
				jsonError(w, http.StatusUnauthorized, authErr.Reason)
			} else {
				jsonError(w, http.StatusInternalServerError, "authentication unavailable")
			}
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserFromContext retrieves the authenticated user from the request
// context, or nil if the request was not authenticated.
func GetUserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserContextKey).(*models.User)
	return user
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}
