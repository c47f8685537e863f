// internal/auth/middleware.go
// Bearer-token authentication. Tokens are issued elsewhere; this service
// verifies them and puts the caller's user id on the request context.

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
	"github.com/imadgeboyega/kiekky-events/internal/common/utils"
)

type contextKey string

const userIDKey contextKey = "userID"

// Middleware provides authentication middleware
type Middleware struct {
	secret string
	log    *logger.Logger
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(secret string, log *logger.Logger) *Middleware {
	return &Middleware{secret: secret, log: log.With("component", "auth")}
}

// Authenticate rejects requests without a valid access token and adds the
// user id to the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			utils.ErrorResponse(w, "Missing or invalid authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := utils.ValidateJWT(token, m.secret)
		if err != nil {
			m.log.Debug("token rejected", "error", err, "path", r.URL.Path)
			utils.ErrorResponse(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		// Refresh tokens are not accepted on API routes
		if claims.Type != "access" {
			utils.ErrorResponse(w, "Invalid token type", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
	})
}

// OptionalAuthenticate adds user context if a valid token is present, but
// doesn't fail if missing
func (m *Middleware) OptionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := utils.ValidateJWT(token, m.secret)
		if err == nil && claims.Type == "access" {
			r = r.WithContext(WithUserID(r.Context(), claims.UserID))
		}
		next.ServeHTTP(w, r)
	})
}

// extractToken reads "Bearer <token>" from the Authorization header. The
// websocket upgrade cannot carry headers from browsers, so a "token" query
// parameter is accepted as well.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return r.URL.Query().Get("token")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// WithUserID returns ctx carrying userID.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext extracts user ID from request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey).(uuid.UUID)
	return userID, ok && userID != uuid.Nil
}
