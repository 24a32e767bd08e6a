package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"vaxdash/internal/auth"
)

// TokenVerifier is satisfied by *auth.JWTManager.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// VersionChecker is satisfied by *services.AuthService.
type VersionChecker interface {
	CheckTokenVersion(ctx context.Context, analystID string, tokenVersion int) (bool, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
	versions VersionChecker
	logr     *zap.Logger
}

type contextKey string

const claimsKey contextKey = "claims"

// NewAuthMiddleware creates a reusable JWT auth middleware instance. versions
// may be nil when there is no analyst store to check revocation against.
func NewAuthMiddleware(verifier TokenVerifier, versions VersionChecker, logr *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, versions: versions, logr: logr}
}

// ClaimsFromContext returns the claims attached by JWTAuth.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

// JWTAuth validates the bearer token and attaches its claims to the request context
func (m *AuthMiddleware) JWTAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, "invalid token format", http.StatusUnauthorized)
			return
		}

		claims, err := m.verifier.VerifyToken(tokenString)
		if err != nil {
			m.logr.Warn("token parse error", zap.Error(err))
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		if m.versions != nil {
			valid, err := m.versions.CheckTokenVersion(r.Context(), claims.Subject, claims.TokenVersion)
			if err != nil {
				m.logr.Error("failed checking token version", zap.Error(err), zap.String("analyst_id", claims.Subject))
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			if !valid {
				m.logr.Warn("token version invalid", zap.String("analyst_id", claims.Subject))
				http.Error(w, "token revoked or invalid", http.StatusUnauthorized)
				return
			}
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects requests whose claims lack role. It must run after JWTAuth.
func (m *AuthMiddleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || !claims.HasRole(role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
