package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Session cookie names set by the farm backend on login
const (
	AccessTokenCookie = "access_token"
	TokenTypeCookie   = "token_type"
)

type contextKey string

const userContextKey contextKey = "user"

// User is the caller identified by a session token
type User struct {
	ID    string
	Role  string
	Token string
}

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	jwtManager *JWTManager
	logger     *zap.Logger
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *JWTManager, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		logger:     logger,
	}
}

// TokenFromRequest extracts the session token from the Authorization header
// or, failing that, from the access_token cookie
func TokenFromRequest(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", false
		}
		return token, true
	}

	c, err := r.Cookie(AccessTokenCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	if tt, err := r.Cookie(TokenTypeCookie); err == nil && tt.Value != "" && !strings.EqualFold(tt.Value, "Bearer") {
		return "", false
	}
	return c.Value, true
}

// ClearSession expires the session cookies
func ClearSession(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, TokenTypeCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// Authenticate rejects requests without a valid session token
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.userFromRequest(r)
		if err != nil {
			m.logger.Warn("Rejected unauthenticated request",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			writeUnauthorized(w, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// Optional attaches the user when a valid token is present and lets every
// request through
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.userFromRequest(r)
		if err == nil {
			r = r.WithContext(WithUser(r.Context(), user))
		} else if err != errNoToken {
			m.logger.Debug("Ignoring invalid session token", zap.Error(err))
		}
		next.ServeHTTP(w, r)
	})
}

type authError string

func (e authError) Error() string { return string(e) }

const (
	errNoToken      authError = "authorization required"
	errInvalidToken authError = "invalid or expired token"
)

func (m *AuthMiddleware) userFromRequest(r *http.Request) (*User, error) {
	token, ok := TokenFromRequest(r)
	if !ok {
		return nil, errNoToken
	}
	claims, err := m.jwtManager.ValidateToken(token)
	if err != nil {
		m.logger.Debug("Token validation failed", zap.Error(err))
		return nil, errInvalidToken
	}
	return &User{ID: claims.Identity(), Role: claims.Role, Token: token}, nil
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}

// WithUser returns ctx carrying user
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext extracts the user from the request context
func GetUserFromContext(ctx context.Context) *User {
	user, ok := ctx.Value(userContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}
