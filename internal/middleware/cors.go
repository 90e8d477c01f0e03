package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	corsAllowMethods  = "GET, POST, OPTIONS"
	corsAllowHeaders  = "Accept, Authorization, Content-Type, X-CSRF-Token, X-Requested-With, Origin, X-Request-ID"
	corsExposeHeaders = "X-Request-ID"
)

// CORSMiddleware handles Cross-Origin Resource Sharing
type CORSMiddleware struct {
	allowedOrigins []string
	logger         *zap.Logger
}

// NewCORSMiddleware creates a new CORS middleware. Entries may be "*" or
// contain a "*" wildcard such as "http://*.farm.local".
func NewCORSMiddleware(allowedOrigins []string, logger *zap.Logger) *CORSMiddleware {
	return &CORSMiddleware{
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// Allowed reports whether origin may call the server
func (m *CORSMiddleware) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range m.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
		if prefix, suffix, ok := strings.Cut(allowed, "*"); ok &&
			len(origin) >= len(prefix)+len(suffix) &&
			strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}

// EnableCORS adds CORS headers for allowed origins and answers preflights
func (m *CORSMiddleware) EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		switch {
		case origin == "":
			// same-origin request
		case m.Allowed(origin):
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			h.Set("Access-Control-Max-Age", "86400")
		default:
			m.logger.Warn("CORS: Origin not allowed",
				zap.String("origin", origin),
				zap.String("path", r.URL.Path))
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
