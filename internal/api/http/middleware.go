package http

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"boxrental-backend/internal/config"
	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/logger"
	"boxrental-backend/internal/security"
)

type callerKey struct{}

// CallerFromContext returns the caller the auth middleware attached.
func CallerFromContext(ctx context.Context) (domain.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(domain.Caller)
	return c, ok
}

type authMiddleware struct {
	tokenManager security.TokenManager
}

// require wraps next so it only runs for callers meeting level.
func (m *authMiddleware) require(level config.SecurityLevel, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if level == config.SecurityPublic {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if len(header) <= 7 || !strings.EqualFold(header[:7], "bearer ") {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authorization token is not provided", Kind: "unauthenticated"})
			return
		}
		claims, err := m.tokenManager.ValidateToken(header[7:])
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token: " + err.Error(), Kind: "unauthenticated"})
			return
		}
		caller := claims.Caller()
		if level == config.SecurityStaff && !caller.IsStaff() {
			writeError(w, r, domain.ErrForbidden)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration_ms", time.Since(start).Milliseconds())
	})
}

// clientIP keys anonymous rate limiting. Forwarded headers are honored only
// behind a trusted proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			return strings.TrimSpace(strings.Split(fwd, ",")[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
