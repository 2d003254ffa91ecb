package server

import (
	"net/http"
	"strings"
	"time"
)

// Header names shared with the web and mobile clients.
const (
	HeaderAuthorization = "Authorization"
	HeaderTenantID      = "X-Tenant-Id"
)

// bearerToken extracts the bearer token from the Authorization header,
// returning "" when absent or malformed.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get(HeaderAuthorization)
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requestTenantID returns the tenant named by the request headers. Tenant
// resolution against the repo happens in the accounts service.
func requestTenantID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderTenantID))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// requestLogger wraps the mux with zerolog request logging.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("tenant", requestTenantID(r)).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
