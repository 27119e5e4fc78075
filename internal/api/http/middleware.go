package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"carrental-backend/internal/config"
	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/security"

	"github.com/gorilla/mux"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityFromContext returns the authenticated actor, if any
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(domain.Identity)
	return id, ok
}

// identityMiddleware validates the bearer token against the security level
// registered for the matched route
func identityMiddleware(tokens security.TokenManager) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := ""
			if cur := mux.CurrentRoute(r); cur != nil {
				route = cur.GetName()
			}
			level := config.GetSecurityLevel(route)
			if level == config.SecurityPublic {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeError(w, r, errUnauthenticated)
				return
			}
			claims, err := tokens.ValidateToken(token)
			if err != nil {
				logger.Debug("Token rejected", "route", route, "error", err)
				writeError(w, r, errUnauthenticated)
				return
			}

			id := claims.Identity()
			if level == config.SecurityStaff && !id.IsStaff() {
				writeError(w, r, domain.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
		})
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

// loggingMiddleware logs one line per request
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if p := recover(); p != nil {
				logger.Error("Handler panicked", "method", r.Method, "path", r.URL.Path, "panic", p)
				writeJSON(rec, http.StatusInternalServerError, errorResponse{Code: http.StatusInternalServerError, Message: "internal error"})
			}
			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}()
		next.ServeHTTP(rec, r)
	})
}

// actor returns the identity placed by identityMiddleware
func actor(r *http.Request) (domain.Identity, error) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		return domain.Identity{}, errUnauthenticated
	}
	return id, nil
}
