package apiapp

import (
	"net"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kmish9685/Persona-AI-sub000/internal/domain/model"
	authsvc "github.com/kmish9685/Persona-AI-sub000/internal/services/auth"
	httperrors "github.com/kmish9685/Persona-AI-sub000/internal/transport/http/errors"
)

func ApplyMiddlewares(r chiRouter, log *zap.Logger) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(requestLogger(log))
}

// IdentityMiddleware resolves who is asking. A valid bearer token yields an
// email identity; no token falls back to the client ip. A token that is
// present but invalid is rejected outright rather than silently demoted to
// the ip bucket.
func IdentityMiddleware(jwtManager *authsvc.JWTManager, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := model.ByIP(clientIP(r))

			if token, ok := extractBearerToken(r.Header.Get("Authorization")); ok {
				if jwtManager == nil {
					httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
						Code:    "AUTH_UNAVAILABLE",
						Message: "token validation is unavailable",
					})
					return
				}
				claims, err := jwtManager.ParseSessionToken(token)
				if err != nil {
					if log != nil {
						log.Debug("session token rejected", zap.Error(err))
					}
					httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
						Code:    "UNAUTHORIZED",
						Message: "invalid session token",
					})
					return
				}
				identity = model.ByEmail(claims.Email)
			}

			next.ServeHTTP(w, r.WithContext(authsvc.WithIdentity(r.Context(), identity)))
		})
	}
}

func extractBearerToken(value string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

func clientIP(r *http.Request) string {
	// chi's RealIP already rewrote RemoteAddr from X-Forwarded-For/X-Real-IP.
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			if log != nil {
				log.Info("http_request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}

type chiRouter interface {
	Use(middlewares ...func(http.Handler) http.Handler)
}
