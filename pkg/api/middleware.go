package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elettra-ics/inau/pkg/refstore"
)

type contextKey string

const (
	requestIDKey contextKey = "requestID"
	userKey      contextKey = "user"
)

// AuthMode selects how the caller identity is extracted from a request.
type AuthMode string

const (
	// AuthModeHeader trusts an X-User header. Development only.
	AuthModeHeader AuthMode = "header"
	// AuthModeBasic reads the username from Basic credentials. Password
	// binding happens at the fronting proxy; the server resolves the
	// username against the users table.
	AuthModeBasic AuthMode = "basic"
	// AuthModeJWT validates an HS256 bearer token and reads the subject claim.
	AuthModeJWT AuthMode = "jwt"
)

// RequestID assigns a UUID to every request and echoes it back in the
// X-Request-Id header so log lines and client reports can be correlated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom returns the request id stored by the RequestID middleware,
// or "" when the middleware did not run.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogger emits one structured line per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", RequestIDFrom(r.Context())),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}

// Authenticator resolves the calling user against the users table.
type Authenticator struct {
	Refs      *refstore.Store
	Mode      AuthMode
	JWTSecret []byte
}

// Middleware rejects requests without a resolvable identity and stores the
// resolved user in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, err := a.callerName(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		user, err := a.Refs.UserByName(r.Context(), name)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("unknown user %q", name))
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) callerName(r *http.Request) (string, error) {
	switch a.Mode {
	case AuthModeBasic:
		name, _, ok := r.BasicAuth()
		if !ok || name == "" {
			return "", fmt.Errorf("missing basic credentials")
		}
		return name, nil
	case AuthModeJWT:
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			return "", fmt.Errorf("missing bearer token")
		}
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return a.JWTSecret, nil
		})
		if err != nil {
			return "", fmt.Errorf("invalid token: %v", err)
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			return "", fmt.Errorf("token has no subject")
		}
		return sub, nil
	default:
		name := r.Header.Get("X-User")
		if name == "" {
			return "", fmt.Errorf("missing X-User header")
		}
		return name, nil
	}
}

// UserFrom returns the authenticated user, or nil when auth is disabled.
func UserFrom(ctx context.Context) *refstore.User {
	user, _ := ctx.Value(userKey).(*refstore.User)
	return user
}

// RequireAdmin gates mutating endpoints on the user's admin flag.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if user == nil || !user.Admin {
			writeError(w, http.StatusForbidden, "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
