package audit

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// responseCapture wraps http.ResponseWriter to capture the status code.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Middleware records every mutating request after its handler completes. The
// actor and requestID extractors come from the transport layer so this
// package does not depend on how identity is wired.
func Middleware(store *Store, cfg *Config, logger *slog.Logger, actor, requestID func(*http.Request) string) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg == nil || !cfg.Enabled || store == nil || !isMutation(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			outcome := outcomeFromStatus(capture.statusCode)
			if outcome == "denied" && !cfg.LogDenied {
				return
			}

			who := "anonymous"
			if actor != nil {
				if name := actor(r); name != "" {
					who = name
				}
			}
			reqID := ""
			if requestID != nil {
				reqID = requestID(r)
			}

			event := &Event{
				ID:         uuid.NewString(),
				Actor:      who,
				Method:     r.Method,
				Path:       r.URL.Path,
				Resource:   resourceFromPath(r.URL.Path),
				Outcome:    outcome,
				StatusCode: capture.statusCode,
				RequestID:  reqID,
				CreatedAt:  start,
			}

			// Best-effort write: never fail the request the event describes.
			if err := store.Append(r.Context(), event); err != nil {
				logger.Error("failed to write audit event", "error", err, "requestID", reqID)
			}
		})
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// resourceFromPath extracts the resource family from an API path, for
// example /api/v1/refs/hosts -> refs, /api/v1/installations/ -> installations.
func resourceFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if p == "v1" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return "unknown"
}

// outcomeFromStatus maps HTTP status codes to audit outcomes.
func outcomeFromStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "success"
	case code == http.StatusForbidden:
		return "denied"
	default:
		return "failure"
	}
}
