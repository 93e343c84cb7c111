package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/elettra-ics/inau/pkg/audit"
	"github.com/elettra-ics/inau/pkg/builds"
	"github.com/elettra-ics/inau/pkg/cache"
	"github.com/elettra-ics/inau/pkg/ledger"
	"github.com/elettra-ics/inau/pkg/refstore"
)

// Config carries the transport-level knobs.
type Config struct {
	AuthEnabled bool
	AuthMode    AuthMode
	JWTSecret   string
	CORSOrigins []string
}

// DefaultConfig leaves auth off and trusts every origin, which is what a
// development instance wants.
func DefaultConfig() Config {
	return Config{
		AuthEnabled: false,
		AuthMode:    AuthModeHeader,
		CORSOrigins: []string{"*"},
	}
}

// ConfigFromEnv starts from defaults and applies the INAU_AUTH_* overrides.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("INAU_AUTH_ENABLED"); v == "true" || v == "1" {
		cfg.AuthEnabled = true
	}
	if v := os.Getenv("INAU_AUTH_MODE"); v != "" {
		cfg.AuthMode = AuthMode(v)
	}
	if v := os.Getenv("INAU_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("INAU_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}
	return cfg
}

// Server bundles the services the handlers dispatch to.
type Server struct {
	refs   *refstore.Store
	builds *builds.Service
	ledger *ledger.Ledger
	logger *zap.Logger
	cfg    Config

	cacheMgr   *cache.Manager
	auditStore *audit.Store
	auditCfg   *audit.Config
}

func NewServer(refs *refstore.Store, buildSvc *builds.Service, led *ledger.Ledger, logger *zap.Logger, cfg Config) *Server {
	return &Server{refs: refs, builds: buildSvc, ledger: led, logger: logger, cfg: cfg}
}

// EnableCache turns on response caching for the reference catalog and report
// endpoints. A nil manager leaves caching off.
func (s *Server) EnableCache(mgr *cache.Manager) {
	s.cacheMgr = mgr
}

// EnableAudit records mutating requests into the audit trail and exposes it
// at /api/v1/audit.
func (s *Server) EnableAudit(store *audit.Store, cfg *audit.Config) {
	s.auditStore = store
	s.auditCfg = cfg
}

func (s *Server) refsCache() *cache.LRUCache {
	if s.cacheMgr == nil {
		return nil
	}
	return s.cacheMgr.Refs()
}

func (s *Server) reportCache() *cache.LRUCache {
	if s.cacheMgr == nil {
		return nil
	}
	return s.cacheMgr.Report()
}

// Router assembles the full route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.AuthEnabled {
			auth := &Authenticator{
				Refs:      s.refs,
				Mode:      s.cfg.AuthMode,
				JWTSecret: []byte(s.cfg.JWTSecret),
			}
			r.Use(auth.Middleware)
		}
		if s.auditStore != nil {
			r.Use(audit.Middleware(s.auditStore, s.auditCfg, nil, callerName, requestIDHeader))
		}
		r.Route("/refs", func(r chi.Router) {
			r.Use(cache.Middleware(s.refsCache()))
			s.refRoutes(r)
		})
		r.Route("/builds", s.buildRoutes)
		r.Route("/installations", s.installationRoutes)
		r.With(cache.Middleware(s.reportCache())).Get("/reports/facilities", s.facilityReport)
		r.With(s.adminOnly).Get("/audit", s.auditTrail)
	})
	return r
}

// callerName resolves the audit actor from the authenticated user, falling
// back to the raw X-User header when auth is off.
func callerName(r *http.Request) string {
	if user := UserFrom(r.Context()); user != nil {
		return user.Name
	}
	return r.Header.Get("X-User")
}

func requestIDHeader(r *http.Request) string {
	return RequestIDFrom(r.Context())
}

func (s *Server) auditTrail(w http.ResponseWriter, r *http.Request) {
	if s.auditStore == nil {
		writeError(w, http.StatusNotFound, "audit trail is not enabled")
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	events, err := s.auditStore.Recent(r.Context(), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// adminOnly gates a route on the admin flag when auth is on. With auth off
// there is no identity to check, so the gate would reject everything.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	if !s.cfg.AuthEnabled {
		return next
	}
	return RequireAdmin(next)
}

func (s *Server) admin(h http.HandlerFunc) http.HandlerFunc {
	return s.adminOnly(h).ServeHTTP
}
