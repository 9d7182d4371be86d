// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	connectfeature "github.com/dalemusser/filesmanager/internal/app/features/connect"
	errorsfeature "github.com/dalemusser/filesmanager/internal/app/features/errors"
	filesfeature "github.com/dalemusser/filesmanager/internal/app/features/files"
	healthfeature "github.com/dalemusser/filesmanager/internal/app/features/health"
	statusfeature "github.com/dalemusser/filesmanager/internal/app/features/status"
	usersfeature "github.com/dalemusser/filesmanager/internal/app/features/users"
	"github.com/dalemusser/filesmanager/internal/app/store/audit"
	filestore "github.com/dalemusser/filesmanager/internal/app/store/files"
	"github.com/dalemusser/filesmanager/internal/app/store/ratelimit"
	"github.com/dalemusser/filesmanager/internal/app/store/sessions"
	userstore "github.com/dalemusser/filesmanager/internal/app/store/users"
	"github.com/dalemusser/filesmanager/internal/app/system/apicors"
	"github.com/dalemusser/filesmanager/internal/app/system/auditlog"
	"github.com/dalemusser/filesmanager/internal/app/system/authn"
	"github.com/dalemusser/filesmanager/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. Every store and service is built here from deps
// and handed to the feature handlers through their constructors.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	errLog := errorsfeature.NewErrorLogger(logger)

	// Audit trail for registration, login and logout.
	auditLogger := auditlog.New(audit.New(db), logger, auditlog.Mode(appCfg.AuditLogAuth))

	users := userstore.New(db)
	nodes := filestore.New(db)
	sessionStore := sessions.New(deps.Redis, appCfg.SessionTTL)

	var limiter authn.Limiter
	if appCfg.RateLimitEnabled {
		limiter = ratelimit.New(db, appCfg.RateLimitLoginAttempts, appCfg.RateLimitLoginWindow, appCfg.RateLimitLoginLockout)
	}
	authenticator := authn.New(users, sessionStore, limiter, auditLogger, logger)

	fileMgr := filesfeature.NewManager(authenticator, nodes, deps.FileStorage, deps.Jobs, logger)

	mongoPinger := healthfeature.Mongo(deps.MongoClient)

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	// Request ids tag error logs (features/errors).
	r.Use(chimw.RequestID)

	// Request timeout middleware: prevents requests from hanging indefinitely.
	// Uploads carry base64 bodies, so the budget is generous.
	r.Use(chimw.Timeout(requestTimeout(appCfg)))

	// CORS middleware: must be early in the chain to handle preflight requests.
	// Clients send X-Token, which the generic CORS config does not allow.
	r.Use(apicors.Middleware(appCfg.CORSOrigins...))

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	r.NotFound(errorsfeature.NotFound)
	r.MethodNotAllowed(errorsfeature.MethodNotAllowed)

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	// /status and /stats
	statusHandler := statusfeature.NewHandler(sessionStore, mongoPinger, users, nodes, errLog, logger)
	statusfeature.MountRootEndpoints(r, statusHandler)

	// Health probes: /health, /ready, /readyz, /livez
	healthHandler := healthfeature.NewHandler(logger,
		healthfeature.Service{Name: "mongodb", Pinger: mongoPinger},
		healthfeature.Service{Name: "redis", Pinger: sessionStore},
	)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	// /connect and /disconnect
	connectHandler := connectfeature.NewHandler(authenticator, errLog, logger)
	connectfeature.MountRootEndpoints(r, connectHandler)

	// /users and /users/me
	usersHandler := usersfeature.NewHandler(users, authenticator, deps.Jobs, auditLogger, errLog, logger)
	r.Mount("/users", usersfeature.Routes(usersHandler))

	// /files
	filesHandler := filesfeature.NewHandler(fileMgr, errLog, logger)
	r.Mount("/files", filesfeature.Routes(filesHandler))

	return r, nil
}

// requestTimeout bounds a whole request. It leaves room beyond the transfer
// timeout so handlers report their own deadline errors first.
func requestTimeout(appCfg AppConfig) time.Duration {
	d := appCfg.TimeoutTransfer
	if d <= 0 {
		d = timeouts.DefaultTransfer
	}
	return d + 5*time.Second
}
