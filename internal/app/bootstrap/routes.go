// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/benbjohnson/clock"
	"github.com/dalemusser/groupdeal/internal/app/engine"
	activitiesfeature "github.com/dalemusser/groupdeal/internal/app/features/activities"
	groupsfeature "github.com/dalemusser/groupdeal/internal/app/features/groups"
	healthfeature "github.com/dalemusser/groupdeal/internal/app/features/health"
	loginfeature "github.com/dalemusser/groupdeal/internal/app/features/login"
	"github.com/dalemusser/groupdeal/internal/app/registry"
	"github.com/dalemusser/groupdeal/internal/app/stats"
	activitystore "github.com/dalemusser/groupdeal/internal/app/store/activities"
	auditstore "github.com/dalemusser/groupdeal/internal/app/store/audit"
	groupstore "github.com/dalemusser/groupdeal/internal/app/store/groups"
	participationstore "github.com/dalemusser/groupdeal/internal/app/store/participations"
	productstore "github.com/dalemusser/groupdeal/internal/app/store/products"
	userstore "github.com/dalemusser/groupdeal/internal/app/store/users"
	"github.com/dalemusser/groupdeal/internal/app/system/auditlog"
	"github.com/dalemusser/groupdeal/internal/app/system/auth"
	"github.com/dalemusser/groupdeal/internal/app/system/limits"
	"github.com/dalemusser/groupdeal/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. GroupDeal applies session middleware
// and mounts feature routers for authentication, activity administration,
// and group participation.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	db := deps.MongoDatabase
	clk := clock.New()

	activities := activitystore.New(db)
	groups := groupstore.New(db)
	participations := participationstore.New(db)
	products := productstore.New(db)
	users := userstore.New(db)

	reg := registry.New(activities, products, clk, logger)
	eng := engine.New(activities, groups, participations, users, products, clk, logger)
	agg := stats.New(activities, groups)

	audit := auditlog.New(auditstore.New(db), logger, appCfg.AuditLog)
	loginLimiter := ratelimit.New(appCfg.LoginRateLimit, appCfg.LoginRateWindow)

	r := chi.NewRouter()

	// Cap request bodies before any handler reads them.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			req.Body = http.MaxBytesReader(w, req.Body, limits.MaxJSONBodySize)
			next.ServeHTTP(w, req)
		})
	})

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication
	loginHandler := loginfeature.NewHandler(users, sessionMgr, audit, loginLimiter, logger)
	r.Mount("/", loginfeature.Routes(loginHandler))

	// Activity administration and browsing
	activitiesHandler := activitiesfeature.NewHandler(reg, agg, audit, logger)
	r.Mount("/activities", activitiesfeature.Routes(activitiesHandler, sessionMgr))

	// Group initiation, joining, and detail
	groupsHandler := groupsfeature.NewHandler(eng, logger)
	r.Mount("/groups", groupsfeature.Routes(groupsHandler, sessionMgr))

	return r, nil
}
