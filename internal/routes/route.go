package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"vaxdash/internal/config"
	"vaxdash/internal/handlers"
	"vaxdash/internal/logger"
	"vaxdash/internal/metrics"
	mdlwr "vaxdash/internal/middleware"
	"vaxdash/internal/services"
)

// Deps are the wired services the router exposes. Login routes are mounted
// only when Authenticator is set, admin routes only when Verifier is set.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
	Dashboard  *services.DashboardService
	Scenarios  *services.ScenarioService
	Boundaries *services.BoundaryService

	Authenticator handlers.Authenticator
	Verifier      mdlwr.TokenVerifier
	Versions      mdlwr.VersionChecker
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	logr := d.Logger.Logger
	dashboardHandler := handlers.NewDashboardHandler(d.Dashboard, logr)
	scenarioHandler := handlers.NewScenarioHandler(d.Scenarios, logr)
	boundaryHandler := handlers.NewBoundaryHandler(d.Boundaries, logr)
	adminHandler := handlers.NewAdminHandler(d.Dashboard, logr)

	r.Get("/healthz", handlers.Health)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/timeseries", func(r chi.Router) {
			r.Get("/", dashboardHandler.GetTimeSeries)
			r.Get("/regional", dashboardHandler.GetRegionalTimeSeries)
			r.Get("/weekly", dashboardHandler.GetWeeklyPattern)
		})
		r.Get("/kpi", dashboardHandler.GetHeadline)

		r.Route("/regions", func(r chi.Router) {
			r.Get("/summary", dashboardHandler.GetRegionalSummary)
			r.Get("/boundaries", boundaryHandler.GetBoundaries)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/simulate", scenarioHandler.Simulate)
			r.Get("/table", scenarioHandler.Table)
			r.Get("/sensitivity", scenarioHandler.Sensitivity)
		})

		if d.Authenticator != nil {
			authHandler := handlers.NewAuthHandler(d.Authenticator, d.Logger)
			r.Route("/auth", func(r chi.Router) {
				r.Post("/login", authHandler.LoginLocal)
				r.Post("/ldap", authHandler.LoginLDAP)
			})
		}

		if d.Verifier != nil {
			authMW := mdlwr.NewAuthMiddleware(d.Verifier, d.Versions, logr)
			r.Route("/admin", func(r chi.Router) {
				r.Use(authMW.JWTAuth)
				r.Use(authMW.RequireRole(services.RoleAdmin))
				r.Post("/reload", adminHandler.Reload)
			})
		}
	})

	return r
}
