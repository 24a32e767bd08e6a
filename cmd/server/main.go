package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"vaxdash/internal/auth"
	"vaxdash/internal/config"
	"vaxdash/internal/database"
	"vaxdash/internal/loader"
	"vaxdash/internal/logger"
	"vaxdash/internal/metrics"
	"vaxdash/internal/models"
	"vaxdash/internal/routes"
	"vaxdash/internal/services"
)

func main() {
	cfg := config.Load()
	logr := logger.New(cfg)
	defer logr.Sync()

	if err := cfg.Validate(); err != nil {
		logr.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// The database backs the postgres data source and analyst logins. Only
	// the former makes it mandatory.
	db, err := database.New(cfg.DatabaseURL, cfg)
	if err != nil {
		if cfg.DataSource == "postgres" {
			logr.Fatal("failed to connect to database", zap.Error(err))
		}
		logr.Warn("database unavailable, analyst login disabled", zap.Error(err))
	} else {
		defer db.Close()
	}

	source, err := newLoader(ctx, cfg, db, logr)
	if err != nil {
		logr.Fatal("failed to init data source", zap.Error(err))
	}
	data := loader.NewCachedLoader(source, m)

	cache, err := services.NewResultCache(cfg.CacheSize, m)
	if err != nil {
		logr.Fatal("failed to init result cache", zap.Error(err))
	}
	settings := services.Settings{
		Window: cfg.RollingWindow,
		Epidemic: models.EpidemicConfig{
			Population:          cfg.NationalPopulation,
			InitialInfected:     cfg.InitialInfected,
			HospitalizationRate: cfg.HospitalizationRate,
			HorizonDays:         cfg.HorizonDays,
		},
		TargetPct:       cfg.TargetCoveragePct,
		SensitivityRuns: cfg.SensitivityRuns,
	}
	dashboardSvc := services.NewDashboardService(data, cache, settings, m, logr.Logger)

	deps := routes.Deps{
		Config:     cfg,
		Logger:     logr,
		Metrics:    m,
		Dashboard:  dashboardSvc,
		Scenarios:  services.NewScenarioService(dashboardSvc, settings, m, logr.Logger),
		Boundaries: services.NewBoundaryService(data, dashboardSvc, logr.Logger),
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, "vaxdash")
	switch {
	case err != nil:
		logr.Warn("jwt keys unavailable, analyst login and admin routes disabled", zap.Error(err))
	case db == nil:
		logr.Warn("admin routes disabled without a database")
	default:
		authSvc := services.NewAuthService(db, jwtMgr, cfg, logr.Logger)
		deps.Authenticator = authSvc
		deps.Verifier = jwtMgr
		deps.Versions = authSvc
	}

	// Warm the dataset. A failure is not fatal: every request retries the
	// load until one succeeds.
	if ds, err := data.Load(ctx); err != nil {
		logr.Warn("initial dataset load failed", zap.String("source", data.Name()), zap.Error(err))
	} else {
		logr.Info("dataset loaded",
			zap.String("source", ds.Source),
			zap.String("fingerprint", ds.Fingerprint),
			zap.Int("dose_records", len(ds.Doses)),
			zap.Int("regions", len(ds.Regions)),
		)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      routes.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("server started", zap.String("port", cfg.Port), zap.String("data_source", cfg.DataSource))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logr.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
	logr.Info("server exited gracefully")
}

func newLoader(ctx context.Context, cfg *config.Config, db *bun.DB, logr *logger.Logger) (loader.Loader, error) {
	files := loader.Files{Doses: cfg.DosesFile, Coverage: cfg.CoverageFile, Regions: cfg.RegionsFile}

	switch cfg.DataSource {
	case "dir":
		return loader.NewBlobLoader(loader.DirSource{Dir: cfg.DataDir}, files, cfg.RegionPopulations, logr.Logger), nil
	case "http":
		src := &loader.HTTPSource{
			BaseURL:    cfg.DataBaseURL,
			Client:     &http.Client{Timeout: 30 * time.Second},
			MaxRetries: 4,
			RetryDelay: time.Second,
		}
		return loader.NewBlobLoader(src, files, cfg.RegionPopulations, logr.Logger), nil
	case "s3":
		src, err := loader.NewS3Source(ctx, loader.S3Config{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.AWSRegion,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3Endpoint != "",
		})
		if err != nil {
			return nil, err
		}
		return loader.NewBlobLoader(src, files, cfg.RegionPopulations, logr.Logger), nil
	case "postgres":
		return loader.NewPostgresLoader(db, cfg.RegionPopulations, logr.Logger), nil
	case "sqlite":
		return loader.NewSQLiteLoader(cfg.SQLitePath, cfg.RegionPopulations, logr.Logger), nil
	}
	return nil, fmt.Errorf("unknown data source %q", cfg.DataSource)
}
