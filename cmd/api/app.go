package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facegate/facegate/internal/api/handlers"
	"github.com/facegate/facegate/internal/api/middleware"
	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/facescan"
	"github.com/facegate/facegate/internal/models"
	"github.com/facegate/facegate/internal/observability"
	"github.com/facegate/facegate/internal/repository"
	"github.com/facegate/facegate/internal/service"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg           *config.Config
	db            *pgxpool.Pool
	server        *http.Server
	meterProvider observability.MeterProviderShutdown
}

// newExtractor builds the face-scan client with the configured timeout, rate
// limit and embedding cache.
func newExtractor(cfg *config.Config) (facescan.Extractor, error) {
	opts := []facescan.Option{
		facescan.WithTimeout(time.Duration(cfg.FaceScanTimeoutSeconds) * time.Second),
	}
	if cfg.FaceScanRateLimit > 0 {
		opts = append(opts, facescan.WithRateLimit(cfg.FaceScanRateLimit))
	}

	client := facescan.NewHTTPExtractor(cfg.FaceScanURL, cfg.EmbeddingDim, opts...)

	cached, err := facescan.NewCachingExtractor(client, cfg.FaceScanCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create extraction cache: %w", err)
	}

	return cached, nil
}

// NewApp builds and wires all components. It does not start the HTTP server;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (*App, error) {
	meterProvider, metricsHandler, metrics, err := observability.NewMeterProvider(ctx, observability.MeterProviderConfig{})
	if err != nil {
		return nil, fmt.Errorf("create meter provider: %w", err)
	}

	// Install TraceContextHandler so request_id appears in logs.
	defaultHandler := slog.Default().Handler()
	slog.SetDefault(slog.New(observability.NewTraceContextHandler(defaultHandler)))

	logger := slog.Default()

	extractor, err := newExtractor(cfg)
	if err != nil {
		return nil, err
	}

	instrumented := facescan.NewInstrumentedExtractor(extractor, metrics)

	tenantsRepo := repository.NewTenantsRepository(db)
	principalsRepo := repository.NewPrincipalsRepository(db)
	profilesRepo := repository.NewProfilesRepository(db)
	attemptsRepo := repository.NewAttemptsRepository(db)
	eventsRepo := repository.NewFeedbackEventsRepository(db)

	credentials := service.NewBcryptVerifier()

	matchService := service.NewMatchService(attemptsRepo, profilesRepo, principalsRepo, instrumented, logger)
	feedbackService := service.NewFeedbackService(db, attemptsRepo, profilesRepo, eventsRepo, principalsRepo, instrumented, credentials, logger)
	principalsService := service.NewPrincipalsService(principalsRepo, profilesRepo, instrumented, credentials, logger)
	tenantsService := service.NewTenantsService(tenantsRepo, logger)
	metricsService := service.NewMetricsService(attemptsRepo)

	loginHandler := handlers.NewLoginHandler(matchService, metrics)
	feedbackHandler := handlers.NewFeedbackHandler(feedbackService, metrics)
	principalsHandler := handlers.NewPrincipalsHandler(principalsService, metrics)
	tenantsHandler := handlers.NewTenantsHandler(tenantsService)
	reportHandler := handlers.NewMetricsHandler(metricsService)
	healthHandler := handlers.NewHealthHandler(db)

	server := newHTTPServer(cfg, httpServerDeps{
		health:     healthHandler,
		login:      loginHandler,
		feedback:   feedbackHandler,
		principals: principalsHandler,
		tenants:    tenantsHandler,
		report:     reportHandler,
		resolver:   tenantsService,
		metrics:    metrics,
		prometheus: metricsHandler,
	})

	return &App{
		cfg:           cfg,
		db:            db,
		server:        server,
		meterProvider: meterProvider,
	}, nil
}

// httpServerDeps bundles everything newHTTPServer mounts.
type httpServerDeps struct {
	health     *handlers.HealthHandler
	login      *handlers.LoginHandler
	feedback   *handlers.FeedbackHandler
	principals *handlers.PrincipalsHandler
	tenants    *handlers.TenantsHandler
	report     *handlers.MetricsHandler
	resolver   middleware.TenantResolver
	metrics    observability.GateMetrics
	prometheus http.Handler
}

// newHTTPServer builds the HTTP server and muxes. Three surfaces share the
// port: the system surface and admin surface under the API key, the tenant
// surface under per-tenant app tokens, and unauthenticated /health and
// /metrics.
func newHTTPServer(cfg *config.Config, deps httpServerDeps) *http.Server {
	public := http.NewServeMux()
	public.HandleFunc("GET /health", deps.health.Check)
	public.Handle("GET /metrics", deps.prometheus)

	// System surface: one global pool, thresholds from config.
	system := http.NewServeMux()
	system.HandleFunc("POST /v1/auth/login", deps.login.Classify)
	system.HandleFunc("POST /v1/auth/feedback", deps.feedback.Reconcile)
	system.HandleFunc("GET /v1/auth/attempts", deps.login.ListAttempts)
	system.HandleFunc("GET /v1/auth/attempts/{id}", deps.login.GetAttempt)
	system.HandleFunc("POST /v1/auth/register", deps.principals.Register)
	system.HandleFunc("GET /v1/auth/principals", deps.principals.List)
	system.HandleFunc("GET /v1/auth/principals/{id}", deps.principals.Get)
	system.HandleFunc("GET /v1/auth/principals/{id}/profiles", deps.principals.ListProfiles)
	system.HandleFunc("DELETE /v1/auth/principals/{id}", deps.principals.Delete)
	system.HandleFunc("PATCH /v1/auth/principals/{id}/face-auth", deps.principals.SetFaceAuthEnabled)

	systemThresholds := models.Thresholds{
		Confidence: cfg.SystemConfidenceThreshold,
		Fallback:   cfg.SystemFallbackThreshold,
	}

	var systemHandler http.Handler = system
	systemHandler = middleware.SystemScope(systemThresholds)(systemHandler)
	systemHandler = middleware.Auth(cfg.APIKey)(systemHandler)

	// Admin surface: tenant management and quality reports, API key only.
	admin := http.NewServeMux()
	admin.HandleFunc("POST /v1/tenants", deps.tenants.Create)
	admin.HandleFunc("GET /v1/tenants", deps.tenants.List)
	admin.HandleFunc("GET /v1/tenants/{id}", deps.tenants.Get)
	admin.HandleFunc("PATCH /v1/tenants/{id}", deps.tenants.Update)
	admin.HandleFunc("DELETE /v1/tenants/{id}", deps.tenants.Delete)
	admin.HandleFunc("GET /v1/metrics/report", deps.report.Report)

	adminHandler := middleware.Auth(cfg.APIKey)(admin)

	// Tenant surface: the app token in the path selects the pool and
	// thresholds. No API key involved.
	tenant := http.NewServeMux()
	tenant.HandleFunc("POST /v1/apps/{token}/login", deps.login.Classify)
	tenant.HandleFunc("POST /v1/apps/{token}/feedback", deps.feedback.Reconcile)
	tenant.HandleFunc("GET /v1/apps/{token}/attempts", deps.login.ListAttempts)
	tenant.HandleFunc("GET /v1/apps/{token}/attempts/{id}", deps.login.GetAttempt)
	tenant.HandleFunc("POST /v1/apps/{token}/users", deps.principals.Register)
	tenant.HandleFunc("GET /v1/apps/{token}/users", deps.principals.List)
	tenant.HandleFunc("GET /v1/apps/{token}/users/{id}", deps.principals.Get)
	tenant.HandleFunc("GET /v1/apps/{token}/users/{id}/profiles", deps.principals.ListProfiles)
	tenant.HandleFunc("DELETE /v1/apps/{token}/users/{id}", deps.principals.Delete)

	tenantHandler := middleware.TenantScope(deps.resolver)(tenant)

	mux := http.NewServeMux()
	mux.Handle("/v1/auth/", systemHandler)
	mux.Handle("/v1/apps/", tenantHandler)
	mux.Handle("/v1/", adminHandler)
	mux.Handle("/", public)

	var handler http.Handler = mux
	handler = middleware.MaxBody(cfg.MaxImageBytes, deps.metrics)(handler)
	handler = middleware.Metrics(deps.metrics)(handler)
	handler = middleware.RequestID(handler)

	const (
		readTimeout  = 30 * time.Second
		writeTimeout = 30 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled (e.g. signal)
// or the server fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Shutdown stops the server, then the meter provider. Call after Run returns.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if mpErr := a.meterProvider.Shutdown(ctx); mpErr != nil {
			slog.Error("shutdown meter provider during server shutdown", "error", mpErr)
		}

		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := a.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown meter provider: %w", err)
	}

	return nil
}
