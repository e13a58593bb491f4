package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-commerce/internal/app"
	"github.com/noah-isme/toko-commerce/internal/audit"
	"github.com/noah-isme/toko-commerce/internal/cache"
	"github.com/noah-isme/toko-commerce/internal/catalog"
	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/config"
	"github.com/noah-isme/toko-commerce/internal/coupon"
	"github.com/noah-isme/toko-commerce/internal/health"
	"github.com/noah-isme/toko-commerce/internal/jobs"
	"github.com/noah-isme/toko-commerce/internal/lock"
	"github.com/noah-isme/toko-commerce/internal/obs"
	"github.com/noah-isme/toko-commerce/internal/order"
	"github.com/noah-isme/toko-commerce/internal/ratelimit"
	"github.com/noah-isme/toko-commerce/internal/security"
	"github.com/noah-isme/toko-commerce/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	shutdownTracer, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		Enabled:       cfg.EnableTracing,
		ServiceName:   "toko-commerce",
		Endpoint:      cfg.OTLPEndpoint,
		SamplingRatio: cfg.TracingSampleRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		cfg.EnableTracing = false
	}
	defer func() {
		if shutdownTracer == nil {
			return
		}
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	deps, err := app.Open(startCtx, cfg, "toko-commerce", logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	settingsDefaults := settings.Defaults()
	settingsDefaults.Currency.Code = cfg.DefaultCurrencyCode
	settingsDefaults.Currency.Symbol = cfg.DefaultCurrencySymbol
	settingsDefaults.ClampNegativePrice = cfg.ClampNegativePrice
	settingsProvider := &settings.Provider{
		Store:    settings.PGStore{DB: deps.DB},
		Cache:    cache.NewJSON(deps.Redis, cfg.SettingsCacheTTL),
		Defaults: settingsDefaults,
		Logger:   logger,
	}

	couponSvc := &coupon.Service{
		Repo:   coupon.NewPGStore(deps.DB),
		Tx:     coupon.PGTxRunner{DB: deps.DB},
		Logger: logger,
	}
	couponHandler := &coupon.Handler{
		Svc:      couponSvc,
		Settings: settingsProvider,
	}

	relationsCache := cache.NewJSON(deps.Redis, cfg.RelationsCacheTTL)
	catalogCfg := catalog.ServiceConfig{
		Store:   catalog.NewPGStore(deps.DB),
		Tx:      catalog.PGTxRunner{DB: deps.DB},
		Cache:   relationsCache,
		LockTTL: cfg.LockTTL,
		Logger:  logger,
	}
	if cfg.LockRelations {
		catalogCfg.Locker = lock.Locker{R: deps.Redis, RetryBackoff: cfg.LockRetryBackoff, MaxWait: cfg.LockTTL}
	}
	catalogSvc, err := catalog.NewService(catalogCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{
		Service:  catalogSvc,
		Importer: &catalog.Importer{Tx: catalog.PGTxRunner{DB: deps.DB}, Cache: relationsCache, Logger: logger},
		Enqueuer: jobs.Enqueuer{Client: deps.Tasks, Queue: "imports"},
		Async:    cfg.ImportAsync,
	})

	orderStore := order.NewPGStore(deps.DB)
	orderHandler := &order.Handler{Svc: &order.Service{
		Store:    orderStore,
		Tx:       order.PGTxRunner{DB: deps.DB},
		Settings: settingsProvider,
		Coupons:  couponSvc,
		Logger:   logger,
	}}

	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}
	adminLimit := ratelimit.Handler{
		Limiter: newAdminLimiter(cfg, deps, logger),
		Config: ratelimit.Config{
			Key:    ratelimit.ClientRouteKey,
			Window: cfg.RateLimitAdminWindow,
			Max:    cfg.RateLimitAdminMax,
		},
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limit store unavailable") },
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.EnablePrometheus {
		r.Use(obs.HTTPObs{Metrics: obs.NewHTTPMetrics(cfg.MetricsNamespace, nil, nil)}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.EnableHSTS}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", cfg.AuditActorHeader},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnablePrometheus {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := strings.TrimSpace(os.Getenv("SECURE_PPROF_BASIC_AUTH_USER"))
		pass := strings.TrimSpace(os.Getenv("SECURE_PPROF_BASIC_AUTH_PASS"))
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{Checker: health.Probes{DB: deps.DB, Redis: deps.Redis}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	auditStore := audit.PGStore{DB: deps.DB}
	auditRec := audit.HTTPRecorder{
		Service:   &audit.Service{Store: auditStore, Enabled: cfg.AuditEnabled, SamplingRate: cfg.AuditSamplingRate},
		ActorFunc: audit.HeaderActor(cfg.AuditActorHeader),
		OnError:   func(err error) { logger.Error().Err(err).Msg("record audit log") },
	}
	audited := func(action, resource, idParam string) func(http.Handler) http.Handler {
		return auditRec.Middleware(audit.HTTPConfig{Action: action, ResourceType: resource, ResourceIDParam: idParam})
	}
	auditHandler := audit.Handler{Store: auditStore}

	body := security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware
	importBody := security.BodyLimit{Max: cfg.ImportMaxBodyBytes}.Middleware

	r.Route("/api/v1", func(v chi.Router) {
		v.With(body).Post("/orders/preview", orderHandler.Preview)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(adminLimit.Middleware)

			admin.Get("/orders/{orderId}/summary", orderHandler.Summary)
			admin.Get("/products/{productId}/relations", catalogHandler.Relations)
			admin.Get("/coupons/{code}", couponHandler.Get)
			admin.With(body).Post("/coupons/preview", couponHandler.Preview)
			admin.Get("/audit-logs", auditHandler.List)

			admin.Group(func(w chi.Router) {
				w.Use(idem.Middleware)
				w.With(body, audited("order.lines.replace", "order", "orderId")).Put("/orders/{orderId}/lines", orderHandler.ReplaceLines)
				w.With(body, audited("product.relations.save", "product", "productId")).Put("/products/{productId}/relations", catalogHandler.SaveRelations)
				w.With(importBody, audited("product.import", "product", "")).Post("/products/import", catalogHandler.Import)
				w.With(body, audited("coupon.create", "coupon", "")).Post("/coupons", couponHandler.Create)
				w.With(body, audited("coupon.update", "coupon", "code")).Put("/coupons/{code}", couponHandler.Update)
			})
		})
	})

	var handler http.Handler = r
	if cfg.EnableTracing {
		handler = otelhttp.NewHandler(r, "toko-commerce")
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Bool("import_async", cfg.ImportAsync).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func newAdminLimiter(cfg *config.Config, deps *app.Dependencies, logger zerolog.Logger) ratelimit.Allower {
	if cfg.RateLimitStrategy == "fixed" {
		fixed, err := ratelimit.NewFixedWindow(deps.Redis, "ratelimit:admin")
		if err == nil {
			return fixed
		}
		logger.Error().Err(err).Msg("initialise fixed window limiter, using sliding window")
	}
	return ratelimit.SlidingWindow{Client: deps.Redis, Prefix: "ratelimit:admin:"}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
