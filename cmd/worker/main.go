package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noah-isme/toko-commerce/internal/app"
	"github.com/noah-isme/toko-commerce/internal/cache"
	"github.com/noah-isme/toko-commerce/internal/catalog"
	"github.com/noah-isme/toko-commerce/internal/config"
	"github.com/noah-isme/toko-commerce/internal/jobs"
	"github.com/noah-isme/toko-commerce/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	shutdownTracer, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		Enabled:       cfg.EnableTracing,
		ServiceName:   "toko-worker",
		Endpoint:      cfg.OTLPEndpoint,
		SamplingRatio: cfg.TracingSampleRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	pool, err := app.OpenDatabase(startCtx, cfg.DatabaseURL, "toko-worker")
	if err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()
	redisClient, err := app.OpenRedis(startCtx, cfg.RedisURL, cfg.EnablePrometheus, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("open redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	srv, err := app.NewTaskServer(cfg.RedisURL, cfg.WorkerConcurrency, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise task server")
	}
	mux := jobs.NewServeMux(jobs.ImportHandler{
		Importer: &catalog.Importer{
			Tx:     catalog.PGTxRunner{DB: pool},
			Cache:  cache.NewJSON(redisClient, cfg.RelationsCacheTTL),
			Logger: logger,
		},
		Logger: logger,
	})

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Error().Err(err).Msg("start task server")
		os.Exit(1)
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}
