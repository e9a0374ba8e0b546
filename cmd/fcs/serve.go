package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/backend"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/cmdi"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/internal/fcs"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/tracing"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the SRU endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
			return serve(cmd.Context(), cfg)
		},
	}
}

// serve wires the endpoint and blocks until ctx is cancelled and the
// server has shut down.
func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting fcs endpoint",
		"port", cfg.Server.Port,
		"default_version", cfg.Endpoint.DefaultVersion,
		"resources", len(cfg.Endpoint.Resources),
	)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewWithRegistry(reg)

	pg, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pg.Close()
	searcher, err := backend.NewPostgres(pg.DB, cfg.Backend)
	if err != nil {
		return err
	}
	slog.Info("search backend ready", "table", cfg.Backend.Table, "text_search_config", cfg.Backend.TextSearchConfig)

	var metadata cmdi.Fetcher = cmdi.NewHTTPFetcher(cfg.CMDI.Timeout)
	var redisPinger health.Pinger
	if cfg.Redis.Addr != "" {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, CMDI caching limited to single requests", "error", err)
		} else {
			defer redisClient.Close()
			redisPinger = redisClient
			metadata = cmdi.NewSharedCache(metadata, redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("shared CMDI cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	agg := analytics.NewAggregator()
	var events fcs.EventRecorder = agg
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval, m)
		collector.Start(ctx)
		defer collector.Close()
		events = collector

		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("analytics pipeline started", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}

	var snapshots analytics.SnapshotLister
	if cfg.Analytics.SnapshotInterval > 0 {
		store := analytics.NewStore(pg.DB)
		store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		snapshots = store
	}

	endpoint := fcs.New(fcs.Deps{
		Endpoint: cfg.Endpoint,
		Backend:  cfg.Backend,
		CMDI:     cfg.CMDI,
		Searcher: searcher,
		Metadata: metadata,
		Metrics:  m,
		Events:   events,
		Tracer:   tracing.New(cfg.Tracing.Enabled, slog.Default()),
	})

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(pg, true))
	checker.Register("redis", health.PingCheck(redisPinger, false))

	analyticsH := analytics.NewHandler(agg, snapshots)
	mux := http.NewServeMux()
	mux.Handle("/", endpoint)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", analyticsH.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins)),
		middleware.Metrics(m),
	}
	if cfg.Endpoint.RateLimitPerMinute > 0 {
		limiter := ratelimit.New(cfg.Endpoint.RateLimitPerMinute, time.Minute)
		go limiter.RunCleanup(ctx, time.Minute)
		chain = append(chain, middleware.RateLimit(limiter, m))
	}
	chain = append(chain, middleware.Timeout(cfg.Server.RequestTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, chain...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics, reg)
		metricsServer.Start()
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("fcs endpoint listening", "addr", server.Addr)
	err = server.ListenAndServe()
	// Background workers flush on cancellation; the deferred Close calls
	// wait for them.
	cancel()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info("fcs endpoint stopped")
	return nil
}
