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

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/examharvest/internal/config"
	dbRedis "github.com/kailas-cloud/examharvest/internal/db/redis"
	"github.com/kailas-cloud/examharvest/internal/domain/key"
	"github.com/kailas-cloud/examharvest/internal/export"
	pgexport "github.com/kailas-cloud/examharvest/internal/export/postgres"
	xlsxexport "github.com/kailas-cloud/examharvest/internal/export/xlsx"
	logpkg "github.com/kailas-cloud/examharvest/internal/logger"
	"github.com/kailas-cloud/examharvest/internal/metrics"
	"github.com/kailas-cloud/examharvest/internal/repository/checkpoint"
	chiTransport "github.com/kailas-cloud/examharvest/internal/transport/chi"
	"github.com/kailas-cloud/examharvest/internal/transport/httpclient"
	bounduc "github.com/kailas-cloud/examharvest/internal/usecase/bound"
	discoveryuc "github.com/kailas-cloud/examharvest/internal/usecase/discovery"
	harvestuc "github.com/kailas-cloud/examharvest/internal/usecase/harvest"
	healthuc "github.com/kailas-cloud/examharvest/internal/usecase/health"
	runuc "github.com/kailas-cloud/examharvest/internal/usecase/run"
	"github.com/kailas-cloud/examharvest/internal/version"
)

const statusShutdownTimeout = 5 * time.Second

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting examharvest",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("year", cfg.Service.Year),
		zap.String("type", cfg.Service.Type),
		zap.Int("concurrency", cfg.Fetch.Concurrency),
		zap.Bool("checkpoint", cfg.CheckpointEnabled()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logpkg.ContextWithLogger(ctx, logger)

	if err := run(ctx, &cfg, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Run interrupted", zap.Error(err))
			os.Exit(130) //nolint:gocritic // deferred Sync is best-effort
		}
		logger.Fatal("Run failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Register metrics explicitly (no init())
	metrics.RegisterHarvestMetrics(prometheus.DefaultRegisterer)
	metrics.RegisterHTTPMetrics(prometheus.DefaultRegisterer)

	format, err := key.NewFormat(cfg.Key.PrefixWidth, cfg.Key.SuffixWidth)
	if err != nil {
		return fmt.Errorf("key format: %w", err)
	}
	span, err := key.NewRange(cfg.Bound.Low, cfg.Bound.High)
	if err != nil {
		return fmt.Errorf("bound range: %w", err)
	}
	strategy, err := bounduc.ParseStrategy(cfg.Bound.Strategy)
	if err != nil {
		return fmt.Errorf("bound strategy: %w", err)
	}

	// One pool per run: in-flight ceiling, rate limit and connections.
	pool, err := httpclient.NewPool(httpclient.PoolConfig{
		Concurrency:       cfg.Fetch.Concurrency,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Timeout:           cfg.Fetch.Timeout(),
	})
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	defer pool.Close()

	urls, err := httpclient.NewURLBuilder(httpclient.URLConfig{
		BaseURL:     cfg.Service.BaseURL,
		ComponentID: cfg.Service.ComponentID,
		PageID:      cfg.Service.PageID,
		KeyParam:    cfg.Service.KeyParam,
		Year:        cfg.Service.Year,
		Type:        cfg.Service.Type,
	})
	if err != nil {
		return fmt.Errorf("lookup url: %w", err)
	}

	client := httpclient.NewClient(pool, httpclient.Config{
		URLs:           urls,
		UserAgent:      cfg.Service.UserAgent + " " + version.UserAgent(),
		Retries:        cfg.Fetch.RetryBudget(),
		BackoffBase:    cfg.Fetch.BackoffBase(),
		UnhealthyAfter: cfg.Fetch.UnhealthyAfter,
		Logger:         logger,
	})

	discoverySvc, err := discoveryuc.New(client, discoveryuc.Config{
		FirstPrefix: cfg.Discovery.FirstPrefix,
		LastPrefix:  cfg.Discovery.LastPrefix,
		ProbeSuffix: cfg.Discovery.ProbeSuffix,
		Format:      format,
	})
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	finder := bounduc.New(client, format).
		WithStrategy(strategy).
		WithVerifyWindow(cfg.Bound.VerifyWindow)
	harvester := harvestuc.New(client, format, cfg.Bound.Low).
		WithBatchSize(cfg.Harvest.BatchSize)

	progress := runuc.NewProgress()
	runSvc := runuc.New(discoverySvc, finder, harvester, span).
		WithProgress(progress).
		WithFailureCounter(client)

	// Pass nil interface (not typed nil pointer!) when checkpointing is disabled.
	// Go gotcha: (*dbRedis.Store)(nil) wrapped in StorePinger != nil.
	var storePinger healthuc.StorePinger
	if cfg.CheckpointEnabled() {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return fmt.Errorf("checkpoint store: %w", err)
		}
		defer store.Close()

		readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			return fmt.Errorf("checkpoint store not ready: %w", err)
		}
		logger.Info("Connected to checkpoint store", zap.Strings("addrs", cfg.Database.Addrs))

		repo := checkpoint.New(store, cfg.Service.Year, cfg.Service.Type, cfg.Checkpoint.TTL())
		runSvc.WithCheckpoint(repo, cfg.Checkpoint.Reset)
		storePinger = store
	}

	exporters := export.Multi{xlsxexport.New(cfg.Export.XLSXPath)}
	if cfg.Export.PostgresDSN != "" {
		pgPool, err := pgexport.Open(ctx, cfg.Export.PostgresDSN)
		if err != nil {
			return fmt.Errorf("postgres export: %w", err)
		}
		defer pgPool.Close()
		exporters = append(exporters, pgexport.New(pgPool, pgexport.Config{
			Table:    cfg.Export.PostgresTable,
			Year:     cfg.Service.Year,
			ExamType: cfg.Service.Type,
		}))
	}
	runSvc.WithExporter(exporters)

	if cfg.Metrics.Port > 0 {
		healthSvc := healthuc.New(storePinger, client)
		server := chiTransport.NewServer(healthSvc, progress, prometheus.DefaultGatherer, logger)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           server.Routes(cfg.Metrics.APIKeys),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("Starting status server", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Status server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), statusShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error during status server shutdown", zap.Error(err))
			}
		}()
	}

	rep, err := runSvc.Run(ctx)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	logger.Info("Run finished",
		zap.Int("segments", len(rep.Results)),
		zap.Int("resumed", rep.Resumed),
		zap.Int("records", rep.Records),
		zap.Int64("peak_in_flight", pool.Peak()),
		zap.Duration("duration", rep.Duration),
		zap.String("xlsx", cfg.Export.XLSXPath),
	)
	return nil
}
