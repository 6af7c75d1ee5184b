package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bullion/internal/config"
	"github.com/kailas-cloud/bullion/internal/domain"
	"github.com/kailas-cloud/bullion/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/bullion/internal/db/redis"
	logpkg "github.com/kailas-cloud/bullion/internal/logger"
	"github.com/kailas-cloud/bullion/internal/metrics"
	budgetrepo "github.com/kailas-cloud/bullion/internal/repository/budget"
	"github.com/kailas-cloud/bullion/internal/repository/embcache"
	productrepo "github.com/kailas-cloud/bullion/internal/repository/product"
	vectorstorerepo "github.com/kailas-cloud/bullion/internal/repository/vectorstore"
	chiTransport "github.com/kailas-cloud/bullion/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/bullion/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/bullion/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/bullion/internal/usecase/health"
	searchuc "github.com/kailas-cloud/bullion/internal/usecase/search"
	usageuc "github.com/kailas-cloud/bullion/internal/usecase/usage"
	vectorstoreuc "github.com/kailas-cloud/bullion/internal/usecase/vectorstore"
	"github.com/kailas-cloud/bullion/internal/version"
)

// bootstrap loads config and builds the logger shared by all commands.
func bootstrap(c *cli.Context) (config.Config, *zap.Logger, error) {
	env := c.String("env")
	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if c.String("log-level") != "" {
		level = c.String("log-level")
	}
	logger, err := logpkg.NewLogger(env, level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

// openPostgres connects and waits for readiness. vectorTypes needs the pgvector extension in place.
func openPostgres(
	ctx context.Context, cfg config.DatabaseConfig, vectorTypes bool, logger *zap.Logger,
) (*postgres.Store, error) {
	pg, err := postgres.NewStore(ctx, postgres.Config{
		DSN:             cfg.DSN,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: config.Seconds(cfg.MaxConnLifetimeSec),
		VectorTypes:     vectorTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pg.WaitForReady(ctx, config.Seconds(cfg.ReadinessTimeout)); err != nil {
		pg.Close()
		return nil, fmt.Errorf("postgres not ready: %w", err)
	}
	logger.Info("Connected to database")
	return pg, nil
}

func migrateCommand(c *cli.Context) error {
	cfg, logger, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	pg, err := openPostgres(c.Context, cfg.Database, false, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.Migrate(c.Context); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("Schema applied")
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg, logger, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting bullion API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", c.String("env")),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := openPostgres(ctx, cfg.Database, true, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	// Pass nil interfaces, not typed nil pointers, when Redis is disabled.
	var (
		cache       *dbRedis.Store
		cachePinger healthuc.Pinger
	)
	if cfg.Cache.Enabled {
		cache, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			return fmt.Errorf("open redis: %w", err)
		}
		defer cache.Close()
		if err := cache.WaitForReady(ctx, config.Seconds(cfg.Database.ReadinessTimeout)); err != nil {
			return fmt.Errorf("redis not ready: %w", err)
		}
		cachePinger = cache
		logger.Info("Connected to cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	embedder, budgetReader := buildEmbedder(ctx, &cfg, cache, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	searchSvc := searchuc.New(productrepo.New(pg.DB()), embedder, searchuc.Config{
		MaxLimit:            cfg.Search.MaxLimit,
		Timeout:             config.Seconds(cfg.Search.TimeoutSec),
		VectorMinSimilarity: cfg.Search.VectorMinSimilarity,
		Dimensions:          cfg.Embedding.Dimensions,
	})
	vectorSvc := vectorstoreuc.New(vectorstorerepo.New(pg.DB()), cfg.Embedding.Dimensions)
	healthSvc := healthuc.New(pg, cachePinger, embedder)

	usageSvc := usageuc.New(budgetReader)

	server := chiTransport.NewServer(searchSvc, vectorSvc, healthSvc, usageSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadTimeout:       config.Seconds(cfg.HTTP.ReadTimeoutSec),
		ReadHeaderTimeout: config.Seconds(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout:      config.Seconds(cfg.HTTP.WriteTimeoutSec),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.HTTP.ShutdownSec))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// queryEmbedder is the assembled chain; every layer forwards HealthCheck.
type queryEmbedder interface {
	domain.Embedder
	domain.HealthChecker
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
// cache may be nil, which disables the embedding cache and budget persistence.
// The returned reader is nil when no budget is configured.
func buildEmbedder(
	ctx context.Context, cfg *config.Config, cache *dbRedis.Store, logger *zap.Logger,
) (queryEmbedder, usageuc.BudgetReader) {
	ec := cfg.Embedding

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Timeout:    config.Seconds(ec.TimeoutSec),
		Logger:     logger,
	})

	var embedder queryEmbedder = base
	if cache != nil {
		embedder = embcache.New(base, cache, embcache.Options{
			Namespace: ec.Model,
			TTL:       config.Seconds(cfg.Cache.TTLSec),
		}, metrics.EmbeddingCacheTotal, logger)
	}

	// Nil interfaces, not typed nil pointers, when no budget is configured.
	var (
		budget embeddinguc.BudgetChecker
		reader usageuc.BudgetReader
	)
	if ec.Budget.Enabled() {
		action := embeddinguc.BudgetActionWarn
		if ec.Budget.Action == string(embeddinguc.BudgetActionReject) {
			action = embeddinguc.BudgetActionReject
		}
		tracker := embeddinguc.NewBudgetTracker(ec.Provider, embeddinguc.BudgetLimits{
			Daily:   ec.Budget.DailyTokenLimit,
			Monthly: ec.Budget.MonthlyTokenLimit,
		}, action, logger)
		if cache != nil {
			tracker.WithStore(ctx, budgetrepo.New(cache, 0, 0))
		}
		budget, reader = tracker, tracker
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, ec.Provider, ec.Model, budget, logger)

	// Outermost, so the cache key includes the instruction.
	if ec.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, ec.QueryInstruction), reader
	}
	return embedder, reader
}
