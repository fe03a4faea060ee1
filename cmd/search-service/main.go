// cmd/search-service/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"search-relevance-engine/internal/common/config"
	"search-relevance-engine/internal/common/database"
	"search-relevance-engine/internal/common/logger"
	"search-relevance-engine/internal/common/observability"
	"search-relevance-engine/internal/search"
	"search-relevance-engine/internal/search/cache"
	"search-relevance-engine/internal/search/esfetch"
	"search-relevance-engine/internal/search/history"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting search service...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("search-service")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Migrations ---
	historyStore := history.NewHistoryStore(pg.DB, log)
	metricStore := history.NewMetricStore(pg.DB)
	if err := historyStore.Migrate(ctx); err != nil {
		zapLog.Fatal("history migration failed", zap.Error(err))
	}
	if err := metricStore.Migrate(ctx); err != nil {
		zapLog.Fatal("metric migration failed", zap.Error(err))
	}
	zapLog.Info("Database migrations applied")

	// --- Wire the engine ---
	aggregator := history.NewAggregator(
		historyStore,
		history.NewTrendStore(redis.Client),
		metricStore,
		log,
	)

	fetcher := esfetch.New(
		esClient.Client,
		cfg.Database.Elasticsearch.Index,
		cfg.Search.MaxResults*4,
		log,
	)

	resultCache := cache.New(cfg.Search.CacheTTL(), cfg.Search.ComputeTimeout(), log)

	engine := search.NewEngine(fetcher, resultCache, aggregator, cfg.Search, nil, log, obs)
	zapLog.Info("Search engine initialized",
		zap.Int("minQueryLength", cfg.Search.MinQueryLength),
		zap.Int("debounceMs", cfg.Search.DebounceMs),
		zap.Int("cacheTTLMs", cfg.Search.CacheTTLMs),
	)

	// --- Warm the cache for common queries ---
	if len(cfg.Search.PreloadQueries) > 0 {
		engine.Preload(ctx, cfg.Search.PreloadQueries)
		zapLog.Info("Cache preloaded", zap.Int("queries", len(cfg.Search.PreloadQueries)))
	}

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("addr", cfg.Server.MetricsAddr))
		if err := http.ListenAndServe(cfg.Server.MetricsAddr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining recordings...")
	engine.Wait()

	zapLog.Info("Search service stopped gracefully")
}
