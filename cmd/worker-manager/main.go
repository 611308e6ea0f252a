// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"assistant-workers/internal/api"
	"assistant-workers/internal/catalog"
	"assistant-workers/internal/common/camunda"
	"assistant-workers/internal/common/config"
	"assistant-workers/internal/common/database"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/observability"
	"assistant-workers/internal/common/validation"
	"assistant-workers/internal/render"
	"assistant-workers/internal/service"
	"assistant-workers/pkg/registry"

	ar "assistant-workers/internal/workers/ai-conversation/annotate-reply"
	rp "assistant-workers/internal/workers/ai-conversation/resolve-products"
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
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("catalogSource", cfg.Catalog.Source),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()
	backends, checkers := connectBackends(ctx, cfg, zapLog)
	if backends.Postgres != nil {
		defer backends.Postgres.Close()
	}
	if backends.Redis != nil {
		defer backends.Redis.Close()
	}

	repo, err := catalog.NewFromConfig(cfg.Catalog, backends, log)
	if err != nil {
		zapLog.Fatal("catalog setup failed", zap.Error(err))
	}

	svc := service.New(service.ConfigFrom(cfg), repo, resultCache(cfg, backends), log, obs)

	// --- Zeebe workers ---
	var (
		zeebe   *camunda.Client
		workers []*camunda.CamundaWorker
	)
	if cfg.Camunda.Enabled {
		reg, err := registry.LoadRegistry(cfg.RegistryPath)
		if err != nil {
			zapLog.Fatal("activity registry load failed", zap.Error(err))
		}
		validator, err := validation.NewValidator(reg)
		if err != nil {
			zapLog.Fatal("schema validator setup failed", zap.Error(err))
		}

		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		checkers = append(checkers, zeebe)
		zapLog.Info("Zeebe client connected successfully")

		workers = startWorkers(cfg, zeebe, svc, validator, obs, log, zapLog)
	}

	// --- Annotation API, health and metrics ---
	var server *api.Server
	if cfg.HTTP.Enabled {
		handler := api.NewHandler(svc,
			render.Options{CurrencySymbol: cfg.Annotation.CurrencySymbol},
			config.GetDuration(cfg.HTTP.RequestTimeout),
			log, checkers...)
		server = api.NewServer(cfg.HTTP.Address, api.NewRouter(cfg.HTTP, handler, log), log)
		server.Start()
	}

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLog.Error("HTTP server shutdown failed", zap.Error(err))
		}
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// connectBackends dials only the stores the configuration refers to.
func connectBackends(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (catalog.Backends, []database.Checker) {
	var (
		backends catalog.Backends
		checkers []database.Checker
	)

	if cfg.Catalog.Source == config.CatalogSourcePostgres {
		err := retryWithBackoff(func() error {
			var err error
			backends.Postgres, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return backends.Postgres.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		checkers = append(checkers, backends.Postgres)
		zapLog.Info("PostgreSQL connected successfully")
	}

	if cfg.Catalog.Source == config.CatalogSourceElasticsearch {
		err := retryWithBackoff(func() error {
			var err error
			backends.Elasticsearch, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return backends.Elasticsearch.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		checkers = append(checkers, backends.Elasticsearch)
		zapLog.Info("Elasticsearch connected successfully")
	}

	if cfg.Database.Redis.Address != "" {
		err := retryWithBackoff(func() error {
			var err error
			backends.Redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return backends.Redis.Ping(ctx)
		}, 3, time.Second, zapLog, "Redis connection")
		if err != nil {
			// Redis only backs caches; run without them.
			zapLog.Warn("redis unavailable, caching disabled", zap.Error(err))
			backends.Redis = nil
		} else {
			checkers = append(checkers, backends.Redis)
			zapLog.Info("Redis connected successfully")
		}
	}

	return backends, checkers
}

func resultCache(cfg *config.Config, backends catalog.Backends) *database.RedisClient {
	if cfg.Annotation.ResultCacheTTL <= 0 {
		return nil
	}
	return backends.Redis
}

func startWorkers(
	cfg *config.Config,
	zeebe *camunda.Client,
	svc *service.Service,
	validator *validation.Validator,
	obs *observability.Observability,
	log logger.Logger,
	zapLog *zap.Logger,
) []*camunda.CamundaWorker {
	var workers []*camunda.CamundaWorker

	if config.IsWorkerEnabled(cfg, ar.TaskType) {
		wcfg := ar.ConfigFrom(cfg)
		handler, err := ar.NewHandler(ar.HandlerOptions{
			Config:        wcfg,
			Service:       svc,
			Validator:     validator,
			Observability: obs,
			Logger:        log,
		})
		if err != nil {
			zapLog.Fatal("failed to create annotate-reply handler", zap.Error(err))
		}
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), ar.TaskType, camunda.WorkerOptions{
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       wcfg.Timeout,
		}, handler, log))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", ar.TaskType))
	}

	if config.IsWorkerEnabled(cfg, rp.TaskType) {
		wcfg := rp.ConfigFrom(cfg)
		handler, err := rp.NewHandler(rp.HandlerOptions{
			Config:        wcfg,
			Service:       svc,
			Validator:     validator,
			Observability: obs,
			Logger:        log,
		})
		if err != nil {
			zapLog.Fatal("failed to create resolve-products handler", zap.Error(err))
		}
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), rp.TaskType, camunda.WorkerOptions{
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       wcfg.Timeout,
		}, handler, log))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", rp.TaskType))
	}

	zapLog.Info("workers registered", zap.Int("count", len(workers)))
	return workers
}
