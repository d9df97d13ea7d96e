// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	awsclients "leadgen-workers/internal/common/aws"
	"leadgen-workers/internal/common/camunda"
	"leadgen-workers/internal/common/config"
	"leadgen-workers/internal/common/database"
	"leadgen-workers/internal/common/logger"
	"leadgen-workers/internal/common/observability"
	"leadgen-workers/internal/enrichment"
	"leadgen-workers/internal/leadindex"
	"leadgen-workers/internal/ledger"
	"leadgen-workers/internal/notify"
	"leadgen-workers/internal/pipeline"
	"leadgen-workers/internal/sources/pappers"
	"leadgen-workers/internal/sources/places"

	cej "leadgen-workers/internal/workers/leads/create-enrichment-job"
	ec "leadgen-workers/internal/workers/leads/enrich-company"
	rej "leadgen-workers/internal/workers/leads/run-enrichment-job"
	scm "leadgen-workers/internal/workers/leads/suggest-column-mapping"
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
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New("leadgen-workers")
	if err != nil {
		zapLog.Warn("observability disabled", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	}, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL (job ledger) ---
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

	jobLedger := ledger.NewPostgresLedger(pg.DB)
	if err := jobLedger.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("job ledger schema setup failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis (legal lookup cache) ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Elasticsearch (lead index) ---
	var indexer pipeline.Indexer
	if cfg.Enrichment.IndexEnabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}

		leadIndexer := leadindex.NewIndexer(esClient.Client, cfg.Enrichment.IndexName, log)
		if err := leadIndexer.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("lead index setup failed", zap.Error(err))
		}
		indexer = leadIndexer
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Enrichment.IndexName))
	}

	// --- Notifications (SES / SNS) ---
	var notifier pipeline.Notifier
	if cfg.Notifications.Email.Enabled || cfg.Notifications.Events.Enabled {
		awsCfg, err := awsclients.LoadConfig(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("aws config failed", zap.Error(err))
		}

		var email notify.EmailSender
		if cfg.Notifications.Email.Enabled {
			email = awsclients.NewSESClient(awsCfg)
		}
		var events notify.EventPublisher
		if cfg.Notifications.Events.Enabled {
			events = awsclients.NewSNSClient(awsCfg)
		}

		notifier = notify.NewNotifier(&notify.Config{
			EmailEnabled:  cfg.Notifications.Email.Enabled,
			FromEmail:     cfg.Notifications.Email.FromEmail,
			EventsEnabled: cfg.Notifications.Events.Enabled,
			TopicARN:      cfg.Notifications.Events.TopicARN,
		}, email, events, log)
	}

	// --- Enrichment sources ---
	legal := enrichment.NewCachedLegalSource(
		pappers.NewClient(&pappers.Config{
			BaseURL: cfg.APIs.Pappers.BaseURL,
			APIKey:  cfg.APIs.Pappers.APIKey,
			Timeout: config.GetDuration(cfg.APIs.Pappers.Timeout),
		}, log),
		rdb.Client,
		time.Duration(cfg.Enrichment.CacheTTL)*time.Second,
		log,
	)
	placesClient := places.NewClient(&places.Config{
		BaseURL:  cfg.APIs.Places.BaseURL,
		APIKey:   cfg.APIs.Places.APIKey,
		Language: cfg.APIs.Places.Language,
		Timeout:  config.GetDuration(cfg.APIs.Places.Timeout),
	}, log)
	merger := enrichment.NewMerger(legal, placesClient, log)

	runner := pipeline.NewRunner(jobLedger, merger, pipeline.Config{
		ProgressEvery:  cfg.Enrichment.ProgressEvery,
		IndexEnabled:   cfg.Enrichment.IndexEnabled,
		IndexBatchSize: cfg.Enrichment.IndexBatchSize,
	}, pipeline.Options{
		Indexer:       indexer,
		Notifier:      notifier,
		Observability: obs,
	}, log)

	// --- Workers ---
	workers := camunda.NewWorkers(zeebe.GetClient(), log)

	if taskType := scm.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := scm.NewHandler(&scm.Config{
			SampleSize: cfg.Enrichment.SampleSize,
			Timeout:    config.GetDuration(wcfg.Timeout),
		}, log)
		workers.Start(taskType, workerOptions(wcfg), handler.Handle)
	}

	if taskType := cej.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := cej.NewHandler(&cej.Config{
			StorageDir: cfg.Storage.Dir,
			Timeout:    config.GetDuration(wcfg.Timeout),
		}, jobLedger, log)
		workers.Start(taskType, workerOptions(wcfg), handler.Handle)
	}

	if taskType := rej.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := rej.NewHandler(&rej.Config{
			Timeout: config.GetDuration(wcfg.Timeout),
		}, runner, log)
		workers.Start(taskType, workerOptions(wcfg), handler.Handle)
	}

	if taskType := ec.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		handler := ec.NewHandler(&ec.Config{
			Timeout: config.GetDuration(wcfg.Timeout),
		}, merger, log)
		workers.Start(taskType, workerOptions(wcfg), handler.Handle)
	}

	zapLog.Info("Workers registered", zap.Strings("taskTypes", workers.TaskTypes()))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{"zeebe": "ok", "postgres": "ok", "redis": "ok"}
		status := http.StatusOK
		if err := zeebe.HealthCheck(checkCtx); err != nil {
			checks["zeebe"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := pg.Ping(checkCtx); err != nil {
			checks["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := rdb.Ping(checkCtx); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		checks["time"] = time.Now().Format(time.RFC3339)
		writeStatus(w, status, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	workers.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func workerOptions(wcfg config.WorkerConfig) camunda.WorkerOptions {
	return camunda.WorkerOptions{
		MaxJobsActive: wcfg.MaxJobsActive,
		Timeout:       config.GetDuration(wcfg.Timeout),
	}
}

func writeStatus(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
