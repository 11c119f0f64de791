// cmd/worker-manager/main.go
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

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"recommender-workers/internal/common/aws"
	"recommender-workers/internal/common/camunda"
	"recommender-workers/internal/common/config"
	"recommender-workers/internal/common/database"
	"recommender-workers/internal/common/embeddings"
	"recommender-workers/internal/common/errors"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/common/observability"
	"recommender-workers/internal/common/store"
	"recommender-workers/internal/common/tmdb"
	"recommender-workers/internal/common/validation"
	"recommender-workers/internal/taste"
	"recommender-workers/pkg/registry"

	smc "recommender-workers/internal/workers/catalog/sync-movie-catalog"
	sd "recommender-workers/internal/workers/notification/send-recommendation-digest"
	btp "recommender-workers/internal/workers/profile/build-taste-profile"
	ftp "recommender-workers/internal/workers/profile/fetch-taste-profile"
	fc "recommender-workers/internal/workers/recommendation/filter-candidates"
	rr "recommender-workers/internal/workers/recommendation/rerank-recommendations"
	sc "recommender-workers/internal/workers/recommendation/score-candidates"
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

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Load and validate the activity registry ---
	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.String("path", cfg.Registry.Path), zap.Error(err))
	}
	for _, activity := range reg.Activities {
		if err := validation.ValidateActivityNaming(activity.ID); err != nil {
			zapLog.Fatal("invalid activity ID in registry", zap.String("id", activity.ID), zap.Error(err))
		}
	}
	registered := reg.TaskTypes()
	for taskType, wcfg := range cfg.Workers {
		if wcfg.Enabled && !registered[taskType] {
			zapLog.Warn("enabled worker has no registry entry", zap.String("taskType", taskType))
		}
	}
	inputSchemas := make(map[string]map[string]interface{}, len(reg.Activities))
	for _, activity := range reg.Activities {
		inputSchemas[activity.TaskType] = activity.InputSchema
	}
	jobErrors := errors.NewErrorHandler(log)
	zapLog.Info("Activity registry loaded", zap.Int("activities", len(reg.Activities)))

	// --- Init Zeebe Client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zeebeClient := camundaClient.GetClient()
	zapLog.Info("Zeebe client connected successfully")

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

	// --- Shared domain clients ---
	profiles := store.NewPostgresProfileStore(pg, log)
	catalogIndex := store.NewCatalogIndex(esClient, cfg.Database.Elasticsearch.CatalogIndex, log)
	tmdbClient := tmdb.NewClient(cfg.TMDB, redis, log)
	embedder := embeddings.NewClient(cfg.Embeddings, redis, log)
	clusterer := taste.New(log, taste.Options{
		SmallHistoryLimit: cfg.Recommendation.SmallHistoryLimit,
		LargeHistoryLimit: cfg.Recommendation.LargeHistoryLimit,
		MinClusterSize:    cfg.Recommendation.MinClusterSize,
		MinK:              2,
		MaxK:              10,
		Seed:              1,
	})

	zapLog.Info("All shared clients initialized")

	// --- Register Workers ---
	var workers []*camunda.Worker

	// --- 1. Profile Workers (2) ---
	if cfg.Workers[btp.TaskType].Enabled {
		handler := btp.NewHandler(
			&btp.Config{
				Timeout:          time.Duration(cfg.Workers[btp.TaskType].Timeout) * time.Millisecond,
				LockTTL:          time.Duration(cfg.Recommendation.LockTTLSeconds) * time.Second,
				HighRatingCutoff: cfg.Recommendation.HighRatingCutoff,
			},
			profiles, redis, embedder, clusterer, log,
		)
		workers = append(workers, startWorker(zeebeClient, btp.TaskType, cfg.Workers[btp.TaskType], inputSchemas[btp.TaskType], jobErrors, handler.Handle, zapLog))
	}

	if cfg.Workers[ftp.TaskType].Enabled {
		handler := ftp.NewHandler(
			&ftp.Config{
				Timeout:            time.Duration(cfg.Workers[ftp.TaskType].Timeout) * time.Millisecond,
				DemoProfileEnabled: cfg.Recommendation.DemoProfileEnabled,
			},
			profiles, log,
		)
		workers = append(workers, startWorker(zeebeClient, ftp.TaskType, cfg.Workers[ftp.TaskType], inputSchemas[ftp.TaskType], jobErrors, handler.Handle, zapLog))
	}

	// --- 2. Catalog Worker (1) ---
	if cfg.Workers[smc.TaskType].Enabled {
		handler := smc.NewHandler(
			&smc.Config{
				Timeout: time.Duration(cfg.Workers[smc.TaskType].Timeout) * time.Millisecond,
			},
			tmdbClient, catalogIndex, log,
		)
		workers = append(workers, startWorker(zeebeClient, smc.TaskType, cfg.Workers[smc.TaskType], inputSchemas[smc.TaskType], jobErrors, handler.Handle, zapLog))
	}

	// --- 3. Recommendation Workers (3) ---
	if cfg.Workers[fc.TaskType].Enabled {
		handler := fc.NewHandler(
			&fc.Config{
				Timeout:          time.Duration(cfg.Workers[fc.TaskType].Timeout) * time.Millisecond,
				FuzzyMatchCutoff: cfg.Recommendation.FuzzyMatchCutoff,
			},
			catalogIndex, log,
		)
		workers = append(workers, startWorker(zeebeClient, fc.TaskType, cfg.Workers[fc.TaskType], inputSchemas[fc.TaskType], jobErrors, handler.Handle, zapLog))
	}

	if cfg.Workers[sc.TaskType].Enabled {
		handler := sc.NewHandler(
			&sc.Config{
				Timeout:      time.Duration(cfg.Workers[sc.TaskType].Timeout) * time.Millisecond,
				SoftmaxAlpha: cfg.Recommendation.SoftmaxAlpha,
				TopN:         cfg.Recommendation.TopN,
			},
			profiles, embedder, log,
		)
		workers = append(workers, startWorker(zeebeClient, sc.TaskType, cfg.Workers[sc.TaskType], inputSchemas[sc.TaskType], jobErrors, handler.Handle, zapLog))
	}

	if cfg.Workers[rr.TaskType].Enabled {
		handler := rr.NewHandler(
			&rr.Config{
				BaseURL:     cfg.APIs.GenAI.BaseURL,
				APIKey:      cfg.APIs.GenAI.APIKey,
				Model:       cfg.APIs.GenAI.Model,
				Timeout:     time.Duration(cfg.APIs.GenAI.Timeout) * time.Millisecond,
				MaxRetries:  2,
				Temperature: 0.2,
			},
			log,
		)
		workers = append(workers, startWorker(zeebeClient, rr.TaskType, cfg.Workers[rr.TaskType], inputSchemas[rr.TaskType], jobErrors, handler.Handle, zapLog))
	}

	// --- 4. Notification Worker (1) ---
	if cfg.Workers[sd.TaskType].Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("failed to create SES client", zap.Error(err))
		}
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("failed to create SNS client", zap.Error(err))
		}

		handler := sd.NewHandler(
			&sd.Config{
				Timeout:      time.Duration(cfg.Workers[sd.TaskType].Timeout) * time.Millisecond,
				FromEmail:    cfg.Notifications.Email.FromEmail,
				EmailEnabled: cfg.Notifications.Email.Enabled,
				SMSEnabled:   cfg.Notifications.SMS.Enabled,
			},
			sesClient, snsClient, log,
		)
		workers = append(workers, startWorker(zeebeClient, sd.TaskType, cfg.Workers[sd.TaskType], inputSchemas[sd.TaskType], jobErrors, handler.Handle, zapLog))
	}

	zapLog.Info("All workers registered successfully")

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
			if err := camundaClient.HealthCheck(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	for _, w := range workers {
		if w != nil {
			w.Close()
		}
	}
	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, inputSchema map[string]interface{}, errHandler *errors.ErrorHandler, handlerFunc camunda.JobHandlerFunc, log *zap.Logger) *camunda.Worker {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return nil
	}

	return camunda.OpenWorker(
		client,
		taskType,
		wcfg.MaxJobsActive,
		time.Duration(wcfg.Timeout)*time.Millisecond,
		camunda.WithInputValidation(inputSchema, errHandler, handlerFunc, log),
		log,
	)
}
