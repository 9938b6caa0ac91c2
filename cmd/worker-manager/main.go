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

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"creditflow-workers/internal/common/config"
	"creditflow-workers/internal/common/database"
	"creditflow-workers/internal/common/logger"
	"creditflow-workers/internal/common/observability"
	"creditflow-workers/pkg/registry"

	// Credit decision workers (6)
	ac "creditflow-workers/internal/workers/credit/adjust-collateral"
	ct "creditflow-workers/internal/workers/credit/calibrate-threshold"
	er "creditflow-workers/internal/workers/credit/evaluate-rules"
	rd "creditflow-workers/internal/workers/credit/resolve-decision"
	ra "creditflow-workers/internal/workers/credit/run-appraisal"
	sa "creditflow-workers/internal/workers/credit/score-application"

	// Collateral workers (2)
	rb "creditflow-workers/internal/workers/collateral/resolve-bridge"
	vc "creditflow-workers/internal/workers/collateral/verify-collateral"

	// Communication workers (1)
	sdn "creditflow-workers/internal/workers/communication/send-decision-notice"
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

	// --- Activity registry ---
	if cfg.Registry.Path != "" {
		reg, err := registry.LoadRegistry(cfg.Registry.Path)
		if err != nil {
			zapLog.Fatal("registry load failed", zap.Error(err), zap.String("path", cfg.Registry.Path))
		}
		if err := reg.Validate(); err != nil {
			zapLog.Fatal("registry validation failed", zap.Error(err))
		}
		zapLog.Info("Activity registry validated", zap.Int("activities", len(reg.Activities)))
	}

	// --- Init Zeebe Client with retry ---
	var zeebeClient zbc.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
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

	// --- Load scoring model ---
	var model sa.Model
	if cfg.Decision.ModelPath != "" {
		loaded, err := sa.LoadLogisticModel(cfg.Decision.ModelPath)
		if err != nil {
			zapLog.Fatal("model load failed", zap.Error(err), zap.String("path", cfg.Decision.ModelPath))
		}
		model = loaded
		zapLog.Info("Scoring model loaded", zap.String("path", cfg.Decision.ModelPath))
	} else {
		zapLog.Warn("no model path configured, scoring jobs will fail with MODEL_NOT_LOADED")
	}

	// --- START: Register all 9 workers ---

	// --- 1. Credit decision workers (6) ---
	if cfg.Workers[sa.TaskType].Enabled {
		handler := sa.NewHandler(
			&sa.Config{
				Timeout:   time.Duration(cfg.Workers[sa.TaskType].Timeout) * time.Millisecond,
				ModelPath: cfg.Decision.ModelPath,
			},
			model, log,
		)
		startWorker(zeebeClient, sa.TaskType, cfg.Workers[sa.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[ac.TaskType].Enabled {
		handler := ac.NewHandler(
			&ac.Config{
				Timeout:   time.Duration(cfg.Workers[ac.TaskType].Timeout) * time.Millisecond,
				TargetLTV: cfg.Decision.TargetLTV,
			},
			log,
		)
		startWorker(zeebeClient, ac.TaskType, cfg.Workers[ac.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[ct.TaskType].Enabled {
		handler := ct.NewHandler(
			&ct.Config{
				Timeout:          time.Duration(cfg.Workers[ct.TaskType].Timeout) * time.Millisecond,
				DefaultThreshold: 0.5,
			},
			log,
		)
		startWorker(zeebeClient, ct.TaskType, cfg.Workers[ct.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[er.TaskType].Enabled {
		handler := er.NewHandler(
			&er.Config{
				Timeout: time.Duration(cfg.Workers[er.TaskType].Timeout) * time.Millisecond,
			},
			log,
		)
		startWorker(zeebeClient, er.TaskType, cfg.Workers[er.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[rd.TaskType].Enabled {
		handler := rd.NewHandler(
			&rd.Config{
				Timeout: time.Duration(cfg.Workers[rd.TaskType].Timeout) * time.Millisecond,
			},
			log,
		)
		startWorker(zeebeClient, rd.TaskType, cfg.Workers[rd.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[ra.TaskType].Enabled {
		handler := ra.NewHandler(
			&ra.Config{
				Timeout:     time.Duration(cfg.Workers[ra.TaskType].Timeout) * time.Millisecond,
				PersistRuns: true,
			},
			model, redis.Client, pg.DB, log,
		)
		startWorker(zeebeClient, ra.TaskType, cfg.Workers[ra.TaskType], handler.Handle, zapLog)
	}

	// --- 2. Collateral workers (2) ---
	if cfg.Workers[rb.TaskType].Enabled {
		handler := rb.NewHandler(
			&rb.Config{
				Timeout:      time.Duration(cfg.Workers[rb.TaskType].Timeout) * time.Millisecond,
				JoinKey:      cfg.Decision.BridgeJoinKey,
				CacheTTL:     time.Duration(cfg.Decision.BridgeCacheTTL) * time.Second,
				CacheEnabled: true,
			},
			redis.Client, log,
		)
		startWorker(zeebeClient, rb.TaskType, cfg.Workers[rb.TaskType], handler.Handle, zapLog)
	}

	if cfg.Workers[vc.TaskType].Enabled {
		handler := vc.NewHandler(
			&vc.Config{
				Timeout:    time.Duration(cfg.Workers[vc.TaskType].Timeout) * time.Millisecond,
				TraceIndex: cfg.Database.Elasticsearch.TraceIndex,
			},
			esClient, log,
		)
		startWorker(zeebeClient, vc.TaskType, cfg.Workers[vc.TaskType], handler.Handle, zapLog)
	}

	// --- 3. Communication workers (1) ---
	if cfg.Workers[sdn.TaskType].Enabled {
		handler, err := sdn.NewHandler(
			&sdn.Config{
				EmailEnabled:   cfg.Notifications.AWS.SES.Enabled,
				SMSEnabled:     cfg.Notifications.AWS.SNS.Enabled,
				WebhookEnabled: cfg.Notifications.Webhook.Enabled,
				FromEmail:      cfg.Notifications.AWS.SES.FromEmail,
				AWSRegion:      cfg.Notifications.AWS.Region,
				SMSSenderID:    cfg.Notifications.AWS.SNS.DefaultSMSSenderID,
				WebhookURL:     cfg.Notifications.Webhook.URL,
				Timeout:        time.Duration(cfg.Workers[sdn.TaskType].Timeout) * time.Millisecond,
			},
			log,
		)
		if err != nil {
			zapLog.Fatal("failed to create send-decision-notice handler", zap.Error(err))
		}
		startWorker(zeebeClient, sdn.TaskType, cfg.Workers[sdn.TaskType], handler.Handle, zapLog)
	}

	zapLog.Info("All 9 workers registered successfully")

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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = shutdownCtx

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	client.NewJobWorker().
		JobType(taskType).
		Handler(handlerFunc).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}
