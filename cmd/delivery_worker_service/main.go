package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	campaignpg "github.com/motorlink/golang_services/internal/campaign/repository/postgres"
	deliverypg "github.com/motorlink/golang_services/internal/delivery/repository/postgres"
	"github.com/motorlink/golang_services/internal/delivery/transport"
	"github.com/motorlink/golang_services/internal/delivery/worker"
	"github.com/motorlink/golang_services/internal/platform/config"
	"github.com/motorlink/golang_services/internal/platform/database"
	"github.com/motorlink/golang_services/internal/platform/logger"
	"github.com/motorlink/golang_services/internal/platform/messagebroker"
)

const serviceName = "delivery_worker_service"

func main() {
	cfg, err := config.Load("./configs", "config.defaults")
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Delivery worker service starting...", "log_level", cfg.LogLevel)

	dbPool, err := database.NewDBPool(context.Background(), cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL database")

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		// Workers still make progress on the poll path alone.
		appLogger.Warn("Failed to connect to NATS; running on poll fallback only", "error", err)
		natsClient = nil
	} else {
		defer natsClient.Close()
		appLogger.Info("Successfully connected to NATS")
	}

	jobRepo := deliverypg.NewPgJobRepository(dbPool, appLogger)
	statsRepo := campaignpg.NewPgStatsRepository(dbPool, appLogger)

	// Simulated providers stand in until real ESP and WhatsApp Business API
	// credentials are wired through configuration.
	emailTransport := transport.NewMockEmailTransport(appLogger)
	whatsappTransport := transport.NewMockWhatsAppTransport(appLogger, cfg.WhatsAppParamCount)

	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	emailWorker := worker.NewEmailWorker(jobRepo, statsRepo, emailTransport, natsClient, appLogger, worker.Config{
		MaxPerSecond: cfg.EmailWorkerMaxPerSecond,
		PollInterval: cfg.WorkerPollInterval,
		JobBatchSize: cfg.WorkerJobBatchSize,
		LeaseTimeout: cfg.WorkerLeaseTimeout,
	})
	whatsappWorker := worker.NewWhatsAppWorker(jobRepo, statsRepo, whatsappTransport, natsClient, appLogger, worker.Config{
		MaxPerSecond: cfg.WhatsAppWorkerMaxPerSecond,
		PollInterval: cfg.WorkerPollInterval,
		JobBatchSize: cfg.WorkerJobBatchSize,
		LeaseTimeout: cfg.WorkerLeaseTimeout,
	})

	if err := emailWorker.Start(appCtx); err != nil {
		appLogger.Error("Failed to start email worker", "error", err)
		os.Exit(1)
	}
	if err := whatsappWorker.Start(appCtx); err != nil {
		appLogger.Error("Failed to start whatsapp worker", "error", err)
		os.Exit(1)
	}

	go pruneLoop(appCtx, jobRepo, cfg.JobRetention, cfg.JobPruneInterval, appLogger)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.WorkerMetricsPort), Handler: metricsMux}
	go func() {
		appLogger.Info(fmt.Sprintf("Worker metrics listening on port %d", cfg.WorkerMetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Metrics server failed to serve", "error", err)
		}
	}()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quitChan
	appLogger.Info("Shutdown signal received", "signal", receivedSignal.String())

	cancelAppCtx()
	emailWorker.Stop()
	whatsappWorker.Stop()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := metricsServer.Shutdown(ctxShutdown); err != nil {
		appLogger.Error("Metrics server shutdown failed", "error", err)
	}
	appLogger.Info("Delivery worker service shut down successfully.")
}

// pruneLoop removes finished jobs past the retention window on a fixed
// interval. Queued and in-flight jobs are never touched.
func pruneLoop(ctx context.Context, repo *deliverypg.PgJobRepository, retention, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := repo.Prune(ctx, time.Now().UTC().Add(-retention)); err != nil {
				log.Error("Failed to prune finished delivery jobs", "error", err)
			}
		}
	}
}
