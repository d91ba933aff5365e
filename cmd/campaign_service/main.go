package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/motorlink/golang_services/internal/campaign/adapters/segments"
	"github.com/motorlink/golang_services/internal/campaign/adapters/tenants"
	"github.com/motorlink/golang_services/internal/campaign/app"
	campaignpg "github.com/motorlink/golang_services/internal/campaign/repository/postgres"
	campaignhttp "github.com/motorlink/golang_services/internal/campaign/transport/http"
	deliverypg "github.com/motorlink/golang_services/internal/delivery/repository/postgres"
	"github.com/motorlink/golang_services/internal/delivery/queue"
	"github.com/motorlink/golang_services/internal/platform/config"
	"github.com/motorlink/golang_services/internal/platform/database"
	"github.com/motorlink/golang_services/internal/platform/logger"
	"github.com/motorlink/golang_services/internal/platform/messagebroker"
)

const serviceName = "campaign_service"

func main() {
	cfg, err := config.Load("./configs", "config.defaults")
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Campaign service starting...", "port", cfg.CampaignServicePort)

	dbPool, err := database.NewDBPool(context.Background(), cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL database")

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		// Degraded but functional: workers fall back to polling the queue
		// table without the NATS fast path.
		appLogger.Warn("Failed to connect to NATS; job notifies disabled", "error", err)
		natsClient = nil
	} else {
		defer natsClient.Close()
		appLogger.Info("Successfully connected to NATS")
	}

	campaignRepo := campaignpg.NewPgCampaignRepository(dbPool, appLogger)
	statsRepo := campaignpg.NewPgStatsRepository(dbPool, appLogger)
	suppressionRepo := campaignpg.NewPgSuppressionRepository(dbPool, appLogger)
	jobRepo := deliverypg.NewPgJobRepository(dbPool, appLogger)

	var notifier queue.Notifier
	if natsClient != nil {
		notifier = natsClient
	}
	jobQueue := queue.NewDurableQueue(jobRepo, notifier, appLogger)

	httpClient := &http.Client{Timeout: cfg.ExternalHTTPTimeout}
	segmentClient := segments.NewClient(cfg.SegmentServiceBaseURL, appLogger, httpClient)
	tenantClient := tenants.NewClient(cfg.TenantServiceBaseURL, cfg.DefaultBrandName, appLogger, httpClient)

	renderer, err := app.NewTemplateRenderer()
	if err != nil {
		appLogger.Error("Failed to build message templates", "error", err)
		os.Exit(1)
	}
	unsubTokens := app.NewUnsubscribeTokens(cfg.UnsubscribeSecret, cfg.UnsubscribeBaseURL)

	dispatcher := app.NewDispatcher(
		campaignRepo, statsRepo, suppressionRepo,
		segmentClient, tenantClient, jobQueue, renderer, unsubTokens,
		appLogger,
		app.DispatcherConfig{
			DefaultPhoneRegion: cfg.DefaultPhoneRegion,
			EmailMaxEnqueueRPS: cfg.EmailMaxEnqueueRPS,
			EmailFrom:          cfg.EmailFromAddress,
			ContactLinkBaseURL: cfg.ContactLinkBaseURL,
		},
	)
	campaignService := app.NewCampaignAppService(
		campaignRepo, statsRepo, suppressionRepo, dispatcher, unsubTokens, appLogger)

	validate := validator.New()
	campaignHandler := campaignhttp.NewCampaignHandler(campaignService, appLogger, validate)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "Campaign service is healthy"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/campaigns", func(api chi.Router) {
		campaignHandler.RegisterRoutes(api)
	})
	r.Get("/unsubscribe", campaignHandler.Unsubscribe)
	r.Post("/unsubscribe", campaignHandler.Unsubscribe)

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.CampaignServicePort), Handler: r}
	appLogger.Info(fmt.Sprintf("Campaign server listening on port %d", cfg.CampaignServicePort))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed to serve", "error", err)
		}
	}()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	<-quitChan
	appLogger.Info("Shutdown signal received, shutting down HTTP server...")
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		appLogger.Error("HTTP server shutdown failed", "error", err)
	} else {
		appLogger.Info("HTTP server shut down gracefully.")
	}
	appLogger.Info("Campaign service shut down.")
}
