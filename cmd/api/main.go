package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/karibuhq/karibu-ai-platform/cmd/mainconfig"
	"github.com/karibuhq/karibu-ai-platform/internal/api/router"
	"github.com/karibuhq/karibu-ai-platform/internal/app/bootstrap"
	appconfig "github.com/karibuhq/karibu-ai-platform/internal/config"
	"github.com/karibuhq/karibu-ai-platform/internal/conversation"
	"github.com/karibuhq/karibu-ai-platform/internal/http/handlers"
	"github.com/karibuhq/karibu-ai-platform/internal/messaging"
	"github.com/karibuhq/karibu-ai-platform/internal/observability/metrics"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting karibu api server", "env", cfg.Env, "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

	dataLayer, err := bootstrap.BuildDataLayer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build data layer", "error", err)
		os.Exit(1)
	}
	defer dataLayer.Close()

	var queue conversation.Queue
	if cfg.UseMemoryQueue {
		queue = conversation.NewMemoryQueue(256)
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		queue = conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL)
	}
	publisher := conversation.NewPublisher(queue, logger)

	store, memStore := bootstrap.BuildConversationStore(ctx, cfg, logger)

	// With the memory queue there is no separate worker process, so the
	// engine, sweeper, and queue consumer all run in here.
	if cfg.UseMemoryQueue {
		engine := bootstrap.BuildEngine(cfg, dataLayer, store, logger, pipelineMetrics)
		worker := bootstrap.BuildWorker(cfg, engine, queue, dataLayer, logger, pipelineMetrics)
		worker.Start(ctx)
		if memStore != nil {
			sweeper := conversation.NewSweeper(memStore, cfg.ConversationIdleTTL, cfg.SweepInterval, logger, pipelineMetrics)
			go sweeper.Run(ctx)
		}
		logger.Info("in-process conversation worker started")
	}

	messagingHandler := messaging.NewHandler(
		cfg.TwilioAuthToken,
		cfg.MetaVerifyToken,
		publisher,
		dataLayer.Tenants,
		logger,
		pipelineMetrics,
	)

	r := router.New(&router.Config{
		Logger:             logger,
		MessagingHandler:   messagingHandler,
		AdminBookings:      handlers.NewAdminBookingsHandler(dataLayer.Bookings, logger),
		AdminConversations: handlers.NewAdminConversationsHandler(store, dataLayer.Archive, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
