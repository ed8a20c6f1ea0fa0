package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/karibuhq/karibu-ai-platform/cmd/mainconfig"
	"github.com/karibuhq/karibu-ai-platform/internal/app/bootstrap"
	appconfig "github.com/karibuhq/karibu-ai-platform/internal/config"
	"github.com/karibuhq/karibu-ai-platform/internal/conversation"
	"github.com/karibuhq/karibu-ai-platform/internal/observability/metrics"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting karibu conversation worker", "env", cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

	dataLayer, err := bootstrap.BuildDataLayer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build data layer", "error", err)
		os.Exit(1)
	}
	defer dataLayer.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL)

	store, memStore := bootstrap.BuildConversationStore(ctx, cfg, logger)
	engine := bootstrap.BuildEngine(cfg, dataLayer, store, logger, pipelineMetrics)
	worker := bootstrap.BuildWorker(cfg, engine, queue, dataLayer, logger, pipelineMetrics)

	worker.Start(ctx)
	if memStore != nil {
		sweeper := conversation.NewSweeper(memStore, cfg.ConversationIdleTTL, cfg.SweepInterval, logger, pipelineMetrics)
		go sweeper.Run(ctx)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down conversation worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("conversation worker stopped")
	case <-doneCtx.Done():
		logger.Error("conversation worker shutdown timed out", "error", doneCtx.Err())
	}
}
