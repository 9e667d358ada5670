package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/transithub/metrodms/internal/bootstrap"
	"github.com/transithub/metrodms/internal/config"
	"github.com/transithub/metrodms/internal/observability/logging"
	"github.com/transithub/metrodms/internal/observability/metrics"
)

const service = "metrodms-worker"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := logging.New(service, cfg.LogLevel, cfg.Development())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, service, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(service)

	logger.Info("worker subscribed", "subject", cfg.NATSReprocessSubject)
	err = app.Queue.SubscribeReprocess(ctx, func(handlerCtx context.Context, documentID int64) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		workerMetrics.StartDocument()
		start := time.Now()
		_, err := app.IngestUC.ProcessByID(processCtx, documentID)
		workerMetrics.FinishDocument(service, time.Since(start), err)
		return err
	})
	if err != nil {
		logger.Error("worker subscribe failed", "error", err)
		os.Exit(1)
	}
}
