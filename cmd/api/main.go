package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/transithub/metrodms/internal/adapters/http"
	"github.com/transithub/metrodms/internal/bootstrap"
	"github.com/transithub/metrodms/internal/config"
	"github.com/transithub/metrodms/internal/observability/logging"
)

const service = "metrodms-api"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := logging.New(service, cfg.LogLevel, cfg.Development())
	slog.SetDefault(logger)
	httpadapter.SetDevelopmentMode(cfg.Development())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, service, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(
		app.IngestUC,
		app.QueryUC,
		httpadapter.NewAuthenticator(cfg.AuthSecret),
		httpadapter.RouterOptions{
			Metrics:        app.Metrics,
			Service:        service,
			UploadMaxBytes: cfg.UploadMaxBytes,
			RateLimitRPS:   cfg.APIRateLimitRPS,
			RateLimitBurst: cfg.APIRateLimitBurst,
			MaxInFlight:    cfg.APIMaxInFlight,
		},
	)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", "error", err)
	}
}
