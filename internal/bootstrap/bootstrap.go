// Package bootstrap assembles the application from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/transithub/metrodms/internal/config"
	"github.com/transithub/metrodms/internal/core/domain"
	"github.com/transithub/metrodms/internal/core/ports"
	"github.com/transithub/metrodms/internal/core/usecase"
	"github.com/transithub/metrodms/internal/infrastructure/enrichment/mlservice"
	"github.com/transithub/metrodms/internal/infrastructure/extractor"
	"github.com/transithub/metrodms/internal/infrastructure/queue/nats"
	"github.com/transithub/metrodms/internal/infrastructure/repository/memstore"
	"github.com/transithub/metrodms/internal/infrastructure/repository/postgres"
	"github.com/transithub/metrodms/internal/infrastructure/resilience"
	"github.com/transithub/metrodms/internal/infrastructure/storage/localfs"
	"github.com/transithub/metrodms/internal/infrastructure/storage/s3"
	"github.com/transithub/metrodms/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue    *nats.Queue
	Repo     ports.DocumentRepository
	IngestUC *usecase.IngestDocumentUseCase
	QueryUC  *usecase.QueryDocumentsUseCase
	Metrics  *metrics.HTTPServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	repo, closeRepo, err := newRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objectStorage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		closeRepo()
		return nil, err
	}

	executorCfg := resilience.DefaultConfig()
	executorCfg.BreakerEnabled = cfg.BreakerEnabled
	executor := resilience.NewExecutor(executorCfg)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSEnrichedSubject, cfg.NATSReprocessSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		closeRepo()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	serverMetrics := metrics.NewHTTPServerMetrics(service)

	enricher := mlservice.New(mlservice.Options{
		BaseURL:          cfg.MLServiceURL,
		Timeout:          time.Duration(cfg.MLTimeoutSeconds) * time.Second,
		MaxSummaryLength: cfg.MaxSummaryLength,
		Executor:         executor,
		OnFallback: func(operation string) {
			serverMetrics.RecordEnrichmentFallback(service, operation)
		},
	})

	textExtractor := extractor.New(objectStorage)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, objectStorage, textExtractor, enricher, queue, logger)
	ingestUC.Observe = func(department string, status domain.ProcessingStatus) {
		serverMetrics.RecordIngestedDocument(service, department, string(status))
	}
	ingestUC.ObserveEnrichment = func(elapsed time.Duration) {
		serverMetrics.ObserveEnrichmentDuration(service, elapsed)
	}
	queryUC := usecase.NewQueryDocumentsUseCase(repo, objectStorage, logger)

	return &App{
		Config:   cfg,
		Queue:    queue,
		Repo:     repo,
		IngestUC: ingestUC,
		QueryUC:  queryUC,
		Metrics:  serverMetrics,

		closeFn: func() {
			queue.Close()
			closeRepo()
		},
	}, nil
}

func newRepository(ctx context.Context, cfg config.Config) (ports.DocumentRepository, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		return memstore.NewDocumentRepository(), func() {}, nil
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewDocumentRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "s3":
		store, err := s3.New(ctx, s3.Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return store, nil
	case "local":
		store, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
