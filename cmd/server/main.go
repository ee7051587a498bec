package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appsync "github.com/possync/backend/internal/application/sync"
	"github.com/possync/backend/internal/infrastructure/archive"
	"github.com/possync/backend/internal/infrastructure/config"
	"github.com/possync/backend/internal/infrastructure/everest"
	"github.com/possync/backend/internal/infrastructure/logger"
	"github.com/possync/backend/internal/infrastructure/persistence"
	"github.com/possync/backend/internal/infrastructure/scheduler"
	"github.com/possync/backend/internal/infrastructure/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting possync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database, with gorm logs routed through zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Telemetry
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	syncMetrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:  meterProvider.Meter("possync"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled: cfg.Telemetry.DBTraceEnabled,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// Repositories and ledger
	integrationRepo := persistence.NewGormIntegrationRepository(db.DB)
	saleRepo := persistence.NewGormSaleRepository(db.DB)
	runLedger := persistence.NewGormRunLedger(db.DB)

	// Upstream client
	fetcher, err := everest.NewClient(everest.Config{
		BaseURL:       cfg.Upstream.BaseURL,
		Timeout:       cfg.Upstream.Timeout,
		MaxAttempts:   cfg.Upstream.MaxAttempts,
		RetryInterval: cfg.Upstream.RetryInterval,
		DateField:     cfg.Upstream.DateField,
	}, log)
	if err != nil {
		log.Fatal("Failed to create upstream client", zap.Error(err))
	}

	// Orchestrator
	syncService := appsync.NewService(
		integrationRepo,
		saleRepo,
		runLedger,
		fetcher,
		appsync.Config{
			PageSize:            cfg.Sync.PageSize,
			MaxRequests:         cfg.Sync.MaxRequests,
			MaxConsecutiveEmpty: cfg.Sync.MaxConsecutiveEmpty,
			InterPageDelay:      cfg.Sync.InterPageDelay,
		},
		log,
	)
	syncService.SetMetrics(syncMetrics)

	// Optional raw-page mirror
	if cfg.Archive.Enabled {
		mirror, err := archive.NewS3PageArchiver(&cfg.Archive, log)
		if err != nil {
			log.Fatal("Failed to create page archiver", zap.Error(err))
		}
		if err := mirror.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to ensure archive bucket", zap.Error(err))
		}
		syncService.SetPageMirror(mirror)
		log.Info("Raw-page mirroring enabled", zap.String("bucket", cfg.Archive.Bucket))
	}

	// Scheduler
	if cfg.Scheduler.Enabled {
		syncScheduler := scheduler.NewSyncScheduler(scheduler.Config{
			CronSchedule:      cfg.Scheduler.CronSchedule,
			DefaultWindowDays: cfg.Sync.DefaultWindowDays,
			RunTimeout:        cfg.Sync.RunTimeout,
		}, syncService, integrationRepo, log)
		if err := syncScheduler.Start(); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := syncScheduler.Stop(stopCtx); err != nil {
				log.Error("Error stopping sync scheduler", zap.Error(err))
			}
		}()
	} else {
		log.Warn("Scheduler disabled; no runs will be triggered by this process")
	}

	log.Info("possync started")
	<-ctx.Done()
	log.Info("Shutdown signal received, stopping")
}
