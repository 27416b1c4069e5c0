package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"hotelsync/internal/api"
	"hotelsync/internal/config"
	"hotelsync/internal/database"
	"hotelsync/internal/events"
	"hotelsync/internal/gate"
	"hotelsync/internal/handlers"
	"hotelsync/internal/lease"
	"hotelsync/internal/logging"
	"hotelsync/internal/metrics"
	"hotelsync/internal/models"
	"hotelsync/internal/remote"
	"hotelsync/internal/service"
	"hotelsync/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync engine until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEngine(cmd.Context(), opts)
		},
	}
}

func runEngine(parent context.Context, opts *rootOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(opts, "engine")
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger, base := a.cfg, a.logger, a.base

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	eventBus := events.NewEventBus()

	client, err := remote.NewHTTPClient(cfg.Remote, logging.Component(base, "remote"))
	if err != nil {
		return err
	}

	probe := gate.NewProbe(client, time.Duration(cfg.Remote.ProbeTimeout)*time.Second, eventBus, logging.Component(base, "gate"))
	registry := handlers.NewRegistry(client, a.artifacts, logging.Component(base, "handlers"))
	retry := retryPolicy(cfg.Sync)
	orchestrator := worker.NewOrchestrator(a.db, registry, probe, eventBus, retry, cfg.Sync.BatchSize, logging.Component(base, "orchestrator"))

	passLease, closeLease := initLease(ctx, cfg.Redis, base)
	defer closeLease()

	scheduler := worker.NewScheduler(orchestrator, passLease, retry, worker.SchedulerConfig{
		PeriodicInterval: config.Duration(cfg.Sync.PeriodicInterval, 15*time.Minute),
		LeaseKey:         cfg.Sync.LeaseKey,
		LeaseTTL:         config.Duration(cfg.Sync.LeaseTTL, 10*time.Minute),
	}, logging.Component(base, "scheduler"))
	scheduler.Subscribe(eventBus)

	mutations := service.NewMutationService(a.db, eventBus, cfg.Sync.MaxAttempts, logging.Component(base, "service"))

	go probe.Watch(ctx, config.Duration(cfg.Sync.BackoffFloor, backoffFloor))
	go scheduler.Start(ctx)

	backupService := database.NewBackupService(a.db, cfg.Backup, logging.Component(base, "backup"))
	go backupService.Start(ctx)

	go sweepLoop(ctx, a, logger)

	if cfg.Status.Enabled {
		server := api.NewHTTPServer(cfg.Status, cfg.Monitoring.PrometheusEnabled, mutations, scheduler, logging.Component(base, "status"))
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("status server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("status server shutdown failed")
			}
		}()
	}

	scheduler.Trigger()

	logger.Info().
		Str("remote", cfg.Remote.BaseURL).
		Int("batch_size", cfg.Sync.BatchSize).
		Int("max_attempts", cfg.Sync.MaxAttempts).
		Msg("sync engine started")

	<-ctx.Done()
	logger.Info().Msg("sync engine stopping")
	return nil
}

const backoffFloor = models.DefaultBackoffFloorSeconds * time.Second

func retryPolicy(cfg config.SyncConfig) worker.RetryPolicy {
	return worker.RetryPolicy{
		MaxRetries:    cfg.MaxAttempts,
		InitialDelay:  config.Duration(cfg.BackoffFloor, backoffFloor),
		MaxDelay:      config.Duration(cfg.BackoffMax, 5*time.Hour),
		BackoffFactor: cfg.BackoffFactor,
	}
}

// initLease prefers Redis when configured and falls back to an in-process lease while it is down.
func initLease(ctx context.Context, cfg config.RedisConfig, logger *zerolog.Logger) (lease.Lease, func()) {
	local := lease.NewMemoryLease()
	if cfg.Address == "" {
		return local, func() {}
	}

	client := lease.NewRedisClient(cfg)
	if err := lease.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Str("address", cfg.Address).Msg("redis unavailable at startup, using failover lease")
	}
	failover := lease.NewFailoverLease(lease.NewRedisLease(client), local, logging.Component(logger, "lease"))
	return failover, func() { _ = lease.Close(client) }
}

func sweepLoop(ctx context.Context, a *app, logger *zerolog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		removed, err := a.sweepOrphans(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("orphan sweep failed")
		} else if removed > 0 {
			logger.Info().Int("removed", removed).Str("sweep_id", uuid.NewString()).Msg("orphaned artifacts swept")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
