package main

import (
	"context"
	"io"
	"time"

	"hotelsync/internal/artifacts"
	"hotelsync/internal/config"
	"hotelsync/internal/database"
	"hotelsync/internal/logging"

	"github.com/rs/zerolog"
)

// app holds what every command needs: config, logger, the store and the artifact directory.
type app struct {
	cfg       *config.Config
	logger    *zerolog.Logger
	base      *zerolog.Logger
	db        *database.DB
	artifacts *artifacts.Store
	closers   []io.Closer
}

func openApp(opts *rootOptions, component string) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logging.Component(baseLogger, component), base: baseLogger}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(baseLogger, "database"))
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to open mutation store")
		a.Close()
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db)

	store, err := artifacts.NewStore(cfg.Artifacts.Dir, logging.Component(baseLogger, "artifacts"))
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to open artifact store")
		a.Close()
		return nil, err
	}
	a.artifacts = store
	db.SetArtifactRemover(store)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

func (a *app) sweepOrphans(ctx context.Context) (int, error) {
	retention := config.Duration(a.cfg.Artifacts.OrphanRetention, 7*24*time.Hour)
	return a.artifacts.SweepOrphans(ctx, a.db, retention)
}
