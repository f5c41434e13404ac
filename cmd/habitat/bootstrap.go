package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"habitat/internal/config"
	"habitat/internal/event"
	"habitat/internal/log"
	"habitat/internal/metrics"
	"habitat/internal/model"
	"habitat/internal/provider"
	"habitat/internal/session"
	"habitat/internal/storage"
)

// app holds every long-lived component, created in dependency order.
type app struct {
	cfg       *model.Config
	logger    *log.Logger
	snapshots *storage.SQLiteSnapshotStore
	events    *event.EventManager
	metrics   *metrics.Metrics
	session   *session.Session
}

// bootstrap loads configuration and builds the logger, storage and session.
// The session is created but not started.
func bootstrap(ctx context.Context) (*app, error) {
	config.SetConfigPath(*configPath)
	if err := config.ConfigLoad(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := config.ConfigGet()

	levelName := cfg.Log.Level
	if *logLevel != "" {
		levelName = *logLevel
	}
	level, err := log.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	logger, err := log.NewLogger(cfg.Log, level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info(ctx, "Application started", log.Fields{"config": config.ConfigPath()})

	a := &app{cfg: cfg, logger: logger, events: event.NewEventManager(), metrics: metrics.New()}
	a.snapshots, err = storage.NewSnapshotStore(ctx, cfg.Database, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	p, err := newProvider(cfg.Provider)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.session, err = session.New(session.Options{
		Config:    cfg,
		Provider:  p,
		Snapshots: a.snapshots,
		Logger:    logger,
		Events:    a.events,
		Metrics:   a.metrics,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return a, nil
}

func newProvider(cfg model.ProviderConfig) (provider.TopicProvider, error) {
	switch cfg.Type {
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("http provider requires provider.url")
		}
		return provider.NewHTTPProvider(cfg.URL, time.Duration(cfg.TimeoutSec)*time.Second), nil
	case "catalog", "":
		if cfg.Catalog == "" {
			return &provider.Catalog{}, nil
		}
		return provider.LoadCatalog(cfg.Catalog)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// historyFile places the readline history next to the logs.
func (a *app) historyFile() string {
	return filepath.Join(a.cfg.Log.Folder, "history")
}

// Close saves the live hole and releases everything in reverse order.
func (a *app) Close() {
	ctx := context.Background()
	if a.session != nil {
		if key, err := a.session.SaveHole(ctx); err != nil {
			a.logger.Error(ctx, "Failed to save hole on exit", log.Fields{"hole": key, "error": err})
		}
		_ = a.session.Close()
	}
	a.events.Wait()
	if a.snapshots != nil {
		if err := a.snapshots.Close(); err != nil {
			a.logger.Error(ctx, "Failed to close storage", log.Fields{"error": err})
		}
	}
	a.logger.Info(ctx, "Application shutting down", nil)
	_ = a.logger.Close()
}
