package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/yolink-bridge/migrations"

	"github.com/nerrad567/yolink-bridge/internal/api"
	"github.com/nerrad567/yolink-bridge/internal/device"
	"github.com/nerrad567/yolink-bridge/internal/infrastructure/config"
	"github.com/nerrad567/yolink-bridge/internal/infrastructure/database"
	"github.com/nerrad567/yolink-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/yolink-bridge/internal/ingest"
	"github.com/nerrad567/yolink-bridge/internal/yolink"
)

// run is the bridge itself, separated from main for testability.
//
// Startup order: config, logger, token, device enumeration (with catalog
// fallback), sinks, the optional status API, then the subscriber / consumer / token renewal trio
// under one errgroup. Any of the three failing cancels the others.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts *options) error {
	log := logging.Default()
	log.Info("starting yolink-bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // best-effort flush at exit
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"restart_policy", cfg.Subscriber.RestartPolicy,
	)

	tokens := yolink.NewTokenManager(cfg.YoLink.TokenURL, cfg.YoLink.ClientID, cfg.YoLink.ClientSecret,
		yolink.WithLogger(log.With("component", "token")))
	if _, err := tokens.Acquire(ctx); err != nil {
		return fmt.Errorf("acquiring access token: %w", err)
	}
	log.Info("access token acquired")

	client := yolink.NewAPIClient(cfg.YoLink.APIURL, tokens, nil)
	homeID, records, err := loadDevices(ctx, cfg, client, log)
	if err != nil {
		return err
	}

	registry := device.NewRegistry(records, log.With("component", "device"))
	log.Info("device registry initialised", "home_id", homeID, "devices", registry.Len())

	opened, err := wireSinks(ctx, cfg, registry, log)
	if err != nil {
		return err
	}
	defer opened.Close()

	queue := ingest.NewQueue(cfg.Queue.Capacity, cfg.Queue.Overflow, log.With("component", "queue"))
	queue.SetBlockTimeout(cfg.GetBlockTimeout())
	subscriber := ingest.NewSubscriber(ingest.SubscriberConfig{
		Broker:        cfg.YoLink.MQTT,
		Topic:         cfg.HomeTopic(homeID),
		RestartPolicy: cfg.Subscriber.RestartPolicy,
		Cooldown:      cfg.GetRestartCooldown(),
		MaxBackoff:    cfg.GetMaxBackoff(),
	}, tokens, queue, log.With("component", "subscriber"))
	consumer := ingest.NewConsumer(queue, registry, log.With("component", "consumer"))

	if cfg.API.Enabled {
		status, err := api.New(api.Deps{
			Config:     cfg.API,
			Logger:     log.With("component", "api"),
			Registry:   registry,
			Queue:      queue,
			Consumer:   consumer,
			Subscriber: subscriber,
			Components: opened.health,
			HomeID:     homeID,
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("creating status API: %w", err)
		}
		if err := status.Start(ctx); err != nil {
			return fmt.Errorf("starting status API: %w", err)
		}
		defer func() {
			if closeErr := status.Close(); closeErr != nil {
				log.Error("error closing status API", "error", closeErr)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return subscriber.Run(gctx) })
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error { return tokens.Run(gctx, cfg.GetRenewInterval()) })

	log.Info("bridge running", "topic", cfg.HomeTopic(homeID), "queue_capacity", queue.Cap())

	err = g.Wait()

	stats := consumer.Stats()
	log.Info("bridge stopped",
		"processed", stats.Processed,
		"failed", stats.Failed,
		"unknown", stats.Unknown,
		"dropped", queue.Dropped(),
		"malformed", subscriber.Malformed(),
	)

	if errors.Is(err, ingest.ErrRestartRequired) {
		log.Error("vendor connection ended, exiting for restart", "error", err)
	}
	return err
}

// loadDevices enumerates the home and its devices, falling back to the
// cached catalog when the API is unavailable.
func loadDevices(ctx context.Context, cfg *config.Config, source *yolink.APIClient, log *logging.Logger) (string, []yolink.DeviceRecord, error) {
	var repo device.CatalogRepository
	if cfg.Catalog.Enabled {
		db, err := database.Open(ctx, database.ConfigFromCatalog(cfg.Catalog))
		if err != nil {
			return "", nil, fmt.Errorf("opening catalog: %w", err)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing catalog", "error", closeErr)
			}
		}()
		if err := db.Migrate(ctx); err != nil {
			return "", nil, fmt.Errorf("migrating catalog: %w", err)
		}
		repo = device.NewSQLiteRepository(db.DB)
	}

	return resolveDevices(ctx, source, repo, log)
}

// catalogSource is the subset of the YoLink API used at startup.
type catalogSource interface {
	HomeID(ctx context.Context) (string, error)
	ListDevices(ctx context.Context) ([]yolink.DeviceRecord, error)
}

// resolveDevices returns the live catalog when the API answers, saving it
// to repo, and the cached one otherwise. repo may be nil.
func resolveDevices(ctx context.Context, source catalogSource, repo device.CatalogRepository, log *logging.Logger) (string, []yolink.DeviceRecord, error) {
	homeID, records, apiErr := enumerate(ctx, source)
	if apiErr == nil && len(records) > 0 {
		if repo != nil {
			if err := repo.SaveCatalog(ctx, homeID, records); err != nil {
				log.Warn("failed to cache device catalog", "error", err)
			}
		}
		return homeID, records, nil
	}

	if repo == nil {
		if apiErr != nil {
			return "", nil, fmt.Errorf("enumerating devices: %w", apiErr)
		}
		log.Warn("no devices found for home", "home_id", homeID)
		return homeID, records, nil
	}

	cachedHome, cached, err := repo.LoadCatalog(ctx)
	switch {
	case errors.Is(err, device.ErrCatalogEmpty) && apiErr == nil:
		log.Warn("no devices found for home and no cached catalog", "home_id", homeID)
		return homeID, records, nil
	case errors.Is(err, device.ErrCatalogEmpty):
		return "", nil, fmt.Errorf("enumerating devices: %w (no cached catalog)", apiErr)
	case err != nil:
		return "", nil, fmt.Errorf("loading cached catalog: %w", err)
	}

	log.Warn("using cached device catalog",
		"home_id", cachedHome,
		"devices", len(cached),
		"api_error", apiErr)
	return cachedHome, cached, nil
}

func enumerate(ctx context.Context, source catalogSource) (string, []yolink.DeviceRecord, error) {
	homeID, err := source.HomeID(ctx)
	if err != nil {
		return "", nil, err
	}
	records, err := source.ListDevices(ctx)
	if err != nil {
		return "", nil, err
	}
	return homeID, records, nil
}
