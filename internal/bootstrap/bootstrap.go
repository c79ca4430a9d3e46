// Package bootstrap assembles the order service from configuration. Both the HTTP
// server and the one-shot CLI share it.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"proforma/internal/app"
	"proforma/internal/cache"
	"proforma/internal/config"
	"proforma/internal/core"
	"proforma/internal/db"
	"proforma/internal/events"
	"proforma/internal/store/memory"
	"proforma/internal/store/postgres"
)

// Runtime is a wired ApplicationService plus the resources it holds open.
type Runtime struct {
	Service app.ApplicationService
	closers []func()
}

// Close releases every resource in reverse order of acquisition.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// Build selects the store backend, then layers the optional catalog cache and
// event publisher on top of it.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	rt := &Runtime{}

	var (
		repo    core.Repository
		catalog core.Catalog
		clients core.ClientDirectory
	)
	switch cfg.Store {
	case config.StoreMemory:
		memCatalog := memory.NewCatalog()
		memClients := memory.NewClients()
		memory.SeedDemo(memCatalog, memClients, cfg.CompanyCode)
		repo, catalog, clients = memory.NewStore(), memCatalog, memClients
		logger.Info("using in-memory store", zap.String("company", cfg.CompanyCode))
	default:
		if cfg.MigrateOnStart {
			if err := db.Migrate(ctx, cfg.DatabaseURL, logger); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		repo, catalog, clients = postgres.NewRepository(pool), postgres.NewCatalog(pool), postgres.NewClients(pool)
	}

	if cfg.RedisAddr != "" {
		catalog = cache.NewCachedCatalog(catalog, cache.NewRedisCache(cfg.RedisAddr, "proforma"), cfg.CatalogCacheTTL, logger)
		logger.Info("catalog cache enabled", zap.String("redis", cfg.RedisAddr), zap.Duration("ttl", cfg.CatalogCacheTTL))
	}

	opts := []core.Option{core.WithLogger(logger)}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("kafka producer close failed", zap.Error(err))
			}
		})
		opts = append(opts, core.WithPublisher(publisher))
		logger.Info("publishing order events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	rt.Service = app.NewAppService(core.NewOrderService(repo, catalog, clients, opts...))
	return rt, nil
}
