package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sqlscope/internal/catalog"
	"github.com/leapstack-labs/sqlscope/internal/config"
	"github.com/leapstack-labs/sqlscope/internal/engine"
	"github.com/leapstack-labs/sqlscope/pkg/schema"
)

// newEngine builds the analysis engine from the loaded configuration.
// Without a connection section the engine runs catalog-less: syntax and
// lowering diagnostics only. The returned cleanup closes the catalog
// connection, if any.
func newEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine.Engine, func(), error) {
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMaxDepth(cfg.MaxDepth),
	}

	if cfg.Connection == nil {
		return engine.New(nil, opts...), func() {}, nil
	}

	catCfg := catalog.Config{
		Host:     cfg.Connection.Host,
		Port:     cfg.Connection.Port,
		Database: cfg.Connection.Database,
		Username: cfg.Connection.User,
		Password: cfg.Connection.Password,
		Schemas:  cfg.Connection.Schemas,
		Options:  cfg.Connection.Options,
	}

	var (
		fetcher schema.Fetcher
		closer  func() error
	)
	switch cfg.Connection.Type {
	case "postgres":
		f, err := catalog.OpenPostgres(ctx, catCfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres catalog: %w", err)
		}
		fetcher, closer = f, f.Close
	case "mysql":
		f, err := catalog.OpenMySQL(ctx, catCfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to mysql catalog: %w", err)
		}
		fetcher, closer = f, f.Close
	default:
		return nil, nil, fmt.Errorf("unsupported connection type %q", cfg.Connection.Type)
	}

	cache := schema.NewCache(fetcher,
		schema.WithTTL(cfg.Cache.TTL),
		schema.WithFetchTimeout(cfg.Cache.FetchTimeout),
		schema.WithLogger(logger),
	)

	cleanup := func() {
		if err := closer(); err != nil {
			logger.Warn("closing catalog connection", "error", err)
		}
	}
	return engine.New(cache, opts...), cleanup, nil
}
