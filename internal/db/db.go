// Package db opens the store.Store backend selected by configuration.
package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/undeadops/snip/internal/config"
	"github.com/undeadops/snip/internal/db/dynamo"
	"github.com/undeadops/snip/internal/db/memory"
	"github.com/undeadops/snip/internal/db/postgres"
	"github.com/undeadops/snip/internal/store"
)

// Open connects to the configured backend and verifies it is reachable.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendDynamoDB:
		logger.Debug().Str("table", cfg.Table).Msg("using dynamodb storage")
		s, err := dynamo.New(ctx, dynamo.Config{
			Region:    cfg.Region,
			Table:     cfg.Table,
			Endpoint:  cfg.DynamoEndpoint,
			DebugMode: cfg.Debug,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize dynamodb storage: %w", err)
		}
		return s, nil

	case config.BackendPostgres:
		logger.Debug().Msg("using postgres storage")
		s, err := postgres.NewManager(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres storage: %w", err)
		}
		return s, nil

	case config.BackendMemory:
		logger.Debug().Msg("using memory storage")
		return memory.New(), nil
	}

	return nil, fmt.Errorf("unknown storage type: %s", cfg.StoreBackend)
}
