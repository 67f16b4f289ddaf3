package recordstore

import (
	"context"
	"fmt"

	"storyreel/internal/config"
)

// New builds the record store selected by configuration.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "jsonfile":
		return NewJSONFileStore(cfg.DataDir)

	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)

	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("recordstore: STORE_POSTGRES_URL is required for the postgres backend")
		}
		return NewPostgresStore(ctx, cfg.PostgresURL)

	default:
		return nil, fmt.Errorf("recordstore: unknown backend: %s", cfg.Backend)
	}
}
