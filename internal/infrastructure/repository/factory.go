package repository

import (
	"context"
	"fmt"

	"shopify-session-storage/internal/config"
	"shopify-session-storage/internal/ports"

	"github.com/rs/zerolog"
)

// New creates the session storage selected by cfg. The storage is still
// initializing when returned; call Ready to wait for it.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ports.SessionStorage, error) {
	opts := []Option{
		WithSessionTableName(cfg.SessionTable),
		WithMigrationTableName(cfg.MigrationTable),
	}

	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemorySessionStorage(), nil
	case config.BackendSQLite:
		return NewSQLiteSessionStorage(ctx, cfg.SQLite.Path, logger, opts...), nil
	case config.BackendMySQL:
		if cfg.MySQL.DSN != "" {
			return NewMySQLSessionStorage(ctx, cfg.MySQL.DSN, logger, opts...), nil
		}
		return NewMySQLSessionStorageWithCredentials(ctx,
			cfg.MySQL.Host, cfg.MySQL.Database, cfg.MySQL.Username, cfg.MySQL.Password, logger, opts...), nil
	case config.BackendPostgres:
		if cfg.Postgres.DSN != "" {
			return NewPostgreSQLSessionStorage(ctx, cfg.Postgres.DSN, logger, opts...), nil
		}
		return NewPostgreSQLSessionStorageWithCredentials(ctx,
			cfg.Postgres.Host, cfg.Postgres.Database, cfg.Postgres.Username, cfg.Postgres.Password, logger, opts...), nil
	case config.BackendMongoDB:
		return NewMongoSessionStorage(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database, logger, opts...), nil
	case config.BackendRedis:
		return NewRedisSessionStorage(ctx, cfg.Redis.URL, logger, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported session storage backend %q", cfg.Backend)
	}
}
