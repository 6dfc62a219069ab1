package cache

import (
	"context"
	"fmt"

	"pulpit/internal/config"
	"pulpit/internal/store"
)

// OpenBackend builds the Store selected by cache.backend. The returned close
// function releases backend resources and is never nil.
func OpenBackend(ctx context.Context, cfg *config.Config, catalog *store.Store) (Store, func(), error) {
	switch cfg.Cache.Backend {
	case "memory":
		return NewMemoryStore(), func() {}, nil
	case "postgres":
		pg, err := OpenPostgres(ctx, cfg.Cache.PostgresDSN, int32(cfg.Cache.PostgresMaxConns))
		if err != nil {
			return nil, func() {}, err
		}
		return pg, pg.Close, nil
	case "sqlite", "":
		if catalog == nil {
			return nil, func() {}, fmt.Errorf("sqlite cache backend requires the catalog store")
		}
		return NewSQLiteStore(catalog), func() {}, nil
	default:
		return nil, func() {}, fmt.Errorf("unsupported cache backend %q", cfg.Cache.Backend)
	}
}
