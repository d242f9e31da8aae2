package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aura-media/gallery/config"
	"github.com/aura-media/gallery/internal/catalog"
	"github.com/aura-media/gallery/pkg/database"
)

// NewCatalog returns the store named by CATALOG_BACKEND and a function releasing its resources.
func NewCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger) (catalog.Store, func(), error) {
	switch cfg.Catalog.Backend {
	case config.BackendMemory:
		logger.Info("catalog: in-memory, records are lost on restart")
		return catalog.NewMemoryStore(), func() {}, nil
	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Catalog.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return catalog.NewPostgresStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown catalog backend %q", cfg.Catalog.Backend)
	}
}
