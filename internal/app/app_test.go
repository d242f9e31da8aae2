package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aura-media/gallery/config"
	"github.com/aura-media/gallery/internal/catalog"
	"github.com/aura-media/gallery/pkg/storage"
)

func TestNewStorage_Local(t *testing.T) {
	cfg := &config.Config{
		Server:  config.ServerConfig{PublicBaseURL: "http://localhost:3001"},
		Storage: config.StorageConfig{Backend: config.StorageLocal, LocalDir: t.TempDir()},
	}
	adapter, err := NewStorage(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "local", adapter.Name())
	_, ok := adapter.(*storage.Local)
	assert.True(t, ok)
}

func TestNewStorage_Remote(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{Backend: config.StorageRemote},
		Remote:  config.RemoteConfig{BaseURL: "http://files.internal", TimeoutSec: 5},
	}
	adapter, err := NewStorage(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "remote", adapter.Name())
}

func TestNewStorage_Unknown(t *testing.T) {
	_, err := NewStorage(context.Background(), &config.Config{Storage: config.StorageConfig{Backend: "ftp"}}, zap.NewNop())
	require.Error(t, err)
}

func TestNewCatalog_Memory(t *testing.T) {
	store, closeFn, err := NewCatalog(context.Background(),
		&config.Config{Catalog: config.CatalogConfig{Backend: config.BackendMemory}}, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()
	_, ok := store.(*catalog.MemoryStore)
	assert.True(t, ok)
}
