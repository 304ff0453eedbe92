// Package bootstrap turns configuration into the concrete backends the
// server runs with.
package bootstrap

import (
	"fmt"

	"github.com/akhatua2/designx/internal/config"
	"github.com/akhatua2/designx/internal/storage"
	"github.com/akhatua2/designx/internal/store"
)

func NewStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("DESIGNX_POSTGRES_DSN is required when DESIGNX_STORE=postgres")
		}
		return store.NewPostgresStore(cfg.PostgresDSN)
	case "sqlite":
		return store.NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported DESIGNX_STORE value %q", cfg.StoreBackend)
	}
}

func NewObjectStore(cfg config.Config) (storage.ObjectStore, error) {
	switch cfg.StorageBackend {
	case "local":
		return storage.NewLocalStore(cfg.StorageRoot, cfg.BaseURL)
	case "minio":
		return storage.NewMinIOStore(storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
	default:
		return nil, fmt.Errorf("unsupported DESIGNX_STORAGE_BACKEND value %q", cfg.StorageBackend)
	}
}
