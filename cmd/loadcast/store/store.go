// Package store selects the snapshot storage backend of the loadcast command.
package store

import (
	"fmt"
	"log/slog"

	"github.com/HatiCode/loadcast/cmd/loadcast/config"
	"github.com/HatiCode/loadcast/pkg/storage"
)

// Store is a snapshot store that must be closed on shutdown.
type Store interface {
	storage.Store
	Close() error
}

// New creates the configured store. Memory snapshots expire after the
// snapshot TTL like Redis keys do.
func New(cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Storage {
	case "redis":
		s, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SnapshotTTL)
		if err != nil {
			return nil, err
		}
		logger.Info("using redis snapshot store", "addr", cfg.RedisAddr, "db", cfg.RedisDB, "ttl", cfg.SnapshotTTL)
		return s, nil

	case "memory":
		logger.Info("using in-memory snapshot store", "ttl", cfg.SnapshotTTL)
		return storage.NewMemoryStoreWithTTL(cfg.SnapshotTTL, 0), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
