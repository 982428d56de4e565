package storage

import (
	"fmt"

	"github.com/openato/onboard/internal/config"
	gormstorage "github.com/openato/onboard/internal/storage/gorm"
	"github.com/openato/onboard/internal/storage/memory"
	sqlitestorage "github.com/openato/onboard/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return gormstorage.New(gormstorage.Dependencies{
			Config:        cfg.DB,
			Log:           log,
			BatchSize:     cfg.BatchSize,
			FlushInterval: cfg.Flush,
		}), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpPath:      cfg.SQLite.Path,
			DumpInterval:  cfg.SQLite.DumpInterval,
			BatchSize:     cfg.BatchSize,
			FlushInterval: cfg.Flush,
		}, log)
	case "memory":
		return memory.New(cfg.Memory), nil
	case "none", "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
