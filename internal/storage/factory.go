package storage

import (
	"fmt"
	"log/slog"

	"github.com/EllipseGrip/extension/internal/config"
	"github.com/EllipseGrip/extension/internal/storage/memory"
	"github.com/EllipseGrip/extension/internal/storage/postgres"
	sqlitestorage "github.com/EllipseGrip/extension/internal/storage/sqlite"
	"github.com/EllipseGrip/extension/internal/storage/sqlstore"
)

// Compile-time interface checks
var (
	_ Backend  = (*memory.Backend)(nil)
	_ Backend  = (*sqlstore.Backend)(nil)
	_ Backend  = (*sqlitestorage.Backend)(nil)
	_ Backend  = (*postgres.Backend)(nil)
	_ Exporter = (*memory.Backend)(nil)
	_ Exporter = (*sqlitestorage.Backend)(nil)
)

// Dependencies holds what the backends need besides their config.
type Dependencies struct {
	DB     config.DBConfig
	Logger *slog.Logger
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(postgres.Dependencies{Config: deps.DB, Logger: deps.Logger}), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			OutputDir:    cfg.SQLite.OutputDir,
		}, deps.Logger)
	case "memory", "":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
