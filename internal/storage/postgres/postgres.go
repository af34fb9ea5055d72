// Package postgres implements the storage.Backend interface on PostgreSQL
// through the GORM store.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/EllipseGrip/extension/internal/config"
	"github.com/EllipseGrip/extension/internal/database"
	"github.com/EllipseGrip/extension/internal/storage/sqlstore"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the Postgres backend.
// DB may be nil, in which case Init connects using Config.
type Dependencies struct {
	DB     *gorm.DB
	Config config.DBConfig
	Logger *slog.Logger
}

// Backend is the GORM store on a Postgres connection.
type Backend struct {
	*sqlstore.Backend
	deps Dependencies
}

// New creates a new Postgres backend. No connection is made until Init.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// Init connects if needed, then migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDB(b.deps.Config)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.deps.DB = db
	}
	b.Backend = sqlstore.New(sqlstore.Dependencies{DB: b.deps.DB, Logger: b.deps.Logger})
	return b.Backend.Init()
}

// Close closes the connection if Init opened one.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
