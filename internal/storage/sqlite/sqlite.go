// Package sqlitestorage implements the storage.Backend interface using an
// in-memory SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM store; the SQLite-specific concerns are creating the
// in-memory DB and dumping it to disk.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/EllipseGrip/extension/internal/database"
	"github.com/EllipseGrip/extension/internal/storage/sqlstore"
	"github.com/EllipseGrip/extension/pkg/core"

	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	OutputDir    string // directory for per-session dump files
}

// Backend wraps the GORM store for SQLite-specific behavior.
type Backend struct {
	*sqlstore.Backend
	db  *gorm.DB
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	dumpPath string
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new SQLite storage backend.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := database.GetSqliteDB("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend: sqlstore.New(sqlstore.Dependencies{DB: db, Logger: logger}),
		db:      db,
		cfg:     cfg,
		log:     logger.With("component", "sqlite"),
	}, nil
}

// DumpPath returns the dump file of the current or last session.
func (b *Backend) DumpPath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dumpPath
}

// ExportedFilePath implements storage.Exporter.
func (b *Backend) ExportedFilePath() string {
	return b.DumpPath()
}

// StartSession starts the session in the store and the dump goroutine.
func (b *Backend) StartSession(s *core.Session) error {
	if err := b.Backend.StartSession(s); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cfg.OutputDir == "" {
		return nil
	}
	b.dumpPath = filepath.Join(b.cfg.OutputDir, fmt.Sprintf("%s_%s.db", s.StartTime.Format("20060102_150405"), s.ID))
	if b.cfg.DumpInterval > 0 && b.stopChan == nil {
		b.stopChan = make(chan struct{})
		b.done = make(chan struct{})
		go b.dumpLoop(b.stopChan, b.done)
	}
	return nil
}

// EndSession closes the session and writes a final dump.
func (b *Backend) EndSession(end time.Time) error {
	if err := b.Backend.EndSession(end); err != nil {
		return err
	}
	b.stopDumpLoop()
	return b.Dump()
}

// Dump writes the database to the session's dump file. A no-op without an output dir.
func (b *Backend) Dump() error {
	path := b.DumpPath()
	if path == "" {
		return nil
	}
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, path); err != nil {
		return err
	}
	b.log.Debug("Dumped to disk", "path", path, "duration", time.Since(start))
	return nil
}

// Close stops the dump goroutine and closes the store.
func (b *Backend) Close() error {
	b.stopDumpLoop()
	return b.Backend.Close()
}

func (b *Backend) stopDumpLoop() {
	b.mu.Lock()
	stop, done := b.stopChan, b.done
	b.stopChan, b.done = nil, nil
	b.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
