// Package sqlstore implements the telemetry storage backend on GORM. The
// sqlite and postgres backends wrap it and only differ in how the
// connection is opened and kept.
package sqlstore

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/EllipseGrip/extension/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const sampleBatchSize = 500

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend writes sessions, wheels, samples and skid trails through GORM.
type Backend struct {
	db        *gorm.DB
	log       *slog.Logger
	mu        sync.RWMutex
	sessionID string
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		db:  deps.DB,
		log: log.With("component", "sqlstore"),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Init runs schema migration.
func (b *Backend) Init() error {
	if b.db == nil {
		return fmt.Errorf("sqlstore: no database connection")
	}
	b.log.Info("Migrating schema", "dialect", b.db.Name())
	if err := b.db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	b.log.Info("Database setup complete")
	return nil
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

// SessionID returns the active session, or "" between sessions.
func (b *Backend) SessionID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sessionID
}

func (b *Backend) activeSession() (string, error) {
	id := b.SessionID()
	if id == "" {
		return "", core.ErrNoSession
	}
	return id, nil
}

// StartSession inserts the session row and makes it the active session.
func (b *Backend) StartSession(s *core.Session) error {
	row := Session{
		ID:               s.ID,
		WorldName:        s.WorldName,
		ExtensionVersion: s.ExtensionVersion,
		StartTime:        s.StartTime,
	}
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	b.mu.Lock()
	b.sessionID = s.ID
	b.mu.Unlock()
	return nil
}

// EndSession stamps the end time on the active session.
func (b *Backend) EndSession(end time.Time) error {
	id, err := b.activeSession()
	if err != nil {
		return err
	}
	if err := b.db.Model(&Session{}).Where("id = ?", id).Update("end_time", end).Error; err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	b.mu.Lock()
	b.sessionID = ""
	b.mu.Unlock()
	return nil
}

// RecordWheel upserts a wheel keyed by session and instance id.
func (b *Backend) RecordWheel(w *core.WheelRecord) error {
	id, err := b.activeSession()
	if err != nil {
		return err
	}
	w.SessionID = id

	row, err := CoreToWheel(*w)
	if err != nil {
		return err
	}
	err = b.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}, {Name: "instance_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "forward_extremum_slip", "forward_asymptote_slip",
			"sideways_extremum_slip", "sideways_asymptote_slip",
			"baseline", "radius", "thickness", "discovered_at", "removed_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to record wheel %d: %w", w.InstanceID, err)
	}
	return nil
}

// RemoveWheel stamps the removal time on a wheel of the active session.
func (b *Backend) RemoveWheel(instanceID int64, at time.Time) error {
	id, err := b.activeSession()
	if err != nil {
		return err
	}
	err = b.db.Model(&Wheel{}).
		Where("session_id = ? AND instance_id = ?", id, instanceID).
		Update("removed_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to remove wheel %d: %w", instanceID, err)
	}
	return nil
}

// RecordSamples inserts a batch of samples in one transaction.
func (b *Backend) RecordSamples(samples []core.GripSample) error {
	if len(samples) == 0 {
		return nil
	}
	id, err := b.activeSession()
	if err != nil {
		return err
	}

	rows := make([]GripSample, len(samples))
	for i, s := range samples {
		rows[i] = CoreToGripSample(s)
		rows[i].SessionID = id
	}

	return b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&rows, sampleBatchSize).Error; err != nil {
			return fmt.Errorf("failed to record %d samples: %w", len(rows), err)
		}
		return nil
	})
}

// RecordSkidTrail inserts a closed trail.
func (b *Backend) RecordSkidTrail(t *core.SkidTrail) error {
	id, err := b.activeSession()
	if err != nil {
		return err
	}
	t.SessionID = id

	row, err := CoreToSkidTrail(*t)
	if err != nil {
		return fmt.Errorf("skid trail for wheel %d: %w", t.InstanceID, err)
	}
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record skid trail: %w", err)
	}
	return nil
}

// Wheels returns the wheels of a session in discovery order.
func (b *Backend) Wheels(sessionID string) ([]core.WheelRecord, error) {
	var rows []Wheel
	if err := b.db.Where("session_id = ?", sessionID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.WheelRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := WheelToCore(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// SampleCount returns how many samples a session holds for a wheel, or for
// all wheels when instanceID is negative.
func (b *Backend) SampleCount(sessionID string, instanceID int64) (int64, error) {
	q := b.db.Model(&GripSample{}).Where("session_id = ?", sessionID)
	if instanceID >= 0 {
		q = q.Where("instance_id = ?", instanceID)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// SkidTrails returns the trails of a session in insertion order.
func (b *Backend) SkidTrails(sessionID string) ([]core.SkidTrail, error) {
	var rows []SkidTrail
	if err := b.db.Where("session_id = ?", sessionID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.SkidTrail, 0, len(rows))
	for _, r := range rows {
		t, err := SkidTrailToCore(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
