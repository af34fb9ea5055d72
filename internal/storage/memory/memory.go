// Package memory keeps a session's telemetry in memory and exports it as
// JSON when the session ends.
package memory

import (
	"sync"
	"time"

	"github.com/EllipseGrip/extension/internal/config"
	"github.com/EllipseGrip/extension/pkg/core"
)

// WheelData groups a wheel with all its time-series data
type WheelData struct {
	Record  core.WheelRecord
	Samples []core.GripSample
	Trails  []core.SkidTrail
}

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session
	active  bool

	wheels map[int64]*WheelData // keyed by instance id
	order  []int64              // discovery order

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:    cfg,
		wheels: make(map[int64]*WheelData),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	copied := *s
	b.session = &copied
	b.active = true

	b.wheels = make(map[int64]*WheelData)
	b.order = nil
	b.lastExportPath = ""

	return nil
}

// EndSession finalizes and exports the session data. Nothing is written
// when no output directory is configured.
func (b *Backend) EndSession(end time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active {
		return core.ErrNoSession
	}
	b.active = false
	b.session.EndTime = end

	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON()
}

// wheel returns the entry for id, creating it for samples that arrive
// before the wheel itself. Caller holds the lock.
func (b *Backend) wheel(id int64) *WheelData {
	w, ok := b.wheels[id]
	if !ok {
		w = &WheelData{Record: core.WheelRecord{SessionID: b.session.ID, InstanceID: id}}
		b.wheels[id] = w
		b.order = append(b.order, id)
	}
	return w
}

// RecordWheel registers a discovered wheel, replacing an earlier record for the same instance
func (b *Backend) RecordWheel(rec *core.WheelRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.active {
		return core.ErrNoSession
	}

	rec.SessionID = b.session.ID
	b.wheel(rec.InstanceID).Record = *rec
	return nil
}

// RemoveWheel stamps the removal time; unknown wheels are ignored
func (b *Backend) RemoveWheel(instanceID int64, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.active {
		return core.ErrNoSession
	}

	if w, ok := b.wheels[instanceID]; ok {
		w.Record.RemovedAt = at
	}
	return nil
}

// RecordSamples appends samples to their wheels
func (b *Backend) RecordSamples(samples []core.GripSample) error {
	if len(samples) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.active {
		return core.ErrNoSession
	}

	for _, s := range samples {
		s.SessionID = b.session.ID
		w := b.wheel(s.InstanceID)
		w.Samples = append(w.Samples, s)
	}
	return nil
}

// RecordSkidTrail appends a closed trail to its wheel
func (b *Backend) RecordSkidTrail(t *core.SkidTrail) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.active {
		return core.ErrNoSession
	}

	t.SessionID = b.session.ID
	w := b.wheel(t.InstanceID)
	w.Trails = append(w.Trails, *t)
	return nil
}

// GetWheel returns a copy of a wheel's data
func (b *Backend) GetWheel(instanceID int64) (WheelData, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	w, ok := b.wheels[instanceID]
	if !ok {
		return WheelData{}, false
	}
	out := WheelData{
		Record:  w.Record,
		Samples: append([]core.GripSample(nil), w.Samples...),
		Trails:  append([]core.SkidTrail(nil), w.Trails...),
	}
	return out, true
}

// WheelIDs returns the instance ids in discovery order
func (b *Backend) WheelIDs() []int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]int64(nil), b.order...)
}

// ExportedFilePath implements storage.Exporter.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
