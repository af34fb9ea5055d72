// Package storage defines the telemetry storage backend and picks an
// implementation from configuration.
package storage

import (
	"time"

	"github.com/EllipseGrip/extension/pkg/core"
)

// Backend is the interface all storage implementations must satisfy.
// Calls other than Init, Close and StartSession return core.ErrNoSession
// outside a session.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession(end time.Time) error

	// Wheels
	RecordWheel(w *core.WheelRecord) error
	RemoveWheel(instanceID int64, at time.Time) error

	// Telemetry
	RecordSamples(samples []core.GripSample) error
	RecordSkidTrail(t *core.SkidTrail) error
}

// Exporter is an optional interface for backends that write a file per
// session.
type Exporter interface {
	ExportedFilePath() string
}
