package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/EllipseGrip/extension/internal/recorder"
	"github.com/EllipseGrip/extension/internal/session"
	"github.com/EllipseGrip/extension/pkg/core"
)

// StatusFileName is the snapshot written into Dependencies.Dir
const StatusFileName = "status.json"

// EngineStatus is the part of the engine the monitor reads
type EngineStatus interface {
	WheelCount() int
	SimTime() time.Duration
}

// TelemetryStatus reports recorder counters
type TelemetryStatus interface {
	Stats() recorder.Stats
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Session   *session.Context
	Engine    EngineStatus
	Telemetry TelemetryStatus // optional
	Logger    *slog.Logger
	Dir       string
	Interval  time.Duration
}

// Status is one snapshot of the running program
type Status struct {
	Time      time.Time       `json:"time"`
	Uptime    float64         `json:"uptimeSeconds"`
	Session   *core.Session   `json:"session,omitempty"`
	SimTime   float64         `json:"simTimeSeconds"`
	Wheels    int             `json:"wheels"`
	Telemetry *recorder.Stats `json:"telemetry,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	started   time.Time
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:    deps,
		started: time.Now(),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Path returns the status file location
func (s *Service) Path() string {
	return filepath.Join(s.deps.Dir, StatusFileName)
}

// GetStatus returns the current program status
func (s *Service) GetStatus() Status {
	now := time.Now()
	st := Status{
		Time:   now,
		Uptime: now.Sub(s.started).Seconds(),
	}
	if s.deps.Session != nil && s.deps.Session.Active() {
		sess := s.deps.Session.Get()
		st.Session = &sess
	}
	if s.deps.Engine != nil {
		st.SimTime = s.deps.Engine.SimTime().Seconds()
		st.Wheels = s.deps.Engine.WheelCount()
	}
	if s.deps.Telemetry != nil {
		stats := s.deps.Telemetry.Stats()
		st.Telemetry = &stats
	}
	return st
}

// WriteStatus writes one snapshot, replacing the previous file
func (s *Service) WriteStatus() error {
	data, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return err
	}
	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	return os.Rename(tmp, s.Path())
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	if err := os.MkdirAll(s.deps.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(s.stopChan, s.done)
	return nil
}

func (s *Service) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	logger := s.deps.Logger.With("component", "monitor")
	logger.Debug("Starting status monitor", "path", s.Path())

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.WriteStatus(); err != nil {
				logger.Error("Error writing status file", "error", err)
			}
		}
	}
}

// Stop stops the status monitor and waits for the goroutine to exit
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
