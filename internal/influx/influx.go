// Package influx writes grip telemetry to InfluxDB, falling back to a
// gzipped line-protocol backup file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/EllipseGrip/extension/internal/config"
	"github.com/EllipseGrip/extension/internal/geo"
	"github.com/EllipseGrip/extension/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// Measurement names
const (
	MeasurementGripSample = "grip_sample"
	MeasurementSkidTrail  = "skid_trail"
)

// ErrDisabled is returned by Connect when influx.enabled is false
var ErrDisabled = errors.New("influx is disabled")

// ErrNotConnected is returned by writes before Connect succeeded
var ErrNotConnected = errors.New("influxDB client not initialized and backup writer not available")

const retentionSeconds = 60 * 60 * 24 * 90 // 90 days

// Manager handles the InfluxDB connection and writes.
type Manager struct {
	cfg        config.InfluxConfig
	backupPath string
	logger     zerolog.Logger

	mu         sync.Mutex
	client     influxdb2.Client
	writer     influxdb2_api.WriteAPI
	backupFile *os.File
	backup     *gzip.Writer
	valid      bool
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		cfg:        cfg,
		backupPath: backupPath,
		logger:     log.With().Str("component", "influx").Logger(),
	}
}

// Connect establishes a connection to InfluxDB. When the server does not
// answer, points go to the backup file instead and Connect still succeeds.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.client = influxdb2.NewClientWithOptions(
		m.cfg.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.valid = false
		m.logger.Warn().Err(err).Str("backupPath", m.backupPath).
			Msg("InfluxDB client failed to initialize, using backup writer")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.valid = true
	m.logger.Info().Str("url", m.cfg.URL()).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.backup != nil {
		return nil
	}
	if m.backupPath == "" {
		return fmt.Errorf("influx unreachable and no backup path set")
	}
	file, err := os.OpenFile(m.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.backup = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()

	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			m.logger.Error().Err(err).Str("org", m.cfg.Org).Msg("Error creating organization")
			return err
		}
	}

	if _, err = m.client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			m.logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

func (m *Manager) createWriter() {
	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)

	errorsCh := m.writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			m.logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
	m.logger.Debug().Str("bucket", m.cfg.Bucket).Msg("InfluxDB writer created")
}

// Connected reports whether points go to the server rather than the backup file.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.WritePoint(point)
		return nil
	}
	if m.backup == nil {
		return ErrNotConnected
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.backup.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// WriteSamples writes one point per sample.
func (m *Manager) WriteSamples(wheelNames map[int64]string, samples []core.GripSample) error {
	var errs []error
	for _, s := range samples {
		if err := m.WritePoint(GripPoint(wheelNames[s.InstanceID], s)); err != nil {
			errs = append(errs, err)
			break
		}
	}
	return errors.Join(errs...)
}

// WriteTrail writes a closed skid trail.
func (m *Manager) WriteTrail(wheelName string, t core.SkidTrail) error {
	return m.WritePoint(TrailPoint(wheelName, t, time.Now()))
}

// Flush pushes buffered points out.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.Flush()
		return nil
	}
	if m.backup != nil {
		return m.backup.Flush()
	}
	return nil
}

// Close flushes and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	if m.backup != nil {
		errs = append(errs, m.backup.Close())
		errs = append(errs, m.backupFile.Close())
		m.backup, m.backupFile = nil, nil
	}
	m.valid = false
	return errors.Join(errs...)
}

// GripPoint converts a sample to a grip_sample point.
func GripPoint(wheelName string, s core.GripSample) *influxdb2_write.Point {
	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2_write.NewPoint(
		MeasurementGripSample,
		map[string]string{
			"session":  s.SessionID,
			"wheel":    wheelName,
			"wheel_id": strconv.FormatInt(s.InstanceID, 10),
		},
		map[string]interface{}{
			"sim_time":            s.SimTime,
			"forward_slip":        s.ForwardSlip,
			"sideways_slip":       s.SidewaysSlip,
			"overload":            s.Overload,
			"forward_multiplier":  s.ForwardMultiplier,
			"sideways_multiplier": s.SidewaysMultiplier,
		},
		ts,
	)
}

// TrailPoint converts a closed skid trail to a skid_trail point.
func TrailPoint(wheelName string, t core.SkidTrail, at time.Time) *influxdb2_write.Point {
	var peak float64
	for _, p := range t.Points {
		if p.Opacity > peak {
			peak = p.Opacity
		}
	}
	return influxdb2_write.NewPoint(
		MeasurementSkidTrail,
		map[string]string{
			"session":  t.SessionID,
			"wheel":    wheelName,
			"wheel_id": strconv.FormatInt(t.InstanceID, 10),
		},
		map[string]interface{}{
			"started_at":   t.StartedAt,
			"duration":     t.EndedAt - t.StartedAt,
			"points":       len(t.Points),
			"length":       geo.TrailLength(t.Points),
			"peak_opacity": peak,
		},
		at,
	)
}
