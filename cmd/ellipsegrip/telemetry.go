package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/EllipseGrip/extension/internal/config"
	"github.com/EllipseGrip/extension/internal/influx"
	"github.com/EllipseGrip/extension/internal/monitor"
	"github.com/EllipseGrip/extension/internal/recorder"
	"github.com/EllipseGrip/extension/internal/session"
	"github.com/EllipseGrip/extension/internal/storage"
	"github.com/rs/zerolog"
)

const influxConnectTimeout = 5 * time.Second

type telemetryDeps struct {
	Config    config.TelemetryConfig
	Storage   config.StorageConfig
	DB        config.DBConfig
	Influx    config.InfluxConfig
	WorldName string
	Version   string
	Session   *session.Context
	Logger    *slog.Logger
	LogWriter io.Writer
	BackupDir string
}

// telemetry bundles the recorder with the sinks it writes to.
type telemetry struct {
	backend  storage.Backend
	influx   *influx.Manager
	recorder *recorder.Recorder
	logger   *slog.Logger
}

// newTelemetry returns nil when telemetry is disabled.
func newTelemetry(ctx context.Context, deps telemetryDeps) (*telemetry, error) {
	if !deps.Config.Enabled {
		deps.Logger.Info("Telemetry disabled")
		return nil, nil
	}

	backend, err := storage.NewBackend(deps.Storage, storage.Dependencies{
		DB:     deps.DB,
		Logger: deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", deps.Storage.Type, err)
	}
	deps.Logger.Info("Storage backend initialized", "type", deps.Storage.Type)

	t := &telemetry{backend: backend, logger: deps.Logger}

	recDeps := recorder.Dependencies{
		Backend: backend,
		Session: deps.Session,
		Logger:  deps.Logger,
	}
	if deps.Influx.Enabled {
		t.influx = connectInflux(ctx, deps)
		if t.influx != nil {
			recDeps.Points = t.influx
		}
	}

	rec, err := recorder.New(recorder.Config{
		SamplePeriod:  deps.Config.SamplePeriod,
		FlushInterval: deps.Config.FlushInterval,
		QueueCapacity: recorder.DefaultConfig().QueueCapacity,
		WorldName:     deps.WorldName,
		Version:       deps.Version,
	}, recDeps)
	if err != nil {
		backend.Close()
		return nil, err
	}
	if err := rec.Start(ctx); err != nil {
		backend.Close()
		return nil, err
	}
	t.recorder = rec
	return t, nil
}

// connectInflux returns nil when neither the server nor a backup file is usable.
func connectInflux(ctx context.Context, deps telemetryDeps) *influx.Manager {
	zl := zerolog.New(deps.LogWriter).With().Timestamp().Logger()
	backupPath := filepath.Join(deps.BackupDir, fmt.Sprintf("influx_%s.lp.gz", time.Now().Format("20060102_150405")))
	m := influx.NewManager(deps.Influx, zl, backupPath)

	cctx, cancel := context.WithTimeout(ctx, influxConnectTimeout)
	defer cancel()
	if err := m.Connect(cctx); err != nil {
		deps.Logger.Error("Failed to connect to InfluxDB", "url", deps.Influx.URL(), "error", err)
		return nil
	}
	if m.Connected() {
		deps.Logger.Info("Connected to InfluxDB", "url", deps.Influx.URL())
	} else {
		deps.Logger.Warn("InfluxDB unreachable, writing points to backup file", "path", backupPath)
	}
	return m
}

func (t *telemetry) status() monitor.TelemetryStatus {
	if t == nil {
		return nil
	}
	return t.recorder
}

func (t *telemetry) close(ctx context.Context) error {
	var errs []error
	if err := t.recorder.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if exp, ok := t.backend.(storage.Exporter); ok {
		if path := exp.ExportedFilePath(); path != "" {
			t.logger.Info("Session exported", "path", path)
		}
	}
	if err := t.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	if t.influx != nil {
		if err := t.influx.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
