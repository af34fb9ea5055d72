package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/EllipseGrip/extension/internal/config"
	"github.com/EllipseGrip/extension/internal/console"
	"github.com/EllipseGrip/extension/internal/dispatcher"
	"github.com/EllipseGrip/extension/internal/engine"
	"github.com/EllipseGrip/extension/internal/logging"
	"github.com/EllipseGrip/extension/internal/monitor"
	intOtel "github.com/EllipseGrip/extension/internal/otel"
	"github.com/EllipseGrip/extension/internal/session"
	"github.com/EllipseGrip/extension/internal/settings"
	"github.com/EllipseGrip/extension/internal/sim"
	"github.com/EllipseGrip/extension/internal/wheel"
	"github.com/EllipseGrip/extension/pkg/devconsole"

	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const (
	demoWorldName = "Proving Ground"
	driftPeriod   = 8 * time.Second
)

// app owns every service of one run.
type app struct {
	dir    string
	stdin  io.Reader
	stdout io.Writer

	startTime time.Time

	slogManager *logging.SlogManager
	logger      *slog.Logger
	logFile     *os.File
	otel        *intOtel.Provider

	settings     *settings.Store
	settingsPath string

	session   *session.Context
	telemetry *telemetry
	monitor   *monitor.Service

	world      *sim.World
	vehicle    *sim.Vehicle
	registry   *wheel.Registry
	engine     *engine.Engine
	dispatcher *dispatcher.Dispatcher
	bridge     *devconsole.Bridge
	fixedStep  time.Duration
}

func newApp(dir string, stdin io.Reader, stdout io.Writer) *app {
	return &app{
		dir:         dir,
		stdin:       stdin,
		stdout:      stdout,
		startTime:   time.Now(),
		slogManager: logging.NewSlogManager(),
		session:     session.NewContext(),
	}
}

func (a *app) run(ctx context.Context, opts options) error {
	if err := a.setup(ctx); err != nil {
		a.shutdown()
		return err
	}
	defer a.shutdown()

	if opts.Demo {
		return a.runDemo(ctx, opts.Duration)
	}
	return a.runInteractive(ctx)
}

func (a *app) setup(ctx context.Context) error {
	a.logger = a.slogManager.Logger()

	cfgErr := config.Load(a.dir)
	if cfgErr != nil && !errors.Is(cfgErr, config.ErrConfigNotFound) {
		return cfgErr
	}

	if err := a.setupLogging(); err != nil {
		return err
	}
	if cfgErr != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", cfgErr)
	} else {
		a.logger.Info("Loaded config", "dir", a.dir)
	}

	a.loadSettings()

	if err := a.setupSimulation(); err != nil {
		return err
	}

	tel, err := newTelemetry(ctx, a.telemetryDeps())
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	a.telemetry = tel
	if tel != nil {
		a.engine.AddObserver(tel.recorder)
		a.registry.AddObserver(tel.recorder)
	}

	if err := a.setupConsole(); err != nil {
		return err
	}

	a.monitor = monitor.NewService(monitor.Dependencies{
		Session:   a.session,
		Engine:    a.engine,
		Telemetry: a.telemetry.status(),
		Logger:    a.logger,
		Dir:       a.logsDir(),
	})
	if err := a.monitor.Start(); err != nil {
		a.logger.Warn("Failed to start status monitor", "error", err)
	}
	return nil
}

func (a *app) logsDir() string {
	dir := config.GetString("logsDir")
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(a.dir, dir)
	}
	return dir
}

func (a *app) setupLogging() error {
	logFile, err := logging.OpenLogFile(a.logsDir(), ExtensionName, a.startTime)
	if err != nil {
		return err
	}
	a.logFile = logFile

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		a.otel, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: CurrentExtensionVersion,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      logFile,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			a.otel = nil
			fmt.Fprintf(logFile, "Failed to initialize OTel provider: %v\n", err)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if a.otel != nil {
		otelLogProvider = a.otel.LoggerProvider()
	}

	opts := []logging.Option{logging.WithContext(a.logContext)}
	if gl := config.GetGraylogConfig(); gl.Enabled {
		gw, err := logging.NewGraylogWriter(gl.Address)
		if err != nil {
			fmt.Fprintf(logFile, "Failed to connect to Graylog at %s: %v\n", gl.Address, err)
		} else {
			opts = append(opts, logging.WithGELF(gw))
		}
	}

	a.slogManager.Setup(logFile, config.GetString("logLevel"), otelLogProvider, opts...)
	a.logger = a.slogManager.Logger()
	a.logger.Info("Logging to file", "path", logFile.Name(), "version", CurrentExtensionVersion, "build", BuildDate)
	return nil
}

// logContext adds live state to every log record.
func (a *app) logContext() []slog.Attr {
	attrs := make([]slog.Attr, 0, 3)
	if a.engine != nil {
		attrs = append(attrs, slog.Int("wheels", a.engine.WheelCount()))
	}
	if a.settings != nil {
		attrs = append(attrs, slog.Bool("debug", a.settings.Snapshot().DebugMode))
	}
	if id := a.session.ID(); id != "" {
		attrs = append(attrs, slog.String("session", id))
	}
	return attrs
}

func (a *app) loadSettings() {
	a.settingsPath = config.GetSettingsConfig().Path()
	if !filepath.IsAbs(a.settingsPath) {
		a.settingsPath = filepath.Join(a.dir, a.settingsPath)
	}

	s, err := settings.Load(a.settingsPath)
	switch {
	case errors.Is(err, settings.ErrSettingsNotFound):
		a.logger.Info("No saved settings, using defaults", "path", a.settingsPath)
	case err != nil:
		a.logger.Warn("Failed to load settings, using defaults", "path", a.settingsPath, "error", err)
	default:
		a.logger.Info("Loaded settings", "path", a.settingsPath)
	}
	a.settings = settings.NewStore(s)
}

func (a *app) setupSimulation() error {
	wheelCfg := config.GetWheelConfig()
	effects := config.GetEffectsConfig()

	a.fixedStep = config.GetDuration("sim.fixedStep")
	if a.fixedStep <= 0 {
		a.fixedStep = 20 * time.Millisecond
	}

	a.world = sim.NewWorld(demoWorldName)
	a.vehicle = sim.NewVehicle("car", 1, sim.DriftProfile(driftPeriod))
	a.world.Add(a.vehicle.Components()...)

	a.registry = wheel.NewRegistry(wheel.Config{
		TypeName:  wheelCfg.TypeName,
		Skidmarks: sim.NewSkidmarks(),
		Logger:    a.logger,
	})

	e, err := engine.New(engine.Config{
		RefreshPeriod:       wheelCfg.RefreshPeriod,
		ParticlePeriod:      effects.ParticlePeriod,
		SkidmarkPeriod:      effects.SkidmarkPeriod,
		SkidmarkMaxOverload: effects.SkidmarkMaxOverload,
		SkidmarkMaxOpacity:  effects.SkidmarkMaxOpacity,
	}, engine.Dependencies{
		World:    a.world,
		Registry: a.registry,
		Settings: a.settings,
		Logger:   a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	a.engine = e
	return nil
}

func (a *app) telemetryDeps() telemetryDeps {
	return telemetryDeps{
		Config:    config.GetTelemetryConfig(),
		Storage:   config.GetStorageConfig(),
		DB:        config.GetDBConfig(),
		Influx:    config.GetInfluxConfig(),
		WorldName: a.world.Name,
		Version:   CurrentExtensionVersion,
		Session:   a.session,
		Logger:    a.logger,
		LogWriter: a.logFile,
		BackupDir: a.logsDir(),
	}
}

func (a *app) setupConsole() error {
	d, err := dispatcher.New(logging.NewDispatcherLogger(a.logger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	console.Register(d, console.Dependencies{
		Settings:     a.settings,
		SettingsPath: a.settingsPath,
		Wheels:       a.engine,
		Logger:       a.logger,
	})
	a.dispatcher = d
	a.bridge = devconsole.New(d, CurrentExtensionVersion)
	return nil
}

// tick advances the host world and the engine by one fixed step.
func (a *app) tick() engine.StepStats {
	a.vehicle.Advance(a.engine.SimTime(), a.fixedStep)
	stats := a.engine.Step(a.fixedStep)
	if a.telemetry != nil && !a.settings.Snapshot().SkidmarksEnabled {
		a.telemetry.recorder.EndTrails(a.engine.SimTime())
	}
	return stats
}

func (a *app) runDemo(ctx context.Context, d time.Duration) error {
	a.logger.Info("Running demo", "duration", d, "step", a.fixedStep)
	for a.engine.SimTime() < d {
		if err := ctx.Err(); err != nil {
			return nil
		}
		a.tick()
	}
	fmt.Fprintln(a.stdout, a.bridge.Execute(console.CmdStatus))
	return nil
}

func (a *app) runInteractive(ctx context.Context) error {
	a.logger.Info("Running", "step", a.fixedStep)
	fmt.Fprintln(a.stdout, a.bridge.Execute(console.CmdStatus))

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := devconsole.ReadLines(readCtx, a.stdin)

	ticker := time.NewTicker(a.fixedStep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			// commands run between ticks on the tick goroutine
			if reply := a.bridge.Execute(line); reply != "" {
				fmt.Fprintln(a.stdout, reply)
			}
		case <-ticker.C:
			a.tick()
		}
	}
}

func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.dispatcher != nil {
		console.Unregister(a.dispatcher)
	}
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.settings != nil {
		if err := settings.Save(a.settingsPath, a.settings.Snapshot()); err != nil {
			a.logger.Error("Failed to save settings", "error", err)
		} else {
			a.logger.Info("Saved settings", "path", a.settingsPath)
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.close(ctx); err != nil {
			a.logger.Error("Failed to close telemetry", "error", err)
		}
	}

	if err := a.slogManager.Flush(ctx); err != nil {
		a.logger.Warn("Failed to flush logs", "error", err)
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			a.logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}
