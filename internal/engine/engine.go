// Package engine runs the per-tick grip adjustment over every registered
// wheel and drives the rate-limited visual effects.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/EllipseGrip/extension/internal/grip"
	"github.com/EllipseGrip/extension/internal/settings"
	"github.com/EllipseGrip/extension/internal/wheel"
	"github.com/EllipseGrip/extension/pkg/core"
	"go.opentelemetry.io/otel/metric"
)

// SettingsSource supplies the live settings once per tick.
type SettingsSource interface {
	Snapshot() settings.Settings
}

// Observer receives per-wheel results after they were written to the curves.
type Observer interface {
	GripComputed(d *wheel.Descriptor, r grip.Result, simTime time.Duration)
	SkidmarkAppended(d *wheel.Descriptor, pos core.Vector3, opacity float64, index int, simTime time.Duration)
	SkidmarkEnded(d *wheel.Descriptor, simTime time.Duration)
}

// Config holds the engine tunables.
type Config struct {
	RefreshPeriod       time.Duration
	ParticlePeriod      time.Duration
	SkidmarkPeriod      time.Duration
	SkidmarkMaxOverload float64
	SkidmarkMaxOpacity  float64
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		RefreshPeriod:       10 * time.Second,
		ParticlePeriod:      20 * time.Millisecond,
		SkidmarkPeriod:      20 * time.Millisecond,
		SkidmarkMaxOverload: 0.33,
		SkidmarkMaxOpacity:  1,
	}
}

// Dependencies holds the collaborators of an Engine.
type Dependencies struct {
	World    core.World
	Registry *wheel.Registry
	Settings SettingsSource
	Logger   *slog.Logger
	// Display shows the debug overlay. When nil the world is used if it
	// implements core.StatusDisplay.
	Display core.StatusDisplay
}

// StepStats describes what one Step did.
type StepStats struct {
	Refreshed bool
	Wheels    int
	Particles int
	Segments  int
	Skipped   int
}

// Engine owns the three countdowns and nothing else; all per-wheel state
// lives in the registry's descriptors.
type Engine struct {
	cfg  Config
	deps Dependencies

	refresh   *Countdown
	particles *Countdown
	skidmarks *Countdown

	simTime   time.Duration
	observers []Observer
	debug     strings.Builder

	wheelCount atomic.Int64
	simNanos   atomic.Int64

	ticks        metric.Int64Counter
	refreshes    metric.Int64Counter
	emitted      metric.Int64Counter
	segments     metric.Int64Counter
	staleWheels  metric.Int64Counter
	wheelGauge   metric.Int64ObservableGauge
	overloadHist metric.Float64Histogram
}

// New creates an Engine. Instruments come from the global OTel meter.
func New(cfg Config, deps Dependencies) (*Engine, error) {
	if deps.World == nil || deps.Registry == nil || deps.Settings == nil {
		return nil, errors.New("engine: world, registry and settings are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Display == nil {
		if d, ok := deps.World.(core.StatusDisplay); ok {
			deps.Display = d
		}
	}

	e := &Engine{
		cfg:       cfg,
		deps:      deps,
		refresh:   NewCountdown(cfg.RefreshPeriod),
		particles: NewCountdown(cfg.ParticlePeriod),
		skidmarks: NewCountdown(cfg.SkidmarkPeriod),
	}
	if err := e.initMetrics(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) initMetrics() error {
	m := meter()
	var err error

	if e.ticks, err = m.Int64Counter("engine.ticks",
		metric.WithDescription("Fixed ticks processed")); err != nil {
		return fmt.Errorf("creating ticks counter: %w", err)
	}
	if e.refreshes, err = m.Int64Counter("engine.refreshes",
		metric.WithDescription("Wheel registry refresh passes")); err != nil {
		return fmt.Errorf("creating refresh counter: %w", err)
	}
	if e.emitted, err = m.Int64Counter("engine.particles.emitted",
		metric.WithDescription("Tire smoke particles emitted")); err != nil {
		return fmt.Errorf("creating particle counter: %w", err)
	}
	if e.segments, err = m.Int64Counter("engine.skidmarks.appended",
		metric.WithDescription("Skid mark segments appended")); err != nil {
		return fmt.Errorf("creating skidmark counter: %w", err)
	}
	if e.staleWheels, err = m.Int64Counter("engine.wheels.stale",
		metric.WithDescription("Wheels found destroyed mid-tick")); err != nil {
		return fmt.Errorf("creating stale counter: %w", err)
	}
	if e.overloadHist, err = m.Float64Histogram("engine.overload",
		metric.WithDescription("Overload factor of wheels that lost grip")); err != nil {
		return fmt.Errorf("creating overload histogram: %w", err)
	}
	if e.wheelGauge, err = m.Int64ObservableGauge("engine.wheels",
		metric.WithDescription("Registered wheels")); err != nil {
		return fmt.Errorf("creating wheel gauge: %w", err)
	}
	if _, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(e.wheelGauge, e.wheelCount.Load())
		return nil
	}, e.wheelGauge); err != nil {
		return fmt.Errorf("registering wheel callback: %w", err)
	}
	return nil
}

// AddObserver subscribes o to per-wheel results.
func (e *Engine) AddObserver(o Observer) {
	if o != nil {
		e.observers = append(e.observers, o)
	}
}

// SimTime returns the accumulated simulation time. Safe to call from any
// goroutine.
func (e *Engine) SimTime() time.Duration {
	return time.Duration(e.simNanos.Load())
}

// WheelCount returns the number of wheels seen at the end of the last tick.
// Safe to call from any goroutine.
func (e *Engine) WheelCount() int {
	return int(e.wheelCount.Load())
}

// RefreshNow makes the next Step run a registry refresh.
func (e *Engine) RefreshNow() {
	e.refresh.Reset()
}

// Step runs one fixed tick of length dt.
func (e *Engine) Step(dt time.Duration) StepStats {
	var stats StepStats
	ctx := context.Background()
	e.simTime += dt
	e.simNanos.Store(int64(e.simTime))
	e.ticks.Add(ctx, 1)

	if e.refresh.Tick(dt, true) {
		stats.Refreshed = true
		e.refreshes.Add(ctx, 1)
		e.runRefresh()
	}

	s := e.deps.Settings.Snapshot()
	emit := e.particles.Tick(dt, s.ParticlesEnabled)
	mark := e.skidmarks.Tick(dt, s.SkidmarksEnabled)
	strength := float64(s.EffectStrength)
	offset := e.deps.World.FloatingOriginOffset()
	b := e.deps.Registry.Binding()

	for _, d := range e.deps.Registry.Descriptors() {
		if d.Stale {
			stats.Skipped++
			continue
		}
		if !d.Handle.IsValid() {
			d.Stale = true
			stats.Skipped++
			e.staleWheels.Add(ctx, 1)
			e.deps.Logger.Debug("Wheel destroyed mid-tick", "wheel", d.String(), "error", wheel.ErrStaleHandle)
			continue
		}
		stats.Wheels++

		fwdSlip, sideSlip := b.Slip(d.Handle)
		r := grip.Compute(d.Ellipse, d.Baseline, fwdSlip, sideSlip, strength)
		grip.Apply(r, d.ForwardCurve, d.SidewaysCurve)
		if r.Overload > 0 {
			e.overloadHist.Record(ctx, r.Overload)
		}

		if emit && r.Overload > 0 && d.Particles != nil {
			e.emitParticle(b, d, r.Overload, s)
			stats.Particles++
		}

		if mark && d.Skidmarks != nil {
			if e.updateSkidmark(b, d, r.Overload, offset) {
				stats.Segments++
			}
		}

		if s.DebugMode {
			e.debug.WriteString(DebugLine(r))
			e.debug.WriteByte('\n')
		}

		for _, o := range e.observers {
			o.GripComputed(d, r, e.simTime)
		}
	}

	if stats.Particles > 0 {
		e.emitted.Add(ctx, int64(stats.Particles))
	}
	if stats.Segments > 0 {
		e.segments.Add(ctx, int64(stats.Segments))
	}
	if s.DebugMode {
		if e.deps.Display != nil {
			e.deps.Display.ShowStatusMessage(e.debug.String())
		}
		e.debug.Reset()
	}

	e.wheelCount.Store(int64(stats.Wheels))
	return stats
}

func (e *Engine) runRefresh() {
	res, err := e.deps.Registry.Refresh(e.deps.World)
	if err != nil {
		if errors.Is(err, wheel.ErrWheelTypeNotFound) {
			e.deps.Logger.Debug("No wheels to bind yet", "error", err)
			return
		}
		e.deps.Logger.Warn("Wheel refresh failed", "error", err)
		return
	}
	if res.Added > 0 || res.Removed > 0 {
		e.deps.Logger.Debug("Wheel registry refreshed",
			"added", res.Added, "removed", res.Removed, "total", e.deps.Registry.Len())
	}
}

func (e *Engine) emitParticle(b *wheel.Binding, d *wheel.Descriptor, overload float64, s settings.Settings) {
	alpha := float32(math.Pow(overload, float64(s.ParticleAlphaPower)))
	pos, _, ok := b.Placement(d.Handle)
	d.Particles.Emit(core.EmitParams{
		Origin:    pos,
		HasOrigin: ok,
		Normal:    b.SurfaceNormal(d.Handle),
		Color:     s.ParticleColor.WithAlpha(alpha),
		Alpha:     alpha,
	})
}

// updateSkidmark extends or ends the wheel's skid mark. It reports whether a
// segment was appended.
func (e *Engine) updateSkidmark(b *wheel.Binding, d *wheel.Descriptor, overload float64, offset core.Vector3) bool {
	if overload <= 0 {
		if d.LastSkidmarkIndex >= 0 {
			for _, o := range e.observers {
				o.SkidmarkEnded(d, e.simTime)
			}
		}
		d.LastSkidmarkIndex = -1
		return false
	}

	pos, up, ok := b.Placement(d.Handle)
	if !ok {
		return false
	}
	contact := pos.Sub(up.Scale(d.Radius)).Add(offset)
	opacity := SkidmarkOpacity(overload, e.cfg.SkidmarkMaxOverload, e.cfg.SkidmarkMaxOpacity)

	d.LastSkidmarkIndex = d.Skidmarks.AppendSegment(contact, b.SurfaceNormal(d.Handle), opacity, d.LastSkidmarkIndex)
	for _, o := range e.observers {
		o.SkidmarkAppended(d, contact, opacity, d.LastSkidmarkIndex, e.simTime)
	}
	return true
}

// SkidmarkOpacity maps overload to mark opacity. Marks reach full opacity at
// maxOverload.
func SkidmarkOpacity(overload, maxOverload, maxOpacity float64) float64 {
	if maxOverload <= 0 {
		if overload > 0 {
			return maxOpacity
		}
		return 0
	}
	return grip.Clamp01(overload/maxOverload) * maxOpacity
}

// DebugLine formats one wheel for the debug overlay:
// "fwdMul, sideMul (fwdSlip, sideSlip)".
func DebugLine(r grip.Result) string {
	return fmt.Sprintf("%.3f, %.3f (%s, %s)",
		r.ForwardMultiplier, r.SidewaysMultiplier, padSlip(r.ForwardSlip), padSlip(r.SidewaysSlip))
}

// padSlip prints v with at least two integer digits.
func padSlip(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-%06.3f", -v)
	}
	return fmt.Sprintf("%06.3f", v)
}
