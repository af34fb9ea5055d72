// Package console registers the EllipseGrip_* developer console commands.
package console

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/EllipseGrip/extension/internal/dispatcher"
	"github.com/EllipseGrip/extension/internal/settings"
	"github.com/EllipseGrip/extension/internal/util"
	"github.com/EllipseGrip/extension/pkg/core"
)

// Command names.
const (
	CmdToggleDebugMode          = "EllipseGrip_ToggleDebugMode"
	CmdToggleParticles          = "EllipseGrip_ToggleParticles"
	CmdToggleSkidmarks          = "EllipseGrip_ToggleSkidmarks"
	CmdSetParticleColor         = "EllipseGrip_SetParticleColor"
	CmdSetParticleAlphaExponent = "EllipseGrip_SetParticleAlphaExponent"
	CmdSetStrength              = "EllipseGrip_SetStrength"
	CmdStatus                   = "EllipseGrip_Status"
	CmdSave                     = "EllipseGrip_Save"
)

// Commands lists every command this package registers.
var Commands = []string{
	CmdToggleDebugMode,
	CmdToggleParticles,
	CmdToggleSkidmarks,
	CmdSetParticleColor,
	CmdSetParticleAlphaExponent,
	CmdSetStrength,
	CmdStatus,
	CmdSave,
}

// ErrBadArgs is returned for missing or unparsable command arguments.
var ErrBadArgs = errors.New("bad arguments")

// WheelStatus reports the live wheel count. Implementations must be safe to
// call from the console goroutine.
type WheelStatus interface {
	WheelCount() int
}

// Dependencies holds the collaborators of the console commands.
type Dependencies struct {
	Settings     *settings.Store
	SettingsPath string
	Wheels       WheelStatus
	Logger       *slog.Logger
}

// Status is the reply of EllipseGrip_Status.
type Status struct {
	Wheels   int
	Settings settings.Settings
}

func (s Status) String() string {
	c := s.Settings.ParticleColor
	return fmt.Sprintf("wheels=%d debug=%t particles=%t skidmarks=%t strength=%.3f alphaExponent=%.3f color=RGBA(%.3f, %.3f, %.3f, %.3f)",
		s.Wheels, s.Settings.DebugMode, s.Settings.ParticlesEnabled, s.Settings.SkidmarksEnabled,
		s.Settings.EffectStrength, s.Settings.ParticleAlphaPower, c.R, c.G, c.B, c.A)
}

type handlers struct {
	deps Dependencies
}

// Register adds every command to d.
func Register(d *dispatcher.Dispatcher, deps Dependencies) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &handlers{deps: deps}

	d.Register(CmdToggleDebugMode, h.toggleDebugMode, dispatcher.Logged())
	d.Register(CmdToggleParticles, h.toggleParticles, dispatcher.Logged())
	d.Register(CmdToggleSkidmarks, h.toggleSkidmarks, dispatcher.Logged())
	d.Register(CmdSetParticleColor, h.setParticleColor, dispatcher.Logged())
	d.Register(CmdSetParticleAlphaExponent, h.setParticleAlphaExponent, dispatcher.Logged())
	d.Register(CmdSetStrength, h.setStrength, dispatcher.Logged())
	d.Register(CmdStatus, h.status)
	if deps.SettingsPath != "" {
		// the write runs on the save queue, not on the caller's tick
		d.Register(CmdSave, h.save, dispatcher.Logged(), dispatcher.Buffered(1))
	} else {
		d.Register(CmdSave, h.save, dispatcher.Logged())
	}
}

// Unregister removes every command from d, waiting for a queued save to finish.
func Unregister(d *dispatcher.Dispatcher) {
	for _, cmd := range Commands {
		d.Unregister(cmd)
	}
}

func (h *handlers) toggleDebugMode(dispatcher.Event) (any, error) {
	return h.deps.Settings.ToggleDebugMode(), nil
}

func (h *handlers) toggleParticles(dispatcher.Event) (any, error) {
	return h.deps.Settings.ToggleParticles(), nil
}

func (h *handlers) toggleSkidmarks(dispatcher.Event) (any, error) {
	return h.deps.Settings.ToggleSkidmarks(), nil
}

func (h *handlers) setParticleColor(e dispatcher.Event) (any, error) {
	c, err := ParseColor(e.Args)
	if err != nil {
		return nil, err
	}
	h.deps.Settings.SetParticleColor(c)
	return fmt.Sprintf("RGBA(%.3f, %.3f, %.3f, %.3f)", c.R, c.G, c.B, c.A), nil
}

func (h *handlers) setParticleAlphaExponent(e dispatcher.Event) (any, error) {
	v, err := singleFloat(e.Args)
	if err != nil {
		return nil, err
	}
	if err := h.deps.Settings.SetParticleAlphaPower(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (h *handlers) setStrength(e dispatcher.Event) (any, error) {
	v, err := singleFloat(e.Args)
	if err != nil {
		return nil, err
	}
	return h.deps.Settings.SetEffectStrength(v), nil
}

func (h *handlers) status(dispatcher.Event) (any, error) {
	s := Status{Settings: h.deps.Settings.Snapshot()}
	if h.deps.Wheels != nil {
		s.Wheels = h.deps.Wheels.WheelCount()
	}
	return s, nil
}

func (h *handlers) save(dispatcher.Event) (any, error) {
	if h.deps.SettingsPath == "" {
		return nil, fmt.Errorf("%w: no settings path configured", settings.ErrPersistence)
	}
	if err := settings.Save(h.deps.SettingsPath, h.deps.Settings.Snapshot()); err != nil {
		return nil, err
	}
	h.deps.Logger.Info("Saved settings", "path", h.deps.SettingsPath)
	return h.deps.SettingsPath, nil
}

// ParseColor reads 3 or 4 colour channels. A missing alpha is 1.
func ParseColor(args []string) (core.Color, error) {
	v, err := util.ParseFloats(args)
	if err != nil {
		return core.Color{}, fmt.Errorf("%w: %w", ErrBadArgs, err)
	}
	if len(v) != 3 && len(v) != 4 {
		return core.Color{}, fmt.Errorf("%w: colour needs 3 or 4 channels, got %d", ErrBadArgs, len(v))
	}
	c := core.Color{R: float32(v[0]), G: float32(v[1]), B: float32(v[2]), A: 1}
	if len(v) == 4 {
		c.A = float32(v[3])
	}
	for _, ch := range []float32{c.R, c.G, c.B, c.A} {
		if math.IsNaN(float64(ch)) || math.IsInf(float64(ch), 0) {
			return core.Color{}, fmt.Errorf("%w: colour channel %v", ErrBadArgs, ch)
		}
	}
	return c, nil
}

func singleFloat(args []string) (float32, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected one number, got %d args", ErrBadArgs, len(args))
	}
	v, err := util.ParseFloat32(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadArgs, err)
	}
	return v, nil
}
