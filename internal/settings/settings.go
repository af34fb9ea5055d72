// Package settings holds the user-facing toggles of the extension and
// persists them in a small binary file next to the host's save data.
package settings

import (
	"errors"
	"math"

	"github.com/EllipseGrip/extension/pkg/core"
)

var (
	// ErrPersistence is the root of every load or save failure.
	ErrPersistence = errors.New("settings persistence")
	// ErrSettingsNotFound means no settings file exists yet.
	ErrSettingsNotFound = errors.New("settings file not found")
	// ErrUnknownHeader means the file was not written by this extension.
	ErrUnknownHeader = errors.New("unknown settings header")
	// ErrInvalidValue is returned by setters for out-of-range input.
	ErrInvalidValue = errors.New("invalid settings value")
)

// Settings are the runtime toggles. The zero value is not useful; start from
// Defaults.
type Settings struct {
	DebugMode          bool       `json:"debugMode"`
	ParticlesEnabled   bool       `json:"particlesEnabled"`
	ParticleColor      core.Color `json:"particleColor"`
	ParticleAlphaPower float32    `json:"particleAlphaPower"`
	SkidmarksEnabled   bool       `json:"skidmarksEnabled"`
	EffectStrength     float32    `json:"effectStrength"`
}

// Defaults returns the settings used when nothing has been saved.
func Defaults() Settings {
	return Settings{
		DebugMode:          false,
		ParticlesEnabled:   true,
		ParticleColor:      core.White,
		ParticleAlphaPower: 3,
		SkidmarksEnabled:   true,
		EffectStrength:     0.25,
	}
}

func clampStrength(v float32) float32 {
	switch {
	case math.IsNaN(float64(v)) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
