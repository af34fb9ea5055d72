package settings

import (
	"fmt"
	"math"
	"sync"

	"github.com/EllipseGrip/extension/pkg/core"
)

// Store guards the live settings. Console commands write through it while
// the tick loop reads snapshots.
type Store struct {
	mu sync.RWMutex
	s  Settings
}

// NewStore creates a store holding s.
func NewStore(s Settings) *Store {
	return &Store{s: s}
}

// Snapshot returns a copy of the current settings.
func (st *Store) Snapshot() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}

// Replace swaps in s wholesale.
func (st *Store) Replace(s Settings) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s.EffectStrength = clampStrength(s.EffectStrength)
	st.s = s
}

// ToggleDebugMode flips debug mode and returns the new value.
func (st *Store) ToggleDebugMode() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.DebugMode = !st.s.DebugMode
	return st.s.DebugMode
}

// ToggleParticles flips tire smoke and returns the new value.
func (st *Store) ToggleParticles() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.ParticlesEnabled = !st.s.ParticlesEnabled
	return st.s.ParticlesEnabled
}

// ToggleSkidmarks flips skid marks and returns the new value.
func (st *Store) ToggleSkidmarks() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.SkidmarksEnabled = !st.s.SkidmarksEnabled
	return st.s.SkidmarksEnabled
}

// SetParticleColor sets the tire smoke colour.
func (st *Store) SetParticleColor(c core.Color) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.ParticleColor = c
}

// SetParticleAlphaPower sets the exponent applied to overload for smoke alpha.
func (st *Store) SetParticleAlphaPower(p float32) error {
	if math.IsNaN(float64(p)) || math.IsInf(float64(p), 0) || p < 0 {
		return fmt.Errorf("alpha exponent %v: %w", p, ErrInvalidValue)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.ParticleAlphaPower = p
	return nil
}

// SetEffectStrength sets the grip-loss strength, clamped to [0,1], and
// returns the stored value.
func (st *Store) SetEffectStrength(v float32) float32 {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.EffectStrength = clampStrength(v)
	return st.s.EffectStrength
}
