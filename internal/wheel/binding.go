package wheel

import (
	"fmt"

	"github.com/EllipseGrip/extension/pkg/core"
)

// Binding records which capabilities the host's wheel type provides. It is
// resolved once from a sample component; every later wheel of the same type
// is read through it.
type Binding struct {
	TypeName string

	HasSurfaceNormal bool
	HasTransform     bool
	HasScale         bool
	HasEffects       bool
}

// Bind checks the required capabilities on sample and detects the optional ones.
func Bind(sample core.Component) (*Binding, error) {
	if _, ok := sample.(core.SlipSource); !ok {
		return nil, fmt.Errorf("%s: slip: %w", sample.TypeName(), ErrMissingCapability)
	}
	if _, ok := sample.(core.FrictionSource); !ok {
		return nil, fmt.Errorf("%s: friction curves: %w", sample.TypeName(), ErrMissingCapability)
	}
	if _, ok := sample.(core.RadiusSource); !ok {
		return nil, fmt.Errorf("%s: radius: %w", sample.TypeName(), ErrMissingCapability)
	}

	b := &Binding{TypeName: sample.TypeName()}
	_, b.HasSurfaceNormal = sample.(core.SurfaceNormalSource)
	_, b.HasTransform = sample.(core.Transform)
	_, b.HasScale = sample.(core.ScaleHierarchy)
	_, b.HasEffects = sample.(core.EffectsAncestry)
	return b, nil
}

// Slip returns the live forward and sideways slip of c.
func (b *Binding) Slip(c core.Component) (forward, sideways float64) {
	s := c.(core.SlipSource)
	return s.ForwardSlip(), s.SidewaysSlip()
}

// Curves returns the forward and sideways friction curves of c.
func (b *Binding) Curves(c core.Component) (forward, sideways core.FrictionCurveHandle) {
	f := c.(core.FrictionSource)
	return f.ForwardFriction(), f.SidewaysFriction()
}

// Radius returns the physics radius of c.
func (b *Binding) Radius(c core.Component) float64 {
	return c.(core.RadiusSource).WheelRadius()
}

// SurfaceNormal returns the ground normal under c, or world up.
func (b *Binding) SurfaceNormal(c core.Component) core.Vector3 {
	if b.HasSurfaceNormal {
		if s, ok := c.(core.SurfaceNormalSource); ok {
			return s.SurfaceNormal()
		}
	}
	return core.Up
}

// Placement returns the position and up axis of c. ok is false when the
// wheel type exposes no transform.
func (b *Binding) Placement(c core.Component) (pos, up core.Vector3, ok bool) {
	if !b.HasTransform {
		return core.Vector3{}, core.Up, false
	}
	t, ok := c.(core.Transform)
	if !ok {
		return core.Vector3{}, core.Up, false
	}
	return t.Position(), t.Up(), true
}

// Scales returns the part and wheel scales of c.
func (b *Binding) Scales(c core.Component) (part, wheel core.Vector3, ok bool) {
	if !b.HasScale {
		return core.Vector3{}, core.Vector3{}, false
	}
	s, ok := c.(core.ScaleHierarchy)
	if !ok {
		return core.Vector3{}, core.Vector3{}, false
	}
	return s.PartScale(), s.WheelScale(), true
}

// Particles returns the particle emitter above c in the scene, if any.
func (b *Binding) Particles(c core.Component) core.ParticleEmitter {
	if !b.HasEffects {
		return nil
	}
	if e, ok := c.(core.EffectsAncestry); ok {
		return e.ParticleEmitter()
	}
	return nil
}
