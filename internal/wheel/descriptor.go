package wheel

import (
	"fmt"
	"time"

	"github.com/EllipseGrip/extension/internal/grip"
	"github.com/EllipseGrip/extension/pkg/core"
)

// UnscaledWheelThickness is the width of a unit-scale wheel model.
const UnscaledWheelThickness = 0.2

// Descriptor is everything the engine needs about one wheel. Ellipse and
// Baseline are captured once at discovery and never written afterwards.
type Descriptor struct {
	Handle        core.Component
	ForwardCurve  core.FrictionCurveHandle
	SidewaysCurve core.FrictionCurveHandle

	Ellipse  grip.Ellipse
	Baseline grip.Baseline

	Particles core.ParticleEmitter
	Skidmarks core.SkidmarkTrail

	Radius    float64
	Thickness float64

	// LastSkidmarkIndex is -1 while no mark is being drawn.
	LastSkidmarkIndex int

	// Stale is set when the handle was found invalid during a tick; the
	// descriptor is dropped at the next refresh.
	Stale bool

	DiscoveredAt time.Time
}

// ID returns the instance id of the wheel handle.
func (d *Descriptor) ID() int64 {
	return d.Handle.InstanceID()
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s#%d (%g, %g, %g, %g)",
		d.Handle.Name(), d.Handle.InstanceID(),
		d.Ellipse.ForwardAsymptoteSlip, d.Ellipse.ForwardExtremumSlip,
		d.Ellipse.SidewaysAsymptoteSlip, d.Ellipse.SidewaysExtremumSlip,
	)
}

// Record converts d to its telemetry form.
func (d *Descriptor) Record(sessionID string) core.WheelRecord {
	return core.WheelRecord{
		SessionID:    sessionID,
		InstanceID:   d.ID(),
		Name:         d.Handle.Name(),
		Ellipse:      d.Ellipse,
		Baseline:     d.Baseline,
		Radius:       d.Radius,
		Thickness:    d.Thickness,
		DiscoveredAt: d.DiscoveredAt,
	}
}

// newDescriptor captures c's current curves as its permanent baseline.
func newDescriptor(b *Binding, c core.Component, now time.Time) (*Descriptor, error) {
	fwd, side := b.Curves(c)
	if fwd == nil || side == nil {
		return nil, fmt.Errorf("%s#%d: nil friction curve: %w", c.Name(), c.InstanceID(), ErrInvalidCurve)
	}

	d := &Descriptor{
		Handle:        c,
		ForwardCurve:  fwd,
		SidewaysCurve: side,
		Ellipse: grip.Ellipse{
			ForwardExtremumSlip:   fwd.ExtremumSlip(),
			SidewaysExtremumSlip:  side.ExtremumSlip(),
			ForwardAsymptoteSlip:  fwd.AsymptoteSlip(),
			SidewaysAsymptoteSlip: side.AsymptoteSlip(),
		},
		Baseline: grip.Baseline{
			ForwardExtremumValue:   fwd.ExtremumValue(),
			ForwardAsymptoteValue:  fwd.AsymptoteValue(),
			SidewaysExtremumValue:  side.ExtremumValue(),
			SidewaysAsymptoteValue: side.AsymptoteValue(),
		},
		Particles:         b.Particles(c),
		LastSkidmarkIndex: -1,
		DiscoveredAt:      now,
	}
	if !grip.Valid(d.Ellipse) {
		return nil, fmt.Errorf("%s: %w", d, ErrInvalidCurve)
	}

	if part, wheel, ok := b.Scales(c); ok {
		d.Radius = part.Y * wheel.Y
		d.Thickness = part.X * wheel.X * UnscaledWheelThickness
	} else {
		d.Radius = b.Radius(c)
		d.Thickness = UnscaledWheelThickness
	}

	return d, nil
}
