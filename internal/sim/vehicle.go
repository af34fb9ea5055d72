package sim

import (
	"math"
	"time"

	"github.com/EllipseGrip/extension/pkg/core"
)

// Vehicle is four wheels driven by a scripted slip profile.
type Vehicle struct {
	Name   string
	Wheels []*Wheel

	Profile Profile
	speed   float64
	heading float64
	pos     core.Vector3
}

// Profile returns the slip of the vehicle at time t.
type Profile func(t time.Duration) (forward, sideways float64)

// NewVehicle creates a vehicle whose wheels get ids firstID..firstID+3.
func NewVehicle(name string, firstID int64, profile Profile) *Vehicle {
	offsets := []struct {
		name string
		pos  core.Vector3
	}{
		{"FL", core.Vector3{X: -0.8, Y: 0.35, Z: 1.3}},
		{"FR", core.Vector3{X: 0.8, Y: 0.35, Z: 1.3}},
		{"RL", core.Vector3{X: -0.8, Y: 0.35, Z: -1.3}},
		{"RR", core.Vector3{X: 0.8, Y: 0.35, Z: -1.3}},
	}
	v := &Vehicle{Name: name, Profile: profile, speed: 15}
	for i, o := range offsets {
		v.Wheels = append(v.Wheels, NewWheel(firstID+int64(i), DefaultWheelParams(name+"."+o.name, o.pos)))
	}
	return v
}

// Components returns the wheels as world components.
func (v *Vehicle) Components() []core.Component {
	out := make([]core.Component, len(v.Wheels))
	for i, w := range v.Wheels {
		out[i] = w
	}
	return out
}

// Advance moves the vehicle along a circle and applies the profile slip at t.
// Rear wheels slide more than the fronts, as in a power-over drift.
func (v *Vehicle) Advance(t, dt time.Duration) {
	fwd, side := 0.0, 0.0
	if v.Profile != nil {
		fwd, side = v.Profile(t)
	}

	v.heading += side * dt.Seconds()
	step := v.speed * dt.Seconds()
	v.pos = v.pos.Add(core.Vector3{X: math.Sin(v.heading) * step, Z: math.Cos(v.heading) * step})

	for i, w := range v.Wheels {
		scale := 0.6
		if i >= 2 {
			scale = 1
		}
		w.SetSlip(fwd*scale, side*scale)
		w.MoveTo(v.pos.Add(v.localOffset(i)))
	}
}

func (v *Vehicle) localOffset(i int) core.Vector3 {
	x := -0.8
	if i%2 == 1 {
		x = 0.8
	}
	z := 1.3
	if i >= 2 {
		z = -1.3
	}
	sin, cos := math.Sin(v.heading), math.Cos(v.heading)
	return core.Vector3{X: x*cos + z*sin, Y: 0.35, Z: -x*sin + z*cos}
}

// DriftProfile builds up sideways slip, holds a slide and recovers, over a
// cycle of the given period.
func DriftProfile(period time.Duration) Profile {
	return func(t time.Duration) (float64, float64) {
		if period <= 0 {
			return 0, 0
		}
		phase := math.Mod(t.Seconds(), period.Seconds()) / period.Seconds()
		switch {
		case phase < 0.25:
			// straight line, rolling only
			return 0.05, 0
		case phase < 0.5:
			k := (phase - 0.25) / 0.25
			return 0.05 + 0.25*k, 0.6 * k
		case phase < 0.75:
			return 0.3, 0.6
		default:
			k := (phase - 0.75) / 0.25
			return 0.3 * (1 - k), 0.6 * (1 - k)
		}
	}
}
