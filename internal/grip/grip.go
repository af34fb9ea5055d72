// Package grip computes how far a wheel's combined slip has pushed it past its
// grip ellipse and how that overload is split between the forward and
// sideways friction curves.
package grip

import (
	"math"

	"github.com/EllipseGrip/extension/pkg/core"
)

// DefaultEffectStrength is the fractional grip lost perpendicular to the
// direction of travel at full overload.
const DefaultEffectStrength = 0.25

// Ellipse is the pair of slip ellipses of a wheel: the extremum ellipse
// (overload 0) and the asymptote ellipse (overload 1).
type Ellipse = core.Ellipse

// Baseline is the set of undistorted curve values every adjustment starts from.
type Baseline = core.Baseline

// Result is the outcome of one overload computation.
type Result struct {
	ForwardSlip  float64
	SidewaysSlip float64
	Magnitude    float64
	Angle        float64

	ExtremumRadius  float64
	AsymptoteRadius float64
	Overload        float64

	NormalMultiplier   float64
	ForwardMultiplier  float64
	SidewaysMultiplier float64

	// Adjusted curve values, baseline times the axis multiplier.
	ForwardExtremumValue   float64
	ForwardAsymptoteValue  float64
	SidewaysExtremumValue  float64
	SidewaysAsymptoteValue float64
}

// EllipseRadius returns the distance from the centre to an ellipse with
// semi-axes a (along theta=0) and b (along theta=pi/2) in direction theta.
// Degenerate ellipses have radius 0.
func EllipseRadius(a, b, theta float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	as := a * math.Sin(theta)
	bc := b * math.Cos(theta)
	den := math.Sqrt(as*as + bc*bc)
	if den == 0 {
		return 0
	}
	return a * b / den
}

// InverseLerp returns where v lies between a and b, clamped to [0,1].
// When a == b the result is a step: 1 at or past the boundary, 0 before it.
func InverseLerp(a, b, v float64) float64 {
	if a == b {
		if v >= a {
			return 1
		}
		return 0
	}
	return Clamp01((v - a) / (b - a))
}

// Clamp01 clamps v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v > 0:
		return v
	default:
		return 0
	}
}

// Valid reports whether all four slip thresholds are finite and positive and
// neither asymptote slip lies below its extremum slip.
func Valid(e Ellipse) bool {
	for _, v := range [...]float64{
		e.ForwardExtremumSlip, e.SidewaysExtremumSlip,
		e.ForwardAsymptoteSlip, e.SidewaysAsymptoteSlip,
	} {
		if !(v > 0) || math.IsInf(v, 0) {
			return false
		}
	}
	return e.ForwardAsymptoteSlip >= e.ForwardExtremumSlip &&
		e.SidewaysAsymptoteSlip >= e.SidewaysExtremumSlip
}

// Overload returns the overload factor in [0,1] together with the slip angle
// and magnitude it was computed from. Non-finite slip counts as no slip.
func Overload(e Ellipse, forwardSlip, sidewaysSlip float64) (overload, angle, magnitude float64) {
	overload, angle, magnitude, _, _ = overload4(e, forwardSlip, sidewaysSlip)
	return overload, angle, magnitude
}

func overload4(e Ellipse, forwardSlip, sidewaysSlip float64) (overload, angle, magnitude, extremum, asymptote float64) {
	if !finite(forwardSlip) || !finite(sidewaysSlip) {
		forwardSlip, sidewaysSlip = 0, 0
	}
	magnitude = math.Hypot(forwardSlip, sidewaysSlip)
	angle = math.Atan2(sidewaysSlip, forwardSlip)

	extremum = EllipseRadius(e.ForwardExtremumSlip, e.SidewaysExtremumSlip, angle)
	asymptote = EllipseRadius(e.ForwardAsymptoteSlip, e.SidewaysAsymptoteSlip, angle)

	if magnitude == 0 {
		return 0, angle, 0, extremum, asymptote
	}
	return InverseLerp(extremum, asymptote, magnitude), angle, magnitude, extremum, asymptote
}

// Multipliers splits the grip loss of an overloaded wheel onto its axes.
// Grip along the slip direction is kept; grip perpendicular to it is scaled
// by 1 - strength*overload. strength is clamped to [0,1].
func Multipliers(overload, angle, strength float64) (forward, sideways float64) {
	normal := NormalMultiplier(overload, strength)
	cos := math.Cos(angle)
	sin := math.Sin(angle)
	cos2 := cos * cos
	sin2 := sin * sin
	forward = cos2 + sin2*normal
	sideways = sin2 + cos2*normal
	return forward, sideways
}

// NormalMultiplier is the grip multiplier applied perpendicular to the slip.
func NormalMultiplier(overload, strength float64) float64 {
	return 1 - Clamp01(strength)*Clamp01(overload)
}

// Compute runs the whole per-wheel computation for one tick.
func Compute(e Ellipse, b Baseline, forwardSlip, sidewaysSlip, strength float64) Result {
	overload, angle, magnitude, extremum, asymptote := overload4(e, forwardSlip, sidewaysSlip)
	fwd, side := Multipliers(overload, angle, strength)

	return Result{
		ForwardSlip:            forwardSlip,
		SidewaysSlip:           sidewaysSlip,
		Magnitude:              magnitude,
		Angle:                  angle,
		ExtremumRadius:         extremum,
		AsymptoteRadius:        asymptote,
		Overload:               overload,
		NormalMultiplier:       NormalMultiplier(overload, strength),
		ForwardMultiplier:      fwd,
		SidewaysMultiplier:     side,
		ForwardExtremumValue:   b.ForwardExtremumValue * fwd,
		ForwardAsymptoteValue:  b.ForwardAsymptoteValue * fwd,
		SidewaysExtremumValue:  b.SidewaysExtremumValue * side,
		SidewaysAsymptoteValue: b.SidewaysAsymptoteValue * side,
	}
}

// Apply writes the adjusted values of r to the two curves. Slip thresholds
// are left alone.
func Apply(r Result, forward, sideways core.FrictionCurveHandle) {
	forward.SetExtremumValue(r.ForwardExtremumValue)
	forward.SetAsymptoteValue(r.ForwardAsymptoteValue)
	sideways.SetExtremumValue(r.SidewaysExtremumValue)
	sideways.SetAsymptoteValue(r.SidewaysAsymptoteValue)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
