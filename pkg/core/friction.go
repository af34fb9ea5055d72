// pkg/core/friction.go
package core

// FrictionCurveHandle is the mutable friction model a wheel owns for one axis.
// Only the value fields are writable; slip thresholds describe the tire shape
// and are fixed for the life of the wheel.
type FrictionCurveHandle interface {
	ExtremumSlip() float64
	ExtremumValue() float64
	AsymptoteSlip() float64
	AsymptoteValue() float64
	SetExtremumValue(v float64)
	SetAsymptoteValue(v float64)
}

// FrictionCurve is the four-parameter curve used by the reference host.
// Grip rises linearly to the extremum value at the extremum slip, then moves
// linearly to the asymptote value at the asymptote slip and stays there.
type FrictionCurve struct {
	extremumSlip   float64
	extremumValue  float64
	asymptoteSlip  float64
	asymptoteValue float64

	// Stiffness scales the whole curve. Zero is treated as 1.
	Stiffness float64
}

// NewFrictionCurve returns a curve with unit stiffness.
func NewFrictionCurve(extremumSlip, extremumValue, asymptoteSlip, asymptoteValue float64) *FrictionCurve {
	return &FrictionCurve{
		extremumSlip:   extremumSlip,
		extremumValue:  extremumValue,
		asymptoteSlip:  asymptoteSlip,
		asymptoteValue: asymptoteValue,
		Stiffness:      1,
	}
}

func (c *FrictionCurve) ExtremumSlip() float64       { return c.extremumSlip }
func (c *FrictionCurve) ExtremumValue() float64      { return c.extremumValue }
func (c *FrictionCurve) AsymptoteSlip() float64      { return c.asymptoteSlip }
func (c *FrictionCurve) AsymptoteValue() float64     { return c.asymptoteValue }
func (c *FrictionCurve) SetExtremumValue(v float64)  { c.extremumValue = v }
func (c *FrictionCurve) SetAsymptoteValue(v float64) { c.asymptoteValue = v }

// Evaluate returns the grip magnitude produced at the given slip.
func (c *FrictionCurve) Evaluate(slip float64) float64 {
	if slip < 0 {
		slip = -slip
	}
	stiffness := c.Stiffness
	if stiffness == 0 {
		stiffness = 1
	}
	switch {
	case c.extremumSlip <= 0:
		return c.asymptoteValue * stiffness
	case slip <= c.extremumSlip:
		return slip / c.extremumSlip * c.extremumValue * stiffness
	case slip >= c.asymptoteSlip || c.asymptoteSlip <= c.extremumSlip:
		return c.asymptoteValue * stiffness
	default:
		t := (slip - c.extremumSlip) / (c.asymptoteSlip - c.extremumSlip)
		return (c.extremumValue + (c.asymptoteValue-c.extremumValue)*t) * stiffness
	}
}
