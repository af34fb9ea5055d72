// pkg/core/effects.go
package core

// EmitParams describes one tire smoke particle.
type EmitParams struct {
	// Origin is only set when HasOrigin is true. Wheels without a transform
	// leave placement to the emitter, which sits on the wheel.
	Origin    Vector3
	HasOrigin bool
	Normal    Vector3
	Color     Color
	// Alpha is the intensity already folded into Color.A, kept for hosts that
	// drive opacity separately.
	Alpha float32
}

// ParticleEmitter emits tire smoke.
type ParticleEmitter interface {
	Emit(p EmitParams)
}

// SkidmarkTrail draws a continuous skid mark for one wheel.
type SkidmarkTrail interface {
	// AppendSegment adds a mark section and returns its index. prev is the
	// index returned by the previous call, or -1 to start a new mark.
	AppendSegment(pos, normal Vector3, opacity float64, prev int) int
	SetMarkWidth(width float64)
}

// SkidmarkFactory creates one trail per discovered wheel.
type SkidmarkFactory interface {
	NewTrail(owner Component) SkidmarkTrail
}
