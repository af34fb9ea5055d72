// pkg/core/wheel.go
package core

// Component is any object the host world reports. Wheels are recognised by
// TypeName; everything else about them is reached through the capability
// interfaces below, checked at runtime.
type Component interface {
	// InstanceID is unique among live components and stable for a component's life.
	InstanceID() int64
	TypeName() string
	Name() string
	// IsValid reports false once the host has destroyed the component.
	IsValid() bool
}

// SlipSource exposes the live slip of a wheel.
type SlipSource interface {
	ForwardSlip() float64
	SidewaysSlip() float64
}

// FrictionSource exposes the wheel's two friction curves. The returned
// handles must stay the same objects for the wheel's life.
type FrictionSource interface {
	ForwardFriction() FrictionCurveHandle
	SidewaysFriction() FrictionCurveHandle
}

// RadiusSource exposes the physics radius of the wheel.
type RadiusSource interface {
	WheelRadius() float64
}

// SurfaceNormalSource exposes the ground normal under the contact patch.
type SurfaceNormalSource interface {
	SurfaceNormal() Vector3
}

// Transform exposes the world placement of the wheel.
type Transform interface {
	Position() Vector3
	// Up is the wheel mount's up axis in world space.
	Up() Vector3
}

// ScaleHierarchy exposes the scales of the resizable part and of the visual
// wheel below it. The rendered radius is PartScale.Y*WheelScale.Y and the
// width is PartScale.X*WheelScale.X times the unscaled wheel thickness.
type ScaleHierarchy interface {
	PartScale() Vector3
	WheelScale() Vector3
}

// EffectsAncestry exposes visual collaborators found above the wheel in the
// host scene graph.
type EffectsAncestry interface {
	ParticleEmitter() ParticleEmitter
}
