// Package sim is a small headless host: a world of wheel components that
// implement every capability the extension can bind, plus recording particle
// and skid mark collaborators.
package sim

import (
	"sync"

	"github.com/EllipseGrip/extension/pkg/core"
)

// WheelTypeName is the type name reported by sim wheels.
const WheelTypeName = "ResizableWheelCollider"

// Traction values are scaled into curve values the way the host derives them.
const (
	extremumValueScale  = 1.5
	asymptoteValueScale = 1.125
)

// WheelParams describes a wheel to create.
type WheelParams struct {
	Name     string
	Position core.Vector3

	ForwardExtremumSlip   float64
	ForwardAsymptoteSlip  float64
	SidewaysExtremumSlip  float64
	SidewaysAsymptoteSlip float64

	ForwardTraction  float64
	SidewaysTraction float64

	Radius     float64
	PartScale  core.Vector3
	WheelScale core.Vector3
}

// DefaultWheelParams returns a road wheel of unit traction.
func DefaultWheelParams(name string, pos core.Vector3) WheelParams {
	return WheelParams{
		Name:                  name,
		Position:              pos,
		ForwardExtremumSlip:   0.2,
		ForwardAsymptoteSlip:  0.4,
		SidewaysExtremumSlip:  0.3,
		SidewaysAsymptoteSlip: 0.5,
		ForwardTraction:       1,
		SidewaysTraction:      2,
		Radius:                0.35,
		PartScale:             core.Vector3{X: 1, Y: 1, Z: 1},
		WheelScale:            core.Vector3{X: 1, Y: 0.35, Z: 1},
	}
}

// Wheel is a host wheel component.
type Wheel struct {
	mu sync.RWMutex

	id    int64
	name  string
	valid bool

	forwardSlip  float64
	sidewaysSlip float64

	forward  *core.FrictionCurve
	sideways *core.FrictionCurve

	radius     float64
	position   core.Vector3
	up         core.Vector3
	normal     core.Vector3
	partScale  core.Vector3
	wheelScale core.Vector3
	emitter    *Emitter
}

// NewWheel creates a live wheel from params.
func NewWheel(id int64, params WheelParams) *Wheel {
	return &Wheel{
		id:    id,
		name:  params.Name,
		valid: true,
		forward: core.NewFrictionCurve(
			params.ForwardExtremumSlip, extremumValueScale*params.ForwardTraction,
			params.ForwardAsymptoteSlip, asymptoteValueScale*params.ForwardTraction),
		sideways: core.NewFrictionCurve(
			params.SidewaysExtremumSlip, extremumValueScale*params.SidewaysTraction,
			params.SidewaysAsymptoteSlip, asymptoteValueScale*params.SidewaysTraction),
		radius:     params.Radius,
		position:   params.Position,
		up:         core.Up,
		normal:     core.Up,
		partScale:  params.PartScale,
		wheelScale: params.WheelScale,
		emitter:    &Emitter{},
	}
}

func (w *Wheel) InstanceID() int64 { return w.id }
func (w *Wheel) TypeName() string  { return WheelTypeName }
func (w *Wheel) Name() string      { return w.name }

func (w *Wheel) IsValid() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.valid
}

// Destroy invalidates the wheel as the host does when a part is deleted.
func (w *Wheel) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.valid = false
}

// SetSlip sets the slip the physics step would report.
func (w *Wheel) SetSlip(forward, sideways float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.forwardSlip, w.sidewaysSlip = forward, sideways
}

func (w *Wheel) ForwardSlip() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.forwardSlip
}

func (w *Wheel) SidewaysSlip() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sidewaysSlip
}

func (w *Wheel) ForwardFriction() core.FrictionCurveHandle  { return w.forward }
func (w *Wheel) SidewaysFriction() core.FrictionCurveHandle { return w.sideways }

// ForwardCurve returns the concrete forward curve.
func (w *Wheel) ForwardCurve() *core.FrictionCurve { return w.forward }

// SidewaysCurve returns the concrete sideways curve.
func (w *Wheel) SidewaysCurve() *core.FrictionCurve { return w.sideways }

func (w *Wheel) WheelRadius() float64 { return w.radius }

func (w *Wheel) SurfaceNormal() core.Vector3 { return w.normal }

// SetSurfaceNormal changes the ground normal under the wheel.
func (w *Wheel) SetSurfaceNormal(n core.Vector3) { w.normal = n }

func (w *Wheel) Position() core.Vector3 { return w.position }

// MoveTo places the wheel.
func (w *Wheel) MoveTo(p core.Vector3) { w.position = p }

func (w *Wheel) Up() core.Vector3 { return w.up }

func (w *Wheel) PartScale() core.Vector3  { return w.partScale }
func (w *Wheel) WheelScale() core.Vector3 { return w.wheelScale }

func (w *Wheel) ParticleEmitter() core.ParticleEmitter { return w.emitter }

// Emitter returns the concrete emitter of the wheel.
func (w *Wheel) Emitter() *Emitter { return w.emitter }
