package wheel

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/EllipseGrip/extension/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWheel struct {
	id       int64
	typeName string
	valid    bool
	fwd      *core.FrictionCurve
	side     *core.FrictionCurve
	radius   float64
}

func newFakeWheel(id int64) *fakeWheel {
	return &fakeWheel{
		id:       id,
		typeName: DefaultTypeName,
		valid:    true,
		fwd:      core.NewFrictionCurve(0.4, 1.5, 0.8, 1.125),
		side:     core.NewFrictionCurve(0.2, 3, 0.5, 2.25),
		radius:   0.35,
	}
}

func (w *fakeWheel) InstanceID() int64                          { return w.id }
func (w *fakeWheel) TypeName() string                           { return w.typeName }
func (w *fakeWheel) Name() string                               { return "wheel" }
func (w *fakeWheel) IsValid() bool                              { return w.valid }
func (w *fakeWheel) ForwardSlip() float64                       { return 0 }
func (w *fakeWheel) SidewaysSlip() float64                      { return 0 }
func (w *fakeWheel) ForwardFriction() core.FrictionCurveHandle  { return w.fwd }
func (w *fakeWheel) SidewaysFriction() core.FrictionCurveHandle { return w.side }
func (w *fakeWheel) WheelRadius() float64                       { return w.radius }

type scaledWheel struct {
	*fakeWheel
}

func (w scaledWheel) PartScale() core.Vector3  { return core.Vector3{X: 2, Y: 2, Z: 2} }
func (w scaledWheel) WheelScale() core.Vector3 { return core.Vector3{X: 0.5, Y: 0.25, Z: 1} }

// bare has no slip or friction capabilities.
type bare struct{ id int64 }

func (b bare) InstanceID() int64 { return b.id }
func (b bare) TypeName() string  { return DefaultTypeName }
func (b bare) Name() string      { return "bare" }
func (b bare) IsValid() bool     { return true }

type other struct{ id int64 }

func (o other) InstanceID() int64 { return o.id }
func (o other) TypeName() string  { return "Rigidbody" }
func (o other) Name() string      { return "body" }
func (o other) IsValid() bool     { return true }

type fakeWorld struct {
	components []core.Component
}

func (w *fakeWorld) Components() []core.Component       { return w.components }
func (w *fakeWorld) FloatingOriginOffset() core.Vector3 { return core.Vector3{} }

type fakeTrail struct {
	width float64
}

func (t *fakeTrail) AppendSegment(_, _ core.Vector3, _ float64, prev int) int { return prev + 1 }
func (t *fakeTrail) SetMarkWidth(w float64)                                   { t.width = w }

type fakeFactory struct {
	trails map[int64]*fakeTrail
}

func (f *fakeFactory) NewTrail(owner core.Component) core.SkidmarkTrail {
	t := &fakeTrail{}
	f.trails[owner.InstanceID()] = t
	return t
}

type recordingObserver struct {
	added   []int64
	removed []int64
}

func (o *recordingObserver) WheelAdded(d *Descriptor) { o.added = append(o.added, d.ID()) }
func (o *recordingObserver) WheelRemoved(d *Descriptor, _ error) {
	o.removed = append(o.removed, d.ID())
}

func newTestRegistry() *Registry {
	return NewRegistry(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func ids(r *Registry) []int64 {
	var out []int64
	for _, d := range r.Descriptors() {
		out = append(out, d.ID())
	}
	return out
}

func TestRefresh_NoWheelType(t *testing.T) {
	r := newTestRegistry()
	world := &fakeWorld{components: []core.Component{other{id: 1}}}

	_, err := r.Refresh(world)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWheelTypeNotFound))
	assert.False(t, r.Bound())
	assert.Equal(t, 0, r.Len())

	// binding is retried once a wheel shows up
	world.components = append(world.components, newFakeWheel(2))
	res, err := r.Refresh(world)
	require.NoError(t, err)
	assert.True(t, r.Bound())
	assert.Equal(t, 1, res.Added)
}

func TestRefresh_MissingCapability(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Refresh(&fakeWorld{components: []core.Component{bare{id: 1}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCapability)
	assert.False(t, r.Bound())
}

func TestRefresh_AddsOnlyWheels(t *testing.T) {
	r := newTestRegistry()
	world := &fakeWorld{components: []core.Component{
		newFakeWheel(10), other{id: 11}, newFakeWheel(12),
	}}

	res, err := r.Refresh(world)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 0, res.Removed)
	assert.Equal(t, []int64{10, 12}, ids(r))

	d, ok := r.Get(10)
	require.True(t, ok)
	assert.Equal(t, -1, d.LastSkidmarkIndex)
	assert.InDelta(t, 0.35, d.Radius, 1e-12)
	assert.InDelta(t, UnscaledWheelThickness, d.Thickness, 1e-12)
	assert.Equal(t, 1.5, d.Baseline.ForwardExtremumValue)
	assert.Equal(t, 2.25, d.Baseline.SidewaysAsymptoteValue)
	assert.Equal(t, 0.8, d.Ellipse.ForwardAsymptoteSlip)
}

func TestRefresh_Idempotent(t *testing.T) {
	r := newTestRegistry()
	world := &fakeWorld{components: []core.Component{newFakeWheel(1), newFakeWheel(2)}}

	_, err := r.Refresh(world)
	require.NoError(t, err)
	first := append([]*Descriptor(nil), r.Descriptors()...)

	res, err := r.Refresh(world)
	require.NoError(t, err)
	assert.Equal(t, RefreshResult{}, res)
	assert.Equal(t, first, r.Descriptors())
}

func TestRefresh_BaselineFromModifiedCurve(t *testing.T) {
	r := newTestRegistry()
	w := newFakeWheel(1)
	w.fwd.SetExtremumValue(0.9)

	_, err := r.Refresh(&fakeWorld{components: []core.Component{w}})
	require.NoError(t, err)

	d, _ := r.Get(1)
	assert.Equal(t, 0.9, d.Baseline.ForwardExtremumValue)
}

func TestRefresh_PrunesInvalidAndStale(t *testing.T) {
	r := newTestRegistry()
	obs := &recordingObserver{}
	r.AddObserver(obs)

	a, b, c := newFakeWheel(1), newFakeWheel(2), newFakeWheel(3)
	world := &fakeWorld{components: []core.Component{a, b, c}}
	_, err := r.Refresh(world)
	require.NoError(t, err)

	a.valid = false
	d, _ := r.Get(3)
	d.Stale = true

	res, err := r.Refresh(world)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)
	assert.Equal(t, []int64{2}, ids(r))
	assert.Equal(t, []int64{1, 2, 3}, obs.added)
	assert.ElementsMatch(t, []int64{1, 3}, obs.removed)

	_, ok := r.Get(1)
	assert.False(t, ok)
}

func TestRefresh_RejectsInvalidCurve(t *testing.T) {
	r := newTestRegistry()
	bad := newFakeWheel(1)
	bad.side = core.NewFrictionCurve(0, 3, 0.5, 2.25)
	good := newFakeWheel(2)

	world := &fakeWorld{components: []core.Component{bad, good}}
	res, err := r.Refresh(world)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	require.Len(t, res.Rejected, 1)
	assert.ErrorIs(t, res.Rejected[0], ErrInvalidCurve)

	// fixed curves are picked up on the next pass
	bad.side = core.NewFrictionCurve(0.2, 3, 0.5, 2.25)
	res, err = r.Refresh(world)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, []int64{2, 1}, ids(r))
}

func TestRefresh_RejectsAsymptoteBeforeExtremum(t *testing.T) {
	r := newTestRegistry()
	bad := newFakeWheel(1)
	bad.fwd = core.NewFrictionCurve(0.4, 1.5, 0.2, 1.125)

	res, err := r.Refresh(&fakeWorld{components: []core.Component{bad}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	require.Len(t, res.Rejected, 1)
	assert.ErrorIs(t, res.Rejected[0], ErrInvalidCurve)
	assert.Equal(t, 0, r.Len())
}

func TestRefresh_ScaledGeometryAndTrail(t *testing.T) {
	factory := &fakeFactory{trails: map[int64]*fakeTrail{}}
	r := NewRegistry(Config{
		Skidmarks: factory,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	w := scaledWheel{newFakeWheel(7)}
	_, err := r.Refresh(&fakeWorld{components: []core.Component{w}})
	require.NoError(t, err)

	d, ok := r.Get(7)
	require.True(t, ok)
	assert.InDelta(t, 0.5, d.Radius, 1e-12)
	assert.InDelta(t, 0.2, d.Thickness, 1e-12)
	require.Contains(t, factory.trails, int64(7))
	assert.InDelta(t, 0.2, factory.trails[7].width, 1e-12)
	assert.Same(t, factory.trails[7], d.Skidmarks)
}

func TestRegistry_Clear(t *testing.T) {
	r := newTestRegistry()
	obs := &recordingObserver{}
	r.AddObserver(obs)
	_, err := r.Refresh(&fakeWorld{components: []core.Component{newFakeWheel(1)}})
	require.NoError(t, err)

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, []int64{1}, obs.removed)
	assert.True(t, r.Bound())
}
