package wheel

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/EllipseGrip/extension/pkg/core"
)

// DefaultTypeName is the host wheel component type recognised by default.
const DefaultTypeName = "ResizableWheelCollider"

// Observer is told about descriptors entering and leaving the registry.
type Observer interface {
	WheelAdded(d *Descriptor)
	WheelRemoved(d *Descriptor, reason error)
}

// Config configures a Registry.
type Config struct {
	// TypeName selects which components are wheels. Empty means DefaultTypeName.
	TypeName string
	// Skidmarks creates a trail per discovered wheel. Optional.
	Skidmarks core.SkidmarkFactory
	Logger    *slog.Logger
	// Now is used for discovery timestamps. Defaults to time.Now.
	Now func() time.Time
}

// RefreshResult summarises one refresh pass.
type RefreshResult struct {
	Added    int
	Removed  int
	Rejected []error
}

// Registry keeps one Descriptor per live wheel. It is not safe for
// concurrent use; the tick loop owns it.
type Registry struct {
	cfg       Config
	binding   *Binding
	byID      map[int64]*Descriptor
	order     []*Descriptor
	observers []Observer
}

// NewRegistry creates an empty, unbound registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.TypeName == "" {
		cfg.TypeName = DefaultTypeName
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		cfg:  cfg,
		byID: make(map[int64]*Descriptor),
	}
}

// AddObserver subscribes o to registry changes.
func (r *Registry) AddObserver(o Observer) {
	if o != nil {
		r.observers = append(r.observers, o)
	}
}

// Binding returns the capability binding, or nil before the first
// successful refresh.
func (r *Registry) Binding() *Binding {
	return r.binding
}

// Bound reports whether the wheel type has been found and bound.
func (r *Registry) Bound() bool {
	return r.binding != nil
}

// Len returns the number of registered wheels.
func (r *Registry) Len() int {
	return len(r.order)
}

// Descriptors returns the registered wheels in discovery order. The slice is
// shared; callers must not modify it.
func (r *Registry) Descriptors() []*Descriptor {
	return r.order
}

// Get returns the descriptor for a wheel instance id.
func (r *Registry) Get(id int64) (*Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Clear drops every descriptor and notifies observers.
func (r *Registry) Clear() {
	for _, d := range r.order {
		r.notifyRemoved(d, nil)
	}
	r.byID = make(map[int64]*Descriptor)
	r.order = nil
}

// Refresh synchronises the registry with the wheels in world. The first call
// that sees a wheel binds the capabilities; until then it returns
// ErrWheelTypeNotFound and leaves the registry empty.
func (r *Registry) Refresh(world core.World) (RefreshResult, error) {
	var res RefreshResult
	components := world.Components()

	if r.binding == nil {
		if err := r.bind(components); err != nil {
			return res, err
		}
	}

	now := r.cfg.Now()
	for _, c := range components {
		if c == nil || !c.IsValid() || c.TypeName() != r.binding.TypeName {
			continue
		}
		if _, ok := r.byID[c.InstanceID()]; ok {
			continue
		}

		d, err := newDescriptor(r.binding, c, now)
		if err != nil {
			r.cfg.Logger.Warn("Skipping wheel", "wheel", c.Name(), "id", c.InstanceID(), "error", err)
			res.Rejected = append(res.Rejected, err)
			continue
		}
		if r.cfg.Skidmarks != nil {
			d.Skidmarks = r.cfg.Skidmarks.NewTrail(c)
			if d.Skidmarks != nil {
				d.Skidmarks.SetMarkWidth(d.Thickness)
			}
		}

		r.byID[d.ID()] = d
		r.order = append(r.order, d)
		res.Added++
		r.cfg.Logger.Info("Added wheel data entry", "wheel", d.String())
		for _, o := range r.observers {
			o.WheelAdded(d)
		}
	}

	res.Removed = r.prune()
	if res.Removed > 0 {
		r.cfg.Logger.Info("Removed wheel data entries as the components no longer exist", "count", res.Removed)
	}
	return res, nil
}

func (r *Registry) bind(components []core.Component) error {
	for _, c := range components {
		if c == nil || !c.IsValid() || c.TypeName() != r.cfg.TypeName {
			continue
		}
		b, err := Bind(c)
		if err != nil {
			return fmt.Errorf("binding %s: %w", r.cfg.TypeName, err)
		}
		r.binding = b
		r.cfg.Logger.Info("Bound wheel capabilities",
			"type", b.TypeName,
			"surfaceNormal", b.HasSurfaceNormal,
			"transform", b.HasTransform,
			"scale", b.HasScale,
			"effects", b.HasEffects)
		return nil
	}
	return fmt.Errorf("%s: %w", r.cfg.TypeName, ErrWheelTypeNotFound)
}

// prune removes stale and destroyed wheels, keeping discovery order.
func (r *Registry) prune() int {
	kept := r.order[:0]
	removed := 0
	for _, d := range r.order {
		if !d.Stale && d.Handle.IsValid() {
			kept = append(kept, d)
			continue
		}
		delete(r.byID, d.ID())
		removed++
		r.notifyRemoved(d, ErrStaleHandle)
	}
	for i := len(kept); i < len(r.order); i++ {
		r.order[i] = nil
	}
	r.order = kept
	return removed
}

func (r *Registry) notifyRemoved(d *Descriptor, reason error) {
	for _, o := range r.observers {
		o.WheelRemoved(d, reason)
	}
}
