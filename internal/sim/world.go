package sim

import (
	"slices"
	"sync"

	"github.com/EllipseGrip/extension/pkg/core"
)

// World is a flat list of components with a floating origin.
type World struct {
	Name string

	mu         sync.RWMutex
	components []core.Component
	offset     core.Vector3
	status     string
	statusN    int
}

// NewWorld creates an empty world.
func NewWorld(name string) *World {
	return &World{Name: name}
}

// Add places components in the world.
func (w *World) Add(cs ...core.Component) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.components = append(w.components, cs...)
}

// Remove takes a component out of the world without destroying it.
func (w *World) Remove(id int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.components = slices.DeleteFunc(w.components, func(c core.Component) bool {
		return c.InstanceID() == id
	})
}

func (w *World) Components() []core.Component {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.components)
}

func (w *World) FloatingOriginOffset() core.Vector3 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.offset
}

// SetFloatingOriginOffset shifts the world origin.
func (w *World) SetFloatingOriginOffset(v core.Vector3) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.offset = v
}

func (w *World) ShowStatusMessage(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = msg
	w.statusN++
}

// Status returns the last status message and how many were shown.
func (w *World) Status() (string, int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status, w.statusN
}
