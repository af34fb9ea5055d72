package sim

import (
	"sync"

	"github.com/EllipseGrip/extension/pkg/core"
)

// Emitter records emitted particles.
type Emitter struct {
	mu      sync.Mutex
	emitted []core.EmitParams
}

func (e *Emitter) Emit(p core.EmitParams) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitted = append(e.emitted, p)
}

// Emitted returns a copy of every particle emitted so far.
func (e *Emitter) Emitted() []core.EmitParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.EmitParams(nil), e.emitted...)
}

// Count returns the number of emitted particles.
func (e *Emitter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.emitted)
}

// Segment is one appended skid mark section.
type Segment struct {
	Index   int
	Prev    int
	Pos     core.Vector3
	Normal  core.Vector3
	Opacity float64
}

// Trail records skid mark segments for one wheel.
type Trail struct {
	mu       sync.Mutex
	width    float64
	segments []Segment
}

func (t *Trail) AppendSegment(pos, normal core.Vector3, opacity float64, prev int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := len(t.segments)
	t.segments = append(t.segments, Segment{Index: idx, Prev: prev, Pos: pos, Normal: normal, Opacity: opacity})
	return idx
}

func (t *Trail) SetMarkWidth(width float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.width = width
}

// Width returns the configured mark width.
func (t *Trail) Width() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.width
}

// Segments returns a copy of every appended segment.
func (t *Trail) Segments() []Segment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Segment(nil), t.segments...)
}

// Marks splits the segments into continuous marks.
func (t *Trail) Marks() [][]Segment {
	t.mu.Lock()
	defer t.mu.Unlock()
	var marks [][]Segment
	for _, s := range t.segments {
		if s.Prev < 0 || len(marks) == 0 {
			marks = append(marks, nil)
		}
		marks[len(marks)-1] = append(marks[len(marks)-1], s)
	}
	return marks
}

// Skidmarks hands out one Trail per wheel.
type Skidmarks struct {
	mu     sync.Mutex
	trails map[int64]*Trail
}

// NewSkidmarks creates an empty trail factory.
func NewSkidmarks() *Skidmarks {
	return &Skidmarks{trails: make(map[int64]*Trail)}
}

func (s *Skidmarks) NewTrail(owner core.Component) core.SkidmarkTrail {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &Trail{}
	s.trails[owner.InstanceID()] = t
	return t
}

// Trail returns the trail created for a wheel id.
func (s *Skidmarks) Trail(id int64) *Trail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trails[id]
}
