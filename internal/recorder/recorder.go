// Package recorder turns engine results into telemetry. Observer callbacks
// run on the tick goroutine and only push into queues; a background
// flusher drains the queues into the storage backend and InfluxDB, so a
// slow or failing sink never stalls a tick.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EllipseGrip/extension/internal/grip"
	"github.com/EllipseGrip/extension/internal/queue"
	"github.com/EllipseGrip/extension/internal/session"
	"github.com/EllipseGrip/extension/internal/storage"
	"github.com/EllipseGrip/extension/internal/wheel"
	"github.com/EllipseGrip/extension/pkg/core"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrAlreadyStarted is returned by Start on a running recorder
var ErrAlreadyStarted = errors.New("recorder already started")

// PointSink receives telemetry points alongside the storage backend.
type PointSink interface {
	WriteSamples(wheelNames map[int64]string, samples []core.GripSample) error
	WriteTrail(wheelName string, t core.SkidTrail) error
	Flush() error
}

// Config controls sampling and flushing.
type Config struct {
	SamplePeriod  time.Duration
	FlushInterval time.Duration
	// QueueCapacity bounds each queue; the oldest entries are dropped beyond it.
	QueueCapacity int
	WorldName     string
	Version       string
}

// DefaultConfig mirrors the telemetry defaults.
func DefaultConfig() Config {
	return Config{
		SamplePeriod:  100 * time.Millisecond,
		FlushInterval: time.Second,
		QueueCapacity: 100000,
	}
}

// Dependencies holds the recorder's collaborators. Points may be nil.
type Dependencies struct {
	Backend storage.Backend
	Points  PointSink
	Session *session.Context
	Logger  *slog.Logger
	Now     func() time.Time
}

// Stats counts what the recorder has written.
type Stats struct {
	Queued         int    `json:"queued"`
	SamplesWritten uint64 `json:"samplesWritten"`
	TrailsWritten  uint64 `json:"trailsWritten"`
	Dropped        uint64 `json:"dropped"`
	WriteErrors    uint64 `json:"writeErrors"`
}

type wheelEvent struct {
	record  core.WheelRecord
	removed bool
	at      time.Time
}

// Recorder implements engine.Observer and wheel.Observer.
type Recorder struct {
	cfg  Config
	deps Dependencies
	log  *slog.Logger

	running   atomic.Bool
	sessionID atomic.Value // string

	samples *queue.Queue[core.GripSample]
	trails  *queue.Queue[core.SkidTrail]
	wheels  *queue.Queue[wheelEvent]

	namesMu sync.RWMutex
	names   map[int64]string
	retired []int64 // removed wheels whose name is dropped after the next flush

	// tick goroutine only
	lastSample map[int64]time.Duration
	open       map[int64]*core.SkidTrail
	lastSim    time.Duration

	flushMu sync.Mutex
	stop    chan struct{}
	done    chan struct{}

	samplesWritten atomic.Uint64
	trailsWritten  atomic.Uint64
	writeErrors    atomic.Uint64

	writtenCounter metric.Int64Counter
	errorCounter   metric.Int64Counter
}

// New creates a recorder. It records nothing until Start.
func New(cfg Config, deps Dependencies) (*Recorder, error) {
	if deps.Backend == nil {
		return nil, fmt.Errorf("recorder: storage backend is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}

	r := &Recorder{
		cfg:        cfg,
		deps:       deps,
		log:        deps.Logger.With("component", "recorder"),
		samples:    queue.New[core.GripSample](cfg.QueueCapacity),
		trails:     queue.New[core.SkidTrail](cfg.QueueCapacity),
		wheels:     queue.New[wheelEvent](cfg.QueueCapacity),
		names:      make(map[int64]string),
		lastSample: make(map[int64]time.Duration),
		open:       make(map[int64]*core.SkidTrail),
	}
	r.sessionID.Store("")

	m := meter()
	var err error
	if r.writtenCounter, err = m.Int64Counter("recorder.written",
		metric.WithDescription("Telemetry records written to storage")); err != nil {
		return nil, err
	}
	if r.errorCounter, err = m.Int64Counter("recorder.write.errors",
		metric.WithDescription("Failed storage or point writes")); err != nil {
		return nil, err
	}
	return r, nil
}

// SessionID returns the active session id, or "" when stopped.
func (r *Recorder) SessionID() string {
	return r.sessionID.Load().(string)
}

// Running reports whether a session is being recorded.
func (r *Recorder) Running() bool {
	return r.running.Load()
}

// Start opens a new session in the backend and starts the flusher.
func (r *Recorder) Start(ctx context.Context) error {
	if r.running.Load() {
		return ErrAlreadyStarted
	}

	s := core.Session{
		ID:               uuid.NewString(),
		WorldName:        r.cfg.WorldName,
		ExtensionVersion: r.cfg.Version,
		StartTime:        r.deps.Now(),
	}
	if err := r.deps.Backend.StartSession(&s); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	r.deps.Session.Begin(s)
	r.sessionID.Store(s.ID)

	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.running.Store(true)
	go r.flushLoop(r.stop, r.done)

	r.log.Info("Telemetry session started", "session", s.ID, "world", s.WorldName)
	return nil
}

// Stop closes open trails, drains the queues and ends the session. It must
// be called from the goroutine that drives the observers.
func (r *Recorder) Stop(ctx context.Context) error {
	if !r.running.Swap(false) {
		return nil
	}
	close(r.stop)
	<-r.done

	r.EndTrails(r.lastSim)

	var errs []error
	if err := r.Flush(ctx); err != nil {
		errs = append(errs, err)
	}

	end := r.deps.Now()
	if err := r.deps.Backend.EndSession(end); err != nil {
		errs = append(errs, fmt.Errorf("failed to end session: %w", err))
	}
	r.deps.Session.End(end)

	r.log.Info("Telemetry session ended", "session", r.SessionID(), "stats", r.Stats())
	r.sessionID.Store("")
	return errors.Join(errs...)
}

// Stats returns write counters and the current queue depth.
func (r *Recorder) Stats() Stats {
	return Stats{
		Queued:         r.samples.Len() + r.trails.Len() + r.wheels.Len(),
		SamplesWritten: r.samplesWritten.Load(),
		TrailsWritten:  r.trailsWritten.Load(),
		Dropped:        r.samples.Dropped() + r.trails.Dropped() + r.wheels.Dropped(),
		WriteErrors:    r.writeErrors.Load(),
	}
}

// WheelAdded implements wheel.Observer.
func (r *Recorder) WheelAdded(d *wheel.Descriptor) {
	if !r.running.Load() {
		return
	}
	r.namesMu.Lock()
	r.names[d.ID()] = d.Handle.Name()
	r.namesMu.Unlock()

	r.wheels.Push(wheelEvent{record: d.Record(r.SessionID())})
}

// WheelRemoved implements wheel.Observer.
func (r *Recorder) WheelRemoved(d *wheel.Descriptor, reason error) {
	if !r.running.Load() {
		return
	}
	id := d.ID()
	r.closeTrail(id, r.lastSim)
	delete(r.lastSample, id)
	r.wheels.Push(wheelEvent{record: core.WheelRecord{InstanceID: id}, removed: true, at: r.deps.Now()})

	r.namesMu.Lock()
	r.retired = append(r.retired, id)
	r.namesMu.Unlock()
}

// GripComputed implements engine.Observer. Samples are taken at most once
// per SamplePeriod of simulation time per wheel.
func (r *Recorder) GripComputed(d *wheel.Descriptor, res grip.Result, simTime time.Duration) {
	r.lastSim = simTime
	if !r.running.Load() {
		return
	}
	id := d.ID()
	if last, ok := r.lastSample[id]; ok && simTime-last < r.cfg.SamplePeriod {
		return
	}
	r.lastSample[id] = simTime

	r.samples.Push(core.GripSample{
		SessionID:          r.SessionID(),
		InstanceID:         id,
		SimTime:            simTime.Seconds(),
		Time:               r.deps.Now(),
		ForwardSlip:        res.ForwardSlip,
		SidewaysSlip:       res.SidewaysSlip,
		Overload:           res.Overload,
		ForwardMultiplier:  res.ForwardMultiplier,
		SidewaysMultiplier: res.SidewaysMultiplier,
	})
}

// SkidmarkAppended implements engine.Observer.
func (r *Recorder) SkidmarkAppended(d *wheel.Descriptor, pos core.Vector3, opacity float64, index int, simTime time.Duration) {
	if !r.running.Load() {
		return
	}
	id := d.ID()
	t, ok := r.open[id]
	if !ok {
		t = &core.SkidTrail{
			SessionID:  r.SessionID(),
			InstanceID: id,
			StartedAt:  simTime.Seconds(),
		}
		r.open[id] = t
	}
	t.Points = append(t.Points, core.SkidPoint{Position: pos, Opacity: opacity})
	t.EndedAt = simTime.Seconds()
}

// SkidmarkEnded implements engine.Observer.
func (r *Recorder) SkidmarkEnded(d *wheel.Descriptor, simTime time.Duration) {
	if !r.running.Load() {
		return
	}
	r.closeTrail(d.ID(), simTime)
}

// EndTrails closes every open trail, for when skid marks are switched off
// while a mark is being drawn. Tick goroutine only.
func (r *Recorder) EndTrails(simTime time.Duration) {
	for id := range r.open {
		r.closeTrail(id, simTime)
	}
}

func (r *Recorder) closeTrail(id int64, simTime time.Duration) {
	t, ok := r.open[id]
	if !ok {
		return
	}
	delete(r.open, id)
	if end := simTime.Seconds(); end > t.EndedAt {
		t.EndedAt = end
	}
	r.trails.Push(*t)
}

func (r *Recorder) flushLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := r.Flush(context.Background()); err != nil {
				r.log.Warn("Telemetry flush failed", "error", err)
			}
		}
	}
}

// wheelNames snapshots the name table and takes the retired ids. Everything
// queued for a retired wheel was pushed before it was retired.
func (r *Recorder) wheelNames() (map[int64]string, []int64) {
	r.namesMu.Lock()
	defer r.namesMu.Unlock()
	out := make(map[int64]string, len(r.names))
	for k, v := range r.names {
		out[k] = v
	}
	retired := r.retired
	r.retired = nil
	return out, retired
}

// forget drops the names of retired wheels, or hands them back when their
// data is still queued for a retry.
func (r *Recorder) forget(retired []int64, pending bool) {
	if len(retired) == 0 {
		return
	}
	r.namesMu.Lock()
	defer r.namesMu.Unlock()
	if pending {
		r.retired = append(r.retired, retired...)
		return
	}
	for _, id := range retired {
		delete(r.names, id)
	}
}

func (r *Recorder) failed(ctx context.Context, kind string, n int) {
	r.writeErrors.Add(uint64(n))
	r.errorCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

// Flush drains all queues once. Failed storage batches go back to the head
// of their queue and are retried on the next flush; point sink failures are
// only counted.
func (r *Recorder) Flush(ctx context.Context) error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	var errs []error
	backend := r.deps.Backend

	names, retired := r.wheelNames()
	pending := false
	defer func() { r.forget(retired, pending) }()

	// wheels first so samples and trails reference known rows
	events := r.wheels.GetAndEmpty()
	for i, ev := range events {
		var err error
		if ev.removed {
			err = backend.RemoveWheel(ev.record.InstanceID, ev.at)
		} else {
			rec := ev.record
			err = backend.RecordWheel(&rec)
		}
		if err != nil {
			r.wheels.PushFront(events[i:]...)
			r.failed(ctx, "wheel", 1)
			errs = append(errs, err)
			break
		}
	}

	samples := r.samples.GetAndEmpty()
	if len(samples) > 0 {
		if err := backend.RecordSamples(samples); err != nil {
			r.samples.PushFront(samples...)
			pending = true
			r.failed(ctx, "samples", 1)
			errs = append(errs, err)
		} else {
			r.samplesWritten.Add(uint64(len(samples)))
			r.writtenCounter.Add(ctx, int64(len(samples)), metric.WithAttributes(attribute.String("kind", "sample")))
			if r.deps.Points != nil {
				if err := r.deps.Points.WriteSamples(names, samples); err != nil {
					r.failed(ctx, "points", 1)
					errs = append(errs, err)
				}
			}
		}
	}

	trails := r.trails.GetAndEmpty()
	for i := range trails {
		t := trails[i]
		// a single section has no extent worth storing
		if len(t.Points) < 2 {
			continue
		}
		if err := backend.RecordSkidTrail(&t); err != nil {
			r.trails.PushFront(trails[i:]...)
			pending = true
			r.failed(ctx, "trail", 1)
			errs = append(errs, err)
			break
		}
		r.trailsWritten.Add(1)
		r.writtenCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "trail")))
		if r.deps.Points != nil {
			if err := r.deps.Points.WriteTrail(names[t.InstanceID], t); err != nil {
				r.failed(ctx, "points", 1)
				errs = append(errs, err)
			}
		}
	}

	if r.deps.Points != nil {
		if err := r.deps.Points.Flush(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
