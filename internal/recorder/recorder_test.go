package recorder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/EllipseGrip/extension/internal/config"
	"github.com/EllipseGrip/extension/internal/grip"
	"github.com/EllipseGrip/extension/internal/session"
	"github.com/EllipseGrip/extension/internal/sim"
	"github.com/EllipseGrip/extension/internal/storage/memory"
	"github.com/EllipseGrip/extension/internal/wheel"
	"github.com/EllipseGrip/extension/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu      sync.Mutex
	names   map[int64]string
	samples []core.GripSample
	trails  []string
	flushes int
	err     error
}

func (s *fakeSink) WriteSamples(names map[int64]string, samples []core.GripSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = names
	s.samples = append(s.samples, samples...)
	return s.err
}

func (s *fakeSink) WriteTrail(name string, _ core.SkidTrail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trails = append(s.trails, name)
	return s.err
}

func (s *fakeSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

// flakyBackend fails RecordSamples while fail is set.
type flakyBackend struct {
	*memory.Backend
	fail bool
}

func (b *flakyBackend) RecordSamples(s []core.GripSample) error {
	if b.fail {
		return errors.New("disk full")
	}
	return b.Backend.RecordSamples(s)
}

func newDescriptor(id int64, name string) *wheel.Descriptor {
	return &wheel.Descriptor{
		Handle:            sim.NewWheel(id, sim.DefaultWheelParams(name, core.Vector3{})),
		LastSkidmarkIndex: -1,
	}
}

func testConfig() Config {
	return Config{
		SamplePeriod:  100 * time.Millisecond,
		FlushInterval: time.Hour,
		WorldName:     "Proving Ground",
		Version:       "test",
	}
}

func newTestRecorder(t *testing.T, cfg Config, sink PointSink) (*Recorder, *memory.Backend) {
	t.Helper()
	backend := memory.New(config.MemoryConfig{})
	require.NoError(t, backend.Init())
	deps := Dependencies{
		Backend: backend,
		Session: session.NewContext(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if sink != nil {
		deps.Points = sink
	}
	r, err := New(cfg, deps)
	require.NoError(t, err)
	return r, backend
}

func TestNew_RequiresBackend(t *testing.T) {
	_, err := New(testConfig(), Dependencies{})
	assert.Error(t, err)
}

func TestStartStop_Session(t *testing.T) {
	sess := session.NewContext()
	backend := memory.New(config.MemoryConfig{})
	r, err := New(testConfig(), Dependencies{Backend: backend, Session: sess})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	assert.True(t, r.Running())
	assert.NotEmpty(t, r.SessionID())
	assert.True(t, sess.Active())
	assert.Equal(t, "Proving Ground", sess.Get().WorldName)
	assert.ErrorIs(t, r.Start(ctx), ErrAlreadyStarted)

	require.NoError(t, r.Stop(ctx))
	assert.False(t, r.Running())
	assert.Empty(t, r.SessionID())
	assert.False(t, sess.Active())

	// second stop is a no-op
	assert.NoError(t, r.Stop(ctx))
}

func TestObservers_IgnoredWhenStopped(t *testing.T) {
	r, _ := newTestRecorder(t, testConfig(), nil)
	d := newDescriptor(1, "FL")

	r.WheelAdded(d)
	r.GripComputed(d, grip.Result{Overload: 0.5}, time.Second)
	r.SkidmarkAppended(d, core.Vector3{}, 1, 0, time.Second)

	assert.Equal(t, 0, r.Stats().Queued)
}

func TestGripComputed_RateLimited(t *testing.T) {
	r, backend := newTestRecorder(t, testConfig(), nil)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))

	d := newDescriptor(1, "FL")
	r.WheelAdded(d)
	for i := 0; i < 30; i++ {
		simTime := time.Duration(i) * 20 * time.Millisecond
		r.GripComputed(d, grip.Result{Overload: float64(i) / 30}, simTime)
	}
	require.NoError(t, r.Flush(ctx))

	w, ok := backend.GetWheel(1)
	require.True(t, ok)
	// 0..580ms every 20ms sampled at 100ms spacing
	assert.Len(t, w.Samples, 6)
	assert.Equal(t, "FL", w.Record.Name)
	assert.Equal(t, r.SessionID(), w.Samples[0].SessionID)
	assert.InDelta(t, 0.1, w.Samples[1].SimTime, 1e-9)
	assert.Equal(t, uint64(6), r.Stats().SamplesWritten)

	require.NoError(t, r.Stop(ctx))
}

func TestGripComputed_ZeroPeriodSamplesEveryTick(t *testing.T) {
	cfg := testConfig()
	cfg.SamplePeriod = 0
	r, backend := newTestRecorder(t, cfg, nil)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))

	d := newDescriptor(1, "FL")
	for i := 0; i < 5; i++ {
		r.GripComputed(d, grip.Result{}, time.Duration(i)*time.Millisecond)
	}
	require.NoError(t, r.Flush(ctx))

	w, ok := backend.GetWheel(1)
	require.True(t, ok)
	assert.Len(t, w.Samples, 5)
}

func TestSkidTrail_Lifecycle(t *testing.T) {
	sink := &fakeSink{}
	r, backend := newTestRecorder(t, testConfig(), sink)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))

	d := newDescriptor(7, "RR")
	r.WheelAdded(d)
	r.SkidmarkAppended(d, core.Vector3{X: 0}, 0.5, 0, time.Second)
	r.SkidmarkAppended(d, core.Vector3{X: 1}, 0.8, 1, 1100*time.Millisecond)
	r.SkidmarkAppended(d, core.Vector3{X: 2}, 0.3, 2, 1200*time.Millisecond)
	r.SkidmarkEnded(d, 1300*time.Millisecond)

	// a lone section is never stored
	r.SkidmarkAppended(d, core.Vector3{X: 5}, 0.2, 3, 2*time.Second)
	r.SkidmarkEnded(d, 2100*time.Millisecond)

	require.NoError(t, r.Flush(ctx))

	w, ok := backend.GetWheel(7)
	require.True(t, ok)
	require.Len(t, w.Trails, 1)
	trail := w.Trails[0]
	assert.Len(t, trail.Points, 3)
	assert.InDelta(t, 1.0, trail.StartedAt, 1e-9)
	assert.InDelta(t, 1.3, trail.EndedAt, 1e-9)
	assert.Equal(t, []string{"RR"}, sink.trails)
	assert.Equal(t, uint64(1), r.Stats().TrailsWritten)

	require.NoError(t, r.Stop(ctx))
}

func TestStop_ClosesOpenTrails(t *testing.T) {
	r, backend := newTestRecorder(t, testConfig(), nil)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))

	d := newDescriptor(3, "FR")
	r.WheelAdded(d)
	r.SkidmarkAppended(d, core.Vector3{X: 0}, 1, 0, time.Second)
	r.SkidmarkAppended(d, core.Vector3{X: 1}, 1, 1, 2*time.Second)

	require.NoError(t, r.Stop(ctx))

	w, ok := backend.GetWheel(3)
	require.True(t, ok)
	require.Len(t, w.Trails, 1)
}

func TestWheelRemoved_ClosesTrailAndStamps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	backend := memory.New(config.MemoryConfig{})
	r, err := New(testConfig(), Dependencies{
		Backend: backend,
		Now:     func() time.Time { return now },
	})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))

	d := newDescriptor(4, "RL")
	r.WheelAdded(d)
	r.SkidmarkAppended(d, core.Vector3{X: 0}, 1, 0, time.Second)
	r.SkidmarkAppended(d, core.Vector3{X: 1}, 1, 1, 2*time.Second)
	r.WheelRemoved(d, wheel.ErrStaleHandle)
	require.NoError(t, r.Flush(ctx))

	w, ok := backend.GetWheel(4)
	require.True(t, ok)
	assert.Len(t, w.Trails, 1)
	assert.Equal(t, now, w.Record.RemovedAt)

	require.NoError(t, r.Stop(ctx))
}

func TestFlush_RetriesFailedSamples(t *testing.T) {
	backend := &flakyBackend{Backend: memory.New(config.MemoryConfig{}), fail: true}
	sink := &fakeSink{}
	r, err := New(testConfig(), Dependencies{Backend: backend, Points: sink})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))

	d := newDescriptor(1, "FL")
	r.WheelAdded(d)
	r.GripComputed(d, grip.Result{Overload: 1}, 0)
	r.GripComputed(d, grip.Result{Overload: 1}, time.Second)

	assert.Error(t, r.Flush(ctx))
	assert.Equal(t, 2, r.Stats().Queued)
	assert.Equal(t, uint64(1), r.Stats().WriteErrors)
	assert.Empty(t, sink.samples, "points are written only after storage succeeds")

	backend.fail = false
	require.NoError(t, r.Flush(ctx))
	assert.Equal(t, 0, r.Stats().Queued)
	assert.Len(t, sink.samples, 2)
	assert.Equal(t, "FL", sink.names[1])

	w, ok := backend.GetWheel(1)
	require.True(t, ok)
	assert.Len(t, w.Samples, 2)

	require.NoError(t, r.Stop(ctx))
}

func TestFlush_PointSinkErrorCounted(t *testing.T) {
	sink := &fakeSink{err: errors.New("influx down")}
	r, _ := newTestRecorder(t, testConfig(), sink)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))

	d := newDescriptor(1, "FL")
	r.GripComputed(d, grip.Result{}, 0)

	assert.Error(t, r.Flush(ctx))
	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.SamplesWritten)
	assert.Equal(t, uint64(1), stats.WriteErrors)
	assert.Equal(t, 0, stats.Queued)

	assert.Error(t, r.Stop(ctx))
}

func TestFlushLoop_Background(t *testing.T) {
	cfg := testConfig()
	cfg.FlushInterval = 10 * time.Millisecond
	r, backend := newTestRecorder(t, cfg, nil)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	defer r.Stop(ctx)

	d := newDescriptor(1, "FL")
	r.WheelAdded(d)

	assert.Eventually(t, func() bool {
		_, ok := backend.GetWheel(1)
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestEndTrails(t *testing.T) {
	r, _ := newTestRecorder(t, testConfig(), nil)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))

	a, b := newDescriptor(1, "FL"), newDescriptor(2, "FR")
	r.SkidmarkAppended(a, core.Vector3{X: 0}, 1, 0, time.Second)
	r.SkidmarkAppended(b, core.Vector3{X: 0}, 1, 0, time.Second)
	assert.Equal(t, 0, r.trails.Len())

	r.EndTrails(2 * time.Second)
	assert.Equal(t, 2, r.trails.Len())
	assert.Empty(t, r.open)

	r.EndTrails(3 * time.Second)
	assert.Equal(t, 2, r.trails.Len())

	require.NoError(t, r.Stop(ctx))
}

func TestWheelRemoved_ForgetsNameAfterFlush(t *testing.T) {
	backend := &flakyBackend{Backend: memory.New(config.MemoryConfig{}), fail: true}
	sink := &fakeSink{}
	r, err := New(testConfig(), Dependencies{Backend: backend, Points: sink})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))

	hasName := func(id int64) bool {
		r.namesMu.RLock()
		defer r.namesMu.RUnlock()
		_, ok := r.names[id]
		return ok
	}

	d := newDescriptor(4, "RL")
	r.WheelAdded(d)
	r.GripComputed(d, grip.Result{Overload: 1}, 0)
	r.SkidmarkAppended(d, core.Vector3{X: 0}, 1, 0, time.Second)
	r.SkidmarkAppended(d, core.Vector3{X: 1}, 1, 1, 2*time.Second)
	r.WheelRemoved(d, wheel.ErrStaleHandle)

	// samples still queued for a retry keep the name
	assert.Error(t, r.Flush(ctx))
	assert.True(t, hasName(4))

	backend.fail = false
	require.NoError(t, r.Flush(ctx))
	assert.Equal(t, "RL", sink.names[4])
	assert.Equal(t, []string{"RL"}, sink.trails)
	assert.False(t, hasName(4))

	require.NoError(t, r.Stop(ctx))
}
