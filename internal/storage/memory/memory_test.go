package memory

import (
	"testing"
	"time"

	"github.com/EllipseGrip/extension/internal/config"
	"github.com/EllipseGrip/extension/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testSession() *core.Session {
	return &core.Session{
		ID:               "11111111-2222-4333-8444-555555555555",
		WorldName:        "Test Track",
		ExtensionVersion: "1.2.0",
		StartTime:        t0,
	}
}

func TestInitClose(t *testing.T) {
	b := New(config.MemoryConfig{})
	assert.NoError(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestCallsOutsideSession(t *testing.T) {
	b := New(config.MemoryConfig{})

	assert.ErrorIs(t, b.EndSession(t0), core.ErrNoSession)
	assert.ErrorIs(t, b.RecordWheel(&core.WheelRecord{InstanceID: 1}), core.ErrNoSession)
	assert.ErrorIs(t, b.RemoveWheel(1, t0), core.ErrNoSession)
	assert.ErrorIs(t, b.RecordSamples([]core.GripSample{{InstanceID: 1}}), core.ErrNoSession)
	assert.ErrorIs(t, b.RecordSkidTrail(&core.SkidTrail{InstanceID: 1}), core.ErrNoSession)
}

func TestRecordWheel(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(testSession()))

	rec := &core.WheelRecord{InstanceID: 7, Name: "FL", Radius: 0.35}
	require.NoError(t, b.RecordWheel(rec))
	assert.Equal(t, testSession().ID, rec.SessionID, "session id is stamped on the record")

	// re-recording replaces the record but keeps the order slot
	require.NoError(t, b.RecordWheel(&core.WheelRecord{InstanceID: 8, Name: "FR"}))
	require.NoError(t, b.RecordWheel(&core.WheelRecord{InstanceID: 7, Name: "FL2"}))

	assert.Equal(t, []int64{7, 8}, b.WheelIDs())
	w, ok := b.GetWheel(7)
	require.True(t, ok)
	assert.Equal(t, "FL2", w.Record.Name)

	_, ok = b.GetWheel(99)
	assert.False(t, ok)
}

func TestRemoveWheel(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(testSession()))
	require.NoError(t, b.RecordWheel(&core.WheelRecord{InstanceID: 1}))

	require.NoError(t, b.RemoveWheel(1, t0.Add(time.Second)))
	require.NoError(t, b.RemoveWheel(42, t0), "unknown wheels are ignored")

	w, _ := b.GetWheel(1)
	assert.Equal(t, t0.Add(time.Second), w.Record.RemovedAt)
	assert.Len(t, b.WheelIDs(), 1)
}

func TestRecordSamples_GroupsByWheel(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(testSession()))
	require.NoError(t, b.RecordWheel(&core.WheelRecord{InstanceID: 1}))

	require.NoError(t, b.RecordSamples([]core.GripSample{
		{InstanceID: 1, SimTime: 0.1},
		{InstanceID: 2, SimTime: 0.1},
		{InstanceID: 1, SimTime: 0.2},
	}))
	require.NoError(t, b.RecordSamples(nil))

	w1, _ := b.GetWheel(1)
	require.Len(t, w1.Samples, 2)
	assert.Equal(t, 0.2, w1.Samples[1].SimTime)
	assert.Equal(t, testSession().ID, w1.Samples[0].SessionID)

	// samples for a wheel not yet recorded create a placeholder
	w2, ok := b.GetWheel(2)
	require.True(t, ok)
	assert.Equal(t, int64(2), w2.Record.InstanceID)
	assert.Equal(t, []int64{1, 2}, b.WheelIDs())
}

func TestGetWheel_ReturnsCopy(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(testSession()))
	require.NoError(t, b.RecordSamples([]core.GripSample{{InstanceID: 1, Overload: 0.5}}))

	w, _ := b.GetWheel(1)
	w.Samples[0].Overload = 99

	again, _ := b.GetWheel(1)
	assert.Equal(t, 0.5, again.Samples[0].Overload)
}

func TestStartSession_Resets(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(testSession()))
	require.NoError(t, b.RecordWheel(&core.WheelRecord{InstanceID: 1}))
	require.NoError(t, b.EndSession(t0))

	require.NoError(t, b.StartSession(testSession()))
	assert.Empty(t, b.WheelIDs())
}

func TestEndSession_NoOutputDir(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(testSession()))
	require.NoError(t, b.EndSession(t0.Add(time.Minute)))
	assert.Empty(t, b.ExportedFilePath())

	// a second end has no session to close
	assert.ErrorIs(t, b.EndSession(t0), core.ErrNoSession)
}
