package logging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGELF struct {
	mu   sync.Mutex
	msgs []*gelf.Message
	err  error
}

func (f *fakeGELF) WriteMessage(m *gelf.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m)
	return f.err
}

func (f *fakeGELF) messages() []*gelf.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*gelf.Message(nil), f.msgs...)
}

func TestGELFHandler_Fields(t *testing.T) {
	gw := &fakeGELF{}
	logger := slog.New(NewGELFHandler(gw, slog.LevelDebug))

	logger.Warn("wheel refresh failed", "count", 3, "ratio", 0.5, "ok", false)

	msgs := gw.messages()
	require.Len(t, msgs, 1)
	m := msgs[0]
	assert.Equal(t, "1.1", m.Version)
	assert.Equal(t, "wheel refresh failed", m.Short)
	assert.Equal(t, int32(4), m.Level)
	assert.Equal(t, InstrumentationName, m.Facility)
	assert.Equal(t, int64(3), m.Extra["_count"])
	assert.Equal(t, 0.5, m.Extra["_ratio"])
	assert.Equal(t, false, m.Extra["_ok"])
	assert.Greater(t, m.TimeUnix, 0.0)
}

func TestGELFHandler_Level(t *testing.T) {
	gw := &fakeGELF{}
	h := NewGELFHandler(gw, slog.LevelInfo)

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))

	slog.New(h).Debug("dropped")
	assert.Empty(t, gw.messages())
}

func TestGELFHandler_AttrsAndGroups(t *testing.T) {
	gw := &fakeGELF{}
	logger := slog.New(NewGELFHandler(gw, nil)).
		With("session", "abc").
		WithGroup("wheel").
		With("id", 7)

	logger.Info("added", "name", "FL", slog.Group("scale", "x", 1.0))

	msgs := gw.messages()
	require.Len(t, msgs, 1)
	extra := msgs[0].Extra
	assert.Equal(t, "abc", extra["_session"])
	assert.Equal(t, int64(7), extra["_wheel.id"])
	assert.Equal(t, "FL", extra["_wheel.name"])
	assert.Equal(t, 1.0, extra["_wheel.scale.x"])
}

func TestGELFHandler_WriteErrorDoesNotBlockOtherSinks(t *testing.T) {
	gw := &fakeGELF{err: errors.New("udp down")}
	var got []string
	spy := &recordingHandler{records: &got}

	logger := slog.New(NewMultiHandler(NewGELFHandler(gw, nil), spy))
	logger.Info("still logged")

	assert.Equal(t, []string{"still logged"}, got)
}

func TestSyslogLevel(t *testing.T) {
	assert.Equal(t, int32(7), syslogLevel(slog.LevelDebug))
	assert.Equal(t, int32(6), syslogLevel(slog.LevelInfo))
	assert.Equal(t, int32(4), syslogLevel(slog.LevelWarn))
	assert.Equal(t, int32(3), syslogLevel(slog.LevelError))
}

type recordingHandler struct {
	records *[]string
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	*h.records = append(*h.records, r.Message)
	return nil
}
func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }
