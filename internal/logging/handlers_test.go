package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingHandler accepts every level and fails every record.
type failingHandler struct {
	slog.Handler
}

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("sink down")
}

func textHandler(buf *bytes.Buffer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})
}

func TestMultiHandler(t *testing.T) {
	t.Run("fans out and skips nil", func(t *testing.T) {
		var a, b bytes.Buffer
		multi := NewMultiHandler(nil, textHandler(&a, slog.LevelInfo), nil, textHandler(&b, slog.LevelInfo))
		require.Len(t, multi.handlers, 2)

		slog.New(multi).Info("overload", "wheel", "RR")
		assert.Contains(t, a.String(), "overload")
		assert.Contains(t, b.String(), "overload")
	})

	t.Run("enabled if any sink is", func(t *testing.T) {
		var a, b bytes.Buffer
		ctx := context.Background()
		infoOnly := NewMultiHandler(textHandler(&a, slog.LevelInfo))
		assert.False(t, infoOnly.Enabled(ctx, slog.LevelDebug))
		assert.True(t, infoOnly.Enabled(ctx, slog.LevelInfo))

		both := NewMultiHandler(textHandler(&a, slog.LevelInfo), textHandler(&b, slog.LevelDebug))
		assert.True(t, both.Enabled(ctx, slog.LevelDebug))

		assert.False(t, NewMultiHandler().Enabled(ctx, slog.LevelError))
	})

	t.Run("per sink level", func(t *testing.T) {
		var info, debug bytes.Buffer
		logger := slog.New(NewMultiHandler(textHandler(&info, slog.LevelInfo), textHandler(&debug, slog.LevelDebug)))
		logger.Debug("segment appended")

		assert.Empty(t, info.String())
		assert.Contains(t, debug.String(), "segment appended")
	})

	t.Run("failing sink does not stop the others", func(t *testing.T) {
		var buf bytes.Buffer
		multi := NewMultiHandler(failingHandler{}, textHandler(&buf, slog.LevelInfo))

		r := slog.NewRecord(time.Time{}, slog.LevelInfo, "still delivered", 0)
		assert.Error(t, multi.Handle(context.Background(), r))
		assert.Contains(t, buf.String(), "still delivered")
	})

	t.Run("attrs and groups", func(t *testing.T) {
		var buf bytes.Buffer
		multi := NewMultiHandler(textHandler(&buf, slog.LevelInfo))

		slog.New(multi.WithAttrs([]slog.Attr{slog.String("component", "engine")})).Info("a")
		slog.New(multi.WithGroup("wheel")).Info("b", "id", 7)

		assert.Contains(t, buf.String(), "component=engine")
		assert.Contains(t, buf.String(), "wheel.id=7")
		assert.Same(t, multi, multi.WithGroup(""))
	})
}

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	debug := false
	h := NewContextHandler(textHandler(&buf, slog.LevelInfo), func() []slog.Attr {
		return []slog.Attr{slog.Bool("debug", debug)}
	})
	logger := slog.New(h)

	logger.Info("first")
	debug = true
	logger.With("component", "registry").Info("second")
	logger.WithGroup("g").Info("third", "k", "v")

	out := buf.String()
	assert.Contains(t, out, "debug=false")
	assert.Contains(t, out, "component=registry")
	assert.Contains(t, out, "debug=true")
	assert.Contains(t, out, "g.k=v")
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.Same(t, h, h.WithGroup(""))
}

func TestContextHandler_NilProvider(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewContextHandler(textHandler(&buf, slog.LevelInfo), nil)).Info("plain")
	assert.Contains(t, buf.String(), "plain")
}
