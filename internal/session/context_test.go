package session

import (
	"sync"
	"testing"
	"time"

	"github.com/EllipseGrip/extension/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestContext_Defaults(t *testing.T) {
	ctx := NewContext()

	assert.False(t, ctx.Active())
	assert.Empty(t, ctx.ID())
	assert.Equal(t, "No world loaded", ctx.Get().WorldName)
}

func TestContext_BeginEnd(t *testing.T) {
	ctx := NewContext()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ctx.Begin(core.Session{ID: "abc", WorldName: "Test Track", StartTime: start})
	assert.True(t, ctx.Active())
	assert.Equal(t, "abc", ctx.ID())

	ctx.End(start.Add(time.Minute))
	assert.False(t, ctx.Active())
	assert.Empty(t, ctx.ID())
	assert.Equal(t, start.Add(time.Minute), ctx.Get().EndTime)

	// ending twice keeps the first end time
	ctx.End(start.Add(time.Hour))
	assert.Equal(t, start.Add(time.Minute), ctx.Get().EndTime)
}

func TestContext_ThreadSafe(t *testing.T) {
	ctx := NewContext()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ctx.Begin(core.Session{ID: "x"})
		}()
		go func() {
			defer wg.Done()
			_ = ctx.Get()
			_ = ctx.ID()
		}()
	}
	wg.Wait()
	assert.Equal(t, "x", ctx.ID())
}
