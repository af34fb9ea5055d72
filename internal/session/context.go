// Package session tracks the telemetry session the extension is recording.
package session

import (
	"sync"
	"time"

	"github.com/EllipseGrip/extension/pkg/core"
)

// Context holds the current session
type Context struct {
	mu      sync.RWMutex
	session core.Session
	active  bool
}

// NewContext creates a new Context with no active session
func NewContext() *Context {
	return &Context{
		session: core.Session{WorldName: "No world loaded"},
	}
}

// Get returns a copy of the current session
func (c *Context) Get() core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Active reports whether a session is open
func (c *Context) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// ID returns the current session id, or "" when none is open
func (c *Context) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.active {
		return ""
	}
	return c.session.ID
}

// Begin makes s the current session
func (c *Context) Begin(s core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.active = true
}

// End closes the current session, keeping it readable
func (c *Context) End(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.session.EndTime = at
	c.active = false
}
