package dispatch

import (
	"github.com/spindleworks/spindle/pkg/chat"
	"github.com/spindleworks/spindle/pkg/diffstate"
	"github.com/spindleworks/spindle/pkg/logger"
)

// Context carries the collaborators a processor may act on. It is built
// by the host and passed through Dispatch; processors never reach for
// globals. ThreadID routes store writes; empty means the current thread.
type Context struct {
	Store    *chat.Store
	Diff     *diffstate.Engine
	Log      *logger.ComponentLogger
	ThreadID string
	Values   map[string]any
}

// NewContext creates a processor context. Log falls back to a dispatch
// component logger so processors can always log.
func NewContext(store *chat.Store, diff *diffstate.Engine) *Context {
	return &Context{
		Store:  store,
		Diff:   diff,
		Log:    logger.WithComponent("processor"),
		Values: make(map[string]any),
	}
}

// WithThread targets a thread for store writes made by processors.
func (c *Context) WithThread(threadID string) *Context {
	c.ThreadID = threadID
	return c
}

// WithValue sets an arbitrary host value and returns the context for
// chaining during construction.
func (c *Context) WithValue(key string, value any) *Context {
	if c.Values == nil {
		c.Values = make(map[string]any)
	}
	c.Values[key] = value
	return c
}

// Value reads a host value.
func (c *Context) Value(key string) (any, bool) {
	v, ok := c.Values[key]
	return v, ok
}
