// Package dispatch routes decoded stream events to registered
// processors. Processors are side-effecting consumers: every entry
// whose validator accepts the payload runs, in priority order, each
// inside its own failure boundary.
package dispatch

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spindleworks/spindle/pkg/logger"
)

// Processor is one behavior bound to an event type. Namespace
// distinguishes features reacting to the same type; Priority orders
// them (higher runs first). A nil Validate accepts everything. Render
// is an optional presentation hook for hosts that draw payloads.
type Processor struct {
	Type      string
	Namespace string
	Priority  int
	Validate  func(payload any) bool
	Execute   func(ctx *Context, payload any) error
	Render    func(payload any) string
}

// Registry is a priority-ordered processor table keyed by event type.
type Registry struct {
	mu    sync.RWMutex
	table map[string][]Processor
	log   *logger.ComponentLogger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		table: make(map[string][]Processor),
		log:   logger.WithComponent("dispatch"),
	}
}

// Register installs a processor. Re-registering a (type, namespace)
// pair replaces the prior entry; the table never holds duplicate rows.
// Entries with no type or no execute function are rejected with a
// warning.
func (r *Registry) Register(p Processor) {
	if p.Type == "" || p.Execute == nil {
		r.log.Warn("ignoring invalid processor registration (type=%q, namespace=%q)", p.Type, p.Namespace)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.removeLocked(p.Type, p.Namespace)
	rows = append(rows, p)
	// Bubble the new entry up past strictly lower priorities so ties
	// keep registration order.
	for i := len(rows) - 1; i > 0; i-- {
		if rows[i].Priority > rows[i-1].Priority {
			rows[i], rows[i-1] = rows[i-1], rows[i]
		} else {
			break
		}
	}
	r.table[p.Type] = rows
	r.log.Debug("registered processor %s/%s (priority %d)", p.Type, p.Namespace, p.Priority)
}

// RegisterMany installs processors in order.
func (r *Registry) RegisterMany(procs ...Processor) {
	for _, p := range procs {
		r.Register(p)
	}
}

// Unregister removes the (type, namespace) entry. An empty namespace
// removes every entry for the type. Unregistering something absent is a
// no-op.
func (r *Registry) Unregister(eventType, namespace string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if namespace == "" {
		delete(r.table, eventType)
		return
	}
	rows := r.removeLocked(eventType, namespace)
	if len(rows) == 0 {
		delete(r.table, eventType)
		return
	}
	r.table[eventType] = rows
}

// removeLocked filters out the (type, namespace) row, returning the
// remaining rows in order. Callers must hold the write lock.
func (r *Registry) removeLocked(eventType, namespace string) []Processor {
	rows := r.table[eventType]
	kept := make([]Processor, 0, len(rows))
	for _, row := range rows {
		if row.Namespace != namespace {
			kept = append(kept, row)
		}
	}
	return kept
}

// Dispatch runs every processor registered for the type whose validator
// accepts the payload, highest priority first. A processor error or
// panic is logged and does not stop the remaining processors. Returns
// the number of processors that ran.
func (r *Registry) Dispatch(eventType string, payload any, ctx *Context) int {
	r.mu.RLock()
	rows := make([]Processor, len(r.table[eventType]))
	copy(rows, r.table[eventType])
	r.mu.RUnlock()

	ran := 0
	for _, p := range rows {
		if p.Validate != nil && !p.Validate(payload) {
			continue
		}
		ran++
		if err := r.run(p, ctx, payload); err != nil {
			r.log.Warn("processor %s/%s failed: %v", p.Type, p.Namespace, err)
		}
	}
	return ran
}

// run executes one processor inside a recover boundary.
func (r *Registry) run(p Processor, ctx *Context, payload any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("processor panicked: %v", rec)
		}
	}()
	return p.Execute(ctx, payload)
}

// Render returns the highest-priority validated renderer's output for
// the payload, or false when no registered processor renders it.
func (r *Registry) Render(eventType string, payload any) (string, bool) {
	r.mu.RLock()
	rows := make([]Processor, len(r.table[eventType]))
	copy(rows, r.table[eventType])
	r.mu.RUnlock()

	for _, p := range rows {
		if p.Render == nil {
			continue
		}
		if p.Validate != nil && !p.Validate(payload) {
			continue
		}
		return p.Render(payload), true
	}
	return "", false
}

// Processors returns a copy of the ordered rows for a type.
func (r *Registry) Processors(eventType string) []Processor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := make([]Processor, len(r.table[eventType]))
	copy(rows, r.table[eventType])
	return rows
}

// Types returns every event type with at least one processor, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.table))
	for t := range r.table {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
