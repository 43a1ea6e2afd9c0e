package diffstate

import (
	"sync"
)

// Mode controls which side of an active diff a key exposes as its clean
// state.
type Mode int

const (
	// DefaultAccept exposes the post-change value during an active diff.
	DefaultAccept Mode = iota
	// HoldAccept exposes the pre-change value during an active diff; the
	// post-change value is only reachable through ComputedState.
	HoldAccept
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case DefaultAccept:
		return "defaultAccept"
	case HoldAccept:
		return "holdAccept"
	default:
		return "unknown"
	}
}

// DiffState is the value pair a key holds. Outside diff mode Old and New
// are the same value.
type DiffState struct {
	Old        any
	New        any
	InDiffMode bool
}

// maxHistory bounds the per-key undo and redo stacks; the oldest entries
// are dropped first.
const maxHistory = 100

type subEntry struct {
	id int
	fn func(DiffState)
}

// keyState is the full per-key record: current value pair, undo/redo
// stacks, presentation mode, named setters, and subscribers.
type keyState struct {
	current DiffState
	history []DiffState
	redo    []DiffState
	mode    Mode
	setters map[string]Setter
	subs    []subEntry
}

// Engine tracks diffable state per key with two-stack undo/redo history.
// Writes are last-writer-wins; the history stacks provide recoverability.
type Engine struct {
	mu     sync.RWMutex
	keys   map[string]*keyState
	nextID int
}

// NewEngine creates an empty Engine.
func NewEngine() *Engine {
	return &Engine{
		keys: make(map[string]*keyState),
	}
}

// Register initializes a key with an initial value and presentation mode.
// Registering an existing key resets it: fresh value pair, empty history,
// setters and subscribers dropped.
func (e *Engine) Register(key string, initial any, mode Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.keys[key] = &keyState{
		current: DiffState{Old: initial, New: initial},
		mode:    mode,
		setters: make(map[string]Setter),
	}
}

// getOrCreate returns the state for key, creating it with DefaultAccept
// mode when absent. Callers must hold the write lock.
func (e *Engine) getOrCreate(key string) (*keyState, bool) {
	if ks, ok := e.keys[key]; ok {
		return ks, false
	}
	ks := &keyState{setters: make(map[string]Setter)}
	e.keys[key] = ks
	return ks, true
}

// SetState performs a clean update: Old and New both become value and
// diff mode ends. The prior state is pushed onto history and the redo
// stack is cleared.
func (e *Engine) SetState(key string, value any) {
	e.mu.Lock()
	ks, created := e.getOrCreate(key)
	if !created {
		ks.push(ks.current)
	}
	ks.current = DiffState{Old: value, New: value}
	ks.redo = nil
	snapshot, subs := ks.snapshot()
	e.mu.Unlock()

	notify(subs, snapshot)
}

// NewDiffState enters (or extends) diff mode with value as the new side.
// When the key was not previously in diff mode the prior New becomes the
// baseline; when it was, the original baseline is preserved so diffs
// accumulate against it rather than against each other. The prior state
// is pushed onto history and the redo stack is cleared.
func (e *Engine) NewDiffState(key string, value any) {
	e.mu.Lock()
	ks, created := e.getOrCreate(key)
	if !created {
		ks.push(ks.current)
	}
	baseline := ks.current.New
	if ks.current.InDiffMode {
		baseline = ks.current.Old
	}
	ks.current = DiffState{Old: baseline, New: value, InDiffMode: true}
	ks.redo = nil
	snapshot, subs := ks.snapshot()
	e.mu.Unlock()

	notify(subs, snapshot)
}

// AcceptAllDiffs collapses an active diff onto its new side. Returns
// false without mutating when the key is absent or not in diff mode.
func (e *Engine) AcceptAllDiffs(key string) bool {
	e.mu.Lock()
	ks, ok := e.keys[key]
	if !ok || !ks.current.InDiffMode {
		e.mu.Unlock()
		return false
	}
	ks.current = DiffState{Old: ks.current.New, New: ks.current.New}
	ks.redo = nil
	snapshot, subs := ks.snapshot()
	e.mu.Unlock()

	notify(subs, snapshot)
	return true
}

// RejectAllDiffs collapses an active diff back onto its baseline. Returns
// false without mutating when the key is absent or not in diff mode.
func (e *Engine) RejectAllDiffs(key string) bool {
	e.mu.Lock()
	ks, ok := e.keys[key]
	if !ok || !ks.current.InDiffMode {
		e.mu.Unlock()
		return false
	}
	ks.current = DiffState{Old: ks.current.Old, New: ks.current.Old}
	ks.redo = nil
	snapshot, subs := ks.snapshot()
	e.mu.Unlock()

	notify(subs, snapshot)
	return true
}

// Undo restores the most recent history entry, pushing the current state
// onto the redo stack. Returns false when there is nothing to undo.
func (e *Engine) Undo(key string) bool {
	e.mu.Lock()
	ks, ok := e.keys[key]
	if !ok || len(ks.history) == 0 {
		e.mu.Unlock()
		return false
	}
	prev := ks.history[len(ks.history)-1]
	ks.history = ks.history[:len(ks.history)-1]
	if len(ks.redo) >= maxHistory {
		ks.redo = ks.redo[1:]
	}
	ks.redo = append(ks.redo, ks.current)
	ks.current = prev
	snapshot, subs := ks.snapshot()
	e.mu.Unlock()

	notify(subs, snapshot)
	return true
}

// Redo restores the most recent undone entry, pushing the current state
// back onto history. Returns false when there is nothing to redo.
func (e *Engine) Redo(key string) bool {
	e.mu.Lock()
	ks, ok := e.keys[key]
	if !ok || len(ks.redo) == 0 {
		e.mu.Unlock()
		return false
	}
	next := ks.redo[len(ks.redo)-1]
	ks.redo = ks.redo[:len(ks.redo)-1]
	ks.push(ks.current)
	ks.current = next
	snapshot, subs := ks.snapshot()
	e.mu.Unlock()

	notify(subs, snapshot)
	return true
}

// CleanState returns the externally visible value for key: the new side
// under DefaultAccept, the baseline under HoldAccept. Returns nil for an
// unknown key.
func (e *Engine) CleanState(key string) any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ks, ok := e.keys[key]
	if !ok {
		return nil
	}
	if ks.mode == HoldAccept {
		return ks.current.Old
	}
	return ks.current.New
}

// ComputedState returns the post-change value regardless of mode. This is
// the only way to observe the new side of a HoldAccept key during an
// active diff.
func (e *Engine) ComputedState(key string) any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ks, ok := e.keys[key]
	if !ok {
		return nil
	}
	return ks.current.New
}

// State returns the full value pair for key.
func (e *Engine) State(key string) (DiffState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ks, ok := e.keys[key]
	if !ok {
		return DiffState{}, false
	}
	return ks.current, true
}

// Keys returns the registered key names.
func (e *Engine) Keys() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys := make([]string, 0, len(e.keys))
	for key := range e.keys {
		keys = append(keys, key)
	}
	return keys
}

// Subscribe registers fn to run after every state change on key. The
// callback runs synchronously on the mutating goroutine. The returned
// function removes the subscription and is safe to call more than once.
func (e *Engine) Subscribe(key string, fn func(DiffState)) func() {
	e.mu.Lock()
	ks, _ := e.getOrCreate(key)
	e.nextID++
	id := e.nextID
	ks.subs = append(ks.subs, subEntry{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, sub := range ks.subs {
			if sub.id == id {
				ks.subs = append(ks.subs[:i], ks.subs[i+1:]...)
				break
			}
		}
	}
}

// push appends a state to history, dropping the oldest entry at the cap.
func (ks *keyState) push(state DiffState) {
	if len(ks.history) >= maxHistory {
		ks.history = ks.history[1:]
	}
	ks.history = append(ks.history, state)
}

// snapshot copies the current state and subscriber list so notification
// can happen outside the lock.
func (ks *keyState) snapshot() (DiffState, []func(DiffState)) {
	subs := make([]func(DiffState), 0, len(ks.subs))
	for _, sub := range ks.subs {
		subs = append(subs, sub.fn)
	}
	return ks.current, subs
}

func notify(subs []func(DiffState), state DiffState) {
	for _, fn := range subs {
		fn(state)
	}
}
