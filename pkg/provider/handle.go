package provider

import (
	"context"
	"sync"
)

// Handle controls an in-flight streaming or voice session. Abort is
// idempotent and safe to call after completion; aborting is a clean
// cancellation, so Done still closes and Err reports nil.
type Handle struct {
	cancel    context.CancelFunc
	onAbort   func()
	abortOnce sync.Once
	doneOnce  sync.Once
	done      chan struct{}
	err       error
}

func newHandle(cancel context.CancelFunc, onAbort func()) *Handle {
	return &Handle{
		cancel:  cancel,
		onAbort: onAbort,
		done:    make(chan struct{}),
	}
}

// Abort cancels the session. Calling it repeatedly or after the
// session has finished is a no-op.
func (h *Handle) Abort() {
	h.abortOnce.Do(func() {
		h.cancel()
		if h.onAbort != nil {
			h.onAbort()
		}
	})
}

// Done returns a channel closed when the session has fully finished,
// whether by completion, failure, or abort.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err reports the terminal error of the session. It is meaningful only
// after Done is closed; an aborted session reports nil.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// finish records the terminal error and closes Done exactly once.
func (h *Handle) finish(err error) {
	h.doneOnce.Do(func() {
		h.err = err
		close(h.done)
	})
}
