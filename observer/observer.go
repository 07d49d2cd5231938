// Package observer turns accepted integration steps into output: CSV files
// and SQLite recordings.
package observer

import (
	"sync"

	"github.com/sarchlab/neurosim/integrator"
	"github.com/sarchlab/neurosim/sim"
)

// An Observer receives every accepted step. The snapshot state is only valid
// during the call.
type Observer interface {
	Observe(s integrator.Snapshot) error
}

// Hook delivers the accepted steps of an integrator to an observer. After
// the first failure the observer is no longer called and the failure is
// reported to the abort function.
type Hook struct {
	observer Observer
	abort    func(error)

	lock sync.Mutex
	err  error
}

// NewHook creates a hook for an observer. Abort may be nil.
func NewHook(o Observer, abort func(error)) *Hook {
	return &Hook{
		observer: o,
		abort:    abort,
	}
}

// Func observes the snapshot of a StepAccepted hook.
func (h *Hook) Func(ctx sim.HookCtx) {
	if ctx.Pos != integrator.HookPosStepAccepted {
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	if h.err != nil {
		return
	}

	err := h.observer.Observe(ctx.Item.(integrator.Snapshot))
	if err == nil {
		return
	}

	h.err = err
	if h.abort != nil {
		h.abort(err)
	}
}

// Err returns the first error of the observer.
func (h *Hook) Err() error {
	h.lock.Lock()
	defer h.lock.Unlock()

	return h.err
}
