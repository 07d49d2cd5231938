// Package tracing collects statistics about a running simulation through
// hooks on the right-hand side driver and the integrator.
package tracing

import (
	"github.com/sarchlab/neurosim/integrator"
	"github.com/sarchlab/neurosim/rhs"
	"github.com/sarchlab/neurosim/sim"
)

// A Tracer is notified of evaluations and accepted steps.
type Tracer interface {
	StartEvaluation(e rhs.Evaluation)
	EndEvaluation(e rhs.Evaluation)
	AcceptStep(s integrator.Snapshot)
}

// CollectTrace lets the tracer collect traces from a domain, typically an
// rhs.Driver or an integrator.Integrator.
func CollectTrace(domain sim.Hookable, tracer Tracer) {
	domain.AcceptHook(&traceHook{t: tracer})
}

// A traceHook is a hook that forwards hook calls to a tracer.
type traceHook struct {
	t Tracer
}

// Func calls the tracer interfaces when the hook is triggered
func (h *traceHook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case rhs.HookPosBeforeEvaluation:
		h.t.StartEvaluation(ctx.Detail.(rhs.Evaluation))
	case rhs.HookPosAfterEvaluation:
		h.t.EndEvaluation(ctx.Detail.(rhs.Evaluation))
	case integrator.HookPosStepAccepted:
		h.t.AcceptStep(ctx.Item.(integrator.Snapshot))
	}
}
