package tracing

import (
	"sync"

	"github.com/sarchlab/neurosim/integrator"
	"github.com/sarchlab/neurosim/rhs"
)

// CountTracer counts evaluations, failed evaluations and accepted steps.
type CountTracer struct {
	lock        sync.Mutex
	evaluations uint64
	failures    uint64
	steps       uint64
	lastTime    float64
}

// NewCountTracer creates a new CountTracer.
func NewCountTracer() *CountTracer {
	return &CountTracer{}
}

// StartEvaluation does nothing.
func (t *CountTracer) StartEvaluation(rhs.Evaluation) {}

// EndEvaluation counts an evaluation.
func (t *CountTracer) EndEvaluation(e rhs.Evaluation) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.evaluations++
	if e.Err != nil {
		t.failures++
	}
}

// AcceptStep counts a step. The initial state is not counted.
func (t *CountTracer) AcceptStep(s integrator.Snapshot) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.lastTime = s.Time
	if s.Step > 0 {
		t.steps++
	}
}

// Evaluations returns the number of right-hand side evaluations.
func (t *CountTracer) Evaluations() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.evaluations
}

// Failures returns the number of evaluations that returned an error.
func (t *CountTracer) Failures() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.failures
}

// Steps returns the number of accepted steps.
func (t *CountTracer) Steps() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.steps
}

// LastTime returns the simulation time of the last accepted step.
func (t *CountTracer) LastTime() float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.lastTime
}

// EvaluationsPerStep returns the average number of evaluations per step.
func (t *CountTracer) EvaluationsPerStep() float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.steps == 0 {
		return 0
	}

	return float64(t.evaluations) / float64(t.steps)
}
