package tracing

import (
	"sync"
	"time"

	"github.com/sarchlab/neurosim/integrator"
	"github.com/sarchlab/neurosim/rhs"
)

// BusyTimeTracer measures the wall-clock time spent inside right-hand side
// evaluations.
type BusyTimeTracer struct {
	lock    sync.Mutex
	now     func() time.Time
	started time.Time
	busy    time.Duration
	count   uint64
}

// NewBusyTimeTracer creates a new BusyTimeTracer.
func NewBusyTimeTracer() *BusyTimeTracer {
	return &BusyTimeTracer{now: time.Now}
}

// StartEvaluation remembers when the evaluation started.
func (t *BusyTimeTracer) StartEvaluation(rhs.Evaluation) {
	t.lock.Lock()
	t.started = t.now()
	t.lock.Unlock()
}

// EndEvaluation adds the duration of the evaluation.
func (t *BusyTimeTracer) EndEvaluation(rhs.Evaluation) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.busy += t.now().Sub(t.started)
	t.count++
}

// AcceptStep does nothing.
func (t *BusyTimeTracer) AcceptStep(integrator.Snapshot) {}

// BusyTime returns the total time spent evaluating.
func (t *BusyTimeTracer) BusyTime() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.busy
}

// AverageTime returns the average duration of an evaluation.
func (t *BusyTimeTracer) AverageTime() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.count == 0 {
		return 0
	}

	return t.busy / time.Duration(t.count)
}
