package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/neurosim/integrator"
	"github.com/sarchlab/neurosim/sim"
)

// A ProgressBar is a tracker of the progress
type ProgressBar struct {
	lock      sync.Mutex
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
}

type progressBarRsp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
}

func (b *ProgressBar) rsp() progressBarRsp {
	b.lock.Lock()
	defer b.lock.Unlock()

	return progressBarRsp{
		ID:        b.ID,
		Name:      b.Name,
		StartTime: b.StartTime,
		Total:     b.Total,
		Finished:  b.Finished,
	}
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.Finished += amount
}

// Progress returns the number of finished items and the total.
func (b *ProgressBar) Progress() (finished, total uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.Finished, b.Total
}

// StepCounter is a hook that marks one item finished per accepted
// integration step after the initial state.
type StepCounter struct {
	Bar *ProgressBar
}

// Func counts the step.
func (c StepCounter) Func(ctx sim.HookCtx) {
	if ctx.Pos != integrator.HookPosStepAccepted {
		return
	}

	if ctx.Item.(integrator.Snapshot).Step > 0 {
		c.Bar.IncrementFinished(1)
	}
}
