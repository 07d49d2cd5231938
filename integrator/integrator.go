package integrator

import (
	"errors"
	"fmt"
	"math"

	"github.com/sarchlab/neurosim/rhs"
	"github.com/sarchlab/neurosim/sim"
)

// ErrNonFinite is returned when a step produces NaN or an infinity.
var ErrNonFinite = errors.New("state is not finite")

// HookPosStepAccepted is triggered with the initial state and after every
// accepted step. The hook item is a Snapshot.
var HookPosStepAccepted = &sim.HookPos{Name: "StepAccepted"}

// A Snapshot is the state at a step. State aliases the live state vector and
// is only valid during the hook call.
type Snapshot struct {
	Step  int
	Time  float64
	State []float64
}

// Integrator integrates from t0 to tEnd with a constant step. Step k lands
// at t0 + k*dt for k = 0..N, with N = round((tEnd - t0) / dt). The engine
// time counts the integrated time since t0.
type Integrator struct {
	*sim.TickingComponent

	f       rhs.Func
	stepper Stepper
	x       []float64
	t0, dt  float64
	steps   int

	step    int
	started bool
	failure error
}

// Start schedules the first tick. The initial state is published at the
// first tick.
func (i *Integrator) Start() {
	i.TickNow()
}

// Tick publishes the initial state on the first call and advances one step
// on every later call.
func (i *Integrator) Tick() (bool, error) {
	if !i.started {
		i.started = true
		i.publish()

		if i.failure != nil {
			return false, i.failure
		}

		return i.step < i.steps, nil
	}

	if i.step >= i.steps {
		return false, nil
	}

	t := i.TimeAt(i.step)

	err := i.stepper.Step(i.f, i.x, t, i.dt)
	if err != nil {
		return false, fmt.Errorf("step %d at t=%g: %w", i.step+1, t, err)
	}

	i.step++

	err = i.checkFinite()
	if err != nil {
		return false, err
	}

	i.publish()

	if i.failure != nil {
		return false, i.failure
	}

	return i.step < i.steps, nil
}

// Fail stops the integration. A hook that fails while observing a step calls
// Fail and the tick that published the step returns err.
func (i *Integrator) Fail(err error) {
	if i.failure == nil {
		i.failure = err
	}
}

func (i *Integrator) checkFinite() error {
	for idx, v := range i.x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: index %d is %g at step %d (t=%g)",
				ErrNonFinite, idx, v, i.step, i.TimeAt(i.step))
		}
	}

	return nil
}

func (i *Integrator) publish() {
	if i.NumHooks() == 0 {
		return
	}

	i.InvokeHook(sim.HookCtx{
		Domain: i,
		Pos:    HookPosStepAccepted,
		Item: Snapshot{
			Step:  i.step,
			Time:  i.TimeAt(i.step),
			State: i.x,
		},
	})
}

// TimeAt returns the simulation time of step k.
func (i *Integrator) TimeAt(k int) float64 {
	return i.t0 + float64(k)*i.dt
}

// Step returns the number of accepted steps.
func (i *Integrator) Step() int {
	return i.step
}

// Steps returns the total number of steps.
func (i *Integrator) Steps() int {
	return i.steps
}

// Done tells if every step has been accepted.
func (i *Integrator) Done() bool {
	return i.started && i.step >= i.steps
}

// State returns the live state vector.
func (i *Integrator) State() []float64 {
	return i.x
}

// Builder can build integrators.
type Builder struct {
	engine  sim.Engine
	name    string
	f       rhs.Func
	stepper Stepper
	x       []float64
	t0      float64
	tEnd    float64
	dt      float64
}

// MakeBuilder creates a builder that integrates with RK4 from 0 to 100 with
// a step of 0.05.
func MakeBuilder() Builder {
	return Builder{
		name: "Integrator",
		tEnd: 100,
		dt:   0.05,
	}
}

// WithEngine sets the engine that runs the integrator.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithName sets the name of the component.
func (b Builder) WithName(name string) Builder {
	b.name = name
	return b
}

// WithFunc sets the right-hand side.
func (b Builder) WithFunc(f rhs.Func) Builder {
	b.f = f
	return b
}

// WithStepper sets the stepping method.
func (b Builder) WithStepper(s Stepper) Builder {
	b.stepper = s
	return b
}

// WithInitialState sets the state at t0. The integrator works on the given
// slice.
func (b Builder) WithInitialState(x []float64) Builder {
	b.x = x
	return b
}

// WithTimeSpan sets the start time, end time and step size.
func (b Builder) WithTimeSpan(t0, tEnd, dt float64) Builder {
	b.t0 = t0
	b.tEnd = tEnd
	b.dt = dt

	return b
}

// Build creates the integrator.
func (b Builder) Build() (*Integrator, error) {
	if b.engine == nil {
		return nil, errors.New("integrator needs an engine")
	}

	if b.f == nil {
		return nil, errors.New("integrator needs a right-hand side")
	}

	if !(b.dt > 0) || math.IsInf(b.dt, 0) {
		return nil, fmt.Errorf("step size must be positive, got %g", b.dt)
	}

	if !(b.tEnd >= b.t0) || math.IsInf(b.tEnd-b.t0, 0) {
		return nil, fmt.Errorf("end time %g is before start time %g",
			b.tEnd, b.t0)
	}

	stepper := b.stepper
	if stepper == nil {
		stepper = NewRK4()
	}

	i := &Integrator{
		f:       b.f,
		stepper: stepper,
		x:       b.x,
		t0:      b.t0,
		dt:      b.dt,
		steps:   int(sim.Period(b.dt).Cycle(sim.VTime(b.tEnd - b.t0))),
	}
	i.TickingComponent = sim.NewTickingComponent(
		b.name, b.engine, sim.Period(b.dt), 0, i)

	return i, nil
}
