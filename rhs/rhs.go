// Package rhs evaluates the right-hand side of the network ODE, dx/dt =
// f(x, t), by delegating to every synapse and neuron of the network.
package rhs

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/sarchlab/neurosim/sim"
	"github.com/sarchlab/neurosim/state"
)

// A Func is the right-hand side of an ODE. Evaluate overwrites dxdt, which
// has the same length as x.
type Func interface {
	Evaluate(x []float64, t float64, dxdt []float64) error
}

// FuncOf adapts a plain function into a Func.
type FuncOf func(x []float64, t float64, dxdt []float64) error

// Evaluate calls f(x, t, dxdt).
func (f FuncOf) Evaluate(x []float64, t float64, dxdt []float64) error {
	return f(x, t, dxdt)
}

// A Neuron writes the derivatives of its own variables.
type Neuron interface {
	ID() int
	Evaluate(x, dxdt []float64, t float64) error
}

// A Synapse writes the derivatives of its own variables and publishes its
// current into the cache of its post-synaptic neuron.
type Synapse interface {
	ID() int
	Evaluate(x, dxdt []float64, t float64) error
}

// HookPosBeforeEvaluation is triggered after dxdt is cleared and before any
// synapse or neuron is evaluated.
var HookPosBeforeEvaluation = &sim.HookPos{Name: "BeforeEvaluation"}

// HookPosAfterEvaluation is triggered after every synapse and neuron is
// evaluated.
var HookPosAfterEvaluation = &sim.HookPos{Name: "AfterEvaluation"}

// Evaluation is the detail of the evaluation hooks.
type Evaluation struct {
	Time float64
	X    []float64
	DXDT []float64
	Err  error
}

// Driver is the Func of a whole network.
type Driver struct {
	*sim.HookableBase

	eng      *state.Engine
	neurons  []Neuron
	synapses []Synapse
	parallel bool
	workers  int
}

// Evaluate clears dxdt, starts a new evaluation of the current cache, and
// evaluates every synapse and then every neuron exactly once. Synapses read
// only the state, so they run first and their currents are in the cache
// when the post-synaptic neurons read them.
func (d *Driver) Evaluate(x []float64, t float64, dxdt []float64) error {
	if len(x) != d.eng.Len() || len(dxdt) != d.eng.Len() {
		return fmt.Errorf("state has %d values and derivative %d, expected %d",
			len(x), len(dxdt), d.eng.Len())
	}

	for i := range dxdt {
		dxdt[i] = 0
	}

	d.eng.BeginEvaluation()
	d.invoke(HookPosBeforeEvaluation, x, t, dxdt, nil)

	err := d.evaluateSynapses(x, t, dxdt)
	if err == nil {
		if d.parallel && len(d.neurons) > 1 {
			err = d.evaluateParallel(x, t, dxdt)
		} else {
			err = d.evaluateSerial(x, t, dxdt)
		}
	}

	d.invoke(HookPosAfterEvaluation, x, t, dxdt, err)

	return err
}

// Derivative returns f(x, t) in a newly allocated slice.
func (d *Driver) Derivative(x []float64, t float64) ([]float64, error) {
	dxdt := make([]float64, len(x))

	err := d.Evaluate(x, t, dxdt)
	if err != nil {
		return nil, err
	}

	return dxdt, nil
}

// Neurons returns the number of neurons evaluated.
func (d *Driver) Neurons() int {
	return len(d.neurons)
}

// Synapses returns the number of synapses evaluated.
func (d *Driver) Synapses() int {
	return len(d.synapses)
}

// evaluateSynapses runs serially, since several synapses may publish into
// the cache partition of the same neuron.
func (d *Driver) evaluateSynapses(x []float64, t float64, dxdt []float64) error {
	for _, s := range d.synapses {
		err := s.Evaluate(x, dxdt, t)
		if err != nil {
			return err
		}
	}

	return nil
}

func (d *Driver) evaluateSerial(x []float64, t float64, dxdt []float64) error {
	for _, n := range d.neurons {
		err := n.Evaluate(x, dxdt, t)
		if err != nil {
			return err
		}
	}

	return nil
}

func (d *Driver) evaluateParallel(x []float64, t float64, dxdt []float64) error {
	var (
		wg       sync.WaitGroup
		errLock  sync.Mutex
		firstErr error
		firstPos = len(d.neurons)
	)

	next := make(chan int)

	for w := 0; w < d.workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range next {
				err := d.neurons[i].Evaluate(x, dxdt, t)
				if err == nil {
					continue
				}

				errLock.Lock()
				if i < firstPos {
					firstPos, firstErr = i, err
				}
				errLock.Unlock()
			}
		}()
	}

	for i := range d.neurons {
		next <- i
	}

	close(next)
	wg.Wait()

	return firstErr
}

func (d *Driver) invoke(
	pos *sim.HookPos,
	x []float64,
	t float64,
	dxdt []float64,
	err error,
) {
	if d.NumHooks() == 0 {
		return
	}

	d.InvokeHook(sim.HookCtx{
		Domain: d,
		Pos:    pos,
		Detail: Evaluation{Time: t, X: x, DXDT: dxdt, Err: err},
	})
}

// Builder can build drivers.
type Builder struct {
	eng      *state.Engine
	neurons  []Neuron
	synapses []Synapse
	parallel bool
	workers  int
}

// MakeBuilder creates a builder of a serial driver.
func MakeBuilder() Builder {
	return Builder{}
}

// WithStateEngine sets the state engine whose cache is reset per evaluation.
func (b Builder) WithStateEngine(eng *state.Engine) Builder {
	b.eng = eng
	return b
}

// WithNeurons appends neurons. They are evaluated in the order added.
func (b Builder) WithNeurons(neurons ...Neuron) Builder {
	all := make([]Neuron, 0, len(b.neurons)+len(neurons))
	all = append(all, b.neurons...)
	b.neurons = append(all, neurons...)

	return b
}

// WithSynapses appends synapses. They are evaluated in the order added,
// before any neuron.
func (b Builder) WithSynapses(synapses ...Synapse) Builder {
	all := make([]Synapse, 0, len(b.synapses)+len(synapses))
	all = append(all, b.synapses...)
	b.synapses = append(all, synapses...)

	return b
}

// WithParallelNeurons evaluates neurons concurrently. Neurons never share
// derivative slots or cache partitions, so the result is the same as the
// serial evaluation. When several neurons fail, the error of the first one
// in registration order is returned.
func (b Builder) WithParallelNeurons(workers int) Builder {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	b.parallel = true
	b.workers = workers

	return b
}

// Build creates the driver. The state engine is sealed, because the layout
// of the state vector must not change once it can be evaluated.
func (b Builder) Build() (*Driver, error) {
	if b.eng == nil {
		return nil, fmt.Errorf("driver needs a state engine")
	}

	seen := make(map[int]bool, len(b.neurons))
	for _, n := range b.neurons {
		if seen[n.ID()] {
			return nil, fmt.Errorf("neuron %d added to the driver twice", n.ID())
		}

		if !b.eng.HasNeuron(n.ID()) {
			return nil, fmt.Errorf("neuron %d has no variables", n.ID())
		}

		seen[n.ID()] = true
	}

	seenSynapses := make(map[int]bool, len(b.synapses))
	for _, s := range b.synapses {
		if seenSynapses[s.ID()] {
			return nil, fmt.Errorf("synapse %d added to the driver twice", s.ID())
		}

		seenSynapses[s.ID()] = true
	}

	b.eng.Seal()

	return &Driver{
		HookableBase: sim.NewHookableBase(),
		eng:          b.eng,
		neurons:      append([]Neuron(nil), b.neurons...),
		synapses:     append([]Synapse(nil), b.synapses...),
		parallel:     b.parallel,
		workers:      b.workers,
	}, nil
}
