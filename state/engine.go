// Package state owns the flat state vector layout of a simulation: which
// (neuron, variable) pair lives at which index, the initial values, the
// per-neuron parameters, and the cache of currents computed during one
// right-hand-side evaluation.
package state

import (
	"fmt"
	"log"
)

// A Binding associates a neuron's named variable with a fixed index in the
// state vector. Variables of synapses have Synapse set and carry the synapse
// id in SynapseID instead of NeuronID.
type Binding struct {
	NeuronID  int
	Name      string
	Index     int
	Synapse   bool
	SynapseID int
}

// Label names the binding the way output headers do, "n<id><name>" for a
// neuron variable and "s<id><name>" for a synapse variable.
func (b Binding) Label() string {
	return b.Owner() + b.Name
}

// Owner names the neuron or synapse of the binding, "n<id>" or "s<id>".
func (b Binding) Owner() string {
	if b.Synapse {
		return fmt.Sprintf("s%d", b.SynapseID)
	}

	return fmt.Sprintf("n%d", b.NeuronID)
}

type key struct {
	neuron int
	name   string
}

// Engine is the registry of variable bindings, parameters and cached
// currents. Indices are dense, assigned in binding order, and never move once
// assigned.
//
// An Engine is not safe for concurrent mutation. Once sealed, distinct
// neurons may write their own currents concurrently.
type Engine struct {
	index    map[key]int
	bindings []Binding
	initial  []float64
	params   map[key]float64

	neurons   []int
	neuronPos map[int]int
	sealed    bool

	epoch      uint64
	partitions []partition

	synIndex   map[key]int
	synParams  map[key]float64
	synapses   []int
	synapsePos map[int]int
}

// NewEngine creates an empty Engine.
func NewEngine() *Engine {
	return &Engine{
		index:     make(map[key]int),
		params:    make(map[key]float64),
		neuronPos: make(map[int]int),

		synIndex:   make(map[key]int),
		synParams:  make(map[key]float64),
		synapsePos: make(map[int]int),
	}
}

// RegisterNeuron appends a neuron to the registration order. Registering a
// known neuron is a no-op.
func (e *Engine) RegisterNeuron(neuronID int) error {
	if _, ok := e.neuronPos[neuronID]; ok {
		return nil
	}

	if e.sealed {
		return fmt.Errorf("%w: cannot register neuron %d", ErrSealed, neuronID)
	}

	e.neuronPos[neuronID] = len(e.neurons)
	e.neurons = append(e.neurons, neuronID)
	e.partitions = append(e.partitions, partition{
		values: make(map[string]cachedValue),
	})

	return nil
}

// Bind registers the variable if it is not bound yet and returns its index.
func (e *Engine) Bind(neuronID int, name string) (int, error) {
	if idx, ok := e.index[key{neuronID, name}]; ok {
		return idx, nil
	}

	return e.BindAt(neuronID, name, len(e.bindings))
}

// BindAt binds the variable to the requested slot. The slot must be the one
// the pair already occupies, or the next free slot.
func (e *Engine) BindAt(neuronID int, name string, slot int) (int, error) {
	k := key{neuronID, name}

	if idx, ok := e.index[k]; ok {
		if idx != slot {
			return idx, &DuplicateBindingError{
				NeuronID: neuronID, Name: name, Slot: slot,
				Reason: fmt.Sprintf("already bound to slot %d", idx),
			}
		}

		return idx, nil
	}

	if slot < len(e.bindings) {
		owner := e.bindings[slot]

		return -1, &DuplicateBindingError{
			NeuronID: neuronID, Name: name, Slot: slot,
			Reason: fmt.Sprintf("slot owned by %q of neuron %d",
				owner.Name, owner.NeuronID),
		}
	}

	if slot != len(e.bindings) {
		return -1, &DuplicateBindingError{
			NeuronID: neuronID, Name: name, Slot: slot,
			Reason: fmt.Sprintf("next free slot is %d", len(e.bindings)),
		}
	}

	if _, ok := e.params[k]; ok {
		return -1, &DuplicateBindingError{
			NeuronID: neuronID, Name: name, Slot: slot,
			Reason: "name already used by a parameter",
		}
	}

	if e.sealed {
		return -1, fmt.Errorf("%w: cannot bind %q of neuron %d",
			ErrSealed, name, neuronID)
	}

	err := e.RegisterNeuron(neuronID)
	if err != nil {
		return -1, err
	}

	e.index[k] = slot
	e.appendBinding(Binding{NeuronID: neuronID, Name: name, Index: slot})

	return slot, nil
}

func (e *Engine) appendBinding(b Binding) {
	e.bindings = append(e.bindings, b)
	e.initial = append(e.initial, 0)
}

// IndexOf returns the index of a bound variable.
func (e *Engine) IndexOf(neuronID int, name string) (int, error) {
	idx, ok := e.index[key{neuronID, name}]
	if !ok {
		return -1, &UnknownVariableError{NeuronID: neuronID, Name: name}
	}

	return idx, nil
}

// IndicesWithName returns the index of the named variable of every neuron
// that has one, in neuron registration order.
func (e *Engine) IndicesWithName(name string) []int {
	indices := make([]int, 0, len(e.neurons))

	for _, id := range e.neurons {
		if idx, ok := e.index[key{id, name}]; ok {
			indices = append(indices, idx)
		}
	}

	return indices
}

// SetInitialValue sets the value a bound variable starts from.
func (e *Engine) SetInitialValue(neuronID int, name string, v float64) error {
	idx, err := e.IndexOf(neuronID, name)
	if err != nil {
		return err
	}

	e.initial[idx] = v

	return nil
}

// InitialState returns a new state vector holding every variable's initial
// value, in binding order.
func (e *Engine) InitialState() []float64 {
	x := make([]float64, len(e.initial))
	copy(x, e.initial)

	return x
}

// Len returns the number of bound variables.
func (e *Engine) Len() int {
	return len(e.bindings)
}

// Neurons returns the neuron ids in registration order.
func (e *Engine) Neurons() []int {
	ids := make([]int, len(e.neurons))
	copy(ids, e.neurons)

	return ids
}

// HasNeuron tells whether the neuron is registered.
func (e *Engine) HasNeuron(neuronID int) bool {
	_, ok := e.neuronPos[neuronID]
	return ok
}

// Bindings returns all the bindings in index order.
func (e *Engine) Bindings() []Binding {
	b := make([]Binding, len(e.bindings))
	copy(b, e.bindings)

	return b
}

// BindingAt returns the binding that owns the index.
func (e *Engine) BindingAt(index int) (Binding, error) {
	if index < 0 || index >= len(e.bindings) {
		return Binding{}, fmt.Errorf("%w: no binding at index %d",
			ErrUnknownVariable, index)
	}

	return e.bindings[index], nil
}

// Seal freezes the topology. Bindings, parameters and neurons can no longer
// be added.
func (e *Engine) Seal() {
	e.sealed = true
}

// Sealed tells whether Seal has been called.
func (e *Engine) Sealed() bool {
	return e.sealed
}

func (e *Engine) mustFindNeuron(neuronID int) int {
	pos, ok := e.neuronPos[neuronID]
	if !ok {
		log.Panicf("neuron %d is not registered", neuronID)
	}

	return pos
}
