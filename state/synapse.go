package state

import "fmt"

// Synapses live in their own id space. Their variables share the dense slots
// of the state vector with the neuron variables, but they have no current
// cache: a synapse publishes its current into the cache of its post-synaptic
// neuron.

// RegisterSynapse appends a synapse to the registration order. Registering a
// known synapse is a no-op.
func (e *Engine) RegisterSynapse(synapseID int) error {
	if _, ok := e.synapsePos[synapseID]; ok {
		return nil
	}

	if e.sealed {
		return fmt.Errorf("%w: cannot register synapse %d", ErrSealed, synapseID)
	}

	e.synapsePos[synapseID] = len(e.synapses)
	e.synapses = append(e.synapses, synapseID)

	return nil
}

// BindSynapse registers a variable of a synapse in the next free slot, if it
// is not bound yet, and returns its index.
func (e *Engine) BindSynapse(synapseID int, name string) (int, error) {
	k := key{synapseID, name}

	if idx, ok := e.synIndex[k]; ok {
		return idx, nil
	}

	slot := len(e.bindings)

	if _, ok := e.synParams[k]; ok {
		return -1, &DuplicateBindingError{
			Synapse: true, SynapseID: synapseID, Name: name, Slot: slot,
			Reason: "name already used by a parameter",
		}
	}

	if e.sealed {
		return -1, fmt.Errorf("%w: cannot bind %q of synapse %d",
			ErrSealed, name, synapseID)
	}

	err := e.RegisterSynapse(synapseID)
	if err != nil {
		return -1, err
	}

	e.synIndex[k] = slot
	e.appendBinding(Binding{
		Name:      name,
		Index:     slot,
		Synapse:   true,
		SynapseID: synapseID,
	})

	return slot, nil
}

// SynapseIndexOf returns the index of a bound synapse variable.
func (e *Engine) SynapseIndexOf(synapseID int, name string) (int, error) {
	idx, ok := e.synIndex[key{synapseID, name}]
	if !ok {
		return -1, &UnknownVariableError{
			Synapse: true, SynapseID: synapseID, Name: name,
		}
	}

	return idx, nil
}

// SynapseIndicesWithName returns the index of the named variable of every
// synapse that has one, in synapse registration order.
func (e *Engine) SynapseIndicesWithName(name string) []int {
	indices := make([]int, 0, len(e.synapses))

	for _, id := range e.synapses {
		if idx, ok := e.synIndex[key{id, name}]; ok {
			indices = append(indices, idx)
		}
	}

	return indices
}

// SetSynapseInitialValue sets the value a synapse variable starts from.
func (e *Engine) SetSynapseInitialValue(
	synapseID int,
	name string,
	v float64,
) error {
	idx, err := e.SynapseIndexOf(synapseID, name)
	if err != nil {
		return err
	}

	e.initial[idx] = v

	return nil
}

// SetSynapseParameter records a constant of a synapse.
func (e *Engine) SetSynapseParameter(synapseID int, name string, v float64) error {
	k := key{synapseID, name}

	if idx, ok := e.synIndex[k]; ok {
		return &DuplicateBindingError{
			Synapse: true, SynapseID: synapseID, Name: name, Slot: idx,
			Reason: "name already bound to a state variable",
		}
	}

	if e.sealed {
		return fmt.Errorf("%w: cannot set parameter %q of synapse %d",
			ErrSealed, name, synapseID)
	}

	err := e.RegisterSynapse(synapseID)
	if err != nil {
		return err
	}

	e.synParams[k] = v

	return nil
}

// SynapseParameter returns a parameter of a synapse.
func (e *Engine) SynapseParameter(synapseID int, name string) (float64, error) {
	v, ok := e.synParams[key{synapseID, name}]
	if !ok {
		return 0, &UnknownVariableError{
			Synapse: true, SynapseID: synapseID, Name: name,
		}
	}

	return v, nil
}

// SynapseParameterOr returns a parameter of a synapse, or def if the synapse
// does not define it.
func (e *Engine) SynapseParameterOr(synapseID int, name string, def float64) float64 {
	v, ok := e.synParams[key{synapseID, name}]
	if !ok {
		return def
	}

	return v
}

// SynapsesWithParameter returns, in registration order, the synapses that
// define the named parameter.
func (e *Engine) SynapsesWithParameter(name string) []int {
	var ids []int

	for _, id := range e.synapses {
		if _, ok := e.synParams[key{id, name}]; ok {
			ids = append(ids, id)
		}
	}

	return ids
}

// SynapseParametersOf returns a copy of the parameters of a synapse.
func (e *Engine) SynapseParametersOf(synapseID int) map[string]float64 {
	params := make(map[string]float64)

	for k, v := range e.synParams {
		if k.neuron == synapseID {
			params[k.name] = v
		}
	}

	return params
}

// Synapses returns the synapse ids in registration order.
func (e *Engine) Synapses() []int {
	ids := make([]int, len(e.synapses))
	copy(ids, e.synapses)

	return ids
}

// HasSynapse tells whether the synapse is registered.
func (e *Engine) HasSynapse(synapseID int) bool {
	_, ok := e.synapsePos[synapseID]
	return ok
}
