package state

import "fmt"

// SetParameter records a constant of a neuron. A parameter cannot share its
// name with a bound variable of the same neuron.
func (e *Engine) SetParameter(neuronID int, name string, v float64) error {
	k := key{neuronID, name}

	if idx, ok := e.index[k]; ok {
		return &DuplicateBindingError{
			NeuronID: neuronID, Name: name, Slot: idx,
			Reason: "name already bound to a state variable",
		}
	}

	if e.sealed {
		return fmt.Errorf("%w: cannot set parameter %q of neuron %d",
			ErrSealed, name, neuronID)
	}

	err := e.RegisterNeuron(neuronID)
	if err != nil {
		return err
	}

	e.params[k] = v

	return nil
}

// Parameter returns a parameter of a neuron.
func (e *Engine) Parameter(neuronID int, name string) (float64, error) {
	v, ok := e.params[key{neuronID, name}]
	if !ok {
		return 0, &UnknownVariableError{NeuronID: neuronID, Name: name}
	}

	return v, nil
}

// ParameterOr returns a parameter of a neuron, or def if the neuron does not
// define it.
func (e *Engine) ParameterOr(neuronID int, name string, def float64) float64 {
	v, ok := e.params[key{neuronID, name}]
	if !ok {
		return def
	}

	return v
}

// NeuronsWithParameter returns, in registration order, the neurons that
// define the named parameter.
func (e *Engine) NeuronsWithParameter(name string) []int {
	var ids []int

	for _, id := range e.neurons {
		if _, ok := e.params[key{id, name}]; ok {
			ids = append(ids, id)
		}
	}

	return ids
}

// ParametersOf returns a copy of the parameters of a neuron.
func (e *Engine) ParametersOf(neuronID int) map[string]float64 {
	params := make(map[string]float64)

	for k, v := range e.params {
		if k.neuron == neuronID {
			params[k.name] = v
		}
	}

	return params
}
