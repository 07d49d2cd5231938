// Package current defines the ionic currents that drive a neuron's membrane
// potential, and provides the standard Hodgkin-Huxley channels.
//
// A current model publishes exactly one scalar per neuron and evaluation into
// the state engine's current cache, and may integrate its own gating
// variables by writing their derivatives.
package current

import (
	"github.com/sarchlab/neurosim/state"
)

// A Model computes one ionic current of a neuron.
type Model interface {
	// Name returns the name under which the current is published, e.g. "I_Na".
	Name() string

	// Attach resolves the variables and parameters the model needs for a
	// neuron. It is called once per neuron before integration starts.
	Attach(eng *state.Engine, neuronID int) error

	// Contribute computes the current of the neuron from the state x,
	// writes the derivatives of the gating variables it owns into dxdt, and
	// publishes the current to the cache. It returns the published value.
	Contribute(x, dxdt []float64, t float64, neuronID int) (float64, error)
}
