// Package neuron composes current models into a neuron whose membrane
// potential follows
//
//	dV/dt = -(I_1 + I_2 + ... + I_n) + I_ext
//
// where I_ext is the stimulus injected at the evaluation time. Synaptic
// inputs are currents published into the neuron's cache by synapses, and are
// summed with the ionic currents.
package neuron

import (
	"fmt"

	"github.com/sarchlab/neurosim/current"
	"github.com/sarchlab/neurosim/state"
	"github.com/sarchlab/neurosim/stimulus"
)

// Model is a single neuron. Its topology is fixed once built.
type Model struct {
	id       int
	membrane string
	currents []current.Model
	inputs   []string
	stim     stimulus.Source

	eng *state.Engine
	v   int
}

// ID returns the neuron id.
func (m *Model) ID() int {
	return m.id
}

// Membrane returns the name of the membrane potential variable.
func (m *Model) Membrane() string {
	return m.membrane
}

// Currents returns the current models in evaluation order.
func (m *Model) Currents() []current.Model {
	return append([]current.Model(nil), m.currents...)
}

// Inputs returns the names of the synaptic currents the neuron receives.
func (m *Model) Inputs() []string {
	return append([]string(nil), m.inputs...)
}

// Attach resolves the membrane potential and attaches every current to the
// state engine.
func (m *Model) Attach(eng *state.Engine) error {
	v, err := eng.IndexOf(m.id, m.membrane)
	if err != nil {
		return err
	}

	for _, c := range m.currents {
		err = c.Attach(eng, m.id)
		if err != nil {
			return fmt.Errorf("neuron %d: %w", m.id, err)
		}
	}

	m.eng = eng
	m.v = v

	return nil
}

// Evaluate writes the derivatives of the neuron's variables. Currents are
// invoked in order, then read back from the cache of the running evaluation
// together with the synaptic inputs, which must already be published.
func (m *Model) Evaluate(x, dxdt []float64, t float64) error {
	if m.eng == nil {
		panic(fmt.Sprintf("neuron %d is not attached", m.id))
	}

	for _, c := range m.currents {
		_, err := c.Contribute(x, dxdt, t, m.id)
		if err != nil {
			return fmt.Errorf("neuron %d: %w", m.id, err)
		}
	}

	total := 0.0
	for _, c := range m.currents {
		i, err := m.eng.Current(m.id, c.Name())
		if err != nil {
			return err
		}

		total += i
	}

	for _, name := range m.inputs {
		i, err := m.eng.Current(m.id, name)
		if err != nil {
			return err
		}

		total += i
	}

	dxdt[m.v] = -total + m.stim.Lookup(m.id, t)

	return nil
}

// Builder can build neurons.
type Builder struct {
	id       int
	membrane string
	currents []current.Model
	inputs   []string
	stim     stimulus.Source
}

// MakeBuilder creates a builder for a neuron without currents or stimulus.
func MakeBuilder() Builder {
	return Builder{
		membrane: "v",
		stim:     stimulus.None,
	}
}

// WithID sets the neuron id.
func (b Builder) WithID(id int) Builder {
	b.id = id
	return b
}

// WithMembrane sets the name of the membrane potential variable.
func (b Builder) WithMembrane(variable string) Builder {
	b.membrane = variable
	return b
}

// WithCurrents appends current models. They are evaluated in the order added.
func (b Builder) WithCurrents(models ...current.Model) Builder {
	currents := make([]current.Model, 0, len(b.currents)+len(models))
	currents = append(currents, b.currents...)
	b.currents = append(currents, models...)

	return b
}

// WithInputs appends the names of synaptic currents the neuron receives.
func (b Builder) WithInputs(names ...string) Builder {
	inputs := make([]string, 0, len(b.inputs)+len(names))
	inputs = append(inputs, b.inputs...)
	b.inputs = append(inputs, names...)

	return b
}

// WithStimulus sets the source of injected current. A nil source injects
// nothing.
func (b Builder) WithStimulus(src stimulus.Source) Builder {
	if src == nil {
		src = stimulus.None
	}

	b.stim = src

	return b
}

// Build creates the neuron. Current and input names must be unique within a
// neuron.
func (b Builder) Build() (*Model, error) {
	names := make([]string, 0, len(b.currents)+len(b.inputs))
	for _, c := range b.currents {
		names = append(names, c.Name())
	}

	names = append(names, b.inputs...)

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("neuron %d has two currents named %q",
				b.id, name)
		}

		seen[name] = true
	}

	return &Model{
		id:       b.id,
		membrane: b.membrane,
		currents: append([]current.Model(nil), b.currents...),
		inputs:   append([]string(nil), b.inputs...),
		stim:     b.stim,
	}, nil
}
