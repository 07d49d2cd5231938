// Package synapse connects neurons into a network. A synapse reads the
// membrane potentials of its pre- and post-synaptic neurons, may integrate
// its own variables, and publishes a current into the cache of the
// post-synaptic neuron, which adds it to its ionic currents.
package synapse

import (
	"errors"
	"fmt"

	"github.com/sarchlab/neurosim/state"
)

// ErrNotAttached is returned when a synapse is evaluated before it is
// attached to a state engine.
var ErrNotAttached = errors.New("synapse not attached")

// A Connection is what kinetics know about the synapse they serve.
type Connection struct {
	Synapse int
	Pre     int
	Post    int

	// PreV and PostV are the indices of the membrane potentials.
	PreV  int
	PostV int
}

// Kinetics compute the current of one synapse.
type Kinetics interface {
	// Attach resolves the synapse variables and parameters. It is called
	// once before integration starts.
	Attach(eng *state.Engine, c Connection) error

	// Contribute writes the derivatives of the synapse variables and returns
	// the current flowing out of the post-synaptic neuron.
	Contribute(x, dxdt []float64, t float64) (float64, error)
}

// CurrentName is the name under which a synapse publishes its current in the
// cache of its post-synaptic neuron.
func CurrentName(synapseID int) string {
	return fmt.Sprintf("I_syn%d", synapseID)
}

// Synapse is a directed connection between two neurons.
type Synapse struct {
	id           int
	pre, post    int
	preMembrane  string
	postMembrane string
	kinetics     Kinetics

	eng *state.Engine
}

// ID returns the synapse id.
func (s *Synapse) ID() int {
	return s.id
}

// Pre returns the id of the pre-synaptic neuron.
func (s *Synapse) Pre() int {
	return s.pre
}

// Post returns the id of the post-synaptic neuron.
func (s *Synapse) Post() int {
	return s.post
}

// CurrentName returns the name of the current published to the
// post-synaptic neuron.
func (s *Synapse) CurrentName() string {
	return CurrentName(s.id)
}

// Attach resolves the membrane potentials of both neurons and attaches the
// kinetics.
func (s *Synapse) Attach(eng *state.Engine) error {
	preV, err := eng.IndexOf(s.pre, s.preMembrane)
	if err != nil {
		return fmt.Errorf("synapse %d: pre-synaptic %w", s.id, err)
	}

	postV, err := eng.IndexOf(s.post, s.postMembrane)
	if err != nil {
		return fmt.Errorf("synapse %d: post-synaptic %w", s.id, err)
	}

	err = eng.RegisterSynapse(s.id)
	if err != nil {
		return err
	}

	err = s.kinetics.Attach(eng, Connection{
		Synapse: s.id,
		Pre:     s.pre,
		Post:    s.post,
		PreV:    preV,
		PostV:   postV,
	})
	if err != nil {
		return fmt.Errorf("synapse %d: %w", s.id, err)
	}

	s.eng = eng

	return nil
}

// Evaluate writes the derivatives of the synapse variables and publishes the
// synaptic current to the post-synaptic neuron.
func (s *Synapse) Evaluate(x, dxdt []float64, t float64) error {
	if s.eng == nil {
		return fmt.Errorf("%w: synapse %d", ErrNotAttached, s.id)
	}

	i, err := s.kinetics.Contribute(x, dxdt, t)
	if err != nil {
		return fmt.Errorf("synapse %d: %w", s.id, err)
	}

	s.eng.SetCurrent(s.post, s.CurrentName(), i)

	return nil
}

// Builder can build synapses.
type Builder struct {
	id           int
	pre, post    int
	preMembrane  string
	postMembrane string
	kinetics     Kinetics
}

// MakeBuilder creates a builder of a synapse between the "v" variables of
// neuron 0 and itself.
func MakeBuilder() Builder {
	return Builder{
		preMembrane:  "v",
		postMembrane: "v",
	}
}

// WithID sets the synapse id.
func (b Builder) WithID(id int) Builder {
	b.id = id
	return b
}

// WithPre sets the pre-synaptic neuron and the name of its membrane
// potential.
func (b Builder) WithPre(neuronID int, membrane string) Builder {
	b.pre = neuronID
	if membrane != "" {
		b.preMembrane = membrane
	}

	return b
}

// WithPost sets the post-synaptic neuron and the name of its membrane
// potential.
func (b Builder) WithPost(neuronID int, membrane string) Builder {
	b.post = neuronID
	if membrane != "" {
		b.postMembrane = membrane
	}

	return b
}

// WithKinetics sets how the synaptic current is computed.
func (b Builder) WithKinetics(k Kinetics) Builder {
	b.kinetics = k
	return b
}

// Build creates the synapse.
func (b Builder) Build() (*Synapse, error) {
	if b.kinetics == nil {
		return nil, fmt.Errorf("synapse %d has no kinetics", b.id)
	}

	return &Synapse{
		id:           b.id,
		pre:          b.pre,
		post:         b.post,
		preMembrane:  b.preMembrane,
		postMembrane: b.postMembrane,
		kinetics:     b.kinetics,
	}, nil
}
