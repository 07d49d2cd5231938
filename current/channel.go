package current

import (
	"errors"
	"fmt"
	"math"

	"github.com/sarchlab/neurosim/state"
)

// ErrNotAttached is returned when a model is asked to contribute for a neuron
// it was never attached to.
var ErrNotAttached = errors.New("current model not attached to neuron")

// Channel is an ohmic conductance, optionally gated:
//
//	I = g * x1^p1 * x2^p2 * ... * (v - e)
//
// The maximal conductance g and the reversal potential e can be overridden
// per neuron through parameters.
type Channel struct {
	name        string
	membrane    string
	conductance Constant
	reversal    Constant
	gates       []Gate

	attached map[int]*channelBinding
}

// A Constant is a named constant with a default value. A neuron parameter of
// the same name overrides the default.
type Constant struct {
	Name    string
	Default float64
}

type channelBinding struct {
	eng      *state.Engine
	v        int
	gates    []int
	g, e     float64
	neuronID int
}

// Name returns the name of the published current.
func (c *Channel) Name() string {
	return c.name
}

// Gates returns the gating variables owned by the channel.
func (c *Channel) Gates() []Gate {
	return append([]Gate(nil), c.gates...)
}

// Attach resolves the membrane and gate indices of the neuron and reads the
// neuron's parameter overrides.
func (c *Channel) Attach(eng *state.Engine, neuronID int) error {
	v, err := eng.IndexOf(neuronID, c.membrane)
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}

	b := &channelBinding{
		eng:      eng,
		v:        v,
		gates:    make([]int, len(c.gates)),
		g:        eng.ParameterOr(neuronID, c.conductance.Name, c.conductance.Default),
		e:        eng.ParameterOr(neuronID, c.reversal.Name, c.reversal.Default),
		neuronID: neuronID,
	}

	for i, gate := range c.gates {
		b.gates[i], err = eng.IndexOf(neuronID, gate.Variable)
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}

	c.attached[neuronID] = b

	return nil
}

// Contribute integrates the gates and publishes the channel current.
func (c *Channel) Contribute(
	x, dxdt []float64,
	_ float64,
	neuronID int,
) (float64, error) {
	b, ok := c.attached[neuronID]
	if !ok {
		return 0, fmt.Errorf("%w: %s on neuron %d",
			ErrNotAttached, c.name, neuronID)
	}

	v := x[b.v]
	open := 1.0

	for i, gate := range c.gates {
		idx := b.gates[i]
		dxdt[idx] = GateRate(gate.Alpha(v), gate.Beta(v), x[idx])
		open *= math.Pow(x[idx], float64(gate.Power))
	}

	value := b.g * open * (v - b.e)
	b.eng.SetCurrent(neuronID, c.name, value)

	return value, nil
}

// ChannelBuilder can build channels.
type ChannelBuilder struct {
	name        string
	membrane    string
	conductance Constant
	reversal    Constant
	gates       []Gate
}

// MakeChannelBuilder creates a builder for a channel on the membrane
// potential "v".
func MakeChannelBuilder() ChannelBuilder {
	return ChannelBuilder{
		membrane: "v",
	}
}

// WithName sets the name of the published current.
func (b ChannelBuilder) WithName(name string) ChannelBuilder {
	b.name = name
	return b
}

// WithMembrane sets the variable that holds the membrane potential.
func (b ChannelBuilder) WithMembrane(variable string) ChannelBuilder {
	b.membrane = variable
	return b
}

// WithConductance sets the maximal conductance.
func (b ChannelBuilder) WithConductance(param string, def float64) ChannelBuilder {
	b.conductance = Constant{Name: param, Default: def}
	return b
}

// WithReversal sets the reversal potential.
func (b ChannelBuilder) WithReversal(param string, def float64) ChannelBuilder {
	b.reversal = Constant{Name: param, Default: def}
	return b
}

// WithGate adds a gating variable.
func (b ChannelBuilder) WithGate(gate Gate) ChannelBuilder {
	gates := make([]Gate, len(b.gates), len(b.gates)+1)
	copy(gates, b.gates)
	b.gates = append(gates, gate)

	return b
}

// Build creates the channel.
func (b ChannelBuilder) Build() *Channel {
	if b.name == "" {
		panic("channel must have a name")
	}

	for _, g := range b.gates {
		if g.Alpha == nil || g.Beta == nil {
			panic(fmt.Sprintf("gate %q of %s has no rate function",
				g.Variable, b.name))
		}
	}

	return &Channel{
		name:        b.name,
		membrane:    b.membrane,
		conductance: b.conductance,
		reversal:    b.reversal,
		gates:       append([]Gate(nil), b.gates...),
		attached:    make(map[int]*channelBinding),
	}
}
