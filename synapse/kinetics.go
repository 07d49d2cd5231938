package synapse

import (
	"math"

	"github.com/sarchlab/neurosim/current"
	"github.com/sarchlab/neurosim/state"
)

// Chemical is a transmitter-gated synapse with first order binding kinetics.
// The released transmitter is a sigmoid of the pre-synaptic potential,
//
//	T  = tmax / (1 + exp(-(v_pre - vp) / kp))
//	ds = alpha * T * (1 - s) - beta * s
//	I  = gsyn * s * (v_post - esyn)
//
// Voltages use the scale of the Hodgkin-Huxley currents, with rest at 0. The
// constants are overridden by synapse parameters of the same name. The open
// fraction s must be declared as a synapse variable.
type Chemical struct {
	eng  *state.Engine
	conn Connection
	s    int

	gsyn, esyn  float64
	alpha, beta float64
	tmax        float64
	vp, kp      float64
}

// Default constants of a chemical synapse. They describe a fast excitatory
// synapse.
const (
	DefaultChemicalGsyn  = 0.1
	DefaultChemicalEsyn  = 65.0
	DefaultChemicalAlpha = 1.1
	DefaultChemicalBeta  = 0.19
	DefaultChemicalTmax  = 1.0
	DefaultChemicalVp    = 67.0
	DefaultChemicalKp    = 5.0
)

// OpenFraction is the variable of a chemical synapse.
const OpenFraction = "s"

// NewChemical creates chemical kinetics.
func NewChemical() *Chemical {
	return &Chemical{}
}

// Attach resolves the open fraction and reads the parameter overrides.
func (c *Chemical) Attach(eng *state.Engine, conn Connection) error {
	s, err := eng.SynapseIndexOf(conn.Synapse, OpenFraction)
	if err != nil {
		return err
	}

	param := func(name string, def float64) float64 {
		return eng.SynapseParameterOr(conn.Synapse, name, def)
	}

	c.eng = eng
	c.conn = conn
	c.s = s
	c.gsyn = param("gsyn", DefaultChemicalGsyn)
	c.esyn = param("esyn", DefaultChemicalEsyn)
	c.alpha = param("alpha", DefaultChemicalAlpha)
	c.beta = param("beta", DefaultChemicalBeta)
	c.tmax = param("tmax", DefaultChemicalTmax)
	c.vp = param("vp", DefaultChemicalVp)
	c.kp = param("kp", DefaultChemicalKp)

	return nil
}

// Transmitter returns the transmitter concentration released at a
// pre-synaptic potential.
func (c *Chemical) Transmitter(vPre float64) float64 {
	return c.tmax / (1 + math.Exp(-(vPre-c.vp)/c.kp))
}

// Contribute integrates the open fraction and returns the synaptic current.
func (c *Chemical) Contribute(x, dxdt []float64, _ float64) (float64, error) {
	if c.eng == nil {
		return 0, ErrNotAttached
	}

	s := x[c.s]
	dxdt[c.s] = current.GateRate(c.alpha*c.Transmitter(x[c.conn.PreV]), c.beta, s)

	return c.gsyn * s * (x[c.conn.PostV] - c.esyn), nil
}

// Gap is an electrical synapse, a conductance between the two membranes:
//
//	I = ggap * (v_post - v_pre)
//
// It owns no variables.
type Gap struct {
	attached bool
	conn     Connection
	g        float64
}

// DefaultGapConductance is the conductance of a gap junction without a
// "ggap" parameter.
const DefaultGapConductance = 0.1

// NewGap creates gap junction kinetics.
func NewGap() *Gap {
	return &Gap{}
}

// Attach reads the conductance override.
func (g *Gap) Attach(eng *state.Engine, conn Connection) error {
	g.conn = conn
	g.g = eng.SynapseParameterOr(conn.Synapse, "ggap", DefaultGapConductance)
	g.attached = true

	return nil
}

// Contribute returns the current through the junction.
func (g *Gap) Contribute(x, _ []float64, _ float64) (float64, error) {
	if !g.attached {
		return 0, ErrNotAttached
	}

	return g.g * (x[g.conn.PostV] - x[g.conn.PreV]), nil
}
