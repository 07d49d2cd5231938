package current

import "math"

// expRatioCutoff is where ExpRatio switches to its series expansion.
const expRatioCutoff = 1e-6

// GateRate returns the derivative of a gating variable x with opening rate
// alpha and closing rate beta.
func GateRate(alpha, beta, x float64) float64 {
	return alpha*(1-x) - beta*x
}

// ExpRatio returns u / (exp(u) - 1). The singularity at u = 0 is removable;
// near it the function is evaluated as 1 - u/2.
func ExpRatio(u float64) float64 {
	if math.Abs(u) < expRatioCutoff {
		return 1 - u/2
	}

	return u / math.Expm1(u)
}

// A RateFunc gives a voltage dependent transition rate.
type RateFunc func(v float64) float64

// A Gate is a gating variable of a channel. The channel conductance is scaled
// by x^Power.
type Gate struct {
	Variable string
	Power    int
	Alpha    RateFunc
	Beta     RateFunc
}

// SteadyState returns the value the gate converges to at a fixed voltage.
func (g Gate) SteadyState(v float64) float64 {
	a, b := g.Alpha(v), g.Beta(v)
	return a / (a + b)
}
