package current

import "math"

// Sodium returns the Hodgkin-Huxley fast sodium current I_Na with gates m^3
// and h. Parameters: gna (default 120), ena (default 115).
func Sodium() *Channel {
	return MakeChannelBuilder().
		WithName("I_Na").
		WithConductance("gna", 120).
		WithReversal("ena", 115).
		WithGate(Gate{
			Variable: "m",
			Power:    3,
			Alpha:    func(v float64) float64 { return ExpRatio(2.5 - 0.1*v) },
			Beta:     func(v float64) float64 { return 4 * math.Exp(-v/18) },
		}).
		WithGate(Gate{
			Variable: "h",
			Power:    1,
			Alpha:    func(v float64) float64 { return 0.07 * math.Exp(-v/20) },
			Beta:     func(v float64) float64 { return 1 / (math.Exp(3-0.1*v) + 1) },
		}).
		Build()
}

// Potassium returns the Hodgkin-Huxley delayed rectifier I_K with gate n^4.
// Parameters: gk (default 36), ek (default -12).
func Potassium() *Channel {
	return MakeChannelBuilder().
		WithName("I_K").
		WithConductance("gk", 36).
		WithReversal("ek", -12).
		WithGate(Gate{
			Variable: "n",
			Power:    4,
			Alpha:    func(v float64) float64 { return 0.1 * ExpRatio(1-0.1*v) },
			Beta:     func(v float64) float64 { return 0.125 * math.Exp(-v/80) },
		}).
		Build()
}

// Leak returns the ungated leak current I_Leak. Parameters: gl (default 0.3),
// el (default 10.6).
func Leak() *Channel {
	return MakeChannelBuilder().
		WithName("I_Leak").
		WithConductance("gl", 0.3).
		WithReversal("el", 10.6).
		Build()
}
