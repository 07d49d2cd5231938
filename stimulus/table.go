// Package stimulus holds externally supplied current injections sampled at
// discrete times, and answers which current a neuron receives at a given
// simulation time.
package stimulus

import (
	"sort"
)

// DefaultTolerance is the absolute time distance within which a simulation
// time matches a sample time.
const DefaultTolerance = 0.001

// A Source provides the external current a neuron receives at a time.
type Source interface {
	Lookup(neuronID int, t float64) float64
}

// None is a Source that never injects current.
var None Source = none{}

type none struct{}

func (none) Lookup(int, float64) float64 { return 0 }

// Table is an immutable stimulus table. Sample times are matched with an
// absolute tolerance; the table guarantees at most one sample can match any
// time.
type Table struct {
	times      []float64
	order      []int
	magnitudes map[int][]float64
	neurons    []int
	tolerance  float64
}

// Lookup returns the magnitude recorded for the neuron at the sample whose
// time is within the tolerance of t. It returns 0 when no sample matches or
// the neuron has no stimulus. A nil table injects nothing.
func (tb *Table) Lookup(neuronID int, t float64) float64 {
	if tb == nil {
		return 0
	}

	mags, ok := tb.magnitudes[neuronID]
	if !ok {
		return 0
	}

	sample, ok := tb.match(t)
	if !ok {
		return 0
	}

	return mags[sample]
}

// match returns the original position of the sample matching t. When two
// samples are within the tolerance of t, the one given first wins.
func (tb *Table) match(t float64) (int, bool) {
	n := len(tb.order)
	i := sort.Search(n, func(i int) bool {
		return tb.times[tb.order[i]] > t-tb.tolerance
	})

	found := false
	sample := 0

	for ; i < n && tb.times[tb.order[i]] < t+tb.tolerance; i++ {
		if !found || tb.order[i] < sample {
			sample = tb.order[i]
			found = true
		}
	}

	return sample, found
}

// Tolerance returns the matching tolerance.
func (tb *Table) Tolerance() float64 {
	return tb.tolerance
}

// Times returns the sample times in the order they were given.
func (tb *Table) Times() []float64 {
	times := make([]float64, len(tb.times))
	copy(times, tb.times)

	return times
}

// Neurons returns the ids of the stimulated neurons in the order they were
// added.
func (tb *Table) Neurons() []int {
	ids := make([]int, len(tb.neurons))
	copy(ids, tb.neurons)

	return ids
}

// Magnitudes returns a copy of the magnitudes of a neuron, aligned with
// Times.
func (tb *Table) Magnitudes(neuronID int) ([]float64, bool) {
	mags, ok := tb.magnitudes[neuronID]
	if !ok {
		return nil, false
	}

	out := make([]float64, len(mags))
	copy(out, mags)

	return out, true
}
