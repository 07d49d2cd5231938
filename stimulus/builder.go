package stimulus

import (
	"math"
	"sort"
)

type neuronSeries struct {
	id         int
	magnitudes []float64
}

// Builder can build stimulus tables.
type Builder struct {
	tolerance float64
	times     []float64
	series    []neuronSeries
}

// MakeBuilder creates a builder with the default tolerance.
func MakeBuilder() Builder {
	return Builder{
		tolerance: DefaultTolerance,
	}
}

// WithTolerance sets the absolute time tolerance used for matching.
func (b Builder) WithTolerance(tolerance float64) Builder {
	b.tolerance = tolerance
	return b
}

// WithTimes sets the sample times.
func (b Builder) WithTimes(times ...float64) Builder {
	b.times = append([]float64(nil), times...)
	return b
}

// WithNeuron adds the magnitudes of one neuron, aligned with the sample
// times.
func (b Builder) WithNeuron(neuronID int, magnitudes ...float64) Builder {
	series := make([]neuronSeries, len(b.series), len(b.series)+1)
	copy(series, b.series)

	b.series = append(series, neuronSeries{
		id:         neuronID,
		magnitudes: append([]float64(nil), magnitudes...),
	})

	return b
}

// Build validates the data and creates the table.
func (b Builder) Build() (*Table, error) {
	if !(b.tolerance > 0) || math.IsInf(b.tolerance, 0) {
		return nil, malformed("tolerance must be positive, got %g", b.tolerance)
	}

	for i, t := range b.times {
		if !isFinite(t) {
			return nil, malformed("sample %d has time %g", i, t)
		}
	}

	tb := &Table{
		times:      b.times,
		magnitudes: make(map[int][]float64, len(b.series)),
		tolerance:  b.tolerance,
	}

	for _, s := range b.series {
		err := b.checkSeries(s, tb)
		if err != nil {
			return nil, err
		}

		tb.magnitudes[s.id] = s.magnitudes
		tb.neurons = append(tb.neurons, s.id)
	}

	tb.order = make([]int, len(b.times))
	for i := range tb.order {
		tb.order[i] = i
	}

	sort.SliceStable(tb.order, func(i, j int) bool {
		return b.times[tb.order[i]] < b.times[tb.order[j]]
	})

	err := b.checkSpacing(tb.order)
	if err != nil {
		return nil, err
	}

	return tb, nil
}

func (b Builder) checkSeries(s neuronSeries, tb *Table) error {
	if _, dup := tb.magnitudes[s.id]; dup {
		return malformed("neuron %d is listed twice", s.id)
	}

	if len(s.magnitudes) != len(b.times) {
		return malformed("neuron %d has %d magnitudes for %d sample times",
			s.id, len(s.magnitudes), len(b.times))
	}

	for i, m := range s.magnitudes {
		if !isFinite(m) {
			return malformed("neuron %d sample %d has magnitude %g", s.id, i, m)
		}
	}

	return nil
}

// checkSpacing rejects two samples within the tolerance of each other.
// Samples further apart can still share a lookup time, which then matches
// the sample given first.
func (b Builder) checkSpacing(order []int) error {
	for i := 1; i < len(order); i++ {
		prev, curr := b.times[order[i-1]], b.times[order[i]]
		if curr-prev < b.tolerance {
			return &AmbiguityError{
				First:     prev,
				Second:    curr,
				Tolerance: b.tolerance,
			}
		}
	}

	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
