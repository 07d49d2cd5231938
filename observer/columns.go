package observer

import (
	"fmt"

	"github.com/sarchlab/neurosim/state"
)

// A column is either a state variable read from the snapshot, or a constant
// parameter. The owner is "n<id>" for a neuron and "s<id>" for a synapse.
type column struct {
	owner string
	name  string
	index int
	param bool
	value float64
}

func (c column) header() string {
	return c.owner + c.name
}

func (c column) read(x []float64) float64 {
	if c.param {
		return c.value
	}

	return x[c.index]
}

func neuronOwner(id int) string {
	return fmt.Sprintf("n%d", id)
}

func synapseOwner(id int) string {
	return fmt.Sprintf("s%d", id)
}

// resolveName returns a column per neuron, then per synapse, that has a
// variable of the name. If none has, it returns a column per neuron and
// synapse that has a parameter of the name.
func resolveName(eng *state.Engine, name string) ([]column, error) {
	var cols []column

	for _, id := range eng.Neurons() {
		idx, err := eng.IndexOf(id, name)
		if err == nil {
			cols = append(cols, column{owner: neuronOwner(id), name: name, index: idx})
		}
	}

	for _, id := range eng.Synapses() {
		idx, err := eng.SynapseIndexOf(id, name)
		if err == nil {
			cols = append(cols, column{owner: synapseOwner(id), name: name, index: idx})
		}
	}

	if len(cols) > 0 {
		return cols, nil
	}

	for _, id := range eng.NeuronsWithParameter(name) {
		v, _ := eng.Parameter(id, name)
		cols = append(cols,
			column{owner: neuronOwner(id), name: name, param: true, value: v})
	}

	for _, id := range eng.SynapsesWithParameter(name) {
		v, _ := eng.SynapseParameter(id, name)
		cols = append(cols,
			column{owner: synapseOwner(id), name: name, param: true, value: v})
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("observer failed to find %s: %w",
			name, state.ErrUnknownVariable)
	}

	return cols, nil
}

func resolveNeuron(eng *state.Engine, neuronID int, name string) (column, error) {
	owner := neuronOwner(neuronID)

	idx, err := eng.IndexOf(neuronID, name)
	if err == nil {
		return column{owner: owner, name: name, index: idx}, nil
	}

	v, perr := eng.Parameter(neuronID, name)
	if perr == nil {
		return column{owner: owner, name: name, param: true, value: v}, nil
	}

	return column{}, err
}

func resolveSynapse(eng *state.Engine, synapseID int, name string) (column, error) {
	owner := synapseOwner(synapseID)

	idx, err := eng.SynapseIndexOf(synapseID, name)
	if err == nil {
		return column{owner: owner, name: name, index: idx}, nil
	}

	v, perr := eng.SynapseParameter(synapseID, name)
	if perr == nil {
		return column{owner: owner, name: name, param: true, value: v}, nil
	}

	return column{}, err
}

// selection is the set of values an observer writes, in the order they were
// asked for.
type selection struct {
	eng  *state.Engine
	cols []column
}

// Watch adds the variable of the given name of every neuron, then of every
// synapse, in registration order. When none has such a variable, the
// parameter of that name is watched instead.
func (s *selection) Watch(name string) error {
	cols, err := resolveName(s.eng, name)
	if err != nil {
		return err
	}

	s.cols = append(s.cols, cols...)

	return nil
}

// WatchNeuron adds a single variable or parameter of one neuron.
func (s *selection) WatchNeuron(neuronID int, name string) error {
	col, err := resolveNeuron(s.eng, neuronID, name)
	if err != nil {
		return err
	}

	s.cols = append(s.cols, col)

	return nil
}

// WatchSynapse adds a single variable or parameter of one synapse.
func (s *selection) WatchSynapse(synapseID int, name string) error {
	col, err := resolveSynapse(s.eng, synapseID, name)
	if err != nil {
		return err
	}

	s.cols = append(s.cols, col)

	return nil
}

// Headers returns the column names, "n<neuron><name>" or
// "s<synapse><name>".
func (s *selection) Headers() []string {
	headers := make([]string, len(s.cols))
	for i, c := range s.cols {
		headers[i] = c.header()
	}

	return headers
}
