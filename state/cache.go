package state

// The current cache keeps one partition per neuron so that neurons evaluated
// in parallel never write to the same map. Every entry is stamped with the
// evaluation epoch it was written in; entries from older epochs read as
// missing.

type cachedValue struct {
	value float64
	epoch uint64
}

type partition struct {
	values map[string]cachedValue
}

// BeginEvaluation starts a new right-hand-side evaluation. Currents written
// before this call can no longer be read.
func (e *Engine) BeginEvaluation() {
	e.epoch++
}

// Epoch returns the number of evaluations started so far.
func (e *Engine) Epoch() uint64 {
	return e.epoch
}

// SetCurrent publishes a current computed for a neuron in the running
// evaluation. The neuron must be registered.
func (e *Engine) SetCurrent(neuronID int, name string, value float64) {
	pos := e.mustFindNeuron(neuronID)

	e.partitions[pos].values[name] = cachedValue{value: value, epoch: e.epoch}
}

// Current reads a current published in the running evaluation.
func (e *Engine) Current(neuronID int, name string) (float64, error) {
	pos, ok := e.neuronPos[neuronID]
	if !ok {
		return 0, &UncomputedCurrentError{NeuronID: neuronID, Name: name}
	}

	v, ok := e.partitions[pos].values[name]
	if !ok || v.epoch != e.epoch {
		return 0, &UncomputedCurrentError{NeuronID: neuronID, Name: name}
	}

	return v.value, nil
}
