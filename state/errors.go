package state

import (
	"errors"
	"fmt"
)

// Sentinel errors. The typed errors below match them with errors.Is.
var (
	ErrUnknownVariable   = errors.New("unknown variable")
	ErrUncomputedCurrent = errors.New("uncomputed current")
	ErrDuplicateBinding  = errors.New("duplicate binding")
	ErrSealed            = errors.New("state engine sealed")
)

// UnknownVariableError reports a lookup of a (neuron, name) pair that was
// never bound. For a synapse lookup Synapse is set and SynapseID is used
// instead of NeuronID.
type UnknownVariableError struct {
	NeuronID  int
	Name      string
	Synapse   bool
	SynapseID int
}

func (e *UnknownVariableError) Error() string {
	if e.Synapse {
		return fmt.Sprintf("synapse %d has no variable %q", e.SynapseID, e.Name)
	}

	return fmt.Sprintf("neuron %d has no variable %q", e.NeuronID, e.Name)
}

// Is makes the error match ErrUnknownVariable.
func (e *UnknownVariableError) Is(target error) bool {
	return target == ErrUnknownVariable
}

// UncomputedCurrentError reports a cache read of a current that has not been
// written during the running evaluation.
type UncomputedCurrentError struct {
	NeuronID int
	Name     string
}

func (e *UncomputedCurrentError) Error() string {
	return fmt.Sprintf(
		"current %q of neuron %d read before it was computed", e.Name, e.NeuronID)
}

// Is makes the error match ErrUncomputedCurrent.
func (e *UncomputedCurrentError) Is(target error) bool {
	return target == ErrUncomputedCurrent
}

// DuplicateBindingError reports a rebind that conflicts with an existing slot.
type DuplicateBindingError struct {
	NeuronID  int
	Name      string
	Slot      int
	Reason    string
	Synapse   bool
	SynapseID int
}

func (e *DuplicateBindingError) Error() string {
	if e.Synapse {
		return fmt.Sprintf("cannot bind %q of synapse %d to slot %d: %s",
			e.Name, e.SynapseID, e.Slot, e.Reason)
	}

	return fmt.Sprintf("cannot bind %q of neuron %d to slot %d: %s",
		e.Name, e.NeuronID, e.Slot, e.Reason)
}

// Is makes the error match ErrDuplicateBinding.
func (e *DuplicateBindingError) Is(target error) bool {
	return target == ErrDuplicateBinding
}
