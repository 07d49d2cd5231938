package synapse

import (
	"fmt"
	"sort"
	"sync"
)

// A Factory creates fresh kinetics for one synapse.
type Factory func() Kinetics

var (
	registryLock sync.RWMutex
	registry     = map[string]Factory{
		"chemical": func() Kinetics { return NewChemical() },
		"gap":      func() Kinetics { return NewGap() },
	}
)

// Register makes a kind of synapse available to New. Registering a kind
// twice panics.
func Register(kind string, factory Factory) {
	registryLock.Lock()
	defer registryLock.Unlock()

	if _, ok := registry[kind]; ok {
		panic(fmt.Sprintf("synapse kind %q registered twice", kind))
	}

	registry[kind] = factory
}

// New creates kinetics of a registered kind.
func New(kind string) (Kinetics, error) {
	registryLock.RLock()
	factory, ok := registry[kind]
	registryLock.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown synapse kind %q", kind)
	}

	return factory(), nil
}

// Kinds returns the registered kinds in sorted order.
func Kinds() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()

	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}

	sort.Strings(kinds)

	return kinds
}
