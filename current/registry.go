package current

import (
	"fmt"
	"sort"
	"sync"
)

// A Factory creates a fresh current model.
type Factory func() Model

var (
	registryLock sync.RWMutex
	registry     = map[string]Factory{
		"na":   func() Model { return Sodium() },
		"k":    func() Model { return Potassium() },
		"leak": func() Model { return Leak() },
	}
)

// Register makes a kind of current available to New. Registering a kind
// twice panics.
func Register(kind string, factory Factory) {
	registryLock.Lock()
	defer registryLock.Unlock()

	if _, ok := registry[kind]; ok {
		panic(fmt.Sprintf("current kind %q registered twice", kind))
	}

	registry[kind] = factory
}

// New creates a current model of a registered kind.
func New(kind string) (Model, error) {
	registryLock.RLock()
	factory, ok := registry[kind]
	registryLock.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown current kind %q", kind)
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
