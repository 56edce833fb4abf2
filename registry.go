package cloak

import (
	"reflect"
	"sync"
)

var (
	registry   = make(map[reflect.Type]*recordPlan)
	registryMu sync.RWMutex
)

// planFor returns the cached record plan for typ or builds and caches one.
func planFor(typ reflect.Type, build func() (*recordPlan, error)) (*recordPlan, error) {
	// Fast path: read-lock cache check
	registryMu.RLock()
	if cached, ok := registry[typ]; ok {
		registryMu.RUnlock()
		return cached, nil
	}
	registryMu.RUnlock()

	// Slow path: build and cache with write-lock
	registryMu.Lock()
	defer registryMu.Unlock()

	// Double-check pattern
	if cached, ok := registry[typ]; ok {
		return cached, nil
	}

	plan, err := build()
	if err != nil {
		return nil, err
	}

	registry[typ] = plan
	return plan, nil
}

// Reset clears the record plan registry.
// This is primarily useful for test isolation.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[reflect.Type]*recordPlan)
}

// cachedPlans returns the number of cached record plans.
func cachedPlans() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}
