// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a new Device. The config argument is backend-specific;
// backends that need no configuration accept nil.
type Factory func(config any) (Device, error)

// Registry state - protected by mutex for thread-safe access.
var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// Register registers a backend factory with the given name.
// This function is typically called from init() in backend packages,
// following the database/sql driver pattern:
//
//	func init() {
//	    backend.Register("noop", func(config any) (backend.Device, error) {
//	        return noop.New(), nil
//	    })
//	}
//
// Register panics if:
//   - factory is nil
//   - a backend with the same name is already registered
//
// This ensures that duplicate registrations are caught early during
// program initialization rather than silently overwriting backends.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("backend: Register factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("backend: Register called twice for " + name)
	}
	factories[name] = factory
}

// Unregister removes a backend from the registry.
// This is primarily useful for testing to clean up between tests.
// If the backend is not registered, this is a no-op.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// New creates a new Device by backend name.
// The name must match a previously registered backend.
//
// Example:
//
//	import _ "github.com/gogpu/gpusched/backend/noop" // Register backend
//
//	device, err := backend.New("noop", nil)
//	if err != nil {
//	    // Handle error - backend not registered
//	}
//
// Returns an error if the backend is not registered.
// The error message includes a hint about forgotten imports.
func New(name string, config any) (Device, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("backend: unknown backend %q (forgotten import?)", name)
	}
	return factory(config)
}

// Must creates a new Device by backend name, panicking on error.
// This is useful when backend availability is guaranteed.
//
// Example:
//
//	device := backend.Must("noop", nil)
func Must(name string, config any) Device {
	d, err := New(name, config)
	if err != nil {
		panic(err)
	}
	return d
}

// Backends returns a sorted list of registered backend names.
// The list is sorted alphabetically for consistent output.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}
